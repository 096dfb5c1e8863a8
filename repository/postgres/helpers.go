package postgres

import (
	"encoding/json"

	"github.com/fastygo/aurano/domain"
)

func decodeUserData(payload []byte) (*domain.UserData, error) {
	if len(payload) == 0 {
		return nil, domain.ErrUserDataNotFound
	}
	var data domain.UserData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "corrupt user data", err)
	}
	return &data, nil
}
