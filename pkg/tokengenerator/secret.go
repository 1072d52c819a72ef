package tokengenerator

import "errors"

// ErrEmptySecret is returned when no signing key is configured.
var ErrEmptySecret = errors.New("signing secret is empty")

// SecretStore supplies the symmetric signing key.
type SecretStore interface {
	SigningKey() ([]byte, error)
}

// StaticSecretStore serves a fixed key, typically read from configuration.
type StaticSecretStore struct {
	secret []byte
}

// NewStaticSecretStore creates a StaticSecretStore
func NewStaticSecretStore(secret string) *StaticSecretStore {
	return &StaticSecretStore{secret: []byte(secret)}
}

func (s *StaticSecretStore) SigningKey() ([]byte, error) {
	if len(s.secret) == 0 {
		return nil, ErrEmptySecret
	}
	key := make([]byte, len(s.secret))
	copy(key, s.secret)
	return key, nil
}
