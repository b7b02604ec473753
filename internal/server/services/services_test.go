package services

import "github.com/akorchagin/authd/internal/server/password"

// fakeHasher is a deterministic stand-in for the argon2 hasher.
type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (fakeHasher) Verify(password, encodedHash string) (bool, error) {
	return encodedHash == "hashed:"+password, nil
}

var _ password.Hasher = fakeHasher{}
