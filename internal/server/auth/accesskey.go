package auth

import "golang.org/x/crypto/bcrypt"

// HashAccessKey returns the bcrypt hash stored in configuration.
func HashAccessKey(key []byte) (string, error) {
	h, err := bcrypt.GenerateFromPassword(key, bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// VerifyAccessKey reports whether key matches hash.
func VerifyAccessKey(hash string, key []byte) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), key) == nil
}
