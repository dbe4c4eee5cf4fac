package models

import (
	"encoding/json"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

// HashPassword returns the bcrypt hash stored in users.hashed_password.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether plain matches the stored hash.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// IsCredentialHash reports whether s parses as a bcrypt hash.
func IsCredentialHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

// ToJSON encodes v for a structured column (agents_involved, data_sources,
// request_params). A nil v yields an empty value, stored as NULL.
func ToJSON(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
