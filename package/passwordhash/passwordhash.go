package passwordhash

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when the master password is empty
var ErrEmptyPassword = errors.New("empty master password")

// HashMasterPassword хеширует мастер-пароль для хранения в хранилище
func HashMasterPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// CheckMasterPassword проверяет, соответствует ли хеш мастер-паролю
func CheckMasterPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
