// Package validation содержит функции валидации входных данных.
package validation

import (
	"net/mail"
	"strings"
)

// IsValidEmail проверяет, что строка является одиночным адресом e-mail без отображаемого имени.
func IsValidEmail(email string) bool {
	if email == "" || strings.TrimSpace(email) != email {
		return false
	}

	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	if addr.Address != email {
		return false
	}

	at := strings.LastIndexByte(email, '@')
	return at > 0 && at < len(email)-1
}
