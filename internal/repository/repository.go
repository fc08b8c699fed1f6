// Package repository содержит хранилища состояния сессий витрины.
package repository

import "errors"

// ErrSessionNotFound возвращается, если сессия с указанным идентификатором отсутствует.
var ErrSessionNotFound = errors.New("session not found")
