package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrNetworkFailure возвращается, если запрос не удалось выполнить.
	ErrNetworkFailure = errors.New("network failure")
	// ErrHTTPStatus возвращается при ответе со статусом вне диапазона 2xx.
	ErrHTTPStatus = errors.New("unexpected http status")
	// ErrMalformedResponse возвращается при неожиданном типе или содержимом ответа.
	ErrMalformedResponse = errors.New("malformed response")
)

// RequestError описывает неудачный запрос к внешнему API.
type RequestError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

// Error реализует интерфейс error.
func (e *RequestError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s: %v: %d: %s", e.Op, e.Err, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: %v: %d", e.Op, e.Err, e.Status)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

// Unwrap позволяет использовать errors.Is с ErrNetworkFailure, ErrHTTPStatus и ErrMalformedResponse.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// ServerMessage возвращает сообщение сервера из цепочки ошибок, если оно есть.
func ServerMessage(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Message
	}
	return ""
}

// StatusCode возвращает HTTP-статус из цепочки ошибок или 0.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Status
	}
	return 0
}
