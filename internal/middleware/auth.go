// Package middleware содержит HTTP middleware витрины.
package middleware

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const sessionIDKey contextKey = "sessionID"

const (
	sessionCookieName = "storefront_session"
	sessionIssuer     = "storefront"
)

// SessionMiddleware связывает браузер с сессией витрины через подписанный JWT в cookie.
type SessionMiddleware struct {
	secretKey []byte
	ttl       time.Duration
}

// NewSessionMiddleware создаёт middleware с указанным секретом и временем жизни cookie.
// При пустом секрете генерируется случайный ключ, и cookie не переживают перезапуск.
func NewSessionMiddleware(secret string, ttl time.Duration) *SessionMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &SessionMiddleware{
		secretKey: key,
		ttl:       ttl,
	}
}

// Middleware пропускает только запросы с действительной cookie сессии.
func (a *SessionMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := a.sessionFromRequest(r)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), sessionIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional добавляет идентификатор сессии в контекст, если cookie действительна, но не требует её.
func (a *SessionMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := a.sessionFromRequest(r); ok {
			r = r.WithContext(context.WithValue(r.Context(), sessionIDKey, id))
		}
		next.ServeHTTP(w, r)
	})
}

// SetSessionCookie выдаёт cookie для указанной сессии.
func (a *SessionMiddleware) SetSessionCookie(w http.ResponseWriter, sessionID string) error {
	now := time.Now()
	expires := now.Add(a.ttl)

	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		Issuer:    sessionIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secretKey)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

// ClearSessionCookie удаляет cookie сессии в браузере.
func (a *SessionMiddleware) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *SessionMiddleware) sessionFromRequest(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", false
	}

	id, err := a.parseToken(cookie.Value)
	if err != nil {
		return "", false
	}

	return id, true
}

func (a *SessionMiddleware) parseToken(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(value, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secretKey, nil
	}, jwt.WithIssuer(sessionIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("invalid session token")
	}

	return claims.Subject, nil
}

// GetSessionIDFromContext извлекает идентификатор сессии из контекста запроса.
func GetSessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}
