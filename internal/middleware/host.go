package middleware

import (
	"net"
	"net/http"

	"github.com/mmeshcher/storefront/internal/backend"
)

// RequestHost передаёт имя хоста, по которому открыта витрина, в контекст
// запросов к внешнему API: от него зависит выбор адреса API.
// X-Forwarded-Host учитывается только за доверенным прокси.
func RequestHost(trustForwarded bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := r.Host
			if trustForwarded {
				if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
					host = fwd
				}
			}
			if h, _, err := net.SplitHostPort(host); err == nil {
				host = h
			}

			next.ServeHTTP(w, r.WithContext(backend.WithRequestHost(r.Context(), host)))
		})
	}
}
