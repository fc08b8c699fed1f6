package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS разрешает запросы из указанных источников. Cookie сессии передаются
// только при явном списке источников: с "*" браузер их не отправит.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowCredentials := true
	for _, o := range origins {
		if o == "*" {
			allowCredentials = false
		}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Accept", "Accept-Encoding", "Content-Encoding"},
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	})
	return c.Handler
}
