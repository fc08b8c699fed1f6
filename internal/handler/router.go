package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	custommiddleware "github.com/mmeshcher/storefront/internal/middleware"
)

// RouterConfig содержит параметры HTTP-слоя.
type RouterConfig struct {
	// StaticDir указывает каталог собранного фронтенда; пустое значение отключает раздачу.
	StaticDir      string
	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
	// TrustProxy разрешает брать адрес клиента и хост из заголовков X-Forwarded-*.
	TrustProxy     bool
}

// SetupRouter настраивает HTTP-маршруты и middleware витрины.
func (h *Handler) SetupRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(custommiddleware.CORS(cfg.AllowedOrigins))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(custommiddleware.NewRateLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst).Middleware)
		}
		r.Use(custommiddleware.RequestHost(cfg.TrustProxy))

		r.Group(func(r chi.Router) {
			r.Use(h.sessions.Optional)

			r.Post("/session/login", h.Login)
			r.Post("/session/logout", h.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.sessions.Middleware)

			r.Get("/session", h.GetSession)

			r.Get("/catalog", h.GetCatalog)
			r.Put("/catalog/view", h.SetViewMode)
			r.Post("/catalog/select", h.SelectProduct)

			r.Post("/purchases", h.Purchase)

			r.Get("/chat", h.GetChat)
			r.Post("/chat/messages", h.SendChatMessage)
			r.Post("/chat/options", h.ChooseChatOption)

			r.Get("/admin/report", h.GetSalesReport)
		})
	})

	if cfg.StaticDir != "" {
		r.Handle("/*", spaHandler(cfg.StaticDir))
	} else {
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		})
	}

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}

// spaHandler раздаёт файлы фронтенда, а неизвестные пути отдаёт index.html.
func spaHandler(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}

		path := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(path); err != nil || info.IsDir() && r.URL.Path != "/" {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}

		fs.ServeHTTP(w, r)
	})
}
