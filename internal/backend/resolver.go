package backend

import (
	"context"
	"net"
	"strings"
)

type contextKey string

const requestHostKey contextKey = "requestHost"

// WithRequestHost сохраняет в контексте имя хоста, по которому открыта витрина.
func WithRequestHost(ctx context.Context, host string) context.Context {
	return context.WithValue(ctx, requestHostKey, host)
}

// RequestHostFromContext извлекает имя хоста витрины из контекста.
func RequestHostFromContext(ctx context.Context) (string, bool) {
	host, ok := ctx.Value(requestHostKey).(string)
	return host, ok && host != ""
}

// HostResolver выбирает адрес API: явно заданный, затем продакшен по имени хоста, затем локальный.
type HostResolver struct {
	Explicit             string
	ProductionHostSuffix string
	ProductionURL        string
	DevelopmentURL       string
	// FallbackHost используется, если хост не пришёл с запросом.
	FallbackHost string
}

// BaseURL реализует BaseURLResolver.
func (r HostResolver) BaseURL(ctx context.Context) string {
	if r.Explicit != "" {
		return r.Explicit
	}

	host, ok := RequestHostFromContext(ctx)
	if !ok {
		host = r.FallbackHost
	}
	if r.ProductionHostSuffix != "" && strings.Contains(hostname(host), r.ProductionHostSuffix) {
		return r.ProductionURL
	}

	return r.DevelopmentURL
}

func hostname(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return strings.ToLower(h)
	}
	return strings.ToLower(host)
}
