// Package backend предоставляет клиент внешнего REST API магазина.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mmeshcher/storefront/internal/model"
)

// BaseURLResolver определяет адрес API в момент выполнения запроса.
type BaseURLResolver interface {
	BaseURL(ctx context.Context) string
}

// StaticURL всегда возвращает один и тот же адрес.
type StaticURL string

// BaseURL реализует BaseURLResolver.
func (s StaticURL) BaseURL(context.Context) string {
	return string(s)
}

// Client инкапсулирует HTTP-взаимодействие с API магазина.
type Client struct {
	resolver   BaseURLResolver
	httpClient *http.Client
}

// NewClient создаёт клиент API. Таймаут запросов не задаётся.
func NewClient(resolver BaseURLResolver) *Client {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Transport = otelhttp.NewTransport(httpClient.Transport)

	return &Client{
		resolver:   resolver,
		httpClient: httpClient,
	}
}

// ListProducts запрашивает все товары каталога.
func (c *Client) ListProducts(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	if err := c.do(ctx, "list products", http.MethodGet, "/api/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// ListPurchases запрашивает историю покупок клиента.
func (c *Client) ListPurchases(ctx context.Context, customerID string) ([]model.Purchase, error) {
	var purchases []model.Purchase
	path := "/api/purchases/customer/" + url.PathEscape(customerID)
	if err := c.do(ctx, "list purchases", http.MethodGet, path, nil, &purchases); err != nil {
		return nil, err
	}
	return purchases, nil
}

// CreatePurchase отправляет запрос на покупку товара.
func (c *Client) CreatePurchase(ctx context.Context, req model.PurchaseRequest) (*model.PurchaseReceipt, error) {
	var receipt model.PurchaseReceipt
	if err := c.do(ctx, "create purchase", http.MethodPost, "/api/purchases", req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

type balanceResponse struct {
	Balance *decimal.Decimal `json:"balance"`
}

// GetBalance запрашивает текущий баланс клиента по e-mail.
func (c *Client) GetBalance(ctx context.Context, email string) (decimal.Decimal, error) {
	var resp balanceResponse
	path := "/api/customers/" + url.PathEscape(email) + "/balance"
	if err := c.do(ctx, "get balance", http.MethodGet, path, nil, &resp); err != nil {
		return decimal.Zero, err
	}
	if resp.Balance == nil {
		return decimal.Zero, &RequestError{Op: "get balance", Err: ErrMalformedResponse, Message: "balance is missing"}
	}
	return *resp.Balance, nil
}

// GetSalesReport запрашивает отчёт о продажах.
func (c *Client) GetSalesReport(ctx context.Context) (*model.SalesReport, error) {
	var report model.SalesReport
	if err := c.do(ctx, "get sales report", http.MethodGet, "/api/purchases/report", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) endpoint(ctx context.Context, path string) string {
	base := strings.TrimRight(c.resolver.BaseURL(ctx), "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base + path
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(ctx, path), reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Op: op, Err: fmt.Errorf("%w: %v", ErrNetworkFailure, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{
			Op:      op,
			Status:  resp.StatusCode,
			Message: readServerMessage(resp.Body),
			Err:     ErrHTTPStatus,
		}
	}

	if !isJSON(resp.Header.Get("Content-Type")) {
		return &RequestError{
			Op:      op,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("unexpected content type %q", resp.Header.Get("Content-Type")),
			Err:     ErrMalformedResponse,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}

	return nil
}

func readServerMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var e errorResponse
	if err := json.Unmarshal(raw, &e); err != nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
