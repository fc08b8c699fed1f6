package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/backend"
	"github.com/mmeshcher/storefront/internal/chat"
	"github.com/mmeshcher/storefront/internal/middleware"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/service"
)

type stubService struct {
	loginPrevious string
	loginSession  *model.Session
	loginErr      error

	logoutID  string
	logoutErr error

	session    *model.Session
	sessionErr error

	catalog    *model.CatalogState
	catalogErr error
	viewMode   model.ViewMode
	refreshed  bool

	selected    *model.Product
	selectedErr error

	purchase    *service.PurchaseResult
	purchaseErr error

	snapshot *chat.Snapshot
	chatErr  error

	report    *service.ReportView
	reportErr error
	chart     service.ChartKind
}

func (s *stubService) Login(ctx context.Context, previousID, email string) (*model.Session, error) {
	s.loginPrevious = previousID
	return s.loginSession, s.loginErr
}

func (s *stubService) Logout(ctx context.Context, id string) error {
	s.logoutID = id
	return s.logoutErr
}

func (s *stubService) Session(ctx context.Context, id string) (*model.Session, error) {
	return s.session, s.sessionErr
}

func (s *stubService) Catalog(ctx context.Context, id string, refresh bool) (*model.CatalogState, error) {
	s.refreshed = refresh
	return s.catalog, s.catalogErr
}

func (s *stubService) SetViewMode(ctx context.Context, id string, mode model.ViewMode) (*model.CatalogState, error) {
	s.viewMode = mode
	return s.catalog, s.catalogErr
}

func (s *stubService) SelectProduct(ctx context.Context, id, productID string) (*model.Product, error) {
	return s.selected, s.selectedErr
}

func (s *stubService) Purchase(ctx context.Context, id, productID string) (*service.PurchaseResult, error) {
	return s.purchase, s.purchaseErr
}

func (s *stubService) Chat(ctx context.Context, id string) (*chat.Snapshot, error) {
	return s.snapshot, s.chatErr
}

func (s *stubService) SendChatMessage(ctx context.Context, id, text string) (*chat.Snapshot, error) {
	return s.snapshot, s.chatErr
}

func (s *stubService) ChooseChatOption(ctx context.Context, id, option string) (*chat.Snapshot, error) {
	return s.snapshot, s.chatErr
}

func (s *stubService) SalesReport(ctx context.Context, id string, kind service.ChartKind) (*service.ReportView, error) {
	s.chart = kind
	return s.report, s.reportErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	sessions := middleware.NewSessionMiddleware("test-secret", time.Hour)

	return NewHandler(svc, logger, sessions)
}

func newTestRouter(t *testing.T, svc Service) (*Handler, http.Handler) {
	t.Helper()

	h := newTestHandler(t, svc)
	return h, h.SetupRouter(RouterConfig{AllowedOrigins: []string{"*"}})
}

func sessionCookie(t *testing.T, h *Handler, id string) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	require.NoError(t, h.sessions.SetSessionCookie(rec, id))
	return rec.Result().Cookies()[0]
}

func doRequest(t *testing.T, router http.Handler, method, target string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func customerSession() *model.Session {
	s := model.NewSession("sess-1")
	s.User = &model.User{ID: "ana@example.com", Email: "ana@example.com", Name: "ana", Role: model.RoleCustomer}
	s.Balance = decimal.NewNullDecimal(decimal.NewFromInt(100))
	return s
}

func TestLogin_SetsCookie(t *testing.T) {
	svc := &stubService{loginSession: customerSession()}
	_, router := newTestRouter(t, svc)

	rec := doRequest(t, router, http.MethodPost, "/api/session/login", loginRequest{Email: "ana@example.com"}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp sessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ana", resp.User.Name)
	assert.True(t, resp.Balance.Decimal.Equal(decimal.NewFromInt(100)))
	assert.Empty(t, svc.loginPrevious)
}

func TestLogin_PassesPreviousSession(t *testing.T) {
	svc := &stubService{loginSession: customerSession()}
	h, router := newTestRouter(t, svc)

	rec := doRequest(t, router, http.MethodPost, "/api/session/login",
		loginRequest{Email: "ana@example.com"}, sessionCookie(t, h, "old-session"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "old-session", svc.loginPrevious)
}

func TestLogin_InvalidEmail(t *testing.T) {
	svc := &stubService{loginErr: service.ErrInvalidEmail}
	_, router := newTestRouter(t, svc)

	rec := doRequest(t, router, http.MethodPost, "/api/session/login", loginRequest{Email: "nope"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogout_ClearsCookie(t *testing.T) {
	svc := &stubService{}
	h, router := newTestRouter(t, svc)

	rec := doRequest(t, router, http.MethodPost, "/api/session/logout", nil, sessionCookie(t, h, "sess-1"))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "sess-1", svc.logoutID)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Less(t, rec.Result().Cookies()[0].MaxAge, 0)
}

func TestGetSession_Unauthorized(t *testing.T) {
	_, router := newTestRouter(t, &stubService{})

	rec := doRequest(t, router, http.MethodGet, "/api/session", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetSession_LoggedOut(t *testing.T) {
	svc := &stubService{sessionErr: service.ErrNotLoggedIn}
	h, router := newTestRouter(t, svc)

	rec := doRequest(t, router, http.MethodGet, "/api/session", nil, sessionCookie(t, h, "sess-1"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSetViewMode(t *testing.T) {
	svc := &stubService{catalog: &model.CatalogState{Mode: model.ViewPurchases, Loaded: true, Items: []model.Product{}}}
	h, router := newTestRouter(t, svc)
	cookie := sessionCookie(t, h, "sess-1")

	rec := doRequest(t, router, http.MethodPut, "/api/catalog/view", viewModeRequest{Mode: model.ViewPurchases}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.ViewPurchases, svc.viewMode)

	svc.catalogErr = service.ErrInvalidViewMode
	rec = doRequest(t, router, http.MethodPut, "/api/catalog/view", viewModeRequest{Mode: "wishlist"}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCatalog_RefreshFlag(t *testing.T) {
	svc := &stubService{catalog: &model.CatalogState{Mode: model.ViewCatalog, Loaded: true, Items: []model.Product{}}}
	h, router := newTestRouter(t, svc)
	cookie := sessionCookie(t, h, "sess-1")

	tests := []struct {
		target string
		want   bool
	}{
		{"/api/catalog", false},
		{"/api/catalog?refresh", true},
		{"/api/catalog?refresh=1", true},
		{"/api/catalog?refresh=false", false},
	}

	for _, tt := range tests {
		rec := doRequest(t, router, http.MethodGet, tt.target, nil, cookie)
		require.Equal(t, http.StatusOK, rec.Code, tt.target)
		assert.Equal(t, tt.want, svc.refreshed, tt.target)
	}
}

func TestGetCatalog_AdminForbidden(t *testing.T) {
	svc := &stubService{catalogErr: service.ErrForbidden}
	h, router := newTestRouter(t, svc)

	rec := doRequest(t, router, http.MethodGet, "/api/catalog", nil, sessionCookie(t, h, "sess-1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSelectProduct_NotListed(t *testing.T) {
	svc := &stubService{selectedErr: service.ErrProductNotListed}
	h, router := newTestRouter(t, svc)

	rec := doRequest(t, router, http.MethodPost, "/api/catalog/select", productRequest{ProductID: "9"}, sessionCookie(t, h, "sess-1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPurchase(t *testing.T) {
	tests := []struct {
		name       string
		result     *service.PurchaseResult
		err        error
		wantStatus int
		wantNotice string
	}{
		{
			name: "success",
			result: &service.PurchaseResult{
				OK:            true,
				Notice:        "Purchase completed successfully!",
				Balance:       decimal.NewNullDecimal(decimal.NewFromInt(80)),
				BalanceSource: service.BalanceFromResponse,
			},
			wantStatus: http.StatusOK,
			wantNotice: "Purchase completed successfully!",
		},
		{
			name: "rejected by api",
			result: &service.PurchaseResult{
				Notice: "Insufficient balance",
				Err:    &backend.RequestError{Op: "create purchase", Status: 400, Message: "Insufficient balance", Err: backend.ErrHTTPStatus},
			},
			wantStatus: http.StatusBadRequest,
			wantNotice: "Insufficient balance",
		},
		{
			name: "network failure",
			result: &service.PurchaseResult{
				Notice: "Could not complete the purchase",
				Err:    &backend.RequestError{Op: "create purchase", Err: backend.ErrNetworkFailure},
			},
			wantStatus: http.StatusBadGateway,
			wantNotice: "Could not complete the purchase",
		},
		{
			name:       "purchases view",
			err:        service.ErrPurchaseUnavailable,
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{purchase: tt.result, purchaseErr: tt.err}
			h, router := newTestRouter(t, svc)

			rec := doRequest(t, router, http.MethodPost, "/api/purchases", productRequest{ProductID: "1"}, sessionCookie(t, h, "sess-1"))
			require.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantNotice != "" {
				var resp service.PurchaseResult
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, tt.wantNotice, resp.Notice)
			}
		})
	}
}

func TestPurchase_MissingProduct(t *testing.T) {
	h, router := newTestRouter(t, &stubService{})

	rec := doRequest(t, router, http.MethodPost, "/api/purchases", productRequest{}, sessionCookie(t, h, "sess-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		body       any
		err        error
		wantStatus int
	}{
		{name: "empty message", target: "/api/chat/messages", body: chatMessageRequest{Text: "  "}, err: chat.ErrEmptyMessage, wantStatus: http.StatusUnprocessableEntity},
		{name: "awaiting option", target: "/api/chat/messages", body: chatMessageRequest{Text: "hi"}, err: chat.ErrAwaitingOption, wantStatus: http.StatusConflict},
		{name: "unknown option", target: "/api/chat/options", body: chatOptionRequest{Option: "Refund"}, err: chat.ErrUnknownOption, wantStatus: http.StatusUnprocessableEntity},
		{name: "no options", target: "/api/chat/options", body: chatOptionRequest{Option: chat.OptionWarranty}, err: chat.ErrNoOptions, wantStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{chatErr: tt.err}
			h, router := newTestRouter(t, svc)

			rec := doRequest(t, router, http.MethodPost, tt.target, tt.body, sessionCookie(t, h, "sess-1"))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestGetChat(t *testing.T) {
	svc := &stubService{snapshot: &chat.Snapshot{
		State:    chat.StateIdle,
		Messages: []model.ChatMessage{{ID: "m1", Text: chat.WelcomeText, Sender: model.SenderBot}},
	}}
	h, router := newTestRouter(t, svc)

	rec := doRequest(t, router, http.MethodGet, "/api/chat", nil, sessionCookie(t, h, "sess-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap chat.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, chat.WelcomeText, snap.Messages[0].Text)
}

func TestGetSalesReport(t *testing.T) {
	svc := &stubService{report: &service.ReportView{Chart: service.ChartByProduct, Bars: []service.ChartBar{}}}
	h, router := newTestRouter(t, svc)
	cookie := sessionCookie(t, h, "sess-1")

	rec := doRequest(t, router, http.MethodGet, "/api/admin/report?chart=product", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.ChartByProduct, svc.chart)

	svc.reportErr = service.ErrForbidden
	rec = doRequest(t, router, http.MethodGet, "/api/admin/report", nil, cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	svc.reportErr = &backend.RequestError{Op: "get sales report", Status: 500, Message: "database offline", Err: backend.ErrHTTPStatus}
	rec = doRequest(t, router, http.MethodGet, "/api/admin/report", nil, cookie)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "database offline")
}

func TestHealth(t *testing.T) {
	_, router := newTestRouter(t, &stubService{})

	rec := doRequest(t, router, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStaticFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>storefront</html>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log('ok')"), 0o600))

	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter(RouterConfig{StaticDir: dir, AllowedOrigins: []string{"*"}})

	rec := doRequest(t, router, http.MethodGet, "/admin", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "storefront"))

	rec = doRequest(t, router, http.MethodGet, "/app.js", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "console.log")
}
