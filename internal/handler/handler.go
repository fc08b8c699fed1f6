// Package handler содержит HTTP-обработчики витрины.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/backend"
	"github.com/mmeshcher/storefront/internal/chat"
	"github.com/mmeshcher/storefront/internal/middleware"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Login(ctx context.Context, previousID, email string) (*model.Session, error)
	Logout(ctx context.Context, id string) error
	Session(ctx context.Context, id string) (*model.Session, error)
	Catalog(ctx context.Context, id string, refresh bool) (*model.CatalogState, error)
	SetViewMode(ctx context.Context, id string, mode model.ViewMode) (*model.CatalogState, error)
	SelectProduct(ctx context.Context, id, productID string) (*model.Product, error)
	Purchase(ctx context.Context, id, productID string) (*service.PurchaseResult, error)
	Chat(ctx context.Context, id string) (*chat.Snapshot, error)
	SendChatMessage(ctx context.Context, id, text string) (*chat.Snapshot, error)
	ChooseChatOption(ctx context.Context, id, option string) (*chat.Snapshot, error)
	SalesReport(ctx context.Context, id string, kind service.ChartKind) (*service.ReportView, error)
}

// Handler реализует HTTP-обработчики витрины.
type Handler struct {
	service  Service
	logger   *zap.Logger
	sessions *middleware.SessionMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, sessions *middleware.SessionMiddleware) *Handler {
	return &Handler{
		service:  s,
		logger:   logger,
		sessions: sessions,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type sessionResponse struct {
	User     *model.User         `json:"user"`
	Balance  decimal.NullDecimal `json:"balance"`
	ViewMode model.ViewMode      `json:"view_mode"`
	Selected *model.Product      `json:"selected,omitempty"`
}

func newSessionResponse(s *model.Session) sessionResponse {
	return sessionResponse{
		User:     s.User,
		Balance:  s.Balance,
		ViewMode: s.ViewMode,
		Selected: s.Selected,
	}
}

type loginRequest struct {
	Email string `json:"email"`
}

// Login начинает сессию для введённого адреса и выдаёт cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	previousID, _ := middleware.GetSessionIDFromContext(r.Context())

	sess, err := h.service.Login(r.Context(), previousID, req.Email)
	if err != nil {
		h.handleError(w, "login", err)
		return
	}

	if err := h.sessions.SetSessionCookie(w, sess.ID); err != nil {
		h.logger.Error("set session cookie error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

// Logout завершает сессию и удаляет cookie. Повторный выход не считается ошибкой.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if id, ok := middleware.GetSessionIDFromContext(r.Context()); ok {
		if err := h.service.Logout(r.Context(), id); err != nil {
			h.handleError(w, "logout", err)
			return
		}
	}

	h.sessions.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// GetSession возвращает пользователя, баланс и режим каталога.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.service.Session(r.Context(), id)
	if err != nil {
		h.handleError(w, "get session", err)
		return
	}

	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

// GetCatalog возвращает список товаров для текущего режима.
// Параметр refresh заставляет загрузить список заново, его передаёт открывшаяся страница.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	refresh := q.Has("refresh") && q.Get("refresh") != "false" && q.Get("refresh") != "0"

	catalog, err := h.service.Catalog(r.Context(), id, refresh)
	if err != nil {
		h.handleError(w, "get catalog", err)
		return
	}

	writeJSON(w, http.StatusOK, catalog)
}

type viewModeRequest struct {
	Mode model.ViewMode `json:"mode"`
}

// SetViewMode переключает каталог между всеми товарами и покупками.
func (h *Handler) SetViewMode(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req viewModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	catalog, err := h.service.SetViewMode(r.Context(), id, req.Mode)
	if err != nil {
		h.handleError(w, "set view mode", err)
		return
	}

	writeJSON(w, http.StatusOK, catalog)
}

type productRequest struct {
	ProductID string `json:"productId"`
}

// SelectProduct выбирает товар и начинает о нём разговор в чате поддержки.
func (h *Handler) SelectProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	product, err := h.service.SelectProduct(r.Context(), id, req.ProductID)
	if err != nil {
		h.handleError(w, "select product", err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// Purchase покупает одну единицу товара. Ответ всегда содержит уведомление для пользователя.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	res, err := h.service.Purchase(r.Context(), id, req.ProductID)
	if err != nil {
		h.handleError(w, "purchase", err)
		return
	}

	if !res.OK {
		writeJSON(w, purchaseFailureStatus(res.Err), res)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// purchaseFailureStatus передаёт клиентские ошибки API как есть, остальные считает ошибкой шлюза.
func purchaseFailureStatus(err error) int {
	status := backend.StatusCode(err)
	if status >= 400 && status < 500 {
		return status
	}
	return http.StatusBadGateway
}

// GetChat возвращает разговор поддержки.
func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	snap, err := h.service.Chat(r.Context(), id)
	if err != nil {
		h.handleError(w, "get chat", err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

type chatMessageRequest struct {
	Text string `json:"text"`
}

// SendChatMessage отправляет произвольный текст боту.
func (h *Handler) SendChatMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req chatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	snap, err := h.service.SendChatMessage(r.Context(), id, req.Text)
	if err != nil {
		h.handleError(w, "send chat message", err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

type chatOptionRequest struct {
	Option string `json:"option"`
}

// ChooseChatOption выбирает тему обращения.
func (h *Handler) ChooseChatOption(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req chatOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	snap, err := h.service.ChooseChatOption(r.Context(), id, req.Option)
	if err != nil {
		h.handleError(w, "choose chat option", err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// GetSalesReport возвращает отчёт о продажах для администратора.
func (h *Handler) GetSalesReport(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	kind := service.ChartKind(r.URL.Query().Get("chart"))

	report, err := h.service.SalesReport(r.Context(), id, kind)
	if err != nil {
		h.handleError(w, "get sales report", err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// Health сообщает, что процесс жив.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.GetSessionIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return "", false
	}
	return id, true
}

// handleError переводит ошибки сервиса в HTTP-статусы.
func (h *Handler) handleError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidViewMode),
		errors.Is(err, service.ErrInvalidChart):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotLoggedIn):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrProductNotListed):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrPurchaseUnavailable),
		errors.Is(err, chat.ErrAwaitingOption),
		errors.Is(err, chat.ErrNoOptions):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrUnknownOption):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, backend.ErrNetworkFailure),
		errors.Is(err, backend.ErrHTTPStatus),
		errors.Is(err, backend.ErrMalformedResponse):
		h.logger.Warn(op+" upstream error", zap.Error(err))
		msg := backend.ServerMessage(err)
		if msg == "" {
			msg = "The store API is unavailable"
		}
		writeError(w, http.StatusBadGateway, msg)
	default:
		h.logger.Error(op+" error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
