// Package service реализует логику витрины: сессию, каталог, покупки, чат и отчёт.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/chat"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/repository"
)

var (
	// ErrNotLoggedIn возвращается, если в сессии нет пользователя.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrForbidden возвращается, если роль пользователя не допускает операцию.
	ErrForbidden = errors.New("operation not allowed for role")
	// ErrInvalidViewMode возвращается при неизвестном режиме каталога.
	ErrInvalidViewMode = errors.New("invalid view mode")
	// ErrProductNotListed возвращается, если товара нет в показанном списке.
	ErrProductNotListed = errors.New("product is not listed")
	// ErrPurchaseUnavailable возвращается при попытке покупки из режима "мои покупки".
	ErrPurchaseUnavailable = errors.New("purchase is only available in catalog view")
)

// Repository описывает контракт хранилища сессий, используемый сервисом.
type Repository interface {
	Close() error
	LoadSession(ctx context.Context, id string) (*model.Session, error)
	SaveSession(ctx context.Context, s *model.Session) error
	DeleteSession(ctx context.Context, id string) error
}

// Sweeper реализуется хранилищами, которые сами не удаляют устаревшие сессии.
type Sweeper interface {
	DeleteSessionsBefore(ctx context.Context, before time.Time) (int64, error)
}

// StoreAPI описывает внешний REST API магазина.
type StoreAPI interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	ListPurchases(ctx context.Context, customerID string) ([]model.Purchase, error)
	CreatePurchase(ctx context.Context, req model.PurchaseRequest) (*model.PurchaseReceipt, error)
	GetBalance(ctx context.Context, email string) (decimal.Decimal, error)
	GetSalesReport(ctx context.Context) (*model.SalesReport, error)
}

type chatEntry struct {
	machine  *chat.Machine
	lastSeen time.Time
}

// Service содержит логику витрины. Изменения одной сессии выполняются последовательно.
type Service struct {
	repo      Repository
	api       StoreAPI
	logger    *zap.Logger
	chatDelay time.Duration
	now       func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sessionLock

	chatsMu sync.Mutex
	chats   map[string]*chatEntry
}

// NewService создаёт сервис с указанным хранилищем сессий и клиентом API.
func NewService(repo Repository, api StoreAPI, logger *zap.Logger, chatDelay time.Duration) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:      repo,
		api:       api,
		logger:    logger,
		chatDelay: chatDelay,
		now:       time.Now,
		locks:     make(map[string]*sessionLock),
		chats:     make(map[string]*chatEntry),
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// sessionLock живёт в карте, пока его держит или ждёт хотя бы одна операция.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// lock захватывает мьютекс сессии и возвращает функцию освобождения.
// Последний освободивший удаляет запись из карты.
func (s *Service) lock(id string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.locksMu.Unlock()
	}
}

func (s *Service) load(ctx context.Context, id string) (*model.Session, error) {
	sess, err := s.repo.LoadSession(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

func (s *Service) save(ctx context.Context, sess *model.Session) error {
	if err := s.repo.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Service) customerSession(ctx context.Context, id string) (*model.Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.User == nil {
		return nil, ErrNotLoggedIn
	}
	if sess.User.Role != model.RoleCustomer {
		return nil, ErrForbidden
	}
	return sess, nil
}

// StartSessionCleanup запускает фоновое удаление сессий, не использовавшихся дольше ttl.
func (s *Service) StartSessionCleanup(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(cleanupInterval(ttl))
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanup(ctx, ttl)
			}
		}
	}()
}

func cleanupInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	return interval
}

func (s *Service) cleanup(ctx context.Context, ttl time.Duration) {
	cutoff := s.now().Add(-ttl)

	if sweeper, ok := s.repo.(Sweeper); ok {
		n, err := sweeper.DeleteSessionsBefore(ctx, cutoff)
		if err != nil {
			s.logger.Warn("session cleanup failed", zap.Error(err))
		} else if n > 0 {
			s.logger.Info("stale sessions removed", zap.Int64("count", n))
		}
	}

	s.chatsMu.Lock()
	for id, e := range s.chats {
		if e.lastSeen.Before(cutoff) {
			delete(s.chats, id)
		}
	}
	s.chatsMu.Unlock()
}
