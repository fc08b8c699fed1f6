package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/validation"
)

// ErrInvalidEmail возвращается при входе с некорректным адресом.
var ErrInvalidEmail = errors.New("invalid email")

// DeriveRole определяет роль по адресу: подстрока "admin" с учётом регистра даёт администратора.
// Пароль и токены не проверяются.
func DeriveRole(email string) model.Role {
	if strings.Contains(email, "admin") {
		return model.RoleAdmin
	}
	return model.RoleCustomer
}

// NewUser создаёт пользователя из введённого адреса.
func NewUser(email string) *model.User {
	name := email
	if at := strings.IndexByte(email, '@'); at >= 0 {
		name = email[:at]
	}

	return &model.User{
		ID:    email,
		Email: email,
		Name:  name,
		Role:  DeriveRole(email),
	}
}

// Login создаёт новую сессию для адреса. Предыдущая сессия браузера, если есть, удаляется.
func (s *Service) Login(ctx context.Context, previousID, email string) (*model.Session, error) {
	if !validation.IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	if previousID != "" {
		s.endSession(ctx, previousID)
	}

	sess := model.NewSession(uuid.NewString())
	sess.User = NewUser(email)

	if sess.User.Role == model.RoleCustomer {
		s.refreshBalance(ctx, sess)
	}

	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", zap.String("session", sess.ID), zap.String("role", string(sess.User.Role)))

	return sess, nil
}

// Logout сбрасывает пользователя, баланс, выбранный товар и режим каталога одной записью.
func (s *Service) Logout(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()

	sess, err := s.load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotLoggedIn) {
			return nil
		}
		return err
	}

	sess.Reset()
	if err := s.save(ctx, sess); err != nil {
		return err
	}

	s.dropChat(id)

	return nil
}

// Session возвращает текущее состояние сессии с вошедшим пользователем.
func (s *Service) Session(ctx context.Context, id string) (*model.Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.User == nil {
		return nil, ErrNotLoggedIn
	}
	return sess, nil
}

func (s *Service) endSession(ctx context.Context, id string) {
	unlock := s.lock(id)
	defer unlock()

	if err := s.repo.DeleteSession(ctx, id); err != nil {
		s.logger.Warn("delete previous session failed", zap.String("session", id), zap.Error(err))
	}
	s.dropChat(id)
}

// refreshBalance запрашивает баланс и при ошибке оставляет прежнее значение.
func (s *Service) refreshBalance(ctx context.Context, sess *model.Session) bool {
	balance, err := s.api.GetBalance(ctx, sess.User.Email)
	if err != nil {
		s.logger.Warn("balance fetch failed", zap.String("session", sess.ID), zap.Error(err))
		return false
	}

	sess.Balance = decimal.NewNullDecimal(balance)
	return true
}
