package service

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/backend"
	"github.com/mmeshcher/storefront/internal/model"
)

const (
	purchaseSuccessMessage = "Purchase completed successfully!"
	purchaseFailureMessage = "Could not complete the purchase"
)

// BalanceSource описывает, откуда взят баланс после покупки.
type BalanceSource string

const (
	BalanceFromResponse BalanceSource = "response"
	BalanceFetched      BalanceSource = "fetched"
	BalanceUnchanged    BalanceSource = "unchanged"
)

// PurchaseResult описывает итог покупки и уведомление для пользователя.
type PurchaseResult struct {
	OK            bool                `json:"ok"`
	Notice        string              `json:"notice"`
	Balance       decimal.NullDecimal `json:"balance"`
	BalanceSource BalanceSource       `json:"balance_source,omitempty"`
	Catalog       *model.CatalogState `json:"catalog,omitempty"`
	// Err содержит ошибку API при неудачной покупке.
	Err error `json:"-"`
}

// Purchase покупает одну единицу товара из каталога.
//
// Новый баланс берётся из ответа, а если его там нет, запрашивается отдельно;
// ошибка этого запроса оставляет баланс прежним. После успешной покупки список
// всегда загружается заново. Повторы и дедупликация не выполняются.
func (s *Service) Purchase(ctx context.Context, id, productID string) (*PurchaseResult, error) {
	unlock := s.lock(id)
	defer unlock()

	sess, err := s.customerSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.ViewMode != model.ViewCatalog {
		return nil, ErrPurchaseUnavailable
	}

	if !sess.Catalog.Fresh(sess.ViewMode, sess.User.ID) {
		s.refreshCatalog(ctx, sess)
	}

	product, ok := sess.Catalog.Find(productID)
	if !ok {
		return nil, ErrProductNotListed
	}

	receipt, err := s.api.CreatePurchase(ctx, model.PurchaseRequest{
		ProductID:  product.ID,
		CustomerID: sess.User.ID,
		Quantity:   1,
	})
	if err != nil {
		s.logger.Error("purchase failed",
			zap.String("session", sess.ID),
			zap.String("product", product.ID),
			zap.Error(err),
		)

		notice := backend.ServerMessage(err)
		if notice == "" {
			notice = purchaseFailureMessage
		}

		return &PurchaseResult{
			OK:      false,
			Notice:  notice,
			Balance: sess.Balance,
			Err:     err,
		}, nil
	}

	source := BalanceUnchanged
	if receipt.NewBalance.Valid {
		sess.Balance = receipt.NewBalance
		source = BalanceFromResponse
	} else if s.refreshBalance(ctx, sess) {
		source = BalanceFetched
	}

	s.refreshCatalog(ctx, sess)

	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.Info("purchase completed",
		zap.String("session", sess.ID),
		zap.String("product", product.ID),
		zap.String("balance_source", string(source)),
	)

	return &PurchaseResult{
		OK:            true,
		Notice:        purchaseSuccessMessage,
		Balance:       sess.Balance,
		BalanceSource: source,
		Catalog:       &sess.Catalog,
	}, nil
}
