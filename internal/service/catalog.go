package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/backend"
	"github.com/mmeshcher/storefront/internal/chat"
	"github.com/mmeshcher/storefront/internal/model"
)

const catalogErrorMessage = "Could not load products"

// Catalog возвращает список для текущего режима. Список загружается заново,
// если с прошлой загрузки сменились режим или пользователь, если она не удалась
// или если refresh задан (страница открыта заново).
func (s *Service) Catalog(ctx context.Context, id string, refresh bool) (*model.CatalogState, error) {
	unlock := s.lock(id)
	defer unlock()

	sess, err := s.customerSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if !refresh && sess.Catalog.Fresh(sess.ViewMode, sess.User.ID) {
		return &sess.Catalog, nil
	}

	s.refreshCatalog(ctx, sess)
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	return &sess.Catalog, nil
}

// SetViewMode переключает каталог между всеми товарами и покупками клиента.
func (s *Service) SetViewMode(ctx context.Context, id string, mode model.ViewMode) (*model.CatalogState, error) {
	if !mode.Valid() {
		return nil, ErrInvalidViewMode
	}

	unlock := s.lock(id)
	defer unlock()

	sess, err := s.customerSession(ctx, id)
	if err != nil {
		return nil, err
	}

	sess.ViewMode = mode
	if !sess.Catalog.Fresh(mode, sess.User.ID) {
		s.refreshCatalog(ctx, sess)
	}

	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	return &sess.Catalog, nil
}

// SelectProduct делает товар из показанного списка выбранным и начинает о нём разговор в чате.
func (s *Service) SelectProduct(ctx context.Context, id, productID string) (*model.Product, error) {
	unlock := s.lock(id)
	defer unlock()

	sess, err := s.customerSession(ctx, id)
	if err != nil {
		return nil, err
	}

	product, ok := sess.Catalog.Find(productID)
	if !ok {
		return nil, ErrProductNotListed
	}

	sess.Selected = &product
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	if err := s.chatMachine(id).Dispatch(chat.ProductSelected{Product: product}); err != nil {
		return nil, err
	}

	return &product, nil
}

// refreshCatalog загружает список для текущего режима. При ошибке смешанного
// списка не бывает: прежний список остаётся только если он того же режима и пользователя.
func (s *Service) refreshCatalog(ctx context.Context, sess *model.Session) {
	mode, owner := sess.ViewMode, sess.User.ID
	sameKey := sess.Catalog.Mode == mode && sess.Catalog.Owner == owner

	items, dropped, err := s.fetchCollection(ctx, mode, owner)
	if err != nil {
		s.logger.Error("catalog fetch failed",
			zap.String("session", sess.ID),
			zap.String("mode", string(mode)),
			zap.Error(err),
		)

		if !sameKey {
			sess.Catalog.Items = nil
			sess.Catalog.Dropped = 0
		}
		sess.Catalog.Mode = mode
		sess.Catalog.Owner = owner
		sess.Catalog.Loaded = true
		sess.Catalog.Error = catalogErrorText(err)
		return
	}

	sess.Catalog = model.CatalogState{
		Mode:     mode,
		Owner:    owner,
		Loaded:   true,
		Items:    items,
		Dropped:  dropped,
		LoadedAt: s.now().UTC(),
	}
}

func (s *Service) fetchCollection(ctx context.Context, mode model.ViewMode, customerID string) ([]model.Product, int, error) {
	if mode == model.ViewCatalog {
		products, err := s.api.ListProducts(ctx)
		if err != nil {
			return nil, 0, err
		}
		if products == nil {
			products = []model.Product{}
		}
		return products, 0, nil
	}

	purchases, err := s.api.ListPurchases(ctx, customerID)
	if err != nil {
		return nil, 0, err
	}

	products, dropped := unwrapPurchases(purchases)
	if dropped > 0 {
		s.logger.Warn("purchase records without product dropped",
			zap.String("customer", customerID),
			zap.Int("dropped", dropped),
		)
	}

	return products, dropped, nil
}

// unwrapPurchases извлекает встроенные товары; записи без товара отбрасываются.
func unwrapPurchases(purchases []model.Purchase) ([]model.Product, int) {
	products := make([]model.Product, 0, len(purchases))
	dropped := 0

	for _, p := range purchases {
		if p.Product == nil {
			dropped++
			continue
		}
		products = append(products, *p.Product)
	}

	return products, dropped
}

func catalogErrorText(err error) string {
	if msg := backend.ServerMessage(err); msg != "" {
		return msg
	}
	return catalogErrorMessage
}
