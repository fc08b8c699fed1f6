package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CatalogState хранит последний результат загрузки каталога для сессии.
type CatalogState struct {
	Mode     ViewMode  `json:"mode"`
	Owner    string    `json:"owner"`
	Loaded   bool      `json:"loaded"`
	Items    []Product `json:"items"`
	Dropped  int       `json:"dropped,omitempty"`
	Error    string    `json:"error,omitempty"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Fresh сообщает, соответствует ли загруженный список текущему режиму и пользователю.
// Список, загрузка которого завершилась ошибкой, свежим не считается.
func (c *CatalogState) Fresh(mode ViewMode, owner string) bool {
	return c.Loaded && c.Error == "" && c.Mode == mode && c.Owner == owner
}

// Find ищет товар в загруженном списке.
func (c *CatalogState) Find(productID string) (Product, bool) {
	for _, p := range c.Items {
		if p.ID == productID {
			return p, true
		}
	}
	return Product{}, false
}

// Session содержит всё состояние приложения, принадлежащее одному браузеру.
// Каждым полем владеет ровно один компонент сервиса.
type Session struct {
	ID        string              `json:"id"`
	User      *User               `json:"user,omitempty"`
	Balance   decimal.NullDecimal `json:"balance"`
	ViewMode  ViewMode            `json:"view_mode"`
	Selected  *Product            `json:"selected,omitempty"`
	Catalog   CatalogState        `json:"catalog"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// NewSession создаёт пустую сессию с указанным идентификатором.
func NewSession(id string) *Session {
	return &Session{
		ID:       id,
		ViewMode: ViewCatalog,
	}
}

// Reset одной операцией сбрасывает пользователя и всё зависящее от него состояние.
func (s *Session) Reset() {
	*s = Session{
		ID:        s.ID,
		ViewMode:  ViewCatalog,
		UpdatedAt: s.UpdatedAt,
	}
}

// Clone возвращает копию сессии, не разделяющую память с оригиналом.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	c := *s
	if s.User != nil {
		u := *s.User
		c.User = &u
	}
	if s.Selected != nil {
		p := *s.Selected
		c.Selected = &p
	}
	if s.Catalog.Items != nil {
		c.Catalog.Items = make([]Product, len(s.Catalog.Items))
		copy(c.Catalog.Items, s.Catalog.Items)
	}

	return &c
}
