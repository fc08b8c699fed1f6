// Package model содержит доменные сущности витрины магазина.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role описывает роль пользователя в витрине.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// User представляет вошедшего пользователя. Живёт только в рамках сессии.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// IsAdmin сообщает, открыт ли пользователю административный отчёт.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Product описывает товар из каталога внешнего API.
// Цена приходит то строкой, то числом, decimal принимает оба варианта.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Region      string          `json:"region"`
	CreatedAt   *time.Time      `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time      `json:"updatedAt,omitempty"`
}

// Purchase описывает запись о покупке со встроенным снимком товара.
type Purchase struct {
	ID         string          `json:"id"`
	ProductID  string          `json:"productId"`
	CustomerID string          `json:"customerId"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	CreatedAt  *time.Time      `json:"createdAt,omitempty"`
	UpdatedAt  *time.Time      `json:"updatedAt,omitempty"`
	Product    *Product        `json:"Product,omitempty"`
}

// PurchaseRequest содержит тело запроса на создание покупки.
type PurchaseRequest struct {
	ProductID  string `json:"productId"`
	CustomerID string `json:"customerId"`
	Quantity   int    `json:"quantity"`
}

// PurchaseReceipt описывает ответ API на создание покупки.
// NewBalance невалиден, если сервер не вернул новый баланс.
type PurchaseReceipt struct {
	Purchase
	NewBalance decimal.NullDecimal `json:"newBalance"`
}

// ViewMode определяет, что показывает каталог: все товары или покупки клиента.
type ViewMode string

const (
	ViewCatalog   ViewMode = "catalog"
	ViewPurchases ViewMode = "purchases"
)

// Valid сообщает, является ли режим известным.
func (m ViewMode) Valid() bool {
	return m == ViewCatalog || m == ViewPurchases
}

// Sender описывает автора сообщения в чате поддержки.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// ChatMessage описывает одно сообщение чата поддержки. Никуда не сохраняется.
type ChatMessage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Options   []string  `json:"options,omitempty"`
}

// SalesSummary содержит итоговые показатели продаж.
type SalesSummary struct {
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	TotalPurchases  decimal.Decimal `json:"total_purchases"`
	AveragePurchase decimal.Decimal `json:"average_purchase"`
}

// ProductRef описывает краткие сведения о товаре внутри отчёта.
type ProductRef struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// DailyStat содержит показатели продаж за один день.
type DailyStat struct {
	Date            string          `json:"date"`
	TotalPurchases  decimal.Decimal `json:"total_purchases"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	AveragePurchase decimal.Decimal `json:"average_purchase"`
	Product         *ProductRef     `json:"Product,omitempty"`
}

// ProductStat содержит показатели продаж одного товара.
type ProductStat struct {
	Product        ProductRef      `json:"product"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	TotalPurchases decimal.Decimal `json:"total_purchases"`
}

// SalesReport описывает отчёт о продажах для администратора.
type SalesReport struct {
	Summary      SalesSummary  `json:"summary"`
	DailyStats   []DailyStat   `json:"daily_stats"`
	ProductStats []ProductStat `json:"product_stats"`
}
