package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mmeshcher/storefront/internal/model"
)

// ChartKind определяет, по чему строится столбчатая диаграмма отчёта.
type ChartKind string

const (
	ChartByDay     ChartKind = "day"
	ChartByProduct ChartKind = "product"
)

// ErrInvalidChart возвращается при неизвестном виде диаграммы.
var ErrInvalidChart = errors.New("invalid chart kind")

// ReportTotals содержит итоги продаж в готовом к показу виде.
type ReportTotals struct {
	Revenue   string `json:"revenue"`
	Purchases string `json:"purchases"`
	Average   string `json:"average"`
}

// ChartBar описывает один столбец диаграммы. Scale нормирован по максимальной выручке.
type ChartBar struct {
	Label     string          `json:"label"`
	Revenue   decimal.Decimal `json:"revenue"`
	Purchases decimal.Decimal `json:"purchases"`
	Caption   string          `json:"caption"`
	Scale     float64         `json:"scale"`
}

// ProductRow описывает строку таблицы по товарам.
type ProductRow struct {
	Name      string `json:"name"`
	Price     string `json:"price"`
	Purchases string `json:"purchases"`
	Revenue   string `json:"revenue"`
}

// ReportView описывает отчёт для административной панели.
type ReportView struct {
	Totals   ReportTotals `json:"totals"`
	Chart    ChartKind    `json:"chart"`
	Bars     []ChartBar   `json:"bars"`
	Products []ProductRow `json:"products"`
}

// SalesReport загружает отчёт о продажах и готовит его к показу. Доступен только администратору.
// Частично полученный отчёт не показывается.
func (s *Service) SalesReport(ctx context.Context, id string, kind ChartKind) (*ReportView, error) {
	if kind == "" {
		kind = ChartByDay
	}
	if kind != ChartByDay && kind != ChartByProduct {
		return nil, ErrInvalidChart
	}

	sess, err := s.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.User.IsAdmin() {
		return nil, ErrForbidden
	}

	report, err := s.api.GetSalesReport(ctx)
	if err != nil {
		s.logger.Error("sales report fetch failed", zap.String("session", id), zap.Error(err))
		return nil, err
	}

	return buildReportView(report, kind), nil
}

func buildReportView(r *model.SalesReport, kind ChartKind) *ReportView {
	view := &ReportView{
		Totals: ReportTotals{
			Revenue:   formatBRL(r.Summary.TotalRevenue),
			Purchases: formatCount(r.Summary.TotalPurchases),
			Average:   formatBRL(r.Summary.AveragePurchase),
		},
		Chart:    kind,
		Bars:     []ChartBar{},
		Products: make([]ProductRow, 0, len(r.ProductStats)),
	}

	switch kind {
	case ChartByProduct:
		for _, ps := range r.ProductStats {
			view.Bars = append(view.Bars, ChartBar{
				Label:     ps.Product.Name,
				Revenue:   ps.TotalRevenue,
				Purchases: ps.TotalPurchases,
			})
		}
	default:
		for _, ds := range r.DailyStats {
			view.Bars = append(view.Bars, ChartBar{
				Label:     formatDay(ds.Date),
				Revenue:   ds.TotalRevenue,
				Purchases: ds.TotalPurchases,
			})
		}
	}

	maxRevenue := decimal.Zero
	for _, b := range view.Bars {
		if b.Revenue.GreaterThan(maxRevenue) {
			maxRevenue = b.Revenue
		}
	}
	for i := range view.Bars {
		view.Bars[i].Caption = formatBRL(view.Bars[i].Revenue)
		if maxRevenue.IsPositive() {
			view.Bars[i].Scale = view.Bars[i].Revenue.Div(maxRevenue).InexactFloat64()
		}
	}

	for _, ps := range r.ProductStats {
		view.Products = append(view.Products, ProductRow{
			Name:      ps.Product.Name,
			Price:     formatBRL(ps.Product.Price),
			Purchases: formatCount(ps.TotalPurchases),
			Revenue:   formatBRL(ps.TotalRevenue),
		})
	}

	return view
}

var brlPrinter = message.NewPrinter(language.BrazilianPortuguese)

// formatCount форматирует количество покупок по локали pt-BR.
func formatCount(v decimal.Decimal) string {
	if v.IsInteger() {
		if n, err := strconv.ParseInt(v.String(), 10, 64); err == nil {
			return brlPrinter.Sprintf("%d", n)
		}
	}
	return v.String()
}

// formatBRL форматирует сумму как "R$ 1.234,56" без перехода через float64.
func formatBRL(v decimal.Decimal) string {
	sign := ""
	if v.Round(2).IsNegative() {
		sign = "-"
	}

	fixed := v.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	return "R$ " + sign + groupThousands(intPart) + "," + frac
}

// groupThousands расставляет точки между разрядами, как принято в pt-BR.
func groupThousands(digits string) string {
	var b strings.Builder
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte('.')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

var dayLayouts = []string{time.RFC3339, "2006-01-02T15:04:05.000Z", "2006-01-02"}

func formatDay(raw string) string {
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("02/01/2006")
		}
	}
	return raw
}
