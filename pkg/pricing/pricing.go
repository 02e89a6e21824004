// Package pricing holds the storefront arithmetic shared by the API and the
// client: sale discounts, line totals and the checkout tax.
package pricing

import (
	"fmt"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/shopspring/decimal"
)

var DefaultTaxRate = decimal.RequireFromString("0.08")

var hundred = decimal.NewFromInt(100)

func ParseTaxRate(s string) (decimal.Decimal, error) {
	if s == "" {
		return DefaultTaxRate, nil
	}
	rate, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid tax rate %q: %w", s, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Decimal{}, fmt.Errorf("tax rate %s out of range [0,1)", rate)
	}
	return rate, nil
}

// DiscountPercent is round((price - sale) / price * 100), or 0 when there is
// no sale price below the list price.
func DiscountPercent(price models.Money, sale models.NullMoney) int {
	salePrice, ok := sale.Money()
	if !ok || !price.IsPositive() || !salePrice.LessThan(price.Decimal) {
		return 0
	}
	pct := price.Sub(salePrice.Decimal).Div(price.Decimal).Mul(hundred).Round(0)
	return int(pct.IntPart())
}

// ValidatePrices requires a positive list price and, when set, a positive
// sale price not above it.
func ValidatePrices(price models.Money, sale models.NullMoney) error {
	if !price.IsPositive() {
		return apperr.New(apperr.Validation, "price must be positive")
	}
	if s, ok := sale.Money(); ok && (!s.IsPositive() || s.GreaterThan(price.Decimal)) {
		return apperr.New(apperr.Validation, "salePrice must be positive and not above price")
	}
	return nil
}

// DiscountBadge returns e.g. "20% OFF", or "" when no badge is shown.
func DiscountBadge(p *models.Product) string {
	pct := DiscountPercent(p.Price, p.SalePrice)
	if pct <= 0 {
		return ""
	}
	return fmt.Sprintf("%d%% OFF", pct)
}

type Line struct {
	Price    models.Money
	Quantity int
}

func (l Line) Total() models.Money {
	return l.Price.Mul(l.Quantity)
}

type Summary struct {
	Subtotal models.Money `json:"subtotal"`
	Tax      models.Money `json:"tax"`
	Total    models.Money `json:"total"`
}

// Summarize computes subtotal, tax rounded to cents, and total = subtotal + tax.
func Summarize(lines []Line, taxRate decimal.Decimal) Summary {
	subtotal := models.NewMoney(decimal.Zero)
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total())
	}
	tax := models.NewMoney(subtotal.Decimal.Mul(taxRate))
	return Summary{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

// CartLines prices cart rows at each product's effective price. Rows without
// a loaded product are skipped.
func CartLines(items []models.CartItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		if it.Product == nil {
			continue
		}
		lines = append(lines, Line{Price: it.Product.EffectivePrice(), Quantity: it.Quantity})
	}
	return lines
}

func StockLabel(inStock int) string {
	if inStock > 0 {
		return "In Stock"
	}
	return "Out of Stock"
}

// ClampQuantity keeps a stepper value within [1, inStock].
func ClampQuantity(q, inStock int) int {
	if inStock < 1 {
		return 0
	}
	if q < 1 {
		return 1
	}
	if q > inStock {
		return inStock
	}
	return q
}
