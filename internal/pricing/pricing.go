// Package pricing computes effective product prices. It is pure: the caller
// supplies the reference instant, nothing is cached on the product, and the
// stored base price is never mutated.
package pricing

import (
	"time"

	"github.com/safar/go-shop-api/internal/models"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// Active reports whether the product's discount applies at the given instant.
// A discount applies only when the percentage is set and greater than zero,
// both window bounds are set, and now falls within [start, end] inclusive.
// A zero percentage with dates set is not a discount.
func Active(p *models.Product, now time.Time) bool {
	if p.DiscountPercentage == nil || !p.DiscountPercentage.IsPositive() {
		return false
	}
	if p.DiscountStart == nil || p.DiscountEnd == nil {
		return false
	}
	return !now.Before(*p.DiscountStart) && !now.After(*p.DiscountEnd)
}

// EffectivePrice returns the price actually charged at the given instant:
// price * (1 - pct/100) while the discount window is active, the base price
// otherwise. All arithmetic is decimal.
func EffectivePrice(p *models.Product, now time.Time) decimal.Decimal {
	if !Active(p, now) {
		return p.Price
	}
	factor := decimal.NewFromInt(1).Sub(p.DiscountPercentage.Div(oneHundred))
	return p.Price.Mul(factor)
}
