package pricing

import (
	"testing"
	"time"

	"github.com/safar/go-shop-api/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func product(price int64, pct *decimal.Decimal, start, end *time.Time) *models.Product {
	return &models.Product{
		Price:              decimal.NewFromInt(price),
		DiscountPercentage: pct,
		DiscountStart:      start,
		DiscountEnd:        end,
	}
}

func TestEffectivePriceNoDiscount(t *testing.T) {
	p := product(100, nil, nil, nil)

	now := time.Now()
	assert.False(t, Active(p, now))
	assert.True(t, EffectivePrice(p, now).Equal(decimal.NewFromInt(100)))
}

func TestEffectivePriceActiveWindow(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	start := now.Add(-24 * time.Hour)
	end := now.Add(24 * time.Hour)
	p := product(100, ptr(decimal.NewFromInt(20)), &start, &end)

	assert.True(t, Active(p, now))
	assert.True(t, EffectivePrice(p, now).Equal(decimal.NewFromInt(80)),
		"expected 80, got %s", EffectivePrice(p, now))
}

func TestEffectivePriceOutsideWindow(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	p := product(100, ptr(decimal.NewFromInt(20)), &start, &end)

	before := start.Add(-time.Second)
	after := end.Add(time.Second)

	assert.False(t, Active(p, before))
	assert.False(t, Active(p, after))
	assert.True(t, EffectivePrice(p, before).Equal(decimal.NewFromInt(100)))
	assert.True(t, EffectivePrice(p, after).Equal(decimal.NewFromInt(100)))
}

func TestWindowBoundsInclusive(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	p := product(200, ptr(decimal.NewFromInt(50)), &start, &end)

	assert.True(t, Active(p, start))
	assert.True(t, Active(p, end))
	assert.True(t, EffectivePrice(p, start).Equal(decimal.NewFromInt(100)))
	assert.True(t, EffectivePrice(p, end).Equal(decimal.NewFromInt(100)))
}

func TestZeroPercentageIsNotADiscount(t *testing.T) {
	now := time.Now()
	start := now.Add(-time.Hour)
	end := now.Add(time.Hour)
	p := product(100, ptr(decimal.Zero), &start, &end)

	assert.False(t, Active(p, now))
	assert.True(t, EffectivePrice(p, now).Equal(decimal.NewFromInt(100)))
}

func TestMissingDatesIsNotADiscount(t *testing.T) {
	now := time.Now()
	start := now.Add(-time.Hour)

	onlyStart := product(100, ptr(decimal.NewFromInt(10)), &start, nil)
	noDates := product(100, ptr(decimal.NewFromInt(10)), nil, nil)

	assert.False(t, Active(onlyStart, now))
	assert.False(t, Active(noDates, now))
}

func TestFractionalPercentageStaysDecimal(t *testing.T) {
	now := time.Now()
	start := now.Add(-time.Hour)
	end := now.Add(time.Hour)
	p := product(0, ptr(decimal.NewFromFloat(12.5)), &start, &end)
	p.Price = decimal.RequireFromString("19.99")

	got := EffectivePrice(p, now)
	want := decimal.RequireFromString("19.99").
		Mul(decimal.NewFromInt(1).Sub(decimal.RequireFromString("0.125")))
	assert.True(t, got.Equal(want), "expected %s, got %s", want, got)
}
