// Package pricing answers the three money questions behind every sale:
// what price is in effect on a date, what the fuel in a pump cost on
// average, and what a discount does to a total.
package pricing

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/dara-tech/gasmanagement-sub000/internal/domain"
	"github.com/dara-tech/gasmanagement-sub000/internal/store"
)

type Engine struct {
	repo store.Repository
}

func NewEngine(repo store.Repository) *Engine {
	return &Engine{repo: repo}
}

// ResolvePrice returns the unit price effective for the fuel type on the
// given date: the latest price point dated on or before that day, else the
// fuel type's fallback price. The fallback always exists (zero if unset),
// so a missing price point is not an error. The second return reports
// whether the fallback was used.
func (e *Engine) ResolvePrice(ctx context.Context, fuelTypeID string, date time.Time) (float64, bool, error) {
	day := domain.Day(date)
	point, err := e.repo.LatestPricePointThrough(ctx, fuelTypeID, day)
	if err == nil {
		return point.Price, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, false, err
	}

	fuelType, err := e.repo.GetFuelType(ctx, fuelTypeID)
	if err != nil {
		return 0, false, err
	}
	return fuelType.FallbackPrice, true, nil
}

// AverageCost computes the weighted-average purchase cost per liter from all
// stock entries for the pump dated on or before cutoff. Entries dated after
// the cutoff are excluded even if already recorded, so historical sales keep
// a stable cost basis regardless of later purchases. A zero cutoff includes
// every entry to date. Returns 0 when the pump has no qualifying entries.
func (e *Engine) AverageCost(ctx context.Context, pumpID string, cutoff time.Time) (float64, error) {
	if !cutoff.IsZero() {
		cutoff = domain.Day(cutoff)
	}
	liters, cost, err := e.repo.SumStockEntriesThrough(ctx, pumpID, cutoff)
	if err != nil {
		return 0, err
	}
	if liters <= 0 {
		return 0, nil
	}
	return cost / liters, nil
}

// ApplyDiscount resolves a discount spec against a pre-discount total. The
// final total is clamped at zero; the value itself is not range-checked here
// (negative or over-100 percentages are the caller's concern).
func ApplyDiscount(preTotal float64, discountType string, value float64) (discountAmount float64, finalTotal float64) {
	switch discountType {
	case domain.DiscountTypePercentage:
		discountAmount = preTotal * value / 100
	default:
		discountAmount = value
	}
	discountAmount = Round2(discountAmount)
	finalTotal = Round2(preTotal - discountAmount)
	if finalTotal < 0 {
		finalTotal = 0
	}
	return discountAmount, finalTotal
}

// Round2 rounds to 2 decimal places. Applied after every monetary or liter
// computation so drift cannot accumulate across repeated edits.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
