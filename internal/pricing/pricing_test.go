package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/dara-tech/gasmanagement-sub000/internal/domain"
	"github.com/dara-tech/gasmanagement-sub000/internal/store/memory"
)

func day(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestResolvePriceUsesFallbackWhenNoPricePoint(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	ft, err := repo.CreateFuelType(ctx, domain.FuelType{Name: "Diesel", FallbackPrice: 0.95})
	if err != nil {
		t.Fatalf("create fuel type: %v", err)
	}

	engine := NewEngine(repo)
	price, fallback, err := engine.ResolvePrice(ctx, ft.ID, day("2026-03-10"))
	if err != nil {
		t.Fatalf("resolve price: %v", err)
	}
	if !fallback {
		t.Fatalf("expected fallback price to be used")
	}
	if price != 0.95 {
		t.Fatalf("expected fallback 0.95, got %v", price)
	}
}

func TestResolvePricePicksLatestOnOrBeforeDate(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	ft, err := repo.CreateFuelType(ctx, domain.FuelType{Name: "Petrol 95", FallbackPrice: 1.10})
	if err != nil {
		t.Fatalf("create fuel type: %v", err)
	}
	for _, pp := range []struct {
		date  string
		price float64
	}{
		{"2026-03-01", 1.00},
		{"2026-03-05", 1.20},
		{"2026-03-20", 1.30},
	} {
		if _, err := repo.UpsertPricePoint(ctx, domain.PricePoint{FuelTypeID: ft.ID, Price: pp.price, Date: day(pp.date)}); err != nil {
			t.Fatalf("upsert price point: %v", err)
		}
	}

	engine := NewEngine(repo)

	price, fallback, err := engine.ResolvePrice(ctx, ft.ID, day("2026-03-10"))
	if err != nil {
		t.Fatalf("resolve price: %v", err)
	}
	if fallback {
		t.Fatalf("expected a price point, got fallback")
	}
	if price != 1.20 {
		t.Fatalf("expected latest price on or before date (1.20), got %v", price)
	}

	// Before the first point only the fallback applies.
	price, fallback, err = engine.ResolvePrice(ctx, ft.ID, day("2026-02-15"))
	if err != nil {
		t.Fatalf("resolve price: %v", err)
	}
	if !fallback || price != 1.10 {
		t.Fatalf("expected fallback 1.10 before first point, got %v (fallback=%v)", price, fallback)
	}
}

func TestAverageCostExcludesEntriesAfterCutoff(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	ft, _ := repo.CreateFuelType(ctx, domain.FuelType{Name: "Diesel"})
	pump, err := repo.CreatePump(ctx, domain.Pump{Number: 1, FuelTypeID: ft.ID})
	if err != nil {
		t.Fatalf("create pump: %v", err)
	}

	for _, entry := range []struct {
		date   string
		liters float64
		cost   float64
	}{
		{"2026-03-01", 100, 80},  // 0.80/L
		{"2026-03-10", 100, 100}, // 1.00/L
	} {
		_, err := repo.CreateStockEntry(ctx, domain.StockEntry{
			PumpID:     pump.ID,
			FuelTypeID: ft.ID,
			Liters:     entry.liters,
			TotalCost:  entry.cost,
			Date:       day(entry.date),
		})
		if err != nil {
			t.Fatalf("create stock entry: %v", err)
		}
	}

	engine := NewEngine(repo)

	cost, err := engine.AverageCost(ctx, pump.ID, day("2026-03-05"))
	if err != nil {
		t.Fatalf("average cost: %v", err)
	}
	if cost != 0.80 {
		t.Fatalf("expected cutoff to exclude later entry (0.80), got %v", cost)
	}

	cost, err = engine.AverageCost(ctx, pump.ID, time.Time{})
	if err != nil {
		t.Fatalf("average cost unbounded: %v", err)
	}
	if cost != 0.90 {
		t.Fatalf("expected blended cost 0.90 with no cutoff, got %v", cost)
	}
}

func TestAverageCostWithNoEntriesIsZero(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	ft, _ := repo.CreateFuelType(ctx, domain.FuelType{Name: "Diesel"})
	pump, _ := repo.CreatePump(ctx, domain.Pump{Number: 1, FuelTypeID: ft.ID})

	engine := NewEngine(repo)
	cost, err := engine.AverageCost(ctx, pump.ID, time.Time{})
	if err != nil {
		t.Fatalf("average cost: %v", err)
	}
	if cost != 0 {
		t.Fatalf("expected zero cost basis, got %v", cost)
	}
}

func TestApplyDiscountPercentage(t *testing.T) {
	amount, total := ApplyDiscount(100, domain.DiscountTypePercentage, 10)
	if amount != 10 {
		t.Fatalf("expected discount amount 10, got %v", amount)
	}
	if total != 90 {
		t.Fatalf("expected total 90, got %v", total)
	}
}

func TestApplyDiscountAmountClampsAtZero(t *testing.T) {
	amount, total := ApplyDiscount(50, domain.DiscountTypeAmount, 1000)
	if amount != 1000 {
		t.Fatalf("expected discount amount 1000, got %v", amount)
	}
	if total != 0 {
		t.Fatalf("expected total clamped to 0, got %v", total)
	}
}

func TestRound2(t *testing.T) {
	cases := map[float64]float64{
		1.006:   1.01,
		1.004:   1.00,
		26.999:  27.00,
		1234.56: 1234.56,
	}
	for input, want := range cases {
		if got := Round2(input); got != want {
			t.Fatalf("Round2(%v) = %v, want %v", input, got, want)
		}
	}
}
