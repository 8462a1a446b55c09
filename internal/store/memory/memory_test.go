package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dara-tech/gasmanagement-sub000/internal/domain"
	"github.com/dara-tech/gasmanagement-sub000/internal/store"
)

func TestAdjustPumpStockRoundsAndClamps(t *testing.T) {
	s := New()
	ctx := context.Background()

	ft, _ := s.CreateFuelType(ctx, domain.FuelType{Name: "Diesel"})
	pump, err := s.CreatePump(ctx, domain.Pump{Number: 1, FuelTypeID: ft.ID, StockLiters: 10})
	if err != nil {
		t.Fatalf("create pump: %v", err)
	}

	level, err := s.AdjustPumpStock(ctx, pump.ID, 0.333)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if level != 10.33 {
		t.Fatalf("expected 10.33 after rounding, got %v", level)
	}

	level, err = s.AdjustPumpStock(ctx, pump.ID, -500)
	if err != nil {
		t.Fatalf("adjust below zero: %v", err)
	}
	if level != 0 {
		t.Fatalf("expected clamp at 0, got %v", level)
	}

	if _, err := s.AdjustPumpStock(ctx, "missing", 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown pump, got %v", err)
	}
}

func TestPumpNumberMustBeUnique(t *testing.T) {
	s := New()
	ctx := context.Background()

	ft, _ := s.CreateFuelType(ctx, domain.FuelType{Name: "Diesel"})
	if _, err := s.CreatePump(ctx, domain.Pump{Number: 3, FuelTypeID: ft.ID}); err != nil {
		t.Fatalf("create pump: %v", err)
	}
	if _, err := s.CreatePump(ctx, domain.Pump{Number: 3, FuelTypeID: ft.ID}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate number, got %v", err)
	}
}

func TestUpsertPricePointReplacesSameDay(t *testing.T) {
	s := New()
	ctx := context.Background()

	ft, _ := s.CreateFuelType(ctx, domain.FuelType{Name: "Diesel"})
	date := time.Date(2026, 4, 1, 15, 30, 0, 0, time.UTC)

	first, err := s.UpsertPricePoint(ctx, domain.PricePoint{FuelTypeID: ft.ID, Price: 1.05, Date: date})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := s.UpsertPricePoint(ctx, domain.PricePoint{FuelTypeID: ft.ID, Price: 1.15, Date: date})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("same-day upsert must keep row identity, got %s then %s", first.ID, second.ID)
	}

	points, err := s.ListPricePoints(ctx, ft.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(points) != 1 || points[0].Price != 1.15 {
		t.Fatalf("expected single point at 1.15, got %+v", points)
	}
}

func TestListTransactionsFiltersAndPages(t *testing.T) {
	s := New()
	ctx := context.Background()

	ft, _ := s.CreateFuelType(ctx, domain.FuelType{Name: "Diesel"})
	pumpA, _ := s.CreatePump(ctx, domain.Pump{Number: 1, FuelTypeID: ft.ID})
	pumpB, _ := s.CreatePump(ctx, domain.Pump{Number: 2, FuelTypeID: ft.ID})

	for i := 0; i < 5; i++ {
		pump := pumpA
		if i%2 == 1 {
			pump = pumpB
		}
		_, err := s.CreateTransaction(ctx, domain.Transaction{
			PumpID:     pump.ID,
			FuelTypeID: ft.ID,
			Liters:     10,
			Date:       time.Date(2026, 4, 1+i, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("create transaction %d: %v", i, err)
		}
	}

	byPump, total, err := s.ListTransactions(ctx, store.TransactionFilter{PumpID: pumpA.ID})
	if err != nil {
		t.Fatalf("filter by pump: %v", err)
	}
	if total != 3 || len(byPump) != 3 {
		t.Fatalf("expected 3 for pump A, got total=%d len=%d", total, len(byPump))
	}

	from := time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 4, 0, 0, 0, 0, time.UTC)
	ranged, total, err := s.ListTransactions(ctx, store.TransactionFilter{From: &from, To: &to})
	if err != nil {
		t.Fatalf("date range: %v", err)
	}
	if total != 2 || len(ranged) != 2 {
		t.Fatalf("expected 2 in range, got total=%d len=%d", total, len(ranged))
	}

	paged, total, err := s.ListTransactions(ctx, store.TransactionFilter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("paged: %v", err)
	}
	if total != 5 || len(paged) != 1 {
		t.Fatalf("expected total 5 with 1 on final page, got total=%d len=%d", total, len(paged))
	}
}

func TestSumStockEntriesThroughCutoff(t *testing.T) {
	s := New()
	ctx := context.Background()

	ft, _ := s.CreateFuelType(ctx, domain.FuelType{Name: "Diesel"})
	pump, _ := s.CreatePump(ctx, domain.Pump{Number: 1, FuelTypeID: ft.ID})

	for i, entry := range []struct {
		day    int
		liters float64
		cost   float64
	}{
		{1, 100, 80},
		{10, 50, 55},
	} {
		_, err := s.CreateStockEntry(ctx, domain.StockEntry{
			PumpID:     pump.ID,
			FuelTypeID: ft.ID,
			Liters:     entry.liters,
			TotalCost:  entry.cost,
			Date:       time.Date(2026, 4, entry.day, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("create entry %d: %v", i, err)
		}
	}

	liters, cost, err := s.SumStockEntriesThrough(ctx, pump.ID, time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if liters != 100 || cost != 80 {
		t.Fatalf("expected 100L/80 through cutoff, got %v/%v", liters, cost)
	}

	liters, cost, err = s.SumStockEntriesThrough(ctx, pump.ID, time.Time{})
	if err != nil {
		t.Fatalf("sum unbounded: %v", err)
	}
	if liters != 150 || cost != 135 {
		t.Fatalf("expected 150L/135 unbounded, got %v/%v", liters, cost)
	}
}

func TestSeededStoreHasFixtures(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	fuelTypes, err := s.ListFuelTypes(ctx)
	if err != nil {
		t.Fatalf("list fuel types: %v", err)
	}
	if len(fuelTypes) == 0 {
		t.Fatalf("expected seeded fuel types")
	}
	pumps, err := s.ListPumps(ctx)
	if err != nil {
		t.Fatalf("list pumps: %v", err)
	}
	if len(pumps) == 0 {
		t.Fatalf("expected seeded pumps")
	}
	if _, err := s.GetUser(ctx, "admin"); err != nil {
		t.Fatalf("expected seeded admin user: %v", err)
	}
}
