package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/dara-tech/gasmanagement-sub000/internal/domain"
)

func TestAdjustPumpStockClampsAtZero(t *testing.T) {
	databaseURL := os.Getenv("GASMANAGEMENT_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set GASMANAGEMENT_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	ftID := fmt.Sprintf("ft-it-%d", stamp)
	pumpID := fmt.Sprintf("pump-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM pumps WHERE id = $1`, pumpID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM fuel_types WHERE id = $1`, ftID)
	})

	if _, err := s.CreateFuelType(ctx, domain.FuelType{ID: ftID, Name: fmt.Sprintf("Diesel IT %d", stamp)}); err != nil {
		t.Fatalf("create fuel type: %v", err)
	}
	pump, err := s.CreatePump(ctx, domain.Pump{ID: pumpID, Number: int(stamp%100000) + 1000, FuelTypeID: ftID, StockLiters: 50})
	if err != nil {
		t.Fatalf("create pump: %v", err)
	}

	level, err := s.AdjustPumpStock(ctx, pump.ID, 0.333)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if level != 50.33 {
		t.Fatalf("expected 50.33 after rounding, got %v", level)
	}

	level, err = s.AdjustPumpStock(ctx, pump.ID, -500)
	if err != nil {
		t.Fatalf("adjust below zero: %v", err)
	}
	if level != 0 {
		t.Fatalf("expected clamp at 0, got %v", level)
	}
}
