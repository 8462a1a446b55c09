package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/dara-tech/gasmanagement-sub000/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
)

// FieldErrors maps field names to human-readable problems.
type FieldErrors map[string]string

// ValidationError carries a field-keyed breakdown alongside the ErrValidation
// sentinel so handlers can match with errors.Is and extract fields with
// errors.As.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a single-field validation error.
func Invalid(field string, problem string) error {
	return &ValidationError{Fields: FieldErrors{field: problem}}
}

// StockEntryFilter narrows stock entry listings. Nil time bounds mean open
// ended; From and To are inclusive day bounds.
type StockEntryFilter struct {
	PumpID string
	From   *time.Time
	To     *time.Time
	Limit  int
}

// TransactionFilter narrows and pages transaction listings.
type TransactionFilter struct {
	PumpID string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

type Repository interface {
	CreateFuelType(ctx context.Context, ft domain.FuelType) (*domain.FuelType, error)
	GetFuelType(ctx context.Context, id string) (*domain.FuelType, error)
	ListFuelTypes(ctx context.Context) ([]domain.FuelType, error)
	UpdateFuelType(ctx context.Context, ft domain.FuelType) (*domain.FuelType, error)
	DeleteFuelType(ctx context.Context, id string) error
	CountPumpsByFuelType(ctx context.Context, fuelTypeID string) (int, error)

	UpsertPricePoint(ctx context.Context, pp domain.PricePoint) (*domain.PricePoint, error)
	ListPricePoints(ctx context.Context, fuelTypeID string) ([]domain.PricePoint, error)
	LatestPricePointThrough(ctx context.Context, fuelTypeID string, day time.Time) (*domain.PricePoint, error)

	CreatePump(ctx context.Context, pump domain.Pump) (*domain.Pump, error)
	GetPump(ctx context.Context, id string) (*domain.Pump, error)
	ListPumps(ctx context.Context) ([]domain.Pump, error)
	UpdatePump(ctx context.Context, pump domain.Pump) (*domain.Pump, error)
	DeletePump(ctx context.Context, id string) error
	// AdjustPumpStock applies delta to the pump's stock level, rounds the
	// result to 2 decimals, clamps it at zero and returns the new level.
	AdjustPumpStock(ctx context.Context, pumpID string, delta float64) (float64, error)

	CreateStockEntry(ctx context.Context, entry domain.StockEntry) (*domain.StockEntry, error)
	GetStockEntry(ctx context.Context, id string) (*domain.StockEntry, error)
	UpdateStockEntry(ctx context.Context, entry domain.StockEntry) (*domain.StockEntry, error)
	DeleteStockEntry(ctx context.Context, id string) error
	ListStockEntries(ctx context.Context, filter StockEntryFilter) ([]domain.StockEntry, error)
	// SumStockEntriesThrough returns total liters purchased and total cost
	// across all entries for the pump dated on or before cutoff. A zero
	// cutoff means no bound.
	SumStockEntriesThrough(ctx context.Context, pumpID string, cutoff time.Time) (liters float64, cost float64, err error)

	CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	// ListTransactions returns the filtered page plus the total match count.
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]domain.Transaction, int, error)
	GetSalesSummary(ctx context.Context, from *time.Time, to *time.Time) (domain.SalesSummary, error)
	ListRecentTransactions(ctx context.Context, limit int) ([]domain.Transaction, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUser(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
