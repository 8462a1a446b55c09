package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dara-tech/gasmanagement-sub000/internal/cache"
	"github.com/dara-tech/gasmanagement-sub000/internal/domain"
	"github.com/dara-tech/gasmanagement-sub000/internal/ledger"
	"github.com/dara-tech/gasmanagement-sub000/internal/pricing"
	"github.com/dara-tech/gasmanagement-sub000/internal/store"
)

// ErrAdminRequired marks mutations attempted without the admin role.
var ErrAdminRequired = errors.New("admin role required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo     store.Repository
	pricing  *pricing.Engine
	ledger   *ledger.Ledger
	cache    cache.DashboardCache
	cacheTTL time.Duration
}

func New(repo store.Repository, dashCache cache.DashboardCache, cacheTTL time.Duration) *Service {
	if dashCache == nil {
		dashCache = cache.NewNoop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}

	return &Service{
		repo:     repo,
		pricing:  pricing.NewEngine(repo),
		ledger:   ledger.New(repo),
		cache:    dashCache,
		cacheTTL: cacheTTL,
	}
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrAdminRequired
	}
	return nil
}

// parseDay accepts "2006-01-02" or RFC3339 and truncates to midnight UTC.
// An empty value means today.
func parseDay(field string, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return domain.Day(time.Now()), nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return domain.Day(t), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return domain.Day(t), nil
	}
	return time.Time{}, store.Invalid(field, "must be YYYY-MM-DD or RFC3339")
}

// --- fuel types ---

func (s *Service) ListFuelTypes(ctx context.Context) ([]domain.FuelType, error) {
	return s.repo.ListFuelTypes(ctx)
}

func (s *Service) GetFuelType(ctx context.Context, id string) (domain.FuelType, error) {
	ft, err := s.repo.GetFuelType(ctx, id)
	if err != nil {
		return domain.FuelType{}, err
	}
	return *ft, nil
}

func (s *Service) CreateFuelType(ctx context.Context, req domain.FuelTypeCreateRequest) (domain.FuelType, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.FuelType{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.FuelType{}, store.Invalid("name", "required")
	}
	if req.FallbackPrice < 0 {
		return domain.FuelType{}, store.Invalid("fallback_price", "must not be negative")
	}
	if req.LitersPerTon < 0 {
		return domain.FuelType{}, store.Invalid("liters_per_ton", "must not be negative")
	}

	created, err := s.repo.CreateFuelType(ctx, domain.FuelType{
		Name:          req.Name,
		Unit:          strings.TrimSpace(req.Unit),
		FallbackPrice: pricing.Round2(req.FallbackPrice),
		LitersPerTon:  req.LitersPerTon,
	})
	if err != nil {
		return domain.FuelType{}, err
	}
	return *created, nil
}

func (s *Service) UpdateFuelType(ctx context.Context, id string, req domain.FuelTypeUpdateRequest) (domain.FuelType, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.FuelType{}, err
	}

	existing, err := s.repo.GetFuelType(ctx, id)
	if err != nil {
		return domain.FuelType{}, err
	}

	ft := *existing
	if req.Name != nil {
		ft.Name = strings.TrimSpace(*req.Name)
	}
	if req.Unit != nil {
		ft.Unit = strings.TrimSpace(*req.Unit)
	}
	if req.FallbackPrice != nil {
		if *req.FallbackPrice < 0 {
			return domain.FuelType{}, store.Invalid("fallback_price", "must not be negative")
		}
		ft.FallbackPrice = pricing.Round2(*req.FallbackPrice)
	}
	if req.LitersPerTon != nil {
		if *req.LitersPerTon < 0 {
			return domain.FuelType{}, store.Invalid("liters_per_ton", "must not be negative")
		}
		ft.LitersPerTon = *req.LitersPerTon
	}

	updated, err := s.repo.UpdateFuelType(ctx, ft)
	if err != nil {
		return domain.FuelType{}, err
	}
	return *updated, nil
}

func (s *Service) DeleteFuelType(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}

	count, err := s.repo.CountPumpsByFuelType(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: fuel type is assigned to %d pump(s)", store.ErrConflict, count)
	}
	return s.repo.DeleteFuelType(ctx, id)
}

// --- prices ---

func (s *Service) SetPrice(ctx context.Context, fuelTypeID string, req domain.SetPriceRequest) (domain.PricePoint, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.PricePoint{}, err
	}

	if req.Price <= 0 {
		return domain.PricePoint{}, store.Invalid("price", "must be positive")
	}
	date, err := parseDay("date", req.Date)
	if err != nil {
		return domain.PricePoint{}, err
	}
	if _, err := s.repo.GetFuelType(ctx, fuelTypeID); err != nil {
		return domain.PricePoint{}, err
	}

	saved, err := s.repo.UpsertPricePoint(ctx, domain.PricePoint{
		FuelTypeID: fuelTypeID,
		Price:      pricing.Round2(req.Price),
		Date:       date,
		Notes:      strings.TrimSpace(req.Notes),
	})
	if err != nil {
		return domain.PricePoint{}, err
	}
	return *saved, nil
}

func (s *Service) ListPrices(ctx context.Context, fuelTypeID string) ([]domain.PricePoint, error) {
	if _, err := s.repo.GetFuelType(ctx, fuelTypeID); err != nil {
		return nil, err
	}
	return s.repo.ListPricePoints(ctx, fuelTypeID)
}

func (s *Service) EffectivePrice(ctx context.Context, fuelTypeID string, dateStr string) (domain.EffectivePriceResponse, error) {
	date, err := parseDay("date", dateStr)
	if err != nil {
		return domain.EffectivePriceResponse{}, err
	}
	if _, err := s.repo.GetFuelType(ctx, fuelTypeID); err != nil {
		return domain.EffectivePriceResponse{}, err
	}

	price, fallback, err := s.pricing.ResolvePrice(ctx, fuelTypeID, date)
	if err != nil {
		return domain.EffectivePriceResponse{}, err
	}
	return domain.EffectivePriceResponse{
		FuelTypeID: fuelTypeID,
		Date:       date.Format("2006-01-02"),
		Price:      price,
		Fallback:   fallback,
	}, nil
}

// --- pumps ---

func (s *Service) ListPumps(ctx context.Context) ([]domain.Pump, error) {
	return s.repo.ListPumps(ctx)
}

func (s *Service) GetPump(ctx context.Context, id string) (domain.Pump, error) {
	pump, err := s.repo.GetPump(ctx, id)
	if err != nil {
		return domain.Pump{}, err
	}
	return *pump, nil
}

func (s *Service) CreatePump(ctx context.Context, req domain.PumpCreateRequest) (domain.Pump, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Pump{}, err
	}

	if req.Number < 1 {
		return domain.Pump{}, store.Invalid("number", "must be positive")
	}
	if req.InitialStock < 0 {
		return domain.Pump{}, store.Invalid("initial_stock", "must not be negative")
	}
	status := req.Status
	if status == "" {
		status = domain.PumpStatusActive
	}
	if status != domain.PumpStatusActive && status != domain.PumpStatusInactive {
		return domain.Pump{}, store.Invalid("status", "must be active or inactive")
	}
	if _, err := s.repo.GetFuelType(ctx, req.FuelTypeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Pump{}, store.Invalid("fuel_type_id", "unknown fuel type")
		}
		return domain.Pump{}, err
	}

	created, err := s.repo.CreatePump(ctx, domain.Pump{
		Number:      req.Number,
		FuelTypeID:  req.FuelTypeID,
		Status:      status,
		StockLiters: pricing.Round2(req.InitialStock),
	})
	if err != nil {
		return domain.Pump{}, err
	}
	return *created, nil
}

func (s *Service) UpdatePump(ctx context.Context, id string, req domain.PumpUpdateRequest) (domain.Pump, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Pump{}, err
	}

	existing, err := s.repo.GetPump(ctx, id)
	if err != nil {
		return domain.Pump{}, err
	}

	pump := *existing
	if req.Number != nil {
		if *req.Number < 1 {
			return domain.Pump{}, store.Invalid("number", "must be positive")
		}
		pump.Number = *req.Number
	}
	if req.FuelTypeID != nil {
		if _, err := s.repo.GetFuelType(ctx, *req.FuelTypeID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Pump{}, store.Invalid("fuel_type_id", "unknown fuel type")
			}
			return domain.Pump{}, err
		}
		pump.FuelTypeID = *req.FuelTypeID
	}
	if req.Status != nil {
		if *req.Status != domain.PumpStatusActive && *req.Status != domain.PumpStatusInactive {
			return domain.Pump{}, store.Invalid("status", "must be active or inactive")
		}
		pump.Status = *req.Status
	}

	updated, err := s.repo.UpdatePump(ctx, pump)
	if err != nil {
		return domain.Pump{}, err
	}
	return *updated, nil
}

func (s *Service) DeletePump(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	return s.repo.DeletePump(ctx, id)
}

// --- stock entries ---

func (s *Service) CreateStockEntry(ctx context.Context, req domain.StockEntryCreateRequest) (domain.StockEntry, error) {
	if req.Liters <= 0 {
		return domain.StockEntry{}, store.Invalid("liters", "must be positive")
	}
	if req.PricePerLiter < 0 {
		return domain.StockEntry{}, store.Invalid("price_per_liter", "must not be negative")
	}
	date, err := parseDay("date", req.Date)
	if err != nil {
		return domain.StockEntry{}, err
	}

	var created *domain.StockEntry
	err = s.ledger.Serialize(req.PumpID, func() error {
		pump, err := s.repo.GetPump(ctx, req.PumpID)
		if err != nil {
			return err
		}

		liters := pricing.Round2(req.Liters)
		entry := domain.StockEntry{
			PumpID:        pump.ID,
			FuelTypeID:    pump.FuelTypeID,
			Liters:        liters,
			PricePerLiter: req.PricePerLiter,
			TotalCost:     pricing.Round2(liters * req.PricePerLiter),
			Date:          date,
			Notes:         strings.TrimSpace(req.Notes),
		}
		created, err = s.repo.CreateStockEntry(ctx, entry)
		if err != nil {
			return err
		}
		_, err = s.ledger.Increase(ctx, pump.ID, liters)
		return err
	})
	if err != nil {
		return domain.StockEntry{}, err
	}
	return *created, nil
}

func (s *Service) GetStockEntry(ctx context.Context, id string, expand bool) (domain.StockEntryView, error) {
	entry, err := s.repo.GetStockEntry(ctx, id)
	if err != nil {
		return domain.StockEntryView{}, err
	}
	views, err := s.stockEntryViews(ctx, []domain.StockEntry{*entry}, expand)
	if err != nil {
		return domain.StockEntryView{}, err
	}
	return views[0], nil
}

type StockEntryListParams struct {
	PumpID string
	From   string
	To     string
	Limit  int
	Expand bool
}

func (s *Service) ListStockEntries(ctx context.Context, params StockEntryListParams) ([]domain.StockEntryView, error) {
	filter := store.StockEntryFilter{PumpID: params.PumpID, Limit: params.Limit}
	if params.From != "" {
		from, err := parseDay("from", params.From)
		if err != nil {
			return nil, err
		}
		filter.From = &from
	}
	if params.To != "" {
		to, err := parseDay("to", params.To)
		if err != nil {
			return nil, err
		}
		filter.To = &to
	}

	entries, err := s.repo.ListStockEntries(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.stockEntryViews(ctx, entries, params.Expand)
}

func (s *Service) UpdateStockEntry(ctx context.Context, id string, req domain.StockEntryUpdateRequest) (domain.StockEntry, error) {
	existing, err := s.repo.GetStockEntry(ctx, id)
	if err != nil {
		return domain.StockEntry{}, err
	}

	newPumpID := existing.PumpID
	if req.PumpID != nil {
		newPumpID = *req.PumpID
	}
	newLiters := existing.Liters
	if req.Liters != nil {
		if *req.Liters <= 0 {
			return domain.StockEntry{}, store.Invalid("liters", "must be positive")
		}
		newLiters = pricing.Round2(*req.Liters)
	}
	newPricePerLiter := existing.PricePerLiter
	if req.PricePerLiter != nil {
		if *req.PricePerLiter < 0 {
			return domain.StockEntry{}, store.Invalid("price_per_liter", "must not be negative")
		}
		newPricePerLiter = *req.PricePerLiter
	}
	newDate := existing.Date
	if req.Date != nil {
		newDate, err = parseDay("date", *req.Date)
		if err != nil {
			return domain.StockEntry{}, err
		}
	}
	newNotes := existing.Notes
	if req.Notes != nil {
		newNotes = strings.TrimSpace(*req.Notes)
	}

	var updated *domain.StockEntry
	apply := func() error {
		pump, err := s.repo.GetPump(ctx, newPumpID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return store.Invalid("pump_id", "unknown pump")
			}
			return err
		}

		entry := *existing
		entry.PumpID = pump.ID
		entry.FuelTypeID = pump.FuelTypeID
		entry.Liters = newLiters
		entry.PricePerLiter = newPricePerLiter
		entry.TotalCost = pricing.Round2(newLiters * newPricePerLiter)
		entry.Date = newDate
		entry.Notes = newNotes

		updated, err = s.repo.UpdateStockEntry(ctx, entry)
		if err != nil {
			return err
		}

		// Reverse the old contribution, apply the new one. Decrease floors
		// at zero, so an over-reversal cannot drive stock negative.
		if entry.PumpID == existing.PumpID {
			delta := pricing.Round2(newLiters - existing.Liters)
			if delta > 0 {
				_, err = s.ledger.Increase(ctx, entry.PumpID, delta)
			} else if delta < 0 {
				_, err = s.ledger.Decrease(ctx, entry.PumpID, -delta)
			}
			return err
		}
		if _, err := s.ledger.Decrease(ctx, existing.PumpID, existing.Liters); err != nil {
			return err
		}
		_, err = s.ledger.Increase(ctx, entry.PumpID, newLiters)
		return err
	}

	if newPumpID == existing.PumpID {
		err = s.ledger.Serialize(existing.PumpID, apply)
	} else {
		err = s.ledger.SerializePair(existing.PumpID, newPumpID, apply)
	}
	if err != nil {
		return domain.StockEntry{}, err
	}
	return *updated, nil
}

func (s *Service) DeleteStockEntry(ctx context.Context, id string) error {
	entry, err := s.repo.GetStockEntry(ctx, id)
	if err != nil {
		return err
	}

	return s.ledger.Serialize(entry.PumpID, func() error {
		if _, err := s.ledger.Decrease(ctx, entry.PumpID, entry.Liters); err != nil {
			return err
		}
		return s.repo.DeleteStockEntry(ctx, entry.ID)
	})
}

// --- transactions ---

func (s *Service) CreateTransaction(ctx context.Context, req domain.TransactionCreateRequest) (domain.Transaction, error) {
	if req.Liters <= 0 {
		return domain.Transaction{}, store.Invalid("liters", "must be positive")
	}
	discountType, err := normalizeDiscount(req.DiscountType, req.DiscountValue)
	if err != nil {
		return domain.Transaction{}, err
	}
	date, err := parseDay("date", req.Date)
	if err != nil {
		return domain.Transaction{}, err
	}

	var created *domain.Transaction
	err = s.ledger.Serialize(req.PumpID, func() error {
		pump, err := s.repo.GetPump(ctx, req.PumpID)
		if err != nil {
			return err
		}
		if pump.Status != domain.PumpStatusActive {
			return store.Invalid("pump_id", "pump is not active")
		}

		liters := pricing.Round2(req.Liters)
		if liters > pump.StockLiters {
			return fmt.Errorf("%w: pump %d holds %.2fL, sale needs %.2fL", store.ErrInsufficientStock, pump.Number, pump.StockLiters, liters)
		}

		tx, err := s.priceTransaction(ctx, *pump, liters, date, discountType, req.DiscountValue)
		if err != nil {
			return err
		}
		tx.Notes = strings.TrimSpace(req.Notes)

		created, err = s.repo.CreateTransaction(ctx, tx)
		if err != nil {
			return err
		}
		_, err = s.ledger.Decrease(ctx, pump.ID, liters)
		return err
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return *created, nil
}

// priceTransaction snapshots the money fields of a sale: effective price on
// the sale date, weighted-average cost through that date, discount and
// profit. The snapshot is what gets stored; later price or stock changes do
// not touch it.
func (s *Service) priceTransaction(ctx context.Context, pump domain.Pump, liters float64, date time.Time, discountType string, discountValue float64) (domain.Transaction, error) {
	priceOut, _, err := s.pricing.ResolvePrice(ctx, pump.FuelTypeID, date)
	if err != nil {
		return domain.Transaction{}, err
	}
	priceIn, err := s.pricing.AverageCost(ctx, pump.ID, date)
	if err != nil {
		return domain.Transaction{}, err
	}

	preTotal := pricing.Round2(liters * priceOut)
	discountAmount, total := pricing.ApplyDiscount(preTotal, discountType, discountValue)
	// Profit comes from the unclamped terms. When the discount exceeds the
	// pre-discount total only the charged total is clamped at zero; the
	// margin keeps the full discount against it and goes negative.
	profit := pricing.Round2((priceOut-priceIn)*liters - discountAmount)

	return domain.Transaction{
		PumpID:        pump.ID,
		FuelTypeID:    pump.FuelTypeID,
		Liters:        liters,
		PriceOut:      priceOut,
		PriceIn:       priceIn,
		Discount:      discountAmount,
		DiscountType:  discountType,
		DiscountValue: discountValue,
		Profit:        profit,
		Total:         total,
		Date:          date,
	}, nil
}

func normalizeDiscount(discountType string, value float64) (string, error) {
	if value < 0 {
		return "", store.Invalid("discount_value", "must not be negative")
	}
	switch discountType {
	case "":
		return domain.DiscountTypeAmount, nil
	case domain.DiscountTypeAmount, domain.DiscountTypePercentage:
		return discountType, nil
	default:
		return "", store.Invalid("discount_type", "must be amount or percentage")
	}
}

func (s *Service) GetTransaction(ctx context.Context, id string, expand bool) (domain.TransactionView, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return domain.TransactionView{}, err
	}
	views, err := s.transactionViews(ctx, []domain.Transaction{*tx}, expand)
	if err != nil {
		return domain.TransactionView{}, err
	}
	return views[0], nil
}

type TransactionListParams struct {
	PumpID string
	From   string
	To     string
	Page   int
	Limit  int
	Expand bool
}

func (s *Service) ListTransactions(ctx context.Context, params TransactionListParams) (domain.TransactionListResponse, error) {
	// Page==0 and Limit==0 together mean no pagination: every match is
	// returned and the envelope describes a single page.
	paginated := params.Page > 0 || params.Limit > 0

	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	filter := store.TransactionFilter{
		PumpID: params.PumpID,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if !paginated {
		filter.Limit = 0
		filter.Offset = 0
	}
	if params.From != "" {
		from, err := parseDay("from", params.From)
		if err != nil {
			return domain.TransactionListResponse{}, err
		}
		filter.From = &from
	}
	if params.To != "" {
		to, err := parseDay("to", params.To)
		if err != nil {
			return domain.TransactionListResponse{}, err
		}
		filter.To = &to
	}

	transactions, total, err := s.repo.ListTransactions(ctx, filter)
	if err != nil {
		return domain.TransactionListResponse{}, err
	}
	views, err := s.transactionViews(ctx, transactions, params.Expand)
	if err != nil {
		return domain.TransactionListResponse{}, err
	}

	if !paginated {
		totalPages := 0
		if total > 0 {
			totalPages = 1
		}
		return domain.TransactionListResponse{
			Transactions: views,
			Pagination: domain.Pagination{
				Page:       1,
				Limit:      total,
				Total:      total,
				TotalPages: totalPages,
			},
		}, nil
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return domain.TransactionListResponse{
		Transactions: views,
		Pagination: domain.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
			HasMore:    page < totalPages,
		},
	}, nil
}

func (s *Service) UpdateTransaction(ctx context.Context, id string, req domain.TransactionUpdateRequest) (domain.Transaction, error) {
	existing, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}

	newPumpID := existing.PumpID
	if req.PumpID != nil {
		newPumpID = *req.PumpID
	}
	newLiters := existing.Liters
	if req.Liters != nil {
		if *req.Liters <= 0 {
			return domain.Transaction{}, store.Invalid("liters", "must be positive")
		}
		newLiters = pricing.Round2(*req.Liters)
	}
	newDate := existing.Date
	if req.Date != nil {
		newDate, err = parseDay("date", *req.Date)
		if err != nil {
			return domain.Transaction{}, err
		}
	}
	discountType := existing.DiscountType
	discountValue := existing.DiscountValue
	if req.DiscountType != nil {
		discountType = *req.DiscountType
	}
	if req.DiscountValue != nil {
		discountValue = *req.DiscountValue
	}
	discountType, err = normalizeDiscount(discountType, discountValue)
	if err != nil {
		return domain.Transaction{}, err
	}
	newNotes := existing.Notes
	if req.Notes != nil {
		newNotes = strings.TrimSpace(*req.Notes)
	}

	var updated *domain.Transaction
	apply := func() error {
		pump, err := s.repo.GetPump(ctx, newPumpID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return store.Invalid("pump_id", "unknown pump")
			}
			return err
		}

		// Availability is checked against the reversed level before any
		// write, so a failed update leaves both record and stock untouched.
		if pump.ID == existing.PumpID {
			reversed := pricing.Round2(pump.StockLiters + existing.Liters)
			if newLiters > reversed {
				return fmt.Errorf("%w: pump %d holds %.2fL after reversal, sale needs %.2fL", store.ErrInsufficientStock, pump.Number, reversed, newLiters)
			}
		} else {
			if newLiters > pump.StockLiters {
				return fmt.Errorf("%w: pump %d holds %.2fL, sale needs %.2fL", store.ErrInsufficientStock, pump.Number, pump.StockLiters, newLiters)
			}
		}

		tx, err := s.priceTransaction(ctx, *pump, newLiters, newDate, discountType, discountValue)
		if err != nil {
			return err
		}
		tx.ID = existing.ID
		tx.Notes = newNotes
		tx.CreatedAt = existing.CreatedAt

		updated, err = s.repo.UpdateTransaction(ctx, tx)
		if err != nil {
			return err
		}

		if pump.ID == existing.PumpID {
			delta := pricing.Round2(existing.Liters - newLiters)
			if delta > 0 {
				_, err = s.ledger.Increase(ctx, pump.ID, delta)
			} else if delta < 0 {
				_, err = s.ledger.Decrease(ctx, pump.ID, -delta)
			}
			return err
		}
		if _, err := s.ledger.Increase(ctx, existing.PumpID, existing.Liters); err != nil {
			return err
		}
		_, err = s.ledger.Decrease(ctx, pump.ID, newLiters)
		return err
	}

	if newPumpID == existing.PumpID {
		err = s.ledger.Serialize(existing.PumpID, apply)
	} else {
		err = s.ledger.SerializePair(existing.PumpID, newPumpID, apply)
	}
	if err != nil {
		return domain.Transaction{}, err
	}
	return *updated, nil
}

func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return err
	}

	return s.ledger.Serialize(tx.PumpID, func() error {
		if err := s.repo.DeleteTransaction(ctx, tx.ID); err != nil {
			return err
		}
		_, err := s.ledger.Increase(ctx, tx.PumpID, tx.Liters)
		return err
	})
}

// --- expanded views ---

func (s *Service) pumpRefs(ctx context.Context, ids []string, expand bool) (map[string]domain.PumpRef, error) {
	refs := make(map[string]domain.PumpRef, len(ids))
	for _, id := range ids {
		if _, done := refs[id]; done {
			continue
		}
		ref := domain.PumpRef{ID: id}
		if expand {
			pump, err := s.repo.GetPump(ctx, id)
			if err == nil {
				ref.Pump = pump
			} else if !errors.Is(err, store.ErrNotFound) {
				return nil, err
			}
			// A deleted pump leaves the ref unexpanded rather than failing
			// the whole listing.
		}
		refs[id] = ref
	}
	return refs, nil
}

func (s *Service) stockEntryViews(ctx context.Context, entries []domain.StockEntry, expand bool) ([]domain.StockEntryView, error) {
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.PumpID)
	}
	refs, err := s.pumpRefs(ctx, ids, expand)
	if err != nil {
		return nil, err
	}

	views := make([]domain.StockEntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, domain.StockEntryView{StockEntry: entry, Pump: refs[entry.PumpID]})
	}
	return views, nil
}

func (s *Service) transactionViews(ctx context.Context, transactions []domain.Transaction, expand bool) ([]domain.TransactionView, error) {
	ids := make([]string, 0, len(transactions))
	for _, tx := range transactions {
		ids = append(ids, tx.PumpID)
	}
	refs, err := s.pumpRefs(ctx, ids, expand)
	if err != nil {
		return nil, err
	}

	views := make([]domain.TransactionView, 0, len(transactions))
	for _, tx := range transactions {
		views = append(views, domain.TransactionView{Transaction: tx, Pump: refs[tx.PumpID]})
	}
	return views, nil
}

// --- dashboard ---

func (s *Service) Dashboard(ctx context.Context, period string, fromStr string, toStr string) (domain.DashboardResponse, error) {
	if period == "" {
		period = "daily"
	}

	today := domain.Day(time.Now())
	var from, to time.Time
	switch period {
	case "daily":
		from, to = today, today
	case "weekly":
		// ISO week: Monday through today.
		offset := (int(today.Weekday()) + 6) % 7
		from, to = today.AddDate(0, 0, -offset), today
	case "monthly":
		from = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		to = today
	case "yearly":
		from = time.Date(today.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		to = today
	case "custom":
		if fromStr == "" {
			return domain.DashboardResponse{}, store.Invalid("from", "required for custom period")
		}
		if toStr == "" {
			return domain.DashboardResponse{}, store.Invalid("to", "required for custom period")
		}
		var err error
		from, err = parseDay("from", fromStr)
		if err != nil {
			return domain.DashboardResponse{}, err
		}
		to, err = parseDay("to", toStr)
		if err != nil {
			return domain.DashboardResponse{}, err
		}
		if to.Before(from) {
			return domain.DashboardResponse{}, store.Invalid("to", "must not be before from")
		}
	default:
		return domain.DashboardResponse{}, store.Invalid("period", "must be daily, weekly, monthly, yearly or custom")
	}

	key := fmt.Sprintf("dashboard:%s:%s:%s", period, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if cached, hit, err := s.cache.GetDashboard(ctx, key); err != nil {
		log.Printf("[service] WARN: dashboard cache read failed: %v", err)
	} else if hit {
		return *cached, nil
	}

	totals, err := s.repo.GetSalesSummary(ctx, &from, &to)
	if err != nil {
		return domain.DashboardResponse{}, err
	}
	allTime, err := s.repo.GetSalesSummary(ctx, nil, nil)
	if err != nil {
		return domain.DashboardResponse{}, err
	}
	recent, err := s.repo.ListRecentTransactions(ctx, 10)
	if err != nil {
		return domain.DashboardResponse{}, err
	}
	recentViews, err := s.transactionViews(ctx, recent, true)
	if err != nil {
		return domain.DashboardResponse{}, err
	}

	resp := domain.DashboardResponse{
		Period:     period,
		From:       from.Format("2006-01-02"),
		To:         to.Format("2006-01-02"),
		Totals:     totals,
		AllTime:    allTime,
		Recent:     recentViews,
		ComputedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.cache.SetDashboard(ctx, key, resp, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: dashboard cache write failed: %v", err)
	}
	return resp, nil
}
