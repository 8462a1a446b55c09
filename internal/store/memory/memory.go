package memory

import (
	"context"
	"log"
	"math"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dara-tech/gasmanagement-sub000/internal/domain"
	"github.com/dara-tech/gasmanagement-sub000/internal/store"
	"github.com/dara-tech/gasmanagement-sub000/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	fuelTypes       map[string]domain.FuelType
	pricePoints     map[string]map[string]domain.PricePoint // fuelTypeID -> day -> point
	pumps           map[string]domain.Pump
	stockEntries    map[string]domain.StockEntry
	transactions    map[string]domain.Transaction
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		fuelTypes:       make(map[string]domain.FuelType),
		pricePoints:     make(map[string]map[string]domain.PricePoint),
		pumps:           make(map[string]domain.Pump),
		stockEntries:    make(map[string]domain.StockEntry),
		transactions:    make(map[string]domain.Transaction),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// NewSeeded builds a store preloaded with dev/demo fixtures: two fuel types,
// three pumps and an admin/staff user pair. Credentials come from
// SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD; hardcoded dev defaults are
// used (with a warning) when unset. Production deployments use PostgreSQL.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	diesel := domain.FuelType{ID: "ft-diesel", Name: "Diesel", Unit: "L", FallbackPrice: 0.95, LitersPerTon: 1190, CreatedAt: now, UpdatedAt: now}
	petrol := domain.FuelType{ID: "ft-petrol-95", Name: "Petrol 95", Unit: "L", FallbackPrice: 1.10, LitersPerTon: 1351, CreatedAt: now, UpdatedAt: now}
	s.fuelTypes[diesel.ID] = diesel
	s.fuelTypes[petrol.ID] = petrol

	for i, pump := range []domain.Pump{
		{ID: "pump-1", Number: 1, FuelTypeID: diesel.ID, Status: domain.PumpStatusActive, StockLiters: 5000},
		{ID: "pump-2", Number: 2, FuelTypeID: petrol.ID, Status: domain.PumpStatusActive, StockLiters: 4000},
		{ID: "pump-3", Number: 3, FuelTypeID: petrol.ID, Status: domain.PumpStatusInactive, StockLiters: 0},
	} {
		pump.CreatedAt = now.Add(time.Duration(i) * time.Second)
		pump.UpdatedAt = pump.CreatedAt
		s.pumps[pump.ID] = pump
	}

	s.usersByUsername = seedUsers()
	return s
}

func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"staff", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// --- fuel types ---

func (s *Store) CreateFuelType(_ context.Context, ft domain.FuelType) (*domain.FuelType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ft.Name == "" {
		return nil, store.Invalid("name", "required")
	}
	if ft.ID == "" {
		ft.ID = xid.New("ft")
	}
	if ft.Unit == "" {
		ft.Unit = "L"
	}
	now := time.Now().UTC()
	if ft.CreatedAt.IsZero() {
		ft.CreatedAt = now
	}
	ft.UpdatedAt = now
	s.fuelTypes[ft.ID] = ft
	created := ft
	return &created, nil
}

func (s *Store) GetFuelType(_ context.Context, id string) (*domain.FuelType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ft, exists := s.fuelTypes[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyFT := ft
	return &copyFT, nil
}

func (s *Store) ListFuelTypes(_ context.Context) ([]domain.FuelType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.FuelType, 0, len(s.fuelTypes))
	for _, ft := range s.fuelTypes {
		result = append(result, ft)
	}
	slices.SortFunc(result, func(a, b domain.FuelType) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) UpdateFuelType(_ context.Context, ft domain.FuelType) (*domain.FuelType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.fuelTypes[ft.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if ft.Name == "" {
		return nil, store.Invalid("name", "required")
	}
	ft.CreatedAt = existing.CreatedAt
	ft.UpdatedAt = time.Now().UTC()
	s.fuelTypes[ft.ID] = ft
	updated := ft
	return &updated, nil
}

func (s *Store) DeleteFuelType(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.fuelTypes[id]; !exists {
		return store.ErrNotFound
	}
	for _, pump := range s.pumps {
		if pump.FuelTypeID == id {
			return store.ErrConflict
		}
	}
	delete(s.fuelTypes, id)
	delete(s.pricePoints, id)
	return nil
}

func (s *Store) CountPumpsByFuelType(_ context.Context, fuelTypeID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, pump := range s.pumps {
		if pump.FuelTypeID == fuelTypeID {
			count++
		}
	}
	return count, nil
}

// --- price points ---

func dayKey(t time.Time) string {
	return domain.Day(t).Format("2006-01-02")
}

func (s *Store) UpsertPricePoint(_ context.Context, pp domain.PricePoint) (*domain.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.fuelTypes[pp.FuelTypeID]; !exists {
		return nil, store.ErrNotFound
	}
	if pp.Price < 0 {
		return nil, store.Invalid("price", "must not be negative")
	}
	pp.Date = domain.Day(pp.Date)

	byDay, exists := s.pricePoints[pp.FuelTypeID]
	if !exists {
		byDay = make(map[string]domain.PricePoint)
		s.pricePoints[pp.FuelTypeID] = byDay
	}

	key := dayKey(pp.Date)
	if existing, exists := byDay[key]; exists {
		pp.ID = existing.ID
		pp.CreatedAt = existing.CreatedAt
	}
	if pp.ID == "" {
		pp.ID = xid.New("pp")
	}
	if pp.CreatedAt.IsZero() {
		pp.CreatedAt = time.Now().UTC()
	}
	byDay[key] = pp
	saved := pp
	return &saved, nil
}

func (s *Store) ListPricePoints(_ context.Context, fuelTypeID string) ([]domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := s.pricePoints[fuelTypeID]
	result := make([]domain.PricePoint, 0, len(byDay))
	for _, pp := range byDay {
		result = append(result, pp)
	}
	slices.SortFunc(result, func(a, b domain.PricePoint) int {
		return b.Date.Compare(a.Date)
	})
	return result, nil
}

func (s *Store) LatestPricePointThrough(_ context.Context, fuelTypeID string, day time.Time) (*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day = domain.Day(day)
	var best *domain.PricePoint
	for _, pp := range s.pricePoints[fuelTypeID] {
		if pp.Date.After(day) {
			continue
		}
		if best == nil || pp.Date.After(best.Date) {
			found := pp
			best = &found
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	return best, nil
}

// --- pumps ---

func (s *Store) CreatePump(_ context.Context, pump domain.Pump) (*domain.Pump, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pump.Number < 1 {
		return nil, store.Invalid("number", "must be positive")
	}
	if _, exists := s.fuelTypes[pump.FuelTypeID]; !exists {
		return nil, store.ErrNotFound
	}
	for _, existing := range s.pumps {
		if existing.Number == pump.Number {
			return nil, store.ErrConflict
		}
	}
	if pump.ID == "" {
		pump.ID = xid.New("pump")
	}
	if pump.Status == "" {
		pump.Status = domain.PumpStatusActive
	}
	pump.StockLiters = clampRound(pump.StockLiters)
	now := time.Now().UTC()
	pump.CreatedAt = now
	pump.UpdatedAt = now
	s.pumps[pump.ID] = pump
	created := pump
	return &created, nil
}

func (s *Store) GetPump(_ context.Context, id string) (*domain.Pump, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pump, exists := s.pumps[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyPump := pump
	return &copyPump, nil
}

func (s *Store) ListPumps(_ context.Context) ([]domain.Pump, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Pump, 0, len(s.pumps))
	for _, pump := range s.pumps {
		result = append(result, pump)
	}
	slices.SortFunc(result, func(a, b domain.Pump) int {
		return a.Number - b.Number
	})
	return result, nil
}

func (s *Store) UpdatePump(_ context.Context, pump domain.Pump) (*domain.Pump, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.pumps[pump.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if pump.Number < 1 {
		return nil, store.Invalid("number", "must be positive")
	}
	if _, exists := s.fuelTypes[pump.FuelTypeID]; !exists {
		return nil, store.ErrNotFound
	}
	for _, other := range s.pumps {
		if other.ID != pump.ID && other.Number == pump.Number {
			return nil, store.ErrConflict
		}
	}
	// Stock level is owned by the ledger; UpdatePump never touches it.
	pump.StockLiters = existing.StockLiters
	pump.CreatedAt = existing.CreatedAt
	pump.UpdatedAt = time.Now().UTC()
	s.pumps[pump.ID] = pump
	updated := pump
	return &updated, nil
}

func (s *Store) DeletePump(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pumps[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.pumps, id)
	return nil
}

func (s *Store) AdjustPumpStock(_ context.Context, pumpID string, delta float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pump, exists := s.pumps[pumpID]
	if !exists {
		return 0, store.ErrNotFound
	}
	pump.StockLiters = clampRound(pump.StockLiters + delta)
	pump.UpdatedAt = time.Now().UTC()
	s.pumps[pumpID] = pump
	return pump.StockLiters, nil
}

func clampRound(v float64) float64 {
	v = math.Round(v*100) / 100
	if v < 0 {
		return 0
	}
	return v
}

// --- stock entries ---

func (s *Store) CreateStockEntry(_ context.Context, entry domain.StockEntry) (*domain.StockEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.Liters <= 0 {
		return nil, store.Invalid("liters", "must be positive")
	}
	if _, exists := s.pumps[entry.PumpID]; !exists {
		return nil, store.ErrNotFound
	}
	if entry.ID == "" {
		entry.ID = xid.New("se")
	}
	entry.Date = domain.Day(entry.Date)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.stockEntries[entry.ID] = entry
	created := entry
	return &created, nil
}

func (s *Store) GetStockEntry(_ context.Context, id string) (*domain.StockEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.stockEntries[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyEntry := entry
	return &copyEntry, nil
}

func (s *Store) UpdateStockEntry(_ context.Context, entry domain.StockEntry) (*domain.StockEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.stockEntries[entry.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if entry.Liters <= 0 {
		return nil, store.Invalid("liters", "must be positive")
	}
	if _, exists := s.pumps[entry.PumpID]; !exists {
		return nil, store.ErrNotFound
	}
	entry.Date = domain.Day(entry.Date)
	entry.CreatedAt = existing.CreatedAt
	s.stockEntries[entry.ID] = entry
	updated := entry
	return &updated, nil
}

func (s *Store) DeleteStockEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stockEntries[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.stockEntries, id)
	return nil
}

func (s *Store) ListStockEntries(_ context.Context, filter store.StockEntryFilter) ([]domain.StockEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StockEntry, 0, len(s.stockEntries))
	for _, entry := range s.stockEntries {
		if filter.PumpID != "" && entry.PumpID != filter.PumpID {
			continue
		}
		if filter.From != nil && entry.Date.Before(domain.Day(*filter.From)) {
			continue
		}
		if filter.To != nil && entry.Date.After(domain.Day(*filter.To)) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortFunc(result, func(a, b domain.StockEntry) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) SumStockEntriesThrough(_ context.Context, pumpID string, cutoff time.Time) (float64, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var liters, cost float64
	for _, entry := range s.stockEntries {
		if entry.PumpID != pumpID {
			continue
		}
		if !cutoff.IsZero() && entry.Date.After(cutoff) {
			continue
		}
		liters += entry.Liters
		cost += entry.TotalCost
	}
	return liters, cost, nil
}

// --- transactions ---

func (s *Store) CreateTransaction(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.Liters <= 0 {
		return nil, store.Invalid("liters", "must be positive")
	}
	if _, exists := s.pumps[tx.PumpID]; !exists {
		return nil, store.ErrNotFound
	}
	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	tx.Date = domain.Day(tx.Date)
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	s.transactions[tx.ID] = tx
	created := tx
	return &created, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.transactions[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyTx := tx
	return &copyTx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.transactions[tx.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if tx.Liters <= 0 {
		return nil, store.Invalid("liters", "must be positive")
	}
	tx.Date = domain.Day(tx.Date)
	tx.CreatedAt = existing.CreatedAt
	s.transactions[tx.ID] = tx
	updated := tx
	return &updated, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.transactions, id)
	return nil
}

func (s *Store) ListTransactions(_ context.Context, filter store.TransactionFilter) ([]domain.Transaction, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		if filter.PumpID != "" && tx.PumpID != filter.PumpID {
			continue
		}
		if filter.From != nil && tx.Date.Before(domain.Day(*filter.From)) {
			continue
		}
		if filter.To != nil && tx.Date.After(domain.Day(*filter.To)) {
			continue
		}
		matched = append(matched, tx)
	}
	slices.SortFunc(matched, func(a, b domain.Transaction) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= total {
			return []domain.Transaction{}, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (s *Store) GetSalesSummary(_ context.Context, from *time.Time, to *time.Time) (domain.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summary domain.SalesSummary
	for _, tx := range s.transactions {
		if from != nil && tx.Date.Before(domain.Day(*from)) {
			continue
		}
		if to != nil && tx.Date.After(domain.Day(*to)) {
			continue
		}
		summary.Transactions++
		summary.Liters += tx.Liters
		summary.Revenue += tx.Total
		summary.Profit += tx.Profit
	}
	summary.Liters = math.Round(summary.Liters*100) / 100
	summary.Revenue = math.Round(summary.Revenue*100) / 100
	summary.Profit = math.Round(summary.Profit*100) / 100
	return summary, nil
}

func (s *Store) ListRecentTransactions(_ context.Context, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		result = append(result, tx)
	}
	slices.SortFunc(result, func(a, b domain.Transaction) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// --- users ---

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return store.Invalid("username", "required")
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByUsername[strings.ToLower(strings.TrimSpace(username))]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyUser := user
	return &copyUser, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		result = append(result, user)
	}
	slices.SortFunc(result, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return result, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
