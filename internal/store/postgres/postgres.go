package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dara-tech/gasmanagement-sub000/internal/domain"
	"github.com/dara-tech/gasmanagement-sub000/internal/store"
	"github.com/dara-tech/gasmanagement-sub000/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- fuel types ---

func (s *Store) CreateFuelType(ctx context.Context, ft domain.FuelType) (*domain.FuelType, error) {
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
	ft.CreatedAt = now
	ft.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fuel_types (id, name, unit, fallback_price, liters_per_ton, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, ft.ID, ft.Name, ft.Unit, ft.FallbackPrice, ft.LitersPerTon, ft.CreatedAt, ft.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := ft
	return &created, nil
}

func (s *Store) GetFuelType(ctx context.Context, id string) (*domain.FuelType, error) {
	var ft domain.FuelType
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, unit, fallback_price, liters_per_ton, created_at, updated_at
		FROM fuel_types
		WHERE id = $1
	`, id).Scan(&ft.ID, &ft.Name, &ft.Unit, &ft.FallbackPrice, &ft.LitersPerTon, &ft.CreatedAt, &ft.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &ft, nil
}

func (s *Store) ListFuelTypes(ctx context.Context) ([]domain.FuelType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, unit, fallback_price, liters_per_ton, created_at, updated_at
		FROM fuel_types
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fuelTypes := make([]domain.FuelType, 0, 8)
	for rows.Next() {
		var ft domain.FuelType
		if err := rows.Scan(&ft.ID, &ft.Name, &ft.Unit, &ft.FallbackPrice, &ft.LitersPerTon, &ft.CreatedAt, &ft.UpdatedAt); err != nil {
			return nil, err
		}
		fuelTypes = append(fuelTypes, ft)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return fuelTypes, nil
}

func (s *Store) UpdateFuelType(ctx context.Context, ft domain.FuelType) (*domain.FuelType, error) {
	if ft.Name == "" {
		return nil, store.Invalid("name", "required")
	}
	ft.UpdatedAt = time.Now().UTC()

	err := s.db.QueryRowContext(ctx, `
		UPDATE fuel_types
		SET name = $2, unit = $3, fallback_price = $4, liters_per_ton = $5, updated_at = $6
		WHERE id = $1
		RETURNING created_at
	`, ft.ID, ft.Name, ft.Unit, ft.FallbackPrice, ft.LitersPerTon, ft.UpdatedAt).Scan(&ft.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	updated := ft
	return &updated, nil
}

func (s *Store) DeleteFuelType(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM fuel_types WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountPumpsByFuelType(ctx context.Context, fuelTypeID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM pumps WHERE fuel_type_id = $1
	`, fuelTypeID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// --- price points ---

func (s *Store) UpsertPricePoint(ctx context.Context, pp domain.PricePoint) (*domain.PricePoint, error) {
	if pp.Price < 0 {
		return nil, store.Invalid("price", "must not be negative")
	}
	if pp.ID == "" {
		pp.ID = xid.New("pp")
	}
	pp.Date = domain.Day(pp.Date)
	if pp.CreatedAt.IsZero() {
		pp.CreatedAt = time.Now().UTC()
	}

	// One price per fuel type per day; a same-day write replaces the price
	// and keeps the original row identity.
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO price_points (id, fuel_type_id, price, effective_date, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (fuel_type_id, effective_date)
		DO UPDATE SET price = EXCLUDED.price, notes = EXCLUDED.notes
		RETURNING id, created_at
	`, pp.ID, pp.FuelTypeID, pp.Price, pp.Date, pp.Notes, pp.CreatedAt).Scan(&pp.ID, &pp.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	saved := pp
	return &saved, nil
}

func (s *Store) ListPricePoints(ctx context.Context, fuelTypeID string) ([]domain.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fuel_type_id, price, effective_date, notes, created_at
		FROM price_points
		WHERE fuel_type_id = $1
		ORDER BY effective_date DESC
	`, fuelTypeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]domain.PricePoint, 0, 32)
	for rows.Next() {
		var pp domain.PricePoint
		if err := rows.Scan(&pp.ID, &pp.FuelTypeID, &pp.Price, &pp.Date, &pp.Notes, &pp.CreatedAt); err != nil {
			return nil, err
		}
		pp.Date = domain.Day(pp.Date)
		points = append(points, pp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

func (s *Store) LatestPricePointThrough(ctx context.Context, fuelTypeID string, day time.Time) (*domain.PricePoint, error) {
	var pp domain.PricePoint
	err := s.db.QueryRowContext(ctx, `
		SELECT id, fuel_type_id, price, effective_date, notes, created_at
		FROM price_points
		WHERE fuel_type_id = $1 AND effective_date <= $2
		ORDER BY effective_date DESC
		LIMIT 1
	`, fuelTypeID, domain.Day(day)).Scan(&pp.ID, &pp.FuelTypeID, &pp.Price, &pp.Date, &pp.Notes, &pp.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	pp.Date = domain.Day(pp.Date)
	return &pp, nil
}

// --- pumps ---

func (s *Store) CreatePump(ctx context.Context, pump domain.Pump) (*domain.Pump, error) {
	if pump.Number < 1 {
		return nil, store.Invalid("number", "must be positive")
	}
	if pump.ID == "" {
		pump.ID = xid.New("pump")
	}
	if pump.Status == "" {
		pump.Status = domain.PumpStatusActive
	}
	now := time.Now().UTC()
	pump.CreatedAt = now
	pump.UpdatedAt = now

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO pumps (id, number, fuel_type_id, status, stock_liters, created_at, updated_at)
		VALUES ($1,$2,$3,$4,ROUND(GREATEST($5,0)::numeric,2),$6,$7)
		RETURNING stock_liters
	`, pump.ID, pump.Number, pump.FuelTypeID, pump.Status, pump.StockLiters, pump.CreatedAt, pump.UpdatedAt).Scan(&pump.StockLiters)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	created := pump
	return &created, nil
}

func (s *Store) GetPump(ctx context.Context, id string) (*domain.Pump, error) {
	var pump domain.Pump
	err := s.db.QueryRowContext(ctx, `
		SELECT id, number, fuel_type_id, status, stock_liters, created_at, updated_at
		FROM pumps
		WHERE id = $1
	`, id).Scan(&pump.ID, &pump.Number, &pump.FuelTypeID, &pump.Status, &pump.StockLiters, &pump.CreatedAt, &pump.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &pump, nil
}

func (s *Store) ListPumps(ctx context.Context) ([]domain.Pump, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, number, fuel_type_id, status, stock_liters, created_at, updated_at
		FROM pumps
		ORDER BY number
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pumps := make([]domain.Pump, 0, 16)
	for rows.Next() {
		var pump domain.Pump
		if err := rows.Scan(&pump.ID, &pump.Number, &pump.FuelTypeID, &pump.Status, &pump.StockLiters, &pump.CreatedAt, &pump.UpdatedAt); err != nil {
			return nil, err
		}
		pumps = append(pumps, pump)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pumps, nil
}

func (s *Store) UpdatePump(ctx context.Context, pump domain.Pump) (*domain.Pump, error) {
	if pump.Number < 1 {
		return nil, store.Invalid("number", "must be positive")
	}
	pump.UpdatedAt = time.Now().UTC()

	// stock_liters is deliberately not part of the update; stock moves only
	// through AdjustPumpStock.
	err := s.db.QueryRowContext(ctx, `
		UPDATE pumps
		SET number = $2, fuel_type_id = $3, status = $4, updated_at = $5
		WHERE id = $1
		RETURNING stock_liters, created_at
	`, pump.ID, pump.Number, pump.FuelTypeID, pump.Status, pump.UpdatedAt).Scan(&pump.StockLiters, &pump.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	updated := pump
	return &updated, nil
}

func (s *Store) DeletePump(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pumps WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AdjustPumpStock(ctx context.Context, pumpID string, delta float64) (float64, error) {
	var level float64
	err := s.db.QueryRowContext(ctx, `
		UPDATE pumps
		SET stock_liters = ROUND(GREATEST(stock_liters + $2, 0)::numeric, 2), updated_at = now()
		WHERE id = $1
		RETURNING stock_liters
	`, pumpID, delta).Scan(&level)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	return level, nil
}

// --- stock entries ---

func (s *Store) CreateStockEntry(ctx context.Context, entry domain.StockEntry) (*domain.StockEntry, error) {
	if entry.Liters <= 0 {
		return nil, store.Invalid("liters", "must be positive")
	}
	if entry.ID == "" {
		entry.ID = xid.New("se")
	}
	entry.Date = domain.Day(entry.Date)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_entries (id, pump_id, fuel_type_id, liters, price_per_liter, total_cost, entry_date, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.PumpID, entry.FuelTypeID, entry.Liters, entry.PricePerLiter, entry.TotalCost, entry.Date, entry.Notes, entry.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	created := entry
	return &created, nil
}

func (s *Store) GetStockEntry(ctx context.Context, id string) (*domain.StockEntry, error) {
	var entry domain.StockEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT id, pump_id, fuel_type_id, liters, price_per_liter, total_cost, entry_date, notes, created_at
		FROM stock_entries
		WHERE id = $1
	`, id).Scan(&entry.ID, &entry.PumpID, &entry.FuelTypeID, &entry.Liters, &entry.PricePerLiter, &entry.TotalCost, &entry.Date, &entry.Notes, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	entry.Date = domain.Day(entry.Date)
	return &entry, nil
}

func (s *Store) UpdateStockEntry(ctx context.Context, entry domain.StockEntry) (*domain.StockEntry, error) {
	if entry.Liters <= 0 {
		return nil, store.Invalid("liters", "must be positive")
	}
	entry.Date = domain.Day(entry.Date)

	err := s.db.QueryRowContext(ctx, `
		UPDATE stock_entries
		SET pump_id = $2, fuel_type_id = $3, liters = $4, price_per_liter = $5, total_cost = $6, entry_date = $7, notes = $8
		WHERE id = $1
		RETURNING created_at
	`, entry.ID, entry.PumpID, entry.FuelTypeID, entry.Liters, entry.PricePerLiter, entry.TotalCost, entry.Date, entry.Notes).Scan(&entry.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	updated := entry
	return &updated, nil
}

func (s *Store) DeleteStockEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM stock_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListStockEntries(ctx context.Context, filter store.StockEntryFilter) ([]domain.StockEntry, error) {
	query := `
		SELECT id, pump_id, fuel_type_id, liters, price_per_liter, total_cost, entry_date, notes, created_at
		FROM stock_entries
		WHERE 1=1
	`
	args := make([]any, 0, 4)
	if filter.PumpID != "" {
		args = append(args, filter.PumpID)
		query += ` AND pump_id = $` + strconv.Itoa(len(args))
	}
	if filter.From != nil {
		args = append(args, domain.Day(*filter.From))
		query += ` AND entry_date >= $` + strconv.Itoa(len(args))
	}
	if filter.To != nil {
		args = append(args, domain.Day(*filter.To))
		query += ` AND entry_date <= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY entry_date DESC, created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.StockEntry, 0, 64)
	for rows.Next() {
		var entry domain.StockEntry
		if err := rows.Scan(&entry.ID, &entry.PumpID, &entry.FuelTypeID, &entry.Liters, &entry.PricePerLiter, &entry.TotalCost, &entry.Date, &entry.Notes, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Date = domain.Day(entry.Date)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) SumStockEntriesThrough(ctx context.Context, pumpID string, cutoff time.Time) (float64, float64, error) {
	query := `
		SELECT COALESCE(SUM(liters), 0), COALESCE(SUM(total_cost), 0)
		FROM stock_entries
		WHERE pump_id = $1
	`
	args := []any{pumpID}
	if !cutoff.IsZero() {
		args = append(args, domain.Day(cutoff))
		query += ` AND entry_date <= $2`
	}

	var liters, cost float64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&liters, &cost); err != nil {
		return 0, 0, err
	}
	return liters, cost, nil
}

// --- transactions ---

func (s *Store) CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if tx.Liters <= 0 {
		return nil, store.Invalid("liters", "must be positive")
	}
	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	tx.Date = domain.Day(tx.Date)
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, pump_id, fuel_type_id, liters, price_out, price_in, discount, discount_type, discount_value, profit, total, tx_date, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, tx.ID, tx.PumpID, tx.FuelTypeID, tx.Liters, tx.PriceOut, tx.PriceIn, tx.Discount, tx.DiscountType, tx.DiscountValue, tx.Profit, tx.Total, tx.Date, tx.Notes, tx.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	created := tx
	return &created, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := s.db.QueryRowContext(ctx, `
		SELECT id, pump_id, fuel_type_id, liters, price_out, price_in, discount, discount_type, discount_value, profit, total, tx_date, notes, created_at
		FROM transactions
		WHERE id = $1
	`, id).Scan(&tx.ID, &tx.PumpID, &tx.FuelTypeID, &tx.Liters, &tx.PriceOut, &tx.PriceIn, &tx.Discount, &tx.DiscountType, &tx.DiscountValue, &tx.Profit, &tx.Total, &tx.Date, &tx.Notes, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	tx.Date = domain.Day(tx.Date)
	return &tx, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if tx.Liters <= 0 {
		return nil, store.Invalid("liters", "must be positive")
	}
	tx.Date = domain.Day(tx.Date)

	err := s.db.QueryRowContext(ctx, `
		UPDATE transactions
		SET pump_id = $2, fuel_type_id = $3, liters = $4, price_out = $5, price_in = $6, discount = $7, discount_type = $8, discount_value = $9, profit = $10, total = $11, tx_date = $12, notes = $13
		WHERE id = $1
		RETURNING created_at
	`, tx.ID, tx.PumpID, tx.FuelTypeID, tx.Liters, tx.PriceOut, tx.PriceIn, tx.Discount, tx.DiscountType, tx.DiscountValue, tx.Profit, tx.Total, tx.Date, tx.Notes).Scan(&tx.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	updated := tx
	return &updated, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]domain.Transaction, int, error) {
	where := ` WHERE 1=1`
	args := make([]any, 0, 5)
	if filter.PumpID != "" {
		args = append(args, filter.PumpID)
		where += ` AND pump_id = $` + strconv.Itoa(len(args))
	}
	if filter.From != nil {
		args = append(args, domain.Day(*filter.From))
		where += ` AND tx_date >= $` + strconv.Itoa(len(args))
	}
	if filter.To != nil {
		args = append(args, domain.Day(*filter.To))
		where += ` AND tx_date <= $` + strconv.Itoa(len(args))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, pump_id, fuel_type_id, liters, price_out, price_in, discount, discount_type, discount_value, profit, total, tx_date, notes, created_at
		FROM transactions
	` + where + ` ORDER BY tx_date DESC, created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0, 64)
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(&tx.ID, &tx.PumpID, &tx.FuelTypeID, &tx.Liters, &tx.PriceOut, &tx.PriceIn, &tx.Discount, &tx.DiscountType, &tx.DiscountValue, &tx.Profit, &tx.Total, &tx.Date, &tx.Notes, &tx.CreatedAt); err != nil {
			return nil, 0, err
		}
		tx.Date = domain.Day(tx.Date)
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return transactions, total, nil
}

func (s *Store) GetSalesSummary(ctx context.Context, from *time.Time, to *time.Time) (domain.SalesSummary, error) {
	query := `
		SELECT COUNT(*),
			ROUND(COALESCE(SUM(liters), 0)::numeric, 2),
			ROUND(COALESCE(SUM(total), 0)::numeric, 2),
			ROUND(COALESCE(SUM(profit), 0)::numeric, 2)
		FROM transactions
		WHERE 1=1
	`
	args := make([]any, 0, 2)
	if from != nil {
		args = append(args, domain.Day(*from))
		query += ` AND tx_date >= $` + strconv.Itoa(len(args))
	}
	if to != nil {
		args = append(args, domain.Day(*to))
		query += ` AND tx_date <= $` + strconv.Itoa(len(args))
	}

	var summary domain.SalesSummary
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&summary.Transactions, &summary.Liters, &summary.Revenue, &summary.Profit)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	return summary, nil
}

func (s *Store) ListRecentTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pump_id, fuel_type_id, liters, price_out, price_in, discount, discount_type, discount_value, profit, total, tx_date, notes, created_at
		FROM transactions
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0, limit)
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(&tx.ID, &tx.PumpID, &tx.FuelTypeID, &tx.Liters, &tx.PriceOut, &tx.PriceIn, &tx.Discount, &tx.DiscountType, &tx.DiscountValue, &tx.Profit, &tx.Total, &tx.Date, &tx.Notes, &tx.CreatedAt); err != nil {
			return nil, err
		}
		tx.Date = domain.Day(tx.Date)
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" {
		return store.Invalid("username", "required")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
