package domain

import "time"

const (
	PumpStatusActive   = "active"
	PumpStatusInactive = "inactive"
)

const (
	DiscountTypeAmount     = "amount"
	DiscountTypePercentage = "percentage"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

type FuelType struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Unit          string    `json:"unit"`
	FallbackPrice float64   `json:"fallback_price"`
	LitersPerTon  float64   `json:"liters_per_ton"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type FuelTypeCreateRequest struct {
	Name          string  `json:"name"`
	Unit          string  `json:"unit"`
	FallbackPrice float64 `json:"fallback_price"`
	LitersPerTon  float64 `json:"liters_per_ton"`
}

type FuelTypeUpdateRequest struct {
	Name          *string  `json:"name,omitempty"`
	Unit          *string  `json:"unit,omitempty"`
	FallbackPrice *float64 `json:"fallback_price,omitempty"`
	LitersPerTon  *float64 `json:"liters_per_ton,omitempty"`
}

// PricePoint is a date-effective price for a fuel type. At most one exists
// per (fuel type, calendar day); setting a price for an existing day
// overwrites it.
type PricePoint struct {
	ID         string    `json:"id"`
	FuelTypeID string    `json:"fuel_type_id"`
	Price      float64   `json:"price"`
	Date       time.Time `json:"date"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type SetPriceRequest struct {
	Price float64 `json:"price"`
	Date  string  `json:"date"`
	Notes string  `json:"notes"`
}

type EffectivePriceResponse struct {
	FuelTypeID string  `json:"fuel_type_id"`
	Date       string  `json:"date"`
	Price      float64 `json:"price"`
	Fallback   bool    `json:"fallback"`
}

type Pump struct {
	ID          string    `json:"id"`
	Number      int       `json:"number"`
	FuelTypeID  string    `json:"fuel_type_id"`
	Status      string    `json:"status"`
	StockLiters float64   `json:"stock_liters"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type PumpCreateRequest struct {
	Number       int     `json:"number"`
	FuelTypeID   string  `json:"fuel_type_id"`
	Status       string  `json:"status"`
	InitialStock float64 `json:"initial_stock"`
}

type PumpUpdateRequest struct {
	Number     *int    `json:"number,omitempty"`
	FuelTypeID *string `json:"fuel_type_id,omitempty"`
	Status     *string `json:"status,omitempty"`
}

// PumpRef is a tagged pump reference. ID is always set; Pump is embedded only
// when the caller asked for an expanded result.
type PumpRef struct {
	ID   string `json:"id"`
	Pump *Pump  `json:"pump,omitempty"`
}

// StockEntry is a purchase/replenishment event that adds fuel to a pump.
type StockEntry struct {
	ID            string    `json:"id"`
	PumpID        string    `json:"pump_id"`
	FuelTypeID    string    `json:"fuel_type_id"`
	Liters        float64   `json:"liters"`
	PricePerLiter float64   `json:"price_per_liter"`
	TotalCost     float64   `json:"total_cost"`
	Date          time.Time `json:"date"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type StockEntryCreateRequest struct {
	PumpID        string  `json:"pump_id"`
	Liters        float64 `json:"liters"`
	PricePerLiter float64 `json:"price_per_liter"`
	Date          string  `json:"date"`
	Notes         string  `json:"notes"`
}

type StockEntryUpdateRequest struct {
	PumpID        *string  `json:"pump_id,omitempty"`
	Liters        *float64 `json:"liters,omitempty"`
	PricePerLiter *float64 `json:"price_per_liter,omitempty"`
	Date          *string  `json:"date,omitempty"`
	Notes         *string  `json:"notes,omitempty"`
}

type StockEntryView struct {
	StockEntry
	Pump PumpRef `json:"pump"`
}

// Transaction is a sale. priceOut, priceIn, discount, profit and total are
// snapshotted at write time and never recomputed when earlier stock entries
// or price points change.
type Transaction struct {
	ID            string    `json:"id"`
	PumpID        string    `json:"pump_id"`
	FuelTypeID    string    `json:"fuel_type_id"`
	Liters        float64   `json:"liters"`
	PriceOut      float64   `json:"price_out"`
	PriceIn       float64   `json:"price_in"`
	Discount      float64   `json:"discount"`
	DiscountType  string    `json:"discount_type"`
	DiscountValue float64   `json:"discount_value"`
	Profit        float64   `json:"profit"`
	Total         float64   `json:"total"`
	Date          time.Time `json:"date"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type TransactionCreateRequest struct {
	PumpID        string  `json:"pump_id"`
	Liters        float64 `json:"liters"`
	Date          string  `json:"date"`
	DiscountType  string  `json:"discount_type"`
	DiscountValue float64 `json:"discount_value"`
	Notes         string  `json:"notes"`
}

type TransactionUpdateRequest struct {
	PumpID        *string  `json:"pump_id,omitempty"`
	Liters        *float64 `json:"liters,omitempty"`
	Date          *string  `json:"date,omitempty"`
	DiscountType  *string  `json:"discount_type,omitempty"`
	DiscountValue *float64 `json:"discount_value,omitempty"`
	Notes         *string  `json:"notes,omitempty"`
}

type TransactionView struct {
	Transaction
	Pump PumpRef `json:"pump"`
}

type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

type TransactionListResponse struct {
	Transactions []TransactionView `json:"transactions"`
	Pagination   Pagination        `json:"pagination"`
}

type SalesSummary struct {
	Transactions int64   `json:"transactions"`
	Liters       float64 `json:"liters"`
	Revenue      float64 `json:"revenue"`
	Profit       float64 `json:"profit"`
}

type DashboardResponse struct {
	Period     string            `json:"period"`
	From       string            `json:"from"`
	To         string            `json:"to"`
	Totals     SalesSummary      `json:"totals"`
	AllTime    SalesSummary      `json:"all_time"`
	Recent     []TransactionView `json:"recent"`
	ComputedAt string            `json:"computed_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

// Day truncates t to midnight UTC. Price points and effective-date lookups
// operate at day granularity.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
