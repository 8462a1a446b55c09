package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dara-tech/gasmanagement-sub000/internal/cache"
	"github.com/dara-tech/gasmanagement-sub000/internal/domain"
	"github.com/dara-tech/gasmanagement-sub000/internal/service"
	"github.com/dara-tech/gasmanagement-sub000/internal/store/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestAPI(t *testing.T) (*API, *service.Service) {
	t.Helper()
	repo := memory.New()

	hash, err := hashPassword("admin-secret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	err = repo.CreateUser(context.Background(), domain.UserAccount{
		Username: "admin",
		Password: hash,
		Role:     domain.RoleAdmin,
		Active:   true,
	})
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	svc := service.New(repo, cache.NewNoop(), time.Second)
	auth := NewAuthManager(testSecret, time.Hour, repo)
	return New(svc, auth, "http://127.0.0.1:3000"), svc
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func loginToken(t *testing.T, handler http.Handler, username string, password string) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: username, Password: password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatalf("expected access token")
	}
	return resp.AccessToken
}

// adminSeed builds a fuel type, pump, purchase and price over the service so
// HTTP tests have something to sell.
func adminSeed(t *testing.T, svc *service.Service) (fuelTypeID string, pumpID string) {
	t.Helper()
	ctx := service.WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})

	ft, err := svc.CreateFuelType(ctx, domain.FuelTypeCreateRequest{Name: "Diesel", FallbackPrice: 0.95})
	if err != nil {
		t.Fatalf("create fuel type: %v", err)
	}
	pump, err := svc.CreatePump(ctx, domain.PumpCreateRequest{Number: 1, FuelTypeID: ft.ID})
	if err != nil {
		t.Fatalf("create pump: %v", err)
	}
	if _, err := svc.CreateStockEntry(ctx, domain.StockEntryCreateRequest{PumpID: pump.ID, Liters: 100, PricePerLiter: 0.80}); err != nil {
		t.Fatalf("create stock entry: %v", err)
	}
	if _, err := svc.SetPrice(ctx, ft.ID, domain.SetPriceRequest{Price: 0.90}); err != nil {
		t.Fatalf("set price: %v", err)
	}
	return ft.ID, pump.ID
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doJSON(t, api.Handler(), http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestBearerTokenRequired(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doJSON(t, api.Handler(), http.MethodGet, "/api/v1/fuel-types", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestLoginRoundTrip(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	token := loginToken(t, handler, "admin", "admin-secret")
	rec := doJSON(t, handler, http.MethodGet, "/api/v1/fuel-types", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "admin", Password: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rec.Code)
	}
}

func TestRegisterIssuesStaffSession(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/register", "", domain.RegisterRequest{Username: "refueler", Password: "s3cret-pw"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Role != domain.RoleStaff {
		t.Fatalf("expected staff role, got %s", resp.Role)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/pumps", resp.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected registered staff token to work, got %d", rec.Code)
	}
}

func TestStaffCannotMutateCatalog(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/register", "", domain.RegisterRequest{Username: "refueler", Password: "s3cret-pw"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d", rec.Code)
	}
	var session domain.LoginResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &session)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/fuel-types", session.AccessToken, domain.FuelTypeCreateRequest{Name: "Diesel"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff catalog mutation, got %d", rec.Code)
	}
}

func TestFuelTypeLifecycleOverHTTP(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin-secret")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/fuel-types", token, domain.FuelTypeCreateRequest{Name: "Petrol 95", FallbackPrice: 1.10})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var created domain.FuelType
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}

	name := "Petrol 98"
	rec = doJSON(t, handler, http.MethodPut, "/api/v1/fuel-types/"+created.ID, token, domain.FuelTypeUpdateRequest{Name: &name})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/fuel-types/"+created.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/fuel-types/"+created.ID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestTransactionFlowOverHTTP(t *testing.T) {
	api, svc := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin-secret")
	_, pumpID := adminSeed(t, svc)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/transactions", token, domain.TransactionCreateRequest{PumpID: pumpID, Liters: 30})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sale: %d %s", rec.Code, rec.Body.String())
	}
	var created domain.Transaction
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode sale: %v", err)
	}
	if created.Total != 27.00 {
		t.Fatalf("expected total 27.00, got %v", created.Total)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/transactions", token, domain.TransactionCreateRequest{PumpID: pumpID, Liters: 80})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for oversell, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/transactions", token, domain.TransactionCreateRequest{PumpID: pumpID, Liters: -5})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative liters, got %d", rec.Code)
	}
	var badResp struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &badResp); err != nil {
		t.Fatalf("decode validation response: %v", err)
	}
	if badResp.Fields["liters"] == "" {
		t.Fatalf("expected liters field error, got %+v", badResp)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/transactions?page=1&limit=10", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("paginated list: %d", rec.Code)
	}
	var envelope domain.TransactionListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Pagination.Total != 1 || len(envelope.Transactions) != 1 {
		t.Fatalf("unexpected envelope: %+v", envelope.Pagination)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/transactions", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("bare list: %d", rec.Code)
	}
	var bare []domain.TransactionView
	if err := json.Unmarshal(rec.Body.Bytes(), &bare); err != nil {
		t.Fatalf("expected bare array without pagination params: %v (body %s)", err, rec.Body.String())
	}
	if len(bare) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(bare))
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/transactions/"+created.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete sale: %d", rec.Code)
	}
}

func TestEffectivePriceEndpoints(t *testing.T) {
	api, svc := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin-secret")
	ftID, _ := adminSeed(t, svc)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/fuel-prices/"+ftID+"/current", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("current price: %d %s", rec.Code, rec.Body.String())
	}
	var current domain.EffectivePriceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &current); err != nil {
		t.Fatalf("decode current: %v", err)
	}
	if current.Price != 0.90 || current.Fallback {
		t.Fatalf("expected 0.90 from price point, got %+v", current)
	}

	// Before any price point was set, the fallback applies.
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/fuel-prices/"+ftID+"/date/2020-01-01", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dated price: %d %s", rec.Code, rec.Body.String())
	}
	var dated domain.EffectivePriceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &dated); err != nil {
		t.Fatalf("decode dated: %v", err)
	}
	if dated.Price != 0.95 || !dated.Fallback {
		t.Fatalf("expected fallback 0.95 for early date, got %+v", dated)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/fuel-prices/missing-ft/current", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown fuel type, got %d", rec.Code)
	}
}

func TestDashboardJSONAndCSV(t *testing.T) {
	api, svc := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin-secret")
	_, pumpID := adminSeed(t, svc)

	ctx := service.WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
	if _, err := svc.CreateTransaction(ctx, domain.TransactionCreateRequest{PumpID: pumpID, Liters: 30}); err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/dashboard?period=daily", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard json: %d %s", rec.Code, rec.Body.String())
	}
	var resp domain.DashboardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if resp.Totals.Transactions != 1 {
		t.Fatalf("expected 1 transaction, got %d", resp.Totals.Transactions)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/dashboard?period=daily&format=csv", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard csv: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected text/csv, got %s", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "all_time") || !strings.Contains(body, "27.00") {
		t.Fatalf("unexpected csv body: %s", body)
	}
}

func TestLoginRateLimited(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	var last int
	for i := 0; i < 7; i++ {
		rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "admin", Password: fmt.Sprintf("wrong-%d", i)})
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after repeated failures, got %d", last)
	}
}
