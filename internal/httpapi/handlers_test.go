package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tiendapos/internal/domain"
	"tiendapos/internal/service"
	"tiendapos/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded(true)
	svc := service.New(repo, nil, time.Minute)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

// mustHashPassword generates a bcrypt hash of the given password or fails the test.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func doJSON(t *testing.T, api *API, method, path, token, csrf string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/auth/login", "", "", map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatalf("expected access_token in response")
	}
	if resp.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %s", resp.Role)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/auth/login", "", "", map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestProductsRequireAuth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestProductsListAndSearch(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "vendedor", "vendedor123")

	rec := doJSON(t, api, http.MethodGet, "/api/v1/products", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Products) == 0 {
		t.Fatalf("expected seeded products in listing")
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/products?q=arroz", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for search, got %d", rec.Code)
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode search body: %v", err)
	}
	if len(body.Products) != 1 || body.Products[0].Code != "P-001" {
		t.Fatalf("expected search to match P-001, got %+v", body.Products)
	}
}

func TestProductLookupByCode(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "vendedor", "vendedor123")

	rec := doJSON(t, api, http.MethodGet, "/api/v1/products/code/p-001", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Product domain.Product `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Product.Code != "P-001" {
		t.Fatalf("expected product P-001, got %s", body.Product.Code)
	}
}

func TestCreateProductForbiddenForSeller(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "vendedor", "vendedor123")
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/products", token, csrf, domain.ProductCreateRequest{
		Code:           "X-001",
		Name:           "No permitido",
		SalePriceCents: 100,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for seller, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestCreateProductAsAdmin(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/products", token, csrf, domain.ProductCreateRequest{
		Code:           "X-100",
		Name:           "Producto nuevo",
		SalePriceCents: 990,
		InitialStock:   12,
		MinStock:       3,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Product domain.Product `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Product.Stock != 12 {
		t.Fatalf("expected stock 12 from initial stock, got %d", body.Product.Stock)
	}

	// Duplicate code must conflict.
	rec = doJSON(t, api, http.MethodPost, "/api/v1/products", token, csrf, domain.ProductCreateRequest{
		Code:           "X-100",
		Name:           "Duplicado",
		SalePriceCents: 990,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate code, got %d", rec.Code)
	}
}

func TestSaleFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "vendedor", "vendedor123")
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/sales", token, csrf, domain.SaleCreateRequest{
		Items: []domain.CartItem{
			{ProductID: 1, Qty: 2, UnitPriceCents: 250},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.SaleCreateResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.TotalCents != 500 {
		t.Fatalf("expected total 500, got %d", resp.TotalCents)
	}
	if resp.InvoiceNumber == "" {
		t.Fatalf("expected invoice number")
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/sales/"+resp.InvoiceNumber, token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on sale lookup, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var lookup struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&lookup); err != nil {
		t.Fatalf("decode lookup body: %v", err)
	}
	if len(lookup.Sale.Items) != 1 || lookup.Sale.Items[0].Qty != 2 {
		t.Fatalf("expected persisted line with qty 2, got %+v", lookup.Sale.Items)
	}
}

func TestSaleRejectsUnknownFields(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "vendedor", "vendedor123")
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/sales", token, csrf, map[string]any{
		"items":     []map[string]any{{"product_id": 1, "qty": 1, "unit_price_cents": 250}},
		"surcharge": 10,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestStockAdjustmentAdminOnlyRoute(t *testing.T) {
	api := newTestAPI(t)
	sellerToken := loginAs(t, api, "vendedor", "vendedor123")
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/inventory/movements", sellerToken, csrf, domain.StockAdjustmentRequest{
		ProductID: 1,
		Kind:      domain.MovementInbound,
		Qty:       5,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for seller on admin route, got %d", rec.Code)
	}

	adminToken := loginAsAdmin(t, api)
	rec = doJSON(t, api, http.MethodPost, "/api/v1/inventory/movements", adminToken, csrf, domain.StockAdjustmentRequest{
		ProductID: 1,
		Kind:      domain.MovementInbound,
		Qty:       5,
		Reason:    "Compra proveedor",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestLowStockReportEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "vendedor", "vendedor123")

	rec := doJSON(t, api, http.MethodGet, "/api/v1/reports/inventory/low-stock", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var report domain.LowStockReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.GeneratedAt == "" {
		t.Fatalf("expected generated_at timestamp")
	}
}

func TestDailySalesReportCSVFormat(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	rec := doJSON(t, api, http.MethodGet, "/api/v1/reports/sales/daily?format=csv", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
		t.Fatalf("expected csv content type, got %q", ct)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("summary,sale_count")) {
		t.Fatalf("expected csv summary rows, got %s", rec.Body.String())
	}
}

func TestUsersRouteRequiresAdminRole(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "vendedor", "vendedor123")

	rec := doJSON(t, api, http.MethodGet, "/api/v1/users", token, "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for seller on users route, got %d", rec.Code)
	}
}
