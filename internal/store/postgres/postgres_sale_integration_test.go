package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"tiendapos/internal/domain"
)

func TestCreateSaleDecrementsStockAndWritesLedger(t *testing.T) {
	databaseURL := os.Getenv("TIENDAPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set TIENDAPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL, false)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	code := fmt.Sprintf("P-SALE-IT-%d", stamp)
	username := fmt.Sprintf("cajero-it-%d", stamp)
	invoice := fmt.Sprintf("FAC-IT-%d", stamp)

	user, err := s.CreateUser(ctx, domain.User{
		Username:     username,
		PasswordHash: "$2a$04$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy",
		FullName:     "Cajero Integración",
		Role:         domain.RoleSeller,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	product, err := s.CreateProduct(ctx, domain.Product{
		Code:           code,
		Name:           "Producto Venta IT",
		SalePriceCents: 2500,
		Stock:          10,
		MinStock:       2,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory_movements WHERE product_id = $1`, product.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE product_id = $1`, product.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE invoice_number = $1`, invoice)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, product.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, user.ID)
	})

	created, err := s.CreateSale(ctx, domain.Sale{
		InvoiceNumber: invoice,
		UserID:        user.ID,
		TotalCents:    7500,
		Items: []domain.SaleLine{
			{ProductID: product.ID, Qty: 3, UnitPriceCents: 2500, SubtotalCents: 7500},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected sale id to be assigned")
	}

	after, err := s.GetProductByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.Stock != 7 {
		t.Fatalf("expected stock 7 after sale, got %d", after.Stock)
	}

	var movements int
	var reason string
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(reason)
		FROM inventory_movements
		WHERE product_id = $1 AND kind = $2
	`, product.ID, domain.MovementOutbound).Scan(&movements, &reason)
	if err != nil {
		t.Fatalf("query movements: %v", err)
	}
	if movements != 1 {
		t.Fatalf("expected 1 outbound movement, got %d", movements)
	}
	if reason != "Venta "+invoice {
		t.Fatalf("expected movement reason %q, got %q", "Venta "+invoice, reason)
	}

	// A second sale for more than the remaining stock must fail atomically.
	_, err = s.CreateSale(ctx, domain.Sale{
		InvoiceNumber: invoice + "-2",
		UserID:        user.ID,
		TotalCents:    25000,
		Items: []domain.SaleLine{
			{ProductID: product.ID, Qty: 10, UnitPriceCents: 2500, SubtotalCents: 25000},
		},
	})
	if err == nil {
		t.Fatalf("expected insufficient stock error")
	}

	after, err = s.GetProductByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product after failed sale: %v", err)
	}
	if after.Stock != 7 {
		t.Fatalf("expected stock unchanged at 7 after failed sale, got %d", after.Stock)
	}
}
