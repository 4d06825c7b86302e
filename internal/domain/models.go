package domain

import "time"

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type UserUpdateRequest struct {
	Password *string `json:"password,omitempty"`
	FullName *string `json:"full_name,omitempty"`
	Role     *string `json:"role,omitempty"`
	Active   *bool   `json:"active,omitempty"`
}

type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

type CategoryCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CategoryUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

type Product struct {
	ID             int64     `json:"id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	CategoryID     *int64    `json:"category_id,omitempty"`
	CategoryName   string    `json:"category_name,omitempty"`
	SalePriceCents int64     `json:"sale_price_cents"`
	CostPriceCents int64     `json:"cost_price_cents"`
	Stock          int       `json:"stock"`
	MinStock       int       `json:"min_stock"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

type ProductCreateRequest struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	CategoryID     *int64 `json:"category_id,omitempty"`
	SalePriceCents int64  `json:"sale_price_cents"`
	CostPriceCents int64  `json:"cost_price_cents"`
	InitialStock   int    `json:"initial_stock"`
	MinStock       int    `json:"min_stock"`
}

// Stock is deliberately absent from ProductUpdateRequest: stock only moves
// through the inventory ledger.
type ProductUpdateRequest struct {
	Code           *string `json:"code,omitempty"`
	Name           *string `json:"name,omitempty"`
	Description    *string `json:"description,omitempty"`
	CategoryID     *int64  `json:"category_id,omitempty"`
	SalePriceCents *int64  `json:"sale_price_cents,omitempty"`
	CostPriceCents *int64  `json:"cost_price_cents,omitempty"`
	MinStock       *int    `json:"min_stock,omitempty"`
	Active         *bool   `json:"active,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	FullName    string `json:"full_name"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	ID       int64
	Username string
	Role     string
}

type CartItem struct {
	ProductID      int64 `json:"product_id"`
	Qty            int   `json:"qty"`
	UnitPriceCents int64 `json:"unit_price_cents"`
	SubtotalCents  int64 `json:"subtotal_cents"`
}

type SaleLine struct {
	ID             int64  `json:"id"`
	SaleID         int64  `json:"sale_id"`
	ProductID      int64  `json:"product_id"`
	ProductName    string `json:"product_name,omitempty"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

type Sale struct {
	ID            int64      `json:"id"`
	InvoiceNumber string     `json:"invoice_number"`
	UserID        int64      `json:"user_id"`
	TotalCents    int64      `json:"total_cents"`
	DiscountCents int64      `json:"discount_cents"`
	TaxCents      int64      `json:"tax_cents"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	Items         []SaleLine `json:"items"`
}

type SaleCreateRequest struct {
	Items         []CartItem `json:"items"`
	DiscountCents int64      `json:"discount_cents"`
	TaxCents      int64      `json:"tax_cents"`
}

type SaleCreateResponse struct {
	SaleID        int64  `json:"sale_id"`
	InvoiceNumber string `json:"invoice_number"`
	TotalCents    int64  `json:"total_cents"`
	DiscountCents int64  `json:"discount_cents"`
	TaxCents      int64  `json:"tax_cents"`
	ItemCount     int    `json:"item_count"`
	CreatedAt     string `json:"created_at"`
}

type InventoryMovement struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	Kind      string    `json:"kind"`
	Qty       int       `json:"qty"`
	Reason    string    `json:"reason"`
	UserID    *int64    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type StockAdjustmentRequest struct {
	ProductID int64  `json:"product_id"`
	Kind      string `json:"kind"`
	Qty       int    `json:"qty"`
	Reason    string `json:"reason"`
}

type SalesReportRow struct {
	SoldAt        time.Time `json:"sold_at"`
	InvoiceNumber string    `json:"invoice_number"`
	SellerName    string    `json:"seller_name"`
	TotalCents    int64     `json:"total_cents"`
	DiscountCents int64     `json:"discount_cents"`
	NetCents      int64     `json:"net_cents"`
}

type SalesReport struct {
	From            string           `json:"from"`
	To              string           `json:"to"`
	Rows            []SalesReportRow `json:"rows"`
	SaleCount       int64            `json:"sale_count"`
	GrossCents      int64            `json:"gross_cents"`
	DiscountCents   int64            `json:"discount_cents"`
	NetCents        int64            `json:"net_cents"`
	AverageNetCents int64            `json:"average_net_cents"`
}

type TopProductRow struct {
	ProductID         int64  `json:"product_id"`
	Code              string `json:"code"`
	Name              string `json:"name"`
	QtySold           int64  `json:"qty_sold"`
	RevenueCents      int64  `json:"revenue_cents"`
	AvgUnitPriceCents int64  `json:"avg_unit_price_cents"`
}

type TopProductsReport struct {
	Limit             int             `json:"limit"`
	Rows              []TopProductRow `json:"rows"`
	TotalQtySold      int64           `json:"total_qty_sold"`
	TotalRevenueCents int64           `json:"total_revenue_cents"`
}

type LowStockRow struct {
	ProductID int64  `json:"product_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
	MinStock  int    `json:"min_stock"`
	Deficit   int    `json:"deficit"`
	Status    string `json:"status"`
}

type LowStockReport struct {
	Rows          []LowStockRow `json:"rows"`
	LowCount      int           `json:"low_count"`
	OutCount      int           `json:"out_count"`
	GeneratedAt   string        `json:"generated_at"`
	ServedByCache bool          `json:"served_by_cache,omitempty"`
}

type MovementReportRow struct {
	MovedAt     time.Time `json:"moved_at"`
	ProductID   int64     `json:"product_id"`
	ProductName string    `json:"product_name"`
	Kind        string    `json:"kind"`
	Qty         int       `json:"qty"`
	Reason      string    `json:"reason"`
	Username    string    `json:"username"`
}

type MovementsReport struct {
	From        string              `json:"from"`
	To          string              `json:"to"`
	Kind        string              `json:"kind,omitempty"`
	Rows        []MovementReportRow `json:"rows"`
	InboundQty  int                 `json:"inbound_qty"`
	OutboundQty int                 `json:"outbound_qty"`
	BalanceQty  int                 `json:"balance_qty"`
}

const (
	RoleAdmin  = "admin"
	RoleSeller = "seller"
)

const (
	MovementInbound  = "inbound"
	MovementOutbound = "outbound"
)

const SaleStatusCompleted = "completed"

const (
	StockStatusLow = "low_stock"
	StockStatusOut = "out_of_stock"
)
