package memory

import (
	"context"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tiendapos/internal/domain"
	"tiendapos/internal/store"
)

type Store struct {
	mu                 sync.RWMutex
	allowNegativeStock bool

	users      map[int64]domain.User
	categories map[int64]domain.Category
	products   map[int64]domain.Product
	sales      map[int64]domain.Sale
	movements  []domain.InventoryMovement

	salesByInvoice map[string]int64

	nextUserID     int64
	nextCategoryID int64
	nextProductID  int64
	nextSaleID     int64
	nextLineID     int64
	nextMovementID int64
}

// seedUsers builds the initial user accounts for dev/demo mode. Credentials
// come from SEED_ADMIN_PASSWORD and SEED_SELLER_PASSWORD; hardcoded dev
// defaults are used with a warning when unset. Production deployments use
// PostgreSQL (DATABASE_URL set) and never hit this path.
func seedUsers() map[int64]domain.User {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	sellerPwd := envOr("SEED_SELLER_PASSWORD", "vendedor123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_SELLER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_SELLER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[int64]domain.User{}
	for i, u := range []struct {
		username string
		password string
		fullName string
		role     string
	}{
		{"admin", adminPwd, "Administrador", domain.RoleAdmin},
		{"vendedor", sellerPwd, "Vendedor", domain.RoleSeller},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[int64(i+1)] = domain.User{
			ID:           int64(i + 1),
			Username:     u.username,
			PasswordHash: string(hash),
			FullName:     u.fullName,
			Role:         u.role,
			Active:       true,
			CreatedAt:    now,
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

func NewSeeded(allowNegativeStock bool) *Store {
	now := time.Now().UTC()

	categories := map[int64]domain.Category{
		1: {ID: 1, Name: "General", Description: "Productos generales", Active: true},
		2: {ID: 2, Name: "Electrónicos", Description: "Dispositivos electrónicos", Active: true},
		3: {ID: 3, Name: "Ropa", Description: "Vestimenta y accesorios", Active: true},
		4: {ID: 4, Name: "Alimentos", Description: "Productos alimenticios", Active: true},
		5: {ID: 5, Name: "Hogar", Description: "Artículos para el hogar", Active: true},
	}

	catID := func(id int64) *int64 { return &id }
	products := []domain.Product{
		{ID: 1, Code: "P-001", Name: "Arroz 1kg", CategoryID: catID(4), SalePriceCents: 250, CostPriceCents: 180, Stock: 50, MinStock: 10, Active: true, CreatedAt: now},
		{ID: 2, Code: "P-002", Name: "Aceite 1L", CategoryID: catID(4), SalePriceCents: 480, CostPriceCents: 350, Stock: 40, MinStock: 8, Active: true, CreatedAt: now},
		{ID: 3, Code: "P-003", Name: "Camiseta básica", CategoryID: catID(3), SalePriceCents: 1200, CostPriceCents: 700, Stock: 25, MinStock: 5, Active: true, CreatedAt: now},
		{ID: 4, Code: "P-004", Name: "Audífonos", CategoryID: catID(2), SalePriceCents: 3500, CostPriceCents: 2200, Stock: 15, MinStock: 3, Active: true, CreatedAt: now},
		{ID: 5, Code: "P-005", Name: "Detergente", CategoryID: catID(5), SalePriceCents: 650, CostPriceCents: 420, Stock: 30, MinStock: 6, Active: true, CreatedAt: now},
		{ID: 6, Code: "P-006", Name: "Cuaderno", CategoryID: catID(1), SalePriceCents: 180, CostPriceCents: 90, Stock: 60, MinStock: 12, Active: true, CreatedAt: now},
	}

	productMap := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}

	users := seedUsers()

	return &Store{
		allowNegativeStock: allowNegativeStock,
		users:              users,
		categories:         categories,
		products:           productMap,
		sales:              make(map[int64]domain.Sale),
		movements:          make([]domain.InventoryMovement, 0, 128),
		salesByInvoice:     make(map[string]int64),
		nextUserID:         int64(len(users)),
		nextCategoryID:     int64(len(categories)),
		nextProductID:      int64(len(products)),
	}
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || user.PasswordHash == "" || user.Role == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == user.Username {
			return nil, store.ErrDuplicate
		}
	}

	s.nextUserID++
	user.ID = s.nextUserID
	user.Active = true
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = user

	created := user
	return &created, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := user
	return &found, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Username == username {
			found := user
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if user.FullName == "" || user.Role == "" {
		return nil, store.ErrValidation
	}

	// Username is immutable; password changes go through UpdateUserPassword.
	existing.FullName = user.FullName
	existing.Role = user.Role
	existing.Active = user.Active
	s.users[user.ID] = existing

	updated := existing
	return &updated, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, passwordHash string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if passwordHash == "" {
		return store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, user := range s.users {
		if user.Username == username {
			user.PasswordHash = passwordHash
			s.users[id] = user
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) DeactivateUser(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.Active = false
	s.users[id] = user
	return nil
}

func (s *Store) CountActiveAdmins(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, user := range s.users {
		if user.Active && user.Role == domain.RoleAdmin {
			count++
		}
	}
	return count, nil
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.categories {
		if strings.EqualFold(existing.Name, category.Name) {
			return nil, store.ErrDuplicate
		}
	}

	s.nextCategoryID++
	category.ID = s.nextCategoryID
	category.Active = true
	s.categories[category.ID] = category

	created := category
	return &created, nil
}

func (s *Store) GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	category, ok := s.categories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := category
	return &found, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.Category, 0, len(s.categories))
	for _, category := range s.categories {
		if !category.Active {
			continue
		}
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (s *Store) UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.categories[category.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	for id, other := range s.categories {
		if id != category.ID && strings.EqualFold(other.Name, category.Name) {
			return nil, store.ErrDuplicate
		}
	}

	existing.Name = category.Name
	existing.Description = category.Description
	existing.Active = category.Active
	s.categories[category.ID] = existing

	updated := existing
	return &updated, nil
}

func (s *Store) DeactivateCategory(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	category, ok := s.categories[id]
	if !ok {
		return store.ErrNotFound
	}
	category.Active = false
	s.categories[id] = category
	return nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Code = strings.ToUpper(strings.TrimSpace(product.Code))
	product.Name = strings.TrimSpace(product.Name)
	if product.Code == "" || product.Name == "" || product.SalePriceCents < 1 {
		return nil, store.ErrValidation
	}
	if product.Stock < 0 || product.MinStock < 0 || product.CostPriceCents < 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.products {
		if existing.Code == product.Code {
			return nil, store.ErrDuplicate
		}
	}
	if product.CategoryID != nil {
		if _, ok := s.categories[*product.CategoryID]; !ok {
			return nil, store.ErrNotFound
		}
	}

	s.nextProductID++
	product.ID = s.nextProductID
	product.Active = true
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	s.products[product.ID] = product

	created := s.withCategoryNameLocked(product)
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := s.withCategoryNameLocked(product)
	return &found, nil
}

func (s *Store) GetProductByCode(ctx context.Context, code string) (*domain.Product, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, product := range s.products {
		if product.Code == code && product.Active {
			found := s.withCategoryNameLocked(product)
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) SearchProducts(ctx context.Context, term string) ([]domain.Product, error) {
	term = strings.ToLower(strings.TrimSpace(term))

	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, product := range s.products {
		if !product.Active {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(product.Code), term) &&
			!strings.Contains(strings.ToLower(product.Name), term) &&
			!strings.Contains(strings.ToLower(product.Description), term) {
			continue
		}
		products = append(products, s.withCategoryNameLocked(product))
	}
	sort.Slice(products, func(i, j int) bool {
		if products[i].Name != products[j].Name {
			return products[i].Name < products[j].Name
		}
		return products[i].ID < products[j].ID
	})
	return products, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Code = strings.ToUpper(strings.TrimSpace(product.Code))
	product.Name = strings.TrimSpace(product.Name)
	if product.Code == "" || product.Name == "" || product.SalePriceCents < 1 {
		return nil, store.ErrValidation
	}
	if product.MinStock < 0 || product.CostPriceCents < 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	for id, other := range s.products {
		if id != product.ID && other.Code == product.Code {
			return nil, store.ErrDuplicate
		}
	}
	if product.CategoryID != nil {
		if _, ok := s.categories[*product.CategoryID]; !ok {
			return nil, store.ErrNotFound
		}
	}

	// Stock is owned by the movement ledger; carry the stored value forward.
	product.Stock = existing.Stock
	product.CreatedAt = existing.CreatedAt
	s.products[product.ID] = product

	updated := s.withCategoryNameLocked(product)
	return &updated, nil
}

func (s *Store) DeactivateProduct(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok {
		return store.ErrNotFound
	}
	product.Active = false
	s.products[id] = product
	return nil
}

func (s *Store) ApplyMovement(ctx context.Context, movement domain.InventoryMovement) (*domain.InventoryMovement, error) {
	if movement.Qty < 1 {
		return nil, store.ErrValidation
	}
	if movement.Kind != domain.MovementInbound && movement.Kind != domain.MovementOutbound {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	applied, err := s.applyMovementLocked(movement)
	if err != nil {
		return nil, err
	}
	result := *applied
	return &result, nil
}

// applyMovementLocked updates product stock and appends the ledger row.
// Callers must hold the write lock.
func (s *Store) applyMovementLocked(movement domain.InventoryMovement) (*domain.InventoryMovement, error) {
	product, ok := s.products[movement.ProductID]
	if !ok {
		return nil, store.ErrNotFound
	}

	if movement.Kind == domain.MovementOutbound {
		if !s.allowNegativeStock && product.Stock < movement.Qty {
			return nil, store.ErrInsufficientStock
		}
		product.Stock -= movement.Qty
	} else {
		product.Stock += movement.Qty
	}
	s.products[movement.ProductID] = product

	s.nextMovementID++
	movement.ID = s.nextMovementID
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}
	s.movements = append(s.movements, movement)

	return &s.movements[len(s.movements)-1], nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.InvoiceNumber == "" || len(sale.Items) == 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salesByInvoice[sale.InvoiceNumber]; exists {
		return nil, store.ErrDuplicate
	}
	if _, ok := s.users[sale.UserID]; !ok {
		return nil, store.ErrNotFound
	}

	// Validate every line before touching any stock so a failure leaves
	// nothing persisted. Quantities are summed per product because the same
	// product may appear on more than one line.
	required := make(map[int64]int, len(sale.Items))
	for _, item := range sale.Items {
		if item.Qty < 1 {
			return nil, store.ErrValidation
		}
		product, ok := s.products[item.ProductID]
		if !ok || !product.Active {
			return nil, store.ErrNotFound
		}
		required[item.ProductID] += item.Qty
		if !s.allowNegativeStock && product.Stock < required[item.ProductID] {
			return nil, store.ErrInsufficientStock
		}
	}

	s.nextSaleID++
	sale.ID = s.nextSaleID
	if sale.Status == "" {
		sale.Status = domain.SaleStatusCompleted
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	userID := sale.UserID
	for i := range sale.Items {
		s.nextLineID++
		sale.Items[i].ID = s.nextLineID
		sale.Items[i].SaleID = sale.ID

		if _, err := s.applyMovementLocked(domain.InventoryMovement{
			ProductID: sale.Items[i].ProductID,
			Kind:      domain.MovementOutbound,
			Qty:       sale.Items[i].Qty,
			Reason:    "Venta " + sale.InvoiceNumber,
			UserID:    &userID,
			CreatedAt: sale.CreatedAt,
		}); err != nil {
			return nil, err
		}
	}

	s.sales[sale.ID] = cloneSale(sale)
	s.salesByInvoice[sale.InvoiceNumber] = sale.ID

	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) GetSaleByInvoice(ctx context.Context, invoiceNumber string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.salesByInvoice[invoiceNumber]
	if !ok {
		return nil, store.ErrNotFound
	}
	sale := cloneSale(s.sales[id])
	for i := range sale.Items {
		if product, ok := s.products[sale.Items[i].ProductID]; ok {
			sale.Items[i].ProductName = product.Name
		}
	}
	return &sale, nil
}

func (s *Store) SalesReport(ctx context.Context, from time.Time, to time.Time) (domain.SalesReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.SalesReport{
		From: from.UTC().Format("2006-01-02"),
		To:   to.UTC().Format("2006-01-02"),
		Rows: make([]domain.SalesReportRow, 0, len(s.sales)),
	}

	for _, sale := range s.sales {
		if sale.Status != domain.SaleStatusCompleted {
			continue
		}
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}

		sellerName := ""
		if user, ok := s.users[sale.UserID]; ok {
			sellerName = user.FullName
			if sellerName == "" {
				sellerName = user.Username
			}
		}

		net := sale.TotalCents - sale.DiscountCents
		report.Rows = append(report.Rows, domain.SalesReportRow{
			SoldAt:        sale.CreatedAt,
			InvoiceNumber: sale.InvoiceNumber,
			SellerName:    sellerName,
			TotalCents:    sale.TotalCents,
			DiscountCents: sale.DiscountCents,
			NetCents:      net,
		})
		report.SaleCount++
		report.GrossCents += sale.TotalCents
		report.DiscountCents += sale.DiscountCents
		report.NetCents += net
	}

	sort.Slice(report.Rows, func(i, j int) bool {
		if !report.Rows[i].SoldAt.Equal(report.Rows[j].SoldAt) {
			return report.Rows[i].SoldAt.After(report.Rows[j].SoldAt)
		}
		return report.Rows[i].InvoiceNumber > report.Rows[j].InvoiceNumber
	})

	if report.SaleCount > 0 {
		report.AverageNetCents = report.NetCents / report.SaleCount
	}
	return report, nil
}

func (s *Store) TopProducts(ctx context.Context, limit int) (domain.TopProductsReport, error) {
	if limit < 1 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type aggregate struct {
		qty     int64
		revenue int64
	}
	byProduct := make(map[int64]aggregate)
	for _, sale := range s.sales {
		if sale.Status != domain.SaleStatusCompleted {
			continue
		}
		for _, item := range sale.Items {
			agg := byProduct[item.ProductID]
			agg.qty += int64(item.Qty)
			agg.revenue += item.SubtotalCents
			byProduct[item.ProductID] = agg
		}
	}

	report := domain.TopProductsReport{
		Limit: limit,
		Rows:  make([]domain.TopProductRow, 0, len(byProduct)),
	}
	for productID, agg := range byProduct {
		row := domain.TopProductRow{
			ProductID:    productID,
			QtySold:      agg.qty,
			RevenueCents: agg.revenue,
		}
		if product, ok := s.products[productID]; ok {
			row.Code = product.Code
			row.Name = product.Name
		}
		if agg.qty > 0 {
			row.AvgUnitPriceCents = agg.revenue / agg.qty
		}
		report.Rows = append(report.Rows, row)
		report.TotalQtySold += agg.qty
		report.TotalRevenueCents += agg.revenue
	}

	sort.Slice(report.Rows, func(i, j int) bool {
		if report.Rows[i].QtySold != report.Rows[j].QtySold {
			return report.Rows[i].QtySold > report.Rows[j].QtySold
		}
		if report.Rows[i].RevenueCents != report.Rows[j].RevenueCents {
			return report.Rows[i].RevenueCents > report.Rows[j].RevenueCents
		}
		return report.Rows[i].ProductID < report.Rows[j].ProductID
	})
	if len(report.Rows) > limit {
		report.Rows = report.Rows[:limit]
	}
	return report, nil
}

func (s *Store) LowStockReport(ctx context.Context) (domain.LowStockReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.LowStockReport{
		Rows:        make([]domain.LowStockRow, 0, 16),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, product := range s.products {
		if !product.Active || product.Stock > product.MinStock {
			continue
		}
		status := domain.StockStatusLow
		if product.Stock <= 0 {
			status = domain.StockStatusOut
			report.OutCount++
		} else {
			report.LowCount++
		}
		report.Rows = append(report.Rows, domain.LowStockRow{
			ProductID: product.ID,
			Code:      product.Code,
			Name:      product.Name,
			Stock:     product.Stock,
			MinStock:  product.MinStock,
			Deficit:   product.MinStock - product.Stock,
			Status:    status,
		})
	}
	sort.Slice(report.Rows, func(i, j int) bool {
		left := report.Rows[i].Stock - report.Rows[i].MinStock
		right := report.Rows[j].Stock - report.Rows[j].MinStock
		if left != right {
			return left < right
		}
		return report.Rows[i].Name < report.Rows[j].Name
	})
	return report, nil
}

func (s *Store) MovementsReport(ctx context.Context, from time.Time, to time.Time, kind string) (domain.MovementsReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.MovementsReport{
		From: from.UTC().Format("2006-01-02"),
		To:   to.UTC().Format("2006-01-02"),
		Kind: kind,
		Rows: make([]domain.MovementReportRow, 0, len(s.movements)),
	}

	for _, movement := range s.movements {
		if movement.CreatedAt.Before(from) || !movement.CreatedAt.Before(to) {
			continue
		}
		if kind != "" && movement.Kind != kind {
			continue
		}

		row := domain.MovementReportRow{
			MovedAt:   movement.CreatedAt,
			ProductID: movement.ProductID,
			Kind:      movement.Kind,
			Qty:       movement.Qty,
			Reason:    movement.Reason,
		}
		if product, ok := s.products[movement.ProductID]; ok {
			row.ProductName = product.Name
		}
		if movement.UserID != nil {
			if user, ok := s.users[*movement.UserID]; ok {
				row.Username = user.Username
			}
		}
		report.Rows = append(report.Rows, row)

		if movement.Kind == domain.MovementInbound {
			report.InboundQty += movement.Qty
		} else {
			report.OutboundQty += movement.Qty
		}
	}

	sort.Slice(report.Rows, func(i, j int) bool {
		return report.Rows[i].MovedAt.After(report.Rows[j].MovedAt)
	})
	report.BalanceQty = report.InboundQty - report.OutboundQty
	return report, nil
}

// withCategoryNameLocked fills the denormalized category name for reads.
// Callers must hold at least the read lock.
func (s *Store) withCategoryNameLocked(product domain.Product) domain.Product {
	if product.CategoryID != nil {
		if category, ok := s.categories[*product.CategoryID]; ok {
			product.CategoryName = category.Name
		}
	}
	return product
}

func cloneSale(sale domain.Sale) domain.Sale {
	cloned := sale
	cloned.Items = make([]domain.SaleLine, len(sale.Items))
	copy(cloned.Items, sale.Items)
	return cloned
}
