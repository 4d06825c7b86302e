package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/crypto/bcrypt"

	"tiendapos/internal/domain"
	"tiendapos/internal/store"
)

type Store struct {
	db                 *sql.DB
	allowNegativeStock bool
}

func New(ctx context.Context, databaseURL string, allowNegativeStock bool) (*Store, error) {
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

	s := &Store{db: db, allowNegativeStock: allowNegativeStock}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			full_name TEXT NOT NULL,
			role TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id BIGSERIAL PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id BIGSERIAL PRIMARY KEY,
			code TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category_id BIGINT REFERENCES categories (id),
			sale_price_cents BIGINT NOT NULL,
			cost_price_cents BIGINT NOT NULL DEFAULT 0,
			stock INTEGER NOT NULL DEFAULT 0,
			min_stock INTEGER NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS sales (
			id BIGSERIAL PRIMARY KEY,
			invoice_number TEXT UNIQUE NOT NULL,
			user_id BIGINT NOT NULL REFERENCES users (id),
			total_cents BIGINT NOT NULL,
			discount_cents BIGINT NOT NULL DEFAULT 0,
			tax_cents BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'completed',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS sale_items (
			id BIGSERIAL PRIMARY KEY,
			sale_id BIGINT NOT NULL REFERENCES sales (id),
			product_id BIGINT NOT NULL REFERENCES products (id),
			qty INTEGER NOT NULL,
			unit_price_cents BIGINT NOT NULL,
			subtotal_cents BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS inventory_movements (
			id BIGSERIAL PRIMARY KEY,
			product_id BIGINT NOT NULL REFERENCES products (id),
			kind TEXT NOT NULL,
			qty INTEGER NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			user_id BIGINT REFERENCES users (id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_code ON products (code)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_created_at ON sales (created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sale_items_sale_id ON sale_items (sale_id)`,
		`CREATE INDEX IF NOT EXISTS idx_movements_created_at ON inventory_movements (created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_movements_product_id ON inventory_movements (product_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Bootstrap creates the default admin account when no active admin exists and
// inserts the default category set. Both steps are idempotent.
func (s *Store) Bootstrap(ctx context.Context, seedAdminPassword string) error {
	admins, err := s.CountActiveAdmins(ctx)
	if err != nil {
		return err
	}
	if admins == 0 {
		if seedAdminPassword == "" {
			seedAdminPassword = "admin123"
			log.Println("[postgres-store] WARNING: creating default admin with dev password. Set SEED_ADMIN_PASSWORD to override.")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(seedAdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO users (username, password_hash, full_name, role, active)
			VALUES ('admin', $1, 'Administrador', $2, true)
			ON CONFLICT (username) DO NOTHING
		`, string(hash), domain.RoleAdmin)
		if err != nil {
			return err
		}
	}

	defaults := []struct {
		name        string
		description string
	}{
		{"General", "Productos generales"},
		{"Electrónicos", "Dispositivos electrónicos"},
		{"Ropa", "Vestimenta y accesorios"},
		{"Alimentos", "Productos alimenticios"},
		{"Hogar", "Artículos para el hogar"},
	}
	for _, c := range defaults {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO categories (name, description, active)
			VALUES ($1, $2, true)
			ON CONFLICT (name) DO NOTHING
		`, c.name, c.description)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || user.PasswordHash == "" || user.Role == "" {
		return nil, store.ErrValidation
	}

	user.Active = true
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash, full_name, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, user.Username, user.PasswordHash, user.FullName, user.Role, user.Active, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	created := user
	return &created, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getUser(ctx, `WHERE username = $1`, strings.ToLower(strings.TrimSpace(username)))
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	var user domain.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, full_name, role, active, created_at
		FROM users
	`+where, arg).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.FullName, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password_hash, full_name, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, 16)
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.FullName, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	if user.FullName == "" || user.Role == "" {
		return nil, store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET full_name = $2, role = $3, active = $4
		WHERE id = $1
	`, user.ID, user.FullName, user.Role, user.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetUserByID(ctx, user.ID)
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, passwordHash string) error {
	if passwordHash == "" {
		return store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $2
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username)), passwordHash)
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

func (s *Store) DeactivateUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET active = false
		WHERE id = $1
	`, id)
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

func (s *Store) CountActiveAdmins(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM users
		WHERE active = true AND role = $1
	`, domain.RoleAdmin).Scan(&count)
	return count, err
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return nil, store.ErrValidation
	}

	category.Active = true
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO categories (name, description, active)
		VALUES ($1,$2,$3)
		RETURNING id
	`, category.Name, category.Description, category.Active).Scan(&category.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	created := category
	return &created, nil
}

func (s *Store) GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error) {
	var category domain.Category
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, active
		FROM categories
		WHERE id = $1
	`, id).Scan(&category.ID, &category.Name, &category.Description, &category.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &category, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, active
		FROM categories
		WHERE active = true
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		var category domain.Category
		if err := rows.Scan(&category.ID, &category.Name, &category.Description, &category.Active); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Store) UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return nil, store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE categories
		SET name = $2, description = $3, active = $4
		WHERE id = $1
	`, category.ID, category.Name, category.Description, category.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := category
	return &updated, nil
}

func (s *Store) DeactivateCategory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE categories
		SET active = false
		WHERE id = $1
	`, id)
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

const productColumns = `
	p.id, p.code, p.name, p.description, p.category_id, c.name,
	p.sale_price_cents, p.cost_price_cents, p.stock, p.min_stock, p.active, p.created_at
`

func scanProduct(scanner interface{ Scan(...any) error }) (domain.Product, error) {
	var product domain.Product
	var categoryID sql.NullInt64
	var categoryName sql.NullString
	err := scanner.Scan(
		&product.ID, &product.Code, &product.Name, &product.Description,
		&categoryID, &categoryName,
		&product.SalePriceCents, &product.CostPriceCents,
		&product.Stock, &product.MinStock, &product.Active, &product.CreatedAt,
	)
	if err != nil {
		return product, err
	}
	if categoryID.Valid {
		id := categoryID.Int64
		product.CategoryID = &id
	}
	if categoryName.Valid {
		product.CategoryName = categoryName.String
	}
	product.CreatedAt = product.CreatedAt.UTC()
	return product, nil
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

	product.Active = true
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (code, name, description, category_id, sale_price_cents, cost_price_cents, stock, min_stock, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id
	`, product.Code, product.Name, product.Description, nullInt64(product.CategoryID),
		product.SalePriceCents, product.CostPriceCents, product.Stock, product.MinStock,
		product.Active, product.CreatedAt).Scan(&product.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1
	`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) GetProductByCode(ctx context.Context, code string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.code = $1 AND p.active = true
	`, strings.ToUpper(strings.TrimSpace(code)))
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) SearchProducts(ctx context.Context, term string) ([]domain.Product, error) {
	term = strings.TrimSpace(term)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.active = true
			AND ($1 = '' OR p.code ILIKE '%' || $1 || '%' OR p.name ILIKE '%' || $1 || '%' OR p.description ILIKE '%' || $1 || '%')
		ORDER BY p.name, p.id
	`, term)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
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

	// Stock is deliberately not in the column list: it only moves through
	// the inventory ledger.
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET code = $2, name = $3, description = $4, category_id = $5,
			sale_price_cents = $6, cost_price_cents = $7, min_stock = $8, active = $9
		WHERE id = $1
	`, product.ID, product.Code, product.Name, product.Description, nullInt64(product.CategoryID),
		product.SalePriceCents, product.CostPriceCents, product.MinStock, product.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) DeactivateProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET active = false
		WHERE id = $1
	`, id)
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

func (s *Store) ApplyMovement(ctx context.Context, movement domain.InventoryMovement) (*domain.InventoryMovement, error) {
	if movement.Qty < 1 {
		return nil, store.ErrValidation
	}
	if movement.Kind != domain.MovementInbound && movement.Kind != domain.MovementOutbound {
		return nil, store.ErrValidation
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	applied, err := s.applyMovementTx(ctx, tx, movement)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return applied, nil
}

// applyMovementTx locks the product row, moves its stock, and appends the
// ledger row inside the caller's transaction.
func (s *Store) applyMovementTx(ctx context.Context, tx *sql.Tx, movement domain.InventoryMovement) (*domain.InventoryMovement, error) {
	var stock int
	err := tx.QueryRowContext(ctx, `
		SELECT stock
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, movement.ProductID).Scan(&stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	delta := movement.Qty
	if movement.Kind == domain.MovementOutbound {
		if !s.allowNegativeStock && stock < movement.Qty {
			return nil, store.ErrInsufficientStock
		}
		delta = -movement.Qty
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2
		WHERE id = $1
	`, movement.ProductID, delta)
	if err != nil {
		return nil, err
	}

	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO inventory_movements (product_id, kind, qty, reason, user_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, movement.ProductID, movement.Kind, movement.Qty, movement.Reason, nullInt64(movement.UserID), movement.CreatedAt).Scan(&movement.ID)
	if err != nil {
		return nil, err
	}

	applied := movement
	return &applied, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.InvoiceNumber == "" || len(sale.Items) == 0 {
		return nil, store.ErrValidation
	}
	for _, item := range sale.Items {
		if item.Qty < 1 {
			return nil, store.ErrValidation
		}
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if sale.Status == "" {
		sale.Status = domain.SaleStatusCompleted
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO sales (invoice_number, user_id, total_cents, discount_cents, tax_cents, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, sale.InvoiceNumber, sale.UserID, sale.TotalCents, sale.DiscountCents, sale.TaxCents, sale.Status, sale.CreatedAt).Scan(&sale.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	userID := sale.UserID
	for i := range sale.Items {
		item := &sale.Items[i]

		var active bool
		err := tx.QueryRowContext(ctx, `
			SELECT active
			FROM products
			WHERE id = $1
		`, item.ProductID).Scan(&active)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		if !active {
			return nil, store.ErrNotFound
		}

		item.SaleID = sale.ID
		err = tx.QueryRowContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, qty, unit_price_cents, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING id
		`, item.SaleID, item.ProductID, item.Qty, item.UnitPriceCents, item.SubtotalCents).Scan(&item.ID)
		if err != nil {
			return nil, err
		}

		if _, err := s.applyMovementTx(ctx, tx, domain.InventoryMovement{
			ProductID: item.ProductID,
			Kind:      domain.MovementOutbound,
			Qty:       item.Qty,
			Reason:    "Venta " + sale.InvoiceNumber,
			UserID:    &userID,
			CreatedAt: sale.CreatedAt,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := sale
	return &created, nil
}

func (s *Store) GetSaleByInvoice(ctx context.Context, invoiceNumber string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, invoice_number, user_id, total_cents, discount_cents, tax_cents, status, created_at
		FROM sales
		WHERE invoice_number = $1
	`, invoiceNumber).Scan(&sale.ID, &sale.InvoiceNumber, &sale.UserID, &sale.TotalCents, &sale.DiscountCents, &sale.TaxCents, &sale.Status, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT si.id, si.sale_id, si.product_id, p.name, si.qty, si.unit_price_cents, si.subtotal_cents
		FROM sale_items si
		JOIN products p ON p.id = si.product_id
		WHERE si.sale_id = $1
		ORDER BY si.id
	`, sale.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sale.Items = make([]domain.SaleLine, 0, 8)
	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.ID, &line.SaleID, &line.ProductID, &line.ProductName, &line.Qty, &line.UnitPriceCents, &line.SubtotalCents); err != nil {
			return nil, err
		}
		sale.Items = append(sale.Items, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &sale, nil
}

func (s *Store) SalesReport(ctx context.Context, from time.Time, to time.Time) (domain.SalesReport, error) {
	report := domain.SalesReport{
		From: from.UTC().Format("2006-01-02"),
		To:   to.UTC().Format("2006-01-02"),
		Rows: make([]domain.SalesReportRow, 0, 64),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.created_at, s.invoice_number, COALESCE(NULLIF(u.full_name, ''), u.username),
			s.total_cents, s.discount_cents
		FROM sales s
		JOIN users u ON u.id = s.user_id
		WHERE s.status = $1
			AND s.created_at >= $2
			AND s.created_at < $3
		ORDER BY s.created_at DESC, s.id DESC
	`, domain.SaleStatusCompleted, from, to)
	if err != nil {
		return report, err
	}
	defer rows.Close()

	for rows.Next() {
		var row domain.SalesReportRow
		if err := rows.Scan(&row.SoldAt, &row.InvoiceNumber, &row.SellerName, &row.TotalCents, &row.DiscountCents); err != nil {
			return report, err
		}
		row.SoldAt = row.SoldAt.UTC()
		row.NetCents = row.TotalCents - row.DiscountCents
		report.Rows = append(report.Rows, row)
		report.SaleCount++
		report.GrossCents += row.TotalCents
		report.DiscountCents += row.DiscountCents
		report.NetCents += row.NetCents
	}
	if err := rows.Err(); err != nil {
		return report, err
	}

	if report.SaleCount > 0 {
		report.AverageNetCents = report.NetCents / report.SaleCount
	}
	return report, nil
}

func (s *Store) TopProducts(ctx context.Context, limit int) (domain.TopProductsReport, error) {
	if limit < 1 {
		limit = 10
	}
	report := domain.TopProductsReport{
		Limit: limit,
		Rows:  make([]domain.TopProductRow, 0, limit),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(si.qty),0)::bigint, COALESCE(SUM(si.subtotal_cents),0)::bigint
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		WHERE s.status = $1
	`, domain.SaleStatusCompleted).Scan(&report.TotalQtySold, &report.TotalRevenueCents)
	if err != nil {
		return report, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.code, p.name, SUM(si.qty)::bigint, SUM(si.subtotal_cents)::bigint
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		JOIN products p ON p.id = si.product_id
		WHERE s.status = $1
		GROUP BY p.id, p.code, p.name
		ORDER BY SUM(si.qty) DESC, SUM(si.subtotal_cents) DESC, p.id
		LIMIT $2
	`, domain.SaleStatusCompleted, limit)
	if err != nil {
		return report, err
	}
	defer rows.Close()

	for rows.Next() {
		var row domain.TopProductRow
		if err := rows.Scan(&row.ProductID, &row.Code, &row.Name, &row.QtySold, &row.RevenueCents); err != nil {
			return report, err
		}
		if row.QtySold > 0 {
			row.AvgUnitPriceCents = row.RevenueCents / row.QtySold
		}
		report.Rows = append(report.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Store) LowStockReport(ctx context.Context) (domain.LowStockReport, error) {
	report := domain.LowStockReport{
		Rows:        make([]domain.LowStockRow, 0, 16),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name, stock, min_stock
		FROM products
		WHERE active = true AND stock <= min_stock
		ORDER BY (stock - min_stock), name
	`)
	if err != nil {
		return report, err
	}
	defer rows.Close()

	for rows.Next() {
		var row domain.LowStockRow
		if err := rows.Scan(&row.ProductID, &row.Code, &row.Name, &row.Stock, &row.MinStock); err != nil {
			return report, err
		}
		row.Deficit = row.MinStock - row.Stock
		if row.Stock <= 0 {
			row.Status = domain.StockStatusOut
			report.OutCount++
		} else {
			row.Status = domain.StockStatusLow
			report.LowCount++
		}
		report.Rows = append(report.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Store) MovementsReport(ctx context.Context, from time.Time, to time.Time, kind string) (domain.MovementsReport, error) {
	report := domain.MovementsReport{
		From: from.UTC().Format("2006-01-02"),
		To:   to.UTC().Format("2006-01-02"),
		Kind: kind,
		Rows: make([]domain.MovementReportRow, 0, 64),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.created_at, m.product_id, p.name, m.kind, m.qty, m.reason, COALESCE(u.username, '')
		FROM inventory_movements m
		JOIN products p ON p.id = m.product_id
		LEFT JOIN users u ON u.id = m.user_id
		WHERE m.created_at >= $1
			AND m.created_at < $2
			AND ($3 = '' OR m.kind = $3)
		ORDER BY m.created_at DESC, m.id DESC
	`, from, to, kind)
	if err != nil {
		return report, err
	}
	defer rows.Close()

	for rows.Next() {
		var row domain.MovementReportRow
		if err := rows.Scan(&row.MovedAt, &row.ProductID, &row.ProductName, &row.Kind, &row.Qty, &row.Reason, &row.Username); err != nil {
			return report, err
		}
		row.MovedAt = row.MovedAt.UTC()
		report.Rows = append(report.Rows, row)

		if row.Kind == domain.MovementInbound {
			report.InboundQty += row.Qty
		} else {
			report.OutboundQty += row.Qty
		}
	}
	if err := rows.Err(); err != nil {
		return report, err
	}
	report.BalanceQty = report.InboundQty - report.OutboundQty
	return report, nil
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

func nullInt64(val *int64) any {
	if val == nil {
		return nil
	}
	return *val
}
