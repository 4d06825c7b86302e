package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tiendapos/internal/cache"
	"tiendapos/internal/domain"
	"tiendapos/internal/invoice"
	"tiendapos/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo          store.Repository
	lowStockCache cache.LowStockCache
	lowStockTTL   time.Duration
}

func New(repo store.Repository, lowStockCache cache.LowStockCache, lowStockTTL time.Duration) *Service {
	if lowStockCache == nil {
		lowStockCache = cache.NoopLowStockCache{}
	}
	if lowStockTTL <= 0 {
		lowStockTTL = 30 * time.Second
	}

	return &Service{
		repo:          repo,
		lowStockCache: lowStockCache,
		lowStockTTL:   lowStockTTL,
	}
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.User, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.User{}, fmt.Errorf("admin role required")
	}

	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.FullName = strings.TrimSpace(req.FullName)
	if req.Username == "" || req.FullName == "" {
		return domain.User{}, store.ErrValidation
	}
	if len(req.Password) < 6 {
		return domain.User{}, store.ErrValidation
	}
	if req.Role != domain.RoleAdmin && req.Role != domain.RoleSeller {
		return domain.User{}, store.ErrValidation
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}

	created, err := s.repo.CreateUser(ctx, domain.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         req.Role,
		Active:       true,
	})
	if err != nil {
		return domain.User{}, err
	}

	log.Printf("[service] user created username=%s role=%s by=%s", created.Username, created.Role, actor.Username)
	return *created, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (domain.User, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.User{}, fmt.Errorf("admin role required")
	}

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	return *user, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("admin role required")
	}
	return s.repo.ListUsers(ctx)
}

func (s *Service) UpdateUser(ctx context.Context, id int64, req domain.UserUpdateRequest) (domain.User, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.User{}, fmt.Errorf("admin role required")
	}

	existing, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	updated := *existing
	if req.FullName != nil {
		fullName := strings.TrimSpace(*req.FullName)
		if fullName == "" {
			return domain.User{}, store.ErrValidation
		}
		updated.FullName = fullName
	}
	if req.Role != nil {
		if *req.Role != domain.RoleAdmin && *req.Role != domain.RoleSeller {
			return domain.User{}, store.ErrValidation
		}
		updated.Role = *req.Role
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	if s.dropsLastActiveAdmin(*existing, updated) {
		if err := s.guardLastActiveAdmin(ctx); err != nil {
			return domain.User{}, err
		}
	}

	saved, err := s.repo.UpdateUser(ctx, updated)
	if err != nil {
		return domain.User{}, err
	}

	if req.Password != nil {
		if len(*req.Password) < 6 {
			return domain.User{}, store.ErrValidation
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return domain.User{}, err
		}
		if err := s.repo.UpdateUserPassword(ctx, saved.Username, string(hash)); err != nil {
			return domain.User{}, err
		}
	}

	return *saved, nil
}

func (s *Service) DeactivateUser(ctx context.Context, id int64) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}

	existing, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.Active && existing.Role == domain.RoleAdmin {
		if err := s.guardLastActiveAdmin(ctx); err != nil {
			return err
		}
	}

	if err := s.repo.DeactivateUser(ctx, id); err != nil {
		return err
	}

	log.Printf("[service] user deactivated username=%s by=%s", existing.Username, actor.Username)
	return nil
}

func (s *Service) dropsLastActiveAdmin(before domain.User, after domain.User) bool {
	if !before.Active || before.Role != domain.RoleAdmin {
		return false
	}
	return !after.Active || after.Role != domain.RoleAdmin
}

func (s *Service) guardLastActiveAdmin(ctx context.Context) error {
	admins, err := s.repo.CountActiveAdmins(ctx)
	if err != nil {
		return err
	}
	if admins <= 1 {
		return fmt.Errorf("cannot remove the last active admin: %w", store.ErrValidation)
	}
	return nil
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryCreateRequest) (domain.Category, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Category{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Category{}, store.ErrValidation
	}

	created, err := s.repo.CreateCategory(ctx, domain.Category{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Active:      true,
	})
	if err != nil {
		return domain.Category{}, err
	}
	return *created, nil
}

func (s *Service) GetCategory(ctx context.Context, id int64) (domain.Category, error) {
	category, err := s.repo.GetCategoryByID(ctx, id)
	if err != nil {
		return domain.Category{}, err
	}
	return *category, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) UpdateCategory(ctx context.Context, id int64, req domain.CategoryUpdateRequest) (domain.Category, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Category{}, fmt.Errorf("admin role required")
	}

	existing, err := s.repo.GetCategoryByID(ctx, id)
	if err != nil {
		return domain.Category{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Category{}, store.ErrValidation
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateCategory(ctx, updated)
	if err != nil {
		return domain.Category{}, err
	}
	return *saved, nil
}

func (s *Service) DeactivateCategory(ctx context.Context, id int64) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}
	return s.repo.DeactivateCategory(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Name = strings.TrimSpace(req.Name)
	if req.Code == "" || req.Name == "" {
		return domain.Product{}, store.ErrValidation
	}
	if req.SalePriceCents < 1 || req.CostPriceCents < 0 || req.InitialStock < 0 || req.MinStock < 0 {
		return domain.Product{}, store.ErrValidation
	}
	if req.CategoryID != nil {
		if _, err := s.repo.GetCategoryByID(ctx, *req.CategoryID); err != nil {
			return domain.Product{}, err
		}
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Code:           req.Code,
		Name:           req.Name,
		Description:    strings.TrimSpace(req.Description),
		CategoryID:     req.CategoryID,
		SalePriceCents: req.SalePriceCents,
		CostPriceCents: req.CostPriceCents,
		MinStock:       req.MinStock,
		Active:         true,
	})
	if err != nil {
		return domain.Product{}, err
	}

	// Initial stock goes through the ledger so every unit on hand has a
	// movement row behind it.
	if req.InitialStock > 0 {
		userID := actor.ID
		_, err := s.repo.ApplyMovement(ctx, domain.InventoryMovement{
			ProductID: created.ID,
			Kind:      domain.MovementInbound,
			Qty:       req.InitialStock,
			Reason:    "Stock inicial",
			UserID:    &userID,
		})
		if err != nil {
			return domain.Product{}, err
		}
		refreshed, err := s.repo.GetProductByID(ctx, created.ID)
		if err != nil {
			return domain.Product{}, err
		}
		created = refreshed
	}

	log.Printf("[service] product created code=%s price=%d stock=%d by=%s", created.Code, created.SalePriceCents, created.Stock, actor.Username)
	return *created, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) GetProductByCode(ctx context.Context, code string) (domain.Product, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return domain.Product{}, store.ErrValidation
	}
	product, err := s.repo.GetProductByCode(ctx, code)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) SearchProducts(ctx context.Context, term string) ([]domain.Product, error) {
	return s.repo.SearchProducts(ctx, strings.TrimSpace(term))
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Code != nil {
		code := strings.ToUpper(strings.TrimSpace(*req.Code))
		if code == "" {
			return domain.Product{}, store.ErrValidation
		}
		updated.Code = code
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrValidation
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.CategoryID != nil {
		if _, err := s.repo.GetCategoryByID(ctx, *req.CategoryID); err != nil {
			return domain.Product{}, err
		}
		updated.CategoryID = req.CategoryID
	}
	if req.SalePriceCents != nil {
		if *req.SalePriceCents < 1 {
			return domain.Product{}, store.ErrValidation
		}
		updated.SalePriceCents = *req.SalePriceCents
	}
	if req.CostPriceCents != nil {
		if *req.CostPriceCents < 0 {
			return domain.Product{}, store.ErrValidation
		}
		updated.CostPriceCents = *req.CostPriceCents
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return domain.Product{}, store.ErrValidation
		}
		updated.MinStock = *req.MinStock
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	return *saved, nil
}

func (s *Service) DeactivateProduct(ctx context.Context, id int64) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}

	if err := s.repo.DeactivateProduct(ctx, id); err != nil {
		return err
	}
	log.Printf("[service] product deactivated id=%d by=%s", id, actor.Username)
	return nil
}

func (s *Service) AdjustStock(ctx context.Context, req domain.StockAdjustmentRequest) (domain.InventoryMovement, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.InventoryMovement{}, fmt.Errorf("admin role required")
	}

	if req.ProductID < 1 || req.Qty < 1 {
		return domain.InventoryMovement{}, store.ErrValidation
	}
	if req.Kind != domain.MovementInbound && req.Kind != domain.MovementOutbound {
		return domain.InventoryMovement{}, store.ErrValidation
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "Ajuste manual"
	}

	userID := actor.ID
	applied, err := s.repo.ApplyMovement(ctx, domain.InventoryMovement{
		ProductID: req.ProductID,
		Kind:      req.Kind,
		Qty:       req.Qty,
		Reason:    reason,
		UserID:    &userID,
	})
	if err != nil {
		return domain.InventoryMovement{}, err
	}

	log.Printf("[service] stock adjusted product=%d kind=%s qty=%d by=%s", req.ProductID, req.Kind, req.Qty, actor.Username)
	return *applied, nil
}

func (s *Service) FinalizeSale(ctx context.Context, req domain.SaleCreateRequest) (domain.SaleCreateResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.SaleCreateResponse{}, fmt.Errorf("authentication required")
	}

	if len(req.Items) == 0 {
		return domain.SaleCreateResponse{}, store.ErrValidation
	}
	if req.DiscountCents < 0 || req.TaxCents < 0 {
		return domain.SaleCreateResponse{}, store.ErrValidation
	}

	lines := make([]domain.SaleLine, 0, len(req.Items))
	var itemsTotal int64
	for _, item := range req.Items {
		if item.ProductID < 1 || item.Qty < 1 || item.UnitPriceCents < 1 {
			return domain.SaleCreateResponse{}, store.ErrValidation
		}

		expected := int64(item.Qty) * item.UnitPriceCents
		if item.SubtotalCents == 0 {
			item.SubtotalCents = expected
		} else if item.SubtotalCents != expected {
			return domain.SaleCreateResponse{}, store.ErrValidation
		}

		itemsTotal += item.SubtotalCents
		lines = append(lines, domain.SaleLine{
			ProductID:      item.ProductID,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
			SubtotalCents:  item.SubtotalCents,
		})
	}

	total := itemsTotal - req.DiscountCents + req.TaxCents
	if total < 0 {
		return domain.SaleCreateResponse{}, store.ErrValidation
	}

	now := time.Now().UTC()
	sale := domain.Sale{
		InvoiceNumber: invoice.Next(now),
		UserID:        actor.ID,
		TotalCents:    total,
		DiscountCents: req.DiscountCents,
		TaxCents:      req.TaxCents,
		Status:        domain.SaleStatusCompleted,
		CreatedAt:     now,
		Items:         lines,
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Invoice numbers carry a random suffix; a collision means the
			// store already has this number, so mint a fresh one and retry.
			sale.InvoiceNumber = invoice.Next(time.Now().UTC())
			created, err = s.repo.CreateSale(ctx, sale)
		}
		if err != nil {
			return domain.SaleCreateResponse{}, err
		}
	}

	log.Printf("[service] sale finalized invoice=%s total=%d items=%d by=%s", created.InvoiceNumber, created.TotalCents, len(created.Items), actor.Username)

	return domain.SaleCreateResponse{
		SaleID:        created.ID,
		InvoiceNumber: created.InvoiceNumber,
		TotalCents:    created.TotalCents,
		DiscountCents: created.DiscountCents,
		TaxCents:      created.TaxCents,
		ItemCount:     len(created.Items),
		CreatedAt:     created.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (s *Service) GetSaleByInvoice(ctx context.Context, invoiceNumber string) (domain.Sale, error) {
	invoiceNumber = strings.TrimSpace(invoiceNumber)
	if invoiceNumber == "" {
		return domain.Sale{}, store.ErrValidation
	}
	sale, err := s.repo.GetSaleByInvoice(ctx, invoiceNumber)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) DailySalesReport(ctx context.Context, date string) (domain.SalesReport, error) {
	day, err := parseDate(date, time.Now().UTC())
	if err != nil {
		return domain.SalesReport{}, err
	}
	return s.repo.SalesReport(ctx, day, day.Add(24*time.Hour))
}

func (s *Service) PeriodSalesReport(ctx context.Context, from string, to string) (domain.SalesReport, error) {
	start, err := parseDate(from, time.Time{})
	if err != nil {
		return domain.SalesReport{}, err
	}
	end, err := parseDate(to, time.Time{})
	if err != nil {
		return domain.SalesReport{}, err
	}
	if start.After(end) {
		return domain.SalesReport{}, store.ErrValidation
	}

	// The end date is inclusive.
	return s.repo.SalesReport(ctx, start, end.Add(24*time.Hour))
}

func (s *Service) TopProducts(ctx context.Context, limit int) (domain.TopProductsReport, error) {
	if limit < 1 {
		limit = 10
	}
	return s.repo.TopProducts(ctx, limit)
}

func (s *Service) LowStock(ctx context.Context) (domain.LowStockReport, error) {
	cached, ok, err := s.lowStockCache.Get(ctx)
	if err != nil {
		log.Printf("[service] WARN: low-stock cache read failed: %v", err)
	}
	if ok && cached != nil {
		report := *cached
		report.ServedByCache = true
		return report, nil
	}

	report, err := s.repo.LowStockReport(ctx)
	if err != nil {
		return domain.LowStockReport{}, err
	}

	if err := s.lowStockCache.Set(ctx, &report, s.lowStockTTL); err != nil {
		log.Printf("[service] WARN: low-stock cache write failed: %v", err)
	}
	return report, nil
}

func (s *Service) MovementsReport(ctx context.Context, from string, to string, kind string) (domain.MovementsReport, error) {
	if kind != "" && kind != domain.MovementInbound && kind != domain.MovementOutbound {
		return domain.MovementsReport{}, store.ErrValidation
	}

	now := time.Now().UTC()
	start, err := parseDate(from, now.AddDate(0, 0, -29))
	if err != nil {
		return domain.MovementsReport{}, err
	}
	end, err := parseDate(to, now)
	if err != nil {
		return domain.MovementsReport{}, err
	}
	if start.After(end) {
		return domain.MovementsReport{}, store.ErrValidation
	}

	return s.repo.MovementsReport(ctx, start, end.Add(24*time.Hour), kind)
}

// parseDate accepts YYYY-MM-DD. An empty value falls back to the given
// default, truncated to midnight UTC. A zero default means the value is
// required.
func parseDate(value string, fallback time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		if fallback.IsZero() {
			return time.Time{}, store.ErrValidation
		}
		return fallback.Truncate(24 * time.Hour), nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, store.ErrValidation)
	}
	return parsed.UTC(), nil
}
