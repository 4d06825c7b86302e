package store

import (
	"context"
	"errors"
	"time"

	"tiendapos/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("duplicate")
	ErrValidation        = errors.New("invalid input")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Repository interface {
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) (*domain.User, error)
	UpdateUserPassword(ctx context.Context, username string, passwordHash string) error
	DeactivateUser(ctx context.Context, id int64) error
	CountActiveAdmins(ctx context.Context) (int, error)

	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	DeactivateCategory(ctx context.Context, id int64) error

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)
	GetProductByCode(ctx context.Context, code string) (*domain.Product, error)
	SearchProducts(ctx context.Context, term string) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeactivateProduct(ctx context.Context, id int64) error

	ApplyMovement(ctx context.Context, movement domain.InventoryMovement) (*domain.InventoryMovement, error)
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSaleByInvoice(ctx context.Context, invoiceNumber string) (*domain.Sale, error)

	SalesReport(ctx context.Context, from time.Time, to time.Time) (domain.SalesReport, error)
	TopProducts(ctx context.Context, limit int) (domain.TopProductsReport, error)
	LowStockReport(ctx context.Context) (domain.LowStockReport, error)
	MovementsReport(ctx context.Context, from time.Time, to time.Time, kind string) (domain.MovementsReport, error)
}
