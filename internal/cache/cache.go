package cache

import (
	"context"
	"time"

	"tiendapos/internal/domain"
)

// LowStockCache holds the most recent low-stock report. The report is read on
// every dashboard refresh but only changes when stock moves, so a short TTL
// keeps it cheap without serving stale alerts for long.
type LowStockCache interface {
	Get(ctx context.Context) (*domain.LowStockReport, bool, error)
	Set(ctx context.Context, report *domain.LowStockReport, ttl time.Duration) error
}

type NoopLowStockCache struct{}

func (NoopLowStockCache) Get(_ context.Context) (*domain.LowStockReport, bool, error) {
	return nil, false, nil
}

func (NoopLowStockCache) Set(_ context.Context, _ *domain.LowStockReport, _ time.Duration) error {
	return nil
}
