package cache

import (
	"context"
	"time"

	"github.com/dara-tech/gasmanagement-sub000/internal/domain"
)

// DashboardCache holds computed dashboard snapshots keyed by period window.
type DashboardCache interface {
	GetDashboard(ctx context.Context, key string) (*domain.DashboardResponse, bool, error)
	SetDashboard(ctx context.Context, key string, resp domain.DashboardResponse, ttl time.Duration) error
	Close() error
}

// Noop satisfies DashboardCache without storing anything. Used when Redis is
// not configured.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (*Noop) GetDashboard(context.Context, string) (*domain.DashboardResponse, bool, error) {
	return nil, false, nil
}

func (*Noop) SetDashboard(context.Context, string, domain.DashboardResponse, time.Duration) error {
	return nil
}

func (*Noop) Close() error {
	return nil
}
