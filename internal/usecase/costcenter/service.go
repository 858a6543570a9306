package costcenter

import (
	"context"
	"fmt"

	"github.com/sernascript/tollsync/internal/domain"
	"github.com/sernascript/tollsync/internal/logger"
)

// CatalogSource fetches the cost center catalog from the accounting system
type CatalogSource interface {
	GetCostCenters(ctx context.Context) ([]*domain.CostCenter, error)
}

// SyncResult summarizes one catalog refresh
type SyncResult struct {
	Fetched int
	Active  int
}

// Service refreshes the local cost center cache from the accounting system.
// Plate lookups during migration hit the local copy only, so a sync must
// run before the first migration and after any catalog change upstream.
type Service struct {
	source CatalogSource
	repo   domain.CostCenterRepository
}

// NewService creates a new cost center sync service
func NewService(source CatalogSource, repo domain.CostCenterRepository) *Service {
	return &Service{
		source: source,
		repo:   repo,
	}
}

// Sync replaces the local catalog with the upstream one.
// Logic:
//  1. Fetch the full catalog from the accounting system
//  2. Validate every entry; a malformed catalog aborts the sync so the
//     previous copy stays in place
//  3. Replace the local table atomically
func (s *Service) Sync(ctx context.Context) (*SyncResult, error) {
	log := logger.FromContext(ctx)

	centers, err := s.source.GetCostCenters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cost centers: %w", err)
	}
	if len(centers) == 0 {
		return nil, fmt.Errorf("accounting system returned an empty cost center catalog")
	}

	active := 0
	for _, cc := range centers {
		if err := cc.Validate(); err != nil {
			return nil, fmt.Errorf("invalid cost center %q: %w", cc.Name, err)
		}
		if cc.Active {
			active++
		}
	}

	if err := s.repo.ReplaceAll(ctx, centers); err != nil {
		return nil, fmt.Errorf("failed to store cost centers: %w", err)
	}

	log.Info().
		Int("fetched", len(centers)).
		Int("active", active).
		Msg("Cost center catalog synced")

	return &SyncResult{Fetched: len(centers), Active: active}, nil
}
