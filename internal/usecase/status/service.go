package status

import (
	"context"
	"fmt"

	"github.com/sernascript/tollsync/internal/domain"
)

// Summary aggregates the pipeline state for operators
type Summary struct {
	Pending     int
	Accounted   int
	Errored     int
	Total       int
	CostCenters int
}

// Service reports the current migration backlog
type Service struct {
	txRepo domain.TollTransactionRepository
	ccRepo domain.CostCenterRepository
}

// NewService creates a new status service
func NewService(txRepo domain.TollTransactionRepository, ccRepo domain.CostCenterRepository) *Service {
	return &Service{
		txRepo: txRepo,
		ccRepo: ccRepo,
	}
}

// Summarize counts transactions by accounting state and the active cost
// centers available for plate resolution
func (s *Service) Summarize(ctx context.Context) (*Summary, error) {
	counts, err := s.txRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	centers, err := s.ccRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cost centers: %w", err)
	}

	return &Summary{
		Pending:     counts.Pending,
		Accounted:   counts.Accounted,
		Errored:     counts.Errored,
		Total:       counts.Pending + counts.Accounted + counts.Errored,
		CostCenters: len(centers),
	}, nil
}
