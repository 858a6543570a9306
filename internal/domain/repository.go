package domain

import (
	"context"

	"github.com/google/uuid"
)

// StatusCounts summarizes the pipeline state for operators
type StatusCounts struct {
	Pending   int
	Accounted int
	Errored   int // pending records with a recorded migration error
}

// TollTransactionRepository defines the interface for toll transaction
// persistence operations
type TollTransactionRepository interface {
	// GetByID retrieves a transaction by its internal ID
	GetByID(ctx context.Context, id uuid.UUID) (*TollTransaction, error)

	// GetByCUFE retrieves a transaction by its external unique id, or
	// nil without error when no such record exists
	GetByCUFE(ctx context.Context, cufe string) (*TollTransaction, error)

	// Upsert inserts the transaction when its CUFE is new, or updates
	// only non-financial metadata when it already exists. It never flips
	// Accounted back to false. Returns true when a new row was inserted.
	Upsert(ctx context.Context, tx *TollTransaction) (bool, error)

	// ListPending retrieves unmigrated transactions for the given route,
	// ordered by creation date ascending (oldest first)
	ListPending(ctx context.Context, route LedgerRoute) ([]*TollTransaction, error)

	// Claim atomically marks a pending, unclaimed record as claimed and
	// reports whether this caller won the claim. A record that is already
	// accounted or claimed by a concurrent run is not claimable.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)

	// Release rolls a claimed record back to plain pending after a
	// record-level failure
	Release(ctx context.Context, id uuid.UUID) error

	// MarkAccounted transitions a record to accounted=true and stores the
	// external ledger reference. The transition is one-way.
	MarkAccounted(ctx context.Context, id uuid.UUID, externalRef string) error

	// RecordError stores a human-readable, record-attributed migration
	// error without changing the accounted flag
	RecordError(ctx context.Context, id uuid.UUID, message string) error

	// CountByStatus returns aggregate pipeline counts
	CountByStatus(ctx context.Context) (*StatusCounts, error)
}

// CostCenterRepository defines the interface for the locally synchronized,
// read-only cost center snapshot
type CostCenterRepository interface {
	// GetByName retrieves a cost center by exact name match, or nil
	// without error when no such cost center exists
	GetByName(ctx context.Context, name string) (*CostCenter, error)

	// ListActive retrieves all active cost centers
	ListActive(ctx context.Context) ([]*CostCenter, error)

	// ReplaceAll atomically replaces the snapshot with the given set,
	// as fetched from the external accounting system
	ReplaceAll(ctx context.Context, centers []*CostCenter) error
}
