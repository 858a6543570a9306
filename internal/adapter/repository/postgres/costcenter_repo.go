package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sernascript/tollsync/internal/domain"
)

// costCenterRepository implements domain.CostCenterRepository
type costCenterRepository struct {
	db *DB
}

// NewCostCenterRepository creates a new cost center repository
func NewCostCenterRepository(db *DB) domain.CostCenterRepository {
	return &costCenterRepository{db: db}
}

// GetByName retrieves a cost center by exact name match.
// Returns nil without error when no row matches; the caller decides
// whether a missing cost center is an error.
func (r *costCenterRepository) GetByName(ctx context.Context, name string) (*domain.CostCenter, error) {
	query := `
		SELECT id, code, name, active
		FROM cost_centers
		WHERE name = $1
	`

	var cc domain.CostCenter
	err := r.db.QueryRowContext(ctx, query, name).Scan(&cc.ID, &cc.Code, &cc.Name, &cc.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cost center by name: %w", err)
	}

	return &cc, nil
}

// ListActive retrieves all active cost centers ordered by name
func (r *costCenterRepository) ListActive(ctx context.Context) ([]*domain.CostCenter, error) {
	query := `
		SELECT id, code, name, active
		FROM cost_centers
		WHERE active = TRUE
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cost centers: %w", err)
	}
	defer rows.Close()

	var centers []*domain.CostCenter
	for rows.Next() {
		var cc domain.CostCenter
		if err := rows.Scan(&cc.ID, &cc.Code, &cc.Name, &cc.Active); err != nil {
			return nil, fmt.Errorf("failed to scan cost center: %w", err)
		}
		centers = append(centers, &cc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cost centers: %w", err)
	}

	return centers, nil
}

// ReplaceAll atomically replaces the local snapshot with the given set
func (r *costCenterRepository) ReplaceAll(ctx context.Context, centers []*domain.CostCenter) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM cost_centers`); err != nil {
		return fmt.Errorf("failed to clear cost centers: %w", err)
	}

	insertQuery := `
		INSERT INTO cost_centers (id, code, name, active)
		VALUES ($1, $2, $3, $4)
	`
	for _, cc := range centers {
		if _, err := dbTx.ExecContext(ctx, insertQuery, cc.ID, cc.Code, cc.Name, cc.Active); err != nil {
			return fmt.Errorf("failed to insert cost center %q: %w", cc.Name, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cost center snapshot: %w", err)
	}

	return nil
}
