package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sernascript/tollsync/internal/domain"
)

// tollTransactionRepository implements domain.TollTransactionRepository
type tollTransactionRepository struct {
	db *DB
}

// NewTollTransactionRepository creates a new toll transaction repository
func NewTollTransactionRepository(db *DB) domain.TollTransactionRepository {
	return &tollTransactionRepository{db: db}
}

const tollTransactionColumns = `
	id, cufe, document_type, document_number, related_document,
	license_plate, toll_name, category, passage_date, transaction_ref,
	subtotal, tax, total, description, tax_id, created_at,
	accounted, accounted_at, external_ref, last_error
`

// GetByID retrieves a transaction by its internal ID
func (r *tollTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.TollTransaction, error) {
	query := `
		SELECT ` + tollTransactionColumns + `
		FROM toll_transactions
		WHERE id = $1
	`

	tx, err := scanTollTransaction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("toll transaction not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get toll transaction by ID: %w", err)
	}
	return tx, nil
}

// GetByCUFE retrieves a transaction by its external unique id.
// Returns nil without error when no row matches.
func (r *tollTransactionRepository) GetByCUFE(ctx context.Context, cufe string) (*domain.TollTransaction, error) {
	query := `
		SELECT ` + tollTransactionColumns + `
		FROM toll_transactions
		WHERE cufe = $1
	`

	tx, err := scanTollTransaction(r.db.QueryRowContext(ctx, query, cufe))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get toll transaction by CUFE: %w", err)
	}
	return tx, nil
}

// Upsert inserts the transaction when its CUFE is new, or refreshes only
// the descriptive metadata when a row already exists. The conflict branch
// never touches the financial amounts or the accounting state, so a
// re-ingested export cannot alter an already-accounted record.
func (r *tollTransactionRepository) Upsert(ctx context.Context, tx *domain.TollTransaction) (bool, error) {
	query := `
		INSERT INTO toll_transactions (` + tollTransactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (cufe) DO UPDATE SET
			toll_name       = EXCLUDED.toll_name,
			category        = EXCLUDED.category,
			description     = EXCLUDED.description,
			transaction_ref = EXCLUDED.transaction_ref,
			related_document = EXCLUDED.related_document
		RETURNING (xmax = 0) AS inserted
	`

	var accountedAt interface{}
	if tx.AccountedAt != nil {
		accountedAt = *tx.AccountedAt
	}

	var inserted bool
	err := r.db.QueryRowContext(ctx, query,
		tx.ID,
		tx.CUFE,
		tx.DocumentType,
		tx.DocumentNumber,
		tx.RelatedDocument,
		tx.LicensePlate,
		tx.TollName,
		tx.Category,
		tx.PassageDate,
		tx.TransactionRef,
		tx.Subtotal.String(),
		tx.Tax.String(),
		tx.Total.String(),
		tx.Description,
		tx.TaxID,
		tx.CreatedAt,
		tx.Accounted,
		accountedAt,
		tx.ExternalRef,
		tx.LastError,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert toll transaction: %w", err)
	}

	return inserted, nil
}

// ListPending retrieves unmigrated transactions for the given route,
// oldest creation date first
func (r *tollTransactionRepository) ListPending(ctx context.Context, route domain.LedgerRoute) ([]*domain.TollTransaction, error) {
	routeFilter := "document_type = $1"
	if route == domain.RouteJournal {
		routeFilter = "document_type <> $1"
	}

	query := `
		SELECT ` + tollTransactionColumns + `
		FROM toll_transactions
		WHERE accounted = FALSE AND ` + routeFilter + `
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, domain.DocumentTypePurchase)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*domain.TollTransaction
	for rows.Next() {
		tx, err := scanTollTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan toll transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate toll transactions: %w", err)
	}

	return transactions, nil
}

// Claim atomically marks a pending, unclaimed record as claimed.
// The WHERE clause makes the claim a compare-and-set: a row that is
// already accounted or claimed matches zero rows and the caller loses.
func (r *tollTransactionRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE toll_transactions
		SET claimed = TRUE
		WHERE id = $1 AND accounted = FALSE AND claimed = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to claim toll transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}

	return affected == 1, nil
}

// Release rolls a claimed record back to plain pending
func (r *tollTransactionRepository) Release(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE toll_transactions
		SET claimed = FALSE
		WHERE id = $1 AND accounted = FALSE
	`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to release toll transaction: %w", err)
	}
	return nil
}

// MarkAccounted transitions a record to accounted=true and stores the
// external ledger reference. The transition is one-way: an already
// accounted row matches zero rows and the call fails loudly.
func (r *tollTransactionRepository) MarkAccounted(ctx context.Context, id uuid.UUID, externalRef string) error {
	query := `
		UPDATE toll_transactions
		SET accounted = TRUE,
		    accounted_at = $2,
		    external_ref = $3,
		    last_error = '',
		    claimed = FALSE
		WHERE id = $1 AND accounted = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC(), externalRef)
	if err != nil {
		return fmt.Errorf("failed to mark toll transaction accounted: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read accounting result: %w", err)
	}
	if affected != 1 {
		return fmt.Errorf("toll transaction %s is not pending", id)
	}

	return nil
}

// RecordError stores the migration error message on the record
func (r *tollTransactionRepository) RecordError(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE toll_transactions
		SET last_error = $2
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, message); err != nil {
		return fmt.Errorf("failed to record toll transaction error: %w", err)
	}
	return nil
}

// CountByStatus returns aggregate pipeline counts
func (r *tollTransactionRepository) CountByStatus(ctx context.Context) (*domain.StatusCounts, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE NOT accounted AND last_error = '') AS pending,
			COUNT(*) FILTER (WHERE accounted) AS accounted,
			COUNT(*) FILTER (WHERE NOT accounted AND last_error <> '') AS errored
		FROM toll_transactions
	`

	var counts domain.StatusCounts
	err := r.db.QueryRowContext(ctx, query).Scan(&counts.Pending, &counts.Accounted, &counts.Errored)
	if err != nil {
		return nil, fmt.Errorf("failed to count toll transactions: %w", err)
	}

	return &counts, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTollTransaction(row rowScanner) (*domain.TollTransaction, error) {
	var tx domain.TollTransaction
	var subtotalStr, taxStr, totalStr string
	var accountedAt sql.NullTime

	err := row.Scan(
		&tx.ID,
		&tx.CUFE,
		&tx.DocumentType,
		&tx.DocumentNumber,
		&tx.RelatedDocument,
		&tx.LicensePlate,
		&tx.TollName,
		&tx.Category,
		&tx.PassageDate,
		&tx.TransactionRef,
		&subtotalStr,
		&taxStr,
		&totalStr,
		&tx.Description,
		&tx.TaxID,
		&tx.CreatedAt,
		&tx.Accounted,
		&accountedAt,
		&tx.ExternalRef,
		&tx.LastError,
	)
	if err != nil {
		return nil, err
	}

	if tx.Subtotal, err = decimal.NewFromString(subtotalStr); err != nil {
		return nil, fmt.Errorf("failed to parse subtotal: %w", err)
	}
	if tx.Tax, err = decimal.NewFromString(taxStr); err != nil {
		return nil, fmt.Errorf("failed to parse tax: %w", err)
	}
	if tx.Total, err = decimal.NewFromString(totalStr); err != nil {
		return nil, fmt.Errorf("failed to parse total: %w", err)
	}

	if accountedAt.Valid {
		t := accountedAt.Time
		tx.AccountedAt = &t
	}

	return &tx, nil
}
