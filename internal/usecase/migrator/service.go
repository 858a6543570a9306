package migrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sernascript/tollsync/internal/domain"
	"github.com/sernascript/tollsync/internal/logger"
	"github.com/sernascript/tollsync/internal/usecase/ledger"
)

// LedgerClient is the subset of the external accounting API the migrator
// depends on. Submissions either return an identifier or fail with an
// error; transport, auth refresh and retries live behind this interface.
type LedgerClient interface {
	CreatePurchase(ctx context.Context, payload *ledger.PurchasePayload) (*ledger.CreateResult, error)
	CreateJournal(ctx context.Context, payload *ledger.JournalPayload) (*ledger.CreateResult, error)
}

// MigratedEntry summarizes one successfully accounted transaction
type MigratedEntry struct {
	TransactionID uuid.UUID
	CUFE          string
	Route         domain.LedgerRoute
	CostCenter    string
	ExternalRef   string
}

// BatchReport aggregates one batch migration run. Record-level failures
// are listed in ErrorDetails so operators can retarget exactly the failed
// subset through the single-record path.
type BatchReport struct {
	Processed    int
	Errored      int
	ErrorDetails []string
	Migrated     []MigratedEntry
}

// MigrationResult is the single-record variant's outcome, including the
// constructed request and raw response for operator troubleshooting
type MigrationResult struct {
	Entry       MigratedEntry
	RequestJSON string
	RawResponse string
}

// Service migrates pending toll transactions into the external ledger
type Service struct {
	txRepo domain.TollTransactionRepository
	ccRepo domain.CostCenterRepository
	client LedgerClient
	consts ledger.Constants
}

// NewService creates a new migration service
func NewService(
	txRepo domain.TollTransactionRepository,
	ccRepo domain.CostCenterRepository,
	client LedgerClient,
	consts ledger.Constants,
) *Service {
	return &Service{
		txRepo: txRepo,
		ccRepo: ccRepo,
		client: client,
		consts: consts,
	}
}

// MigrateBatch migrates every pending transaction on the given route.
// Logic:
//  1. Select candidates with accounted=false, oldest creation date first,
//     so interrupted runs leave the oldest obligations already recorded
//  2. Claim each record before touching it; losing the claim means a
//     concurrent run owns it, so it is skipped, never double-submitted
//  3. Resolve the cost center by exact license plate match
//  4. Build the route's payload and submit it
//  5. Success flips accounted; failure records the error and releases
//     the claim — the batch always continues
//
// Zero eligible candidates is reported as ErrNothingToMigrate rather than
// an empty success. Storage failures abort the whole batch.
func (s *Service) MigrateBatch(ctx context.Context, route domain.LedgerRoute) (*BatchReport, error) {
	log := logger.FromContext(ctx)

	candidates, err := s.txRepo.ListPending(ctx, route)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transactions: %w", err)
	}
	if len(candidates) == 0 {
		return nil, domain.ErrNothingToMigrate
	}

	log.Info().
		Str("route", string(route)).
		Int("candidates", len(candidates)).
		Msg("Starting batch migration")

	report := &BatchReport{}
	for _, tx := range candidates {
		if tx.Accounted {
			// already recorded externally; never submit again
			continue
		}

		claimed, err := s.txRepo.Claim(ctx, tx.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to claim transaction %s: %w", tx.ID, err)
		}
		if !claimed {
			log.Debug().Str("cufe", tx.CUFE).Msg("Skipping transaction claimed elsewhere")
			continue
		}

		entry, _, err := s.migrateClaimed(ctx, tx)
		if err != nil {
			// a storage failure after a successful submission must abort
			// with the claim held: releasing it would invite a duplicate
			// external entry on the next run
			var sysErr *persistError
			if errors.As(err, &sysErr) {
				return nil, err
			}

			report.Errored++
			detail := fmt.Sprintf("%s (CUFE %s): %v", tx.DocumentNumber, tx.CUFE, err)
			report.ErrorDetails = append(report.ErrorDetails, detail)

			log.Warn().Str("cufe", tx.CUFE).Err(err).Msg("Transaction migration failed")
			if err := s.txRepo.RecordError(ctx, tx.ID, err.Error()); err != nil {
				return nil, fmt.Errorf("failed to record migration error: %w", err)
			}
			if err := s.txRepo.Release(ctx, tx.ID); err != nil {
				return nil, fmt.Errorf("failed to release claim on %s: %w", tx.ID, err)
			}
			continue
		}

		report.Processed++
		report.Migrated = append(report.Migrated, *entry)
		log.Info().
			Str("cufe", tx.CUFE).
			Str("route", string(entry.Route)).
			Str("external_ref", entry.ExternalRef).
			Msg("Transaction accounted")
	}

	log.Info().
		Int("processed", report.Processed).
		Int("errored", report.Errored).
		Msg("Batch migration completed")

	return report, nil
}

// MigrateOne migrates a single transaction synchronously and returns the
// constructed request and raw response. This is the manual-retry path for
// records that failed during a batch run.
func (s *Service) MigrateOne(ctx context.Context, id uuid.UUID) (*MigrationResult, error) {
	tx, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction %s: %w", id, err)
	}
	if tx.Accounted {
		return nil, fmt.Errorf("transaction %s is already accounted (external ref %s)", id, tx.ExternalRef)
	}

	claimed, err := s.txRepo.Claim(ctx, tx.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim transaction %s: %w", id, err)
	}
	if !claimed {
		return nil, fmt.Errorf("transaction %s is claimed by another migration run", id)
	}

	entry, debug, err := s.migrateClaimed(ctx, tx)
	if err != nil {
		var sysErr *persistError
		if errors.As(err, &sysErr) {
			return nil, err
		}
		if recErr := s.txRepo.RecordError(ctx, tx.ID, err.Error()); recErr != nil {
			return nil, fmt.Errorf("failed to record migration error: %w", recErr)
		}
		if relErr := s.txRepo.Release(ctx, tx.ID); relErr != nil {
			return nil, fmt.Errorf("failed to release claim on %s: %w", id, relErr)
		}
		// the constructed request still helps the operator even when
		// submission failed
		return &MigrationResult{RequestJSON: debug.request}, err
	}

	return &MigrationResult{
		Entry:       *entry,
		RequestJSON: debug.request,
		RawResponse: debug.response,
	}, nil
}

// debugPayload carries the wire-level request and response of one
// submission for the single-record path
type debugPayload struct {
	request  string
	response string
}

// persistError marks a storage failure that happened after the external
// system already accepted the entry. It aborts the operation and keeps
// the record claimed so nothing re-submits it blindly.
type persistError struct {
	cause error
}

func (e *persistError) Error() string {
	return e.cause.Error()
}

func (e *persistError) Unwrap() error {
	return e.cause
}

// migrateClaimed runs the inner migration steps for one claimed record:
// resolve cost center, build payload, submit, flip accounted
func (s *Service) migrateClaimed(ctx context.Context, tx *domain.TollTransaction) (*MigratedEntry, debugPayload, error) {
	var debug debugPayload

	cc, err := s.ccRepo.GetByName(ctx, tx.LicensePlate)
	if err != nil {
		return nil, debug, fmt.Errorf("failed to look up cost center: %w", err)
	}
	if cc == nil {
		return nil, debug, fmt.Errorf("%w for plate %q", domain.ErrCostCenterNotFound, tx.LicensePlate)
	}

	var result *ledger.CreateResult
	switch tx.Route() {
	case domain.RoutePurchase:
		payload, err := ledger.BuildPurchase(tx, cc, s.consts)
		if err != nil {
			return nil, debug, err
		}
		debug.request = marshalDebug(payload)
		result, err = s.client.CreatePurchase(ctx, payload)
		if err != nil {
			return nil, debug, err
		}
	default:
		payload, err := ledger.BuildJournal(tx, cc, s.consts)
		if err != nil {
			return nil, debug, err
		}
		debug.request = marshalDebug(payload)
		result, err = s.client.CreateJournal(ctx, payload)
		if err != nil {
			return nil, debug, err
		}
	}
	debug.response = result.Raw

	externalRef := result.ID
	if externalRef == "" {
		externalRef = result.Name
	}

	if err := s.txRepo.MarkAccounted(ctx, tx.ID, externalRef); err != nil {
		return nil, debug, &persistError{cause: fmt.Errorf("failed to mark transaction %s accounted after submission %s: %w", tx.ID, externalRef, err)}
	}

	return &MigratedEntry{
		TransactionID: tx.ID,
		CUFE:          tx.CUFE,
		Route:         tx.Route(),
		CostCenter:    cc.Name,
		ExternalRef:   externalRef,
	}, debug, nil
}

func marshalDebug(payload interface{}) string {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Sprintf("marshal error: %v", err)
	}
	return string(data)
}
