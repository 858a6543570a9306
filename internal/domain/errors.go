package domain

import (
	"errors"
	"fmt"
)

// Transient automation errors: the portal session failed in a way that is
// frequently transient. Never retried internally; the caller decides.
var (
	ErrLoginFailed       = errors.New("portal login failed")
	ErrNavigationTimeout = errors.New("portal navigation timed out")
	ErrDownloadTimeout   = errors.New("portal download timed out")
)

// ErrCostCenterNotFound is returned when a license plate has no matching
// cost center. Record-level: migration continues with the remaining records.
var ErrCostCenterNotFound = errors.New("cost center not found")

// ErrNothingToMigrate is returned by a batch migration with zero eligible
// candidates, so operators can tell an empty run from a successful one.
var ErrNothingToMigrate = errors.New("no pending transactions to migrate")

// RowError records a single malformed spreadsheet row. Row-level: ingestion
// continues to the end of the file.
type RowError struct {
	Row    int // 1-based row index in the worksheet
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// SubmissionError is an external ledger API rejection. Record-level: the
// record stays pending and migration continues.
type SubmissionError struct {
	Status  int
	Message string
}

func (e *SubmissionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ledger API rejected the entry (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("ledger API rejected the entry: %s", e.Message)
}
