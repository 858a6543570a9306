package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/sernascript/tollsync/internal/logger"
)

// Credentials are the portal login credentials
type Credentials struct {
	NIT      string
	Password string
}

// DateRange filters the portal export, inclusive on both ends
type DateRange struct {
	Start time.Time
	End   time.Time
}

// PortalDriver is the capability interface over the browser automation.
// The pipeline core depends only on these calls, not on a specific
// browser-automation library.
type PortalDriver interface {
	// Login authenticates against the portal
	Login(ctx context.Context, nit, password string) error

	// SetDateRange applies the transaction date filter
	SetDateRange(ctx context.Context, start, end time.Time) error

	// TriggerExport starts the spreadsheet export download
	TriggerExport(ctx context.Context) error

	// AwaitDownload blocks until the download completes or the timeout
	// elapses, and returns the absolute saved file path
	AwaitDownload(ctx context.Context, timeout time.Duration) (string, error)

	// Close releases the browser and every resource acquired with it
	Close() error
}

// DriverFactory opens a fresh portal driver. One driver serves exactly
// one scrape.
type DriverFactory func(ctx context.Context) (PortalDriver, error)

// Service drives one full portal session: login, filter, export, download
type Service struct {
	newDriver DriverFactory
	timeout   time.Duration
}

// NewService creates a new scraping service. timeout bounds the download
// wait, the only suspension point of the pipeline.
func NewService(newDriver DriverFactory, timeout time.Duration) *Service {
	return &Service{
		newDriver: newDriver,
		timeout:   timeout,
	}
}

// Scrape runs one portal session and returns the absolute path of the
// downloaded export. Exactly one file is written per successful run, and
// the path is handed to ingestion directly so no stage ever has to guess
// "the latest file" in the downloads directory.
//
// Failures are not retried here: login, navigation and download errors
// are frequently transient and the caller decides whether to retry.
func (s *Service) Scrape(ctx context.Context, creds Credentials, dates DateRange) (string, error) {
	log := logger.FromContext(ctx)

	driver, err := s.newDriver(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to open portal session: %w", err)
	}
	// released on every exit path, success or failure
	defer driver.Close()

	log.Info().
		Time("start", dates.Start).
		Time("end", dates.End).
		Msg("Starting portal session")

	if err := driver.Login(ctx, creds.NIT, creds.Password); err != nil {
		return "", fmt.Errorf("portal login: %w", err)
	}

	if err := driver.SetDateRange(ctx, dates.Start, dates.End); err != nil {
		return "", fmt.Errorf("portal date filter: %w", err)
	}

	if err := driver.TriggerExport(ctx); err != nil {
		return "", fmt.Errorf("portal export: %w", err)
	}

	path, err := driver.AwaitDownload(ctx, s.timeout)
	if err != nil {
		return "", fmt.Errorf("portal download: %w", err)
	}

	log.Info().Str("file", path).Msg("Portal export downloaded")
	return path, nil
}
