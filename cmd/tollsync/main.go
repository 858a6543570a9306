package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sernascript/tollsync/internal/adapter/accounting"
	"github.com/sernascript/tollsync/internal/adapter/portal"
	"github.com/sernascript/tollsync/internal/adapter/repository/postgres"
	"github.com/sernascript/tollsync/internal/adapter/spreadsheet"
	"github.com/sernascript/tollsync/internal/config"
	"github.com/sernascript/tollsync/internal/domain"
	"github.com/sernascript/tollsync/internal/logger"
	"github.com/sernascript/tollsync/internal/usecase/costcenter"
	"github.com/sernascript/tollsync/internal/usecase/ingestor"
	"github.com/sernascript/tollsync/internal/usecase/ledger"
	"github.com/sernascript/tollsync/internal/usecase/migrator"
	"github.com/sernascript/tollsync/internal/usecase/scheduler"
	"github.com/sernascript/tollsync/internal/usecase/scraper"
	"github.com/sernascript/tollsync/internal/usecase/status"
)

const dateLayout = "2006-01-02"

var (
	cfgFile   string
	fromDate  string
	toDate    string
	routeFlag string
	idFlag    string
)

// app holds the wired services shared by the subcommands
type app struct {
	cfg    *config.Config
	db     *postgres.DB
	txRepo domain.TollTransactionRepository
	ccRepo domain.CostCenterRepository
	client *accounting.Client
}

// newApp loads configuration, connects to the database and wires the
// repositories and the accounting client
func newApp(ctx context.Context) (*app, context.Context, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, ctx, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(cfg.LogLevel)
	ctx = logger.WithContext(ctx, log)

	db, err := postgres.NewDB(cfg.Database.ConnString())
	if err != nil {
		return nil, ctx, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, ctx, err
	}

	return &app{
		cfg:    cfg,
		db:     db,
		txRepo: postgres.NewTollTransactionRepository(db),
		ccRepo: postgres.NewCostCenterRepository(db),
		client: accounting.NewClient(accounting.Config{
			BaseURL:   cfg.Accounting.BaseURL,
			Username:  cfg.Accounting.Username,
			AccessKey: cfg.Accounting.AccessKey,
		}),
	}, ctx, nil
}

func (a *app) close() {
	a.db.Close()
}

func (a *app) ledgerConstants() ledger.Constants {
	return ledger.Constants{
		PurchaseDocumentTypeID:   a.cfg.Ledger.PurchaseDocumentTypeID,
		JournalDocumentTypeID:    a.cfg.Ledger.JournalDocumentTypeID,
		PurchaseAccountCode:      a.cfg.Ledger.PurchaseAccountCode,
		JournalDebitAccountCode:  a.cfg.Ledger.JournalDebitAccountCode,
		JournalCreditAccountCode: a.cfg.Ledger.JournalCreditAccountCode,
		CounterpartyCostCenterID: a.cfg.Ledger.CounterpartyCostCenterID,
		VendorIdentification:     a.cfg.Ledger.VendorIdentification,
		PaymentMeanID:            a.cfg.Ledger.PaymentMeanID,
	}
}

func (a *app) scraperService() *scraper.Service {
	factory := func(ctx context.Context) (scraper.PortalDriver, error) {
		return portal.NewDriver(ctx, portal.Config{
			URL:          a.cfg.Portal.URL,
			DownloadsDir: a.cfg.Portal.DownloadsDir,
			Headless:     a.cfg.Portal.Headless,
			Timeout:      a.cfg.Portal.Timeout.Std(),
			ChromiumPath: a.cfg.Portal.ChromiumPath,
		})
	}
	return scraper.NewService(factory, a.cfg.Portal.Timeout.Std())
}

func (a *app) migratorService() *migrator.Service {
	return migrator.NewService(a.txRepo, a.ccRepo, a.client, a.ledgerConstants())
}

// scrape runs one portal session and returns the downloaded file path
func (a *app) scrape(ctx context.Context, dates scraper.DateRange) (string, error) {
	creds := scraper.Credentials{
		NIT:      a.cfg.Portal.NIT,
		Password: a.cfg.Portal.Password,
	}
	return a.scraperService().Scrape(ctx, creds, dates)
}

// ingest loads one spreadsheet into the database and prints the report
func (a *app) ingest(ctx context.Context, path string) error {
	svc := ingestor.NewService(spreadsheet.NewReader(), a.txRepo)
	report, err := svc.ProcessFile(ctx, path)
	if err != nil {
		return err
	}

	fmt.Printf("Rows: %d processed, %d skipped, %d errored (of %d)\n",
		report.ProcessedRows, report.SkippedRows, report.ErrorRows, report.TotalRows)
	for _, rowErr := range report.Errors {
		fmt.Printf("  row %d: %s\n", rowErr.Row, rowErr.Reason)
	}
	return nil
}

// migrate pushes pending transactions for the given routes. An empty
// backlog on a route is normal and reported, not fatal.
func (a *app) migrate(ctx context.Context, routes []domain.LedgerRoute) error {
	svc := a.migratorService()
	for _, route := range routes {
		report, err := svc.MigrateBatch(ctx, route)
		if errors.Is(err, domain.ErrNothingToMigrate) {
			fmt.Printf("%s: nothing to migrate\n", route)
			continue
		}
		if err != nil {
			return err
		}

		fmt.Printf("%s: %d migrated, %d errored\n", route, report.Processed, report.Errored)
		for _, detail := range report.ErrorDetails {
			fmt.Printf("  %s\n", detail)
		}
	}
	return nil
}

// pipeline runs one full scrape-ingest-migrate cycle over yesterday and
// today, the window the portal republishes daily
func (a *app) pipeline(ctx context.Context) error {
	now := time.Now()
	dates := scraper.DateRange{Start: now.AddDate(0, 0, -1), End: now}

	path, err := a.scrape(ctx, dates)
	if err != nil {
		return fmt.Errorf("scrape failed: %w", err)
	}
	if err := a.ingest(ctx, path); err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	return a.migrate(ctx, []domain.LedgerRoute{domain.RoutePurchase, domain.RouteJournal})
}

func parseRoutes(flag string) ([]domain.LedgerRoute, error) {
	switch flag {
	case "purchase":
		return []domain.LedgerRoute{domain.RoutePurchase}, nil
	case "journal":
		return []domain.LedgerRoute{domain.RouteJournal}, nil
	case "all":
		return []domain.LedgerRoute{domain.RoutePurchase, domain.RouteJournal}, nil
	default:
		return nil, fmt.Errorf("unknown route %q (expected purchase, journal or all)", flag)
	}
}

func parseDateRange() (scraper.DateRange, error) {
	now := time.Now()
	dates := scraper.DateRange{Start: now.AddDate(0, 0, -1), End: now}

	if fromDate != "" {
		start, err := time.Parse(dateLayout, fromDate)
		if err != nil {
			return dates, fmt.Errorf("invalid --from date: %w", err)
		}
		dates.Start = start
	}
	if toDate != "" {
		end, err := time.Parse(dateLayout, toDate)
		if err != nil {
			return dates, fmt.Errorf("invalid --to date: %w", err)
		}
		dates.End = end
	}
	return dates, nil
}

// withApp wires the app, runs fn and always closes the database
func withApp(fn func(ctx context.Context, a *app) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()
		return fn(ctx, a)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tollsync",
	Short: "Toll transaction pipeline: portal scrape, spreadsheet ingest, accounting migration",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Download the toll transaction export from the portal",
	RunE: withApp(func(ctx context.Context, a *app) error {
		dates, err := parseDateRange()
		if err != nil {
			return err
		}
		path, err := a.scrape(ctx, dates)
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	}),
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.xlsx>",
	Short: "Load a downloaded spreadsheet into the local database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			return a.ingest(ctx, args[0])
		})(cmd, args)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Push pending transactions to the accounting system",
	RunE: withApp(func(ctx context.Context, a *app) error {
		if idFlag != "" {
			id, err := uuid.Parse(idFlag)
			if err != nil {
				return fmt.Errorf("invalid --id: %w", err)
			}
			result, err := a.migratorService().MigrateOne(ctx, id)
			if result != nil && result.RequestJSON != "" {
				fmt.Println(result.RequestJSON)
			}
			if err != nil {
				return err
			}
			fmt.Printf("accounted as %s\n%s\n", result.Entry.ExternalRef, result.RawResponse)
			return nil
		}

		routes, err := parseRoutes(routeFlag)
		if err != nil {
			return err
		}
		return a.migrate(ctx, routes)
	}),
}

var syncCostCentersCmd = &cobra.Command{
	Use:   "sync-cost-centers",
	Short: "Refresh the local cost center catalog from the accounting system",
	RunE: withApp(func(ctx context.Context, a *app) error {
		result, err := costcenter.NewService(a.client, a.ccRepo).Sync(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Synced %d cost centers (%d active)\n", result.Fetched, result.Active)
		return nil
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the migration backlog",
	RunE: withApp(func(ctx context.Context, a *app) error {
		summary, err := status.NewService(a.txRepo, a.ccRepo).Summarize(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Transactions: %d total, %d pending, %d accounted, %d errored\n",
			summary.Total, summary.Pending, summary.Accounted, summary.Errored)
		fmt.Printf("Cost centers: %d active\n", summary.CostCenters)
		return nil
	}),
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full scrape, ingest and migrate cycle",
	RunE: withApp(func(ctx context.Context, a *app) error {
		return a.pipeline(ctx)
	}),
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the full pipeline daily at the configured time",
	RunE: withApp(func(ctx context.Context, a *app) error {
		scheduler.NewService(a.cfg.Schedule.At, a.pipeline).Start(ctx)
		return nil
	}),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "path to the configuration file")
	scrapeCmd.Flags().StringVar(&fromDate, "from", "", "start of the export window (YYYY-MM-DD, default yesterday)")
	scrapeCmd.Flags().StringVar(&toDate, "to", "", "end of the export window (YYYY-MM-DD, default today)")
	migrateCmd.Flags().StringVar(&routeFlag, "route", "all", "which route to migrate: purchase, journal or all")
	migrateCmd.Flags().StringVar(&idFlag, "id", "", "migrate a single transaction by id and print the payloads")

	rootCmd.AddCommand(scrapeCmd, ingestCmd, migrateCmd, syncCostCentersCmd, statusCmd, runCmd, scheduleCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
