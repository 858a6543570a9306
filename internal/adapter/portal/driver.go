package portal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/sernascript/tollsync/internal/domain"
)

// Selectors on the portal pages. The portal is a third party; when its
// markup changes, this is the only file that needs to follow.
const (
	selLoginNIT      = `#identificacion`
	selLoginPassword = `#clave`
	selLoginSubmit   = `button[type="submit"]`
	selTransactions  = `#tabla-transacciones`
	selDateStart     = `#fecha-inicial`
	selDateEnd       = `#fecha-final`
	selFilterApply   = `#btn-filtrar`
	selExport        = `#btn-exportar`
)

const dateInputLayout = "2006-01-02"

// Config holds the browser automation settings
type Config struct {
	URL          string
	DownloadsDir string
	Headless     bool
	Timeout      time.Duration
	ChromiumPath string
}

// Driver drives a headless browser through the portal. It implements the
// scraper's PortalDriver interface. One driver is one browser session;
// Close releases the browser, context and page on every exit path.
type Driver struct {
	cfg Config
	ctx context.Context

	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc

	mu        sync.Mutex
	suggested map[string]string // download GUID -> portal's suggested filename
	completed chan string       // absolute paths of finished downloads
}

// NewDriver launches a browser instance and a context configured to
// accept downloads into cfg.DownloadsDir
func NewDriver(ctx context.Context, cfg Config) (*Driver, error) {
	if err := os.MkdirAll(cfg.DownloadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create downloads dir: %w", err)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if cfg.ChromiumPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(cfg.ChromiumPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	runCtx, cancelCtx := chromedp.NewContext(allocCtx)

	d := &Driver{
		cfg:         cfg,
		ctx:         runCtx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
		suggested:   make(map[string]string),
		completed:   make(chan string, 1),
	}

	absDir, err := filepath.Abs(cfg.DownloadsDir)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to resolve downloads dir: %w", err)
	}

	d.listenForDownloads(absDir)

	if err := chromedp.Run(runCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(absDir).
			WithEventsEnabled(true),
	); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to configure downloads: %w", err)
	}

	return d, nil
}

// listenForDownloads wires the browser download events. Files land under
// their GUID and are renamed to the portal's suggested filename once the
// download completes.
func (d *Driver) listenForDownloads(dir string) {
	chromedp.ListenTarget(d.ctx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *browser.EventDownloadWillBegin:
			d.mu.Lock()
			d.suggested[ev.GUID] = ev.SuggestedFilename
			d.mu.Unlock()
		case *browser.EventDownloadProgress:
			if ev.State != browser.DownloadProgressStateCompleted {
				return
			}
			d.mu.Lock()
			name := d.suggested[ev.GUID]
			d.mu.Unlock()

			path := filepath.Join(dir, ev.GUID)
			if name != "" {
				renamed := filepath.Join(dir, name)
				if err := os.Rename(path, renamed); err == nil {
					path = renamed
				}
			}
			select {
			case d.completed <- path:
			default:
			}
		}
	})
}

// Login navigates to the portal and authenticates
func (d *Driver) Login(ctx context.Context, nit, password string) error {
	navCtx, cancel := context.WithTimeout(d.ctx, d.cfg.Timeout)
	defer cancel()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(d.cfg.URL),
		chromedp.WaitVisible(selLoginNIT, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: login page did not load", domain.ErrNavigationTimeout)
		}
		return fmt.Errorf("failed to open login page: %w", err)
	}

	authCtx, cancel := context.WithTimeout(d.ctx, d.cfg.Timeout)
	defer cancel()

	err = chromedp.Run(authCtx,
		chromedp.SendKeys(selLoginNIT, nit, chromedp.ByQuery),
		chromedp.SendKeys(selLoginPassword, password, chromedp.ByQuery),
		chromedp.Click(selLoginSubmit, chromedp.ByQuery),
		chromedp.WaitVisible(selTransactions, chromedp.ByQuery),
	)
	if err != nil {
		// bad credentials and unexpected page structure both strand us
		// off the transactions page
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: transactions page never appeared", domain.ErrLoginFailed)
		}
		return fmt.Errorf("%w: %v", domain.ErrLoginFailed, err)
	}
	return nil
}

// SetDateRange applies the transaction date filter
func (d *Driver) SetDateRange(ctx context.Context, start, end time.Time) error {
	navCtx, cancel := context.WithTimeout(d.ctx, d.cfg.Timeout)
	defer cancel()

	err := chromedp.Run(navCtx,
		chromedp.SetValue(selDateStart, start.Format(dateInputLayout), chromedp.ByQuery),
		chromedp.SetValue(selDateEnd, end.Format(dateInputLayout), chromedp.ByQuery),
		chromedp.Click(selFilterApply, chromedp.ByQuery),
		chromedp.WaitReady(selTransactions, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: date filter did not apply", domain.ErrNavigationTimeout)
		}
		return fmt.Errorf("failed to set date range: %w", err)
	}
	return nil
}

// TriggerExport starts the spreadsheet export
func (d *Driver) TriggerExport(ctx context.Context) error {
	navCtx, cancel := context.WithTimeout(d.ctx, d.cfg.Timeout)
	defer cancel()

	err := chromedp.Run(navCtx,
		chromedp.Click(selExport, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: export control unavailable", domain.ErrNavigationTimeout)
		}
		return fmt.Errorf("failed to trigger export: %w", err)
	}
	return nil
}

// AwaitDownload blocks until the export download completes or the timeout
// elapses, and returns the absolute saved file path
func (d *Driver) AwaitDownload(ctx context.Context, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = d.cfg.Timeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case path := <-d.completed:
		return path, nil
	case <-timer.C:
		return "", domain.ErrDownloadTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	case <-d.ctx.Done():
		return "", fmt.Errorf("browser session ended: %w", d.ctx.Err())
	}
}

// Close releases the page, context and browser
func (d *Driver) Close() error {
	d.cancelCtx()
	d.cancelAlloc()
	return nil
}
