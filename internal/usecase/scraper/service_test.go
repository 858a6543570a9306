package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sernascript/tollsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDriver records the call sequence and fails at a chosen step
type fakeDriver struct {
	calls        []string
	failAt       string
	failWith     error
	downloadPath string
	closed       bool
}

func (d *fakeDriver) step(name string) error {
	d.calls = append(d.calls, name)
	if d.failAt == name {
		return d.failWith
	}
	return nil
}

func (d *fakeDriver) Login(ctx context.Context, nit, password string) error {
	return d.step("login")
}

func (d *fakeDriver) SetDateRange(ctx context.Context, start, end time.Time) error {
	return d.step("setDateRange")
}

func (d *fakeDriver) TriggerExport(ctx context.Context) error {
	return d.step("triggerExport")
}

func (d *fakeDriver) AwaitDownload(ctx context.Context, timeout time.Duration) (string, error) {
	if err := d.step("awaitDownload"); err != nil {
		return "", err
	}
	return d.downloadPath, nil
}

func (d *fakeDriver) Close() error {
	d.closed = true
	return nil
}

func factoryFor(d *fakeDriver) DriverFactory {
	return func(ctx context.Context) (PortalDriver, error) {
		return d, nil
	}
}

func testRange() DateRange {
	return DateRange{
		Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestScrapeHappyPath(t *testing.T) {
	driver := &fakeDriver{downloadPath: "/downloads/export.xlsx"}
	service := NewService(factoryFor(driver), 30*time.Second)

	path, err := service.Scrape(context.Background(), Credentials{NIT: "800123456", Password: "pw"}, testRange())
	require.NoError(t, err)

	assert.Equal(t, "/downloads/export.xlsx", path)
	assert.Equal(t, []string{"login", "setDateRange", "triggerExport", "awaitDownload"}, driver.calls)
	assert.True(t, driver.closed, "driver must be released on success")
}

func TestScrapeLoginFailureReleasesDriver(t *testing.T) {
	driver := &fakeDriver{failAt: "login", failWith: domain.ErrLoginFailed}
	service := NewService(factoryFor(driver), 30*time.Second)

	_, err := service.Scrape(context.Background(), Credentials{}, testRange())
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrLoginFailed)
	assert.Equal(t, []string{"login"}, driver.calls, "no step may run after a failed login")
	assert.True(t, driver.closed, "driver must be released on failure")
}

func TestScrapeDownloadTimeout(t *testing.T) {
	driver := &fakeDriver{failAt: "awaitDownload", failWith: domain.ErrDownloadTimeout}
	service := NewService(factoryFor(driver), time.Second)

	_, err := service.Scrape(context.Background(), Credentials{}, testRange())
	assert.ErrorIs(t, err, domain.ErrDownloadTimeout)
	assert.True(t, driver.closed)
}

func TestScrapeFactoryFailure(t *testing.T) {
	service := NewService(func(ctx context.Context) (PortalDriver, error) {
		return nil, errors.New("browser binary missing")
	}, time.Second)

	_, err := service.Scrape(context.Background(), Credentials{}, testRange())
	assert.Error(t, err)
}
