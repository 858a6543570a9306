package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can use the usual string
// form ("30s", "2m")
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds the full application configuration, loaded from a YAML file
// with environment variable overrides for credentials
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Portal     PortalConfig     `yaml:"portal"`
	Database   DatabaseConfig   `yaml:"database"`
	Accounting AccountingConfig `yaml:"accounting"`
	Ledger     LedgerConstants  `yaml:"ledger"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
}

// PortalConfig configures the browser automation against the toll portal
type PortalConfig struct {
	// URL is the portal login page address
	URL string `yaml:"url"`

	// NIT and Password are the portal credentials. Normally supplied via
	// the PORTAL_NIT / PORTAL_PASSWORD environment variables.
	NIT      string `yaml:"nit"`
	Password string `yaml:"password"`

	// DownloadsDir is where exported spreadsheets are saved
	DownloadsDir string `yaml:"downloads_dir"`

	// Headless controls whether the browser runs without a window
	Headless bool `yaml:"headless"`

	// Timeout bounds each automation stage, including the download wait
	Timeout Duration `yaml:"timeout"`

	// ChromiumPath optionally points at a specific browser binary
	ChromiumPath string `yaml:"chromium_path"`
}

// DatabaseConfig configures the Postgres connection
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnString builds a lib/pq connection string
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// AccountingConfig configures the external accounting API client
type AccountingConfig struct {
	BaseURL   string `yaml:"base_url"`
	Username  string `yaml:"username"`
	AccessKey string `yaml:"access_key"`
}

// LedgerConstants are the fixed identifiers stamped on ledger entries.
// They mirror the document types, accounts and counter-party configured
// in the external accounting system.
type LedgerConstants struct {
	// PurchaseDocumentTypeID identifies the purchase document header
	PurchaseDocumentTypeID int `yaml:"purchase_document_type_id"`

	// JournalDocumentTypeID identifies the journal voucher header
	JournalDocumentTypeID int `yaml:"journal_document_type_id"`

	// PurchaseAccountCode is the expense account on purchase line items
	PurchaseAccountCode string `yaml:"purchase_account_code"`

	// JournalDebitAccountCode is the clearing account debited per journal
	JournalDebitAccountCode string `yaml:"journal_debit_account_code"`

	// JournalCreditAccountCode is the expense account credited per journal
	JournalCreditAccountCode string `yaml:"journal_credit_account_code"`

	// CounterpartyCostCenterID is the fixed cost center on journal credit lines
	CounterpartyCostCenterID int `yaml:"counterparty_cost_center_id"`

	// VendorIdentification is the fixed supplier identity on purchase headers
	VendorIdentification string `yaml:"vendor_identification"`

	// PaymentMeanID is the payment entry type on purchase payments
	PaymentMeanID int `yaml:"payment_mean_id"`
}

// ScheduleConfig configures the daily scheduled pipeline run
type ScheduleConfig struct {
	// At is the local time of day for the daily run, "HH:MM"
	At string `yaml:"at"`
}

// Load reads the configuration file at path, applies defaults and
// environment overrides, and returns the resulting Config.
// A missing file is not an error; defaults plus environment apply.
func Load(path string) (*Config, error) {
	// .env is optional and only used for local runs
	_ = godotenv.Load()

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the constraints that would otherwise surface as
// confusing runtime failures
func (c *Config) Validate() error {
	if c.Portal.Timeout <= 0 {
		return fmt.Errorf("portal timeout must be positive, got %s", c.Portal.Timeout.Std())
	}
	if c.Portal.DownloadsDir == "" {
		return fmt.Errorf("portal downloads_dir cannot be empty")
	}
	return nil
}

func defaults() *Config {
	return &Config{
		LogLevel: "info",
		Portal: PortalConfig{
			DownloadsDir: "./downloads",
			Headless:     true,
			Timeout:      Duration(30 * time.Second),
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			Name:     "tollsync",
			SSLMode:  "disable",
		},
		Schedule: ScheduleConfig{
			At: "03:30",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	setFromEnv(&cfg.Portal.URL, "PORTAL_URL")
	setFromEnv(&cfg.Portal.NIT, "PORTAL_NIT")
	setFromEnv(&cfg.Portal.Password, "PORTAL_PASSWORD")
	setFromEnv(&cfg.Database.Host, "DB_HOST")
	setFromEnv(&cfg.Database.Port, "DB_PORT")
	setFromEnv(&cfg.Database.User, "DB_USER")
	setFromEnv(&cfg.Database.Password, "DB_PASSWORD")
	setFromEnv(&cfg.Database.Name, "DB_NAME")
	setFromEnv(&cfg.Accounting.BaseURL, "ACCOUNTING_BASE_URL")
	setFromEnv(&cfg.Accounting.Username, "ACCOUNTING_USERNAME")
	setFromEnv(&cfg.Accounting.AccessKey, "ACCOUNTING_ACCESS_KEY")
}

func setFromEnv(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}
