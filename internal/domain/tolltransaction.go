package domain

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerRoute represents which external ledger-entry shape a transaction
// is submitted through
type LedgerRoute string

const (
	RoutePurchase LedgerRoute = "PURCHASE"
	RouteJournal  LedgerRoute = "JOURNAL"
)

// DocumentTypePurchase is the source document type that routes to the
// purchase path; every other document type routes to the journal path
const DocumentTypePurchase = "FC"

// TollTransaction represents one ingested toll record from the portal export.
// CUFE is the natural external key: globally unique, used for deduplication
// during ingestion. Accounted only ever transitions false -> true; ingestion
// owns creation and non-financial updates, migration owns the Accounted flip.
type TollTransaction struct {
	ID              uuid.UUID
	CUFE            string
	DocumentType    string
	DocumentNumber  string
	RelatedDocument string
	LicensePlate    string
	TollName        string
	Category        string
	PassageDate     time.Time // calendar date, not an instant
	TransactionRef  string
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	Total           decimal.Decimal
	Description     string
	TaxID           string
	CreatedAt       time.Time // document creation date from the portal
	Accounted       bool
	AccountedAt     *time.Time
	ExternalRef     string // ledger entry id captured on successful migration
	LastError       string
}

// Validate ensures the transaction adheres to domain rules
// Returns an error if validation fails
func (t *TollTransaction) Validate() error {
	if t.CUFE == "" {
		return errors.New("toll transaction must have a CUFE")
	}
	if t.LicensePlate == "" {
		return errors.New("toll transaction must have a license plate")
	}
	if t.DocumentNumber == "" {
		return errors.New("toll transaction must have a document number")
	}
	if t.Subtotal.IsNegative() || t.Tax.IsNegative() || t.Total.IsNegative() {
		return errors.New("toll transaction amounts cannot be negative")
	}
	return nil
}

// Route returns the ledger route for the transaction's document type:
// "FC" goes to the purchase path, everything else to the journal path
func (t *TollTransaction) Route() LedgerRoute {
	if t.DocumentType == DocumentTypePurchase {
		return RoutePurchase
	}
	return RouteJournal
}

// CreationDay returns the creation date truncated to the calendar day,
// which is the date stamped on ledger entry headers
func (t *TollTransaction) CreationDay() time.Time {
	y, m, d := t.CreatedAt.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SplitDocumentNumber splits a document number into a provider-invoice
// prefix and number at the first "-". A document number without a "-"
// yields the whole string as prefix and an empty number.
func SplitDocumentNumber(documentNumber string) (prefix, number string) {
	idx := strings.Index(documentNumber, "-")
	if idx < 0 {
		return documentNumber, ""
	}
	return documentNumber[:idx], documentNumber[idx+1:]
}

// ParseRelatedDocument parses a related-document reference into a due
// prefix (first 4 characters) and a consecutive number (the remainder
// parsed as an integer, 0 when it does not parse)
func ParseRelatedDocument(related string) (prefix string, consecutive int) {
	if len(related) <= 4 {
		return related, 0
	}
	prefix = related[:4]
	n, err := strconv.Atoi(strings.TrimSpace(related[4:]))
	if err != nil {
		return prefix, 0
	}
	return prefix, n
}
