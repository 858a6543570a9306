package ingestor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sernascript/tollsync/internal/domain"
	"github.com/sernascript/tollsync/internal/logger"
)

// Fixed column layout of the portal export, zero-based
const (
	colStatus = iota
	colDocumentType
	colCreationDate
	colDocumentNumber
	colRelatedDocument
	colAreaCode
	colLicensePlate
	colTollName
	colCategory
	colPassageDate
	colTransactionRef
	colSubtotal
	colTax
	colTotal
	colCUFE
	colTaxCode
	colDescription
	colTaxID

	columnCount
)

// SheetReader reads the first worksheet of a spreadsheet file as rows of
// cell strings
type SheetReader interface {
	Rows(path string) ([][]string, error)
}

// Report is the result of processing one export file. Row-level failures
// are collected in Errors; they never abort the run.
type Report struct {
	TotalRows     int
	ProcessedRows int
	ErrorRows     int
	SkippedRows   int // in-file duplicate CUFEs, first occurrence wins
	Errors        []domain.RowError
}

// Service ingests portal export files into the toll transaction store
type Service struct {
	reader SheetReader
	txRepo domain.TollTransactionRepository
}

// NewService creates a new ingestion service
func NewService(reader SheetReader, txRepo domain.TollTransactionRepository) *Service {
	return &Service{
		reader: reader,
		txRepo: txRepo,
	}
}

// ProcessFile parses the export at path and upserts each valid row,
// deduplicated by CUFE.
// Logic:
//  1. Read all rows of the first worksheet; the first row is the header
//  2. Map each data row to a toll transaction candidate
//  3. Malformed rows are recorded with their row index and skipped
//  4. Duplicate CUFEs within the file: first occurrence wins
//  5. Upsert by CUFE; storage failures abort the whole run
//
// An empty file (header only or no rows) is trivially successful.
func (s *Service) ProcessFile(ctx context.Context, path string) (*Report, error) {
	log := logger.FromContext(ctx)

	rows, err := s.reader.Rows(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spreadsheet %s: %w", path, err)
	}

	report := &Report{}
	seen := make(map[string]bool)

	for i, row := range rows {
		if i == 0 {
			// header row
			continue
		}
		rowNum := i + 1 // 1-based, matching what operators see in Excel
		report.TotalRows++

		tx, err := parseRow(row)
		if err != nil {
			report.ErrorRows++
			report.Errors = append(report.Errors, domain.RowError{Row: rowNum, Reason: err.Error()})
			log.Warn().Int("row", rowNum).Str("reason", err.Error()).Msg("Skipping malformed row")
			continue
		}

		if seen[tx.CUFE] {
			report.SkippedRows++
			log.Debug().Int("row", rowNum).Str("cufe", tx.CUFE).Msg("Skipping duplicate CUFE within file")
			continue
		}
		seen[tx.CUFE] = true

		inserted, err := s.txRepo.Upsert(ctx, tx)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert transaction with CUFE %s: %w", tx.CUFE, err)
		}

		report.ProcessedRows++
		log.Debug().
			Int("row", rowNum).
			Str("cufe", tx.CUFE).
			Bool("inserted", inserted).
			Msg("Row ingested")
	}

	log.Info().
		Str("file", path).
		Int("total", report.TotalRows).
		Int("processed", report.ProcessedRows).
		Int("errors", report.ErrorRows).
		Int("skipped", report.SkippedRows).
		Msg("Ingestion completed")

	return report, nil
}

// parseRow maps one spreadsheet row to a toll transaction candidate
func parseRow(row []string) (*domain.TollTransaction, error) {
	// excelize returns ragged rows; missing trailing cells read as empty
	cells := make([]string, columnCount)
	for i := 0; i < columnCount && i < len(row); i++ {
		cells[i] = strings.TrimSpace(row[i])
	}

	if cells[colCUFE] == "" {
		return nil, fmt.Errorf("missing CUFE")
	}

	createdAt, err := parseDate(cells[colCreationDate])
	if err != nil {
		return nil, fmt.Errorf("invalid creation date %q", cells[colCreationDate])
	}
	passageDate, err := parseDate(cells[colPassageDate])
	if err != nil {
		return nil, fmt.Errorf("invalid passage date %q", cells[colPassageDate])
	}

	subtotal, err := parseAmount(cells[colSubtotal])
	if err != nil {
		return nil, fmt.Errorf("invalid subtotal %q", cells[colSubtotal])
	}
	tax, err := parseAmount(cells[colTax])
	if err != nil {
		return nil, fmt.Errorf("invalid tax %q", cells[colTax])
	}
	total, err := parseAmount(cells[colTotal])
	if err != nil {
		return nil, fmt.Errorf("invalid total %q", cells[colTotal])
	}

	tx := &domain.TollTransaction{
		ID:              uuid.New(),
		CUFE:            cells[colCUFE],
		DocumentType:    cells[colDocumentType],
		DocumentNumber:  cells[colDocumentNumber],
		RelatedDocument: cells[colRelatedDocument],
		LicensePlate:    cells[colLicensePlate],
		TollName:        cells[colTollName],
		Category:        cells[colCategory],
		PassageDate:     passageDate,
		TransactionRef:  cells[colTransactionRef],
		Subtotal:        subtotal,
		Tax:             tax,
		Total:           total,
		Description:     cells[colDescription],
		TaxID:           cells[colTaxID],
		CreatedAt:       createdAt,
	}

	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return tx, nil
}

// dateLayouts are the formats the portal has been seen exporting
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02/01/2006 15:04:05",
}

// parseDate parses a calendar date without timezone shift: the cell value
// is taken as-is, never converted from a local instant
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}

// parseAmount parses a money cell, tolerating currency symbols and
// thousands separators. An empty cell is zero.
func parseAmount(value string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("$", "", " ", "", " ", "").Replace(value)
	if cleaned == "" {
		return decimal.Zero, nil
	}

	dot := strings.LastIndex(cleaned, ".")
	comma := strings.LastIndex(cleaned, ",")
	switch {
	case dot >= 0 && comma >= 0:
		// the rightmost separator is the decimal one
		if comma > dot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case comma >= 0:
		// a lone comma is a decimal separator only when followed by
		// up to two digits; otherwise it separates thousands
		if strings.Count(cleaned, ",") == 1 && len(cleaned)-comma-1 <= 2 {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	return decimal.NewFromString(cleaned)
}
