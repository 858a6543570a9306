package ingestor

import (
	"context"
	"errors"
	"testing"

	"github.com/sernascript/tollsync/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSheetReader serves fixed rows regardless of path
type fakeSheetReader struct {
	rows [][]string
	err  error
}

func (f *fakeSheetReader) Rows(path string) ([][]string, error) {
	return f.rows, f.err
}

// memoryTxRepo is an in-memory TollTransactionRepository, keyed by CUFE,
// that mimics the upsert contract of the real store
type memoryTxRepo struct {
	byCUFE  map[string]*domain.TollTransaction
	failing bool
}

func newMemoryTxRepo() *memoryTxRepo {
	return &memoryTxRepo{byCUFE: make(map[string]*domain.TollTransaction)}
}

func (m *memoryTxRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TollTransaction, error) {
	for _, tx := range m.byCUFE {
		if tx.ID == id {
			return tx, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *memoryTxRepo) GetByCUFE(ctx context.Context, cufe string) (*domain.TollTransaction, error) {
	return m.byCUFE[cufe], nil
}

func (m *memoryTxRepo) Upsert(ctx context.Context, tx *domain.TollTransaction) (bool, error) {
	if m.failing {
		return false, errors.New("storage unreachable")
	}
	if existing, ok := m.byCUFE[tx.CUFE]; ok {
		// non-financial metadata only; accounted never flips back
		existing.Description = tx.Description
		existing.TollName = tx.TollName
		existing.Category = tx.Category
		return false, nil
	}
	cp := *tx
	m.byCUFE[tx.CUFE] = &cp
	return true, nil
}

func (m *memoryTxRepo) ListPending(ctx context.Context, route domain.LedgerRoute) ([]*domain.TollTransaction, error) {
	return nil, nil
}

func (m *memoryTxRepo) Claim(ctx context.Context, id uuid.UUID) (bool, error) { return false, nil }
func (m *memoryTxRepo) Release(ctx context.Context, id uuid.UUID) error       { return nil }
func (m *memoryTxRepo) MarkAccounted(ctx context.Context, id uuid.UUID, externalRef string) error {
	return nil
}
func (m *memoryTxRepo) RecordError(ctx context.Context, id uuid.UUID, message string) error {
	return nil
}
func (m *memoryTxRepo) CountByStatus(ctx context.Context) (*domain.StatusCounts, error) {
	return &domain.StatusCounts{}, nil
}

// validRow builds a syntactically valid export row with the given CUFE
func validRow(cufe string) []string {
	return []string{
		"Aprobado",       // status
		"FC",             // document type
		"2024-03-15",     // creation date
		"FC-9001",        // document number
		"PEAJ004512",     // related document
		"63",             // area code
		"WOR123",         // plate
		"Circasia",       // toll name
		"I",              // category
		"2024-03-14",     // passage date
		"TX-778812",      // transaction id
		"50000",          // subtotal
		"0",              // tax
		"50000",          // total
		cufe,             // CUFE
		"01",             // tax code
		"Peaje Circasia", // description
		"901234567",      // tax id
	}
}

var header = []string{
	"Estado", "Tipo", "Fecha Creacion", "Numero Documento", "Documento Relacionado",
	"Codigo Area", "Placa", "Peaje", "Categoria", "Fecha Paso", "Id Transaccion",
	"Subtotal", "Impuesto", "Total", "CUFE", "Codigo Impuesto", "Descripcion", "NIT",
}

func TestProcessFileValidRows(t *testing.T) {
	reader := &fakeSheetReader{rows: [][]string{header, validRow("A1"), validRow("A2")}}
	repo := newMemoryTxRepo()
	service := NewService(reader, repo)

	report, err := service.ProcessFile(context.Background(), "export.xlsx")
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalRows)
	assert.Equal(t, 2, report.ProcessedRows)
	assert.Equal(t, 0, report.ErrorRows)
	assert.Len(t, repo.byCUFE, 2)

	stored := repo.byCUFE["A1"]
	require.NotNil(t, stored)
	assert.Equal(t, "WOR123", stored.LicensePlate)
	assert.Equal(t, "FC", stored.DocumentType)
	assert.False(t, stored.Accounted)
	assert.True(t, stored.Subtotal.IsPositive())
}

func TestProcessFilePartialFailureIsolation(t *testing.T) {
	bad := validRow("B1")
	bad[11] = "not-a-number" // subtotal

	reader := &fakeSheetReader{rows: [][]string{
		header, validRow("A1"), bad, validRow("A2"), validRow("A3"),
	}}
	repo := newMemoryTxRepo()
	service := NewService(reader, repo)

	report, err := service.ProcessFile(context.Background(), "export.xlsx")
	require.NoError(t, err)

	assert.Equal(t, 4, report.TotalRows)
	assert.Equal(t, 3, report.ProcessedRows)
	assert.Equal(t, 1, report.ErrorRows)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 3, report.Errors[0].Row) // header is row 1
	assert.Contains(t, report.Errors[0].Reason, "subtotal")
	assert.Len(t, repo.byCUFE, 3, "all valid rows must still be persisted")
}

func TestProcessFileMissingCUFE(t *testing.T) {
	bad := validRow("")

	reader := &fakeSheetReader{rows: [][]string{header, bad}}
	repo := newMemoryTxRepo()
	service := NewService(reader, repo)

	report, err := service.ProcessFile(context.Background(), "export.xlsx")
	require.NoError(t, err)

	assert.Equal(t, 1, report.ErrorRows)
	assert.Contains(t, report.Errors[0].Reason, "CUFE")
	assert.Empty(t, repo.byCUFE)
}

func TestProcessFileDuplicateCUFEFirstWins(t *testing.T) {
	first := validRow("DUP1")
	first[16] = "first occurrence"
	second := validRow("DUP1")
	second[16] = "second occurrence"

	reader := &fakeSheetReader{rows: [][]string{header, first, second}}
	repo := newMemoryTxRepo()
	service := NewService(reader, repo)

	report, err := service.ProcessFile(context.Background(), "export.xlsx")
	require.NoError(t, err)

	assert.Equal(t, 1, report.ProcessedRows)
	assert.Equal(t, 1, report.SkippedRows)
	assert.Equal(t, "first occurrence", repo.byCUFE["DUP1"].Description)
}

func TestProcessFileIdempotent(t *testing.T) {
	reader := &fakeSheetReader{rows: [][]string{header, validRow("A1"), validRow("A2")}}
	repo := newMemoryTxRepo()
	service := NewService(reader, repo)

	ctx := context.Background()
	_, err := service.ProcessFile(ctx, "export.xlsx")
	require.NoError(t, err)
	report, err := service.ProcessFile(ctx, "export.xlsx")
	require.NoError(t, err)

	assert.Equal(t, 2, report.ProcessedRows)
	assert.Len(t, repo.byCUFE, 2, "re-ingesting the same file must create no net-new records")
}

func TestProcessFileEmpty(t *testing.T) {
	t.Run("no rows at all", func(t *testing.T) {
		service := NewService(&fakeSheetReader{rows: nil}, newMemoryTxRepo())
		report, err := service.ProcessFile(context.Background(), "export.xlsx")
		require.NoError(t, err)
		assert.Equal(t, &Report{}, report)
	})

	t.Run("header only", func(t *testing.T) {
		service := NewService(&fakeSheetReader{rows: [][]string{header}}, newMemoryTxRepo())
		report, err := service.ProcessFile(context.Background(), "export.xlsx")
		require.NoError(t, err)
		assert.Equal(t, 0, report.TotalRows)
		assert.Equal(t, 0, report.ProcessedRows)
	})
}

func TestProcessFileStorageFailureAborts(t *testing.T) {
	repo := newMemoryTxRepo()
	repo.failing = true
	service := NewService(&fakeSheetReader{rows: [][]string{header, validRow("A1")}}, repo)

	_, err := service.ProcessFile(context.Background(), "export.xlsx")
	assert.Error(t, err)
}

func TestProcessFileReaderFailure(t *testing.T) {
	service := NewService(&fakeSheetReader{err: errors.New("corrupt workbook")}, newMemoryTxRepo())
	_, err := service.ProcessFile(context.Background(), "export.xlsx")
	assert.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"50000", "50000"},
		{"", "0"},
		{"$50.000", "50000"},
		{"$ 50.000,50", "50000.5"},
		{"1,234,567.89", "1234567.89"},
		{"1234,5", "1234.5"},
		{"12,345", "12345"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	_, err := parseAmount("abc")
	assert.Error(t, err)
}

func TestParseDateKeepsCalendarDate(t *testing.T) {
	got, err := parseDate("15/03/2024")
	require.NoError(t, err)
	assert.Equal(t, 2024, got.Year())
	assert.Equal(t, 15, got.Day())
	assert.Equal(t, 0, got.Hour(), "a calendar date must not shift across timezones")

	_, err = parseDate("03-15-2024x")
	assert.Error(t, err)
}
