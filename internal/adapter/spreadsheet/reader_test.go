package spreadsheet

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// writeWorkbook creates a small xlsx file for the reader tests
func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestRowsReadsFirstWorksheet(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"CUFE", "Placa", "Subtotal"},
		{"ABC123", "WOR123", 50000},
	})

	rows, err := NewReader().Rows(path)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, []string{"CUFE", "Placa", "Subtotal"}, rows[0])
	assert.Equal(t, "ABC123", rows[1][0])
	assert.Equal(t, "50000", rows[1][2])
}

func TestRowsEmptyWorkbook(t *testing.T) {
	path := writeWorkbook(t, nil)

	rows, err := NewReader().Rows(path)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRowsMissingFile(t *testing.T) {
	_, err := NewReader().Rows(filepath.Join(t.TempDir(), "nope.xlsx"))
	assert.Error(t, err)
}
