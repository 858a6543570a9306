package spreadsheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Reader reads portal export workbooks. It implements the ingestor's
// SheetReader interface.
type Reader struct{}

// NewReader creates a new workbook reader
func NewReader() *Reader {
	return &Reader{}
}

// Rows returns all rows of the first worksheet of the workbook at path.
// Cell values come back as the displayed strings; the ingestor owns the
// parsing of numbers and dates.
func (r *Reader) Rows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no worksheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %s: %w", sheets[0], err)
	}
	return rows, nil
}
