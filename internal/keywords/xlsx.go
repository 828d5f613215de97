package keywords

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ParseXLSXFile reads keywords from the first column of a workbook's
// first sheet, applying the same trim/quote/header rules as CSV parsing.
// Files over MaxFileSize are rejected before parsing.
func ParseXLSXFile(data []byte) ([]string, error) {
	if len(data) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "keywords: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("keywords: xlsx has no sheets")
	}

	sheet := f.Sheets[0]
	lines := make([]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if len(row.Cells) == 0 {
			lines = append(lines, "")
			continue
		}
		lines = append(lines, row.Cells[0].String())
	}
	return normalizeLines(lines), nil
}
