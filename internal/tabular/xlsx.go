package tabular

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// zipMagic opens every XLSX workbook.
const zipMagic = "PK\x03\x04"

type recordReader interface {
	Read() ([]string, error)
}

// sheetRecords yields the rows of one sheet as records.
type sheetRecords struct {
	rows []*xlsx.Row
	next int
}

func (s *sheetRecords) Read() ([]string, error) {
	if s.next >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.next]
	s.next++

	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells, nil
}

// readSheet loads a workbook and returns its first sheet.
func readSheet(r io.Reader) (*sheetRecords, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "tabular: read workbook")
	}
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "tabular: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("tabular: workbook has no sheets")
	}
	return &sheetRecords{rows: f.Sheets[0].Rows}, nil
}
