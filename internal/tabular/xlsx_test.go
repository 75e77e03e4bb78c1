package tabular

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func workbook(t *testing.T, rows ...[]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("vendors")
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestEach_XLSX(t *testing.T) {
	data := workbook(t,
		[]string{"vendor_code", " radius "},
		[]string{"V1", "3.5"},
		[]string{"V2", ""},
	)

	var rows []Row
	h, err := Each(context.Background(), bytes.NewReader(data), func(r Row) error {
		rows = append(rows, r)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"vendor_code", "radius"}, h.Names)
	require.Len(t, rows, 2)
	assert.Equal(t, "V1", rows[0].Get("vendor_code"))
	assert.InDelta(t, 3.5, rows[0].Float("radius"), 1e-9)
	assert.Nil(t, rows[1].FloatPtr("radius"))
	assert.Equal(t, 2, rows[1].Line)
}

func TestEach_XLSXEmptySheet(t *testing.T) {
	_, err := Each(context.Background(), bytes.NewReader(workbook(t)), func(Row) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty table")
}

func TestEach_CorruptWorkbook(t *testing.T) {
	_, err := Each(context.Background(), bytes.NewReader([]byte(zipMagic+"garbage")), func(Row) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open workbook")
}
