package fetcher

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeWorkbook(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for _, name := range []string{"first", "second"} {
		rows, ok := sheets[name]
		if !ok {
			continue
		}
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, r := range rows {
			row := sheet.AddRow()
			for _, v := range r {
				row.AddCell().SetString(v)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "table.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestStreamXLSX(t *testing.T) {
	path := writeWorkbook(t, map[string][][]string{
		"first":  {{"ID", "VALUE_41"}, {"a ", "3"}},
		"second": {{"other"}},
	})

	rows, err := Drain(StreamXLSX(context.Background(), path, XLSXOptions{}))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"ID", "VALUE_41"}, {"a", "3"}}, rows)

	rows, err = Drain(StreamXLSX(context.Background(), path, XLSXOptions{SheetName: "second"}))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"other"}}, rows)
}

func TestStreamXLSX_Errors(t *testing.T) {
	path := writeWorkbook(t, map[string][][]string{"first": {{"x"}}})

	_, err := Drain(StreamXLSX(context.Background(), path, XLSXOptions{SheetName: "missing"}))
	assert.Error(t, err)

	_, err = Drain(StreamXLSX(context.Background(), path, XLSXOptions{SheetIndex: 3}))
	assert.Error(t, err)

	_, err = Drain(StreamXLSX(context.Background(), filepath.Join(t.TempDir(), "none.xlsx"), XLSXOptions{}))
	assert.Error(t, err)
}
