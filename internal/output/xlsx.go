package output

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// maxSheetName is the Excel limit on worksheet names.
const maxSheetName = 31

// XLSXWriter builds a workbook with one sheet and saves it on Close.
type XLSXWriter struct {
	path  string
	file  *xlsx.File
	sheet *xlsx.Sheet
	cols  []Column
}

// CreateXLSX prepares a workbook saved to path with a sheet named sheetName.
func CreateXLSX(path, sheetName string) (*XLSXWriter, error) {
	if sheetName == "" {
		sheetName = "metrics"
	}
	if len(sheetName) > maxSheetName {
		sheetName = sheetName[:maxSheetName]
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: add sheet %q", sheetName)
	}
	return &XLSXWriter{path: path, file: f, sheet: sheet}, nil
}

// WriteHeader adds the header row.
func (x *XLSXWriter) WriteHeader(cols []Column) error {
	if x.cols != nil {
		return eris.New("xlsx: header already written")
	}
	x.cols = cols
	row := x.sheet.AddRow()
	for _, col := range cols {
		row.AddCell().SetString(col.Name)
	}
	return nil
}

// WriteRow adds one row with numeric cells.
func (x *XLSXWriter) WriteRow(r Row) error {
	if err := checkRow(x.cols, r); err != nil {
		return err
	}
	row := x.sheet.AddRow()
	row.AddCell().SetString(r.UnitID)
	for _, v := range r.Values {
		row.AddCell().SetFloat(v)
	}
	return nil
}

// Close saves the workbook.
func (x *XLSXWriter) Close() error {
	if err := x.file.Save(x.path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", x.path)
	}
	return nil
}
