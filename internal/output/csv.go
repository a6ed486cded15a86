package output

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
)

// CSVWriter writes comma-separated rows with a header line.
type CSVWriter struct {
	w      *csv.Writer
	closer io.Closer
	cols   []Column
}

// NewCSVWriter writes to w. The writer does not close w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// CreateCSV creates path and writes to it.
func CreateCSV(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "output: create %s", path)
	}
	cw := NewCSVWriter(f)
	cw.closer = f
	return cw, nil
}

// WriteHeader writes the column names.
func (c *CSVWriter) WriteHeader(cols []Column) error {
	if c.cols != nil {
		return eris.New("output: csv header already written")
	}
	c.cols = cols
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}
	return eris.Wrap(c.w.Write(names), "output: csv header")
}

// WriteRow writes one record. Values are written at full precision.
func (c *CSVWriter) WriteRow(row Row) error {
	if err := checkRow(c.cols, row); err != nil {
		return err
	}
	rec := make([]string, 0, len(row.Values)+1)
	rec = append(rec, row.UnitID)
	for _, v := range row.Values {
		rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return eris.Wrapf(c.w.Write(rec), "output: csv row %s", row.UnitID)
}

// Close flushes buffered records and closes the file opened by CreateCSV.
func (c *CSVWriter) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return eris.Wrap(err, "output: csv flush")
	}
	if c.closer != nil {
		return eris.Wrap(c.closer.Close(), "output: csv close")
	}
	return nil
}
