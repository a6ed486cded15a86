// Package fetcher resolves input locations (local paths, http(s) and ftp URLs)
// to local files and streams rows out of CSV and Excel tables.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Fetcher downloads remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Localizer turns input locations into local file paths, downloading remote
// ones into a scratch directory.
type Localizer struct {
	HTTP Fetcher
	FTP  Fetcher
	// Dir receives downloads. Empty means os.TempDir().
	Dir string
}

// NewLocalizer returns a Localizer with default HTTP and FTP fetchers.
func NewLocalizer(dir string) *Localizer {
	return &Localizer{
		HTTP: NewHTTPFetcher(HTTPOptions{}),
		FTP:  NewFTPFetcher(FTPOptions{}),
		Dir:  dir,
	}
}

// IsRemote reports whether loc is an http, https or ftp URL.
func IsRemote(loc string) bool {
	u, err := url.Parse(loc)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp":
		return true
	default:
		return false
	}
}

// Localize returns a local path for loc. Local paths come back unchanged with
// a no-op cleanup. Remote files keep their base name and extension; cleanup
// removes them.
func (l *Localizer) Localize(ctx context.Context, loc string) (string, func(), error) {
	noop := func() {}
	if !IsRemote(loc) {
		if _, err := os.Stat(loc); err != nil {
			return "", noop, eris.Wrapf(err, "fetcher: stat %s", loc)
		}
		return loc, noop, nil
	}

	u, _ := url.Parse(loc)
	var f Fetcher
	switch strings.ToLower(u.Scheme) {
	case "ftp":
		f = l.FTP
	default:
		f = l.HTTP
	}
	if f == nil {
		return "", noop, eris.Errorf("fetcher: no fetcher for %s", u.Scheme)
	}

	dir, err := os.MkdirTemp(l.Dir, "attila-*")
	if err != nil {
		return "", noop, eris.Wrap(err, "fetcher: scratch dir")
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "download"
	}
	dst := filepath.Join(dir, name)

	n, err := downloadToFile(ctx, f, loc, dst)
	if err != nil {
		cleanup()
		return "", noop, err
	}
	zap.L().Debug("fetcher: downloaded", zap.String("url", loc), zap.String("path", dst), zap.Int64("bytes", n))
	return dst, cleanup, nil
}

func downloadToFile(ctx context.Context, f Fetcher, rawURL, dst string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	file, err := os.Create(dst)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, body)
	if err != nil {
		return n, eris.Wrap(err, "fetcher: write file")
	}
	return n, nil
}

// Drain collects every row from a stream and returns the first error.
func Drain(rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

// TableOptions configures ReadTable.
type TableOptions struct {
	CSV  CSVOptions
	XLSX XLSXOptions
}

// ReadTable reads every row of a local .csv, .txt or .xlsx file. The format
// follows the file extension; anything other than .xlsx is read as delimited
// text.
func ReadTable(ctx context.Context, path string, opts TableOptions) ([][]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return Drain(StreamXLSX(ctx, path, opts.XLSX))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return Drain(StreamCSV(ctx, f, opts.CSV))
}
