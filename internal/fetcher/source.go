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

// Format is the tabular encoding of a source file.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// OpenerOptions configures source acquisition.
type OpenerOptions struct {
	HTTP    Fetcher // default NewHTTPFetcher(HTTPOptions{})
	FTP     Fetcher // default NewFTPFetcher(FTPOptions{})
	TempDir string  // where downloads and extracted archives land; default os.TempDir()
	CSV     CSVOptions
	XLSX    XLSXOptions
}

// Opener turns a location (local path, http(s):// or ftp:// URL) into a local
// file that can be streamed row by row.
type Opener struct {
	opts OpenerOptions
	log  *zap.Logger
}

// NewOpener creates an Opener, filling in default fetchers.
func NewOpener(opts OpenerOptions) *Opener {
	if opts.HTTP == nil {
		opts.HTTP = NewHTTPFetcher(HTTPOptions{})
	}
	if opts.FTP == nil {
		opts.FTP = NewFTPFetcher(FTPOptions{})
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	return &Opener{opts: opts, log: zap.L().With(zap.String("component", "fetcher"))}
}

// Source is a local, readable copy of a provider source.
type Source struct {
	Origin string // location as given
	Path   string // local file streamed by Rows
	Format Format

	csv     CSVOptions
	xlsx    XLSXOptions
	file    *os.File
	cleanup []string
}

// Open acquires src. Remote files are downloaded into the temp dir and a
// ZIP archive is replaced by the single file it holds. Close removes any
// temporary files.
func (o *Opener) Open(ctx context.Context, src string) (*Source, error) {
	s := &Source{Origin: src, csv: o.opts.CSV, xlsx: o.opts.XLSX}

	local, err := o.localize(ctx, src, s)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(local), ".zip") {
		dir, err := os.MkdirTemp(o.opts.TempDir, "lifeline-unzip-*")
		if err != nil {
			_ = s.Close()
			return nil, eris.Wrap(err, "fetcher: create extract dir")
		}
		s.cleanup = append(s.cleanup, dir)

		local, err = ExtractTabular(local, dir)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	s.Path = local
	s.Format = detectFormat(local)
	o.log.Debug("source ready",
		zap.String("origin", src),
		zap.String("path", local),
		zap.String("format", string(s.Format)),
	)
	return s, nil
}

func (o *Opener) localize(ctx context.Context, src string, s *Source) (string, error) {
	u, err := url.Parse(src)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain path (a single-letter scheme is a Windows drive).
		if _, statErr := os.Stat(src); statErr != nil {
			return "", eris.Wrapf(statErr, "fetcher: open %s", src)
		}
		return src, nil
	}

	var f Fetcher
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		f = o.opts.HTTP
	case "ftp":
		f = o.opts.FTP
	case "file":
		return o.localize(ctx, u.Path, s)
	default:
		return "", eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}

	body, err := f.Download(ctx, src)
	if err != nil {
		return "", err
	}
	defer body.Close() //nolint:errcheck

	out, err := os.CreateTemp(o.opts.TempDir, "lifeline-src-*"+path.Ext(u.Path))
	if err != nil {
		return "", eris.Wrap(err, "fetcher: create temp file")
	}
	s.cleanup = append(s.cleanup, out.Name())

	n, err := io.Copy(out, body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: save %s", src)
	}

	o.log.Info("downloaded source", zap.String("url", src), zap.Int64("bytes", n))
	return out.Name(), nil
}

func detectFormat(p string) Format {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	default:
		return FormatCSV
	}
}

// Rows streams every row of the source, header first. Rows may be called
// once per Source.
func (s *Source) Rows(ctx context.Context) (<-chan []string, <-chan error) {
	if s.Format == FormatXLSX {
		return StreamXLSX(ctx, s.Path, s.xlsx)
	}

	f, err := os.Open(s.Path)
	if err != nil {
		rowCh := make(chan []string)
		errCh := make(chan error, 1)
		errCh <- eris.Wrapf(err, "fetcher: open %s", s.Path)
		close(rowCh)
		close(errCh)
		return rowCh, errCh
	}
	s.file = f
	return StreamCSV(ctx, f, s.csv)
}

// Close releases the open file and removes temporary downloads.
func (s *Source) Close() error {
	var firstErr error
	if s.file != nil {
		firstErr = s.file.Close()
		s.file = nil
	}
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		if err := os.RemoveAll(s.cleanup[i]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.cleanup = nil
	return eris.Wrap(firstErr, "fetcher: close source")
}
