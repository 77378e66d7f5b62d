// Package fetcher downloads ephemeris data files over HTTP(S) or FTP.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher downloads remote files.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to path. The file only
	// appears once the transfer completed. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)

	// Close releases connections held between downloads.
	Close() error
}

// Options configures the fetcher returned by New.
type Options struct {
	HTTP HTTPOptions
	FTP  FTPOptions
}

// New returns the fetcher for the scheme of rawURL.
func New(rawURL string, opts Options) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse url")
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTPFetcher(opts.HTTP), nil
	case "ftp":
		return NewFTPFetcher(opts.FTP), nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}

// writeFile copies r into path through a temporary file in the same
// directory, so a failed transfer never leaves a truncated file behind.
func writeFile(path string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return n, eris.Wrap(err, "write file")
	}
	if err := tmp.Close(); err != nil {
		return n, eris.Wrap(err, "close file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, eris.Wrap(err, "rename file")
	}
	return n, nil
}

// sized wraps r so that ending before size bytes is an error. A size of 0 or
// less means unknown and returns r unchanged.
func sized(r io.Reader, size int64) io.Reader {
	if size <= 0 {
		return r
	}
	return &exactReader{r: r, want: size}
}

// exactReader fails at EOF when fewer than want bytes were read.
type exactReader struct {
	r    io.Reader
	want int64
	got  int64
}

func (e *exactReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	e.got += int64(n)
	if err == io.EOF && e.got != e.want {
		return n, eris.Errorf("short transfer: got %d of %d bytes", e.got, e.want)
	}
	return n, err
}
