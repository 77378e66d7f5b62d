package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// anonymousPassword is sent with the "anonymous" login, as public archives
// such as the IMCCE ephemeris server expect.
const anonymousPassword = "natal@"

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	Timeout time.Duration // dial and command timeout; 0 means 30s
}

// FTPFetcher downloads from public FTP archives with anonymous login only.
// Consecutive files on the same host share one control connection, so an
// install of the whole VSOP87 series logs in once. It is safe for
// concurrent use; transfers are serialized.
type FTPFetcher struct {
	opts FTPOptions

	mu   sync.Mutex
	host string
	conn *ftp.ServerConn
}

// NewFTPFetcher creates an FTPFetcher, filling unset options with defaults.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &FTPFetcher{opts: opts}
}

// parseFTPURL splits an ftp:// URL into host:port and file path. URLs with
// credentials are refused.
func parseFTPURL(rawURL string) (host string, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("expected ftp scheme, got %q", u.Scheme)
	}
	if u.User != nil {
		return "", "", eris.New("ftp url carries credentials; only anonymous access is supported")
	}
	if u.Path == "" || u.Path == "/" {
		return "", "", eris.Errorf("ftp url %s names no file", rawURL)
	}

	host = u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "21")
	}
	return host, u.Path, nil
}

// session returns a logged-in connection to host, reusing the open one when
// it still answers. The caller holds f.mu.
func (f *FTPFetcher) session(ctx context.Context, host string) (*ftp.ServerConn, error) {
	if f.conn != nil && f.host == host {
		if err := f.conn.NoOp(); err == nil {
			return f.conn, nil
		}
	}
	f.drop()

	zap.L().Debug("fetcher: ftp login", zap.String("host", host))
	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrapf(err, "ftp dial %s", host)
	}
	if err := conn.Login("anonymous", anonymousPassword); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "ftp login %s", host)
	}
	f.host, f.conn = host, conn
	return conn, nil
}

// drop closes the cached connection. The caller holds f.mu.
func (f *FTPFetcher) drop() {
	if f.conn != nil {
		_ = f.conn.Quit()
	}
	f.host, f.conn = "", nil
}

// retr opens path on host and returns the data stream with the size the
// server reports, or 0 when it does not support SIZE. The caller holds f.mu
// until the stream is closed.
func (f *FTPFetcher) retr(ctx context.Context, ftpURL string) (*ftp.Response, int64, error) {
	host, path, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, 0, err
	}
	conn, err := f.session(ctx, host)
	if err != nil {
		return nil, 0, err
	}

	size, err := conn.FileSize(path)
	if err != nil {
		size = 0
	}
	resp, err := conn.Retr(path)
	if err != nil {
		f.drop()
		return nil, 0, eris.Wrapf(err, "ftp retrieve %s", path)
	}
	return resp, size, nil
}

// lockedStream releases the fetcher once the transfer is closed.
type lockedStream struct {
	*ftp.Response
	unlock func()
}

func (s *lockedStream) Close() error {
	defer s.unlock()
	return eris.Wrap(s.Response.Close(), "close ftp transfer")
}

// Download starts a transfer. Other transfers wait until the returned
// reader is closed.
func (f *FTPFetcher) Download(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	f.mu.Lock()
	resp, _, err := f.retr(ctx, ftpURL)
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	return &lockedStream{Response: resp, unlock: f.mu.Unlock}, nil
}

// DownloadToFile copies the file to path. When the server reports a size a
// shorter transfer is an error and leaves no file.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, ftpURL string, path string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	resp, size, err := f.retr(ctx, ftpURL)
	if err != nil {
		return 0, err
	}
	n, err := writeFile(path, sized(resp, size))
	if cerr := resp.Close(); cerr != nil && err == nil {
		err = eris.Wrap(cerr, "close ftp transfer")
	}
	if err != nil {
		f.drop()
	}
	return n, err
}

// Close logs out of the open session, if any.
func (f *FTPFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drop()
	return nil
}
