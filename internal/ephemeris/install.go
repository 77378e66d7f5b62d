package ephemeris

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultVSOP87Source is the IMCCE distribution of the VSOP87 series.
const DefaultVSOP87Source = "ftp://ftp.imcce.fr/pub/ephem/planets/vsop87"

// vsop87Files are the VSOP87B series read by the vsop87 layer, one per
// planet including the Earth.
var vsop87Files = []string{
	"VSOP87B.mer", "VSOP87B.ven", "VSOP87B.ear", "VSOP87B.mar",
	"VSOP87B.jup", "VSOP87B.sat", "VSOP87B.ura", "VSOP87B.nep",
}

// VSOP87Files returns the file names the vsop87 layer needs in its data
// directory.
func VSOP87Files() []string {
	return append([]string(nil), vsop87Files...)
}

// Downloader writes a remote file to a local path.
type Downloader interface {
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// InstallReport lists what Install did.
type InstallReport struct {
	Downloaded []string `json:"downloaded"`
	Skipped    []string `json:"skipped"`
	Bytes      int64    `json:"bytes"`
}

// Install downloads the VSOP87 series from source into dir and checks that
// the result loads. Files already present are kept unless force is set.
func Install(ctx context.Context, d Downloader, source, dir string, force bool) (InstallReport, error) {
	var rep InstallReport
	if dir == "" {
		return rep, eris.New("ephemeris: data directory not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return rep, eris.Wrapf(err, "ephemeris: create %s", dir)
	}

	base := strings.TrimRight(source, "/")
	for _, name := range vsop87Files {
		path := filepath.Join(dir, name)
		if !force {
			if _, err := os.Stat(path); err == nil {
				rep.Skipped = append(rep.Skipped, name)
				continue
			}
		}
		n, err := d.DownloadToFile(ctx, base+"/"+name, path)
		if err != nil {
			return rep, eris.Wrapf(err, "ephemeris: download %s", name)
		}
		rep.Downloaded = append(rep.Downloaded, name)
		rep.Bytes += n
		zap.L().Info("ephemeris: downloaded series file",
			zap.String("file", name),
			zap.Int64("bytes", n),
		)
	}

	if err := NewVSOP87Layer(dir).Ready(); err != nil {
		return rep, eris.Wrap(err, "ephemeris: verify install")
	}
	return rep, nil
}
