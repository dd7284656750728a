package packaging

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/reglet-dev/thingpedia-registry/netutil"
)

// DefaultMaxUnpackedBytes bounds the total uncompressed size of a repacked
// archive.
const DefaultMaxUnpackedBytes = 256 << 20

// Repack rewrites archive with every entry DEFLATE-compressed and the root
// package.json replaced by manifest. Entries are written in their original
// order; the manifest is appended when the archive has none.
func Repack(archive, manifest []byte, maxUnpacked int64) ([]byte, error) {
	if maxUnpacked <= 0 {
		maxUnpacked = DefaultMaxUnpackedBytes
	}

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	remaining := maxUnpacked
	wroteManifest := false

	for _, f := range zr.File {
		header := &zip.FileHeader{
			Name:     f.Name,
			Comment:  f.Comment,
			Method:   zip.Deflate,
			Modified: f.Modified,
		}
		header.SetMode(f.Mode())

		if f.FileInfo().IsDir() {
			header.Method = zip.Store
			if _, err := zw.CreateHeader(header); err != nil {
				return nil, fmt.Errorf("write %s: %w", f.Name, err)
			}
			continue
		}

		w, err := zw.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Name, err)
		}

		if f.Name == ManifestName {
			if _, err := w.Write(manifest); err != nil {
				return nil, fmt.Errorf("write %s: %w", f.Name, err)
			}
			wroteManifest = true
			continue
		}

		n, err := copyEntry(w, f, remaining)
		if err != nil {
			return nil, fmt.Errorf("copy %s: %w", f.Name, err)
		}
		remaining -= n
	}

	if !wroteManifest {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: ManifestName, Method: zip.Deflate, Modified: time.Now()})
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", ManifestName, err)
		}
		if _, err := w.Write(manifest); err != nil {
			return nil, fmt.Errorf("write %s: %w", ManifestName, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive: %w", err)
	}
	return buf.Bytes(), nil
}

func copyEntry(w io.Writer, f *zip.File, limit int64) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()
	return io.Copy(w, netutil.NewLimitedReader(rc, limit))
}
