// Package bundle packs transcript files into a single in-memory ZIP
// archive for download.
package bundle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Entries use a fixed modification time so the same inputs always produce
// the same archive bytes.
var fixedModTime = time.Unix(0, 0).UTC()

// Build packs the given files, in order, into one DEFLATE-compressed ZIP
// held in memory. Entry names are the files' base names; no directory
// structure is preserved.
func Build(paths []string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, path := range paths {
		if err := addFile(zw, path); err != nil {
			zw.Close()
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

func addFile(zw *zip.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     filepath.Base(path),
		Method:   zip.Deflate,
		Modified: fixedModTime,
	})
	if err != nil {
		return fmt.Errorf("create entry %s: %w", filepath.Base(path), err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("write entry %s: %w", filepath.Base(path), err)
	}
	return nil
}
