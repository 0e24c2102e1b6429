// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package artifact

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// stageZip unpacks an archive whose single top-level directory is name/.
func (d *DiskStore) stageZip(family, name string, r io.Reader) (*Staged, error) {
	buf, err := io.ReadAll(io.LimitReader(r, maxExtractBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	if len(buf) > maxExtractBytes {
		return nil, fmt.Errorf("%w: archive too large", ErrInvalidArtifact)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}

	prefix := name + "/"
	manifest := prefix + name + ".yaml"
	found := false
	var total uint64
	for _, f := range zr.File {
		clean := path.Clean(f.Name)
		if f.FileInfo().IsDir() && clean == name {
			continue
		}
		if strings.HasPrefix(clean, "/") || strings.Contains(clean, "..") || !strings.HasPrefix(clean, prefix) {
			return nil, fmt.Errorf("%w: entry %q is outside %s/", ErrInvalidArtifact, f.Name, name)
		}
		if clean == manifest {
			found = true
		}
		total += f.UncompressedSize64
	}
	if !found {
		return nil, fmt.Errorf("%w: archive has no %s", ErrInvalidArtifact, manifest)
	}
	if total > maxExtractBytes {
		return nil, fmt.Errorf("%w: archive expands beyond %d bytes", ErrInvalidArtifact, maxExtractBytes)
	}

	st, err := d.newStaging(family, name)
	if err != nil {
		return nil, err
	}
	root := filepath.Dir(st.Dir)
	for _, f := range zr.File {
		if err := extract(root, f); err != nil {
			d.Discard(st)
			return nil, err
		}
	}
	return st, nil
}

func extract(root string, f *zip.File) error {
	target := filepath.Join(root, filepath.FromSlash(path.Clean(f.Name)))
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return fmt.Errorf("%w: entry %q escapes the archive root", ErrInvalidArtifact, f.Name)
	}
	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o750)
	}
	if !f.Mode().IsRegular() {
		return fmt.Errorf("%w: entry %q is not a regular file", ErrInvalidArtifact, f.Name)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	defer rc.Close()
	return writeFile(target, io.LimitReader(rc, int64(f.UncompressedSize64)))
}
