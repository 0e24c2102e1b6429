// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

// Package artifact stores plugin artifacts on disk.
//
// Every accepted source form is normalized to a directory
// <root>/<family>/<Name>/ holding <Name>.yaml plus any files shipped with it.
// Sources are first staged under <root>/.staging so that nothing touches the
// live tree until the registry decides to promote them.
package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/tomtom215/hivekeeper/internal/validation"
)

var (
	// ErrInvalidArtifact wraps every rejection of an uploaded source.
	ErrInvalidArtifact = errors.New("invalid plugin artifact")

	// ErrExists is returned when promoting over a live artifact.
	ErrExists = errors.New("plugin artifact already exists")

	// ErrNoBackup is returned by RestoreBackup when nothing was backed up.
	ErrNoBackup = errors.New("no plugin artifact backup")
)

// reserved names collide with the contract and loader vocabulary.
var reserved = map[string]bool{
	"Service":            true,
	"Notification":       true,
	"Loader":             true,
	"Registry":           true,
	"IService":           true,
	"INotification":      true,
	"ServiceLoader":      true,
	"NotificationLoader": true,
}

const (
	stagingDir = ".staging"
	backupDir  = ".backup"

	// maxExtractBytes bounds the uncompressed size of an archive.
	maxExtractBytes = 64 << 20
)

// ValidateName checks that name can be used as a plugin name.
func ValidateName(name string) error {
	if !validation.IsIdentifier(name) {
		return fmt.Errorf("%w: %q is not a valid plugin name", ErrInvalidArtifact, name)
	}
	if reserved[name] {
		return fmt.Errorf("%w: %q is a reserved name", ErrInvalidArtifact, name)
	}
	// "__" separates plugin and record type in table names.
	if strings.Contains(name, "__") {
		return fmt.Errorf("%w: %q contains a double underscore", ErrInvalidArtifact, name)
	}
	return nil
}

// Staged is a source that was unpacked but not yet promoted.
type Staged struct {
	Name   string
	Family string
	// Dir is the staged <Name>/ directory.
	Dir string

	tmp string
}

// ManifestPath is the staged manifest file.
func (s *Staged) ManifestPath() string {
	return filepath.Join(s.Dir, s.Name+".yaml")
}

// DiskStore implements the file-system side of plugin install, update, and uninstall.
type DiskStore struct {
	root string
}

// NewDiskStore creates root and its staging area if needed.
func NewDiskStore(root string) (*DiskStore, error) {
	for _, dir := range []string{root, filepath.Join(root, stagingDir), filepath.Join(root, backupDir)} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create artifact directory %s: %w", dir, err)
		}
	}
	return &DiskStore{root: root}, nil
}

func (d *DiskStore) liveDir(family, name string) string {
	return filepath.Join(d.root, family, name)
}

func (d *DiskStore) backupPath(family, name string) string {
	return filepath.Join(d.root, backupDir, family, name)
}

// ManifestPath is the live manifest of an installed plugin.
func (d *DiskStore) ManifestPath(family, name string) string {
	return filepath.Join(d.liveDir(family, name), name+".yaml")
}

// Exists reports whether a live artifact is present.
func (d *DiskStore) Exists(family, name string) bool {
	_, err := os.Stat(d.ManifestPath(family, name))
	return err == nil
}

func (d *DiskStore) newStaging(family, name string) (*Staged, error) {
	tmp, err := os.MkdirTemp(filepath.Join(d.root, stagingDir), "stage-"+uuid.NewString()[:8]+"-")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	dir := filepath.Join(tmp, name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		_ = os.RemoveAll(tmp)
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	return &Staged{Name: name, Family: family, Dir: dir, tmp: tmp}, nil
}

// StageUpload stages an uploaded file. filename decides the form:
// <Name>.yaml is a single manifest, <Name>.zip an archive holding
// <Name>/<Name>.yaml.
func (d *DiskStore) StageUpload(family, filename string, r io.Reader) (*Staged, error) {
	base := filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(base))
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	switch ext {
	case ".yaml", ".yml":
		st, err := d.newStaging(family, name)
		if err != nil {
			return nil, err
		}
		if err := writeFile(st.ManifestPath(), io.LimitReader(r, maxExtractBytes)); err != nil {
			d.Discard(st)
			return nil, err
		}
		return st, nil
	case ".zip":
		return d.stageZip(family, name, r)
	}
	return nil, fmt.Errorf("%w: unsupported file type %q", ErrInvalidArtifact, ext)
}

// StagePath stages a local source: a manifest file, an archive, or a
// directory <Name>/ containing <Name>.yaml.
func (d *DiskStore) StagePath(family, path string) (*Staged, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if !info.IsDir() {
		f, err := os.Open(path) //nolint:gosec // operator-supplied install path
		if err != nil {
			return nil, fmt.Errorf("open artifact: %w", err)
		}
		defer f.Close()
		return d.StageUpload(family, filepath.Base(path), f)
	}

	name := filepath.Base(filepath.Clean(path))
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(path, name+".yaml")); err != nil {
		return nil, fmt.Errorf("%w: directory %s has no %s.yaml", ErrInvalidArtifact, name, name)
	}
	st, err := d.newStaging(family, name)
	if err != nil {
		return nil, err
	}
	if err := copyDir(path, st.Dir); err != nil {
		d.Discard(st)
		return nil, err
	}
	return st, nil
}

// Discard removes a staged source. Safe on a promoted or nil Staged.
func (d *DiskStore) Discard(st *Staged) {
	if st == nil || st.tmp == "" {
		return
	}
	_ = os.RemoveAll(st.tmp)
	st.tmp = ""
}

// Promote moves a staged source into the live tree.
func (d *DiskStore) Promote(st *Staged) error {
	live := d.liveDir(st.Family, st.Name)
	if _, err := os.Stat(live); err == nil {
		return fmt.Errorf("%w: %s/%s", ErrExists, st.Family, st.Name)
	}
	if err := os.MkdirAll(filepath.Dir(live), 0o750); err != nil {
		return fmt.Errorf("create family directory: %w", err)
	}
	if err := os.Rename(st.Dir, live); err != nil {
		return fmt.Errorf("promote %s: %w", st.Name, err)
	}
	d.Discard(st)
	return nil
}

// Backup moves the live artifact aside, replacing any stale backup.
func (d *DiskStore) Backup(family, name string) error {
	bak := d.backupPath(family, name)
	if err := os.RemoveAll(bak); err != nil {
		return fmt.Errorf("clear stale backup: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(bak), 0o750); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	if err := os.Rename(d.liveDir(family, name), bak); err != nil {
		return fmt.Errorf("back up %s: %w", name, err)
	}
	return nil
}

// RestoreBackup replaces whatever is live with the backup.
func (d *DiskStore) RestoreBackup(family, name string) error {
	bak := d.backupPath(family, name)
	if _, err := os.Stat(bak); err != nil {
		return fmt.Errorf("%w: %s/%s", ErrNoBackup, family, name)
	}
	live := d.liveDir(family, name)
	if err := os.RemoveAll(live); err != nil {
		return fmt.Errorf("clear replacement artifact: %w", err)
	}
	if err := os.Rename(bak, live); err != nil {
		return fmt.Errorf("restore %s: %w", name, err)
	}
	return nil
}

// DiscardBackup deletes the backup once an update has succeeded.
func (d *DiskStore) DiscardBackup(family, name string) error {
	if err := os.RemoveAll(d.backupPath(family, name)); err != nil {
		return fmt.Errorf("discard backup of %s: %w", name, err)
	}
	return nil
}

// Remove deletes the live artifact. Removing a missing artifact is not an error.
func (d *DiskStore) Remove(family, name string) error {
	if err := os.RemoveAll(d.liveDir(family, name)); err != nil {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

func writeFile(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640) //nolint:gosec // path built from validated name
	if err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if entry.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		if !entry.Type().IsRegular() {
			return fmt.Errorf("%w: %s is not a regular file", ErrInvalidArtifact, rel)
		}
		f, err := os.Open(path) //nolint:gosec // walking an operator-supplied directory
		if err != nil {
			return err
		}
		defer f.Close()
		return writeFile(target, f)
	})
}
