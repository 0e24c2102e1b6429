// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

// Package registry tracks installed service and notification plugins.
//
// The registry is the only way plugins come into existence: Install adds an
// entry to the in-memory table for its family, Restore rebuilds the tables
// from durable state at startup, and nothing ever scans the artifact tree
// to discover plugins.
//
// Each entry moves through pending, active, and (after an unrecoverable
// restart) failed. Only active plugins can be used for ingestion, rules,
// or profiles.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/hivekeeper/internal/artifact"
	"github.com/tomtom215/hivekeeper/internal/installer"
	"github.com/tomtom215/hivekeeper/internal/logging"
	"github.com/tomtom215/hivekeeper/internal/metrics"
	"github.com/tomtom215/hivekeeper/internal/models"
	"github.com/tomtom215/hivekeeper/internal/plugin"
	"github.com/tomtom215/hivekeeper/internal/schema"
)

var (
	ErrNotFound         = errors.New("plugin not found")
	ErrAlreadyInstalled = errors.New("plugin already installed")
	// ErrPending is returned for plugins still waiting on dependency installation.
	ErrPending = errors.New("plugin installation pending")
	// ErrNotActive is returned when using a plugin that is pending or failed.
	ErrNotActive = errors.New("plugin not active")
)

// ArtifactStore is the file-system collaborator. *artifact.DiskStore implements it.
type ArtifactStore interface {
	StageUpload(family, filename string, r io.Reader) (*artifact.Staged, error)
	StagePath(family, path string) (*artifact.Staged, error)
	Discard(st *artifact.Staged)
	Promote(st *artifact.Staged) error
	Backup(family, name string) error
	RestoreBackup(family, name string) error
	DiscardBackup(family, name string) error
	Remove(family, name string) error
	ManifestPath(family, name string) string
	Exists(family, name string) bool
}

// SchemaRegistry is the record-table side. *schema.Registry implements it.
type SchemaRegistry interface {
	Merge(ctx context.Context, plugin string, types []schema.RecordType) error
	DropPlugin(ctx context.Context, plugin string) error
	ForgetPlugin(plugin string) error
	Owned(plugin string) []schema.RecordType
}

// MetadataStore persists plugin descriptors. Deleting a plugin also
// deletes the rules and profile assignments that reference it.
type MetadataStore interface {
	SaveServicePlugin(ctx context.Context, d models.ServicePluginDescriptor) error
	DeleteServicePlugin(ctx context.Context, name string) error
	SaveNotificationPlugin(ctx context.Context, d models.NotificationPluginDescriptor) error
	DeleteNotificationPlugin(ctx context.Context, name string) error
}

// TaskSubmitter runs dependency installs in the background. *installer.Worker implements it.
type TaskSubmitter interface {
	Submit(name string, fn installer.Job) (*installer.Task, error)
}

// Deps bundles the registry's collaborators.
type Deps struct {
	Loader    *plugin.Loader
	Artifacts ArtifactStore
	Schema    SchemaRegistry
	State     StateStore
	Metadata  MetadataStore
	Packages  installer.PackageInstaller
	Tasks     TaskSubmitter
}

type entry struct {
	handle *plugin.Handle
	status models.PluginState
	task   *installer.Task
	errMsg string
}

// Registry owns the name → plugin tables of both families.
type Registry struct {
	loader    *plugin.Loader
	artifacts ArtifactStore
	schema    SchemaRegistry
	state     StateStore
	meta      MetadataStore
	packages  installer.PackageInstaller
	tasks     TaskSubmitter

	locks *nameLocks

	mu     sync.RWMutex
	tables map[plugin.Family]map[string]*entry
}

// New creates an empty registry. Call Restore to load previously installed plugins.
func New(d Deps) *Registry {
	return &Registry{
		loader:    d.Loader,
		artifacts: d.Artifacts,
		schema:    d.Schema,
		state:     d.State,
		meta:      d.Metadata,
		packages:  d.Packages,
		tasks:     d.Tasks,
		locks:     newNameLocks(),
		tables: map[plugin.Family]map[string]*entry{
			plugin.FamilyService:      {},
			plugin.FamilyNotification: {},
		},
	}
}

// lookup returns a copy of the entry so callers can read it without r.mu.
func (r *Registry) lookup(family plugin.Family, name string) (entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tables[family][name]
	if !ok {
		return entry{}, false
	}
	return *e, true
}

// lookupFold returns the installed name equal to name under case folding.
func (r *Registry) lookupFold(family plugin.Family, name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for existing := range r.tables[family] {
		if strings.EqualFold(existing, name) {
			return existing, true
		}
	}
	return "", false
}

func (r *Registry) set(family plugin.Family, name string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[family][name] = e
}

func (r *Registry) remove(family plugin.Family, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tables[family], name)
}

func (r *Registry) setStatus(family plugin.Family, name string, status models.PluginState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.tables[family][name]; ok {
		e.status = status
	}
}

func (r *Registry) setTask(family plugin.Family, name string, task *installer.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.tables[family][name]; ok {
		e.task = task
	}
}

// Source is a plugin artifact to install: either an upload (Filename and
// Reader) or a local Path.
type Source struct {
	Filename string
	Reader   io.Reader
	Path     string
}

func (r *Registry) stage(family plugin.Family, src Source) (*artifact.Staged, error) {
	if src.Path != "" {
		return r.artifacts.StagePath(string(family), src.Path)
	}
	if src.Reader == nil {
		return nil, fmt.Errorf("%w: empty source", artifact.ErrInvalidArtifact)
	}
	return r.artifacts.StageUpload(string(family), src.Filename, src.Reader)
}

// InstallResult reports the state a plugin reached when Install returned.
// Task is set when activation continues in the background.
type InstallResult struct {
	Name   string
	Family plugin.Family
	Status models.PluginState
	Task   *installer.Task
}

// Install validates and installs a plugin. Plugins that declare package
// dependencies return as pending and become active once the background
// task finishes; everything else is active on return. A failed activation
// leaves no trace of the plugin.
func (r *Registry) Install(ctx context.Context, family plugin.Family, src Source) (res *InstallResult, err error) {
	defer func() { metrics.RecordPluginOperation(string(family), "install", err) }()

	st, err := r.stage(family, src)
	if err != nil {
		return nil, err
	}
	defer r.artifacts.Discard(st)

	h, err := r.loader.Load(family, st.Name, st.ManifestPath())
	if err != nil {
		return nil, err
	}
	name := h.Name

	lock := r.locks.get(family, name)
	lock.Lock()
	defer lock.Unlock()

	if existing, ok := r.lookupFold(family, name); ok {
		return nil, fmt.Errorf("%w: %s %s (as %s)", ErrAlreadyInstalled, family, name, existing)
	}
	if r.artifacts.Exists(string(family), name) {
		return nil, fmt.Errorf("%w: %s %s", ErrAlreadyInstalled, family, name)
	}
	if err := r.artifacts.Promote(st); err != nil {
		return nil, err
	}
	h.Path = r.artifacts.ManifestPath(string(family), name)

	if err := r.putState(State{Name: name, Family: family, Status: models.PluginPending,
		Description: h.Description(), Version: h.Manifest.Version}); err != nil {
		_ = r.artifacts.Remove(string(family), name)
		return nil, err
	}
	r.set(family, name, &entry{handle: h, status: models.PluginPending})

	deps := h.Dependencies()
	if len(deps) == 0 {
		if err := r.activate(ctx, family, h); err != nil {
			return nil, err
		}
		return &InstallResult{Name: name, Family: family, Status: models.PluginActive}, nil
	}

	task, err := r.submitActivation(family, h, deps)
	if err != nil {
		r.discard(context.WithoutCancel(ctx), family, name)
		return nil, err
	}
	r.setTask(family, name, task)
	logging.Info().Str("plugin", name).Str("family", string(family)).Str("task_id", task.ID).
		Msg("Plugin pending dependency installation")
	return &InstallResult{Name: name, Family: family, Status: models.PluginPending, Task: task}, nil
}

func (r *Registry) submitActivation(family plugin.Family, h *plugin.Handle, deps []plugin.Dependency) (*installer.Task, error) {
	task, err := r.tasks.Submit(string(family)+"/"+h.Name, func(ctx context.Context) error {
		if err := installer.InstallAll(ctx, r.packages, deps); err != nil {
			r.failActivation(ctx, family, h.Name, err)
			return err
		}
		lock := r.locks.get(family, h.Name)
		lock.Lock()
		defer lock.Unlock()
		return r.activate(ctx, family, h)
	})
	if err != nil {
		return nil, err
	}
	if err := r.putState(State{Name: h.Name, Family: family, Status: models.PluginPending,
		Description: h.Description(), Version: h.Manifest.Version, TaskID: task.ID}); err != nil {
		logging.Warn().Err(err).Str("plugin", h.Name).Msg("Failed to record install task")
	}
	return task, nil
}

func (r *Registry) failActivation(ctx context.Context, family plugin.Family, name string, cause error) {
	lock := r.locks.get(family, name)
	lock.Lock()
	defer lock.Unlock()
	logging.Warn().Err(cause).Str("plugin", name).Str("family", string(family)).Msg("Plugin dependency installation failed")
	r.discard(ctx, family, name)
}

// activate runs the post-install hook, registers the schema and metadata,
// and flips the plugin to active. Caller holds the name's write lock.
// On failure the plugin is discarded.
func (r *Registry) activate(ctx context.Context, family plugin.Family, h *plugin.Handle) error {
	err := r.activateSteps(ctx, family, h)
	if err != nil {
		logging.Warn().Err(err).Str("plugin", h.Name).Str("family", string(family)).Msg("Plugin activation failed")
		r.discard(ctx, family, h.Name)
		return err
	}
	r.setStatus(family, h.Name, models.PluginActive)
	logging.Info().Str("plugin", h.Name).Str("family", string(family)).Msg("Plugin active")
	return nil
}

func (r *Registry) activateSteps(ctx context.Context, family plugin.Family, h *plugin.Handle) error {
	if err := h.AfterInstall(ctx); err != nil {
		return fmt.Errorf("post-install hook of %s: %w", h.Name, err)
	}
	if err := r.saveMetadata(ctx, family, h); err != nil {
		return err
	}
	return r.putState(State{Name: h.Name, Family: family, Status: models.PluginActive,
		Description: h.Description(), Version: h.Manifest.Version})
}

func (r *Registry) saveMetadata(ctx context.Context, family plugin.Family, h *plugin.Handle) error {
	now := time.Now().UTC()
	if family == plugin.FamilyService {
		if err := r.schema.Merge(ctx, h.Name, h.RecordTypes()); err != nil {
			return fmt.Errorf("register record types of %s: %w", h.Name, err)
		}
		owned := r.schema.Owned(h.Name)
		names := make([]string, len(owned))
		for i, rt := range owned {
			names[i] = rt.Name
		}
		return r.meta.SaveServicePlugin(ctx, models.ServicePluginDescriptor{
			Name: h.Name, Description: h.Description(), RecordTypes: names, InstalledAt: now,
		})
	}
	return r.meta.SaveNotificationPlugin(ctx, models.NotificationPluginDescriptor{
		Name: h.Name, Description: h.Description(), InstalledAt: now,
	})
}

// discard removes every trace of a plugin that never became active.
// Caller holds the name's write lock.
func (r *Registry) discard(ctx context.Context, family plugin.Family, name string) {
	var errs []error
	if family == plugin.FamilyService {
		if err := r.schema.DropPlugin(ctx, name); err != nil {
			errs = append(errs, err)
		} else if err := r.schema.ForgetPlugin(name); err != nil {
			errs = append(errs, err)
		}
		if err := r.meta.DeleteServicePlugin(ctx, name); err != nil {
			errs = append(errs, err)
		}
	} else if err := r.meta.DeleteNotificationPlugin(ctx, name); err != nil {
		errs = append(errs, err)
	}
	if err := r.artifacts.Remove(string(family), name); err != nil {
		errs = append(errs, err)
	}
	if err := r.deleteState(family, name); err != nil {
		errs = append(errs, err)
	}
	r.remove(family, name)
	if err := errors.Join(errs...); err != nil {
		logging.Error().Err(err).Str("plugin", name).Msg("Incomplete cleanup of failed plugin")
	}
}

// Uninstall removes an active or failed plugin. For service plugins the
// record tables are dropped first, then the artifact is removed, and only
// then are the schema log entries forgotten, so the log never loses track
// of a table that still exists.
func (r *Registry) Uninstall(ctx context.Context, family plugin.Family, name string) (err error) {
	defer func() { metrics.RecordPluginOperation(string(family), "uninstall", err) }()

	lock := r.locks.get(family, name)
	lock.Lock()
	defer lock.Unlock()

	e, ok := r.lookup(family, name)
	if !ok {
		return fmt.Errorf("%w: %s %s", ErrNotFound, family, name)
	}
	if e.status == models.PluginPending {
		return fmt.Errorf("%w: %s", ErrPending, name)
	}

	if family == plugin.FamilyService {
		if err := r.schema.DropPlugin(ctx, name); err != nil {
			return err
		}
	}
	if err := r.artifacts.Remove(string(family), name); err != nil {
		return err
	}
	if family == plugin.FamilyService {
		if err := r.schema.ForgetPlugin(name); err != nil {
			return err
		}
	}

	// The artifact is gone; finish the remaining steps and report what failed.
	var errs []error
	if family == plugin.FamilyService {
		errs = append(errs, r.meta.DeleteServicePlugin(ctx, name))
	} else {
		errs = append(errs, r.meta.DeleteNotificationPlugin(ctx, name))
	}
	errs = append(errs, r.deleteState(family, name))
	r.remove(family, name)

	logging.Info().Str("plugin", name).Str("family", string(family)).Msg("Plugin uninstalled")
	return errors.Join(errs...)
}

// Update replaces an active plugin's artifact. The previous artifact is
// kept aside until the replacement loads and its schema is merged; on any
// failure it is restored and reloaded and the error is returned.
// Package dependencies of the replacement are installed on the install
// worker first, without holding the plugin's lock, and are left in place
// if the update is later rolled back.
func (r *Registry) Update(ctx context.Context, family plugin.Family, name string, src Source) (err error) {
	defer func() { metrics.RecordPluginOperation(string(family), "update", err) }()

	st, err := r.stage(family, src)
	if err != nil {
		return err
	}
	defer r.artifacts.Discard(st)
	if st.Name != name {
		return fmt.Errorf("%w: artifact %q does not match plugin %q", artifact.ErrInvalidArtifact, st.Name, name)
	}
	if e, ok := r.lookup(family, name); !ok {
		return fmt.Errorf("%w: %s %s", ErrNotFound, family, name)
	} else if e.status != models.PluginActive {
		return fmt.Errorf("%w: %s is %s", ErrNotActive, name, e.status)
	}

	// Packages are installed before taking the write lock so that
	// ingestion through the current version keeps running meanwhile.
	staged, err := r.loader.Load(family, name, st.ManifestPath())
	if err != nil {
		return err
	}
	if err := r.installDependencies(ctx, family, name, staged.Dependencies()); err != nil {
		return err
	}

	lock := r.locks.get(family, name)
	lock.Lock()
	defer lock.Unlock()

	e, ok := r.lookup(family, name)
	if !ok {
		return fmt.Errorf("%w: %s %s", ErrNotFound, family, name)
	}
	if e.status != models.PluginActive {
		return fmt.Errorf("%w: %s is %s", ErrNotActive, name, e.status)
	}

	if err := r.artifacts.Backup(string(family), name); err != nil {
		return err
	}
	if err := r.artifacts.Promote(st); err != nil {
		return r.rollback(family, name, err)
	}

	h, err := r.loader.Load(family, name, r.artifacts.ManifestPath(string(family), name))
	if err != nil {
		return r.rollback(family, name, err)
	}
	if err := h.AfterInstall(ctx); err != nil {
		return r.rollback(family, name, fmt.Errorf("post-install hook of %s: %w", name, err))
	}
	if err := r.saveMetadata(ctx, family, h); err != nil {
		return r.rollback(family, name, err)
	}

	r.set(family, name, &entry{handle: h, status: models.PluginActive})
	if err := r.putState(State{Name: name, Family: family, Status: models.PluginActive,
		Description: h.Description(), Version: h.Manifest.Version}); err != nil {
		logging.Warn().Err(err).Str("plugin", name).Msg("Failed to record updated state")
	}
	if err := r.artifacts.DiscardBackup(string(family), name); err != nil {
		logging.Warn().Err(err).Str("plugin", name).Msg("Failed to discard artifact backup")
	}
	logging.Info().Str("plugin", name).Str("version", h.Manifest.Version).Msg("Plugin updated")
	return nil
}

// installDependencies runs deps on the install worker and waits for it.
func (r *Registry) installDependencies(ctx context.Context, family plugin.Family, name string, deps []plugin.Dependency) error {
	if len(deps) == 0 {
		return nil
	}
	task, err := r.tasks.Submit(string(family)+"/"+name, func(ctx context.Context) error {
		return installer.InstallAll(ctx, r.packages, deps)
	})
	if err != nil {
		return err
	}
	logging.Info().Str("plugin", name).Str("task_id", task.ID).Msg("Installing update dependencies")
	if err := task.Wait(ctx); err != nil {
		return fmt.Errorf("dependencies of %s: %w", name, err)
	}
	return nil
}

// rollback restores the backed-up artifact and reloads it. Caller holds
// the name's write lock. The original cause is always returned.
func (r *Registry) rollback(family plugin.Family, name string, cause error) error {
	if err := r.artifacts.RestoreBackup(string(family), name); err != nil {
		logging.Error().Err(err).Str("plugin", name).Msg("Failed to restore plugin artifact")
		return errors.Join(cause, err)
	}
	h, err := r.loader.Load(family, name, r.artifacts.ManifestPath(string(family), name))
	if err != nil {
		logging.Error().Err(err).Str("plugin", name).Msg("Failed to reload restored plugin")
		return errors.Join(cause, err)
	}
	r.set(family, name, &entry{handle: h, status: models.PluginActive})
	logging.Warn().Err(cause).Str("plugin", name).Msg("Plugin update rolled back")
	return cause
}

// Load resolves an installed plugin's artifact into a fresh handle.
func (r *Registry) Load(family plugin.Family, name string) (*plugin.Handle, error) {
	if !r.artifacts.Exists(string(family), name) {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, family, name)
	}
	return r.loader.Load(family, name, r.artifacts.ManifestPath(string(family), name))
}

// Restore rebuilds the tables from durable state. Active plugins are
// reloaded, pending ones get a fresh install task, and plugins that can no
// longer be loaded are marked failed so an operator can uninstall them.
func (r *Registry) Restore(ctx context.Context) error {
	states, err := r.loadStates()
	if err != nil && states == nil {
		return fmt.Errorf("read plugin state: %w", err)
	}

	var active, pending, failed int
	for _, s := range states {
		lock := r.locks.get(s.Family, s.Name)
		lock.Lock()
		switch s.Status {
		case models.PluginActive:
			h, lerr := r.Load(s.Family, s.Name)
			if lerr != nil {
				r.markFailed(s, lerr)
				failed++
				break
			}
			r.set(s.Family, s.Name, &entry{handle: h, status: models.PluginActive})
			active++
		case models.PluginPending:
			h, lerr := r.Load(s.Family, s.Name)
			if lerr != nil {
				logging.Warn().Err(lerr).Str("plugin", s.Name).Msg("Discarding pending plugin that no longer loads")
				r.discard(ctx, s.Family, s.Name)
				break
			}
			r.set(s.Family, s.Name, &entry{handle: h, status: models.PluginPending})
			task, serr := r.submitActivation(s.Family, h, h.Dependencies())
			if serr != nil {
				r.discard(ctx, s.Family, s.Name)
				break
			}
			r.setTask(s.Family, s.Name, task)
			pending++
		default:
			r.set(s.Family, s.Name, &entry{status: models.PluginFailed, errMsg: s.Error})
			failed++
		}
		lock.Unlock()
	}

	logging.Info().Int("active", active).Int("pending", pending).Int("failed", failed).Msg("Plugin registry restored")
	return err
}

func (r *Registry) markFailed(s State, cause error) {
	logging.Error().Err(cause).Str("plugin", s.Name).Str("family", string(s.Family)).Msg("Installed plugin failed to load")
	s.Status = models.PluginFailed
	s.Error = cause.Error()
	if err := r.putState(s); err != nil {
		logging.Warn().Err(err).Str("plugin", s.Name).Msg("Failed to record failed state")
	}
	r.set(s.Family, s.Name, &entry{status: models.PluginFailed, errMsg: s.Error})
}

// Info describes one registry entry.
type Info struct {
	Name        string             `json:"name"`
	Family      plugin.Family      `json:"family"`
	Status      models.PluginState `json:"status"`
	Description string             `json:"description,omitempty"`
	Version     string             `json:"version,omitempty"`
	RecordTypes []string           `json:"record_types,omitempty"`
	TaskID      string             `json:"task_id,omitempty"`
	Error       string             `json:"error,omitempty"`
}

func (e *entry) info(family plugin.Family, name string) Info {
	in := Info{Name: name, Family: family, Status: e.status, Error: e.errMsg}
	if e.handle != nil {
		in.Description = e.handle.Description()
		in.Version = e.handle.Manifest.Version
		in.RecordTypes = e.handle.RecordTypeNames()
	}
	if e.task != nil && e.status == models.PluginPending {
		in.TaskID = e.task.ID
	}
	return in
}

// List returns every plugin of family sorted by name.
func (r *Registry) List(family plugin.Family) []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.tables[family]))
	for name, e := range r.tables[family] {
		out = append(out, e.info(family, name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get describes one plugin.
func (r *Registry) Get(family plugin.Family, name string) (Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tables[family][name]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s %s", ErrNotFound, family, name)
	}
	return e.info(family, name), nil
}

// IsActive reports whether name can be used in rules and profiles.
func (r *Registry) IsActive(family plugin.Family, name string) bool {
	e, ok := r.lookup(family, name)
	return ok && e.status == models.PluginActive
}

func (r *Registry) activeHandle(family plugin.Family, name string) (*plugin.Handle, error) {
	e, ok := r.lookup(family, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, family, name)
	}
	if e.status != models.PluginActive || e.handle == nil {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotActive, name, e.status)
	}
	return e.handle, nil
}

// WithService instantiates the named service with cfg and calls fn while
// holding the name's read lock, so the plugin cannot be replaced or
// removed while fn runs.
func (r *Registry) WithService(ctx context.Context, name string, cfg map[string]any, fn func(plugin.Service) error) error {
	lock := r.locks.get(plugin.FamilyService, name)
	lock.RLock()
	defer lock.RUnlock()

	h, err := r.activeHandle(plugin.FamilyService, name)
	if err != nil {
		return err
	}
	svc, err := h.NewService(cfg)
	if err != nil {
		return fmt.Errorf("instantiate %s: %w", name, err)
	}
	return fn(svc)
}

// WithNotification is WithService for notification plugins.
func (r *Registry) WithNotification(ctx context.Context, name string, cfg map[string]any, fn func(plugin.Notification) error) error {
	lock := r.locks.get(plugin.FamilyNotification, name)
	lock.RLock()
	defer lock.RUnlock()

	h, err := r.activeHandle(plugin.FamilyNotification, name)
	if err != nil {
		return err
	}
	n, err := h.NewNotification(cfg)
	if err != nil {
		return fmt.Errorf("instantiate %s: %w", name, err)
	}
	return fn(n)
}
