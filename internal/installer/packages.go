// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

// Package installer installs plugin system dependencies off the request
// path. Worker runs submitted jobs one at a time and hands callers a Task
// they can wait on; PackageInstaller is the package-manager collaborator.
package installer

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/tomtom215/hivekeeper/internal/logging"
	"github.com/tomtom215/hivekeeper/internal/plugin"
)

// PackageInstaller installs a list of packages through one package manager.
type PackageInstaller interface {
	Install(ctx context.Context, manager string, packages []string) error
}

// ExecInstaller runs the configured package manager command with the
// package names appended.
type ExecInstaller struct {
	commands map[string][]string
	timeout  time.Duration
}

// NewExecInstaller maps "apt" and "pip" to their commands.
func NewExecInstaller(apt, pip []string, timeout time.Duration) *ExecInstaller {
	return &ExecInstaller{
		commands: map[string][]string{"apt": apt, "pip": pip},
		timeout:  timeout,
	}
}

// Install blocks until the package manager exits.
func (e *ExecInstaller) Install(ctx context.Context, manager string, packages []string) error {
	base, ok := e.commands[manager]
	if !ok || len(base) == 0 {
		return fmt.Errorf("no command configured for package manager %q", manager)
	}
	if len(packages) == 0 {
		return nil
	}
	for _, p := range packages {
		if strings.HasPrefix(p, "-") {
			return fmt.Errorf("package name %q looks like a flag", p)
		}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := append(append([]string{}, base[1:]...), packages...)
	cmd := exec.CommandContext(ctx, base[0], args...) //nolint:gosec // command comes from operator config
	start := time.Now()
	out, err := cmd.CombinedOutput()
	logging.Info().
		Str("manager", manager).
		Strs("packages", packages).
		Dur("duration", time.Since(start)).
		Bool("ok", err == nil).
		Msg("Package install finished")
	if err != nil {
		return fmt.Errorf("%s install %s: %w: %s", manager, strings.Join(packages, " "), err, tail(out, 512))
	}
	return nil
}

// InstallAll installs every dependency in order and stops at the first failure.
func InstallAll(ctx context.Context, inst PackageInstaller, deps []plugin.Dependency) error {
	for _, d := range deps {
		if err := inst.Install(ctx, d.Manager, d.Packages); err != nil {
			return err
		}
	}
	return nil
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = "..." + s[len(s)-n:]
	}
	return s
}
