// Zaparoo Automount
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Automount.
//
// Zaparoo Automount is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Automount is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Automount.  If not, see <http://www.gnu.org/licenses/>.

package helpers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
)

// FSHelper provides utilities for filesystem mocking in tests
type FSHelper struct {
	Fs afero.Fs
}

// NewMemoryFS creates a new in-memory filesystem for testing
func NewMemoryFS() *FSHelper {
	return &FSHelper{
		Fs: afero.NewMemMapFs(),
	}
}

// NewOSFS creates a filesystem helper using the real filesystem (for integration tests)
func NewOSFS() *FSHelper {
	return &FSHelper{
		Fs: afero.NewOsFs(),
	}
}

// CreateConfigFile writes cfg as a TOML config file.
func (h *FSHelper) CreateConfigFile(path string, cfg map[string]any) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config to TOML: %w", err)
	}
	return h.WriteFile(path, data, 0o600)
}

// WriteMounts writes a mount table in /proc/mounts format. Each mount is
// a source and target pair.
func (h *FSHelper) WriteMounts(path string, mounts ...[2]string) error {
	var sb strings.Builder
	for _, m := range mounts {
		fmt.Fprintf(&sb, "%s %s ext4 rw,relatime 0 0\n", m[0], m[1])
	}
	return h.WriteFile(path, []byte(sb.String()), 0o444)
}

// CreateMountDir creates the main mount directory with some existing
// mountpoint directories. A name ending in "/" is left empty, anything
// else gets a file inside so it counts as occupied.
func (h *FSHelper) CreateMountDir(base string, names ...string) error {
	if err := h.Fs.MkdirAll(base, 0o755); err != nil {
		return fmt.Errorf("failed to create mount directory: %w", err)
	}
	for _, name := range names {
		dir := filepath.Join(base, name)
		if err := h.Fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		if strings.HasSuffix(name, "/") {
			continue
		}
		if err := afero.WriteFile(h.Fs, filepath.Join(dir, ".occupied"), nil, 0o644); err != nil {
			return fmt.Errorf("failed to fill %s: %w", dir, err)
		}
	}
	return nil
}

// WriteFile writes data to path, creating parent directories.
func (h *FSHelper) WriteFile(path string, data []byte, perm os.FileMode) error {
	if err := h.Fs.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := afero.WriteFile(h.Fs, path, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadFile reads a file from the filesystem
func (h *FSHelper) ReadFile(path string) ([]byte, error) {
	data, err := afero.ReadFile(h.Fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// FileExists checks if a file exists in the filesystem
func (h *FSHelper) FileExists(path string) bool {
	_, err := h.Fs.Stat(path)
	return !errors.Is(err, os.ErrNotExist) && err == nil
}

// DirExists checks if a directory exists in the filesystem
func (h *FSHelper) DirExists(path string) bool {
	ok, err := afero.DirExists(h.Fs, path)
	return err == nil && ok
}
