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

// Package mountpoint picks and prepares directories for mounting
// partitions under the main mount directory.
package mountpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZaparooProject/zaparoo-automount/pkg/partitions"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// ErrExhausted means every candidate name under the main directory is
// taken.
var ErrExhausted = errors.New("no free mountpoint")

// MountChecker reports whether a directory is currently a mount point.
type MountChecker interface {
	IsMountPoint(path string) (bool, error)
}

type Allocator struct {
	fs      afero.Fs
	checker MountChecker
	claims  *Claims
	mainDir string
}

type AllocatorOption func(*Allocator)

// WithClaims makes the allocator skip directories claimed by other
// workers. Allocators sharing one Claims never hand out the same path.
func WithClaims(c *Claims) AllocatorOption {
	return func(a *Allocator) {
		a.claims = c
	}
}

func NewAllocator(fs afero.Fs, mainDir string, checker MountChecker, opts ...AllocatorOption) *Allocator {
	a := &Allocator{
		fs:      fs,
		checker: checker,
		mainDir: filepath.Clean(mainDir),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// MainDir is the base directory for generated and relative mountpoints.
func (a *Allocator) MainDir() string {
	return a.mainDir
}

// Resolve turns a configured mountpoint into an absolute path. Relative
// paths are joined to the main directory.
func (a *Allocator) Resolve(mountpoint string) string {
	if filepath.IsAbs(mountpoint) {
		return filepath.Clean(mountpoint)
	}
	return filepath.Join(a.mainDir, mountpoint)
}

// Allocate generates a mountpoint for p: the label when present, then the
// UUID, then the UUID with a numeric suffix.
func (a *Allocator) Allocate(p partitions.Partition) (string, error) {
	if a.claims == nil {
		return a.allocate(p)
	}
	a.claims.mu.Lock()
	defer a.claims.mu.Unlock()
	return a.allocate(p)
}

// Claim allocates like Allocate and claims the result in one step. The
// caller releases it through the shared Claims once the mount finished.
func (a *Allocator) Claim(p partitions.Partition) (string, error) {
	if a.claims == nil {
		return a.allocate(p)
	}
	a.claims.mu.Lock()
	defer a.claims.mu.Unlock()
	mp, err := a.allocate(p)
	if err != nil {
		return "", err
	}
	a.claims.paths[mp] = struct{}{}
	return mp, nil
}

func (a *Allocator) allocate(p partitions.Partition) (string, error) {
	if p.HasLabel() {
		candidate := filepath.Join(a.mainDir, p.Label)
		if a.usable(candidate) {
			return candidate, nil
		}
	}

	base := filepath.Join(a.mainDir, p.UUID)
	if a.usable(base) {
		return base, nil
	}

	// every taken candidate is an entry of mainDir or claimed, so one more
	// than both counts always finds a free name
	entries, err := afero.ReadDir(a.fs, a.mainDir)
	if err != nil {
		return "", fmt.Errorf("failed to list %s: %w", a.mainDir, err)
	}
	limit := len(entries) + 1
	if a.claims != nil {
		limit += len(a.claims.paths)
	}
	for n := 1; n <= limit; n++ {
		candidate := fmt.Sprintf("%s_(%d)", base, n)
		if a.usable(candidate) {
			log.Warn().
				Str("uuid", p.UUID).
				Str("mountpoint", candidate).
				Msg("mountpoint collision, using suffixed name")
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w for %s", ErrExhausted, p.UUID)
}

// usable is true for a path that does not exist yet or is an empty
// directory nothing is mounted on.
func (a *Allocator) usable(path string) bool {
	if a.claims != nil && a.claims.held(path) {
		return false
	}
	fi, err := a.fs.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return true
	} else if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("mountpoint candidate unreadable")
		return false
	}
	if !fi.IsDir() {
		return false
	}

	if a.checker != nil {
		mounted, err := a.checker.IsMountPoint(path)
		if err != nil || mounted {
			return false
		}
	}

	empty, err := afero.IsEmpty(a.fs, path)
	return err == nil && empty
}

// Ensure creates the mountpoint directory if needed.
func (a *Allocator) Ensure(path string) error {
	if err := a.fs.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create mountpoint %s: %w", path, err)
	}
	return nil
}

// Cleanup removes an empty directory inside the main directory after its
// filesystem was unmounted. Anything else is left alone.
func (a *Allocator) Cleanup(path string) (bool, error) {
	clean := filepath.Clean(path)
	if filepath.Dir(clean) != a.mainDir {
		return false, nil
	}
	if a.checker != nil {
		if mounted, err := a.checker.IsMountPoint(clean); err != nil || mounted {
			return false, nil //nolint:nilerr // still in use counts as not removed
		}
	}
	empty, err := afero.IsEmpty(a.fs, clean)
	if err != nil || !empty {
		return false, nil //nolint:nilerr // missing or busy directory is not an error
	}
	if err := a.fs.Remove(clean); err != nil {
		return false, fmt.Errorf("failed to remove mountpoint %s: %w", clean, err)
	}
	return true, nil
}
