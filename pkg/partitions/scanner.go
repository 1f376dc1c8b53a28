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

package partitions

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

const (
	DefaultByUUIDDir  = "/dev/disk/by-uuid"
	DefaultByLabelDir = "/dev/disk/by-label"
)

// ErrNoByUUID means the by-uuid directory could not be listed, so no
// partitions can be enumerated this cycle.
var ErrNoByUUID = errors.New("by-uuid directory unavailable")

type Scanner struct {
	resolve    func(string) (string, error)
	byUUIDDir  string
	byLabelDir string
	virtualDir string
	ignore     []string
	asciiOnly  bool
}

type ScannerOption func(*Scanner)

func WithByUUIDDir(dir string) ScannerOption {
	return func(s *Scanner) {
		s.byUUIDDir = dir
	}
}

func WithByLabelDir(dir string) ScannerOption {
	return func(s *Scanner) {
		s.byLabelDir = dir
	}
}

func WithVirtualDir(dir string) ScannerOption {
	return func(s *Scanner) {
		s.virtualDir = dir
	}
}

// WithIgnoreDevices replaces the device name globs excluded from scans.
func WithIgnoreDevices(patterns []string) ScannerOption {
	return func(s *Scanner) {
		s.ignore = patterns
	}
}

// WithASCIILabels toggles the ASCII-only label policy.
func WithASCIILabels(enabled bool) ScannerOption {
	return func(s *Scanner) {
		s.asciiOnly = enabled
	}
}

func NewScanner(opts ...ScannerOption) *Scanner {
	s := &Scanner{
		resolve:    filepath.EvalSymlinks,
		byUUIDDir:  DefaultByUUIDDir,
		byLabelDir: DefaultByLabelDir,
		virtualDir: DefaultVirtualDir,
		ignore:     DefaultIgnoreDevices,
		asciiOnly:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan lists every partition linked from the by-uuid directory, labels it
// from the by-label directory when both links resolve to the same device,
// and drops virtual devices.
func (s *Scanner) Scan() ([]Partition, error) {
	entries, err := os.ReadDir(s.byUUIDDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoByUUID, err)
	}

	labels := s.readLabels()

	virtual, err := VirtualDevices(s.virtualDir)
	if err != nil {
		log.Debug().Err(err).Msg("no virtual device list, using ignore patterns only")
	}

	parts := make([]Partition, 0, len(entries))
	for _, entry := range entries {
		link := filepath.Join(s.byUUIDDir, entry.Name())
		target, err := s.resolve(link)
		if err != nil {
			log.Debug().Err(err).Str("link", link).Msg("skipping unresolvable uuid link")
			continue
		}
		parts = append(parts, Partition{
			UUID:  entry.Name(),
			Path:  target,
			Label: labels[target],
		})
	}

	return FilterVirtual(parts, virtual, s.ignore), nil
}

// readLabels maps resolved device paths to sanitized labels. A missing
// by-label directory just means no device has a label.
func (s *Scanner) readLabels() map[string]string {
	labels := make(map[string]string)

	entries, err := os.ReadDir(s.byLabelDir)
	if err != nil {
		log.Debug().Err(err).Msg("no by-label directory, partitions will be unlabeled")
		return labels
	}

	for _, entry := range entries {
		target, err := s.resolve(filepath.Join(s.byLabelDir, entry.Name()))
		if err != nil {
			continue
		}
		if _, exists := labels[target]; exists {
			continue
		}
		label, ok := SanitizeLabel(unescapeUdev(entry.Name()), s.asciiOnly)
		if !ok {
			log.Debug().Str("raw", entry.Name()).Str("device", target).Msg("discarding unusable label")
			continue
		}
		labels[target] = label
	}

	return labels
}
