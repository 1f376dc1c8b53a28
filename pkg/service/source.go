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

package service

import (
	"github.com/ZaparooProject/zaparoo-automount/pkg/config"
	"github.com/ZaparooProject/zaparoo-automount/pkg/partitions"
	"github.com/spf13/afero"
)

// Source is where the poller learns about partitions and the mount table.
// Both calls receive the globals of the current cycle.
type Source interface {
	Scan(g config.Globals) ([]partitions.Partition, error)
	Mounted(g config.Globals) (map[string]struct{}, error)
}

// SystemSource reads the live device directories and mount table.
type SystemSource struct {
	fs afero.Fs
}

func NewSystemSource(fs afero.Fs) *SystemSource {
	return &SystemSource{fs: fs}
}

func (s *SystemSource) Scan(g config.Globals) ([]partitions.Partition, error) {
	scanner := partitions.NewScanner(
		partitions.WithByUUIDDir(g.ByUUIDDir),
		partitions.WithByLabelDir(g.ByLabelDir),
		partitions.WithVirtualDir(g.VirtualDir),
		partitions.WithIgnoreDevices(g.IgnorePatterns()),
		partitions.WithASCIILabels(g.LabelCharFilter),
	)
	//nolint:wrapcheck // scanner errors already carry ErrNoByUUID
	return scanner.Scan()
}

func (s *SystemSource) Mounted(g config.Globals) (map[string]struct{}, error) {
	//nolint:wrapcheck // mount table errors are descriptive
	return partitions.NewMountTable(s.fs, g.MountsFile).Mounted()
}
