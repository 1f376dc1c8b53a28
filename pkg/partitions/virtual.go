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
	"fmt"
	"os"
	"path/filepath"
)

// DefaultVirtualDir lists the kernel's virtual block devices (loop, ram,
// device-mapper and so on).
const DefaultVirtualDir = "/sys/devices/virtual/block"

// DefaultIgnoreDevices are device name globs never treated as hotplug
// partitions, on top of whatever DefaultVirtualDir reports.
var DefaultIgnoreDevices = []string{"sr*", "loop*", "ram*", "zram*"}

// VirtualDevices returns the device names listed in dir.
func VirtualDevices(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read virtual devices: %w", err)
	}
	names := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		names[entry.Name()] = struct{}{}
	}
	return names, nil
}

type deviceFilter struct {
	names    map[string]struct{}
	patterns []string
}

func (f deviceFilter) excluded(devicePath string) bool {
	name := filepath.Base(devicePath)
	if _, ok := f.names[name]; ok {
		return true
	}
	for _, pattern := range f.patterns {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// FilterVirtual drops partitions whose device name is in names or matches
// one of the glob patterns.
func FilterVirtual(parts []Partition, names map[string]struct{}, patterns []string) []Partition {
	filter := deviceFilter{names: names, patterns: patterns}
	out := make([]Partition, 0, len(parts))
	for _, p := range parts {
		if filter.excluded(p.Path) {
			continue
		}
		out = append(out, p)
	}
	return out
}
