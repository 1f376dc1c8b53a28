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

// Package partitions discovers block device partitions from the OS device
// naming directories and tracks which of them appear and disappear between
// poll cycles.
package partitions

import "github.com/rs/zerolog"

// None is passed to scripts in place of an absent mountpoint or label.
const None = "None"

// Partition is one block device partition discovered during a scan. It is
// rebuilt on every scan, so values are never shared between cycles.
type Partition struct {
	// UUID is the filesystem UUID and the only identity key.
	UUID string `json:"uuid"`
	// Path is the resolved device node, e.g. /dev/sdb1.
	Path string `json:"path"`
	// Label is the sanitized filesystem label, empty when absent.
	Label string `json:"label,omitempty"`
	// Mountpoint is set after a successful mount, empty when unset.
	Mountpoint string `json:"mountpoint,omitempty"`
	// Mounted reports whether the mount table listed Path at scan time.
	Mounted bool `json:"mounted"`
}

func (p Partition) HasLabel() bool {
	return p.Label != ""
}

// ScriptArgs returns the positional arguments handed to rule scripts:
// device path, uuid, mountpoint and label, with None for absent values.
func (p Partition) ScriptArgs() []string {
	mountpoint := p.Mountpoint
	if mountpoint == "" {
		mountpoint = None
	}
	label := p.Label
	if label == "" {
		label = None
	}
	return []string{p.Path, p.UUID, mountpoint, label}
}

func (p Partition) MarshalZerologObject(e *zerolog.Event) {
	e.Str("uuid", p.UUID).
		Str("path", p.Path).
		Str("label", p.Label).
		Str("mountpoint", p.Mountpoint).
		Bool("mounted", p.Mounted)
}

// MarkMounted sets Mounted on each partition whose path is in mounted and
// returns the annotated copy. The input slice is not modified.
func MarkMounted(parts []Partition, mounted map[string]struct{}) []Partition {
	out := make([]Partition, len(parts))
	for i, p := range parts {
		_, p.Mounted = mounted[p.Path]
		out[i] = p
	}
	return out
}
