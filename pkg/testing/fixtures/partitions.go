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

package fixtures

import (
	"github.com/ZaparooProject/zaparoo-automount/pkg/partitions"
)

// Common partitions for use in tests.

// NewFlashPartition is a labelled USB stick partition.
func NewFlashPartition() partitions.Partition {
	return partitions.Partition{
		UUID:  "1234-ABCD",
		Path:  "/dev/sdb1",
		Label: "FLASH",
	}
}

// NewUnlabelledPartition has no usable label.
func NewUnlabelledPartition() partitions.Partition {
	return partitions.Partition{
		UUID: "0f3c9a52-5b1e-4a55-9d1c-2e8f1a7b6c40",
		Path: "/dev/sdc1",
	}
}

// NewRootPartition is the system disk, normally already mounted.
func NewRootPartition() partitions.Partition {
	return partitions.Partition{
		UUID:  "7d2a6c1e-0b4f-4e8a-a1d3-5c9e8f2b4a61",
		Path:  "/dev/sda2",
		Label: "rootfs",
	}
}

// NewSpacedLabelPartition has a label that needs shell quoting.
func NewSpacedLabelPartition() partitions.Partition {
	return partitions.Partition{
		UUID:  "5E2F-77A0",
		Path:  "/dev/sdd1",
		Label: "MY DISK",
	}
}

// LegacyConfig is a rule file in the original JSON layout.
const LegacyConfig = `{
	// partitions never touched
	"exceptions": [{"uuid": "7d2a6c1e-0b4f-4e8a-a1d3-5c9e8f2b4a61"}],
	"rules": [
		{"label": "FLASH", "mount": true, "umount": "sync"},
		{"label_regex": "BACKUP", "mount": {"mountpoint": "backup", "options": "ro"}, "script": "/usr/local/bin/backup"},
	],
	"default": {"mount": true},
	"globals": {"main_mount_dir": "/media/", "interval": 1},
}`
