//go:build unix

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

package mountpoint

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// DeviceChecker detects mount points by comparing the device id of a
// directory with that of its parent.
type DeviceChecker struct{}

func (DeviceChecker) IsMountPoint(path string) (bool, error) {
	var self, parent unix.Stat_t
	if err := unix.Lstat(path, &self); err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := unix.Lstat(filepath.Join(path, ".."), &parent); err != nil {
		return false, fmt.Errorf("failed to stat parent of %s: %w", path, err)
	}
	if self.Dev != parent.Dev {
		return true, nil
	}
	// filesystem root
	return self.Ino == parent.Ino, nil
}
