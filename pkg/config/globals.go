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

package config

import (
	"time"

	"github.com/ZaparooProject/zaparoo-automount/pkg/partitions"
	"github.com/go-playground/validator/v10"
)

// Globals are the process-wide tunables from the [globals] section.
type Globals struct {
	MainMountDir       string        `mapstructure:"main_mount_dir" validate:"required,startswith=/"`
	DefaultMountOption string        `mapstructure:"default_mount_option" validate:"required"`
	LogFile            string        `mapstructure:"logfile"`
	ByUUIDDir          string        `mapstructure:"by_uuid_dir" validate:"required"`
	ByLabelDir         string        `mapstructure:"by_label_dir"`
	VirtualDir         string        `mapstructure:"virtual_dir"`
	MountsFile         string        `mapstructure:"mounts_file" validate:"required"`
	IgnoreDevices      []string      `mapstructure:"ignore_devices"`
	Interval           time.Duration `mapstructure:"interval" validate:"gt=0"`
	MaxWorkers         int           `mapstructure:"max_workers" validate:"gte=1,lte=64"`
	UmountRetries      int           `mapstructure:"umount_retries" validate:"gte=1,lte=100"`
	Debug              bool          `mapstructure:"debug"`
	SuperDebug         bool          `mapstructure:"super_debug"`
	NoExecute          bool          `mapstructure:"noexecute"`
	LabelCharFilter    bool          `mapstructure:"label_char_filter"`
	RemoveMountpoints  bool          `mapstructure:"remove_mountpoints"`
	WatchConfig        bool          `mapstructure:"watch_config"`
	WatchDevices       bool          `mapstructure:"watch_devices"`
}

var BaseGlobals = Globals{
	MainMountDir:       "/media",
	DefaultMountOption: "rw",
	LogFile:            LogFile,
	ByUUIDDir:          partitions.DefaultByUUIDDir,
	ByLabelDir:         partitions.DefaultByLabelDir,
	VirtualDir:         partitions.DefaultVirtualDir,
	MountsFile:         partitions.DefaultMountsFile,
	Interval:           3 * time.Second,
	MaxWorkers:         4,
	UmountRetries:      5,
	LabelCharFilter:    true,
	RemoveMountpoints:  true,
	WatchDevices:       true,
}

// Verbose reports whether full data structures should be logged.
func (g Globals) Verbose() bool {
	return g.Debug || g.SuperDebug
}

// IgnorePatterns returns the configured device globs, or the defaults when
// the key was never set.
func (g Globals) IgnorePatterns() []string {
	if g.IgnoreDevices == nil {
		return partitions.DefaultIgnoreDevices
	}
	return g.IgnoreDevices
}

var globalsValidator = validator.New(validator.WithRequiredStructEnabled())

func (g Globals) validate() error {
	//nolint:wrapcheck // caller wraps
	return globalsValidator.Struct(g)
}
