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

package migrate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-automount/pkg/config"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyConfig = `{
	"globals": {"main_mount_dir": "/media/", "interval": 3, "noexecute": true},
	"exceptions": [{"uuid": "ROOT"}],
	"rules": [
		{"label": "FLASH", "mount": {"mountpoint": "flash", "options": "ro"}, "script": ["/bin/a", "/bin/b"]}
	],
	"default": {"mount": true}
}`

func writeLegacy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pautomount.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLegacyToToml(t *testing.T) {
	t.Parallel()

	out, err := LegacyToToml(writeLegacy(t, legacyConfig))
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.toml", out, 0o600))
	cfg, err := config.NewConfig(fs, "/a.toml", config.BaseDefaults)
	require.NoError(t, err)

	vals := cfg.Snapshot()
	assert.Equal(t, "/media", vals.Globals.MainMountDir)
	assert.Equal(t, 3*time.Second, vals.Globals.Interval)
	assert.True(t, vals.Globals.NoExecute)
	require.Len(t, vals.Exceptions, 1)
	require.Len(t, vals.Rules, 1)
	assert.Equal(t, []config.MountSpec{{Mountpoint: "flash", Options: "ro"}}, vals.Rules[0].Mount.Specs)
	assert.Equal(t, []string{"/bin/a", "/bin/b"}, vals.Rules[0].Script.Commands)
	assert.True(t, vals.Default.Mount.Enabled())
}

func TestLegacyToToml_Invalid(t *testing.T) {
	t.Parallel()

	_, err := LegacyToToml(writeLegacy(t, `{"rules": [`))
	require.Error(t, err)

	_, err = LegacyToToml(writeLegacy(t, `{"globals": {"interval": 0}}`))
	require.Error(t, err, "converted config must pass validation")
}

func TestRequired(t *testing.T) {
	t.Parallel()

	t.Run("returns true when legacy exists and toml does not", func(t *testing.T) {
		t.Parallel()
		legacy := writeLegacy(t, legacyConfig)
		assert.True(t, Required(legacy, filepath.Join(t.TempDir(), "automount.toml")))
	})

	t.Run("returns false when toml exists", func(t *testing.T) {
		t.Parallel()
		legacy := writeLegacy(t, legacyConfig)
		newPath := filepath.Join(t.TempDir(), "automount.toml")
		require.NoError(t, os.WriteFile(newPath, nil, 0o600))
		assert.False(t, Required(legacy, newPath))
	})

	t.Run("returns false without legacy file", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		assert.False(t, Required(filepath.Join(dir, "none.conf"), filepath.Join(dir, "automount.toml")))
	})
}

func TestMigrate(t *testing.T) {
	t.Parallel()

	legacy := writeLegacy(t, legacyConfig)
	newPath := filepath.Join(t.TempDir(), "zaparoo", "automount.toml")

	require.NoError(t, Migrate(legacy, newPath))
	_, err := os.Stat(newPath)
	require.NoError(t, err)

	require.Error(t, Migrate(legacy, newPath), "existing file is not overwritten")
}
