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
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tests in this file swap the global logger and must not run in parallel.

func TestInitLogging_FileAndWriter(t *testing.T) {
	saved := log.Logger
	t.Cleanup(func() { log.Logger = saved })

	logFile := filepath.Join(t.TempDir(), "nested", "automount.log")
	var buf bytes.Buffer
	require.NoError(t, InitLogging(logFile, []io.Writer{&buf}))

	log.Info().Str("uuid", "1234-ABCD").Msg("attached")

	assert.Contains(t, buf.String(), `"uuid":"1234-ABCD"`)
	assert.Contains(t, buf.String(), `"caller"`)
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "attached")
}

func TestInitLogging_NoFile(t *testing.T) {
	saved := log.Logger
	t.Cleanup(func() { log.Logger = saved })

	var buf bytes.Buffer
	require.NoError(t, InitLogging("", []io.Writer{&buf}))
	log.Warn().Msg("console only")
	assert.Contains(t, buf.String(), "console only")
}

func TestInitLogging_BadDirectory(t *testing.T) {
	saved := log.Logger
	t.Cleanup(func() { log.Logger = saved })

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	err := InitLogging(filepath.Join(blocker, "sub", "automount.log"), nil)
	require.Error(t, err)
}
