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
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_ReloadsOnWrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "automount.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"rules": [{"label": "ONE"}]}`), 0o600))

	cfg, err := NewConfig(afero.NewOsFs(), path, BaseDefaults)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- cfg.Watch(ctx)
	}()

	// give the watcher a moment to register before writing
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{"rules": [{"label": "ONE"}, {"label": "TWO"}]}`), 0o600))

	require.Eventually(t, func() bool {
		return len(cfg.Snapshot().Rules) == 2
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatch_BadWriteKeepsConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "automount.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"rules": [{"label": "ONE"}]}`), 0o600))

	cfg, err := NewConfig(afero.NewOsFs(), path, BaseDefaults)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = cfg.Watch(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0o600))
	time.Sleep(2 * reloadDebounce)

	require.Len(t, cfg.Snapshot().Rules, 1)
}
