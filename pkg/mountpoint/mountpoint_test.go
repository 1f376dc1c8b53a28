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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ZaparooProject/zaparoo-automount/pkg/partitions"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	mounted map[string]bool
	err     error
}

func (f fakeChecker) IsMountPoint(path string) (bool, error) {
	return f.mounted[path], f.err
}

func newAllocator(t *testing.T, mounted ...string) (*Allocator, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/media", 0o755))
	checker := fakeChecker{mounted: map[string]bool{}}
	for _, m := range mounted {
		checker.mounted[m] = true
	}
	return NewAllocator(fs, "/media/", checker), fs
}

func TestAllocate(t *testing.T) {
	t.Parallel()

	flash := partitions.Partition{UUID: "1234-ABCD", Path: "/dev/sdb1", Label: "FLASH"}
	noLabel := partitions.Partition{UUID: "1234-ABCD", Path: "/dev/sdb1"}

	tests := []struct {
		setup   func(t *testing.T, fs afero.Fs)
		name    string
		want    string
		part    partitions.Partition
		mounted []string
	}{
		{
			name: "label when free",
			part: flash,
			want: "/media/FLASH",
		},
		{
			name: "uuid without label",
			part: noLabel,
			want: "/media/1234-ABCD",
		},
		{
			name: "empty existing label directory is reused",
			part: flash,
			setup: func(t *testing.T, fs afero.Fs) {
				require.NoError(t, fs.Mkdir("/media/FLASH", 0o755))
			},
			want: "/media/FLASH",
		},
		{
			name: "non-empty label directory falls back to uuid",
			part: flash,
			setup: func(t *testing.T, fs afero.Fs) {
				require.NoError(t, afero.WriteFile(fs, "/media/FLASH/file", []byte("x"), 0o644))
			},
			want: "/media/1234-ABCD",
		},
		{
			name:    "mounted label directory falls back to uuid",
			part:    flash,
			mounted: []string{"/media/FLASH"},
			setup: func(t *testing.T, fs afero.Fs) {
				require.NoError(t, fs.Mkdir("/media/FLASH", 0o755))
			},
			want: "/media/1234-ABCD",
		},
		{
			name: "label file falls back to uuid",
			part: flash,
			setup: func(t *testing.T, fs afero.Fs) {
				require.NoError(t, afero.WriteFile(fs, "/media/FLASH", nil, 0o644))
			},
			want: "/media/1234-ABCD",
		},
		{
			name: "uuid taken gives first suffix",
			part: noLabel,
			setup: func(t *testing.T, fs afero.Fs) {
				require.NoError(t, afero.WriteFile(fs, "/media/1234-ABCD/f", nil, 0o644))
			},
			want: "/media/1234-ABCD_(1)",
		},
		{
			name: "suffixes count up",
			part: flash,
			setup: func(t *testing.T, fs afero.Fs) {
				for _, d := range []string{"FLASH", "1234-ABCD", "1234-ABCD_(1)", "1234-ABCD_(2)"} {
					require.NoError(t, afero.WriteFile(fs, filepath.Join("/media", d, "f"), nil, 0o644))
				}
			},
			want: "/media/1234-ABCD_(3)",
		},
		{
			name: "main directory missing",
			part: flash,
			setup: func(t *testing.T, fs afero.Fs) {
				require.NoError(t, fs.RemoveAll("/media"))
			},
			want: "/media/FLASH",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			alloc, fs := newAllocator(t, tt.mounted...)
			if tt.setup != nil {
				tt.setup(t, fs)
			}
			got, err := alloc.Allocate(tt.part)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllocate_ManyCollisions(t *testing.T) {
	t.Parallel()

	alloc, fs := newAllocator(t)
	require.NoError(t, afero.WriteFile(fs, "/media/ABCD/f", nil, 0o644))
	for n := 1; n <= 20; n++ {
		require.NoError(t, afero.WriteFile(fs, fmt.Sprintf("/media/ABCD_(%d)/f", n), nil, 0o644))
	}

	got, err := alloc.Allocate(partitions.Partition{UUID: "ABCD"})
	require.NoError(t, err)
	assert.Equal(t, "/media/ABCD_(21)", got)
}

func TestAllocate_CheckerErrorMeansTaken(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/media/FLASH", 0o755))
	alloc := NewAllocator(fs, "/media", fakeChecker{err: errors.New("stat failed")})

	got, err := alloc.Allocate(partitions.Partition{UUID: "ABCD", Label: "FLASH"})
	require.NoError(t, err)
	assert.Equal(t, "/media/ABCD", got)
}

func TestClaim_SkipsClaimedPaths(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/media", 0o755))
	claims := NewClaims()
	first := NewAllocator(fs, "/media", nil, WithClaims(claims))
	second := NewAllocator(fs, "/media", nil, WithClaims(claims))

	a := partitions.Partition{UUID: "U1", Label: "FLASH"}
	b := partitions.Partition{UUID: "U2", Label: "FLASH"}

	mp, err := first.Claim(a)
	require.NoError(t, err)
	assert.Equal(t, "/media/FLASH", mp)
	assert.True(t, claims.Held("/media/FLASH"))

	mp, err = second.Claim(b)
	require.NoError(t, err)
	assert.Equal(t, "/media/U2", mp, "claimed label is skipped")

	mp, err = second.Allocate(partitions.Partition{UUID: "U3", Label: "FLASH"})
	require.NoError(t, err)
	assert.Equal(t, "/media/U3", mp)
	assert.False(t, claims.Held("/media/U3"), "Allocate does not claim")

	claims.Release("/media/FLASH")
	mp, err = second.Allocate(b)
	require.NoError(t, err)
	assert.Equal(t, "/media/FLASH", mp, "released path is usable again")
}

func TestClaim_ExplicitPath(t *testing.T) {
	t.Parallel()

	claims := NewClaims()
	assert.True(t, claims.Claim("/mnt/backup"))
	assert.False(t, claims.Claim("/mnt/backup"))
	claims.Release("/mnt/backup")
	assert.True(t, claims.Claim("/mnt/backup"))
}

func TestClaim_ConcurrentSameLabel(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/media", 0o755))
	claims := NewClaims()

	const n = 8
	got := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			alloc := NewAllocator(fs, "/media", nil, WithClaims(claims))
			mp, err := alloc.Claim(partitions.Partition{UUID: fmt.Sprintf("U%d", i), Label: "FLASH"})
			assert.NoError(t, err)
			got[i] = mp
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, mp := range got {
		assert.False(t, seen[mp], "mountpoint %s handed out twice", mp)
		seen[mp] = true
	}
	assert.True(t, seen["/media/FLASH"])
}

func TestResolve(t *testing.T) {
	t.Parallel()

	alloc, _ := newAllocator(t)
	assert.Equal(t, "/media/flash", alloc.Resolve("flash"))
	assert.Equal(t, "/media/a/b", alloc.Resolve("a/b/"))
	assert.Equal(t, "/mnt/usb", alloc.Resolve("/mnt/usb"))
	assert.Equal(t, "/media", alloc.MainDir())
}

func TestEnsure(t *testing.T) {
	t.Parallel()

	alloc, fs := newAllocator(t)
	require.NoError(t, alloc.Ensure("/media/deep/er"))
	ok, err := afero.DirExists(fs, "/media/deep/er")
	require.NoError(t, err)
	assert.True(t, ok)

	ro := NewAllocator(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/media", nil)
	require.Error(t, ro.Ensure("/media/x"))
}

func TestCleanup(t *testing.T) {
	t.Parallel()

	t.Run("removes empty generated directory", func(t *testing.T) {
		t.Parallel()
		alloc, fs := newAllocator(t)
		require.NoError(t, fs.Mkdir("/media/FLASH", 0o755))
		removed, err := alloc.Cleanup("/media/FLASH")
		require.NoError(t, err)
		assert.True(t, removed)
		_, err = fs.Stat("/media/FLASH")
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("keeps non-empty directory", func(t *testing.T) {
		t.Parallel()
		alloc, fs := newAllocator(t)
		require.NoError(t, afero.WriteFile(fs, "/media/FLASH/f", nil, 0o644))
		removed, err := alloc.Cleanup("/media/FLASH")
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("keeps directories outside main dir", func(t *testing.T) {
		t.Parallel()
		alloc, fs := newAllocator(t)
		require.NoError(t, fs.MkdirAll("/mnt/usb", 0o755))
		removed, err := alloc.Cleanup("/mnt/usb")
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("keeps still mounted directory", func(t *testing.T) {
		t.Parallel()
		alloc, fs := newAllocator(t, "/media/FLASH")
		require.NoError(t, fs.Mkdir("/media/FLASH", 0o755))
		removed, err := alloc.Cleanup("/media/FLASH")
		require.NoError(t, err)
		assert.False(t, removed)
	})
}

func TestDeviceChecker(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mounted, err := DeviceChecker{}.IsMountPoint(dir)
	require.NoError(t, err)
	assert.False(t, mounted)

	mounted, err = DeviceChecker{}.IsMountPoint("/")
	require.NoError(t, err)
	assert.True(t, mounted)

	_, err = DeviceChecker{}.IsMountPoint(filepath.Join(dir, "missing"))
	require.Error(t, err)
}
