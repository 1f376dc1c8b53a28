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
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	DefaultMountsFile = "/proc/mounts"
	mountsFields      = 6
	devPrefix         = "/dev/"
)

// MountTable reads the set of mounted device paths from a mounts file.
type MountTable struct {
	fs      afero.Fs
	resolve func(string) (string, error)
	path    string
}

func NewMountTable(fs afero.Fs, path string) *MountTable {
	return &MountTable{
		fs:      fs,
		path:    path,
		resolve: filepath.EvalSymlinks,
	}
}

// Mounted returns the resolved device paths currently mounted.
func (m *MountTable) Mounted() (map[string]struct{}, error) {
	f, err := m.fs.Open(m.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mount table: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return ParseMounts(f, m.resolve), nil
}

// ParseMounts collects mount sources under /dev/ from a mounts file. A line
// with an unexpected field count ends parsing and whatever was read before
// it is returned. Sources that fail to resolve are kept verbatim.
func ParseMounts(r io.Reader, resolve func(string) (string, error)) map[string]struct{} {
	mounted := make(map[string]struct{})

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != mountsFields {
			log.Warn().Str("line", line).Msg("malformed mount table line, stopping parse")
			break
		}

		source := fields[0]
		if !strings.HasPrefix(source, devPrefix) {
			continue
		}
		if resolved, err := resolve(source); err == nil {
			source = resolved
		}
		mounted[source] = struct{}{}
	}

	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("error reading mount table")
	}

	return mounted
}
