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

// Package migrate converts the legacy JSON rule file into the TOML layout.
package migrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZaparooProject/zaparoo-automount/pkg/config"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/tidwall/jsonc"
)

// LegacyPath is where the original daemon kept its JSON config.
const LegacyPath = "/etc/pautomount.conf"

// Required reports whether a legacy config exists and the new one does not.
func Required(legacyPath, newPath string) bool {
	if _, err := os.Stat(newPath); err == nil {
		return false
	}
	_, err := os.Stat(legacyPath)
	return err == nil
}

// LegacyToToml converts a legacy JSON config into TOML and checks that the
// result loads cleanly.
func LegacyToToml(legacyPath string) ([]byte, error) {
	data, err := os.ReadFile(legacyPath) //nolint:gosec // path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy config: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse legacy config: %w", err)
	}

	if globals, ok := doc["globals"].(map[string]any); ok {
		if dir, ok := globals["main_mount_dir"].(string); ok && len(dir) > 1 {
			globals["main_mount_dir"] = strings.TrimRight(dir, "/")
		}
	}
	for _, section := range []string{"exceptions", "rules"} {
		if v, ok := doc[section]; ok && v == nil {
			delete(doc, section)
		}
	}

	out, err := toml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode toml: %w", err)
	}

	if err := check(out); err != nil {
		return nil, err
	}
	return out, nil
}

func check(tomlData []byte) error {
	fs := afero.NewMemMapFs()
	const path = "/check.toml"
	if err := afero.WriteFile(fs, path, tomlData, 0o600); err != nil {
		return fmt.Errorf("failed to stage converted config: %w", err)
	}
	if _, err := config.NewConfig(fs, path, config.BaseDefaults); err != nil {
		return fmt.Errorf("converted config does not load: %w", err)
	}
	return nil
}

// Migrate writes the converted legacy config to newPath. It refuses to
// overwrite an existing file.
func Migrate(legacyPath, newPath string) error {
	if _, err := os.Stat(newPath); err == nil {
		return fmt.Errorf("%s already exists", newPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", newPath, err)
	}

	out, err := LegacyToToml(legacyPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(newPath), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(newPath, out, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Info().Str("from", legacyPath).Str("to", newPath).Msg("migrated legacy config")
	return nil
}
