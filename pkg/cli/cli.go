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

// Package cli holds the command line handling shared by the platform
// entry points.
package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/ZaparooProject/zaparoo-automount/pkg/config"
	"github.com/ZaparooProject/zaparoo-automount/pkg/config/migrate"
	"github.com/ZaparooProject/zaparoo-automount/pkg/helpers"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
)

// ErrHandled means a flag was fully handled and the program should exit
// successfully.
var ErrHandled = errors.New("handled")

type Flags struct {
	set       *pflag.FlagSet
	Config    *string
	Stderr    *bool
	NoExecute *bool
	Once      *bool
	Version   *bool
	Migrate   *bool
}

// SetupFlags defines the daemon's flags on a new flag set.
func SetupFlags(name string) *Flags {
	set := pflag.NewFlagSet(name, pflag.ContinueOnError)
	return &Flags{
		set: set,
		Config: set.StringP(
			"config", "c", "",
			"path to the config file (default $"+config.CfgEnv+" or "+config.DefaultPath+")",
		),
		Stderr: set.BoolP(
			"stderr", "e", false,
			"also log to stderr",
		),
		NoExecute: set.BoolP(
			"noexecute", "n", false,
			"log commands instead of running them",
		),
		Once: set.Bool(
			"once", false,
			"run a single poll cycle, wait for its actions and exit",
		),
		Version: set.Bool(
			"version", false,
			"print version and exit",
		),
		Migrate: set.Bool(
			"migrate", false,
			"convert "+migrate.LegacyPath+" to the TOML config and exit",
		),
	}
}

func (f *Flags) Parse(args []string) error {
	if err := f.set.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	return nil
}

// ConfigPath is the config file the daemon will load.
func (f *Flags) ConfigPath() string {
	return config.ResolvePath(*f.Config)
}

// Pre actions flags that need no config or logging. It returns ErrHandled
// when the program should exit without starting the daemon.
func (f *Flags) Pre(out io.Writer) error {
	if *f.Version {
		_, _ = fmt.Fprintf(out, "%s v%s\n", config.AppName, config.AppVersion)
		return ErrHandled
	}
	if *f.Migrate {
		if err := migrate.Migrate(migrate.LegacyPath, f.ConfigPath()); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		_, _ = fmt.Fprintf(out, "Migrated %s to %s\n", migrate.LegacyPath, f.ConfigPath())
		return ErrHandled
	}
	return nil
}

// Setup loads the config and initializes logging. Errors are fatal for the
// daemon.
//
//nolint:gocritic // defaults copied on purpose
func Setup(
	fs afero.Fs,
	f *Flags,
	defaults config.Values,
	writers []io.Writer,
) (*config.Instance, error) {
	path := f.ConfigPath()
	if migrate.Required(migrate.LegacyPath, path) {
		log.Warn().
			Str("legacy", migrate.LegacyPath).
			Msg("legacy config found, convert it with --migrate")
	}

	cfg, err := config.NewConfig(fs, path, defaults)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	if *f.NoExecute {
		cfg.ForceNoExecute()
	}

	if *f.Stderr {
		writers = append(writers, helpers.StderrWriter())
	}
	g := cfg.Snapshot().Globals
	if err := helpers.InitLogging(g.LogFile, writers); err != nil {
		return nil, fmt.Errorf("error initializing logging: %w", err)
	}

	log.Info().
		Str("version", config.AppVersion).
		Str("config", path).
		Bool("noexecute", g.NoExecute).
		Msg("zaparoo automount starting")

	return cfg, nil
}
