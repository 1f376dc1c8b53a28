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

// Package config loads the automount rule file and hands out immutable
// snapshots of it to the poller and its workers.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ZaparooProject/zaparoo-automount/pkg/helpers/syncutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// ErrNoConfig is returned when the config file does not exist. The daemon
// has nothing to do without one.
var ErrNoConfig = errors.New("config file not found")

// Values is a fully normalized configuration. A Values handed out by
// Instance.Snapshot is never modified afterwards and may be shared between
// goroutines.
type Values struct {
	Globals    Globals `mapstructure:"globals" json:"globals"`
	Exceptions []Rule  `mapstructure:"exceptions" json:"exceptions"`
	Rules      []Rule  `mapstructure:"rules" json:"rules"`
	Default    Rule    `mapstructure:"default" json:"default"`
}

var BaseDefaults = Values{
	Globals: BaseGlobals,
}

type Instance struct {
	fs             afero.Fs
	cfgPath        string
	vals           Values
	defaults       Values
	mu             syncutil.RWMutex
	forceNoExecute bool
}

// ResolvePath picks the config file location: an explicit path, then the
// ZAPAROO_AUTOMOUNT_CFG environment variable, then DefaultPath.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(CfgEnv); env != "" {
		log.Debug().Msgf("env config path: %s", env)
		return env
	}
	return DefaultPath
}

// NewConfig loads the config file at cfgPath. Any error here is fatal for
// the daemon.
func NewConfig(fs afero.Fs, cfgPath string, defaults Values) (*Instance, error) {
	cfg := &Instance{
		fs:       fs,
		cfgPath:  cfgPath,
		vals:     defaults,
		defaults: defaults,
	}
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads, normalizes and validates the config file, then swaps it in.
// On error the previously loaded values stay active.
func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := afero.ReadFile(c.fs, c.cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNoConfig, c.cfgPath)
	} else if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	raw, err := unmarshalRaw(FormatFromPath(c.cfgPath), data)
	if err != nil {
		return err
	}

	newVals, err := decodeValues(raw, c.defaults)
	if err != nil {
		return err
	}

	if err := newVals.Globals.validate(); err != nil {
		return fmt.Errorf("invalid globals: %w", err)
	}

	newVals.normalize()
	if c.forceNoExecute {
		newVals.Globals.NoExecute = true
	}

	c.vals = newVals
	applyLogLevel(newVals.Globals)

	log.Info().
		Str("path", c.cfgPath).
		Int("exceptions", len(newVals.Exceptions)).
		Int("rules", len(newVals.Rules)).
		Msg("config loaded")
	if newVals.Globals.Verbose() {
		log.Debug().Interface("config", newVals).Msg("normalized config")
	}

	return nil
}

// Snapshot returns the current configuration. Callers must treat it as
// read-only.
func (c *Instance) Snapshot() Values {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals
}

func (c *Instance) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfgPath
}

// ForceNoExecute keeps noexecute on regardless of the file, across reloads.
func (c *Instance) ForceNoExecute() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forceNoExecute = true
	c.vals.Globals.NoExecute = true
}

// normalize compiles label patterns and drops anything that can never take
// effect, warning once per defect.
func (v *Values) normalize() {
	for i := range v.Exceptions {
		ex := &v.Exceptions[i]
		if ex.HasActions() {
			log.Warn().Int("exception", i).Msg("actions on an exception are ignored")
			ex.Mount = MountAction{}
			ex.Command = CommandAction{}
			ex.Script = CommandAction{}
			ex.Umount = CommandAction{}
		}
		compileRule("exception", i, ex)
	}

	for i := range v.Rules {
		compileRule("rule", i, &v.Rules[i])
	}

	if v.Default.HasPredicate() {
		log.Debug().Msg("predicates on the default rule are ignored")
	}
	v.Default.UUID = ""
	v.Default.Label = ""
	v.Default.LabelRegex = ""
}

func compileRule(kind string, index int, r *Rule) {
	if !r.HasPredicate() {
		log.Warn().Str("kind", kind).Int("index", index).Msg("entry has no uuid, label or label_regex and never matches")
	}
	if err := r.Compile(); err != nil {
		log.Warn().Err(err).Str("kind", kind).Int("index", index).Msg("entry will never match")
	}
}

func applyLogLevel(g Globals) {
	switch {
	case g.SuperDebug:
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case g.Debug:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
