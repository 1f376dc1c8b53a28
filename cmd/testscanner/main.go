//go:build linux

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

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ZaparooProject/zaparoo-automount/pkg/config"
	"github.com/ZaparooProject/zaparoo-automount/pkg/helpers"
	"github.com/ZaparooProject/zaparoo-automount/pkg/partitions"
	"github.com/ZaparooProject/zaparoo-automount/pkg/rules"
	"github.com/ZaparooProject/zaparoo-automount/pkg/service"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
)

// one-shot dry run against the live system: scans partitions once and
// prints what the daemon would do with each, without running anything

type decision struct {
	Partition partitions.Partition `json:"partition"`
	Action    string               `json:"action"`
	Rule      string               `json:"rule,omitempty"`
}

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := pflag.StringP("config", "c", "", "path to the config file")
	pflag.Parse()

	if err := helpers.InitLogging("", []io.Writer{helpers.StderrWriter()}); err != nil {
		return err
	}

	fs := afero.NewOsFs()
	cfg, err := config.NewConfig(fs, config.ResolvePath(*cfgPath), config.BaseDefaults)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	vals := cfg.Snapshot()

	src := service.NewSystemSource(fs)
	parts, err := src.Scan(vals.Globals)
	if err != nil {
		return fmt.Errorf("error scanning partitions: %w", err)
	}
	mounted, err := src.Mounted(vals.Globals)
	if err != nil {
		return fmt.Errorf("error reading mount table: %w", err)
	}
	parts = partitions.MarkMounted(parts, mounted)

	out := make([]decision, 0, len(parts))
	for _, p := range parts {
		d := decision{Partition: p}
		if p.Mounted {
			d.Action = "already mounted"
		} else if exc, ok := rules.First(p, vals.Exceptions); ok {
			d.Action, d.Rule = "excepted", exc.Describe()
		} else if r, ok := rules.First(p, vals.Rules); ok {
			d.Action, d.Rule = "rule", r.Describe()
		} else {
			d.Action = "default"
		}
		out = append(out, d)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("error writing output: %w", err)
	}
	log.Debug().Int("partitions", len(out)).Msg("scan complete")
	return nil
}
