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
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZaparooProject/zaparoo-automount/pkg/cli"
	"github.com/ZaparooProject/zaparoo-automount/pkg/config"
	"github.com/ZaparooProject/zaparoo-automount/pkg/service"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := cli.SetupFlags(config.AppName)
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	if err := flags.Pre(os.Stdout); errors.Is(err, cli.ErrHandled) {
		return nil
	} else if err != nil {
		return err
	}

	if os.Geteuid() != 0 && !*flags.NoExecute {
		log.Warn().Msg("not running as root, mount commands will probably fail")
	}

	cfg, err := cli.Setup(afero.NewOsFs(), flags, config.BaseDefaults, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	poller := service.NewSystemPoller(cfg)
	if err := cli.Serve(context.Background(), cfg, poller, *flags.Once, sigs); err != nil {
		log.Error().Err(err).Msg("automount stopped with error")
		return err
	}
	return nil
}
