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

package cli

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/ZaparooProject/zaparoo-automount/pkg/config"
	"github.com/ZaparooProject/zaparoo-automount/pkg/service"
	"github.com/rs/zerolog/log"
)

// Serve runs the daemon until a terminating signal arrives or ctx is done.
// SIGHUP reloads the config in place; the poll loop, ledger and snapshot
// are left untouched. With once set a single cycle is run instead.
func Serve(
	ctx context.Context,
	cfg *config.Instance,
	poller *service.Poller,
	once bool,
	sigs <-chan os.Signal,
) error {
	if once {
		if _, err := service.RunOnce(ctx, poller); err != nil {
			return fmt.Errorf("cycle failed: %w", err)
		}
		return nil
	}

	stop, err := service.Start(ctx, cfg, poller)
	if err != nil {
		return fmt.Errorf("error starting service: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return stop()
		case sig, ok := <-sigs:
			if !ok {
				return stop()
			}
			if sig == syscall.SIGHUP {
				log.Info().Msg("reloading config on SIGHUP")
				if err := cfg.Load(); err != nil {
					log.Error().Err(err).Msg("config reload failed, keeping previous config")
				}
				continue
			}
			log.Info().Str("signal", sig.String()).Msg("stopping")
			return stop()
		}
	}
}
