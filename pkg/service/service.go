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

// Package service runs the automount daemon: a poll loop that diffs the
// partitions present on the system and hands every change to a bounded
// pool of action workers.
package service

import (
	"context"
	"fmt"

	"github.com/ZaparooProject/zaparoo-automount/pkg/config"
	"github.com/ZaparooProject/zaparoo-automount/pkg/helpers/command"
	"github.com/ZaparooProject/zaparoo-automount/pkg/mountpoint"
	"github.com/ZaparooProject/zaparoo-automount/pkg/service/actions"
	"github.com/ZaparooProject/zaparoo-automount/pkg/service/ledger"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// NewSystemPoller wires a poller to the live system: real device
// directories, the shell command runner and the OS filesystem.
func NewSystemPoller(cfg Snapshotter, opts ...PollerOption) *Poller {
	fs := afero.NewOsFs()
	l := ledger.New()
	exec := actions.NewExecutor(l, &command.RealExecutor{}, fs, mountpoint.DeviceChecker{})
	return NewPoller(cfg, NewSystemSource(fs), l, exec, opts...)
}

// Start runs the poll loop and the optional watchers in the background.
// The returned function stops them and waits for in-flight workers.
func Start(ctx context.Context, cfg *config.Instance, poller *Poller) (func() error, error) {
	if poller == nil {
		return nil, fmt.Errorf("no poller for %s", cfg.Path())
	}
	g := cfg.Snapshot().Globals

	runCtx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		poller.Run(gctx)
		return nil
	})

	if g.WatchDevices {
		group.Go(func() error {
			if err := WatchDevices(gctx, g.ByUUIDDir, poller.Wake); err != nil {
				log.Warn().Err(err).Msg("device watcher unavailable, relying on polling")
			}
			return nil
		})
	}

	if g.WatchConfig {
		group.Go(func() error {
			if err := cfg.Watch(gctx); err != nil {
				log.Warn().Err(err).Msg("config watcher unavailable")
			}
			return nil
		})
	}

	log.Info().
		Dur("interval", g.Interval).
		Int("max_workers", g.MaxWorkers).
		Bool("noexecute", g.NoExecute).
		Msg("automount service started")

	return func() error {
		cancel()
		err := group.Wait()
		log.Info().Msg("waiting for workers to finish")
		poller.Wait()
		if n := poller.Ledger().Len(); n > 0 {
			log.Info().Int("entries", n).Msg("leaving processed partitions mounted")
		}
		if err != nil {
			return fmt.Errorf("service stopped with error: %w", err)
		}
		return nil
	}, nil
}

// RunOnce performs a single cycle and waits for its workers.
func RunOnce(ctx context.Context, poller *Poller) (Report, error) {
	report, err := poller.Cycle(ctx)
	poller.Wait()
	if err != nil {
		return report, err
	}
	log.Info().
		Int("attached", len(report.Attached)).
		Int("detached", len(report.Detached)).
		Int("skipped", report.Skipped).
		Msg("single cycle finished")
	return report, nil
}
