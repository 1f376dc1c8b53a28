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

// Package actions runs the per-partition pipelines: mount, commands and
// scripts when a partition appears, and the recorded umount work when it
// goes away.
package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/zaparoo-automount/pkg/config"
	"github.com/ZaparooProject/zaparoo-automount/pkg/helpers/command"
	"github.com/ZaparooProject/zaparoo-automount/pkg/mountpoint"
	"github.com/ZaparooProject/zaparoo-automount/pkg/partitions"
	"github.com/ZaparooProject/zaparoo-automount/pkg/rules"
	"github.com/ZaparooProject/zaparoo-automount/pkg/service/ledger"
	"github.com/alessio/shellescape"
	"github.com/cenkalti/backoff/v5"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/spf13/afero"
)

// Outcome is how an attached partition was handled.
type Outcome int

const (
	OutcomeExcepted Outcome = iota
	OutcomeActed
	OutcomeDefaulted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeExcepted:
		return "excepted"
	case OutcomeActed:
		return "acted"
	case OutcomeDefaulted:
		return "defaulted"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

const defaultRetryInterval = 250 * time.Millisecond

// UsageFunc reports filesystem usage for a mounted path.
type UsageFunc func(ctx context.Context, path string) (*disk.UsageStat, error)

type Executor struct {
	ledger        *ledger.Ledger
	runner        command.Executor
	fs            afero.Fs
	checker       mountpoint.MountChecker
	claims        *mountpoint.Claims
	usage         UsageFunc
	retryInterval time.Duration
}

type Option func(*Executor)

// WithRetryInterval sets the first delay between unmount attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(e *Executor) {
		e.retryInterval = d
	}
}

func WithUsageFunc(fn UsageFunc) Option {
	return func(e *Executor) {
		e.usage = fn
	}
}

func NewExecutor(
	l *ledger.Ledger,
	runner command.Executor,
	fs afero.Fs,
	checker mountpoint.MountChecker,
	opts ...Option,
) *Executor {
	e := &Executor{
		ledger:        l,
		runner:        runner,
		fs:            fs,
		checker:       checker,
		claims:        mountpoint.NewClaims(),
		usage:         disk.UsageWithContext,
		retryInterval: defaultRetryInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) runnerFor(g config.Globals) command.Executor {
	if g.NoExecute {
		return command.DryRunExecutor{}
	}
	return e.runner
}

// Attach handles a newly seen partition that is not mounted yet. The first
// matching exception stops processing. Otherwise the first matching rule,
// or the default rule, runs its mounts, commands and scripts in that order
// and the partition is recorded in the ledger.
func (e *Executor) Attach(ctx context.Context, vals config.Values, p partitions.Partition) Outcome {
	tok := e.ledger.Begin(p.UUID)
	defer e.ledger.Done(tok)
	return e.AttachTracked(ctx, vals, p, tok)
}

// AttachTracked is Attach for a caller that already registered the attach
// with the ledger. The ledger entry is stamped with tok.
func (e *Executor) AttachTracked(
	ctx context.Context,
	vals config.Values,
	p partitions.Partition,
	tok ledger.Token,
) Outcome {
	logger := zerolog.Ctx(ctx)
	verbose := vals.Globals.Verbose()

	if exc, ok := rules.First(p, vals.Exceptions); ok {
		logger.Info().Str("exception", exc.Describe()).
			Msg("partition matches exception, skipping")
		return OutcomeExcepted
	}

	outcome := OutcomeActed
	rule, ok := rules.First(p, vals.Rules)
	if !ok {
		outcome = OutcomeDefaulted
		rule = vals.Default
		logger.Info().Msg("no rule matches, using default")
	} else {
		ev := logger.Info().Str("rule", rule.Describe())
		if verbose {
			ev = ev.Interface("actions", rule)
		}
		ev.Msg("partition matches rule")
	}

	run := e.runnerFor(vals.Globals)
	if rule.Mount.Enabled() {
		p.Mountpoint = e.mount(ctx, run, vals.Globals, p, rule.Mount)
	}
	for _, line := range rule.Command.Commands {
		e.run(ctx, run, "command", line)
	}
	if rule.Script.Enabled() {
		args := shellescape.QuoteCommand(p.ScriptArgs())
		for _, script := range rule.Script.Commands {
			e.run(ctx, run, "script", script+" "+args)
		}
	}

	entry := ledger.NewEntry(p, rule.Umount)
	entry.Token = tok
	e.ledger.Add(entry)
	logger.Debug().Object("entry", entry).Msg("partition recorded")
	return outcome
}

// mount runs every spec and returns the first mountpoint that worked.
func (e *Executor) mount(
	ctx context.Context,
	run command.Executor,
	g config.Globals,
	p partitions.Partition,
	action config.MountAction,
) string {
	logger := zerolog.Ctx(ctx)
	alloc := mountpoint.NewAllocator(e.fs, g.MainMountDir, e.checker, mountpoint.WithClaims(e.claims))
	if action.Kind == config.ActionList {
		logger.Debug().Int("specs", len(action.Specs)).Msg("processing mount list")
	}

	first := ""
	for _, spec := range action.Specs {
		mp, ok := e.mountSpec(ctx, run, g, alloc, p, spec)
		if ok && first == "" {
			first = mp
		}
	}
	return first
}

// mountSpec claims a mountpoint for one spec and mounts p on it. The claim
// is held until the mount command has finished, so concurrent attaches
// never pick the same directory.
func (e *Executor) mountSpec(
	ctx context.Context,
	run command.Executor,
	g config.Globals,
	alloc *mountpoint.Allocator,
	p partitions.Partition,
	spec config.MountSpec,
) (string, bool) {
	logger := zerolog.Ctx(ctx)

	var mp string
	if spec.Mountpoint != "" {
		mp = alloc.Resolve(spec.Mountpoint)
		if !e.claims.Claim(mp) {
			logger.Error().Str("mountpoint", mp).Msg("mountpoint busy with another mount, skipping")
			return "", false
		}
	} else {
		var err error
		mp, err = alloc.Claim(p)
		if err != nil {
			logger.Error().Err(err).Msg("failed to allocate mountpoint")
			return "", false
		}
	}
	defer e.claims.Release(mp)

	opts := spec.Options
	if opts == "" {
		opts = g.DefaultMountOption
	}

	if g.NoExecute {
		logger.Info().Str("mountpoint", mp).Msg("noexecute: would create mountpoint")
	} else if err := alloc.Ensure(mp); err != nil {
		logger.Error().Err(err).Msg("mount aborted")
		return "", false
	}

	logger.Info().Str("mountpoint", mp).Msg("mounting partition")
	line := shellescape.QuoteCommand([]string{"mount", p.Path, mp, "-o", opts})
	if !e.run(ctx, run, "mount", line) {
		return "", false
	}
	logger.Info().Str("mountpoint", mp).Msg("partition mounted")
	if g.Verbose() && !g.NoExecute {
		e.logUsage(ctx, mp)
	}
	return mp, true
}

func (e *Executor) logUsage(ctx context.Context, mp string) {
	logger := zerolog.Ctx(ctx)
	usage, err := e.usage(ctx, mp)
	if err != nil {
		logger.Debug().Err(err).Str("mountpoint", mp).Msg("failed to read filesystem usage")
		return
	}
	logger.Debug().
		Str("mountpoint", mp).
		Str("fstype", usage.Fstype).
		Str("free", humanize.Bytes(usage.Free)).
		Str("total", humanize.Bytes(usage.Total)).
		Msg("filesystem usage")
}

// run executes one line and logs its result. It reports whether the
// command exited with status zero.
func (e *Executor) run(ctx context.Context, run command.Executor, kind, line string) bool {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("kind", kind).Str("command", line).Msg("executing")

	res, err := run.Run(ctx, line)
	if err != nil {
		logger.Error().Err(err).Str("kind", kind).Str("command", line).Msg("command failed to run")
		return false
	}
	if !res.Success() {
		logger.Warn().
			Str("kind", kind).
			Str("command", line).
			Int("exit_code", res.ExitCode).
			Str("output", strings.TrimSpace(res.Output)).
			Msg("command exited with error")
		return false
	}
	logger.Trace().Str("kind", kind).Str("output", res.Output).Msg("command succeeded")
	return true
}

var errUmount = errors.New("umount failed")

// Detach undoes the work recorded for a partition that has gone away. It
// waits for in-flight attaches of the same UUID, runs the recorded umount
// commands, unmounts the mountpoint and always drops the ledger entries.
func (e *Executor) Detach(ctx context.Context, vals config.Values, p partitions.Partition) {
	e.DetachUpTo(ctx, vals, p, e.ledger.Mark())
}

// DetachUpTo is Detach limited to attaches at or before mark. An attach of
// the same UUID begun after mark belongs to a later plug-in of the device
// and is left alone.
func (e *Executor) DetachUpTo(ctx context.Context, vals config.Values, p partitions.Partition, mark ledger.Token) {
	logger := zerolog.Ctx(ctx)

	e.ledger.Await(p.UUID, mark)
	entries := e.ledger.Take(p.UUID, mark)
	if len(entries) == 0 {
		logger.Debug().Msg("detached partition was never processed")
		return
	}

	run := e.runnerFor(vals.Globals)
	for _, entry := range entries {
		logger.Info().Object("entry", entry).Msg("processing detached partition")
		for _, line := range entry.Umount.Commands {
			e.run(ctx, run, "umount command", line)
		}
		if entry.Mountpoint == "" {
			continue
		}
		if err := e.unmount(ctx, run, vals.Globals, entry.Mountpoint); err != nil {
			logger.Error().Err(err).Str("mountpoint", entry.Mountpoint).
				Msg("giving up on unmount")
			continue
		}
		logger.Info().Str("mountpoint", entry.Mountpoint).Msg("partition unmounted")
		if vals.Globals.RemoveMountpoints && !vals.Globals.NoExecute {
			alloc := mountpoint.NewAllocator(e.fs, vals.Globals.MainMountDir, e.checker)
			removed, err := alloc.Cleanup(entry.Mountpoint)
			if err != nil {
				logger.Warn().Err(err).Msg("failed to remove mountpoint")
			} else if removed {
				logger.Debug().Str("mountpoint", entry.Mountpoint).Msg("removed mountpoint")
			}
		}
	}
}

func (e *Executor) unmount(ctx context.Context, run command.Executor, g config.Globals, mp string) error {
	logger := zerolog.Ctx(ctx)
	line := shellescape.QuoteCommand([]string{"umount", mp})

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.retryInterval
	b.MaxInterval = 16 * e.retryInterval

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if e.run(ctx, run, "umount", line) {
			return struct{}{}, nil
		}
		logger.Debug().Int("attempt", attempt).Str("mountpoint", mp).Msg("umount attempt failed")
		return struct{}{}, errUmount
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(g.UmountRetries)), //nolint:gosec // validated 1-100
	)
	if err != nil {
		return fmt.Errorf("%s after %d attempts: %w", mp, attempt, err)
	}
	return nil
}
