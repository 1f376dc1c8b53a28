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

package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ZaparooProject/zaparoo-automount/pkg/config"
	"github.com/ZaparooProject/zaparoo-automount/pkg/partitions"
	"github.com/ZaparooProject/zaparoo-automount/pkg/service/actions"
	"github.com/ZaparooProject/zaparoo-automount/pkg/service/ledger"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Snapshotter hands out the configuration for one cycle.
type Snapshotter interface {
	Snapshot() config.Values
}

// Report summarizes one poll cycle.
type Report struct {
	Attached   []partitions.Partition
	Detached   []partitions.Partition
	Skipped    int
	Dispatched int
}

// Poller owns the daemon's mutable state: the previous snapshot, the
// ledger and the worker pool. Only the goroutine calling Cycle or Run
// touches the snapshot.
type Poller struct {
	cfg      Snapshotter
	source   Source
	ledger   *ledger.Ledger
	actions  *actions.Executor
	clock    clockwork.Clock
	sem      *semaphore.Weighted
	wake     chan struct{}
	scanErrs *rate.Sometimes
	previous []partitions.Partition
	wg       sync.WaitGroup
	semSize  int
}

type PollerOption func(*Poller)

func WithClock(clock clockwork.Clock) PollerOption {
	return func(p *Poller) {
		p.clock = clock
	}
}

func NewPoller(
	cfg Snapshotter,
	source Source,
	l *ledger.Ledger,
	exec *actions.Executor,
	opts ...PollerOption,
) *Poller {
	p := &Poller{
		cfg:      cfg,
		source:   source,
		ledger:   l,
		actions:  exec,
		clock:    clockwork.NewRealClock(),
		wake:     make(chan struct{}, 1),
		scanErrs: &rate.Sometimes{First: 3, Interval: time.Minute},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ledger is the record of processed partitions.
func (p *Poller) Ledger() *ledger.Ledger {
	return p.ledger
}

// Wake makes a sleeping Run start its next cycle immediately.
func (p *Poller) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Wait blocks until every dispatched worker has finished.
func (p *Poller) Wait() {
	p.wg.Wait()
}

// Run polls until ctx is done. It does not wait for workers; call Wait
// afterwards for that.
func (p *Poller) Run(ctx context.Context) {
	log.Info().Msg("poller started")
	defer log.Info().Msg("poller stopped")

	for {
		if _, err := p.Cycle(ctx); err != nil {
			p.scanErrs.Do(func() {
				log.Error().Err(err).Msg("poll cycle failed")
			})
		}

		g := p.cfg.Snapshot().Globals
		if g.SuperDebug {
			log.Trace().Dur("interval", g.Interval).Msg("sleeping")
		}
		timer := p.clock.NewTimer(g.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-p.wake:
			timer.Stop()
			log.Debug().Msg("woken early")
		case <-timer.Chan():
		}
	}
}

// Cycle runs one scan, diff and dispatch pass. Workers are started but not
// awaited. When the mount table cannot be read the previous snapshot is
// kept so the same changes are picked up next cycle.
func (p *Poller) Cycle(ctx context.Context) (Report, error) {
	vals := p.cfg.Snapshot()
	g := vals.Globals

	current, err := p.source.Scan(g)
	if err != nil {
		return Report{}, fmt.Errorf("failed to scan partitions: %w", err)
	}

	attached, detached := partitions.Compare(current, p.previous)
	report := Report{Attached: attached, Detached: detached}

	if len(attached) > 0 {
		mounted, err := p.source.Mounted(g)
		if err != nil {
			return report, fmt.Errorf("failed to read mount table: %w", err)
		}
		attached = partitions.MarkMounted(attached, mounted)
		report.Attached = attached
	}
	p.previous = current

	logChanges(g, attached, detached)

	sem := p.semaphore(g.MaxWorkers)
	for _, part := range attached {
		if part.Mounted {
			log.Info().Str("uuid", part.UUID).Str("path", part.Path).
				Msg("partition already mounted, ignoring")
			report.Skipped++
			continue
		}
		p.dispatchAttach(ctx, sem, vals, part)
		report.Dispatched++
	}
	for _, part := range detached {
		p.dispatchDetach(ctx, sem, vals, part)
		report.Dispatched++
	}

	if g.SuperDebug {
		log.Trace().Interface("partitions", current).Msg("current partitions")
	}
	return report, nil
}

func logChanges(g config.Globals, attached, detached []partitions.Partition) {
	if len(attached) > 0 {
		ev := log.Info().Int("count", len(attached))
		if g.Verbose() {
			ev = ev.Interface("partitions", attached)
		}
		ev.Msg("found attached partitions")
	}
	if len(detached) > 0 {
		ev := log.Info().Int("count", len(detached))
		if g.Verbose() {
			ev = ev.Interface("partitions", detached)
		}
		ev.Msg("found detached partitions")
	}
}

// semaphore returns the worker pool for this cycle, replacing it when a
// reload changed max_workers. Workers already running keep the old one, so
// until they finish the two pools together may exceed the new limit.
func (p *Poller) semaphore(size int) *semaphore.Weighted {
	if size < 1 {
		size = 1
	}
	if p.sem == nil || p.semSize != size {
		p.sem = semaphore.NewWeighted(int64(size))
		p.semSize = size
	}
	return p.sem
}

func (p *Poller) dispatchAttach(
	ctx context.Context,
	sem *semaphore.Weighted,
	vals config.Values,
	part partitions.Partition,
) {
	// registered before the goroutine so a detach dispatched in a later
	// cycle always sees it
	tok := p.ledger.Begin(part.UUID)
	p.spawn(ctx, "attach", part, func(wctx context.Context) {
		defer p.ledger.Done(tok)
		if err := acquire(ctx, sem); err != nil {
			zerolog.Ctx(wctx).Warn().Err(err).Msg("attach cancelled before start")
			return
		}
		defer sem.Release(1)
		outcome := p.actions.AttachTracked(wctx, vals, part, tok)
		zerolog.Ctx(wctx).Debug().Stringer("outcome", outcome).Msg("attach finished")
	})
}

func (p *Poller) dispatchDetach(
	ctx context.Context,
	sem *semaphore.Weighted,
	vals config.Values,
	part partitions.Partition,
) {
	// only attaches dispatched before this detach are undone; a replug
	// seen in a later cycle gets its own detach
	mark := p.ledger.Mark()
	p.spawn(ctx, "detach", part, func(wctx context.Context) {
		// an attach of the same partition may be queued for a slot
		p.ledger.Await(part.UUID, mark)
		if err := acquire(ctx, sem); err != nil {
			zerolog.Ctx(wctx).Warn().Err(err).Msg("detach cancelled before start")
			return
		}
		defer sem.Release(1)
		p.actions.DetachUpTo(wctx, vals, part, mark)
	})
}

func acquire(ctx context.Context, sem *semaphore.Weighted) error {
	if err := sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire worker slot: %w", err)
	}
	return nil
}

// spawn runs fn on its own goroutine with a correlation id in its logger.
// External commands run on a context that is not cancelled with ctx.
func (p *Poller) spawn(
	ctx context.Context,
	event string,
	part partitions.Partition,
	fn func(context.Context),
) {
	logger := log.With().
		Str("job", uuid.NewString()).
		Str("event", event).
		Str("uuid", part.UUID).
		Logger()
	wctx := logger.WithContext(context.WithoutCancel(ctx))

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error().
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("worker panicked")
			}
		}()
		logger.Debug().Object("partition", part).Msg("worker started")
		fn(wctx)
	}()
}
