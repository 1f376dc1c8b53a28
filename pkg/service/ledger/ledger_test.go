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

package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-automount/pkg/config"
	"github.com/ZaparooProject/zaparoo-automount/pkg/partitions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntry(t *testing.T) {
	t.Parallel()

	umount := config.CommandAction{Kind: config.ActionSingle, Commands: []string{"sync"}}
	p := partitions.Partition{UUID: "u1", Path: "/dev/sdb1", Label: "FLASH", Mountpoint: "/media/FLASH"}

	e := NewEntry(p, umount)
	assert.Equal(t, Entry{
		UUID: "u1", Path: "/dev/sdb1", Label: "FLASH", Mountpoint: "/media/FLASH", Umount: umount,
	}, e)
}

func TestAddTake(t *testing.T) {
	t.Parallel()

	l := New()
	l.Add(Entry{UUID: "a", Mountpoint: "/media/a1"})
	l.Add(Entry{UUID: "b"})
	l.Add(Entry{UUID: "a", Mountpoint: "/media/a2"})
	require.Equal(t, 3, l.Len())

	taken := l.Take("a", l.Mark())
	require.Len(t, taken, 2)
	assert.Equal(t, "/media/a1", taken[0].Mountpoint)
	assert.Equal(t, "/media/a2", taken[1].Mountpoint)
	assert.Equal(t, []Entry{{UUID: "b"}}, l.Entries())

	assert.Empty(t, l.Take("a", l.Mark()), "second take finds nothing")
	assert.Empty(t, l.Take("missing", l.Mark()))
}

func TestTakeLeavesNewerEntries(t *testing.T) {
	t.Parallel()

	l := New()
	first := l.Begin("a")
	l.Add(Entry{UUID: "a", Mountpoint: "/media/old", Token: first})
	l.Done(first)
	mark := l.Mark()

	second := l.Begin("a")
	l.Add(Entry{UUID: "a", Mountpoint: "/media/new", Token: second})
	l.Done(second)

	taken := l.Take("a", mark)
	require.Len(t, taken, 1)
	assert.Equal(t, "/media/old", taken[0].Mountpoint)
	require.Len(t, l.Entries(), 1)
	assert.Equal(t, "/media/new", l.Entries()[0].Mountpoint)
}

func TestBeginTokensIncrease(t *testing.T) {
	t.Parallel()

	l := New()
	assert.Zero(t, l.Mark())
	a := l.Begin("a")
	b := l.Begin("b")
	assert.Less(t, a, b)
	assert.Equal(t, b, l.Mark())
}

func TestEntriesIsCopy(t *testing.T) {
	t.Parallel()

	l := New()
	l.Add(Entry{UUID: "a"})
	got := l.Entries()
	got[0].UUID = "changed"
	assert.Equal(t, "a", l.Entries()[0].UUID)
}

func TestAwaitBlocksUntilDone(t *testing.T) {
	t.Parallel()

	l := New()
	first := l.Begin("a")
	second := l.Begin("a")
	assert.True(t, l.InFlight("a"))
	assert.False(t, l.InFlight("b"))
	mark := l.Mark()

	released := make(chan struct{})
	go func() {
		l.Await("a", mark)
		close(released)
	}()

	l.Await("b", mark) // unrelated uuid never blocks

	l.Done(first)
	select {
	case <-released:
		t.Fatal("await returned with an attach still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	l.Add(Entry{UUID: "a", Token: second})
	l.Done(second)
	require.Eventually(t, func() bool {
		select {
		case <-released:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	assert.Len(t, l.Take("a", mark), 1, "entry added before Done is visible after Await")
	assert.False(t, l.InFlight("a"))
}

func TestAwaitIgnoresLaterAttach(t *testing.T) {
	t.Parallel()

	l := New()
	mark := l.Mark()
	later := l.Begin("a")
	defer l.Done(later)

	done := make(chan struct{})
	go func() {
		l.Await("a", mark)
		close(done)
	}()
	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.True(t, l.InFlight("a"))
}

func TestConcurrentUse(t *testing.T) {
	t.Parallel()

	l := New()
	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			uuid := string(rune('a' + i%5))
			tok := l.Begin(uuid)
			l.Add(Entry{UUID: uuid, Token: tok})
			l.Done(tok)
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, l.Len())

	total := 0
	mark := l.Mark()
	for _, u := range []string{"a", "b", "c", "d", "e"} {
		l.Await(u, mark)
		total += len(l.Take(u, mark))
	}
	assert.Equal(t, 100, total)
	assert.Zero(t, l.Len())
}
