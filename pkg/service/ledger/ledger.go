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

// Package ledger records the partitions the daemon has acted on so that
// their detach can undo the work.
package ledger

import (
	"sync"

	"github.com/ZaparooProject/zaparoo-automount/pkg/config"
	"github.com/ZaparooProject/zaparoo-automount/pkg/helpers/syncutil"
	"github.com/ZaparooProject/zaparoo-automount/pkg/partitions"
	"github.com/rs/zerolog"
)

// Token identifies one attach. Tokens increase in the order attaches are
// begun, so a detach can tell which attaches it is allowed to undo.
type Token uint64

// Entry is one processed partition. Umount holds the commands of the rule
// that handled it.
type Entry struct {
	UUID       string               `json:"uuid"`
	Path       string               `json:"path"`
	Label      string               `json:"label,omitempty"`
	Mountpoint string               `json:"mountpoint,omitempty"`
	Umount     config.CommandAction `json:"umount"`
	Token      Token                `json:"-"`
}

// NewEntry copies the identifying fields of p.
func NewEntry(p partitions.Partition, umount config.CommandAction) Entry {
	return Entry{
		UUID:       p.UUID,
		Path:       p.Path,
		Label:      p.Label,
		Mountpoint: p.Mountpoint,
		Umount:     umount,
	}
}

func (e Entry) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("uuid", e.UUID).Str("path", e.Path)
	if e.Label != "" {
		ev.Str("label", e.Label)
	}
	if e.Mountpoint != "" {
		ev.Str("mountpoint", e.Mountpoint)
	}
	ev.Int("umount_commands", len(e.Umount.Commands))
}

// Ledger is safe for concurrent use by action workers.
type Ledger struct {
	cond    *sync.Cond
	pending map[Token]string
	entries []Entry
	mu      syncutil.Mutex
	last    Token
}

func New() *Ledger {
	l := &Ledger{pending: make(map[Token]string)}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Begin marks an attach of uuid as in flight and returns its token. Every
// Begin must be paired with a Done.
func (l *Ledger) Begin(uuid string) Token {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last++
	l.pending[l.last] = uuid
	return l.last
}

func (l *Ledger) Done(tok Token) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.pending, tok)
	l.cond.Broadcast()
}

// Mark is the newest token handed out so far. A detach captures it when
// dispatched and only undoes attaches at or below it.
func (l *Ledger) Mark() Token {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// InFlight reports whether any attach of uuid has begun and not finished.
func (l *Ledger) InFlight(uuid string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pendingUpTo(uuid, l.last)
}

// Await blocks until no attach of uuid begun at or before mark is in
// flight. Attaches begun later are not waited for.
func (l *Ledger) Await(uuid string, mark Token) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.pendingUpTo(uuid, mark) {
		l.cond.Wait()
	}
}

func (l *Ledger) pendingUpTo(uuid string, mark Token) bool {
	for tok, u := range l.pending {
		if u == uuid && tok <= mark {
			return true
		}
	}
	return false
}

func (l *Ledger) Add(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Take removes and returns the entries for uuid recorded by attaches at or
// before mark, oldest first. Newer entries stay.
func (l *Ledger) Take(uuid string, mark Token) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var taken []Entry
	kept := l.entries[:0]
	for _, e := range l.entries {
		if e.UUID == uuid && e.Token <= mark {
			taken = append(taken, e)
		} else {
			kept = append(kept, e)
		}
	}
	clear(l.entries[len(kept):])
	l.entries = kept
	return taken
}

// Entries returns a copy of the ledger contents.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
