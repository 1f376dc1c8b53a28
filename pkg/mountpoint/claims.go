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

package mountpoint

import (
	"github.com/ZaparooProject/zaparoo-automount/pkg/helpers/syncutil"
)

// Claims holds the mountpoints picked by attaches whose mount command has
// not finished. A claimed directory is never handed out again until it is
// released, even though it still looks empty and unmounted.
type Claims struct {
	paths map[string]struct{}
	mu    syncutil.Mutex
}

func NewClaims() *Claims {
	return &Claims{paths: make(map[string]struct{})}
}

// Claim reserves path. It returns false when path is already claimed.
func (c *Claims) Claim(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.paths[path]; ok {
		return false
	}
	c.paths[path] = struct{}{}
	return true
}

func (c *Claims) Release(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.paths, path)
}

func (c *Claims) Held(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.paths[path]
	return ok
}

// held must be called with mu locked.
func (c *Claims) held(path string) bool {
	_, ok := c.paths[path]
	return ok
}
