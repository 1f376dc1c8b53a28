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

package partitions

import (
	"strings"
	"unicode/utf8"
)

// shellUnsafe are always removed from labels since labels end up in
// filesystem paths and shell command lines.
const shellUnsafe = "&;|/$"

// SanitizeLabel cleans a raw filesystem label. With asciiOnly set, every
// character outside [A-Za-z ] is dropped as well. The second return value
// is false when nothing usable is left or when more than half of the
// original characters had to be removed.
func SanitizeLabel(raw string, asciiOnly bool) (string, bool) {
	total := utf8.RuneCountInString(raw)
	if total == 0 {
		return "", false
	}

	var b strings.Builder
	b.Grow(len(raw))
	kept := 0
	for _, r := range raw {
		if strings.ContainsRune(shellUnsafe, r) {
			continue
		}
		if asciiOnly && !isASCIILetterOrSpace(r) {
			continue
		}
		b.WriteRune(r)
		kept++
	}

	if kept == 0 || (total-kept)*2 > total {
		return "", false
	}
	return b.String(), true
}

func isASCIILetterOrSpace(r rune) bool {
	return r == ' ' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// unescapeUdev decodes the \xNN sequences udev uses in /dev/disk/by-label
// link names (a space becomes \x20). Malformed sequences are kept as-is.
func unescapeUdev(name string) string {
	if !strings.Contains(name, `\x`) {
		return name
	}

	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == '\\' && i+3 < len(name) && name[i+1] == 'x' {
			hi, okHi := fromHex(name[i+2])
			lo, okLo := fromHex(name[i+3])
			if okHi && okLo {
				b.WriteByte(hi<<4 | lo)
				i += 3
				continue
			}
		}
		b.WriteByte(name[i])
	}
	return b.String()
}

func fromHex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
