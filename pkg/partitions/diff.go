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

// Compare returns the partitions present in current but not in previous
// (attached) and those present in previous but not in current (detached).
// UUID is the only key: path or label changes alone are not events. Neither
// input is modified and each UUID appears at most once in the output.
func Compare(current, previous []Partition) (attached, detached []Partition) {
	currentIDs := uuidSet(current)
	previousIDs := uuidSet(previous)

	attached = missingFrom(current, previousIDs)
	detached = missingFrom(previous, currentIDs)
	return attached, detached
}

func uuidSet(parts []Partition) map[string]struct{} {
	set := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		set[p.UUID] = struct{}{}
	}
	return set
}

func missingFrom(parts []Partition, other map[string]struct{}) []Partition {
	var out []Partition
	seen := make(map[string]struct{})
	for _, p := range parts {
		if _, ok := other[p.UUID]; ok {
			continue
		}
		if _, dup := seen[p.UUID]; dup {
			continue
		}
		seen[p.UUID] = struct{}{}
		out = append(out, p)
	}
	return out
}
