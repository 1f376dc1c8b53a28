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

// Package rules decides which configured rule applies to a partition.
package rules

import (
	"github.com/ZaparooProject/zaparoo-automount/pkg/config"
	"github.com/ZaparooProject/zaparoo-automount/pkg/partitions"
)

// Matches reports whether rule r selects partition p. The UUID predicate
// is checked first, then the exact label, then the label regex. A UUID
// that differs does not stop the label checks, so a rule carrying both
// matches on either. Label predicates never match an unlabelled partition.
func Matches(p partitions.Partition, r config.Rule) bool {
	if r.Inert() {
		return false
	}
	if r.UUID != "" && r.UUID == p.UUID {
		return true
	}
	if !p.HasLabel() {
		return false
	}
	if r.Label != "" && r.Label == p.Label {
		return true
	}
	if re := r.LabelPattern(); re != nil {
		return re.MatchString(p.Label)
	}
	return false
}

// First returns the first rule in list that matches p.
func First(p partitions.Partition, list []config.Rule) (config.Rule, bool) {
	for _, r := range list {
		if Matches(p, r) {
			return r, true
		}
	}
	return config.Rule{}, false
}
