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

package rules

import (
	"testing"

	"github.com/ZaparooProject/zaparoo-automount/pkg/config"
	"github.com/ZaparooProject/zaparoo-automount/pkg/partitions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compiled(t *testing.T, r config.Rule) config.Rule {
	t.Helper()
	_ = r.Compile()
	return r
}

func TestMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		part partitions.Partition
		rule config.Rule
		want bool
	}{
		{
			name: "uuid match",
			part: partitions.Partition{UUID: "1234-ABCD"},
			rule: config.Rule{UUID: "1234-ABCD"},
			want: true,
		},
		{
			name: "uuid mismatch falls through to label",
			part: partitions.Partition{UUID: "1234-ABCD", Label: "FLASH"},
			rule: config.Rule{UUID: "9999-0000", Label: "FLASH"},
			want: true,
		},
		{
			name: "uuid only rule mismatch",
			part: partitions.Partition{UUID: "1234-ABCD", Label: "FLASH"},
			rule: config.Rule{UUID: "9999-0000"},
			want: false,
		},
		{
			name: "exact label",
			part: partitions.Partition{UUID: "u", Label: "FLASH"},
			rule: config.Rule{Label: "FLASH"},
			want: true,
		},
		{
			name: "label is case sensitive",
			part: partitions.Partition{UUID: "u", Label: "flash"},
			rule: config.Rule{Label: "FLASH"},
			want: false,
		},
		{
			name: "label rule ignores unlabelled partition",
			part: partitions.Partition{UUID: "u"},
			rule: config.Rule{Label: "FLASH"},
			want: false,
		},
		{
			name: "regex matches at start",
			part: partitions.Partition{UUID: "u", Label: "CAMERA01"},
			rule: config.Rule{LabelRegex: "CAM"},
			want: true,
		},
		{
			name: "regex does not search mid string",
			part: partitions.Partition{UUID: "u", Label: "MYCAMERA"},
			rule: config.Rule{LabelRegex: "CAM"},
			want: false,
		},
		{
			name: "regex need not match whole label",
			part: partitions.Partition{UUID: "u", Label: "BACKUP 2024"},
			rule: config.Rule{LabelRegex: `BACKUP \d`},
			want: true,
		},
		{
			name: "regex alternation stays anchored",
			part: partitions.Partition{UUID: "u", Label: "XB"},
			rule: config.Rule{LabelRegex: "A|B"},
			want: false,
		},
		{
			name: "regex ignores unlabelled partition",
			part: partitions.Partition{UUID: "u"},
			rule: config.Rule{LabelRegex: ".*"},
			want: false,
		},
		{
			name: "label mismatch then regex",
			part: partitions.Partition{UUID: "u", Label: "DATA"},
			rule: config.Rule{Label: "OTHER", LabelRegex: "DA"},
			want: true,
		},
		{
			name: "no predicate never matches",
			part: partitions.Partition{UUID: "u", Label: "DATA"},
			rule: config.Rule{},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Matches(tt.part, compiled(t, tt.rule)))
		})
	}
}

func TestMatches_InertRule(t *testing.T) {
	t.Parallel()

	r := config.Rule{UUID: "1234-ABCD", LabelRegex: "(["}
	require.Error(t, r.Compile())
	assert.True(t, r.Inert())

	assert.False(t, Matches(partitions.Partition{UUID: "1234-ABCD", Label: "X"}, r))
}

func TestFirst(t *testing.T) {
	t.Parallel()

	list := []config.Rule{
		compiled(t, config.Rule{Label: "OTHER", Command: config.CommandAction{
			Kind: config.ActionSingle, Commands: []string{"a"},
		}}),
		compiled(t, config.Rule{LabelRegex: "FL", Command: config.CommandAction{
			Kind: config.ActionSingle, Commands: []string{"b"},
		}}),
		compiled(t, config.Rule{Label: "FLASH", Command: config.CommandAction{
			Kind: config.ActionSingle, Commands: []string{"c"},
		}}),
	}

	got, ok := First(partitions.Partition{UUID: "u", Label: "FLASH"}, list)
	require.True(t, ok)
	assert.Equal(t, []string{"b"}, got.Command.Commands, "earliest matching rule wins")

	_, ok = First(partitions.Partition{UUID: "u", Label: "NOPE"}, list)
	assert.False(t, ok)

	_, ok = First(partitions.Partition{UUID: "u"}, nil)
	assert.False(t, ok)
}
