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

package config

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-viper/mapstructure/v2"
)

// ActionKind tags how an action field was written in the config file.
type ActionKind int

const (
	// ActionDisabled is an absent or false action field.
	ActionDisabled ActionKind = iota
	// ActionSingle is a single value (true, a table or a string).
	ActionSingle
	// ActionList is an ordered list of values.
	ActionList
)

func (k ActionKind) String() string {
	switch k {
	case ActionDisabled:
		return "disabled"
	case ActionSingle:
		return "single"
	case ActionList:
		return "list"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
}

// MountSpec is one mount instruction. Empty fields fall back to a generated
// mountpoint and the default mount options.
type MountSpec struct {
	Mountpoint string `mapstructure:"mountpoint" json:"mountpoint,omitempty"`
	Options    string `mapstructure:"options" json:"options,omitempty"`
}

type MountAction struct {
	Specs []MountSpec `json:"specs,omitempty"`
	Kind  ActionKind  `json:"kind"`
}

func (a MountAction) Enabled() bool {
	return a.Kind != ActionDisabled && len(a.Specs) > 0
}

// CommandAction holds shell commands (or script paths) run in order.
type CommandAction struct {
	Commands []string   `json:"commands,omitempty"`
	Kind     ActionKind `json:"kind"`
}

func (a CommandAction) Enabled() bool {
	return a.Kind != ActionDisabled && len(a.Commands) > 0
}

// Rule pairs a partition predicate with the actions taken on a match.
// Predicates are checked in the order UUID, Label, LabelRegex.
type Rule struct {
	labelRe    *regexp.Regexp
	UUID       string        `mapstructure:"uuid" json:"uuid,omitempty"`
	Label      string        `mapstructure:"label" json:"label,omitempty"`
	LabelRegex string        `mapstructure:"label_regex" json:"label_regex,omitempty"`
	Command    CommandAction `mapstructure:"command" json:"command"`
	Script     CommandAction `mapstructure:"script" json:"script"`
	Umount     CommandAction `mapstructure:"umount" json:"umount"`
	Mount      MountAction   `mapstructure:"mount" json:"mount"`
	inert      bool
}

var errInertRule = errors.New("rule disabled")

// Compile prepares the label_regex predicate. The pattern only has to match
// at the start of the label. A rule whose pattern does not compile is
// marked inert and never matches.
func (r *Rule) Compile() error {
	r.labelRe = nil
	r.inert = false
	if r.LabelRegex == "" {
		return nil
	}
	re, err := regexp.Compile("^(?:" + r.LabelRegex + ")")
	if err != nil {
		r.inert = true
		return fmt.Errorf("%w: invalid label_regex %q: %w", errInertRule, r.LabelRegex, err)
	}
	r.labelRe = re
	return nil
}

// LabelPattern is the compiled label_regex, nil when unset or invalid.
func (r Rule) LabelPattern() *regexp.Regexp {
	return r.labelRe
}

// Inert reports whether the rule was disabled by a configuration defect.
func (r Rule) Inert() bool {
	return r.inert
}

func (r Rule) HasPredicate() bool {
	return r.UUID != "" || r.Label != "" || r.LabelRegex != ""
}

func (r Rule) HasActions() bool {
	return r.Mount.Enabled() || r.Command.Enabled() || r.Script.Enabled() || r.Umount.Enabled()
}

// Describe is a short human readable form of the rule's predicate.
func (r Rule) Describe() string {
	switch {
	case r.UUID != "":
		return "uuid=" + r.UUID
	case r.Label != "":
		return "label=" + r.Label
	case r.LabelRegex != "":
		return "label_regex=" + r.LabelRegex
	default:
		return "default"
	}
}

func parseMountAction(data any) (MountAction, error) {
	switch v := data.(type) {
	case nil:
		return MountAction{}, nil
	case bool:
		if !v {
			return MountAction{}, nil
		}
		return MountAction{Kind: ActionSingle, Specs: []MountSpec{{}}}, nil
	case map[string]any:
		spec, err := parseMountSpec(v)
		if err != nil {
			return MountAction{}, err
		}
		return MountAction{Kind: ActionSingle, Specs: []MountSpec{spec}}, nil
	case []any:
		specs := make([]MountSpec, 0, len(v))
		for i, item := range v {
			switch item := item.(type) {
			case bool:
				if item {
					specs = append(specs, MountSpec{})
				}
			case map[string]any:
				spec, err := parseMountSpec(item)
				if err != nil {
					return MountAction{}, fmt.Errorf("mount list entry %d: %w", i, err)
				}
				specs = append(specs, spec)
			default:
				return MountAction{}, fmt.Errorf("mount list entry %d: unsupported type %T", i, item)
			}
		}
		if len(specs) == 0 {
			return MountAction{}, nil
		}
		return MountAction{Kind: ActionList, Specs: specs}, nil
	default:
		return MountAction{}, fmt.Errorf("mount: unsupported type %T", data)
	}
}

func parseMountSpec(m map[string]any) (MountSpec, error) {
	var spec MountSpec
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &spec,
	})
	if err != nil {
		return spec, fmt.Errorf("failed to create mount spec decoder: %w", err)
	}
	if err := decoder.Decode(m); err != nil {
		return spec, fmt.Errorf("invalid mount spec: %w", err)
	}
	return spec, nil
}

func parseCommandAction(data any) (CommandAction, error) {
	switch v := data.(type) {
	case nil:
		return CommandAction{}, nil
	case bool:
		if v {
			return CommandAction{}, errors.New("command: true is not a command")
		}
		return CommandAction{}, nil
	case string:
		if v == "" {
			return CommandAction{}, nil
		}
		return CommandAction{Kind: ActionSingle, Commands: []string{v}}, nil
	case []string:
		return commandList(v), nil
	case []any:
		cmds := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return CommandAction{}, fmt.Errorf("command list entry %d: unsupported type %T", i, item)
			}
			cmds = append(cmds, s)
		}
		return commandList(cmds), nil
	default:
		return CommandAction{}, fmt.Errorf("command: unsupported type %T", data)
	}
}

func commandList(cmds []string) CommandAction {
	out := make([]string, 0, len(cmds))
	for _, c := range cmds {
		if c != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return CommandAction{}
	}
	return CommandAction{Kind: ActionList, Commands: out}
}
