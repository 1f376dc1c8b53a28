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
	"encoding/json"
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Format is the syntax of a config file, picked from its extension.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	// FormatJSON also accepts comments and trailing commas, which is how the
	// legacy .conf files are written.
	FormatJSON Format = "json"
)

func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

func unmarshalRaw(format Format, data []byte) (map[string]any, error) {
	raw := map[string]any{}
	var err error
	switch format {
	case FormatTOML:
		err = toml.Unmarshal(data, &raw)
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	case FormatJSON:
		err = json.Unmarshal(jsonc.ToJSON(data), &raw)
	default:
		return nil, fmt.Errorf("unknown config format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s config: %w", format, err)
	}
	return raw, nil
}

var (
	durationType      = reflect.TypeOf(time.Duration(0))
	mountActionType   = reflect.TypeOf(MountAction{})
	commandActionType = reflect.TypeOf(CommandAction{})
)

// actionHook turns the "bool, table or list" action fields into their
// tagged variants while decoding.
func actionHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	switch to {
	case mountActionType:
		return parseMountAction(data)
	case commandActionType:
		return parseCommandAction(data)
	default:
		return data, nil
	}
}

// durationHook accepts plain numbers as seconds, like the legacy config,
// as well as Go duration strings such as "1500ms".
func durationHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.String:
		s := strings.TrimSpace(v.String())
		if d, err := time.ParseDuration(s); err == nil {
			return d, nil
		}
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q", s)
		}
		return secondsToDuration(secs), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return time.Duration(v.Int()) * time.Second, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return time.Duration(v.Uint()) * time.Second, nil //nolint:gosec // small config values
	case reflect.Float32, reflect.Float64:
		return secondsToDuration(v.Float()), nil
	default:
		return data, nil
	}
}

func secondsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}

// decodeValues maps the generic document onto Values, starting from base so
// that missing keys keep their defaults.
func decodeValues(raw map[string]any, base Values) (Values, error) {
	vals := base
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			durationHook,
			actionHook,
		),
		WeaklyTypedInput: true,
		Metadata:         &md,
		Result:           &vals,
	})
	if err != nil {
		return vals, fmt.Errorf("failed to create config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return vals, fmt.Errorf("failed to decode config: %w", err)
	}
	for _, key := range md.Unused {
		log.Warn().Str("key", key).Msg("unknown config key ignored")
	}
	return vals, nil
}
