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

// Package command runs the shell lines produced by mount rules.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog/log"
)

// DefaultShell interprets every command line.
const DefaultShell = "/bin/sh"

// Result is the outcome of a command that was started.
type Result struct {
	Output   string
	ExitCode int
}

// Success reports a zero exit status.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Executor runs a single shell command line. A non-zero exit is reported
// through Result, not as an error; the error is reserved for commands that
// could not be started or were cancelled.
type Executor interface {
	Run(ctx context.Context, line string) (Result, error)
}

// RealExecutor hands the line to a shell and waits for it.
type RealExecutor struct {
	// Shell defaults to DefaultShell.
	Shell string
}

func (e *RealExecutor) Run(ctx context.Context, line string) (Result, error) {
	shell := e.Shell
	if shell == "" {
		shell = DefaultShell
	}

	var out bytes.Buffer
	//nolint:gosec // running configured commands is the job
	cmd := exec.CommandContext(ctx, shell, "-c", line)
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	res := Result{Output: out.String()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	res.ExitCode = -1
	return res, fmt.Errorf("failed to run %q: %w", line, err)
}

// DryRunExecutor logs each line instead of running it and always reports
// success.
type DryRunExecutor struct{}

func (DryRunExecutor) Run(ctx context.Context, line string) (Result, error) {
	log.Ctx(ctx).Info().Str("command", line).Msg("noexecute: would run")
	return Result{}, nil
}
