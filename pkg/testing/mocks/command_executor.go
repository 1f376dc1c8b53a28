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

package mocks

import (
	"context"

	"github.com/ZaparooProject/zaparoo-automount/pkg/helpers/command"
	"github.com/stretchr/testify/mock"
)

// MockCommandExecutor is a testify mock for command.Executor. No command
// given to it is ever started.
//
// Example:
//
//	cmd := &MockCommandExecutor{}
//	cmd.On("Run", mock.Anything, "umount /media/FLASH").Return(command.Result{ExitCode: 32}, nil)
type MockCommandExecutor struct {
	mock.Mock
}

func (m *MockCommandExecutor) Run(ctx context.Context, line string) (command.Result, error) {
	args := m.Called(ctx, line)
	res, _ := args.Get(0).(command.Result)
	//nolint:wrapcheck // mock returns are wrapped by the caller
	return res, args.Error(1)
}

// Lines returns every command line passed to Run, in call order.
func (m *MockCommandExecutor) Lines() []string {
	var lines []string
	for _, call := range m.Calls {
		if call.Method == "Run" {
			lines = append(lines, call.Arguments.String(1))
		}
	}
	return lines
}
