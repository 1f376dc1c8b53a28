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

package helpers

import (
	"github.com/ZaparooProject/zaparoo-automount/pkg/helpers/command"
	"github.com/ZaparooProject/zaparoo-automount/pkg/testing/mocks"
	"github.com/stretchr/testify/mock"
)

// NewMockCommandExecutor creates a MockCommandExecutor on which every
// command succeeds unless a test adds a more specific expectation first:
//
//	cmd := &mocks.MockCommandExecutor{}
//	cmd.On("Run", mock.Anything, "umount /media/FLASH").Return(command.Result{ExitCode: 32}, nil)
//	cmd.On("Run", mock.Anything, mock.Anything).Return(command.Result{}, nil)
func NewMockCommandExecutor() *mocks.MockCommandExecutor {
	cmd := &mocks.MockCommandExecutor{}
	cmd.On("Run", mock.Anything, mock.AnythingOfType("string")).Return(command.Result{}, nil).Maybe()
	return cmd
}
