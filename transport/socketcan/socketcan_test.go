// go-nightcan
// Copyright (c) 2025 The NightCAN Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-nightcan.
//
// go-nightcan is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-nightcan is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-nightcan; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

//go:build linux

package socketcan

import (
	"testing"

	nightcan "github.com/nightcan/go-nightcan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Exercising actual socket I/O needs a (v)can interface, which CI rarely
// has. These tests cover everything up to the kernel boundary.

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New("")
	require.Error(t, err)
	assert.ErrorIs(t, err, nightcan.ErrInvalidParameter)

	transport, err := New("vcan0")
	require.NoError(t, err)
	assert.Equal(t, nightcan.TransportSocketCAN, transport.Type())
	assert.True(t, transport.HasCapability(nightcan.CapabilityHardwareFilters))
}

func TestUseBeforeStart(t *testing.T) {
	t.Parallel()

	transport, err := New("vcan0")
	require.NoError(t, err)

	sendErr := transport.Send(&nightcan.Frame{ID: 0x100, DLC: 0})
	require.Error(t, sendErr)
	assert.ErrorIs(t, sendErr, nightcan.ErrTransportClosed)

	_, recvErr := transport.Receive()
	require.Error(t, recvErr)
	assert.ErrorIs(t, recvErr, nightcan.ErrTransportClosed)

	assert.NoError(t, transport.Close(), "closing a never-opened transport is a no-op")
}

func TestStartUnknownInterface(t *testing.T) {
	t.Parallel()

	transport, err := New("definitely-not-a-can-interface")
	require.NoError(t, err)

	startErr := transport.Start()
	require.Error(t, startErr)
	assert.Equal(t, nightcan.ErrorTypePermanent, nightcan.GetErrorType(startErr))
}
