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

package nightcan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noFilterTransport is a mock without hardware acceptance filters
type noFilterTransport struct {
	*MockTransport
}

func (*noFilterTransport) HasCapability(TransportCapability) bool {
	return false
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = New(NewMockTransport(), WithClock(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestOpenValidation(t *testing.T) {
	t.Parallel()

	_, err := Open(nil, NewMockTransport())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	registry := NewRegistry()
	_, err = Open(registry, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.Equal(t, 0, registry.Len(), "failed open leaves the registry empty")
}

func TestOpenStartsTransport(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	transport := NewMockTransport()

	instance, err := Open(registry, transport)
	require.NoError(t, err)
	assert.True(t, transport.Started())
	assert.Same(t, instance, registry.Lookup(transport))
}

func TestOpenPropagatesStartFailure(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	transport := NewMockTransport()
	transport.SetStartError(NewTransportError("start", "mock", ErrTransportSend, ErrorTypePermanent))

	_, err := Open(registry, transport)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start transport")
}

func TestOpenPropagatesRegistryFull(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	for i := 0; i < MaxInstances; i++ {
		_, err := Open(registry, NewMockTransport())
		require.NoError(t, err)
	}

	_, err := Open(registry, NewMockTransport())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRegistryFull)
}

func TestUninitializedOperationsRejected(t *testing.T) {
	t.Parallel()

	instance, err := New(NewMockTransport())
	require.NoError(t, err)

	p := NewPacket(0x100, 10, 8)
	assert.ErrorIs(t, instance.AddTxPacket(p), ErrNotInitialized)
	assert.ErrorIs(t, instance.RemoveTxPacket(p), ErrNotInitialized)
	assert.ErrorIs(t, instance.Periodic(), ErrNotInitialized)
	assert.ErrorIs(t, instance.ConfigureFilter(0, 0x100, 0x7FF), ErrNotInitialized)
}

func TestAddTxPacketValidation(t *testing.T) {
	t.Parallel()

	instance, err := Open(NewRegistry(), NewMockTransport())
	require.NoError(t, err)

	assert.ErrorIs(t, instance.AddTxPacket(nil), ErrInvalidParameter)
}

func TestAddTxPacketOneShot(t *testing.T) {
	t.Parallel()

	transport := NewMockTransport()
	instance, err := Open(NewRegistry(), transport)
	require.NoError(t, err)

	// Interval zero bypasses the schedule entirely.
	p := NewPacket(0x500, 0, 2)
	require.NoError(t, p.SetUint16(0, 0x1234))
	require.NoError(t, instance.AddTxPacket(p))

	assert.Equal(t, 0, instance.ScheduledCount())
	sent := transport.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, uint32(0x500), sent[0].ID)
	assert.Equal(t, byte(0x34), sent[0].Data[0])

	// A one-shot send failure surfaces to the caller.
	transport.FailNextSends(1)
	err = instance.AddTxPacket(p)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransportBusy)
}

func TestAddRemoveTxPacket(t *testing.T) {
	t.Parallel()

	instance, err := Open(NewRegistry(), NewMockTransport())
	require.NoError(t, err)

	p := NewPacket(0x501, 100, 8)
	require.NoError(t, instance.AddTxPacket(p))
	assert.Equal(t, 1, instance.ScheduledCount())

	require.NoError(t, instance.RemoveTxPacket(p))
	assert.Equal(t, 0, instance.ScheduledCount())

	assert.ErrorIs(t, instance.RemoveTxPacket(p), ErrNotFound)
}

func TestPeriodicTick(t *testing.T) {
	t.Parallel()

	clock := NewManualClock(0)
	transport := NewMockTransport()
	instance, err := Open(NewRegistry(), transport, WithClock(clock))
	require.NoError(t, err)

	m := NewReceiveMailbox(0x600, 50, 8)
	instance.AddReceiveMailbox(m)

	p := NewPacket(0x601, 10, 1)
	require.NoError(t, instance.AddTxPacket(p))

	// Nothing due and nothing pending: a quiet tick.
	clock.Advance(5)
	require.NoError(t, instance.Periodic())
	assert.Equal(t, 0, transport.SentCount())

	// The scheduled packet fires once the interval elapses, and a queued
	// frame received in the same tick lands fresh, never timed out.
	transport.QueueFrame(Frame{ID: 0x600, DLC: 1, Data: [8]byte{0x42}})
	clock.Advance(5)
	require.NoError(t, instance.Periodic())
	assert.Equal(t, 1, transport.SentCount())
	assert.True(t, m.Recent())
	assert.False(t, m.TimedOut())
	assert.Equal(t, uint8(0x42), m.Uint8(0, 0))

	// Silence past the receive timeout marks the mailbox stale.
	clock.Advance(51)
	require.NoError(t, instance.Periodic())
	assert.True(t, m.TimedOut())
}

func TestPeriodicSurfacesReceiveFailure(t *testing.T) {
	t.Parallel()

	transport := NewMockTransport()
	instance, err := Open(NewRegistry(), transport)
	require.NoError(t, err)

	require.NoError(t, transport.Close())
	err = instance.Periodic()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransportClosed)
}

func TestConfigureFilter(t *testing.T) {
	t.Parallel()

	transport := NewMockTransport()
	instance, err := Open(NewRegistry(), transport)
	require.NoError(t, err)

	require.NoError(t, instance.ConfigureFilter(0, 0x100, 0x700))
	filters := transport.Filters()
	require.Len(t, filters, 1)
	assert.Equal(t, MockFilter{Bank: 0, ID: 0x100, Mask: 0x700}, filters[0])
}

func TestConfigureFilterNotSupported(t *testing.T) {
	t.Parallel()

	transport := &noFilterTransport{MockTransport: NewMockTransport()}
	instance, err := Open(NewRegistry(), transport)
	require.NoError(t, err)

	err = instance.ConfigureFilter(0, 0x100, 0x700)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotSupported)
	assert.Empty(t, transport.Filters())
}

func TestWithDefaultFilterAppliedAtInit(t *testing.T) {
	t.Parallel()

	transport := NewMockTransport()
	_, err := Open(NewRegistry(), transport,
		WithDefaultFilter(0, 0x100, 0x700),
		WithDefaultFilter(1, 0x200, 0x7F0),
	)
	require.NoError(t, err)

	filters := transport.Filters()
	require.Len(t, filters, 2)
	assert.Equal(t, MockFilter{Bank: 0, ID: 0x100, Mask: 0x700}, filters[0])
	assert.Equal(t, MockFilter{Bank: 1, ID: 0x200, Mask: 0x7F0}, filters[1])

	_, err = New(NewMockTransport(), WithDefaultFilter(-1, 0, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestAddReceiveMailbox(t *testing.T) {
	t.Parallel()

	instance, err := Open(NewRegistry(), NewMockTransport())
	require.NoError(t, err)

	m := NewReceiveMailbox(0x700, 0, 8)
	instance.AddReceiveMailbox(m)
	instance.AddReceiveMailbox(m) // duplicate, silent no-op

	assert.Equal(t, 1, instance.MailboxCount())
	assert.Same(t, m, instance.Mailbox(0x700))
	assert.Nil(t, instance.Mailbox(0x701))
}

func TestClose(t *testing.T) {
	t.Parallel()

	transport := NewMockTransport()
	instance, err := Open(NewRegistry(), transport)
	require.NoError(t, err)

	require.NoError(t, instance.Close())
	assert.ErrorIs(t, instance.Periodic(), ErrNotInitialized)

	// The transport rejects use after close.
	var terr *TransportError
	err = transport.Send(&Frame{ID: 1, DLC: 0})
	require.Error(t, err)
	assert.True(t, errors.As(err, &terr))
}
