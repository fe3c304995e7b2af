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

package slcan

import (
	"testing"
	"time"

	nightcan "github.com/nightcan/go-nightcan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// fakePort is an in-memory serial.Port fed by tests
type fakePort struct {
	rx      []byte
	written []byte
	closed  bool
}

func (p *fakePort) Read(buf []byte) (int, error) {
	if len(p.rx) == 0 {
		return 0, nil // read timeout
	}
	n := copy(buf, p.rx)
	p.rx = p.rx[n:]
	return n, nil
}

func (p *fakePort) Write(buf []byte) (int, error) {
	p.written = append(p.written, buf...)
	return len(buf), nil
}

func (p *fakePort) Close() error                                       { p.closed = true; return nil }
func (*fakePort) SetMode(*serial.Mode) error                           { return nil }
func (*fakePort) Drain() error                                         { return nil }
func (*fakePort) ResetInputBuffer() error                              { return nil }
func (*fakePort) ResetOutputBuffer() error                             { return nil }
func (*fakePort) SetDTR(bool) error                                    { return nil }
func (*fakePort) SetRTS(bool) error                                    { return nil }
func (*fakePort) GetModemStatusBits() (*serial.ModemStatusBits, error) { return nil, nil }
func (*fakePort) SetReadTimeout(time.Duration) error                   { return nil }
func (*fakePort) Break(time.Duration) error                            { return nil }

func newTestTransport(t *testing.T, opts ...Option) (*Transport, *fakePort) {
	t.Helper()
	port := &fakePort{}
	transport, err := newWithPort(port, "/dev/ttyTEST", opts...)
	require.NoError(t, err)
	return transport, port
}

func TestStartSequence(t *testing.T) {
	t.Parallel()

	transport, port := newTestTransport(t, WithBitrate(250000))
	require.NoError(t, transport.Start())

	// Close, set bitrate, open.
	assert.Equal(t, "C\rS5\rO\r", string(port.written))
}

func TestStartDefaultBitrate(t *testing.T) {
	t.Parallel()

	transport, port := newTestTransport(t)
	require.NoError(t, transport.Start())
	assert.Contains(t, string(port.written), "S6\r", "defaults to 500k")
}

func TestBitrateValidation(t *testing.T) {
	t.Parallel()

	_, err := newWithPort(&fakePort{}, "/dev/ttyTEST", WithBitrate(333000))
	require.Error(t, err)
	assert.ErrorIs(t, err, nightcan.ErrInvalidParameter)

	_, err = newWithPort(&fakePort{}, "/dev/ttyTEST", WithBaudRate(0))
	require.Error(t, err)
	assert.ErrorIs(t, err, nightcan.ErrInvalidParameter)
}

func TestSendEncoding(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		frame nightcan.Frame
		want  string
	}{
		{
			name:  "standard data frame",
			frame: nightcan.Frame{ID: 0x123, DLC: 2, Data: [8]byte{0xAB, 0x05}},
			want:  "t1232ab05\r",
		},
		{
			name:  "short id is zero padded",
			frame: nightcan.Frame{ID: 0x5, DLC: 1, Data: [8]byte{0xFF}},
			want:  "t0051ff\r",
		},
		{
			name:  "extended data frame",
			frame: nightcan.Frame{ID: 0x18DAF110, Extended: true, DLC: 1, Data: [8]byte{0x42}},
			want:  "T18daf110142\r",
		},
		{
			name:  "standard remote frame carries no payload",
			frame: nightcan.Frame{ID: 0x456, RTR: true, DLC: 4},
			want:  "r4564\r",
		},
		{
			name:  "extended remote frame",
			frame: nightcan.Frame{ID: 0x1FFFFFFF, Extended: true, RTR: true, DLC: 0},
			want:  "R1fffffff0\r",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			transport, port := newTestTransport(t)
			require.NoError(t, transport.Send(&tt.frame))
			assert.Equal(t, tt.want, string(port.written))
		})
	}
}

func TestSendRejectsInvalidFrame(t *testing.T) {
	t.Parallel()

	transport, port := newTestTransport(t)
	err := transport.Send(&nightcan.Frame{ID: 0x800, DLC: 0})
	require.Error(t, err)
	assert.ErrorIs(t, err, nightcan.ErrInvalidParameter)
	assert.Empty(t, port.written)
}

func TestReceiveParsing(t *testing.T) {
	t.Parallel()

	transport, port := newTestTransport(t)
	port.rx = []byte("t1232ab05\rT18daf110142\rr4564\r")

	f, err := transport.Receive()
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, uint32(0x123), f.ID)
	assert.False(t, f.Extended)
	assert.Equal(t, uint8(2), f.DLC)
	assert.Equal(t, [8]byte{0xAB, 0x05}, f.Data)

	f, err = transport.Receive()
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, uint32(0x18DAF110), f.ID)
	assert.True(t, f.Extended)
	assert.Equal(t, uint8(1), f.DLC)
	assert.Equal(t, byte(0x42), f.Data[0])

	f, err = transport.Receive()
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, uint32(0x456), f.ID)
	assert.True(t, f.RTR)
	assert.Equal(t, uint8(4), f.DLC)

	// Drained.
	f, err = transport.Receive()
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestReceiveReassemblesPartialRecords(t *testing.T) {
	t.Parallel()

	transport, port := newTestTransport(t)

	// First read delivers half a record: nothing to return yet.
	port.rx = []byte("t1232a")
	f, err := transport.Receive()
	require.NoError(t, err)
	assert.Nil(t, f)

	// The rest arrives on the next tick.
	port.rx = []byte("b05\r")
	f, err = transport.Receive()
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, uint32(0x123), f.ID)
	assert.Equal(t, [8]byte{0xAB, 0x05}, f.Data)
}

func TestReceiveSkipsAcksAndJunk(t *testing.T) {
	t.Parallel()

	transport, port := newTestTransport(t)
	port.rx = []byte("\rz\r\at7FF1aa\rXnonsense\r")

	f, err := transport.Receive()
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, uint32(0x7FF), f.ID)
	assert.Equal(t, byte(0xAA), f.Data[0])

	f, err = transport.Receive()
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestReceiveDropsMalformedRecords(t *testing.T) {
	t.Parallel()

	transport, port := newTestTransport(t)
	// Bad dlc digit, bad hex payload, then a good frame.
	port.rx = []byte("t123X\rt1231zz\rt1231ff\r")

	f, err := transport.Receive()
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, byte(0xFF), f.Data[0])
}

func TestCloseSendsChannelClose(t *testing.T) {
	t.Parallel()

	transport, port := newTestTransport(t)
	require.NoError(t, transport.Close())
	assert.Equal(t, "C\r", string(port.written))
	assert.True(t, port.closed)
}

func TestNoHardwareFilters(t *testing.T) {
	t.Parallel()

	transport, _ := newTestTransport(t)
	assert.False(t, transport.HasCapability(nightcan.CapabilityHardwareFilters))

	err := transport.ConfigureFilter(0, 0x100, 0x700)
	require.Error(t, err)
	assert.ErrorIs(t, err, nightcan.ErrNotSupported)
}

func TestType(t *testing.T) {
	t.Parallel()

	transport, _ := newTestTransport(t)
	assert.Equal(t, nightcan.TransportSLCAN, transport.Type())
}
