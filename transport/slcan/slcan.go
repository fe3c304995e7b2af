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

// Package slcan provides a serial-line CAN (LAWICEL SLCAN) transport for
// USB CAN adapters such as CANable and USBtin
package slcan

import (
	"fmt"
	"strconv"
	"time"

	nightcan "github.com/nightcan/go-nightcan"
	"go.bug.st/serial"
)

const (
	defaultBaudRate = 115200
	defaultBitrate  = 500000

	// readChunkSize bounds one serial read per Receive call.
	readChunkSize = 256

	// maxLineLength is the longest valid SLCAN record: 'T' + 8 id digits +
	// dlc digit + 16 data digits + CR. Anything longer is garbage.
	maxLineLength = 27
)

// bitrateCode maps a CAN bitrate in bit/s to the adapter's Sn setup command
var bitrateCode = map[int]byte{
	10000:   '0',
	20000:   '1',
	50000:   '2',
	100000:  '3',
	125000:  '4',
	250000:  '5',
	500000:  '6',
	800000:  '7',
	1000000: '8',
}

// Transport implements the nightcan.Transport interface over an SLCAN
// serial adapter
type Transport struct {
	port     serial.Port
	portName string
	partial  []byte
	pending  []nightcan.Frame
	baudRate int
	bitrate  int
}

// Option configures the transport
type Option func(*Transport) error

// WithBitrate sets the CAN bus bitrate in bit/s. The adapter only accepts
// the standard LAWICEL rates (10k to 1M).
func WithBitrate(bitrate int) Option {
	return func(t *Transport) error {
		if _, ok := bitrateCode[bitrate]; !ok {
			return fmt.Errorf("unsupported bitrate %d: %w", bitrate, nightcan.ErrInvalidParameter)
		}
		t.bitrate = bitrate
		return nil
	}
}

// WithBaudRate sets the serial line baud rate. USB CDC adapters ignore it;
// real UART bridges need it to match
func WithBaudRate(baud int) Option {
	return func(t *Transport) error {
		if baud <= 0 {
			return fmt.Errorf("invalid baud rate %d: %w", baud, nightcan.ErrInvalidParameter)
		}
		t.baudRate = baud
		return nil
	}
}

// New creates an SLCAN transport on the given serial port
func New(portName string, opts ...Option) (*Transport, error) {
	transport := &Transport{
		portName: portName,
		baudRate: defaultBaudRate,
		bitrate:  defaultBitrate,
	}

	for _, opt := range opts {
		if err := opt(transport); err != nil {
			return nil, err
		}
	}

	port, err := serial.Open(portName, &serial.Mode{BaudRate: transport.baudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	transport.port = port

	return transport, nil
}

// newWithPort wires a transport to an already-open port. Used by tests.
func newWithPort(port serial.Port, portName string, opts ...Option) (*Transport, error) {
	transport := &Transport{
		port:     port,
		portName: portName,
		baudRate: defaultBaudRate,
		bitrate:  defaultBitrate,
	}

	for _, opt := range opts {
		if err := opt(transport); err != nil {
			return nil, err
		}
	}

	return transport, nil
}

// Start configures the adapter's bitrate and opens the CAN channel
func (t *Transport) Start() error {
	// Serial reads must not block the Periodic tick.
	if err := t.port.SetReadTimeout(time.Millisecond); err != nil {
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	// Close a possibly open channel first; the adapter rejects Sn while open.
	_, _ = t.port.Write([]byte("C\r"))
	if err := t.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("failed to flush serial input: %w", err)
	}

	setup := []byte{'S', bitrateCode[t.bitrate], '\r'}
	if _, err := t.port.Write(setup); err != nil {
		return nightcan.NewTransportError("start", t.portName,
			fmt.Errorf("bitrate setup: %w", err), nightcan.ErrorTypePermanent)
	}

	if _, err := t.port.Write([]byte("O\r")); err != nil {
		return nightcan.NewTransportError("start", t.portName,
			fmt.Errorf("channel open: %w", err), nightcan.ErrorTypePermanent)
	}

	return nil
}

// Send encodes one frame as an ASCII SLCAN record and writes it to the
// adapter
func (t *Transport) Send(f *nightcan.Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}

	record := encodeFrame(f)
	n, err := t.port.Write(record)
	if err != nil {
		return nightcan.NewTransportError("send", t.portName, err, nightcan.ErrorTypeTransient)
	}
	if n < len(record) {
		return nightcan.NewBusyError("send", t.portName)
	}

	return nil
}

// Receive reads whatever the adapter has buffered, parses complete records
// and returns the oldest pending frame. Returns (nil, nil) once drained.
func (t *Transport) Receive() (*nightcan.Frame, error) {
	if len(t.pending) == 0 {
		if err := t.fill(); err != nil {
			return nil, err
		}
	}

	if len(t.pending) == 0 {
		return nil, nil
	}

	f := t.pending[0]
	t.pending = t.pending[1:]
	return &f, nil
}

// fill performs one bounded serial read and parses complete records out of
// the accumulated partial buffer
func (t *Transport) fill() error {
	buf := make([]byte, readChunkSize)
	n, err := t.port.Read(buf)
	if err != nil {
		return nightcan.NewTransportError("receive", t.portName, err, nightcan.ErrorTypeTransient)
	}
	if n == 0 {
		return nil
	}

	t.partial = append(t.partial, buf[:n]...)

	for {
		line, rest, ok := splitRecord(t.partial)
		if !ok {
			break
		}
		t.partial = rest

		if f, parseErr := parseRecord(line); parseErr == nil && f != nil {
			t.pending = append(t.pending, *f)
		}
		// Malformed records and command acks ('\r', '\a', 'z', 'Z') are
		// dropped silently, matching adapter behavior on a noisy bus.
	}

	// A partial buffer longer than any valid record is desynchronized junk.
	if len(t.partial) > maxLineLength {
		t.partial = t.partial[:0]
	}

	return nil
}

// splitRecord cuts the first CR-terminated record off buf
func splitRecord(buf []byte) (line, rest []byte, ok bool) {
	for i, b := range buf {
		if b == '\r' || b == '\a' {
			return buf[:i], buf[i+1:], true
		}
	}
	return nil, buf, false
}

// parseRecord decodes one SLCAN record. Returns (nil, nil) for non-frame
// records such as command acks.
func parseRecord(line []byte) (*nightcan.Frame, error) {
	if len(line) == 0 {
		return nil, nil
	}

	var (
		extended bool
		rtr      bool
		idLen    int
	)
	switch line[0] {
	case 't':
		idLen = 3
	case 'T':
		extended = true
		idLen = 8
	case 'r':
		rtr = true
		idLen = 3
	case 'R':
		extended = true
		rtr = true
		idLen = 8
	default:
		return nil, nil
	}

	if len(line) < 1+idLen+1 {
		return nil, fmt.Errorf("truncated record %q: %w", line, nightcan.ErrInvalidParameter)
	}

	id, err := strconv.ParseUint(string(line[1:1+idLen]), 16, 32)
	if err != nil {
		return nil, fmt.Errorf("bad identifier in %q: %w", line, nightcan.ErrInvalidParameter)
	}

	dlc := int(line[1+idLen] - '0')
	if dlc < 0 || dlc > 8 {
		return nil, fmt.Errorf("bad dlc in %q: %w", line, nightcan.ErrInvalidParameter)
	}

	f := &nightcan.Frame{
		ID:       uint32(id),
		Extended: extended,
		RTR:      rtr,
		DLC:      uint8(dlc),
	}

	if rtr {
		return f, nil
	}

	data := line[1+idLen+1:]
	if len(data) < dlc*2 {
		return nil, fmt.Errorf("short payload in %q: %w", line, nightcan.ErrInvalidParameter)
	}
	for i := 0; i < dlc; i++ {
		b, parseErr := strconv.ParseUint(string(data[i*2:i*2+2]), 16, 8)
		if parseErr != nil {
			return nil, fmt.Errorf("bad payload in %q: %w", line, nightcan.ErrInvalidParameter)
		}
		f.Data[i] = byte(b)
	}

	return f, nil
}

// encodeFrame renders a frame as an ASCII SLCAN record
func encodeFrame(f *nightcan.Frame) []byte {
	var kind byte
	idLen := 3
	switch {
	case f.Extended && f.RTR:
		kind = 'R'
		idLen = 8
	case f.Extended:
		kind = 'T'
		idLen = 8
	case f.RTR:
		kind = 'r'
	default:
		kind = 't'
	}

	record := make([]byte, 0, maxLineLength)
	record = append(record, kind)

	idHex := strconv.FormatUint(uint64(f.ID), 16)
	for pad := idLen - len(idHex); pad > 0; pad-- {
		record = append(record, '0')
	}
	record = append(record, []byte(idHex)...)
	record = append(record, '0'+f.DLC)

	if !f.RTR {
		const hexDigits = "0123456789abcdef"
		for i := uint8(0); i < f.DLC; i++ {
			record = append(record, hexDigits[f.Data[i]>>4], hexDigits[f.Data[i]&0x0F])
		}
	}

	return append(record, '\r')
}

// ConfigureFilter is not supported: SLCAN adapters filter on the host side
func (t *Transport) ConfigureFilter(int, uint32, uint32) error {
	return fmt.Errorf("slcan acceptance filters: %w", nightcan.ErrNotSupported)
}

// HasCapability reports the transport's capabilities
func (*Transport) HasCapability(nightcan.TransportCapability) bool {
	return false
}

// Close closes the CAN channel and the serial port
func (t *Transport) Close() error {
	_, _ = t.port.Write([]byte("C\r"))
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() nightcan.TransportType {
	return nightcan.TransportSLCAN
}

// Ensure Transport implements nightcan.Transport
var _ nightcan.Transport = (*Transport)(nil)
var _ nightcan.TransportCapabilityChecker = (*Transport)(nil)
