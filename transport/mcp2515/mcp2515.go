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

// Package mcp2515 provides an SPI transport for the Microchip MCP2515
// standalone CAN controller, assuming a 16 MHz oscillator
package mcp2515

import (
	"fmt"
	"time"

	nightcan "github.com/nightcan/go-nightcan"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// SPI instruction set.
const (
	cmdReset      = 0xC0
	cmdRead       = 0x03
	cmdWrite      = 0x02
	cmdBitModify  = 0x05
	cmdReadStatus = 0xA0
	cmdReadRxBuf  = 0x90 // | (buffer << 2)
	cmdLoadTxBuf  = 0x40 // | buffer
	cmdRTS        = 0x80 // | (1 << buffer)
)

// Register map.
const (
	regRXF0SIDH = 0x00
	regRXM0SIDH = 0x20
	regCNF3     = 0x28
	regCANINTE  = 0x2B
	regCANINTF  = 0x2C
	regCANCTRL  = 0x0F
	regCANSTAT  = 0x0E
	regTXB0CTRL = 0x30
	regRXB0CTRL = 0x60
	regRXB1CTRL = 0x70
)

// Register bits.
const (
	bitTXREQ = 1 << 3 // TXBnCTRL: transmission pending
	bitEXIDE = 1 << 3 // TXBnSIDL: extended identifier
	bitIDE   = 1 << 3 // RXBnSIDL: received extended identifier
	bitSRR   = 1 << 4 // RXBnSIDL: standard remote request
	bitRTRTX = 1 << 6 // TXBnDLC/RXBnDLC: remote frame
	bitBUKT  = 1 << 2 // RXB0CTRL: rollover into RXB1

	intRX0IE = 1 << 0 // CANINTE/CANINTF
	intRX1IE = 1 << 1

	modeMask   = 0xE0 // CANCTRL/CANSTAT REQOP/OPMOD field
	modeConfig = 0x80
	modeNormal = 0x00
)

// Read-status response bits.
const (
	statusRX0Full = 1 << 0
	statusRX1Full = 1 << 1
)

const (
	defaultBitrate = 500000
	maxSpeed       = 10 * physic.MegaHertz
)

// cnf holds the three bit-timing registers for one bitrate
type cnf struct {
	cnf1, cnf2, cnf3 byte
}

// bitTimings maps a bitrate in bit/s to CNF values for a 16 MHz oscillator
var bitTimings = map[int]cnf{
	125000:  {cnf1: 0x03, cnf2: 0xF0, cnf3: 0x86},
	250000:  {cnf1: 0x41, cnf2: 0xF1, cnf3: 0x85},
	500000:  {cnf1: 0x00, cnf2: 0xF0, cnf3: 0x86},
	1000000: {cnf1: 0x00, cnf2: 0xD0, cnf3: 0x82},
}

// filterAddr maps a filter bank to its RXFnSIDH register. Banks 0 and 1
// pair with mask RXM0 (buffer 0); banks 2 through 5 pair with RXM1.
var filterAddr = [6]byte{0x00, 0x04, 0x08, 0x10, 0x14, 0x18}

// Transport implements the nightcan.Transport interface over an SPI-attached
// MCP2515
type Transport struct {
	conn    spi.Conn
	port    spi.PortCloser
	busName string
	bitrate int
}

// Option configures the transport
type Option func(*Transport) error

// WithBitrate sets the CAN bus bitrate in bit/s. Only rates with a known
// 16 MHz bit timing are accepted.
func WithBitrate(bitrate int) Option {
	return func(t *Transport) error {
		if _, ok := bitTimings[bitrate]; !ok {
			return fmt.Errorf("unsupported bitrate %d: %w", bitrate, nightcan.ErrInvalidParameter)
		}
		t.bitrate = bitrate
		return nil
	}
}

// New creates an MCP2515 transport on the given SPI port (e.g. "SPI0.0")
func New(portName string, opts ...Option) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", portName, err)
	}

	conn, err := port.Connect(maxSpeed, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to connect to MCP2515 on %s: %w", portName, err)
	}

	transport := &Transport{
		conn:    conn,
		port:    port,
		busName: portName,
		bitrate: defaultBitrate,
	}

	for _, opt := range opts {
		if err := opt(transport); err != nil {
			_ = port.Close()
			return nil, err
		}
	}

	return transport, nil
}

// newWithConn wires a transport to an already-connected SPI device. Used by
// tests.
func newWithConn(conn spi.Conn, busName string, opts ...Option) (*Transport, error) {
	transport := &Transport{
		conn:    conn,
		busName: busName,
		bitrate: defaultBitrate,
	}

	for _, opt := range opts {
		if err := opt(transport); err != nil {
			return nil, err
		}
	}

	return transport, nil
}

// Start resets the controller, programs the bit timing and interrupt mask,
// and brings it into normal operation
func (t *Transport) Start() error {
	if err := t.conn.Tx([]byte{cmdReset}, nil); err != nil {
		return nightcan.NewTransportError("start", t.busName,
			fmt.Errorf("reset: %w", err), nightcan.ErrorTypePermanent)
	}
	// The controller needs a moment to come out of reset; it lands in
	// configuration mode.
	time.Sleep(10 * time.Millisecond)

	timing := bitTimings[t.bitrate]
	// CNF3, CNF2 and CNF1 are consecutive, so one sequential write covers
	// all three.
	if err := t.writeRegisters(regCNF3, timing.cnf3, timing.cnf2, timing.cnf1); err != nil {
		return fmt.Errorf("bit timing setup: %w", err)
	}

	if err := t.writeRegisters(regCANINTE, intRX0IE|intRX1IE); err != nil {
		return fmt.Errorf("interrupt enable: %w", err)
	}

	// RXM bits stay zero so acceptance filters apply; the masks reset to
	// zero, which accepts everything until a filter is configured.
	if err := t.writeRegisters(regRXB0CTRL, bitBUKT); err != nil {
		return fmt.Errorf("rx buffer 0 setup: %w", err)
	}
	if err := t.writeRegisters(regRXB1CTRL, 0x00); err != nil {
		return fmt.Errorf("rx buffer 1 setup: %w", err)
	}

	if err := t.setMode(modeNormal); err != nil {
		return fmt.Errorf("enter normal mode: %w", err)
	}

	return nil
}

// Send loads TXB0 and requests transmission. Returns a busy error while a
// previous transmission is still pending.
func (t *Transport) Send(f *nightcan.Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}

	ctrl, err := t.readRegister(regTXB0CTRL)
	if err != nil {
		return nightcan.NewTransportError("send", t.busName, err, nightcan.ErrorTypeTransient)
	}
	if ctrl&bitTXREQ != 0 {
		return nightcan.NewBusyError("send", t.busName)
	}

	buf := make([]byte, 0, 14)
	buf = append(buf, cmdLoadTxBuf)
	buf = append(buf, encodeID(f)...)

	dlc := f.DLC
	if f.RTR {
		dlc |= bitRTRTX
	}
	buf = append(buf, dlc)
	buf = append(buf, f.Data[:]...)

	if err := t.conn.Tx(buf, nil); err != nil {
		return nightcan.NewTransportError("send", t.busName,
			fmt.Errorf("load tx buffer: %w", err), nightcan.ErrorTypeTransient)
	}

	if err := t.conn.Tx([]byte{cmdRTS | 1}, nil); err != nil {
		return nightcan.NewTransportError("send", t.busName,
			fmt.Errorf("request to send: %w", err), nightcan.ErrorTypeTransient)
	}

	return nil
}

// Receive reads one pending frame from RXB0 or RXB1, or returns (nil, nil)
// when both buffers are empty
func (t *Transport) Receive() (*nightcan.Frame, error) {
	status, err := t.readStatus()
	if err != nil {
		return nil, nightcan.NewTransportError("receive", t.busName, err, nightcan.ErrorTypeTransient)
	}

	var buffer byte
	switch {
	case status&statusRX0Full != 0:
		buffer = 0
	case status&statusRX1Full != 0:
		buffer = 1
	default:
		return nil, nil
	}

	// Read Rx Buffer clears the matching RXnIF flag on CS deassert.
	tx := make([]byte, 14)
	rx := make([]byte, 14)
	tx[0] = cmdReadRxBuf | (buffer << 2)
	if err := t.conn.Tx(tx, rx); err != nil {
		return nil, nightcan.NewTransportError("receive", t.busName,
			fmt.Errorf("read rx buffer %d: %w", buffer, err), nightcan.ErrorTypeTransient)
	}

	return decodeFrame(rx[1:14]), nil
}

// ConfigureFilter programs one of the six acceptance filter banks. Banks 0
// and 1 share mask RXM0 (buffer 0); banks 2 through 5 share RXM1 (buffer 1).
// Filter registers are only writable in configuration mode, so the bus is
// briefly offline while the filter is applied.
func (t *Transport) ConfigureFilter(bank int, id, mask uint32) error {
	if bank < 0 || bank >= len(filterAddr) {
		return fmt.Errorf("filter bank %d out of range: %w", bank, nightcan.ErrInvalidParameter)
	}

	f := nightcan.Frame{ID: id, Extended: id > 0x7FF}
	m := nightcan.Frame{ID: mask, Extended: id > 0x7FF}

	if err := t.setMode(modeConfig); err != nil {
		return fmt.Errorf("enter config mode: %w", err)
	}

	if err := t.writeRegisters(filterAddr[bank], encodeID(&f)...); err != nil {
		return fmt.Errorf("filter bank %d: %w", bank, err)
	}

	maskAddr := byte(regRXM0SIDH)
	if bank >= 2 {
		maskAddr = regRXM0SIDH + 4
	}
	if err := t.writeRegisters(maskAddr, encodeID(&m)...); err != nil {
		return fmt.Errorf("filter mask for bank %d: %w", bank, err)
	}

	if err := t.setMode(modeNormal); err != nil {
		return fmt.Errorf("leave config mode: %w", err)
	}

	return nil
}

// HasCapability reports the transport's capabilities
func (*Transport) HasCapability(capability nightcan.TransportCapability) bool {
	return capability == nightcan.CapabilityHardwareFilters
}

// Close puts the controller back in configuration mode (off the bus) and
// releases the SPI port
func (t *Transport) Close() error {
	_ = t.setMode(modeConfig)
	if t.port != nil {
		if err := t.port.Close(); err != nil {
			return fmt.Errorf("failed to close SPI port: %w", err)
		}
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() nightcan.TransportType {
	return nightcan.TransportMCP2515
}

// setMode requests an operating mode and verifies the controller took it
func (t *Transport) setMode(mode byte) error {
	if err := t.conn.Tx([]byte{cmdBitModify, regCANCTRL, modeMask, mode}, nil); err != nil {
		return fmt.Errorf("mode request: %w", err)
	}

	stat, err := t.readRegister(regCANSTAT)
	if err != nil {
		return fmt.Errorf("mode readback: %w", err)
	}
	if stat&modeMask != mode {
		return nightcan.NewTransportError("start", t.busName,
			fmt.Errorf("controller stuck in mode %#02x", stat&modeMask),
			nightcan.ErrorTypePermanent)
	}

	return nil
}

// readRegister reads one control register
func (t *Transport) readRegister(addr byte) (byte, error) {
	tx := []byte{cmdRead, addr, 0}
	rx := make([]byte, 3)
	if err := t.conn.Tx(tx, rx); err != nil {
		return 0, fmt.Errorf("read register %#02x: %w", addr, err)
	}
	return rx[2], nil
}

// writeRegisters writes consecutive control registers starting at addr
func (t *Transport) writeRegisters(addr byte, values ...byte) error {
	buf := append([]byte{cmdWrite, addr}, values...)
	if err := t.conn.Tx(buf, nil); err != nil {
		return fmt.Errorf("write register %#02x: %w", addr, err)
	}
	return nil
}

// readStatus performs the single-byte read-status instruction
func (t *Transport) readStatus() (byte, error) {
	tx := []byte{cmdReadStatus, 0}
	rx := make([]byte, 2)
	if err := t.conn.Tx(tx, rx); err != nil {
		return 0, fmt.Errorf("read status: %w", err)
	}
	return rx[1], nil
}

// encodeID renders an identifier into the SIDH/SIDL/EID8/EID0 register
// layout used by the transmit buffers, filters and masks
func encodeID(f *nightcan.Frame) []byte {
	if f.Extended {
		return []byte{
			byte(f.ID >> 21),
			byte(f.ID>>18&0x07)<<5 | bitEXIDE | byte(f.ID>>16&0x03),
			byte(f.ID >> 8),
			byte(f.ID),
		}
	}
	return []byte{
		byte(f.ID >> 3),
		byte(f.ID&0x07) << 5,
		0, 0,
	}
}

// decodeFrame parses the 13-byte receive buffer image (SIDH SIDL EID8 EID0
// DLC D0..D7)
func decodeFrame(buf []byte) *nightcan.Frame {
	f := &nightcan.Frame{}

	sidh, sidl := buf[0], buf[1]
	if sidl&bitIDE != 0 {
		f.Extended = true
		f.ID = uint32(sidh)<<21 |
			uint32(sidl>>5)<<18 |
			uint32(sidl&0x03)<<16 |
			uint32(buf[2])<<8 |
			uint32(buf[3])
		f.RTR = buf[4]&bitRTRTX != 0
	} else {
		f.ID = uint32(sidh)<<3 | uint32(sidl>>5)
		f.RTR = sidl&bitSRR != 0
	}

	f.DLC = buf[4] & 0x0F
	if f.DLC > 8 {
		f.DLC = 8
	}
	copy(f.Data[:], buf[5:13])

	return f
}

// Ensure Transport implements nightcan.Transport
var _ nightcan.Transport = (*Transport)(nil)
var _ nightcan.TransportCapabilityChecker = (*Transport)(nil)
