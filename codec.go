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

// Fixed-point payload codec.
//
// Values are packed little-endian at arbitrary byte offsets within the
// 8-byte frame payload. Scaled accessors store round(value/precision) as the
// chosen integer width and reconstruct stored*precision, so a round trip
// recovers the original value within ±precision/2. Every access is bounds
// checked against offset+width <= 8.
//
// Mailbox reads additionally gate on recency: a mailbox that has not been
// updated since it was last consumed (or was never populated) yields the
// caller-supplied default instead of stale payload bytes.

package nightcan

import (
	"fmt"
	"math"
)

// checkPayloadRange validates a payload access of width bytes at offset
func checkPayloadRange(offset, width int) error {
	if offset < 0 || offset+width > 8 {
		return fmt.Errorf("offset %d width %d: %w", offset, width, ErrOutOfRange)
	}
	return nil
}

// putUint packs width bytes of v little-endian at offset
func putUint(data *[8]byte, offset, width int, v uint32) {
	for i := 0; i < width; i++ {
		data[offset+i] = byte(v >> (8 * i))
	}
}

// getUint unpacks width little-endian bytes at offset
func getUint(data *[8]byte, offset, width int) uint32 {
	var v uint32
	for i := 0; i < width; i++ {
		v |= uint32(data[offset+i]) << (8 * i)
	}
	return v
}

// quantize converts a value to fixed point with the given resolution
func quantize(value, precision float64) int64 {
	return int64(math.Round(value / precision))
}

// --- Packet setters ---

func (p *Packet) setUint(offset, width int, v uint32) error {
	if err := checkPayloadRange(offset, width); err != nil {
		return err
	}
	putUint(&p.data, offset, width, v)
	return nil
}

func (p *Packet) setScaled(offset, width int, value, precision float64) error {
	if precision == 0 {
		return fmt.Errorf("zero precision: %w", ErrInvalidParameter)
	}
	return p.setUint(offset, width, uint32(quantize(value, precision)))
}

// SetUint8 writes an unsigned byte at offset
func (p *Packet) SetUint8(offset int, v uint8) error {
	return p.setUint(offset, 1, uint32(v))
}

// SetUint16 writes an unsigned 16-bit value at offset
func (p *Packet) SetUint16(offset int, v uint16) error {
	return p.setUint(offset, 2, uint32(v))
}

// SetUint32 writes an unsigned 32-bit value at offset
func (p *Packet) SetUint32(offset int, v uint32) error {
	return p.setUint(offset, 4, v)
}

// SetInt8 writes a signed byte at offset
func (p *Packet) SetInt8(offset int, v int8) error {
	return p.setUint(offset, 1, uint32(uint8(v)))
}

// SetInt16 writes a signed 16-bit value at offset
func (p *Packet) SetInt16(offset int, v int16) error {
	return p.setUint(offset, 2, uint32(uint16(v)))
}

// SetInt32 writes a signed 32-bit value at offset
func (p *Packet) SetInt32(offset int, v int32) error {
	return p.setUint(offset, 4, uint32(v))
}

// SetScaled8 stores value as a signed byte in units of precision
func (p *Packet) SetScaled8(offset int, value, precision float64) error {
	return p.setScaled(offset, 1, value, precision)
}

// SetScaled16 stores value as a signed 16-bit integer in units of precision.
// Example: SetScaled16(2, -1.5, 0.01) stores -150 at bytes 2-3.
func (p *Packet) SetScaled16(offset int, value, precision float64) error {
	return p.setScaled(offset, 2, value, precision)
}

// SetScaled32 stores value as a signed 32-bit integer in units of precision
func (p *Packet) SetScaled32(offset int, value, precision float64) error {
	return p.setScaled(offset, 4, value, precision)
}

// SetScaledU8 stores value as an unsigned byte in units of precision
func (p *Packet) SetScaledU8(offset int, value, precision float64) error {
	return p.setScaled(offset, 1, value, precision)
}

// SetScaledU16 stores value as an unsigned 16-bit integer in units of
// precision. Example: SetScaledU16(0, 4.85, 0.01) stores 485 at bytes 0-1.
func (p *Packet) SetScaledU16(offset int, value, precision float64) error {
	return p.setScaled(offset, 2, value, precision)
}

// SetScaledU32 stores value as an unsigned 32-bit integer in units of
// precision
func (p *Packet) SetScaledU32(offset int, value, precision float64) error {
	return p.setScaled(offset, 4, value, precision)
}

// --- Mailbox getters ---
//
// Getters return def when the mailbox holds no fresh value or when the
// access falls outside the payload.

func (m *ReceiveMailbox) getUint(offset, width int) (uint32, bool) {
	if !m.recent || checkPayloadRange(offset, width) != nil {
		return 0, false
	}
	return getUint(&m.data, offset, width), true
}

// Uint8 reads an unsigned byte at offset
func (m *ReceiveMailbox) Uint8(offset int, def uint8) uint8 {
	if v, ok := m.getUint(offset, 1); ok {
		return uint8(v)
	}
	return def
}

// Uint16 reads an unsigned 16-bit value at offset
func (m *ReceiveMailbox) Uint16(offset int, def uint16) uint16 {
	if v, ok := m.getUint(offset, 2); ok {
		return uint16(v)
	}
	return def
}

// Uint32 reads an unsigned 32-bit value at offset
func (m *ReceiveMailbox) Uint32(offset int, def uint32) uint32 {
	if v, ok := m.getUint(offset, 4); ok {
		return v
	}
	return def
}

// Int8 reads a signed byte at offset
func (m *ReceiveMailbox) Int8(offset int, def int8) int8 {
	if v, ok := m.getUint(offset, 1); ok {
		return int8(v)
	}
	return def
}

// Int16 reads a signed 16-bit value at offset
func (m *ReceiveMailbox) Int16(offset int, def int16) int16 {
	if v, ok := m.getUint(offset, 2); ok {
		return int16(v)
	}
	return def
}

// Int32 reads a signed 32-bit value at offset
func (m *ReceiveMailbox) Int32(offset int, def int32) int32 {
	if v, ok := m.getUint(offset, 4); ok {
		return int32(v)
	}
	return def
}

// Scaled8 reconstructs a value stored as a signed byte in units of precision
func (m *ReceiveMailbox) Scaled8(offset int, precision, def float64) float64 {
	if v, ok := m.getUint(offset, 1); ok {
		return float64(int8(v)) * precision
	}
	return def
}

// Scaled16 reconstructs a value stored as a signed 16-bit integer in units
// of precision
func (m *ReceiveMailbox) Scaled16(offset int, precision, def float64) float64 {
	if v, ok := m.getUint(offset, 2); ok {
		return float64(int16(v)) * precision
	}
	return def
}

// Scaled32 reconstructs a value stored as a signed 32-bit integer in units
// of precision
func (m *ReceiveMailbox) Scaled32(offset int, precision, def float64) float64 {
	if v, ok := m.getUint(offset, 4); ok {
		return float64(int32(v)) * precision
	}
	return def
}

// ScaledU8 reconstructs a value stored as an unsigned byte in units of
// precision
func (m *ReceiveMailbox) ScaledU8(offset int, precision, def float64) float64 {
	if v, ok := m.getUint(offset, 1); ok {
		return float64(uint8(v)) * precision
	}
	return def
}

// ScaledU16 reconstructs a value stored as an unsigned 16-bit integer in
// units of precision
func (m *ReceiveMailbox) ScaledU16(offset int, precision, def float64) float64 {
	if v, ok := m.getUint(offset, 2); ok {
		return float64(uint16(v)) * precision
	}
	return def
}

// ScaledU32 reconstructs a value stored as an unsigned 32-bit integer in
// units of precision
func (m *ReceiveMailbox) ScaledU32(offset int, precision, def float64) float64 {
	if v, ok := m.getUint(offset, 4); ok {
		return float64(v) * precision
	}
	return def
}
