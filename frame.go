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
	"encoding/binary"
	"fmt"
)

// Frame is a classic CAN 2.0A/2.0B frame as it crosses the transport
// boundary. Frames are ephemeral: a received frame is consumed immediately
// to update a mailbox and never buffered beyond the transport.
//
// CAN FD specific fields are not supported.
type Frame struct {
	// ID is the 11-bit (standard) or 29-bit (extended) identifier
	ID uint32
	// Extended selects the 29-bit identifier format
	Extended bool
	// RTR marks a remote transmission request
	RTR bool
	// DLC is the data length code, 0-8
	DLC uint8
	// Data is the payload; only the first DLC bytes are meaningful
	Data [8]byte
}

// Identifier range limits.
const (
	maxStdID = 0x7FF
	maxExtID = 0x1FFFFFFF
)

// SocketCAN can_id flag bits, shared with the socketcan transport.
const (
	canEFFFlag = 0x80000000
	canRTRFlag = 0x40000000
)

// Validate returns ErrInvalidParameter if the frame's identifier or DLC is
// out of range for its format.
func (f *Frame) Validate() error {
	if f.DLC > 8 {
		return fmt.Errorf("dlc %d exceeds classic CAN limit: %w", f.DLC, ErrInvalidParameter)
	}
	limit := uint32(maxStdID)
	if f.Extended {
		limit = maxExtID
	}
	if f.ID > limit {
		return fmt.Errorf("identifier %#x out of range: %w", f.ID, ErrInvalidParameter)
	}
	return nil
}

// MarshalBinary encodes the frame into the 16-byte Linux SocketCAN
// can_frame layout (little-endian can_id with EFF/RTR flags, DLC at byte 4,
// payload at bytes 8-15).
func (f *Frame) MarshalBinary() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	id := f.ID
	if f.Extended {
		id |= canEFFFlag
	}
	if f.RTR {
		id |= canRTRFlag
	}
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], id)
	buf[4] = f.DLC
	copy(buf[8:16], f.Data[:])
	return buf, nil
}

// UnmarshalBinary decodes a frame from the SocketCAN can_frame layout.
func (f *Frame) UnmarshalBinary(data []byte) error {
	if len(data) < 16 {
		return fmt.Errorf("need 16 bytes, got %d: %w", len(data), ErrInvalidParameter)
	}
	id := binary.LittleEndian.Uint32(data[0:4])
	f.Extended = id&canEFFFlag != 0
	f.RTR = id&canRTRFlag != 0
	if f.Extended {
		f.ID = id & maxExtID
	} else {
		f.ID = id & maxStdID
	}
	f.DLC = data[4]
	copy(f.Data[:], data[8:16])
	return f.Validate()
}

// String formats the frame for diagnostics
func (f *Frame) String() string {
	format := "%03X"
	if f.Extended {
		format = "%08X"
	}
	s := fmt.Sprintf(format, f.ID)
	if f.RTR {
		s += " R"
	}
	return fmt.Sprintf("%s [%d] % X", s, f.DLC, f.Data[:clampDLC(f.DLC)])
}

// clampDLC bounds a wire DLC to the 8-byte classic CAN payload
func clampDLC(dlc uint8) uint8 {
	if dlc > 8 {
		return 8
	}
	return dlc
}
