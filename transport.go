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

// Transport is the boundary to a physical CAN peripheral. This can be
// implemented by SocketCAN, SLCAN or SPI controller backends.
//
// Implementations must not block: Send either hands the frame to the
// hardware or returns ErrTransportBusy, and Receive returns only frames the
// peripheral has already queued.
type Transport interface {
	// Start brings up the peripheral and opens the bus connection
	Start() error

	// Send queues one frame for transmission. Returns an error wrapping
	// ErrTransportBusy when no hardware send slot is free.
	Send(f *Frame) error

	// Receive returns the next pending received frame, or (nil, nil) once
	// the peripheral's queue is drained for this call. Callers drain by
	// looping until nil; the iteration restarts on the next tick.
	Receive() (*Frame, error)

	// ConfigureFilter programs one hardware acceptance filter bank
	ConfigureFilter(bank int, id, mask uint32) error

	// Close shuts down the transport connection
	Close() error

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportSocketCAN represents a Linux SocketCAN network interface.
	TransportSocketCAN TransportType = "socketcan"
	// TransportSLCAN represents a Lawicel/CANable serial-line adapter.
	TransportSLCAN TransportType = "slcan"
	// TransportMCP2515 represents an SPI-attached MCP2515 controller.
	TransportMCP2515 TransportType = "mcp2515"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// TransportCapability represents specific capabilities or behaviors of a
// transport
type TransportCapability string

const (
	// CapabilityHardwareFilters indicates the peripheral can program
	// acceptance filter banks. Transports without it (e.g. bare SLCAN
	// adapters) receive every bus frame and rely on mailbox subscription
	// for selection.
	CapabilityHardwareFilters TransportCapability = "hardware_filters"
)

// TransportCapabilityChecker defines an interface for querying transport
// capabilities. Transports that do not implement it are assumed to have no
// optional capabilities.
type TransportCapabilityChecker interface {
	// HasCapability returns true if the transport has the specified capability
	HasCapability(capability TransportCapability) bool
}
