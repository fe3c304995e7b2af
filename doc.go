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

/*
Package nightcan implements the transport-independent CAN driver layer of a
vehicle control unit.

The driver multiplexes many logical signals (CAN identifiers) onto one or two
physical CAN peripherals. Each peripheral is owned by an Instance, which holds
a table of receive mailboxes (one latest-value slot per subscribed identifier)
and a schedule of periodic transmit packets. A cooperative Periodic tick
services the schedule, drains the transport into the mailboxes and evaluates
receive timeouts.

Features:
  - Multiple transport support: SocketCAN, SLCAN serial adapters, MCP2515 over SPI
  - Latest-value-wins receive mailboxes with recency and timeout tracking
  - Periodic transmit scheduling with wraparound-safe millisecond timing
  - Fixed-point payload codec with bounds-checked 8-byte accessors
  - Bounded instance registry for routing asynchronous receive callbacks
  - Comprehensive error handling

Basic Usage:

	import (
	    "github.com/nightcan/go-nightcan"
	    "github.com/nightcan/go-nightcan/transport/slcan"
	)

	// Create a transport for the CAN adapter
	transport, err := slcan.New("/dev/ttyACM0", slcan.WithBitrate(500000))
	if err != nil {
	    log.Fatal(err)
	}
	defer transport.Close()

	// Open a driver instance; the registry bounds how many peripherals
	// may be active and routes hardware receive callbacks
	registry := nightcan.NewRegistry()
	instance, err := nightcan.Open(registry, transport)
	if err != nil {
	    log.Fatal(err)
	}

	// Subscribe to an identifier with a 100 ms staleness timeout
	rpm := nightcan.NewReceiveMailbox(0x101, 100, 8)
	instance.AddReceiveMailbox(rpm)

	// Schedule a 20 ms periodic status packet
	status := nightcan.NewPacket(0x200, 20, 2)
	_ = status.SetScaledU16(0, 4.85, 0.01)
	if err := instance.AddTxPacket(status); err != nil {
	    log.Fatal(err)
	}

	// Drive the instance from the main control loop
	for {
	    if err := instance.Periodic(); err != nil {
	        log.Fatal(err)
	    }
	    if rpm.Recent() {
	        fmt.Println("rpm:", rpm.Scaled16(0, 0.25, 0))
	        rpm.Consume()
	    }
	    time.Sleep(10 * time.Millisecond)
	}

Transport Selection:

The library supports multiple transport layers:

  - SocketCAN: Linux kernel CAN interfaces (can0, vcan0, ...)
  - SLCAN: Lawicel/CANable serial-line adapters
  - MCP2515: SPI-attached standalone CAN controller

Receive Model:

A mailbox is a cache, not a queue. Each subscribed identifier holds exactly
one frame's worth of state; a chatty identifier overwrites its own slot and
can never starve readers of a rarely-sent one. Frames for identifiers that
were never subscribed are discarded at the transport boundary.

Error Handling:

All operations return meaningful errors that can be inspected:

	if errors.Is(err, nightcan.ErrTransportBusy) {
	    // Transient: no free hardware send slot, retry next tick
	}

Thread Safety:

Instance mutation is guarded by a short critical section so that a transport
delivering frames asynchronously (via Registry.HandleReceive) can coexist
with the Periodic poll loop. The intended default is poll-only operation,
where Periodic is the sole execution context touching the driver.
*/
package nightcan
