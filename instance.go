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
	"fmt"
	"sync"
)

// Build-time capacities.
const (
	// RxTableSize is the maximum number of receive mailboxes per instance.
	RxTableSize = 32
	// TxScheduleSize is the maximum number of scheduled packets per instance.
	TxScheduleSize = 16
	// MaxInstances is the maximum number of concurrently registered driver
	// instances (one per physical CAN peripheral).
	MaxInstances = 2
)

// Instance owns one transport binding, one mailbox table and one transmit
// schedule.
//
// All mailbox and schedule mutation runs under a short per-instance critical
// section, so a transport delivering frames asynchronously through
// Registry.HandleReceive may coexist with the Periodic poll loop. The
// intended default is poll-only operation: Periodic drains the transport and
// no other execution context touches the driver.
type Instance struct {
	transport   Transport
	clock       Clock
	filters     []filterConfig
	mu          sync.Mutex
	mailboxes   mailboxTable
	schedule    txSchedule
	initialized bool
}

// filterConfig is one acceptance filter applied when the instance starts
type filterConfig struct {
	id   uint32
	mask uint32
	bank int
}

// New creates a driver instance bound to the given transport. The instance
// is not started: call Init, or use Open to register and start in one step.
func New(transport Transport, opts ...Option) (*Instance, error) {
	if transport == nil {
		return nil, fmt.Errorf("nil transport: %w", ErrInvalidParameter)
	}

	instance := &Instance{
		transport: transport,
		clock:     NewSystemClock(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(instance); err != nil {
			return nil, err
		}
	}

	return instance, nil
}

// Open creates an instance, registers it and starts its transport. This is
// the usual entry point: registration bounds the number of active
// peripherals and lets the registry route asynchronous receive callbacks
// back to the owning instance.
func Open(registry *Registry, transport Transport, opts ...Option) (*Instance, error) {
	if registry == nil {
		return nil, fmt.Errorf("nil registry: %w", ErrInvalidParameter)
	}

	instance, err := New(transport, opts...)
	if err != nil {
		return nil, err
	}

	if err := registry.Register(instance); err != nil {
		return nil, err
	}

	if err := instance.Init(); err != nil {
		return nil, err
	}

	return instance, nil
}

// Init starts the transport and applies any default filters. The mailbox
// table and schedule start empty.
func (i *Instance) Init() error {
	if err := i.transport.Start(); err != nil {
		return fmt.Errorf("failed to start transport: %w", err)
	}

	for _, f := range i.filters {
		if err := i.transport.ConfigureFilter(f.bank, f.id, f.mask); err != nil {
			return fmt.Errorf("failed to configure filter bank %d: %w", f.bank, err)
		}
	}

	i.initialized = true
	return nil
}

// Transport returns the underlying transport
func (i *Instance) Transport() Transport {
	return i.transport
}

// hasCapability checks if the transport has the specified capability
func (i *Instance) hasCapability(capability TransportCapability) bool {
	if checker, ok := i.transport.(TransportCapabilityChecker); ok {
		return checker.HasCapability(capability)
	}
	return false
}

// AddReceiveMailbox subscribes a mailbox to its CAN identifier. Duplicate
// identifiers and a full table are silent no-ops; see mailboxTable.add.
func (i *Instance) AddReceiveMailbox(m *ReceiveMailbox) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.mailboxes.add(m)
}

// Mailbox returns the mailbox subscribed to id, or nil if the identifier
// was never subscribed
func (i *Instance) Mailbox(id uint32) *ReceiveMailbox {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.mailboxes.find(id)
}

// MailboxCount returns the number of registered mailboxes
func (i *Instance) MailboxCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.mailboxes.len()
}

// AddTxPacket sends a one-shot packet immediately, or adds a periodic packet
// to the transmit schedule. Re-adding an already scheduled packet refreshes
// its interval without consuming another slot. Returns an error wrapping
// ErrBufferFull when the schedule is at capacity, and the transport's result
// for one-shot sends.
func (i *Instance) AddTxPacket(p *Packet) error {
	if !i.initialized {
		return ErrNotInitialized
	}
	if p == nil {
		return fmt.Errorf("nil packet: %w", ErrInvalidParameter)
	}
	if p.dlc > 8 {
		return fmt.Errorf("dlc %d: %w", p.dlc, ErrInvalidParameter)
	}

	if p.intervalMS == 0 {
		return i.sendNow(p)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.schedule.add(p, i.clock.Now())
}

// RemoveTxPacket removes a previously scheduled packet. Identity-compared by
// reference; returns ErrNotFound if the packet is not scheduled here.
func (i *Instance) RemoveTxPacket(p *Packet) error {
	if !i.initialized {
		return ErrNotInitialized
	}
	if p == nil {
		return fmt.Errorf("nil packet: %w", ErrInvalidParameter)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.schedule.remove(p)
}

// ScheduledCount returns the number of packets in the transmit schedule
func (i *Instance) ScheduledCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.schedule.len()
}

// ConfigureFilter programs one hardware acceptance filter bank. Returns an
// error wrapping ErrNotSupported if the transport has no hardware filters.
func (i *Instance) ConfigureFilter(bank int, id, mask uint32) error {
	if !i.initialized {
		return ErrNotInitialized
	}
	if _, ok := i.transport.(TransportCapabilityChecker); ok && !i.hasCapability(CapabilityHardwareFilters) {
		return fmt.Errorf("hardware filters: %w", ErrNotSupported)
	}
	if err := i.transport.ConfigureFilter(bank, id, mask); err != nil {
		return fmt.Errorf("failed to configure filter bank %d: %w", bank, err)
	}
	return nil
}

// Periodic performs one driver tick: transmit due scheduled packets, drain
// the transport into the mailboxes, then evaluate receive timeouts. The
// order bounds transmit jitter and guarantees a frame received in this tick
// is never spuriously flagged timed out.
//
// Scheduled-send failures are not surfaced here; the scheduler retries them
// on the next tick. A receive failure is returned after the tick completes.
func (i *Instance) Periodic() error {
	if !i.initialized {
		return ErrNotInitialized
	}

	now := i.clock.Now()

	i.mu.Lock()
	defer i.mu.Unlock()

	i.schedule.service(i.transport, now)

	drainErr := i.drainReceive(now)

	i.mailboxes.checkTimeouts(now)
	return drainErr
}

// drainReceive empties the transport's pending receive queue into the
// mailbox table. Caller holds i.mu.
func (i *Instance) drainReceive(now uint32) error {
	for {
		f, err := i.transport.Receive()
		if err != nil {
			return fmt.Errorf("receive drain: %w", err)
		}
		if f == nil {
			return nil
		}
		i.mailboxes.update(f, now)
	}
}

// handleFrame routes one asynchronously delivered frame into the mailbox
// table. Called by Registry.HandleReceive.
func (i *Instance) handleFrame(f *Frame) {
	now := i.clock.Now()
	i.mu.Lock()
	defer i.mu.Unlock()
	i.mailboxes.update(f, now)
}

// sendNow transmits one packet immediately, bypassing the schedule
func (i *Instance) sendNow(p *Packet) error {
	f := p.frame()
	return i.transport.Send(&f)
}

// Close shuts down the transport. The instance stays registered: registry
// slots are reclaimed only on process reset.
func (i *Instance) Close() error {
	i.initialized = false
	if i.transport != nil {
		if err := i.transport.Close(); err != nil {
			return fmt.Errorf("failed to close transport: %w", err)
		}
	}
	return nil
}
