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

import "sync"

// MockFilter records one ConfigureFilter call on a MockTransport
type MockFilter struct {
	ID   uint32
	Mask uint32
	Bank int
}

// MockTransport is an in-memory Transport for tests and bench harnesses. It
// records sent frames, serves queued receive frames, and can simulate a busy
// or failing peripheral.
type MockTransport struct {
	sendErr  error
	startErr error
	queue    []Frame
	sent     []Frame
	filters  []MockFilter
	busyLeft int
	mu       sync.Mutex
	started  bool
	closed   bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// Start brings up the mock
func (m *MockTransport) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.started = true
	return nil
}

// Send records the frame, or fails while busy/error simulation is active
func (m *MockTransport) Send(f *Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return NewTransportError("send", "mock", ErrTransportClosed, ErrorTypePermanent)
	}
	if m.busyLeft > 0 {
		m.busyLeft--
		return NewBusyError("send", "mock")
	}
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, *f)
	return nil
}

// Receive pops the next queued frame, or returns (nil, nil) when drained
func (m *MockTransport) Receive() (*Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, NewTransportError("receive", "mock", ErrTransportClosed, ErrorTypePermanent)
	}
	if len(m.queue) == 0 {
		return nil, nil
	}
	f := m.queue[0]
	m.queue = m.queue[1:]
	return &f, nil
}

// ConfigureFilter records the filter call
func (m *MockTransport) ConfigureFilter(bank int, id, mask uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = append(m.filters, MockFilter{Bank: bank, ID: id, Mask: mask})
	return nil
}

// Close marks the transport closed
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Type returns TransportMock
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// HasCapability reports hardware filter support so filter paths can be
// exercised against the mock
func (*MockTransport) HasCapability(capability TransportCapability) bool {
	return capability == CapabilityHardwareFilters
}

// QueueFrame adds a frame to be returned by a later Receive
func (m *MockTransport) QueueFrame(f Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, f)
}

// Sent returns a copy of all successfully sent frames
func (m *MockTransport) Sent() []Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Frame, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentCount returns the number of successfully sent frames
func (m *MockTransport) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// Filters returns a copy of all recorded filter configurations
func (m *MockTransport) Filters() []MockFilter {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockFilter, len(m.filters))
	copy(out, m.filters)
	return out
}

// FailNextSends makes the next n Send calls return a busy error
func (m *MockTransport) FailNextSends(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busyLeft = n
}

// SetSendError makes every Send fail with err until cleared
func (m *MockTransport) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// SetStartError makes Start fail with err
func (m *MockTransport) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// Started reports whether Start succeeded
func (m *MockTransport) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}
