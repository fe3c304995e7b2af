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

// ReceiveMailbox holds the last-known value for one CAN identifier.
//
// A mailbox is a latest-value cache, not a queue: it reflects exactly one
// frame's worth of state regardless of arrival rate, and a high-frequency
// identifier simply overwrites its own slot. Mailboxes are created by the
// application and registered with AddReceiveMailbox; the driver never
// creates one implicitly on receive.
type ReceiveMailbox struct {
	id          uint32
	timeoutMS   uint32
	timestampMS uint32
	dlc         uint8
	data        [8]byte
	extended    bool
	rtr         bool
	recent      bool
	timedOut    bool
}

// NewReceiveMailbox creates a mailbox for the given identifier. timeoutMS of
// zero disables timeout tracking; otherwise the mailbox is flagged timed out
// once no frame has arrived for longer than timeoutMS. dlc is the expected
// data length and is clamped to 8.
func NewReceiveMailbox(id, timeoutMS uint32, dlc uint8) *ReceiveMailbox {
	return &ReceiveMailbox{
		id:        id,
		timeoutMS: timeoutMS,
		dlc:       clampDLC(dlc),
	}
}

// ID returns the CAN identifier the mailbox is subscribed to
func (m *ReceiveMailbox) ID() uint32 {
	return m.id
}

// DLC returns the data length code of the last received frame
func (m *ReceiveMailbox) DLC() uint8 {
	return m.dlc
}

// Extended reports whether the last received frame used a 29-bit identifier
func (m *ReceiveMailbox) Extended() bool {
	return m.extended
}

// Remote reports whether the last received frame was a remote request
func (m *ReceiveMailbox) Remote() bool {
	return m.rtr
}

// Timestamp returns the driver time in milliseconds of the last update
func (m *ReceiveMailbox) Timestamp() uint32 {
	return m.timestampMS
}

// Recent reports whether the mailbox was updated since it was last consumed
func (m *ReceiveMailbox) Recent() bool {
	return m.recent
}

// TimedOut reports whether the mailbox value is stale. The flag sets when no
// frame arrives within the configured timeout and clears on the next update.
func (m *ReceiveMailbox) TimedOut() bool {
	return m.timedOut
}

// Consume clears the recency flag without discarding the last known value.
// Application code uses it to detect "no new value since I last looked".
func (m *ReceiveMailbox) Consume() {
	m.recent = false
}

// Bytes returns a copy of the payload of the last received frame
func (m *ReceiveMailbox) Bytes() []byte {
	out := make([]byte, clampDLC(m.dlc))
	copy(out, m.data[:])
	return out
}

// update copies one received frame into the mailbox. A fresh frame clears
// the timed-out flag: a value cannot be both fresh and stale.
func (m *ReceiveMailbox) update(f *Frame, now uint32) {
	m.dlc = clampDLC(f.DLC)
	copy(m.data[:m.dlc], f.Data[:m.dlc])
	m.extended = f.Extended
	m.rtr = f.RTR
	m.timestampMS = now
	m.recent = true
	m.timedOut = false
}

// mailboxTable is the fixed-capacity, identifier-indexed set of mailboxes
// owned by one driver instance.
type mailboxTable struct {
	slots [RxTableSize]*ReceiveMailbox
	count int
}

// add registers a mailbox. Duplicate identifiers and a full table are silent
// no-ops: subscription happens once at startup against a build-time capacity,
// so idempotent registration is the intended usage.
func (t *mailboxTable) add(m *ReceiveMailbox) {
	if m == nil || t.count >= RxTableSize {
		return
	}
	if t.find(m.id) != nil {
		return
	}
	t.slots[t.count] = m
	t.count++
}

// find returns the mailbox subscribed to id, or nil if the identifier was
// never subscribed. Linear scan bounded by RxTableSize.
func (t *mailboxTable) find(id uint32) *ReceiveMailbox {
	for i := 0; i < t.count; i++ {
		if t.slots[i].id == id {
			return t.slots[i]
		}
	}
	return nil
}

// update routes a received frame to its mailbox. Frames for identifiers
// without a subscription are discarded.
func (t *mailboxTable) update(f *Frame, now uint32) {
	m := t.find(f.ID)
	if m == nil {
		return
	}
	m.update(f, now)
}

// checkTimeouts flags every timeout-tracked mailbox whose last update is
// older than its timeout. Wraparound-safe via unsigned subtraction.
func (t *mailboxTable) checkTimeouts(now uint32) {
	for i := 0; i < t.count; i++ {
		m := t.slots[i]
		if m.timeoutMS == 0 {
			continue
		}
		if Elapsed(now, m.timestampMS) > m.timeoutMS {
			m.timedOut = true
		}
	}
}

func (t *mailboxTable) len() int {
	return t.count
}
