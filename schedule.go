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

// Packet is one transmit job. With a non-zero interval it is re-sent at that
// cadence until removed; with interval zero AddTxPacket sends it immediately
// and keeps no schedule entry.
//
// Ownership stays with the application: the scheduler stores a reference and
// identity-compares it, so two distinct packets with the same CAN identifier
// may coexist in the schedule.
type Packet struct {
	id         uint32
	intervalMS uint32
	lastTxMS   uint32
	dlc        uint8
	data       [8]byte
	extended   bool
	rtr        bool
	scheduled  bool
}

// NewPacket creates a standard-identifier transmit packet. intervalMS of
// zero makes the packet one-shot. dlc is clamped to 8.
func NewPacket(id, intervalMS uint32, dlc uint8) *Packet {
	return &Packet{
		id:         id,
		intervalMS: intervalMS,
		dlc:        clampDLC(dlc),
	}
}

// NewExtendedPacket creates a transmit packet with a 29-bit identifier
func NewExtendedPacket(id, intervalMS uint32, dlc uint8) *Packet {
	p := NewPacket(id, intervalMS, dlc)
	p.extended = true
	return p
}

// ID returns the packet's CAN identifier
func (p *Packet) ID() uint32 {
	return p.id
}

// Interval returns the transmit interval in milliseconds (0 = one-shot)
func (p *Packet) Interval() uint32 {
	return p.intervalMS
}

// SetInterval changes the transmit interval. Takes effect at the next
// AddTxPacket (re-adding a scheduled packet updates its cadence in place).
func (p *Packet) SetInterval(intervalMS uint32) {
	p.intervalMS = intervalMS
}

// SetRemote marks the packet as a remote transmission request
func (p *Packet) SetRemote(rtr bool) {
	p.rtr = rtr
}

// Scheduled reports whether the packet currently occupies a schedule slot
func (p *Packet) Scheduled() bool {
	return p.scheduled
}

// frame builds the wire frame for one transmission of this packet
func (p *Packet) frame() Frame {
	return Frame{
		ID:       p.id,
		Extended: p.extended,
		RTR:      p.rtr,
		DLC:      p.dlc,
		Data:     p.data,
	}
}

// txSchedule is the fixed-capacity list of periodic transmit jobs owned by
// one driver instance. Entries stay dense: removal compacts the remainder
// preserving relative order.
type txSchedule struct {
	entries [TxScheduleSize]*Packet
	count   int
}

// add schedules a packet for periodic transmission. Re-adding a packet that
// is already scheduled (same reference) refreshes its interval in place and
// succeeds without consuming a second slot.
func (s *txSchedule) add(p *Packet, now uint32) error {
	for i := 0; i < s.count; i++ {
		if s.entries[i] == p {
			p.scheduled = true
			return nil
		}
	}
	if s.count >= TxScheduleSize {
		return ErrBufferFull
	}
	p.lastTxMS = now
	p.scheduled = true
	s.entries[s.count] = p
	s.count++
	return nil
}

// remove drops a packet from the schedule, compacting the remaining entries.
// Identity-compared by reference; returns ErrNotFound on a miss.
func (s *txSchedule) remove(p *Packet) error {
	for i := 0; i < s.count; i++ {
		if s.entries[i] != p {
			continue
		}
		p.scheduled = false
		copy(s.entries[i:s.count-1], s.entries[i+1:s.count])
		s.count--
		s.entries[s.count] = nil
		return nil
	}
	return ErrNotFound
}

// service transmits every due packet. The last-transmit timestamp advances
// only on a successful send, so a busy or failing transport causes the send
// to be retried every subsequent tick: cadence drift is tolerated, silent
// data loss is not.
func (s *txSchedule) service(t Transport, now uint32) {
	for i := 0; i < s.count; i++ {
		p := s.entries[i]
		if p == nil || !p.scheduled || p.intervalMS == 0 {
			continue
		}
		if Elapsed(now, p.lastTxMS) < p.intervalMS {
			continue
		}
		f := p.frame()
		if err := t.Send(&f); err == nil {
			p.lastTxMS = now
		}
	}
}

func (s *txSchedule) len() int {
	return s.count
}
