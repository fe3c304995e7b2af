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

import "time"

// Clock provides the monotonic millisecond counter that drives scheduling
// and timeout evaluation. The counter wraps at 32 bits; elapsed-time
// comparisons must go through Elapsed rather than ordering comparisons.
type Clock interface {
	// Now returns the current driver time in milliseconds
	Now() uint32
}

// Elapsed returns the milliseconds elapsed between since and now. Unsigned
// subtraction keeps the result correct across a 32-bit counter wraparound.
func Elapsed(now, since uint32) uint32 {
	return now - since
}

// systemClock derives the millisecond counter from the Go monotonic clock
type systemClock struct {
	start time.Time
}

// NewSystemClock returns the default production clock. The counter starts at
// zero when the clock is created and wraps after roughly 49.7 days.
func NewSystemClock() Clock {
	return &systemClock{start: time.Now()}
}

func (c *systemClock) Now() uint32 {
	return uint32(time.Since(c.start) / time.Millisecond)
}

// ManualClock is a Clock whose time only moves when told to. It is intended
// for tests and simulation harnesses. Not safe for concurrent use.
type ManualClock struct {
	ms uint32
}

// NewManualClock creates a manual clock starting at the given millisecond
func NewManualClock(ms uint32) *ManualClock {
	return &ManualClock{ms: ms}
}

// Now returns the current manual time
func (c *ManualClock) Now() uint32 {
	return c.ms
}

// Set moves the clock to an absolute millisecond value
func (c *ManualClock) Set(ms uint32) {
	c.ms = ms
}

// Advance moves the clock forward, wrapping at 32 bits like the hardware
// counter it stands in for
func (c *ManualClock) Advance(ms uint32) {
	c.ms += ms
}
