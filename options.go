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

import "fmt"

// Option is a functional option for configuring an Instance
type Option func(*Instance) error

// WithClock sets the millisecond clock driving scheduling and timeouts.
// Defaults to NewSystemClock.
func WithClock(clock Clock) Option {
	return func(i *Instance) error {
		if clock == nil {
			return fmt.Errorf("nil clock: %w", ErrInvalidParameter)
		}
		i.clock = clock
		return nil
	}
}

// WithDefaultFilter adds an acceptance filter that Init programs into the
// transport before the instance starts servicing the bus. May be given more
// than once for multiple banks.
func WithDefaultFilter(bank int, id, mask uint32) Option {
	return func(i *Instance) error {
		if bank < 0 {
			return fmt.Errorf("filter bank %d: %w", bank, ErrInvalidParameter)
		}
		i.filters = append(i.filters, filterConfig{bank: bank, id: id, mask: mask})
		return nil
	}
}
