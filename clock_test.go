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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestElapsed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		now   uint32
		since uint32
		want  uint32
	}{
		{
			name:  "no wraparound",
			now:   1000,
			since: 900,
			want:  100,
		},
		{
			name:  "zero elapsed",
			now:   500,
			since: 500,
			want:  0,
		},
		{
			name:  "counter wraparound",
			now:   0x10,
			since: 0xFFFFFFF0,
			want:  0x20,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Elapsed(tt.now, tt.since))
		})
	}
}

func TestManualClock(t *testing.T) {
	t.Parallel()
	clock := NewManualClock(100)
	assert.Equal(t, uint32(100), clock.Now())

	clock.Advance(50)
	assert.Equal(t, uint32(150), clock.Now())

	clock.Set(0xFFFFFFF0)
	clock.Advance(0x20)
	assert.Equal(t, uint32(0x10), clock.Now(), "manual clock wraps at 32 bits")
}

func TestSystemClockMonotonic(t *testing.T) {
	t.Parallel()
	clock := NewSystemClock()
	a := clock.Now()
	b := clock.Now()
	assert.LessOrEqual(t, Elapsed(b, a), uint32(1000), "back-to-back reads stay close")
}
