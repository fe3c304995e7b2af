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

//go:build linux

package main

import (
	"fmt"

	nightcan "github.com/nightcan/go-nightcan"
	"github.com/nightcan/go-nightcan/transport/socketcan"
)

func newSocketCAN(ifName string) (nightcan.Transport, error) {
	transport, err := socketcan.New(ifName)
	if err != nil {
		return nil, fmt.Errorf("failed to create socketcan transport: %w", err)
	}
	return transport, nil
}
