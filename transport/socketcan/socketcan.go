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

// Package socketcan provides a transport backed by the Linux SocketCAN
// raw socket interface
package socketcan

import (
	"errors"
	"fmt"
	"net"
	"sort"

	nightcan "github.com/nightcan/go-nightcan"
	"golang.org/x/sys/unix"
)

const frameSize = 16 // sizeof(struct can_frame)

// Transport implements the nightcan.Transport interface over a raw
// SocketCAN socket
type Transport struct {
	filters map[int]unix.CanFilter
	ifName  string
	fd      int
	opened  bool
}

// New creates a SocketCAN transport bound to the named interface
// (e.g. "can0", "vcan0"). The socket is opened by Start.
func New(ifName string) (*Transport, error) {
	if ifName == "" {
		return nil, fmt.Errorf("empty interface name: %w", nightcan.ErrInvalidParameter)
	}
	return &Transport{
		ifName:  ifName,
		fd:      -1,
		filters: make(map[int]unix.CanFilter),
	}, nil
}

// Start opens a nonblocking raw CAN socket and binds it to the interface
func (t *Transport) Start() error {
	iface, err := net.InterfaceByName(t.ifName)
	if err != nil {
		return nightcan.NewTransportError("start", t.ifName,
			fmt.Errorf("interface lookup: %w", err), nightcan.ErrorTypePermanent)
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nightcan.NewTransportError("start", t.ifName,
			fmt.Errorf("socket: %w", err), nightcan.ErrorTypePermanent)
	}

	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: iface.Index}); err != nil {
		_ = unix.Close(fd)
		return nightcan.NewTransportError("start", t.ifName,
			fmt.Errorf("bind: %w", err), nightcan.ErrorTypePermanent)
	}

	// Reads must never block the Periodic tick.
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nightcan.NewTransportError("start", t.ifName,
			fmt.Errorf("set nonblocking: %w", err), nightcan.ErrorTypePermanent)
	}

	t.fd = fd
	t.opened = true
	return nil
}

// Send writes one frame to the socket. A full transmit queue surfaces as a
// busy error so the scheduler retries on the next tick.
func (t *Transport) Send(f *nightcan.Frame) error {
	if !t.opened {
		return nightcan.NewTransportError("send", t.ifName,
			nightcan.ErrTransportClosed, nightcan.ErrorTypePermanent)
	}

	buf, err := f.MarshalBinary()
	if err != nil {
		return err
	}

	if _, err := unix.Write(t.fd, buf); err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.ENOBUFS) {
			return nightcan.NewBusyError("send", t.ifName)
		}
		return nightcan.NewTransportError("send", t.ifName, err, nightcan.ErrorTypeTransient)
	}

	return nil
}

// Receive reads one frame from the socket, or returns (nil, nil) when
// nothing is pending
func (t *Transport) Receive() (*nightcan.Frame, error) {
	if !t.opened {
		return nil, nightcan.NewTransportError("receive", t.ifName,
			nightcan.ErrTransportClosed, nightcan.ErrorTypePermanent)
	}

	buf := make([]byte, frameSize)
	n, err := unix.Read(t.fd, buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return nil, nil
		}
		return nil, nightcan.NewTransportError("receive", t.ifName, err, nightcan.ErrorTypeTransient)
	}
	if n < frameSize {
		return nil, nightcan.NewTransportError("receive", t.ifName,
			fmt.Errorf("short read of %d bytes: %w", n, nightcan.ErrTransportReceive),
			nightcan.ErrorTypeTransient)
	}

	var f nightcan.Frame
	if err := f.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	return &f, nil
}

// ConfigureFilter installs one kernel acceptance filter. Filters accumulate
// per bank; reconfiguring a bank replaces its previous filter.
func (t *Transport) ConfigureFilter(bank int, id, mask uint32) error {
	if !t.opened {
		return nightcan.NewTransportError("filter", t.ifName,
			nightcan.ErrTransportClosed, nightcan.ErrorTypePermanent)
	}
	if bank < 0 {
		return fmt.Errorf("filter bank %d out of range: %w", bank, nightcan.ErrInvalidParameter)
	}

	t.filters[bank] = unix.CanFilter{Id: id, Mask: mask}

	// The kernel takes the whole filter set at once; rebuild it in bank
	// order so reconfiguration is deterministic.
	banks := make([]int, 0, len(t.filters))
	for b := range t.filters {
		banks = append(banks, b)
	}
	sort.Ints(banks)

	set := make([]unix.CanFilter, 0, len(banks))
	for _, b := range banks {
		set = append(set, t.filters[b])
	}

	if err := unix.SetsockoptCanRawFilter(t.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, set); err != nil {
		return nightcan.NewTransportError("filter", t.ifName, err, nightcan.ErrorTypePermanent)
	}

	return nil
}

// HasCapability reports the transport's capabilities. SocketCAN filters run
// in the kernel rather than silicon, but behave the same way from here.
func (*Transport) HasCapability(capability nightcan.TransportCapability) bool {
	return capability == nightcan.CapabilityHardwareFilters
}

// Close closes the socket
func (t *Transport) Close() error {
	if !t.opened {
		return nil
	}
	t.opened = false
	if err := unix.Close(t.fd); err != nil {
		return fmt.Errorf("failed to close CAN socket: %w", err)
	}
	t.fd = -1
	return nil
}

// Type returns the transport type
func (*Transport) Type() nightcan.TransportType {
	return nightcan.TransportSocketCAN
}

// Ensure Transport implements nightcan.Transport
var _ nightcan.Transport = (*Transport)(nil)
var _ nightcan.TransportCapabilityChecker = (*Transport)(nil)
