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

// canmon watches a set of CAN identifiers on a bus and prints every update,
// flagging identifiers that go quiet. It doubles as a heartbeat generator.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	nightcan "github.com/nightcan/go-nightcan"
	"github.com/nightcan/go-nightcan/transport/mcp2515"
	"github.com/nightcan/go-nightcan/transport/slcan"
)

type config struct {
	device    *string
	transport *string
	watch     *string
	bitrate   *int
	timeout   *uint
	tick      *time.Duration
	heartbeat *uint
}

func parseFlags() *config {
	cfg := &config{
		device: flag.String("device", "",
			"Bus device: CAN interface name (socketcan), serial port (slcan) or SPI port (mcp2515)"),
		transport: flag.String("transport", "",
			"Transport type: socketcan, slcan or mcp2515. Guessed from the device path if empty."),
		watch: flag.String("watch", "",
			"Comma-separated CAN identifiers to watch, hex (e.g. 0x101,0x18FF1234)"),
		bitrate: flag.Int("bitrate", 500000, "CAN bus bitrate in bit/s"),
		timeout: flag.Uint("timeout", 1000,
			"Receive timeout in ms before a watched identifier is reported stale (0 disables)"),
		tick: flag.Duration("tick", 10*time.Millisecond, "Driver service interval"),
		heartbeat: flag.Uint("heartbeat", 0,
			"If nonzero, transmit a heartbeat frame on 0x700 every N ms"),
	}
	flag.Parse()
	return cfg
}

// newTransport creates a transport from the device path, guessing the kind
// when -transport is not given
func newTransport(cfg *config) (nightcan.Transport, error) {
	kind := strings.ToLower(*cfg.transport)
	if kind == "" {
		switch {
		case strings.Contains(strings.ToLower(*cfg.device), "spi"):
			kind = "mcp2515"
		case strings.HasPrefix(*cfg.device, "/dev/"), strings.HasPrefix(strings.ToUpper(*cfg.device), "COM"):
			kind = "slcan"
		default:
			kind = "socketcan"
		}
	}

	switch kind {
	case "socketcan":
		return newSocketCAN(*cfg.device)
	case "slcan":
		transport, err := slcan.New(*cfg.device, slcan.WithBitrate(*cfg.bitrate))
		if err != nil {
			return nil, fmt.Errorf("failed to create slcan transport: %w", err)
		}
		return transport, nil
	case "mcp2515":
		transport, err := mcp2515.New(*cfg.device, mcp2515.WithBitrate(*cfg.bitrate))
		if err != nil {
			return nil, fmt.Errorf("failed to create mcp2515 transport: %w", err)
		}
		return transport, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", kind)
	}
}

func parseWatchList(s string) ([]uint32, error) {
	if s == "" {
		return nil, nil
	}
	var ids []uint32
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		id, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(part), "0x"), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("bad identifier %q: %w", part, err)
		}
		ids = append(ids, uint32(id))
	}
	return ids, nil
}

func run(cfg *config) error {
	if *cfg.device == "" {
		return fmt.Errorf("-device is required")
	}

	ids, err := parseWatchList(*cfg.watch)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("-watch is required (nothing to monitor)")
	}

	transport, err := newTransport(cfg)
	if err != nil {
		return err
	}

	registry := nightcan.NewRegistry()
	instance, err := nightcan.Open(registry, transport)
	if err != nil {
		return fmt.Errorf("failed to open driver: %w", err)
	}
	defer func() {
		if closeErr := instance.Close(); closeErr != nil {
			log.Printf("close: %v", closeErr)
		}
	}()

	mailboxes := make([]*nightcan.ReceiveMailbox, 0, len(ids))
	for _, id := range ids {
		m := nightcan.NewReceiveMailbox(id, uint32(*cfg.timeout), 8)
		instance.AddReceiveMailbox(m)
		mailboxes = append(mailboxes, m)
	}

	if *cfg.heartbeat > 0 {
		hb := nightcan.NewPacket(0x700, uint32(*cfg.heartbeat), 1)
		if err := instance.AddTxPacket(hb); err != nil {
			return fmt.Errorf("failed to schedule heartbeat: %w", err)
		}
		log.Printf("heartbeat on 0x700 every %d ms", *cfg.heartbeat)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(*cfg.tick)
	defer ticker.Stop()

	log.Printf("monitoring %d identifiers on %s", len(mailboxes), *cfg.device)

	stale := make(map[uint32]bool, len(mailboxes))
	for {
		select {
		case <-sig:
			log.Println("shutting down")
			return nil
		case <-ticker.C:
			if err := instance.Periodic(); err != nil {
				log.Printf("tick: %v", err)
				continue
			}
			report(mailboxes, stale)
		}
	}
}

// report prints fresh values and timeout transitions for the watched set
func report(mailboxes []*nightcan.ReceiveMailbox, stale map[uint32]bool) {
	for _, m := range mailboxes {
		if m.Recent() {
			data := m.Bytes()
			m.Consume()
			log.Printf("0x%X [%d] % X (t=%d ms)", m.ID(), m.DLC(), data, m.Timestamp())
		}

		if m.TimedOut() && !stale[m.ID()] {
			log.Printf("0x%X STALE (no frame for the timeout window)", m.ID())
		}
		stale[m.ID()] = m.TimedOut()
	}
}

func main() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	if err := run(parseFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "canmon: %v\n", err)
		os.Exit(1)
	}
}
