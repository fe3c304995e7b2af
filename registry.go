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

// Registry is the bounded, process-wide table of active driver instances,
// keyed by transport identity. Its single job is routing hardware receive
// callbacks to the owning instance; construct one at process start and pass
// it to whatever layer dispatches those callbacks.
//
// Instances are registered at Open and reclaimed only on process reset;
// there is no de-registration path.
type Registry struct {
	mu        sync.Mutex
	instances [MaxInstances]*Instance
	count     int
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an instance to the registry. Fails with ErrRegistryFull at
// capacity and ErrAlreadyRegistered when the instance's transport is already
// bound: each transport maps to at most one instance.
func (r *Registry) Register(instance *Instance) error {
	if instance == nil || instance.transport == nil {
		return fmt.Errorf("nil instance: %w", ErrInvalidParameter)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < r.count; i++ {
		if r.instances[i].transport == instance.transport {
			return ErrAlreadyRegistered
		}
	}
	if r.count >= MaxInstances {
		return ErrRegistryFull
	}

	r.instances[r.count] = instance
	r.count++
	return nil
}

// Lookup returns the instance bound to the given transport, or nil. Linear
// scan bounded by MaxInstances.
func (r *Registry) Lookup(transport Transport) *Instance {
	if transport == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < r.count; i++ {
		if r.instances[i].transport == transport {
			return r.instances[i]
		}
	}
	return nil
}

// Len returns the number of registered instances
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// HandleReceive routes a frame delivered by an asynchronous transport
// callback to the owning instance's mailbox table. Returns false when no
// instance is registered for the transport, in which case the frame is
// dropped.
//
// This is the interrupt-context analogue of the Periodic drain; the
// instance's critical section makes the two paths safe to interleave.
func (r *Registry) HandleReceive(transport Transport, f *Frame) bool {
	if f == nil {
		return false
	}
	instance := r.Lookup(transport)
	if instance == nil {
		return false
	}
	instance.handleFrame(f)
	return true
}
