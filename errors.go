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
	"errors"
	"fmt"
)

// Driver errors
var (
	// ErrInvalidParameter indicates a nil handle, malformed DLC or other
	// argument the driver cannot act on.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrNotInitialized indicates an operation on an instance that has not
	// been opened yet.
	ErrNotInitialized = errors.New("instance not initialized")
	// ErrRegistryFull indicates the bounded instance registry is at capacity.
	ErrRegistryFull = errors.New("instance registry full")
	// ErrAlreadyRegistered indicates the transport is already bound to a
	// registered instance.
	ErrAlreadyRegistered = errors.New("transport already registered")
	// ErrBufferFull indicates the transmit schedule is at capacity.
	ErrBufferFull = errors.New("transmit schedule full")
	// ErrNotFound indicates a lookup or removal miss.
	ErrNotFound = errors.New("not found")
	// ErrOutOfRange indicates a payload access outside the 8-byte frame.
	ErrOutOfRange = errors.New("payload offset out of range")
	// ErrNotSupported indicates the transport lacks the requested capability.
	ErrNotSupported = errors.New("not supported by transport")
)

// Transport errors
var (
	// ErrTransportBusy is transient: the peripheral has no free send slot.
	ErrTransportBusy = errors.New("transport busy")
	// ErrTransportTimeout indicates a transport operation timed out.
	ErrTransportTimeout = errors.New("transport timeout")
	// ErrTransportSend indicates a non-transient hardware send failure.
	ErrTransportSend = errors.New("transport send failed")
	// ErrTransportReceive indicates a hardware receive failure.
	ErrTransportReceive = errors.New("transport receive failed")
	// ErrTransportClosed indicates the transport connection was closed.
	ErrTransportClosed = errors.New("transport closed")
)

// ErrorType categorizes errors for retry decisions
type ErrorType int

const (
	// ErrorTypePermanent indicates an error that will not resolve by retrying
	ErrorTypePermanent ErrorType = iota
	// ErrorTypeTransient indicates an error that may resolve on a later tick
	ErrorTypeTransient
	// ErrorTypeTimeout indicates a timeout error
	ErrorTypeTimeout
)

// TransportError wraps transport failures with operation context
type TransportError struct {
	// Err is the underlying error
	Err error
	// Op is the operation that failed (e.g. "send", "receive", "start")
	Op string
	// Bus identifies the peripheral (e.g. "can0", "/dev/ttyACM0")
	Bus string
	// Type categorizes the error
	Type ErrorType
	// Retryable reports whether retrying the operation may succeed
	Retryable bool
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.Bus != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Bus, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a transport error with the given classification
func NewTransportError(op, bus string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Bus:       bus,
		Err:       err,
		Type:      errType,
		Retryable: errType != ErrorTypePermanent,
	}
}

// NewTimeoutError creates a retryable timeout error
func NewTimeoutError(op, bus string) *TransportError {
	return &TransportError{
		Op:        op,
		Bus:       bus,
		Err:       ErrTransportTimeout,
		Type:      ErrorTypeTimeout,
		Retryable: true,
	}
}

// NewBusyError creates a retryable busy error for a full send FIFO
func NewBusyError(op, bus string) *TransportError {
	return &TransportError{
		Op:        op,
		Bus:       bus,
		Err:       ErrTransportBusy,
		Type:      ErrorTypeTransient,
		Retryable: true,
	}
}

// IsRetryable returns true if the error may resolve by retrying on a
// later tick
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrTransportBusy),
		errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportSend),
		errors.Is(err, ErrTransportReceive):
		return true
	default:
		return false
	}
}

// GetErrorType returns the classification of an error
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type
	}

	switch {
	case errors.Is(err, ErrTransportTimeout):
		return ErrorTypeTimeout
	case errors.Is(err, ErrTransportBusy),
		errors.Is(err, ErrTransportSend),
		errors.Is(err, ErrTransportReceive):
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}
