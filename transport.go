// go-aip
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-aip.
//
// go-aip is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-aip is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-aip; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package aip

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ZaparooProject/go-aip/internal/frame"
)

// Transport defines the half-duplex link to one array.
// The UART backend in transport/uart is the only hardware implementation.
type Transport interface {
	// Exchange writes one framed command and returns every byte the array
	// sends back before the link goes idle. A silent link yields an empty
	// response and no error.
	Exchange(ctx context.Context, cmd []byte) ([]byte, error)

	// Close closes the transport connection
	Close() error

	// SetTimeout sets the idle timeout that ends a response
	SetTimeout(timeout time.Duration) error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents UART/serial transport.
	TransportUART TransportType = "uart"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// PortNamer is implemented by transports that know their port path. It is
// used to label errors and traces.
type PortNamer interface {
	PortName() string
}

// MockTransport provides a scripted implementation of Transport for testing.
// Unknown commands are answered with the default response, AMO:ok.
type MockTransport struct {
	responses       map[string][]byte
	callCount       map[string]int
	errorMap        map[string]error
	defaultResponse []byte
	commands        []string
	timeout         time.Duration
	delay           time.Duration
	mu              sync.RWMutex
	connected       bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		connected:       true,
		timeout:         20 * time.Millisecond,
		responses:       make(map[string][]byte),
		callCount:       make(map[string]int),
		errorMap:        make(map[string]error),
		defaultResponse: []byte(AckOK + "\r\n"),
	}
}

// Exchange implements Transport
func (m *MockTransport) Exchange(ctx context.Context, cmd []byte) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	m.mu.RLock()
	connected := m.connected
	delay := m.delay
	m.mu.RUnlock()

	if !connected {
		return nil, ErrTransportClosed
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	text := frame.DecodeCommand(cmd)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount[text]++
	m.commands = append(m.commands, text)

	if err, exists := m.errorMap[text]; exists {
		return nil, err
	}
	if response, exists := m.responses[text]; exists {
		return append([]byte(nil), response...), nil
	}
	return append([]byte(nil), m.defaultResponse...), nil
}

// Close implements Transport
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

// SetTimeout implements Transport
func (m *MockTransport) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	m.mu.Lock()
	m.timeout = timeout
	m.mu.Unlock()
	return nil
}

// Timeout returns the last timeout set
func (m *MockTransport) Timeout() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.timeout
}

// IsConnected implements Transport
func (m *MockTransport) IsConnected() bool {
	m.mu.RLock()
	connected := m.connected
	m.mu.RUnlock()
	return connected
}

// Type implements Transport
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// PortName implements PortNamer
func (*MockTransport) PortName() string {
	return "mock"
}

// Test helper methods

// SetResponse configures the reply to a command, given without terminator
func (m *MockTransport) SetResponse(cmd string, response []byte) {
	m.mu.Lock()
	m.responses[cmd] = response
	m.mu.Unlock()
}

// SetDefaultResponse configures the reply to commands with no scripted response
func (m *MockTransport) SetDefaultResponse(response []byte) {
	m.mu.Lock()
	m.defaultResponse = response
	m.mu.Unlock()
}

// SetError configures an error to be returned for a specific command
func (m *MockTransport) SetError(cmd string, err error) {
	m.mu.Lock()
	m.errorMap[cmd] = err
	m.mu.Unlock()
}

// ClearError removes error injection for a command
func (m *MockTransport) ClearError(cmd string) {
	m.mu.Lock()
	delete(m.errorMap, cmd)
	m.mu.Unlock()
}

// SetDelay configures a delay to simulate the idle timeout
func (m *MockTransport) SetDelay(delay time.Duration) {
	m.mu.Lock()
	m.delay = delay
	m.mu.Unlock()
}

// GetCallCount returns how many times a command was sent
func (m *MockTransport) GetCallCount(cmd string) int {
	m.mu.RLock()
	count := m.callCount[cmd]
	m.mu.RUnlock()
	return count
}

// Commands returns every command sent so far, in order, without terminators
func (m *MockTransport) Commands() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.commands...)
}

// Reset clears the command log and call counts and reconnects the mock
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.callCount = make(map[string]int)
	m.commands = nil
	m.connected = true
	m.mu.Unlock()
}
