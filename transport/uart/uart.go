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

// Package uart implements aip.Transport over a USB serial link.
package uart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ZaparooProject/go-aip"
	"github.com/ZaparooProject/go-aip/internal/frame"
	"go.bug.st/serial"
)

// BaudRate is the fixed line rate of the array's command port.
const BaudRate = 115200

// DefaultIdleTimeout ends a response once the link has been quiet this long.
const DefaultIdleTimeout = 20 * time.Millisecond

// Transport implements the aip.Transport interface for UART communication.
type Transport struct {
	port        serial.Port
	portName    string
	idleTimeout time.Duration
	mu          sync.Mutex
}

// Option configures a Transport
type Option func(*Transport)

// WithIdleTimeout overrides DefaultIdleTimeout
func WithIdleTimeout(timeout time.Duration) Option {
	return func(t *Transport) {
		if timeout > 0 {
			t.idleTimeout = timeout
		}
	}
}

// Mode returns the serial settings the array expects: 115200 baud, 8N1.
func Mode() *serial.Mode {
	return &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// New opens portName and returns a transport on it.
func New(portName string, opts ...Option) (*Transport, error) {
	port, err := serial.Open(portName, Mode())
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}

	t, err := NewFromPort(port, portName, opts...)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return t, nil
}

// NewFromPort wraps an already open serial port. Tests use it with a
// simulated port.
func NewFromPort(port serial.Port, portName string, opts ...Option) (*Transport, error) {
	if port == nil {
		return nil, errors.New("serial port is nil")
	}
	t := &Transport{
		port:        port,
		portName:    portName,
		idleTimeout: DefaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	if err := port.SetReadTimeout(t.idleTimeout); err != nil {
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}
	return t, nil
}

// Exchange writes one framed command, waits for it to leave the host, then
// collects the reply until the link goes idle. The context is checked before
// writing only: stopping halfway through a reply would leave its tail to be
// read as the answer to the next command.
func (t *Transport) Exchange(ctx context.Context, cmd []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil, aip.ErrTransportClosed
	}

	// Anything left over belongs to an earlier command.
	if err := t.port.ResetInputBuffer(); err != nil {
		return nil, t.wrapError("reset input", err)
	}

	n, err := t.port.Write(cmd)
	if err != nil {
		return nil, t.wrapError("write", err)
	}
	if n != len(cmd) {
		return nil, aip.NewTransportWriteError(fmt.Sprintf("short write %d/%d", n, len(cmd)), t.portName)
	}

	if err := t.drainWithRetry("write"); err != nil {
		return nil, t.wrapError("drain", err)
	}

	return t.readUntilIdle()
}

// readUntilIdle reads with the idle timeout until one read returns nothing.
func (t *Transport) readUntilIdle() ([]byte, error) {
	buf := frame.GetReadBuffer()
	defer frame.PutReadBuffer(buf)

	var resp []byte
	for {
		n, err := t.port.Read(buf)
		if err != nil {
			return resp, t.wrapError("read", err)
		}
		if n == 0 {
			return resp, nil
		}
		if len(resp)+n > frame.MaxResponseSize {
			return resp, aip.NewDataTooLargeError("read", t.portName)
		}
		resp = append(resp, buf[:n]...)
	}
}

// SetTimeout sets the idle timeout that ends a response
func (t *Transport) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("UART idle timeout must be positive, got %v", timeout)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return aip.ErrTransportClosed
	}
	if err := t.port.SetReadTimeout(timeout); err != nil {
		return fmt.Errorf("UART set timeout failed: %w", err)
	}
	t.idleTimeout = timeout
	return nil
}

// IdleTimeout returns the current idle timeout
func (t *Transport) IdleTimeout() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.idleTimeout
}

// Close closes the transport connection. Closing twice is a no-op.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

// IsConnected returns true if the transport is connected
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// Type returns the transport type
func (*Transport) Type() aip.TransportType {
	return aip.TransportUART
}

// PortName returns the path the transport was opened on
func (t *Transport) PortName() string {
	return t.portName
}

func (t *Transport) wrapError(op string, err error) error {
	errType := aip.ErrorTypeTransient
	if aip.IsFatal(err) {
		errType = aip.ErrorTypePermanent
	}
	return aip.NewTransportError(op, t.portName, err, errType)
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

// drainWithRetry waits for the output buffer to empty, retrying interrupted
// system calls with a short backoff.
func (t *Transport) drainWithRetry(operation string) error {
	const maxRetries = 3
	baseDelay := 2 * time.Millisecond

	for attempt := range maxRetries {
		err := t.port.Drain()
		if err == nil {
			return nil
		}
		if isInterruptedSystemCall(err) && attempt < maxRetries-1 {
			time.Sleep(baseDelay * time.Duration(1<<attempt))
			continue
		}
		return fmt.Errorf("UART %s drain failed: %w", operation, err)
	}
	return fmt.Errorf("UART %s drain failed after %d retries", operation, maxRetries)
}

var (
	_ aip.Transport = (*Transport)(nil)
	_ aip.PortNamer = (*Transport)(nil)
)
