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

package uart

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/ZaparooProject/go-aip"
	virt "github.com/ZaparooProject/go-aip/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// errPortClosed is returned when operations are attempted on a closed port
var errPortClosed = errors.New("port is closed")

// MockSerialPort wraps a simulated link to implement serial.Port. A read with
// nothing pending blocks for the read timeout and returns zero bytes, as a
// real port does.
type MockSerialPort struct {
	backend     io.ReadWriter
	sim         *virt.VirtualAiP
	drainErrs   []error
	writeErr    error
	readErr     error
	readTimeout time.Duration
	drains      int
	mu          sync.Mutex
	closed      bool
}

func NewMockSerialPort(sim *virt.VirtualAiP, backend io.ReadWriter) *MockSerialPort {
	if backend == nil {
		backend = sim
	}
	return &MockSerialPort{sim: sim, backend: backend, readTimeout: 100 * time.Millisecond}
}

func (*MockSerialPort) SetMode(_ *serial.Mode) error {
	return nil
}

func (m *MockSerialPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	closed, readErr, timeout := m.closed, m.readErr, m.readTimeout
	m.mu.Unlock()

	if closed {
		return 0, errPortClosed
	}
	if readErr != nil {
		return 0, readErr
	}
	n, err := m.backend.Read(p)
	if err != nil {
		return n, err //nolint:wrapcheck // mock
	}
	if n == 0 {
		time.Sleep(timeout)
	}
	return n, nil
}

func (m *MockSerialPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	closed, writeErr := m.closed, m.writeErr
	m.mu.Unlock()

	if closed {
		return 0, errPortClosed
	}
	if writeErr != nil {
		return 0, writeErr
	}
	return m.backend.Write(p) //nolint:wrapcheck // mock
}

func (m *MockSerialPort) Drain() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drains++
	if len(m.drainErrs) > 0 {
		err := m.drainErrs[0]
		m.drainErrs = m.drainErrs[1:]
		return err
	}
	return nil
}

func (m *MockSerialPort) ResetInputBuffer() error {
	m.sim.DiscardPending()
	return nil
}

func (*MockSerialPort) ResetOutputBuffer() error {
	return nil
}

func (*MockSerialPort) SetDTR(_ bool) error {
	return nil
}

func (*MockSerialPort) SetRTS(_ bool) error {
	return nil
}

func (*MockSerialPort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return &serial.ModemStatusBits{}, nil
}

func (m *MockSerialPort) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readTimeout = t
	return nil
}

func (m *MockSerialPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (*MockSerialPort) Break(_ time.Duration) error {
	return nil
}

var _ serial.Port = (*MockSerialPort)(nil)

func newTestTransport(t *testing.T, sim *virt.VirtualAiP, opts ...Option) (*Transport, *MockSerialPort) {
	t.Helper()
	port := NewMockSerialPort(sim, nil)
	transport, err := NewFromPort(port, "/dev/ttyUSB0", opts...)
	require.NoError(t, err)
	return transport, port
}

func TestMode(t *testing.T) {
	t.Parallel()

	mode := Mode()
	assert.Equal(t, 115200, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.NoParity, mode.Parity)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)
}

func TestNewFromPort(t *testing.T) {
	t.Parallel()

	_, err := NewFromPort(nil, "x")
	require.Error(t, err)

	transport, port := newTestTransport(t, virt.NewVirtualAiP(), WithIdleTimeout(5*time.Millisecond))
	assert.Equal(t, 5*time.Millisecond, transport.IdleTimeout())
	assert.Equal(t, 5*time.Millisecond, port.readTimeout)
	assert.Equal(t, "/dev/ttyUSB0", transport.PortName())
	assert.Equal(t, aip.TransportUART, transport.Type())
	assert.True(t, transport.IsConnected())

	transport, _ = newTestTransport(t, virt.NewVirtualAiP())
	assert.Equal(t, DefaultIdleTimeout, transport.IdleTimeout())
}

func TestExchange_ReturnsReply(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualAiP()
	transport, port := newTestTransport(t, sim)

	resp, err := transport.Exchange(context.Background(), []byte("AT+DUT=0158\r"))
	require.NoError(t, err)
	assert.Equal(t, "AMO:ok\r\n", string(resp))
	assert.Equal(t, []string{"AT+DUT=0158"}, sim.Commands())
	assert.Equal(t, 1, port.drains)
}

func TestExchange_SilentLinkTiming(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualAiP()
	sim.SetSilent(true)
	transport, _ := newTestTransport(t, sim)

	start := time.Now()
	resp, err := transport.Exchange(context.Background(), []byte("AT+DUT=0158\r"))
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Empty(t, resp)
	assert.GreaterOrEqual(t, elapsed, DefaultIdleTimeout)
	assert.Less(t, elapsed, 10*DefaultIdleTimeout)
}

func TestExchange_TrickledReplyIsReassembled(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualAiP()
	sim.SetTrickle(3)
	transport, _ := newTestTransport(t, sim)

	_, err := transport.Exchange(context.Background(), []byte("AT+DUT=0158\r"))
	require.NoError(t, err)
	for range 4 {
		_, err = transport.Exchange(context.Background(), []byte("AT+REG=0002000000000820\r"))
		require.NoError(t, err)
	}
	resp, err := transport.Exchange(context.Background(), []byte("AT+SEND?\r"))
	require.NoError(t, err)
	assert.Equal(t, aip.AckChipSetting+"\r\n", string(resp))
}

func TestExchange_JitteryLink(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualAiP()
	jittery := virt.NewJitteryConnection(sim, virt.JitterConfig{
		MaxLatency:    time.Millisecond,
		FragmentReads: true,
		Seed:          1234,
	})
	port := NewMockSerialPort(sim, jittery)
	transport, err := NewFromPort(port, "/dev/ttyUSB0")
	require.NoError(t, err)

	resp, err := transport.Exchange(context.Background(), []byte("AT+DUT=0158\r"))
	require.NoError(t, err)
	assert.Equal(t, "AMO:ok\r\n", string(resp))
}

func TestExchange_DiscardsStaleInput(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualAiP()
	transport, _ := newTestTransport(t, sim)

	// A reply nobody read.
	_, err := sim.Write([]byte("AT+DUT=0158\r"))
	require.NoError(t, err)
	require.Positive(t, sim.Pending())

	sim.SetReply("AT+TXEN=1", "TX ON\r\n")
	resp, err := transport.Exchange(context.Background(), []byte("AT+TXEN=1\r"))
	require.NoError(t, err)
	assert.Equal(t, "TX ON\r\n", string(resp))
}

func TestExchange_ResponseCap(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualAiP()
	sim.SetReply("AT+DUT=0158", strings.Repeat("x", 5000))
	transport, _ := newTestTransport(t, sim)

	_, err := transport.Exchange(context.Background(), []byte("AT+DUT=0158\r"))
	require.ErrorIs(t, err, aip.ErrDataTooLarge)
	assert.True(t, aip.IsFatal(err))
}

func TestExchange_Errors(t *testing.T) {
	t.Parallel()

	t.Run("cancelled context writes nothing", func(t *testing.T) {
		t.Parallel()
		sim := virt.NewVirtualAiP()
		transport, _ := newTestTransport(t, sim)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := transport.Exchange(ctx, []byte("AT+DUT=0158\r"))
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, sim.Commands())
	})

	t.Run("write error is transient", func(t *testing.T) {
		t.Parallel()
		transport, port := newTestTransport(t, virt.NewVirtualAiP())
		port.writeErr = errors.New("resource temporarily unavailable")

		_, err := transport.Exchange(context.Background(), []byte("AT+DUT=0158\r"))
		var te *aip.TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "write", te.Op)
		assert.True(t, aip.IsRetryable(err))
	})

	t.Run("unplugged adapter is fatal", func(t *testing.T) {
		t.Parallel()
		transport, port := newTestTransport(t, virt.NewVirtualAiP())
		port.readErr = syscall.EIO

		_, err := transport.Exchange(context.Background(), []byte("AT+DUT=0158\r"))
		require.ErrorIs(t, err, syscall.EIO)
		assert.True(t, aip.IsFatal(err))
	})

	t.Run("drain EINTR is retried", func(t *testing.T) {
		t.Parallel()
		transport, port := newTestTransport(t, virt.NewVirtualAiP())
		port.drainErrs = []error{errors.New("interrupted system call")}

		resp, err := transport.Exchange(context.Background(), []byte("AT+DUT=0158\r"))
		require.NoError(t, err)
		assert.Equal(t, "AMO:ok\r\n", string(resp))
		assert.Equal(t, 2, port.drains)
	})

	t.Run("drain failure", func(t *testing.T) {
		t.Parallel()
		transport, port := newTestTransport(t, virt.NewVirtualAiP())
		port.drainErrs = []error{errors.New("bad file descriptor")}

		_, err := transport.Exchange(context.Background(), []byte("AT+DUT=0158\r"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "drain failed")
	})
}

func TestClose(t *testing.T) {
	t.Parallel()

	transport, port := newTestTransport(t, virt.NewVirtualAiP())
	require.NoError(t, transport.Close())
	assert.True(t, port.closed)
	assert.False(t, transport.IsConnected())
	require.NoError(t, transport.Close())

	_, err := transport.Exchange(context.Background(), []byte("AT+DUT=0158\r"))
	require.ErrorIs(t, err, aip.ErrTransportClosed)
	require.ErrorIs(t, transport.SetTimeout(time.Millisecond), aip.ErrTransportClosed)
}

func TestSetTimeout(t *testing.T) {
	t.Parallel()

	transport, port := newTestTransport(t, virt.NewVirtualAiP())
	require.Error(t, transport.SetTimeout(0))
	require.NoError(t, transport.SetTimeout(7*time.Millisecond))
	assert.Equal(t, 7*time.Millisecond, transport.IdleTimeout())
	assert.Equal(t, 7*time.Millisecond, port.readTimeout)
}

func TestDevice_OverSimulatedArray(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualAiP()
	transport, _ := newTestTransport(t, sim, WithIdleTimeout(5*time.Millisecond))
	device, err := aip.New(transport)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", device.PortName())

	cfg := aip.DefaultBeamConfig(aip.Deg45, aip.DirectionLeft, aip.ModeTX)
	require.NoError(t, device.ApplyBeam(context.Background(), cfg))

	want, err := aip.Sequence(cfg)
	require.NoError(t, err)
	assert.Equal(t, aip.CommandTexts(want), sim.Commands())
	assert.Equal(t, []string{
		"0001000000410e38", "0001000000000a28", "0001000000a28000", "0001000000e38410",
	}, sim.Programmed())
	assert.True(t, sim.TxEnabled())
	assert.Equal(t, "TEMP:31.5 AMO:4 chip setting complite ok", device.State().Temperature[aip.NumChips])

	require.NoError(t, device.DisableBeam(context.Background()))
	assert.False(t, sim.TxEnabled())
	assert.False(t, sim.RxEnabled())
}

func TestDevice_StrictPolicyCatchesSilentChip(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualAiP()
	sim.SilenceCommand("AT+SEND?")
	transport, _ := newTestTransport(t, sim, WithIdleTimeout(2*time.Millisecond))
	device, err := aip.New(transport)
	require.NoError(t, err)

	err = device.ApplyBeam(context.Background(), aip.DefaultBeamConfig(aip.Deg0, aip.DirectionUp, aip.ModeRX))
	require.ErrorIs(t, err, aip.ErrTransportTimeout)
	trace := aip.GetTrace(err)
	require.NotNil(t, trace)
	assert.Equal(t, "/dev/ttyUSB0", trace.Port)
	assert.Equal(t, "uart", trace.Transport)
}
