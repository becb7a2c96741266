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
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/go-aip/internal/frame"
	"github.com/ZaparooProject/go-aip/internal/syncutil"
)

// AckPolicy controls how responses to beam commands are checked.
type AckPolicy int

const (
	// AckNone ignores responses entirely
	AckNone AckPolicy = iota
	// AckPresence tolerates silent commands but fails a sequence in which
	// every command went unanswered
	AckPresence
	// AckStrict requires every command to return its acknowledgement literal
	AckStrict
)

func (p AckPolicy) String() string {
	switch p {
	case AckNone:
		return "none"
	case AckPresence:
		return "presence"
	case AckStrict:
		return "strict"
	default:
		return fmt.Sprintf("AckPolicy(%d)", int(p))
	}
}

// ParseAckPolicy parses "none", "presence" or "strict".
func ParseAckPolicy(s string) (AckPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "off":
		return AckNone, nil
	case "presence":
		return AckPresence, nil
	case "strict", "":
		return AckStrict, nil
	default:
		return 0, fmt.Errorf("unknown ack policy %q", s)
	}
}

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// PortName labels errors, traces and log lines
	PortName string
	// AckPolicy selects response verification
	AckPolicy AckPolicy
	// IdleTimeout, when non-zero, is pushed to the transport on creation
	IdleTimeout time.Duration
	// TraceSize bounds the wire trace attached to errors
	TraceSize int
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		AckPolicy: AckStrict,
		TraceSize: 64,
	}
}

// Option configures a Device at creation
type Option func(*Device) error

// WithAckPolicy selects how command responses are verified
func WithAckPolicy(policy AckPolicy) Option {
	return func(d *Device) error {
		if policy < AckNone || policy > AckStrict {
			return fmt.Errorf("invalid ack policy %d", int(policy))
		}
		d.config.AckPolicy = policy
		return nil
	}
}

// WithIdleTimeout sets the per-read idle timeout that ends a response
func WithIdleTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		if timeout <= 0 {
			return fmt.Errorf("idle timeout must be positive, got %v", timeout)
		}
		d.config.IdleTimeout = timeout
		return nil
	}
}

// WithPortName labels the device in errors and logs
func WithPortName(name string) Option {
	return func(d *Device) error {
		d.config.PortName = name
		return nil
	}
}

// DeviceState is a snapshot of what the device last programmed.
type DeviceState struct {
	LastUpdate  time.Time
	Beam        *BeamConfig
	Temperature []string
	Registers   ChipRegisterSet
	Sequences   int
	Initialised bool
	TxEnabled   bool
	RxEnabled   bool
}

// Device drives one array over one link. All sequence methods are safe for
// concurrent use; each holds the device lock for its whole sequence so
// commands of two beams never interleave on the wire.
type Device struct {
	transport Transport
	config    *DeviceConfig
	state     DeviceState
	mu        syncutil.Mutex
	stateMu   syncutil.RWMutex
}

// New creates a device on an open transport
func New(transport Transport, opts ...Option) (*Device, error) {
	if transport == nil {
		return nil, errors.New("transport is nil")
	}
	device := &Device{
		transport: transport,
		config:    DefaultDeviceConfig(),
	}
	if namer, ok := transport.(PortNamer); ok {
		device.config.PortName = namer.PortName()
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	if device.config.IdleTimeout > 0 {
		if err := transport.SetTimeout(device.config.IdleTimeout); err != nil {
			return nil, fmt.Errorf("failed to set idle timeout: %w", err)
		}
	}
	return device, nil
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.transport
}

// Config returns a copy of the device configuration
func (d *Device) Config() DeviceConfig {
	return *d.config
}

// PortName returns the label used for this device
func (d *Device) PortName() string {
	return d.config.PortName
}

// State returns a snapshot of the last programmed state
func (d *Device) State() DeviceState {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()

	s := d.state
	if s.Beam != nil {
		beam := *s.Beam
		s.Beam = &beam
	}
	s.Temperature = append([]string(nil), s.Temperature...)
	return s
}

// Init selects the array, loads its configuration and resets every chip.
// Sweeps call it once and then use ApplyBeamFast per beam.
func (d *Device) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.run(ctx, "init", initCommands()); err != nil {
		return err
	}
	d.updateState(func(s *DeviceState) {
		s.Initialised = true
	})
	return nil
}

// ApplyBeam programs and activates a beam with the full sequence: select and
// reset, program the four chip registers, poll temperature, then enable the
// chain for the requested mode. Registers are built before anything is
// written, so an invalid config fails without touching the link.
func (d *Device) ApplyBeam(ctx context.Context, cfg BeamConfig) error {
	regs, err := BuildRegisters(cfg)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cmds := beamSequence(regs, cfg.Mode)
	Debugf("%s: applying %s", d.config.PortName, cfg)
	responses, err := d.run(ctx, "apply beam", cmds)
	if err != nil {
		return err
	}

	d.commitBeam(cfg, regs, temperatureReadings(cmds, responses))
	return nil
}

// ApplyBeamFast programs and activates a beam on an array that has already
// been initialised, skipping the reset and temperature steps. On a device
// that has not been initialised it runs the init steps first.
func (d *Device) ApplyBeamFast(ctx context.Context, cfg BeamConfig) error {
	regs, err := BuildRegisters(cfg)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cmds := fastSequence(regs, cfg.Mode)
	if !d.State().Initialised {
		Debugf("%s: not initialised, running init before fast apply", d.config.PortName)
		cmds = append(initCommands(), cmds...)
	}

	Debugf("%s: fast applying %s", d.config.PortName, cfg)
	if _, err := d.run(ctx, "apply beam fast", cmds); err != nil {
		return err
	}

	d.commitBeam(cfg, regs, nil)
	return nil
}

// DisableBeam turns both RF chains off. It must run before the program exits
// so the array is not left radiating.
func (d *Device) DisableBeam(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.run(ctx, "disable beam", DisableSequence()); err != nil {
		return err
	}
	d.updateState(func(s *DeviceState) {
		s.TxEnabled = false
		s.RxEnabled = false
		s.Sequences++
		s.LastUpdate = time.Now()
	})
	return nil
}

// Shutdown disables the array and closes the link. The link is closed even
// when disabling fails; both errors are returned.
func (d *Device) Shutdown(ctx context.Context) error {
	disableErr := d.DisableBeam(ctx)
	closeErr := d.Close()
	return errors.Join(disableErr, closeErr)
}

// Close closes the device connection
func (d *Device) Close() error {
	if d.transport == nil {
		return nil
	}
	if err := d.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}

func (d *Device) commitBeam(cfg BeamConfig, regs ChipRegisterSet, temps []string) {
	d.updateState(func(s *DeviceState) {
		beam := cfg
		s.Beam = &beam
		s.Registers = regs
		s.Initialised = true
		s.TxEnabled = cfg.Mode == ModeTX
		s.RxEnabled = cfg.Mode == ModeRX
		if temps != nil {
			s.Temperature = temps
		}
		s.Sequences++
		s.LastUpdate = time.Now()
	})
}

func (d *Device) updateState(fn func(*DeviceState)) {
	d.stateMu.Lock()
	fn(&d.state)
	d.stateMu.Unlock()
}

// run sends cmds in order and returns their responses. It stops at the
// first failing command; the returned error carries the wire trace of the
// sequence so far.
func (d *Device) run(ctx context.Context, op string, cmds []Command) ([][]byte, error) {
	trace := NewTraceBuffer(string(d.transport.Type()), d.config.PortName, d.config.TraceSize)
	responses := make([][]byte, 0, len(cmds))
	answered := 0

	for _, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			return responses, trace.WrapError(fmt.Errorf("%s: %w", op, err))
		}
		resp, err := d.exchange(ctx, cmd, trace)
		if err != nil {
			Debugf("%s: %s failed at %s: %v", d.config.PortName, op, cmd.Text, err)
			return responses, trace.WrapError(fmt.Errorf("%s: %w", op, err))
		}
		if len(resp) > 0 {
			answered++
		}
		responses = append(responses, resp)
	}

	if d.config.AckPolicy == AckPresence && len(cmds) > 0 && answered == 0 {
		err := NewNotRespondingError(op, d.config.PortName)
		return responses, trace.WrapError(fmt.Errorf("%s: no command answered: %w", op, err))
	}
	return responses, nil
}

func (d *Device) exchange(ctx context.Context, cmd Command, trace *TraceBuffer) ([]byte, error) {
	port := d.config.PortName

	framed, err := frame.EncodeCommand(cmd.Text)
	if err != nil {
		return nil, NewTransportError(cmd.Text, port, err, ErrorTypePermanent)
	}

	trace.RecordTX(framed, string(cmd.Phase))
	resp, err := d.transport.Exchange(ctx, framed)
	if err != nil {
		trace.RecordRX(resp, "error: "+err.Error())
		return nil, classifyExchangeError(cmd.Text, port, err)
	}

	if len(resp) == 0 {
		trace.RecordTimeout(cmd.Text)
	} else {
		trace.RecordRX(resp, "")
	}
	Debugf("%s: %s -> %s", port, cmd.Text, formatWireBytes(resp))

	if d.config.AckPolicy != AckStrict {
		return resp, nil
	}
	if len(resp) == 0 {
		return resp, NewTimeoutError(cmd.Text, port)
	}
	if !frame.ContainsAck(resp, cmd.Ack.accepted()...) {
		return resp, NewNotRespondingError(cmd.Text, port)
	}
	return resp, nil
}

// classifyExchangeError wraps a raw transport failure, keeping context
// errors and already-classified errors intact.
func classifyExchangeError(op, port string, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if IsFatal(err) {
		return NewTransportError(op, port, err, ErrorTypePermanent)
	}
	return NewTransportError(op, port, err, ErrorTypeTransient)
}

// temperatureReadings collects the trimmed responses to the temperature poll.
func temperatureReadings(cmds []Command, responses [][]byte) []string {
	var out []string
	for i, cmd := range cmds {
		if cmd.Phase != PhaseTemperature || i >= len(responses) {
			continue
		}
		out = append(out, strings.Join(frame.SplitLines(responses[i]), " "))
	}
	return out
}
