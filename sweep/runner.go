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

package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/go-aip"
	"github.com/ZaparooProject/go-aip/radio"
)

// Timing defaults
const (
	// DefaultDwell is how long each beam is held when there is no receiver
	DefaultDwell = 100 * time.Millisecond
	// DefaultStreamLead delays the start of streaming so the first
	// samples are not lost while the receiver spins up
	DefaultStreamLead = time.Second
	// DisableTimeout bounds the disable sent on the way out, which runs
	// even when the sweep's context is already cancelled
	DisableTimeout = 2 * time.Second
)

// Array is the part of *aip.Device a sweep drives.
type Array interface {
	Init(ctx context.Context) error
	ApplyBeam(ctx context.Context, cfg aip.BeamConfig) error
	ApplyBeamFast(ctx context.Context, cfg aip.BeamConfig) error
	DisableBeam(ctx context.Context) error
	PortName() string
}

var _ Array = (*aip.Device)(nil)

// Config holds the settings shared by Runner and JointRunner.
type Config struct {
	// Clock stamps annotations and paces dwell; required
	Clock radio.Clock
	// Receiver, when set, is streamed from for SamplesPerBeam samples per beam
	Receiver radio.Receiver
	// Transmitter, when set, streams Waveforms for the whole sweep
	Transmitter radio.Transmitter
	// Recorder, when set, receives annotations and samples
	Recorder *Recorder
	// OnBeam is called after each beam with its statistics
	OnBeam    func(BeamStats)
	Waveforms [][]complex64
	// Warmup configs are applied with the full sequence before Init
	Warmup         []aip.BeamConfig
	SamplesPerBeam int
	Dwell          time.Duration
	StreamLead     time.Duration
	// FullApply uses ApplyBeam for every beam instead of ApplyBeamFast
	FullApply bool
}

func (c *Config) validate() error {
	if c.Clock == nil {
		return errors.New("sweep clock is nil")
	}
	if c.Receiver != nil && c.SamplesPerBeam <= 0 {
		return fmt.Errorf("samples per beam must be positive, got %d", c.SamplesPerBeam)
	}
	if c.Transmitter != nil && len(c.Waveforms) == 0 {
		return errors.New("transmitter set without waveforms")
	}
	return nil
}

func (c *Config) dwell() time.Duration {
	if c.Dwell > 0 {
		return c.Dwell
	}
	return DefaultDwell
}

func (c *Config) streamLead() time.Duration {
	if c.StreamLead > 0 {
		return c.StreamLead
	}
	return DefaultStreamLead
}

// Runner sweeps a single array.
type Runner struct {
	array    Array
	template aip.BeamConfig
	config   Config
}

// NewRunner creates a runner. template supplies masks, gains and mode for
// every beam.
func NewRunner(array Array, template aip.BeamConfig, config Config) (*Runner, error) {
	if array == nil {
		return nil, errors.New("array is nil")
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Runner{array: array, template: template, config: config}, nil
}

// Run applies each beam of plan in turn. Every beam config is validated
// before the array is touched. The array is always disabled before Run
// returns, including on error or cancellation.
func (r *Runner) Run(ctx context.Context, plan []Beam) (summary Summary, err error) {
	for _, b := range plan {
		if verr := b.Config(r.template).Validate(); verr != nil {
			return summary, fmt.Errorf("beam %s: %w", b, verr)
		}
	}

	defer func() {
		err = errors.Join(err, disable(ctx, r.array))
	}()

	s, err := newSession(ctx, &r.config, r.array)
	if err != nil {
		return summary, err
	}
	defer func() {
		err = errors.Join(err, s.close())
	}()

	for _, b := range plan {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		cfg := b.Config(r.template)
		aip.Debugf("%s: beam %s", r.array.PortName(), b)
		if err := apply(ctx, r.array, cfg, r.config.FullApply); err != nil {
			return summary, fmt.Errorf("apply beam %s: %w", b, err)
		}

		stats, err := s.capture(ctx, Annotation{Label: LabelArray, Beam: b})
		if err != nil {
			return summary, err
		}
		stats.Beam = b
		summary.Beams = append(summary.Beams, stats)
		if r.config.OnBeam != nil {
			r.config.OnBeam(stats)
		}
	}
	return summary, nil
}

// JointRunner sweeps a transmit and a receive array against each other: for
// every transmit beam the receive array runs its whole plan.
type JointRunner struct {
	tx         Array
	rx         Array
	txTemplate aip.BeamConfig
	rxTemplate aip.BeamConfig
	config     Config
}

// NewJointRunner creates a joint runner.
func NewJointRunner(tx, rx Array, txTemplate, rxTemplate aip.BeamConfig, config Config) (*JointRunner, error) {
	if tx == nil || rx == nil {
		return nil, errors.New("both arrays are required")
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &JointRunner{tx: tx, rx: rx, txTemplate: txTemplate, rxTemplate: rxTemplate, config: config}, nil
}

// Run sweeps txPlan × rxPlan. Annotations carry both beams, stamped with the
// receive clock when the receive beam was set. Both arrays are always
// disabled before Run returns.
func (j *JointRunner) Run(ctx context.Context, txPlan, rxPlan []Beam) (summary Summary, err error) {
	for _, b := range txPlan {
		if verr := b.Config(j.txTemplate).Validate(); verr != nil {
			return summary, fmt.Errorf("tx beam %s: %w", b, verr)
		}
	}
	for _, b := range rxPlan {
		if verr := b.Config(j.rxTemplate).Validate(); verr != nil {
			return summary, fmt.Errorf("rx beam %s: %w", b, verr)
		}
	}

	defer func() {
		err = errors.Join(err, disable(ctx, j.tx), disable(ctx, j.rx))
	}()

	s, err := newSession(ctx, &j.config, j.tx, j.rx)
	if err != nil {
		return summary, err
	}
	defer func() {
		err = errors.Join(err, s.close())
	}()

	for _, txBeam := range txPlan {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		aip.Debugf("%s: tx beam %s", j.tx.PortName(), txBeam)
		if err := apply(ctx, j.tx, txBeam.Config(j.txTemplate), j.config.FullApply); err != nil {
			return summary, fmt.Errorf("apply tx beam %s: %w", txBeam, err)
		}

		for _, rxBeam := range rxPlan {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			aip.Debugf("%s: rx beam %s", j.rx.PortName(), rxBeam)
			if err := apply(ctx, j.rx, rxBeam.Config(j.rxTemplate), j.config.FullApply); err != nil {
				return summary, fmt.Errorf("apply rx beam %s: %w", rxBeam, err)
			}

			stats, err := s.capture(ctx,
				Annotation{Label: LabelTxArray, Beam: txBeam},
				Annotation{Label: LabelRxArray, Beam: rxBeam},
			)
			if err != nil {
				return summary, err
			}
			tx := txBeam
			stats.Tx = &tx
			stats.Beam = rxBeam
			summary.Beams = append(summary.Beams, stats)
			if j.config.OnBeam != nil {
				j.config.OnBeam(stats)
			}
		}
	}
	return summary, nil
}

func apply(ctx context.Context, array Array, cfg aip.BeamConfig, full bool) error {
	if full {
		return array.ApplyBeam(ctx, cfg)
	}
	return array.ApplyBeamFast(ctx, cfg)
}

// disable turns an array off on a context that survives cancellation of the
// sweep.
func disable(ctx context.Context, array Array) error {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DisableTimeout)
	defer cancel()
	if err := array.DisableBeam(dctx); err != nil {
		return fmt.Errorf("disable %s: %w", array.PortName(), err)
	}
	return nil
}

// session owns the radio side of a sweep: the background transmitter and
// the receive stream.
type session struct {
	config   *Config
	cancel   context.CancelFunc
	txErr    chan error
	buf      []complex64
	wg       sync.WaitGroup
	started  bool
	closeErr error
}

// newSession warms up and initialises the arrays, then starts the radio.
func newSession(ctx context.Context, config *Config, arrays ...Array) (*session, error) {
	for _, array := range arrays {
		for _, cfg := range config.Warmup {
			if err := array.ApplyBeam(ctx, cfg); err != nil {
				return nil, fmt.Errorf("warm up %s: %w", array.PortName(), err)
			}
		}
	}
	for _, array := range arrays {
		if err := array.Init(ctx); err != nil {
			return nil, fmt.Errorf("init %s: %w", array.PortName(), err)
		}
	}

	s := &session{config: config, cancel: func() {}}
	if config.Transmitter != nil {
		txCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		s.txErr = make(chan error, 1)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.txErr <- radio.TransmitWorker(txCtx, config.Transmitter, config.Waveforms)
		}()
	}
	if config.Receiver != nil {
		at := config.Clock.Now() + config.streamLead()
		if err := config.Receiver.StartStreaming(ctx, at); err != nil {
			_ = s.close()
			return nil, fmt.Errorf("start streaming: %w", err)
		}
		s.started = true
		s.buf = make([]complex64, max(config.Receiver.MaxSamplesPerBuffer(), 1))
	}
	return s, nil
}

// capture annotates the current beam and then receives its samples, or
// holds the beam for the dwell time when there is no receiver.
func (s *session) capture(ctx context.Context, annotations ...Annotation) (BeamStats, error) {
	now := s.config.Clock.Now()
	stats := BeamStats{Start: now}

	if err := s.transmitFailed(); err != nil {
		return stats, err
	}

	rec := s.config.Recorder
	if rec != nil {
		if err := rec.BeginBeam(now, annotations...); err != nil {
			return stats, err
		}
	}

	if s.config.Receiver == nil {
		err := radio.SleepUntil(ctx, s.config.Clock, now+s.config.dwell(), radio.DefaultSleepResolution)
		if rec != nil {
			err = errors.Join(err, rec.EndBeam())
		}
		return stats, err
	}

	var acc powerAccumulator
	for acc.n < s.config.SamplesPerBeam {
		want := min(len(s.buf), s.config.SamplesPerBeam-acc.n)
		n, md, err := s.config.Receiver.Recv(ctx, s.buf[:want])
		if err != nil {
			return stats, fmt.Errorf("receive: %w", err)
		}
		if md.Err == radio.RxErrorTimeout {
			aip.Debugf("receiver timed out after %d samples", acc.n)
			stats.Truncated = true
			break
		}
		if md.Err != radio.RxErrorNone {
			return stats, &radio.RxError{Code: md.Err}
		}
		if rec != nil {
			if err := rec.WriteSamples(s.buf[:n]); err != nil {
				return stats, err
			}
		}
		acc.add(s.buf[:n])
	}
	acc.fill(&stats)

	if rec != nil {
		if err := rec.EndBeam(); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (s *session) transmitFailed() error {
	if s.txErr == nil {
		return nil
	}
	select {
	case err := <-s.txErr:
		s.txErr = nil
		if err != nil {
			return fmt.Errorf("transmitter stopped: %w", err)
		}
		return errors.New("transmitter stopped")
	default:
		return nil
	}
}

// close stops streaming and waits for the transmitter to exit.
func (s *session) close() error {
	if s.started {
		ctx, cancel := context.WithTimeout(context.Background(), DisableTimeout)
		defer cancel()
		if err := s.config.Receiver.StopStreaming(ctx); err != nil {
			s.closeErr = fmt.Errorf("stop streaming: %w", err)
		}
		s.started = false
	}
	s.cancel()
	s.wg.Wait()
	return s.closeErr
}
