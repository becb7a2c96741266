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

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-aip"
	"github.com/ZaparooProject/go-aip/config"
	"github.com/ZaparooProject/go-aip/radio"
	"github.com/ZaparooProject/go-aip/sweep"
)

// disableTimeout bounds the disable sent after tx mode is interrupted
const disableTimeout = 2 * time.Second

func runPlan(opts *options) error {
	plan, err := opts.cfg.Plan()
	if err != nil {
		return err
	}
	tmpl, err := opts.cfg.BeamTemplate(aip.ModeRX)
	if err != nil {
		return err
	}
	for i, b := range plan {
		regs, err := aip.BuildRegisters(b.Config(tmpl))
		if err != nil {
			return fmt.Errorf("beam %s: %w", b, err)
		}
		_, _ = fmt.Fprintf(opts.out, "%3d  %-5s %-9s %6.2f°  %s %s %s %s\n",
			i, b.Direction, b.Steering, b.Angle(), regs[0], regs[1], regs[2], regs[3])
	}
	return nil
}

// arrayTestWarmup are the beams the array is cycled through, with the full
// sequence, before a test sweep.
func arrayTestWarmup(tmpl aip.BeamConfig) []aip.BeamConfig {
	warm := func(dir aip.Direction) aip.BeamConfig {
		return sweep.Beam{Direction: dir, Steering: aip.Deg0}.Config(tmpl)
	}
	return []aip.BeamConfig{warm(aip.DirectionUp), warm(aip.DirectionUp), warm(aip.DirectionLeft)}
}

// runArrayTest checks an array by eye: it steps the receive beam across the
// first configured direction, holding each step for the dwell time.
func runArrayTest(ctx context.Context, opts *options) error {
	cfg := opts.cfg
	dirs, err := cfg.Directions()
	if err != nil {
		return err
	}
	plan, err := sweep.Plan(dirs[:1], cfg.Sweep.Degrees)
	if err != nil {
		return err
	}
	tmpl, err := cfg.BeamTemplate(aip.ModeRX)
	if err != nil {
		return err
	}

	device, err := connectToArray(ctx, opts, cfg.Serial.TxPort, aip.WithoutInit())
	if err != nil {
		return err
	}
	defer closeDevice(device)

	runner, err := sweep.NewRunner(device, tmpl, sweep.Config{
		Clock:     radio.NewSystemClock(),
		Dwell:     cfg.Sweep.Dwell,
		Warmup:    arrayTestWarmup(tmpl),
		FullApply: cfg.Sweep.FullApply,
		OnBeam:    printBeam(opts),
	})
	if err != nil {
		return err
	}
	_, err = runner.Run(ctx, plan)
	return err
}

// newSweepConfig builds the radio side of a sweep for the selected backend.
// waveforms, when set, are streamed on a transmitter for the whole sweep.
func newSweepConfig(opts *options, waveforms [][]complex64) sweep.Config {
	cfg := opts.cfg
	sc := sweep.Config{
		Dwell:      cfg.Sweep.Dwell,
		FullApply:  cfg.Sweep.FullApply,
		StreamLead: cfg.Radio.StreamLead,
		OnBeam:     printBeam(opts),
	}
	if opts.radio == radioNone {
		sc.Clock = radio.NewSystemClock()
		return sc
	}

	rx := newSimulatedRadio(cfg)
	sc.Clock = rx
	sc.Receiver = rx
	sc.SamplesPerBeam = cfg.Sweep.SamplesPerBeam
	if len(waveforms) > 0 {
		sc.Transmitter = newSimulatedRadio(cfg, radio.WithThrottle())
		sc.Waveforms = waveforms
	}
	return sc
}

// jointWaveforms is the baseband packet on channel 0 and the LO on channel 1.
func jointWaveforms() [][]complex64 {
	return [][]complex64{radio.BasebandPacket(1), radio.LOSignal(radio.PacketLength)}
}

func newSimulatedRadio(cfg *config.Config, extra ...radio.SimulatedOption) *radio.Simulated {
	opts := append([]radio.SimulatedOption{
		radio.WithSampleRate(cfg.Radio.SampleRate),
		radio.WithSamplesPerBuffer(cfg.Radio.SamplesPerBuf),
	}, extra...)
	return radio.NewSimulated(opts...)
}

func openRecorder(opts *options) (*sweep.Recorder, error) {
	var recOpts []sweep.RecorderOption
	if opts.cfg.Output.Header {
		recOpts = append(recOpts, sweep.WithHeader())
	}
	rec, err := sweep.CreateRecorder(opts.cfg.Output.File, recOpts...)
	if err != nil {
		return nil, err
	}
	aip.Debugf("capture %s -> %s", rec.RunID(), opts.cfg.Output.File)
	return rec, nil
}

func printBeam(opts *options) func(sweep.BeamStats) {
	return func(s sweep.BeamStats) {
		prefix := ""
		if s.Tx != nil {
			prefix = fmt.Sprintf("Tx %s / Rx ", s.Tx)
		}
		line := fmt.Sprintf("%s%s degrees at time %.6f", prefix, s.Beam, s.Start.Seconds())
		if s.Samples > 0 {
			line += fmt.Sprintf(": %d samples, %.1f dBFS", s.Samples, s.MeanPowerDB())
		}
		if s.Truncated {
			line += " (receiver timed out)"
		}
		_, _ = fmt.Fprintln(opts.out, line)
	}
}

func printSummary(opts *options, summary sweep.Summary) {
	best, ok := summary.Best()
	if !ok || summary.TotalSamples() == 0 {
		return
	}
	mean, std := summary.PowerSpread()
	_, _ = fmt.Fprintf(opts.out, "Strongest beam: %s (%.1f dBFS); mean power %.3g, spread %.3g\n",
		best.Beam, best.MeanPowerDB(), mean, std)
}

func runRx(ctx context.Context, opts *options) (err error) {
	cfg := opts.cfg
	plan, err := cfg.Plan()
	if err != nil {
		return err
	}
	tmpl, err := cfg.BeamTemplate(aip.ModeRX)
	if err != nil {
		return err
	}
	// the receive array's mixer needs the LO while it listens
	sc := newSweepConfig(opts, [][]complex64{radio.LOSignal(radio.PacketLength)})

	rec, err := openRecorder(opts)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, rec.Close()) }()
	sc.Recorder = rec

	device, err := connectToArray(ctx, opts, cfg.Serial.TxPort, aip.WithoutInit())
	if err != nil {
		return err
	}
	defer closeDevice(device)

	runner, err := sweep.NewRunner(device, tmpl, sc)
	if err != nil {
		return err
	}
	summary, err := runner.Run(ctx, plan)
	printSummary(opts, summary)
	return err
}

func runJoint(ctx context.Context, opts *options) (err error) {
	cfg := opts.cfg
	plan, err := cfg.Plan()
	if err != nil {
		return err
	}
	txTmpl, err := cfg.BeamTemplate(aip.ModeTX)
	if err != nil {
		return err
	}
	rxTmpl, err := cfg.BeamTemplate(aip.ModeRX)
	if err != nil {
		return err
	}
	sc := newSweepConfig(opts, jointWaveforms())

	rec, err := openRecorder(opts)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, rec.Close()) }()
	sc.Recorder = rec

	txDevice, err := connectToArray(ctx, opts, cfg.Serial.TxPort, aip.WithoutInit())
	if err != nil {
		return err
	}
	defer closeDevice(txDevice)
	rxDevice, err := connectToArray(ctx, opts, cfg.Serial.RxPort, aip.WithoutInit())
	if err != nil {
		return err
	}
	defer closeDevice(rxDevice)

	joint, err := sweep.NewJointRunner(txDevice, rxDevice, txTmpl, rxTmpl, sc)
	if err != nil {
		return err
	}
	summary, err := joint.Run(ctx, plan, plan)
	printSummary(opts, summary)
	return err
}

// txBeam resolves the beam tx mode holds.
func txBeam(opts *options) (aip.BeamConfig, error) {
	tmpl, err := opts.cfg.BeamTemplate(aip.ModeTX)
	if err != nil {
		return tmpl, err
	}
	steering, err := aip.ParseSteeringIndex(opts.steering)
	if err != nil {
		return tmpl, err
	}
	var dir aip.Direction
	if opts.direction != "" {
		dir, err = aip.ParseDirection(opts.direction)
	} else {
		var dirs []aip.Direction
		dirs, err = opts.cfg.Directions()
		if err == nil {
			dir = dirs[0]
		}
	}
	if err != nil {
		return tmpl, err
	}
	cfg := sweep.Beam{Direction: dir, Steering: steering}.Config(tmpl)
	return cfg, cfg.Validate()
}

// runTx holds one transmit beam, streaming the baseband packet and LO when a
// radio is attached, until interrupted or the duration runs out.
func runTx(ctx context.Context, opts *options) (err error) {
	beam, err := txBeam(opts)
	if err != nil {
		return err
	}

	device, err := connectToArray(ctx, opts, opts.cfg.Serial.TxPort, aip.WithoutInit())
	if err != nil {
		return err
	}
	defer closeDevice(device)
	defer func() {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disableTimeout)
		defer cancel()
		err = errors.Join(err, device.DisableBeam(dctx))
	}()

	if err := device.ApplyBeam(ctx, beam); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(opts.out, "Transmitting on %s. Press Ctrl+C to stop...\n", beam)

	holdCtx := ctx
	if opts.duration > 0 {
		var cancel context.CancelFunc
		holdCtx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	if opts.radio == radioSim {
		tx := newSimulatedRadio(opts.cfg, radio.WithThrottle())
		if err := radio.TransmitWorker(holdCtx, tx, jointWaveforms()); err != nil {
			return err
		}
	} else {
		<-holdCtx.Done()
	}
	return ctx.Err()
}

func runDisable(ctx context.Context, opts *options) error {
	ports := []string{opts.cfg.Serial.TxPort}
	if opts.disableRx {
		ports = append(ports, opts.cfg.Serial.RxPort)
	}

	var errs []error
	for _, port := range ports {
		device, err := connectToArray(ctx, opts, port, aip.WithoutInit())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := device.DisableBeam(ctx); err != nil {
			errs = append(errs, err)
		} else {
			_, _ = fmt.Fprintf(opts.out, "Disabled %s\n", port)
		}
		closeDevice(device)
	}
	return errors.Join(errs...)
}
