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
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ZaparooProject/go-aip"
	"github.com/ZaparooProject/go-aip/config"
	"github.com/ZaparooProject/go-aip/detection"
	"github.com/ZaparooProject/go-aip/transport/uart"
)

// Modes
const (
	modeArrayTest = "array-test"
	modeTx        = "tx"
	modeRx        = "rx"
	modeJoint     = "joint"
	modeDisable   = "disable"
	modePlan      = "plan"
)

// Radio backends
const (
	radioNone = "none"
	radioSim  = "sim"
)

type options struct {
	cfg        *config.Config
	out        io.Writer
	transports *transportSet
	mode       string
	radio      string
	direction  string
	steering   string
	logDir     string
	duration   time.Duration
	disableRx  bool
	autoDetect bool
	dryRun     bool
}

// Package-level flag variables
var (
	flagConfig       string
	flagSerialPort   string
	flagSerialPortTx string
	flagSerialPortRx string
	flagMode         string
	flagOutput       string
	flagRadio        string
	flagDirection    string
	flagSteering     string
	flagLogDir       string
	flagDuration     time.Duration
	flagDebug        bool
	flagDryRun       bool
	flagAutoDetect   bool
)

func init() {
	flag.StringVar(&flagConfig, "config", "", "Config file (searches /etc/aip, ~/.config/aip and . if empty)")
	flag.StringVar(&flagSerialPort, "serialport", "", "Serial port of the array (single-array modes)")
	flag.StringVar(&flagSerialPortTx, "serialport-tx", "", "Serial port of the Tx array (joint mode)")
	flag.StringVar(&flagSerialPortRx, "serialport-rx", "", "Serial port of the Rx array (joint mode)")
	flag.StringVar(&flagMode, "mode", modeArrayTest,
		"One of array-test, tx, rx, joint, disable, plan")
	flag.StringVar(&flagOutput, "output", "", "Capture file for rx and joint modes")
	flag.StringVar(&flagRadio, "radio", radioNone, "Radio backend: none (dwell only) or sim")
	flag.StringVar(&flagDirection, "direction", "", "Beam direction for tx mode (first sweep direction if empty)")
	flag.StringVar(&flagSteering, "steering", "DEG_0", "Steering index for tx mode")
	flag.DurationVar(&flagDuration, "duration", 0, "How long tx mode holds the beam (until interrupted if zero)")
	flag.StringVar(&flagLogDir, "log-dir", "", "Write a debug session log into this directory")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
	flag.BoolVar(&flagDryRun, "dry-run", false, "Print the commands that would be sent instead of opening ports")
	flag.BoolVar(&flagAutoDetect, "auto", false, "Auto-detect the array port (single-array modes)")
}

func parseOptions(out io.Writer) (*options, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	if flagSerialPort != "" {
		cfg.Serial.TxPort = flagSerialPort
	}
	if flagSerialPortTx != "" {
		cfg.Serial.TxPort = flagSerialPortTx
	}
	if flagSerialPortRx != "" {
		cfg.Serial.RxPort = flagSerialPortRx
	}
	if flagOutput != "" {
		cfg.Output.File = flagOutput
	}
	if flagDebug {
		cfg.Debug = true
	}
	if cfg.Debug {
		aip.SetDebugEnabled(true)
	}

	opts := &options{
		cfg:        cfg,
		out:        out,
		mode:       strings.ToLower(flagMode),
		radio:      strings.ToLower(flagRadio),
		direction:  flagDirection,
		steering:   flagSteering,
		logDir:     flagLogDir,
		duration:   flagDuration,
		disableRx:  flagSerialPortRx != "",
		autoDetect: flagAutoDetect,
		dryRun:     flagDryRun,
	}
	if opts.radio != radioNone && opts.radio != radioSim {
		return nil, fmt.Errorf("unknown radio backend %q", flagRadio)
	}
	opts.transports = newTransportSet(opts.dryRun)
	return opts, nil
}

// transportSet opens links to arrays. In dry-run mode every link is a mock
// that acknowledges everything and keeps what was sent.
type transportSet struct {
	mocks  map[string]*aip.MockTransport
	order  []string
	mu     sync.Mutex
	dryRun bool
}

func newTransportSet(dryRun bool) *transportSet {
	return &transportSet{dryRun: dryRun, mocks: make(map[string]*aip.MockTransport)}
}

func (s *transportSet) open(path string, cfg *config.Config) (aip.Transport, error) {
	if path == "" {
		return nil, errors.New("empty serial port path")
	}
	if s.dryRun {
		s.mu.Lock()
		defer s.mu.Unlock()
		mock := aip.NewMockTransport()
		s.mocks[path] = mock
		s.order = append(s.order, path)
		return mock, nil
	}
	transport, err := uart.New(path, uart.WithIdleTimeout(cfg.Serial.IdleTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create UART transport for %s: %w", path, err)
	}
	return transport, nil
}

// printCommands writes what each dry-run link was sent.
func (s *transportSet) printCommands(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, path := range s.order {
		cmds := s.mocks[path].Commands()
		_, _ = fmt.Fprintf(w, "# %s: %d commands\n", path, len(cmds))
		for _, c := range cmds {
			_, _ = fmt.Fprintln(w, c)
		}
	}
}

func connectToArray(ctx context.Context, opts *options, path string, extra ...aip.ConnectOption) (*aip.Device, error) {
	cfg := opts.cfg
	connectOpts := []aip.ConnectOption{
		aip.WithConnectionRetries(cfg.Serial.Retries),
		aip.WithDeviceOptions(cfg.DeviceOptions()...),
		aip.WithTransportFactory(func(p string) (aip.Transport, error) {
			return opts.transports.open(p, cfg)
		}),
	}
	if opts.autoDetect && !opts.dryRun {
		path = ""
		connectOpts = append(connectOpts,
			aip.WithAutoDetection(),
			aip.WithTransportFromDeviceFactory(func(d detection.DeviceInfo) (aip.Transport, error) {
				return opts.transports.open(d.Path, cfg)
			}))
		aip.Debugf("auto-detecting array port")
	} else {
		aip.Debugf("opening array on %s", path)
	}
	connectOpts = append(connectOpts, extra...)

	device, err := aip.ConnectDevice(ctx, path, connectOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to array: %w", err)
	}
	return device, nil
}

func closeDevice(device *aip.Device) {
	if err := device.Close(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to close %s: %v\n", device.PortName(), err)
	}
}

func run(ctx context.Context, opts *options) error {
	if opts.logDir != "" {
		path, err := aip.InitSessionLog(opts.logDir)
		if err != nil {
			return fmt.Errorf("failed to open session log: %w", err)
		}
		defer func() { _ = aip.CloseSessionLog() }()
		_, _ = fmt.Fprintf(opts.out, "Session log: %s\n", path)
	}

	var err error
	switch opts.mode {
	case modePlan:
		err = runPlan(opts)
	case modeArrayTest:
		err = runArrayTest(ctx, opts)
	case modeTx:
		err = runTx(ctx, opts)
	case modeRx:
		err = runRx(ctx, opts)
	case modeJoint:
		err = runJoint(ctx, opts)
	case modeDisable:
		err = runDisable(ctx, opts)
	default:
		return fmt.Errorf("unknown mode %q", opts.mode)
	}

	if opts.dryRun {
		opts.transports.printCommands(opts.out)
	}
	return err
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	opts, err := parseOptions(os.Stdout)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
