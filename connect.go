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

	"github.com/ZaparooProject/go-aip/detection"
)

// TransportFactory opens a transport on a port path
type TransportFactory func(path string) (Transport, error)

// TransportFromDeviceFactory opens a transport on a detected port
type TransportFromDeviceFactory func(device detection.DeviceInfo) (Transport, error)

// DeviceDetector lists candidate ports; detection.DetectAll by default
type DeviceDetector func(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error)

// ConnectOption represents a functional option for ConnectDevice
type ConnectOption func(*connectConfig) error

type connectConfig struct {
	transportFactory       TransportFactory
	transportDeviceFactory TransportFromDeviceFactory
	deviceDetector         DeviceDetector
	detectionOptions       *detection.Options
	deviceOptions          []Option
	connectionRetries      int
	autoDetect             bool
	skipInit               bool
}

// WithAutoDetection enables automatic port detection instead of a fixed path
func WithAutoDetection() ConnectOption {
	return func(c *connectConfig) error {
		c.autoDetect = true
		return nil
	}
}

// WithDeviceOptions adds device-level options
func WithDeviceOptions(opts ...Option) ConnectOption {
	return func(c *connectConfig) error {
		c.deviceOptions = append(c.deviceOptions, opts...)
		return nil
	}
}

// WithTransportFactory sets the transport factory function
func WithTransportFactory(factory TransportFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportFactory = factory
		return nil
	}
}

// WithTransportFromDeviceFactory sets the factory used for detected ports
func WithTransportFromDeviceFactory(factory TransportFromDeviceFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportDeviceFactory = factory
		return nil
	}
}

// WithConnectionRetries sets the number of connection attempts
func WithConnectionRetries(maxAttempts int) ConnectOption {
	return func(c *connectConfig) error {
		if maxAttempts < 1 {
			return fmt.Errorf("connection retries must be at least 1, got %d", maxAttempts)
		}
		c.connectionRetries = maxAttempts
		return nil
	}
}

// WithDeviceDetector sets a custom detector for auto-detection
func WithDeviceDetector(detector DeviceDetector) ConnectOption {
	return func(c *connectConfig) error {
		c.deviceDetector = detector
		return nil
	}
}

// WithDetectionOptions sets the options passed to the detector
func WithDetectionOptions(opts detection.Options) ConnectOption {
	return func(c *connectConfig) error {
		c.detectionOptions = &opts
		return nil
	}
}

// WithoutInit connects without running the init sequence. Used by tools that
// only disable an array.
func WithoutInit() ConnectOption {
	return func(c *connectConfig) error {
		c.skipInit = true
		return nil
	}
}

func applyConnectOptions(opts []ConnectOption) (*connectConfig, error) {
	config := &connectConfig{
		connectionRetries: DefaultConnectionRetries,
	}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply connect option: %w", err)
		}
	}
	return config, nil
}

// ConnectDevice opens a link to an array and runs its init sequence as the
// liveness probe. With a path, the init is retried with backoff; with
// auto-detection, each candidate port gets a single attempt, best first.
//
//	dev, err := aip.ConnectDevice(ctx, "/dev/ttyUSB0",
//	    aip.WithTransportFactory(func(p string) (aip.Transport, error) { return uart.New(p) }))
func ConnectDevice(ctx context.Context, path string, opts ...ConnectOption) (*Device, error) {
	config, err := applyConnectOptions(opts)
	if err != nil {
		return nil, err
	}

	if config.autoDetect || path == "" {
		return connectAutoDetected(ctx, config)
	}

	transport, err := createManualTransport(path, config.transportFactory)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	device, err := setupDeviceWithRetry(ctx, transport, config)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}
	return device, nil
}

func createManualTransport(path string, factory TransportFactory) (Transport, error) {
	if factory == nil {
		return nil, errors.New("transport factory not provided")
	}
	transport, err := factory(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return transport, nil
}

func setupDevice(ctx context.Context, transport Transport, config *connectConfig) (*Device, error) {
	device, err := New(transport, config.deviceOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}
	if config.skipInit {
		return device, nil
	}
	if err := device.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize array: %w", err)
	}
	return device, nil
}

func setupDeviceWithRetry(ctx context.Context, transport Transport, config *connectConfig) (*Device, error) {
	retryConfig := ConnectionRetryConfig(config.connectionRetries)
	retryConfig.OnRetry = func(attempt int, err error) {
		Debugf("connect attempt %d/%d failed: %v", attempt, config.connectionRetries, err)
	}

	var device *Device
	err := RetryWithConfig(ctx, retryConfig, func() error {
		var err error
		device, err = setupDevice(ctx, transport, config)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up array after %d attempts: %w", config.connectionRetries, err)
	}
	return device, nil
}

func connectAutoDetected(ctx context.Context, config *connectConfig) (*Device, error) {
	if config.transportDeviceFactory == nil {
		return nil, errors.New("transport device factory not provided")
	}

	detectOpts := detection.DefaultOptions()
	if config.detectionOptions != nil {
		detectOpts = *config.detectionOptions
	}
	detector := config.deviceDetector
	if detector == nil {
		detector = detection.DetectAll
	}

	candidates, err := detector(ctx, &detectOpts)
	if err != nil {
		if errors.Is(err, detection.ErrNoDevicesFound) {
			return nil, fmt.Errorf("%w: %w", ErrDeviceNotFound, err)
		}
		return nil, fmt.Errorf("failed to detect devices: %w", err)
	}

	var errs []error
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		transport, err := config.transportDeviceFactory(candidate)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", candidate.Path, err))
			continue
		}
		device, err := setupDevice(ctx, transport, config)
		if err != nil {
			_ = transport.Close()
			errs = append(errs, fmt.Errorf("%s: %w", candidate.Path, err))
			continue
		}
		Debugf("auto-detected array on %s", candidate)
		return device, nil
	}

	return nil, fmt.Errorf("%w: no candidate answered init: %w", ErrDeviceNotFound, errors.Join(errs...))
}
