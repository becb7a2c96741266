// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package detection finds serial ports that are likely to have an AiP array
// behind them. It only enumerates and ranks ports; confirming an array is
// there is left to the caller, which opens the port and runs the init
// sequence.
package detection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Confidence represents how likely a port is to reach an array
type Confidence int

const (
	// Low confidence - some serial port
	Low Confidence = iota
	// Medium confidence - a USB serial bridge of a kind arrays ship with
	Medium
	// High confidence - matched a configured VID:PID
	High
)

func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// DeviceInfo represents a candidate port
type DeviceInfo struct {
	// Additional metadata (vidpid, product, serial)
	Metadata map[string]string
	// Connection path (e.g., "/dev/ttyUSB0", "COM3")
	Path string
	// Human-readable device name
	Name string
	// Detection confidence level
	Confidence Confidence
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	return fmt.Sprintf("serial device at %s (confidence: %s)", d.Path, d.Confidence)
}

// Options configures the detection behavior
type Options struct {
	// USB VID:PID pairs to skip (e.g., ["1234:5678"])
	Blocklist []string
	// USB VID:PID pairs that identify an array's bridge with certainty
	Preferred []string
	// Device paths to explicitly ignore (e.g., ["/dev/ttyUSB0", "COM2"]),
	// typically the other array's port
	IgnorePaths []string
	// Cache TTL duration
	CacheTTL time.Duration
	// Maximum time to wait for enumeration
	Timeout time.Duration
	// Include ports that are not USB serial bridges
	IncludeNonUSB bool
	// Enable result caching
	EnableCache bool
}

// DefaultOptions returns sensible default detection options
func DefaultOptions() Options {
	return Options{
		Timeout:     5 * time.Second,
		Blocklist:   DefaultBlocklist(),
		EnableCache: true,
		CacheTTL:    30 * time.Second,
	}
}

// Errors
var (
	// ErrNoDevicesFound indicates no candidate ports were found
	ErrNoDevicesFound = errors.New("no AiP serial ports found")
	// ErrDetectionTimeout indicates enumeration timed out
	ErrDetectionTimeout = errors.New("detection timeout")
)

// knownBridges are the USB serial bridges AiP evaluation boards use.
var knownBridges = []string{
	"0403:6001", // FTDI FT232R
	"0403:6010", // FTDI FT2232
	"0403:6014", // FTDI FT232H
	"10C4:EA60", // Silicon Labs CP210x
	"1A86:7523", // QinHeng CH340
	"067B:2303", // Prolific PL2303
}

// DetectAll lists candidate ports, best first. Ties keep enumeration order
// sorted by path, so /dev/ttyUSB0 precedes /dev/ttyUSB1.
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}

	if opts.EnableCache {
		if cached, found := getCached(keyFor(opts), opts.CacheTTL); found {
			return filterDevices(cached, opts), nil
		}
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	ports, err := enumerate(ctx)
	if err != nil {
		return nil, err
	}

	devices := rankPorts(ports, opts)
	if opts.EnableCache {
		if len(devices) > 0 {
			setCached(keyFor(opts), devices)
		} else {
			clearCacheFor(keyFor(opts))
		}
	}
	if len(devices) == 0 {
		return nil, ErrNoDevicesFound
	}
	return devices, nil
}

// enumerate runs the port lister, giving up when ctx ends.
func enumerate(ctx context.Context) ([]serialPort, error) {
	type result struct {
		err   error
		ports []serialPort
	}
	lister := listPorts
	done := make(chan result, 1)
	go func() {
		ports, err := lister()
		done <- result{ports: ports, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("failed to enumerate serial ports: %w", res.err)
		}
		return res.ports, nil
	case <-ctx.Done():
		return nil, ErrDetectionTimeout
	}
}

func rankPorts(ports []serialPort, opts *Options) []DeviceInfo {
	var devices []DeviceInfo
	for i := range ports {
		port := &ports[i]
		if !port.IsUSB && !opts.IncludeNonUSB {
			continue
		}
		devices = append(devices, port.deviceInfo(scorePort(port, opts)))
	}
	devices = filterDevices(devices, opts)

	sort.SliceStable(devices, func(i, j int) bool {
		if devices[i].Confidence != devices[j].Confidence {
			return devices[i].Confidence > devices[j].Confidence
		}
		return devices[i].Path < devices[j].Path
	})
	return devices
}

func scorePort(port *serialPort, opts *Options) Confidence {
	vidpid := strings.ToUpper(port.VIDPID)
	if vidpid != "" && containsFold(opts.Preferred, vidpid) {
		return High
	}
	if vidpid != "" && containsFold(knownBridges, vidpid) {
		return Medium
	}
	return Low
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), v) {
			return true
		}
	}
	return false
}

// filterDevices applies IgnorePaths and Blocklist, also to cached results.
func filterDevices(devices []DeviceInfo, opts *Options) []DeviceInfo {
	if len(opts.IgnorePaths) == 0 && len(opts.Blocklist) == 0 {
		return devices
	}

	var filtered []DeviceInfo
	for _, device := range devices {
		if IsPathIgnored(device.Path, opts.IgnorePaths) {
			continue
		}
		if vidpid, ok := device.Metadata["vidpid"]; ok && IsBlocked(vidpid, opts.Blocklist) {
			continue
		}
		filtered = append(filtered, device)
	}
	return filtered
}

// ClearDetectionCache removes all cached detection results
func ClearDetectionCache() {
	clearCache()
}
