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
	"sync/atomic"
	"testing"

	"github.com/ZaparooProject/go-aip/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectDevice_ManualPath(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	var opened string
	device, err := ConnectDevice(context.Background(), "/dev/ttyUSB0",
		WithTransportFactory(func(path string) (Transport, error) {
			opened = path
			return mock, nil
		}),
		WithDeviceOptions(WithPortName("/dev/ttyUSB0")),
	)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", opened)
	assert.Equal(t, "/dev/ttyUSB0", device.PortName())
	assert.True(t, device.State().Initialised)
	assert.Equal(t, CommandTexts(InitSequence()), mock.Commands())
}

func TestConnectDevice_WithoutInit(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	device, err := ConnectDevice(context.Background(), "/dev/ttyUSB0",
		WithTransportFactory(func(string) (Transport, error) { return mock, nil }),
		WithoutInit(),
	)
	require.NoError(t, err)
	assert.False(t, device.State().Initialised)
	assert.Empty(t, mock.Commands())
}

// flakyTransport answers nothing for the first silent exchanges.
type flakyTransport struct {
	*MockTransport
	silent atomic.Int32
}

func (f *flakyTransport) Exchange(ctx context.Context, cmd []byte) ([]byte, error) {
	if f.silent.Add(-1) >= 0 {
		return nil, nil
	}
	return f.MockTransport.Exchange(ctx, cmd)
}

func TestConnectDevice_RetriesInit(t *testing.T) {
	t.Parallel()

	flaky := &flakyTransport{MockTransport: NewMockTransport()}
	flaky.silent.Store(1)

	device, err := ConnectDevice(context.Background(), "/dev/ttyUSB0",
		WithTransportFactory(func(string) (Transport, error) { return flaky, nil }),
		WithConnectionRetries(3),
	)
	require.NoError(t, err)
	assert.True(t, device.State().Initialised)
	assert.Equal(t, CommandTexts(InitSequence()), flaky.Commands())
}

func TestConnectDevice_GivesUpAndCloses(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetDefaultResponse(nil)

	_, err := ConnectDevice(context.Background(), "/dev/ttyUSB0",
		WithTransportFactory(func(string) (Transport, error) { return mock, nil }),
		WithConnectionRetries(2),
	)
	require.ErrorIs(t, err, ErrTransportTimeout)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, 2, mock.GetCallCount("AT+DUT=0158"))
	assert.False(t, mock.IsConnected())
}

func TestConnectDevice_OptionErrors(t *testing.T) {
	t.Parallel()

	_, err := ConnectDevice(context.Background(), "/dev/ttyUSB0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport factory not provided")

	_, err = ConnectDevice(context.Background(), "/dev/ttyUSB0", WithConnectionRetries(0))
	require.Error(t, err)

	openErr := errors.New("permission denied")
	_, err = ConnectDevice(context.Background(), "/dev/ttyUSB0",
		WithTransportFactory(func(string) (Transport, error) { return nil, openErr }))
	require.ErrorIs(t, err, openErr)
}

func TestConnectDevice_AutoDetect(t *testing.T) {
	t.Parallel()

	dead := NewMockTransport()
	dead.SetDefaultResponse(nil)
	live := NewMockTransport()

	candidates := []detection.DeviceInfo{
		{Path: "/dev/ttyUSB0", Name: "aip", Confidence: detection.High},
		{Path: "/dev/ttyUSB1", Name: "aip", Confidence: detection.Medium},
	}
	var detectOpts *detection.Options

	device, err := ConnectDevice(context.Background(), "",
		WithDeviceDetector(func(_ context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
			detectOpts = opts
			return candidates, nil
		}),
		WithDetectionOptions(detection.Options{IncludeNonUSB: true}),
		WithTransportFromDeviceFactory(func(info detection.DeviceInfo) (Transport, error) {
			if info.Path == "/dev/ttyUSB0" {
				return dead, nil
			}
			return live, nil
		}),
	)
	require.NoError(t, err)
	require.NotNil(t, detectOpts)
	assert.True(t, detectOpts.IncludeNonUSB)
	assert.Same(t, live, device.Transport())
	assert.False(t, dead.IsConnected())
	// Candidates get a single attempt each.
	assert.Equal(t, 1, dead.GetCallCount("AT+DUT=0158"))
}

func TestConnectDevice_AutoDetectNothingFound(t *testing.T) {
	t.Parallel()

	factory := WithTransportFromDeviceFactory(func(detection.DeviceInfo) (Transport, error) {
		return NewMockTransport(), nil
	})

	_, err := ConnectDevice(context.Background(), "", WithAutoDetection(), factory,
		WithDeviceDetector(func(context.Context, *detection.Options) ([]detection.DeviceInfo, error) {
			return nil, detection.ErrNoDevicesFound
		}))
	require.ErrorIs(t, err, ErrDeviceNotFound)

	silent := NewMockTransport()
	silent.SetDefaultResponse(nil)
	_, err = ConnectDevice(context.Background(), "", WithAutoDetection(),
		WithTransportFromDeviceFactory(func(detection.DeviceInfo) (Transport, error) { return silent, nil }),
		WithDeviceDetector(func(context.Context, *detection.Options) ([]detection.DeviceInfo, error) {
			return []detection.DeviceInfo{{Path: "/dev/ttyACM0"}}, nil
		}))
	require.ErrorIs(t, err, ErrDeviceNotFound)
	require.ErrorIs(t, err, ErrTransportTimeout)

	_, err = ConnectDevice(context.Background(), "", WithAutoDetection())
	require.Error(t, err)
}
