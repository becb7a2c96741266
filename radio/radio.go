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

// Package radio defines the SDR collaborator a beam sweep streams through,
// with waveform generators and a simulated radio for tests and dry runs.
package radio

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotStreaming is returned by Recv before StartStreaming or after StopStreaming
	ErrNotStreaming = errors.New("receiver is not streaming")
	// ErrEmptyWaveform is returned when a transmit channel has no samples
	ErrEmptyWaveform = errors.New("waveform is empty")
)

// Clock reports device time, measured from when the radio's timestamp was
// last reset.
type Clock interface {
	Now() time.Duration
}

// SystemClock is a Clock on the host's monotonic time, zeroed at creation.
// It paces sweeps that run without a radio.
type SystemClock struct {
	start time.Time
}

// NewSystemClock starts a clock at zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now implements Clock
func (c *SystemClock) Now() time.Duration {
	return time.Since(c.start)
}

// Transmitter sends one buffer per channel per call.
type Transmitter interface {
	// Send transmits buffs[i] on channel i. All buffers have equal length.
	Send(ctx context.Context, buffs [][]complex64) (int, error)
	// MaxSamplesPerBuffer is the largest buffer Send accepts
	MaxSamplesPerBuffer() int
}

// Receiver streams samples from one channel.
type Receiver interface {
	// StartStreaming begins continuous streaming at device time at
	StartStreaming(ctx context.Context, at time.Duration) error
	// Recv fills buf and reports how many samples were written
	Recv(ctx context.Context, buf []complex64) (int, RxMetadata, error)
	// StopStreaming ends continuous streaming
	StopStreaming(ctx context.Context) error
	// MaxSamplesPerBuffer is the natural packet size of the stream
	MaxSamplesPerBuffer() int
}

// RxErrorCode classifies a receive packet.
type RxErrorCode int

const (
	RxErrorNone RxErrorCode = iota
	// RxErrorTimeout means no packet arrived in time; sweeps end the beam early
	RxErrorTimeout
	RxErrorLateCommand
	RxErrorBrokenChain
	RxErrorOverflow
	RxErrorAlignment
	RxErrorBadPacket
)

func (c RxErrorCode) String() string {
	switch c {
	case RxErrorNone:
		return "none"
	case RxErrorTimeout:
		return "timeout"
	case RxErrorLateCommand:
		return "late command"
	case RxErrorBrokenChain:
		return "broken chain"
	case RxErrorOverflow:
		return "overflow"
	case RxErrorAlignment:
		return "alignment"
	case RxErrorBadPacket:
		return "bad packet"
	default:
		return fmt.Sprintf("RxErrorCode(%d)", int(c))
	}
}

// RxMetadata describes one received packet.
type RxMetadata struct {
	Time time.Duration
	Err  RxErrorCode
}

// RxError is a receive failure other than a timeout.
type RxError struct {
	Code RxErrorCode
}

func (e *RxError) Error() string {
	return "receiver error: " + e.Code.String()
}
