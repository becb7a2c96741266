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

package radio

import (
	"context"
	"sync"
	"time"
)

// Simulated is an in-process radio implementing Clock, Transmitter and
// Receiver. Time is wall time since creation. Received samples are a
// constant carrier whose amplitude the caller sets, so a test can make one
// beam stronger than another.
type Simulated struct {
	start      time.Time
	rxErrors   []RxErrorCode
	sampleRate float64
	amplitude  float32
	spb        int
	sent       int64
	received   int64
	sendCalls  int
	mu         sync.Mutex
	streaming  bool
	throttle   bool
}

// SimulatedOption configures a Simulated radio
type SimulatedOption func(*Simulated)

// WithSampleRate sets the rate used to pace transmit buffers
func WithSampleRate(rate float64) SimulatedOption {
	return func(s *Simulated) {
		if rate > 0 {
			s.sampleRate = rate
		}
	}
}

// WithSamplesPerBuffer sets the buffer size both directions report
func WithSamplesPerBuffer(n int) SimulatedOption {
	return func(s *Simulated) {
		if n > 0 {
			s.spb = n
		}
	}
}

// WithThrottle makes Send sleep for the buffer's duration at the sample rate,
// as real hardware back-pressure does
func WithThrottle() SimulatedOption {
	return func(s *Simulated) {
		s.throttle = true
	}
}

// NewSimulated creates a simulated radio at 1 Msps with 1000-sample buffers.
func NewSimulated(opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		start:      time.Now(),
		sampleRate: 1e6,
		spb:        1000,
		amplitude:  1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now implements Clock
func (s *Simulated) Now() time.Duration {
	return time.Since(s.start)
}

// MaxSamplesPerBuffer implements Transmitter and Receiver
func (s *Simulated) MaxSamplesPerBuffer() int {
	return s.spb
}

// Send implements Transmitter
func (s *Simulated) Send(ctx context.Context, buffs [][]complex64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	if len(buffs) > 0 {
		n = len(buffs[0])
	}

	s.mu.Lock()
	s.sent += int64(n)
	s.sendCalls++
	throttle := s.throttle
	rate := s.sampleRate
	s.mu.Unlock()

	if throttle && n > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Duration(float64(n) / rate * float64(time.Second))):
		}
	}
	return n, nil
}

// StartStreaming implements Receiver
func (s *Simulated) StartStreaming(ctx context.Context, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.streaming = true
	s.mu.Unlock()
	return nil
}

// StopStreaming implements Receiver
func (s *Simulated) StopStreaming(_ context.Context) error {
	s.mu.Lock()
	s.streaming = false
	s.mu.Unlock()
	return nil
}

// Recv implements Receiver. Queued error codes are returned first, one per
// call, with no samples.
func (s *Simulated) Recv(ctx context.Context, buf []complex64) (int, RxMetadata, error) {
	if err := ctx.Err(); err != nil {
		return 0, RxMetadata{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	md := RxMetadata{Time: s.Now()}
	if !s.streaming {
		return 0, md, ErrNotStreaming
	}
	if len(s.rxErrors) > 0 {
		md.Err = s.rxErrors[0]
		s.rxErrors = s.rxErrors[1:]
		return 0, md, nil
	}

	n := min(len(buf), s.spb)
	sample := complex(s.amplitude, 0)
	for i := range n {
		buf[i] = sample
	}
	s.received += int64(n)
	return n, md, nil
}

// SetAmplitude sets the magnitude of subsequently received samples.
func (s *Simulated) SetAmplitude(a float32) {
	s.mu.Lock()
	s.amplitude = a
	s.mu.Unlock()
}

// QueueRxErrors makes the next Recv calls report codes, in order.
func (s *Simulated) QueueRxErrors(codes ...RxErrorCode) {
	s.mu.Lock()
	s.rxErrors = append(s.rxErrors, codes...)
	s.mu.Unlock()
}

// Streaming reports whether the receiver is streaming.
func (s *Simulated) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// SamplesSent returns the number of samples passed to Send per channel.
func (s *Simulated) SamplesSent() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// SamplesReceived returns the number of samples handed out by Recv.
func (s *Simulated) SamplesReceived() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received
}

var (
	_ Clock       = (*Simulated)(nil)
	_ Transmitter = (*Simulated)(nil)
	_ Receiver    = (*Simulated)(nil)
)
