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
	"errors"
	"fmt"
	"time"
)

// DefaultSleepResolution is the longest single sleep SleepUntil takes before
// re-reading the clock.
const DefaultSleepResolution = time.Millisecond

// TransmitWorker streams channels[i] on transmit channel i, each waveform
// repeated cyclically, until ctx is done. Cancellation is the normal way to
// stop it and returns nil.
func TransmitWorker(ctx context.Context, tx Transmitter, channels [][]complex64) error {
	if len(channels) == 0 {
		return fmt.Errorf("%w: no channels", ErrEmptyWaveform)
	}
	for i, ch := range channels {
		if len(ch) == 0 {
			return fmt.Errorf("%w: channel %d", ErrEmptyWaveform, i)
		}
	}

	spb := tx.MaxSamplesPerBuffer()
	if spb <= 0 {
		return fmt.Errorf("transmitter reports %d samples per buffer", spb)
	}
	buffs := make([][]complex64, len(channels))
	for i := range buffs {
		buffs[i] = make([]complex64, spb)
	}
	index := make([]int, len(channels))

	for ctx.Err() == nil {
		for ch, wave := range channels {
			buf := buffs[ch]
			for n := range buf {
				buf[n] = wave[index[ch]]
				index[ch]++
				if index[ch] == len(wave) {
					index[ch] = 0
				}
			}
		}
		if _, err := tx.Send(ctx, buffs); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("transmit: %w", err)
		}
	}
	return nil
}

// SleepUntil blocks until clock reaches t, sleeping at most resolution at a
// time. It returns ctx.Err() if the context ends first. A non-positive
// resolution uses DefaultSleepResolution.
func SleepUntil(ctx context.Context, clock Clock, t, resolution time.Duration) error {
	if resolution <= 0 {
		resolution = DefaultSleepResolution
	}
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		remaining := t - clock.Now()
		if remaining <= 0 {
			return nil
		}
		timer.Reset(min(remaining, resolution))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}
