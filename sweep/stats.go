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
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// BeamStats summarises the samples received on one beam.
type BeamStats struct {
	Tx        *Beam // transmit beam in a joint sweep, nil otherwise
	Beam      Beam
	Start     time.Duration
	Samples   int
	MeanPower float64
	PeakPower float64
	// Truncated is set when the receiver timed out before the beam's
	// sample budget was reached
	Truncated bool
}

// MeanPowerDB returns the mean power in dB relative to full scale, or -Inf
// for a silent beam.
func (s BeamStats) MeanPowerDB() float64 {
	if s.MeanPower <= 0 {
		return math.Inf(-1)
	}
	return 10 * math.Log10(s.MeanPower)
}

// powerAccumulator folds sample buffers into running power totals.
type powerAccumulator struct {
	scratch []float64
	sum     float64
	peak    float64
	n       int
}

func (a *powerAccumulator) add(samples []complex64) {
	if len(samples) == 0 {
		return
	}
	if cap(a.scratch) < len(samples) {
		a.scratch = make([]float64, len(samples))
	}
	p := a.scratch[:len(samples)]
	for i, s := range samples {
		re, im := float64(real(s)), float64(imag(s))
		p[i] = re*re + im*im
	}
	a.sum += floats.Sum(p)
	a.peak = math.Max(a.peak, floats.Max(p))
	a.n += len(samples)
}

func (a *powerAccumulator) fill(s *BeamStats) {
	s.Samples = a.n
	s.PeakPower = a.peak
	if a.n > 0 {
		s.MeanPower = a.sum / float64(a.n)
	}
}

// Summary is the result of a sweep, one entry per beam in sweep order.
type Summary struct {
	Beams []BeamStats
}

// TotalSamples returns the number of samples received over the sweep.
func (s Summary) TotalSamples() int {
	total := 0
	for _, b := range s.Beams {
		total += b.Samples
	}
	return total
}

// Best returns the beam with the highest mean power.
func (s Summary) Best() (BeamStats, bool) {
	if len(s.Beams) == 0 {
		return BeamStats{}, false
	}
	powers := s.powers()
	return s.Beams[floats.MaxIdx(powers)], true
}

// PowerSpread returns the mean and standard deviation of per-beam mean
// power. A flat sweep points at a blocked or disconnected array.
func (s Summary) PowerSpread() (mean, std float64) {
	switch len(s.Beams) {
	case 0:
		return 0, 0
	case 1:
		return s.Beams[0].MeanPower, 0
	}
	return stat.MeanStdDev(s.powers(), nil)
}

func (s Summary) powers() []float64 {
	out := make([]float64, len(s.Beams))
	for i, b := range s.Beams {
		out[i] = b.MeanPower
	}
	return out
}
