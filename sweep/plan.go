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

// Package sweep steps one or two AiP arrays through a list of beams while a
// radio records what each beam receives.
package sweep

import (
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-aip"
)

// ErrInvalidPlan is returned for a sweep that cannot be built
var ErrInvalidPlan = errors.New("invalid sweep plan")

// Beam is one stop of a sweep.
type Beam struct {
	Direction aip.Direction
	Steering  aip.SteeringIndex
}

// Angle returns the beam direction in degrees from broadside.
func (b Beam) Angle() float64 {
	return b.Steering.BeamAngle()
}

// String renders the beam the way capture annotations do, e.g. "LEFT - 15.50".
func (b Beam) String() string {
	return fmt.Sprintf("%s - %.2f", b.Direction, b.Angle())
}

// Config applies the beam to a template carrying masks, gains and mode.
func (b Beam) Config(template aip.BeamConfig) aip.BeamConfig {
	template.Direction = b.Direction
	template.Steering = b.Steering
	return template
}

// Plan lists the beams of a sweep over numDegrees steering steps along each
// direction. The first direction runs from its widest step back to
// broadside and later directions run outward from broadside, so LEFT then
// RIGHT sweeps continuously across the array's field of view.
func Plan(directions []aip.Direction, numDegrees int) ([]Beam, error) {
	if len(directions) == 0 {
		return nil, fmt.Errorf("%w: no directions", ErrInvalidPlan)
	}
	if numDegrees < 1 || numDegrees > aip.NumSteeringIndices {
		return nil, fmt.Errorf("%w: %d degrees per direction (want 1-%d)",
			ErrInvalidPlan, numDegrees, aip.NumSteeringIndices)
	}

	beams := make([]Beam, 0, len(directions)*numDegrees)
	for i, dir := range directions {
		if !dir.Valid() {
			return nil, fmt.Errorf("%w: direction %q", aip.ErrUnsupportedConfiguration, string(dir))
		}
		for step := range numDegrees {
			idx := step
			if i == 0 {
				idx = numDegrees - 1 - step
			}
			beams = append(beams, Beam{Direction: dir, Steering: aip.SteeringIndex(idx)})
		}
	}
	return beams, nil
}
