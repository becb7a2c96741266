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
	"fmt"
	"strings"
)

// SteeringIndex selects one of the 17 calibrated phase-shift steps between
// broadside (DEG_0) and the last calibrated step (DEG_180).
type SteeringIndex int

// Steering indices. The name carries the inter-element phase step, not the
// resulting beam angle; see BeamAngle for the latter.
const (
	Deg0 SteeringIndex = iota
	Deg11_25
	Deg22_25
	Deg33_75
	Deg45
	Deg56_25
	Deg67_5
	Deg78_75
	Deg90
	Deg101_2
	Deg112_5
	Deg123_7
	Deg135
	Deg146_2
	Deg157_5
	Deg168_7
	Deg180
)

// NumSteeringIndices is the number of calibrated steering steps.
const NumSteeringIndices = 17

var steeringNames = [NumSteeringIndices]string{
	"DEG_0", "DEG_11_25", "DEG_22_25", "DEG_33_75", "DEG_45", "DEG_56_25",
	"DEG_67_5", "DEG_78_75", "DEG_90", "DEG_101_2", "DEG_112_5", "DEG_123_7",
	"DEG_135", "DEG_146_2", "DEG_157_5", "DEG_168_7", "DEG_180",
}

// beamAngles is the measured main-lobe direction for each step, in degrees
// from broadside.
var beamAngles = [NumSteeringIndices]float64{
	0.00, 4.00, 8.00, 11.50, 15.50, 19.50, 23.50, 28.00, 32.50,
	37.00, 41.50, 46.50, 52.00, 57.50, 64.50, 72.00, 78.00,
}

// Valid reports whether s is one of the calibrated steps.
func (s SteeringIndex) Valid() bool {
	return s >= Deg0 && s <= Deg180
}

func (s SteeringIndex) String() string {
	if !s.Valid() {
		return fmt.Sprintf("SteeringIndex(%d)", int(s))
	}
	return steeringNames[s]
}

// BeamAngle returns the physical beam direction in degrees from broadside,
// or zero for an invalid index.
func (s SteeringIndex) BeamAngle() float64 {
	if !s.Valid() {
		return 0
	}
	return beamAngles[s]
}

// PhaseShift returns the nominal inter-element phase step in degrees.
func (s SteeringIndex) PhaseShift() float64 {
	return float64(s) * 11.25
}

// ParseSteeringIndex accepts the table names ("DEG_45", case-insensitive)
// or a bare step number ("4").
func ParseSteeringIndex(name string) (SteeringIndex, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range steeringNames {
		if n == upper {
			return SteeringIndex(i), nil
		}
	}
	var idx int
	if _, err := fmt.Sscanf(upper, "%d", &idx); err == nil && fmt.Sprint(idx) == upper {
		if s := SteeringIndex(idx); s.Valid() {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: steering index %q", ErrUnsupportedConfiguration, name)
}

// AllSteeringIndices returns every calibrated step in ascending order.
func AllSteeringIndices() []SteeringIndex {
	out := make([]SteeringIndex, NumSteeringIndices)
	for i := range out {
		out[i] = SteeringIndex(i)
	}
	return out
}

// Direction is the axis along which a steering index is applied.
type Direction string

const (
	// DirectionUp steers along the vertical axis, upwards
	DirectionUp Direction = "UP"
	// DirectionDown steers along the vertical axis, downwards
	DirectionDown Direction = "DOWN"
	// DirectionLeft steers along the horizontal axis, to the left
	DirectionLeft Direction = "LEFT"
	// DirectionRight steers along the horizontal axis, to the right
	DirectionRight Direction = "RIGHT"
)

// AllDirections returns the directions in the order the sweep tools use them.
func AllDirections() []Direction {
	return []Direction{DirectionLeft, DirectionRight, DirectionUp, DirectionDown}
}

// Valid reports whether d is one of the four sweep directions.
func (d Direction) Valid() bool {
	_, ok := angleTable[d]
	return ok
}

// ParseDirection parses a direction name, case-insensitive.
func ParseDirection(name string) (Direction, error) {
	d := Direction(strings.ToUpper(strings.TrimSpace(name)))
	if !d.Valid() {
		return "", fmt.Errorf("%w: direction %q", ErrUnsupportedConfiguration, name)
	}
	return d, nil
}

// ChipPhaseFields holds the 24-bit phase register of each chip as six hex digits.
type ChipPhaseFields [NumChips]string

// LookupPhases returns the phase fields for a steering step applied along a direction.
// The lookup is total over the calibrated domain; anything else is
// ErrUnsupportedConfiguration.
func LookupPhases(steering SteeringIndex, direction Direction) (ChipPhaseFields, error) {
	rows, ok := angleTable[direction]
	if !ok {
		return ChipPhaseFields{}, fmt.Errorf("%w: direction %q", ErrUnsupportedConfiguration, string(direction))
	}
	if !steering.Valid() {
		return ChipPhaseFields{}, fmt.Errorf("%w: steering index %d", ErrUnsupportedConfiguration, int(steering))
	}
	return rows[steering], nil
}

// angleTable is calibration data measured on the array. The values are not
// derivable from geometry alone and must not be regenerated.
var angleTable = map[Direction][NumSteeringIndices]ChipPhaseFields{
	DirectionUp: {
		{"000820", "000820", "820000", "820000"},
		{"080822", "080822", "926184", "926184"},
		{"100824", "100824", "a2c308", "a2c308"},
		{"180826", "180826", "b3248c", "b3248c"},
		{"200828", "200828", "c38610", "c38610"},
		{"28082a", "28082a", "d3e794", "d3e794"},
		{"30082c", "30082c", "e04918", "e04918"},
		{"38082e", "38082e", "f0aa9c", "f0aa9c"},
		{"400830", "400830", "010c20", "010c20"},
		{"480832", "480832", "116da4", "116da4"},
		{"500834", "500834", "21cf28", "21cf28"},
		{"580836", "580836", "3220ac", "3220ac"},
		{"600838", "600838", "428230", "428230"},
		{"68083a", "68083a", "52e3b4", "52e3b4"},
		{"70083c", "70083c", "634538", "634538"},
		{"78083e", "78083e", "73a6bc", "73a6bc"},
		{"800800", "800800", "800800", "800800"},
	},
	DirectionDown: {
		{"000820", "000820", "820000", "820000"},
		{"1069a4", "1069a4", "8a0002", "8a0002"},
		{"20cb28", "20cb28", "920004", "920004"},
		{"312cac", "312cac", "9a0006", "9a0006"},
		{"418e30", "418e30", "a20008", "a20008"},
		{"51efb4", "51efb4", "aa000a", "aa000a"},
		{"624138", "624138", "b2000c", "b2000c"},
		{"72a2bc", "72a2bc", "ba000e", "ba000e"},
		{"830400", "830400", "c20010", "c20010"},
		{"936584", "936584", "ca0012", "ca0012"},
		{"a3c708", "a3c708", "d20014", "d20014"},
		{"b0288c", "b0288c", "da0016", "da0016"},
		{"c08a10", "c08a10", "e20018", "e20018"},
		{"d0eb94", "d0eb94", "ea001a", "ea001a"},
		{"e14d18", "e14d18", "f2001c", "f2001c"},
		{"f1ae9c", "f1ae9c", "fa001e", "fa001e"},
		{"020020", "020020", "020020", "020020"},
	},
	DirectionRight: {
		// broadside is shared by every direction
		{"000820", "000820", "820000", "820000"},
		{"8a2000", "9a6104", "1049a6", "0008a2"},
		{"924000", "b2c208", "208b2c", "000924"},
		{"9a6000", "cb230c", "30ccb2", "0009a6"},
		{"a28000", "e38410", "410e38", "000a28"},
		{"aaa000", "fbe514", "514fbe", "000aaa"},
		{"b2c000", "104618", "618104", "000b2c"},
		{"bae000", "28a71c", "71c28a", "000bae"},
		{"c30000", "410820", "820410", "000c30"},
		{"cb2000", "596924", "924596", "000cb2"},
		{"d34000", "71ca28", "a2871c", "000d34"},
		{"db6000", "8a2b2c", "b2c8a2", "000db6"},
		{"e38000", "a28c30", "c30a28", "000e38"},
		{"eba000", "baed34", "d34bae", "000eba"},
		{"f3c000", "d34e38", "e38d34", "000f3c"},
		{"fbe000", "ebaf3c", "f3ceba", "000fbe"},
		{"000000", "000000", "000000", "000000"},
	},
	DirectionLeft: {
		{"000820", "000820", "820000", "820000"},
		{"1049a6", "0008a2", "8a2000", "9a6104"},
		{"208b2c", "000924", "924000", "b2c208"},
		{"30ccb2", "0009a6", "9a6000", "cb230c"},
		{"410e38", "000a28", "a28000", "e38410"},
		{"514fbe", "000aaa", "aaa000", "fbe514"},
		{"618104", "000b2c", "b2c000", "104618"},
		{"71c28a", "000bae", "bae000", "28a71c"},
		{"820410", "000c30", "c30000", "410820"},
		{"924596", "000cb2", "cb2000", "596924"},
		{"a2871c", "000d34", "d34000", "71ca28"},
		{"b2c8a2", "000db6", "db6000", "8a2b2c"},
		{"c30a28", "000e38", "e38000", "a28c30"},
		{"d34bae", "000eba", "eba000", "baed34"},
		{"e38d34", "000f3c", "f3c000", "d34e38"},
		{"f3ceba", "000fbe", "fbe000", "ebaf3c"},
		{"000000", "000000", "000000", "000000"},
	},
}
