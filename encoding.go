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

import "fmt"

// MaxGainLevel is the largest gain level a single hex digit can carry.
const MaxGainLevel = 15

// AntennaMask selects the active elements of one chip as four '0'/'1'
// characters, most significant element first. "1111" enables every element.
type AntennaMask string

// AllActive enables all four elements of a chip.
const AllActive AntennaMask = "1111"

// maskNibbles is the inverting encoding: the nibble is 0xF minus the mask
// read as a binary number. Active elements clear bits in the register.
var maskNibbles = map[AntennaMask]string{
	"0000": "f",
	"0001": "e",
	"0010": "d",
	"0011": "c",
	"0100": "b",
	"0101": "a",
	"0110": "9",
	"0111": "8",
	"1000": "7",
	"1001": "6",
	"1010": "5",
	"1011": "4",
	"1100": "3",
	"1101": "2",
	"1110": "1",
	"1111": "0",
}

// Valid reports whether m is one of the sixteen well-formed masks.
func (m AntennaMask) Valid() bool {
	_, ok := maskNibbles[m]
	return ok
}

// MaskToNibble encodes an antenna mask as the single hex digit the chip expects.
func MaskToNibble(mask AntennaMask) (string, error) {
	nibble, ok := maskNibbles[mask]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidMask, string(mask))
	}
	return nibble, nil
}

// GainToField encodes a per-chip gain level as its hex digit repeated four
// times, one per element.
func GainToField(level int) (string, error) {
	digit, err := gainDigit(level)
	if err != nil {
		return "", err
	}
	return digit + digit + digit + digit, nil
}

// gainDigit renders a gain level as one lowercase hex digit.
func gainDigit(level int) (string, error) {
	if level < 0 || level > MaxGainLevel {
		return "", fmt.Errorf("%w: %d (want 0-%d)", ErrInvalidGain, level, MaxGainLevel)
	}
	return fmt.Sprintf("%x", level), nil
}
