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

// NumChips is the number of beamformer chips in one array.
const NumChips = 4

// RegisterLength is the length in hex characters of one chip register string.
const RegisterLength = 16

// registerPrefix is the constant head of every chip register.
const registerPrefix = "000"

// Mode is the array's RF mode.
type Mode int

const (
	// ModeOff leaves both the transmit and receive chains disabled
	ModeOff Mode = iota
	// ModeTX enables the transmit chain
	ModeTX
	// ModeRX enables the receive chain
	ModeRX
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeTX:
		return "tx"
	case ModeRX:
		return "rx"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m >= ModeOff && m <= ModeRX
}

// ParseMode parses "off", "tx" or "rx" (or the digits 0-2).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "0":
		return ModeOff, nil
	case "tx", "1":
		return ModeTX, nil
	case "rx", "2":
		return ModeRX, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// ChipRegisterSet holds the register string for each chip, index 0 first.
type ChipRegisterSet [NumChips]string

// BeamConfig is everything needed to program one beam.
type BeamConfig struct {
	Direction Direction
	Masks     [NumChips]AntennaMask
	ChipGains [NumChips]int
	Steering  SteeringIndex
	Gain      int
	Mode      Mode
}

// DefaultBeamConfig returns a config with every element active and zero gains.
func DefaultBeamConfig(steering SteeringIndex, direction Direction, mode Mode) BeamConfig {
	return BeamConfig{
		Steering:  steering,
		Direction: direction,
		Mode:      mode,
		Masks:     [NumChips]AntennaMask{AllActive, AllActive, AllActive, AllActive},
	}
}

func (c BeamConfig) String() string {
	return fmt.Sprintf("%s %s (%.2f°) mode=%s gain=%d", c.Direction, c.Steering, c.Steering.BeamAngle(), c.Mode, c.Gain)
}

// Validate checks every field without building registers.
func (c BeamConfig) Validate() error {
	_, err := BuildRegisters(c)
	return err
}

// BuildRegisters renders the four chip registers for a beam. Each register is
// "000", the mode digit, the mask nibble, the global gain digit, the chip's
// gain field and its phase field, in that order.
func BuildRegisters(cfg BeamConfig) (ChipRegisterSet, error) {
	var regs ChipRegisterSet

	if !cfg.Mode.Valid() {
		return regs, fmt.Errorf("%w: %d", ErrInvalidMode, int(cfg.Mode))
	}
	phases, err := LookupPhases(cfg.Steering, cfg.Direction)
	if err != nil {
		return regs, err
	}
	globalGain, err := gainDigit(cfg.Gain)
	if err != nil {
		return regs, fmt.Errorf("global gain: %w", err)
	}

	for chip := range NumChips {
		nibble, err := MaskToNibble(cfg.Masks[chip])
		if err != nil {
			return ChipRegisterSet{}, fmt.Errorf("chip %d: %w", chip, err)
		}
		gainField, err := GainToField(cfg.ChipGains[chip])
		if err != nil {
			return ChipRegisterSet{}, fmt.Errorf("chip %d: %w", chip, err)
		}

		var sb strings.Builder
		sb.Grow(RegisterLength)
		_, _ = sb.WriteString(registerPrefix)
		_, _ = sb.WriteString(fmt.Sprintf("%d", int(cfg.Mode)))
		_, _ = sb.WriteString(nibble)
		_, _ = sb.WriteString(globalGain)
		_, _ = sb.WriteString(gainField)
		_, _ = sb.WriteString(phases[chip])
		regs[chip] = sb.String()
	}
	return regs, nil
}
