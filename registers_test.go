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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRegisters_Broadside(t *testing.T) {
	t.Parallel()

	regs, err := BuildRegisters(DefaultBeamConfig(Deg0, DirectionUp, ModeRX))
	require.NoError(t, err)
	assert.Equal(t, "0002000000000820", regs[0])
	assert.Equal(t, "0002000000000820", regs[1])
	assert.Equal(t, "0002000000820000", regs[2])
	assert.Equal(t, "0002000000820000", regs[3])
}

func TestBuildRegisters_Layout(t *testing.T) {
	t.Parallel()

	cfg := BeamConfig{
		Direction: DirectionLeft,
		Steering:  Deg45,
		Mode:      ModeTX,
		Gain:      2,
		Masks:     [NumChips]AntennaMask{"1010", "1111", "0000", "0111"},
		ChipGains: [NumChips]int{3, 0, 15, 10},
	}
	regs, err := BuildRegisters(cfg)
	require.NoError(t, err)

	assert.Equal(t, ChipRegisterSet{
		"0001523333410e38",
		"0001020000000a28",
		"0001f2ffffa28000",
		"000182aaaae38410",
	}, regs)

	for chip, r := range regs {
		assert.Len(t, r, RegisterLength, "chip %d", chip)
		assert.Equal(t, "000", r[:3])
		assert.Equal(t, "1", r[3:4])
	}
}

func TestBuildRegisters_Deterministic(t *testing.T) {
	t.Parallel()

	for _, dir := range AllDirections() {
		for _, idx := range AllSteeringIndices() {
			for _, mode := range []Mode{ModeOff, ModeTX, ModeRX} {
				cfg := DefaultBeamConfig(idx, dir, mode)
				first, err := BuildRegisters(cfg)
				require.NoError(t, err)
				second, err := BuildRegisters(cfg)
				require.NoError(t, err)
				assert.Equal(t, first, second)
				for _, r := range first {
					assert.Len(t, r, RegisterLength)
				}
			}
		}
	}
}

func TestBuildRegisters_Errors(t *testing.T) {
	t.Parallel()

	base := DefaultBeamConfig(Deg0, DirectionUp, ModeTX)

	tests := []struct {
		wantErr error
		mutate  func(*BeamConfig)
		name    string
	}{
		{
			name:    "bad mode",
			mutate:  func(c *BeamConfig) { c.Mode = Mode(7) },
			wantErr: ErrInvalidMode,
		},
		{
			name:    "bad direction",
			mutate:  func(c *BeamConfig) { c.Direction = "SIDEWAYS" },
			wantErr: ErrUnsupportedConfiguration,
		},
		{
			name:    "bad steering",
			mutate:  func(c *BeamConfig) { c.Steering = 20 },
			wantErr: ErrUnsupportedConfiguration,
		},
		{
			name:    "bad global gain",
			mutate:  func(c *BeamConfig) { c.Gain = 16 },
			wantErr: ErrInvalidGain,
		},
		{
			name:    "bad chip gain",
			mutate:  func(c *BeamConfig) { c.ChipGains[2] = -1 },
			wantErr: ErrInvalidGain,
		},
		{
			name:    "bad mask",
			mutate:  func(c *BeamConfig) { c.Masks[3] = "11" },
			wantErr: ErrInvalidMask,
		},
		{
			name:    "zero value masks",
			mutate:  func(c *BeamConfig) { c.Masks = [NumChips]AntennaMask{} },
			wantErr: ErrInvalidMask,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			regs, err := BuildRegisters(cfg)
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsEncodingError(err))
			assert.Equal(t, ChipRegisterSet{}, regs)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]Mode{"off": ModeOff, "TX": ModeTX, " rx ": ModeRX, "2": ModeRX} {
		got, err := ParseMode(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("both")
	require.ErrorIs(t, err, ErrInvalidMode)

	assert.Equal(t, "tx", ModeTX.String())
	assert.Equal(t, "Mode(9)", Mode(9).String())
}

func TestBeamConfig_String(t *testing.T) {
	t.Parallel()

	cfg := DefaultBeamConfig(Deg45, DirectionLeft, ModeTX)
	assert.Equal(t, "LEFT DEG_45 (15.50°) mode=tx gain=0", cfg.String())
}
