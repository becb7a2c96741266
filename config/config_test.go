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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZaparooProject/go-aip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.TxPort)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.RxPort)
	assert.Equal(t, 20*time.Millisecond, cfg.Serial.IdleTimeout)
	assert.Equal(t, aip.AckStrict, cfg.AckPolicy())
	assert.Equal(t, []string{"LEFT", "RIGHT"}, cfg.Sweep.Directions)
	assert.Equal(t, 17, cfg.Sweep.Degrees)
	assert.Equal(t, 500000, cfg.Sweep.SamplesPerBeam)
	assert.InDelta(t, 1e6, cfg.Radio.SampleRate, 0)
	assert.Equal(t, "outfile.dat", cfg.Output.File)

	plan, err := cfg.Plan()
	require.NoError(t, err)
	assert.Len(t, plan, 34)

	tmpl, err := cfg.BeamTemplate(aip.ModeRX)
	require.NoError(t, err)
	assert.Equal(t, aip.DefaultBeamConfig(aip.Deg0, aip.DirectionUp, aip.ModeRX), tmpl)
}

func TestLoad_YAMLFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "aip.yaml", `
serial:
  tx_port: /dev/ttyACM3
  ack_policy: presence
  idle_timeout: 5ms
beam:
  gain: 2
  masks: ["1010", "1111", "0000", "0111"]
  chip_gains: [3, 0, 15, 10]
sweep:
  directions: [UP]
  degrees: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM3", cfg.Serial.TxPort)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.RxPort)
	assert.Equal(t, aip.AckPresence, cfg.AckPolicy())
	assert.Equal(t, 5*time.Millisecond, cfg.Serial.IdleTimeout)

	tmpl, err := cfg.BeamTemplate(aip.ModeTX)
	require.NoError(t, err)
	tmpl.Direction = aip.DirectionLeft
	tmpl.Steering = aip.Deg45
	regs, err := aip.BuildRegisters(tmpl)
	require.NoError(t, err)
	assert.Equal(t, "0001523333410e38", regs[0])

	plan, err := cfg.Plan()
	require.NoError(t, err)
	require.Len(t, plan, 4)
	assert.Equal(t, aip.Deg33_75, plan[0].Steering)
}

//nolint:paralleltest // uses t.Setenv
func TestLoad_TOMLAndEnvOverride(t *testing.T) {
	path := writeConfig(t, "aip.toml", `
[serial]
tx_port = "/dev/ttyUSB7"

[output]
file = "capture.dat"
`)
	t.Setenv("AIP_SERIAL_TX_PORT", "/dev/ttyUSB9")
	t.Setenv("AIP_SWEEP_DEGREES", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB9", cfg.Serial.TxPort)
	assert.Equal(t, 5, cfg.Sweep.Degrees)
	assert.Equal(t, "capture.dat", cfg.Output.File)
}

//nolint:paralleltest // changes working directory
func TestLoad_NoFileUsesDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mutate func(*Config)
		target error
		name   string
	}{
		{name: "ack policy", mutate: func(c *Config) { c.Serial.AckPolicy = "sometimes" }},
		{name: "idle timeout", mutate: func(c *Config) { c.Serial.IdleTimeout = 0 }},
		{name: "retries", mutate: func(c *Config) { c.Serial.Retries = 0 }},
		{name: "mask", mutate: func(c *Config) { c.Beam.Masks[2] = "10x1" }, target: aip.ErrInvalidMask},
		{name: "mask count", mutate: func(c *Config) { c.Beam.Masks = c.Beam.Masks[:3] }, target: aip.ErrInvalidMask},
		{name: "gain", mutate: func(c *Config) { c.Beam.Gain = 16 }, target: aip.ErrInvalidGain},
		{name: "chip gain", mutate: func(c *Config) { c.Beam.ChipGains[0] = -1 }, target: aip.ErrInvalidGain},
		{
			name:   "direction",
			mutate: func(c *Config) { c.Sweep.Directions = []string{"LEFT", "BACK"} },
			target: aip.ErrUnsupportedConfiguration,
		},
		{name: "degrees", mutate: func(c *Config) { c.Sweep.Degrees = 18 }},
		{name: "samples", mutate: func(c *Config) { c.Sweep.SamplesPerBeam = 0 }},
		{name: "dwell", mutate: func(c *Config) { c.Sweep.Dwell = -time.Second }},
		{name: "sample rate", mutate: func(c *Config) { c.Radio.SampleRate = 0 }},
		{name: "buffer", mutate: func(c *Config) { c.Radio.SamplesPerBuf = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			if tt.target != nil {
				require.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestDeviceOptions(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Serial.AckPolicy = "none"
	dev, err := aip.New(aip.NewMockTransport(), cfg.DeviceOptions()...)
	require.NoError(t, err)
	assert.Equal(t, aip.AckNone, dev.Config().AckPolicy)
	assert.Equal(t, 20*time.Millisecond, dev.Config().IdleTimeout)
}
