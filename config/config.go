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

// Package config loads the settings of the aipctl tool from a config file,
// AIP_ environment variables and built-in defaults, in that order of
// precedence (environment wins).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/go-aip"
	"github.com/ZaparooProject/go-aip/sweep"
	"github.com/spf13/viper"
)

// ConfigName is the file name searched for, without extension
const ConfigName = "aip"

// EnvPrefix prefixes environment overrides, e.g. AIP_SERIAL_TX_PORT
const EnvPrefix = "AIP"

// SearchPaths are searched in order when no explicit file is given
var SearchPaths = []string{"/etc/aip", "$HOME/.config/aip", "."}

// Serial configures the links to the arrays.
type Serial struct {
	TxPort      string        `mapstructure:"tx_port"`
	RxPort      string        `mapstructure:"rx_port"`
	AckPolicy   string        `mapstructure:"ack_policy"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	Retries     int           `mapstructure:"retries"`
}

// Beam is the template applied to every beam of a sweep.
type Beam struct {
	Masks     []string `mapstructure:"masks"`
	ChipGains []int    `mapstructure:"chip_gains"`
	Gain      int      `mapstructure:"gain"`
}

// Sweep configures the sweep plan and pacing.
type Sweep struct {
	Directions     []string      `mapstructure:"directions"`
	Degrees        int           `mapstructure:"degrees"`
	SamplesPerBeam int           `mapstructure:"samples_per_beam"`
	Dwell          time.Duration `mapstructure:"dwell"`
	FullApply      bool          `mapstructure:"full_apply"`
}

// Radio configures the sample stream.
type Radio struct {
	SampleRate    float64       `mapstructure:"sample_rate"`
	SamplesPerBuf int           `mapstructure:"samples_per_buffer"`
	StreamLead    time.Duration `mapstructure:"stream_lead"`
}

// Output configures the capture file.
type Output struct {
	File   string `mapstructure:"file"`
	Header bool   `mapstructure:"header"`
}

// Config is the full tool configuration.
type Config struct {
	Serial Serial `mapstructure:"serial"`
	Beam   Beam   `mapstructure:"beam"`
	Sweep  Sweep  `mapstructure:"sweep"`
	Radio  Radio  `mapstructure:"radio"`
	Output Output `mapstructure:"output"`
	Debug  bool   `mapstructure:"debug"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.tx_port", "/dev/ttyUSB0")
	v.SetDefault("serial.rx_port", "/dev/ttyUSB1")
	v.SetDefault("serial.ack_policy", "strict")
	v.SetDefault("serial.idle_timeout", 20*time.Millisecond)
	v.SetDefault("serial.retries", aip.DefaultConnectionRetries)

	v.SetDefault("beam.masks", []string{"1111", "1111", "1111", "1111"})
	v.SetDefault("beam.chip_gains", []int{0, 0, 0, 0})
	v.SetDefault("beam.gain", 0)

	v.SetDefault("sweep.directions", []string{"LEFT", "RIGHT"})
	v.SetDefault("sweep.degrees", aip.NumSteeringIndices)
	v.SetDefault("sweep.samples_per_beam", 500000)
	v.SetDefault("sweep.dwell", sweep.DefaultDwell)
	v.SetDefault("sweep.full_apply", false)

	v.SetDefault("radio.sample_rate", 1e6)
	v.SetDefault("radio.samples_per_buffer", 1000)
	v.SetDefault("radio.stream_lead", sweep.DefaultStreamLead)

	v.SetDefault("output.file", "outfile.dat")
	v.SetDefault("output.header", false)
	v.SetDefault("debug", false)
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// defaults alone always decode
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load reads path, or the first aip.{toml,yaml,json} on SearchPaths when
// path is empty. A missing file in the search paths is not an error; a
// missing explicit path is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		for _, p := range SearchPaths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		aip.Debugf("using config file %s", v.ConfigFileUsed())
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field that can be checked without hardware.
func (c *Config) Validate() error {
	var errs []error

	if _, err := aip.ParseAckPolicy(c.Serial.AckPolicy); err != nil {
		errs = append(errs, fmt.Errorf("serial.ack_policy: %w", err))
	}
	if c.Serial.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("serial.idle_timeout must be positive, got %v", c.Serial.IdleTimeout))
	}
	if c.Serial.Retries < 1 {
		errs = append(errs, fmt.Errorf("serial.retries must be at least 1, got %d", c.Serial.Retries))
	}

	if _, err := c.BeamTemplate(aip.ModeOff); err != nil {
		errs = append(errs, fmt.Errorf("beam: %w", err))
	}
	if _, err := c.Plan(); err != nil {
		errs = append(errs, fmt.Errorf("sweep: %w", err))
	}
	if c.Sweep.SamplesPerBeam < 1 {
		errs = append(errs, fmt.Errorf("sweep.samples_per_beam must be positive, got %d", c.Sweep.SamplesPerBeam))
	}
	if c.Sweep.Dwell < 0 {
		errs = append(errs, fmt.Errorf("sweep.dwell must not be negative, got %v", c.Sweep.Dwell))
	}
	if c.Radio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("radio.sample_rate must be positive, got %g", c.Radio.SampleRate))
	}
	if c.Radio.SamplesPerBuf < 1 {
		errs = append(errs, fmt.Errorf("radio.samples_per_buffer must be positive, got %d", c.Radio.SamplesPerBuf))
	}
	return errors.Join(errs...)
}

// AckPolicy returns the parsed ack policy.
func (c *Config) AckPolicy() aip.AckPolicy {
	policy, err := aip.ParseAckPolicy(c.Serial.AckPolicy)
	if err != nil {
		return aip.AckStrict
	}
	return policy
}

// BeamTemplate converts the beam section into a config for mode. Direction
// and steering are left at UP/DEG_0 for the sweep plan to fill in.
func (c *Config) BeamTemplate(mode aip.Mode) (aip.BeamConfig, error) {
	cfg := aip.DefaultBeamConfig(aip.Deg0, aip.DirectionUp, mode)
	cfg.Gain = c.Beam.Gain

	if len(c.Beam.Masks) != aip.NumChips {
		return cfg, fmt.Errorf("%w: want %d masks, got %d", aip.ErrInvalidMask, aip.NumChips, len(c.Beam.Masks))
	}
	if len(c.Beam.ChipGains) != aip.NumChips {
		return cfg, fmt.Errorf("%w: want %d chip gains, got %d", aip.ErrInvalidGain, aip.NumChips, len(c.Beam.ChipGains))
	}
	for i := range aip.NumChips {
		cfg.Masks[i] = aip.AntennaMask(c.Beam.Masks[i])
		cfg.ChipGains[i] = c.Beam.ChipGains[i]
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Directions returns the parsed sweep directions.
func (c *Config) Directions() ([]aip.Direction, error) {
	dirs := make([]aip.Direction, 0, len(c.Sweep.Directions))
	for _, name := range c.Sweep.Directions {
		d, err := aip.ParseDirection(name)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, d)
	}
	return dirs, nil
}

// Plan builds the sweep plan.
func (c *Config) Plan() ([]sweep.Beam, error) {
	dirs, err := c.Directions()
	if err != nil {
		return nil, err
	}
	return sweep.Plan(dirs, c.Sweep.Degrees)
}

// DeviceOptions returns the aip options for one array.
func (c *Config) DeviceOptions() []aip.Option {
	return []aip.Option{
		aip.WithAckPolicy(c.AckPolicy()),
		aip.WithIdleTimeout(c.Serial.IdleTimeout),
	}
}
