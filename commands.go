// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package aip

import (
	"github.com/ZaparooProject/go-aip/internal/frame"
)

// AT command literals understood by the array firmware.
const (
	cmdSelectDUT   = "AT+DUT=0158"
	cmdAIPConfig   = "AT+AIPCONFIG=0202"
	cmdAddressNum  = "AT+ADRNUM=001"
	cmdSend        = "AT+SEND?"
	cmdTxEnable    = "AT+TXEN=1"
	cmdTxDisable   = "AT+TXEN=0"
	cmdRxEnable    = "AT+RXEN=1"
	cmdRxDisable   = "AT+RXEN=0"
	cmdRegisterFmt = "AT+REG="
)

// Fixed registers written around every beam change.
const (
	// InitRegister resets each chip before programming
	InitRegister = "00000000000143E0"
	// TemperatureRegister polls each chip's temperature sensor
	TemperatureRegister = "000500000004dcd5"
)

// Acknowledgement literals printed by the firmware.
const (
	AckOK          = frame.AckOK
	AckChipSetting = frame.AckChipSetting
)

// AckKind says which acknowledgement a command is expected to produce.
type AckKind int

const (
	// AckControl commands answer AMO:ok
	AckControl AckKind = iota
	// AckRegister commands answer either AMO:ok or the chip-setting literal
	AckRegister
)

// accepted returns the literals that count as success for the kind.
func (k AckKind) accepted() []string {
	if k == AckRegister {
		return []string{AckOK, AckChipSetting}
	}
	return []string{AckOK}
}

// Phase labels the part of a beam sequence a command belongs to.
type Phase string

// Sequence phases, in wire order.
const (
	PhaseInit        Phase = "init"
	PhaseReset       Phase = "reset"
	PhaseProgram     Phase = "program"
	PhaseTemperature Phase = "temperature"
	PhaseEnable      Phase = "enable"
	PhaseDisable     Phase = "disable"
)

// Command is one AT command of a sequence.
type Command struct {
	Text  string
	Phase Phase
	Ack   AckKind
}

func (c Command) String() string {
	return c.Text
}

func control(text string, phase Phase) Command {
	return Command{Text: text, Phase: phase, Ack: AckControl}
}

func register(value string, phase Phase) Command {
	return Command{Text: cmdRegisterFmt + value, Phase: phase, Ack: AckRegister}
}

func flush(phase Phase) Command {
	return Command{Text: cmdSend, Phase: phase, Ack: AckRegister}
}

// initCommands selects the array, loads its configuration and resets every chip.
func initCommands() []Command {
	cmds := []Command{
		control(cmdSelectDUT, PhaseInit),
		control(cmdAIPConfig, PhaseInit),
		control(cmdAddressNum, PhaseInit),
	}
	for range NumChips {
		cmds = append(cmds, register(InitRegister, PhaseReset))
	}
	return append(cmds, flush(PhaseReset))
}

func programCommands(regs ChipRegisterSet) []Command {
	cmds := make([]Command, 0, NumChips+1)
	for _, r := range regs {
		cmds = append(cmds, register(r, PhaseProgram))
	}
	return append(cmds, flush(PhaseProgram))
}

func temperatureCommands() []Command {
	cmds := make([]Command, 0, NumChips+1)
	for range NumChips {
		cmds = append(cmds, register(TemperatureRegister, PhaseTemperature))
	}
	return append(cmds, flush(PhaseTemperature))
}

func enableCommands(mode Mode) []Command {
	switch mode {
	case ModeTX:
		return []Command{control(cmdTxEnable, PhaseEnable)}
	case ModeRX:
		return []Command{control(cmdRxEnable, PhaseEnable)}
	default:
		return disableCommands(PhaseEnable)
	}
}

func disableCommands(phase Phase) []Command {
	return []Command{
		control(cmdTxDisable, phase),
		control(cmdRxDisable, phase),
	}
}

// InitSequence returns the commands that select and reset the array.
func InitSequence() []Command {
	return initCommands()
}

func beamSequence(regs ChipRegisterSet, mode Mode) []Command {
	cmds := initCommands()
	cmds = append(cmds, programCommands(regs)...)
	cmds = append(cmds, temperatureCommands()...)
	return append(cmds, enableCommands(mode)...)
}

func fastSequence(regs ChipRegisterSet, mode Mode) []Command {
	return append(programCommands(regs), enableCommands(mode)...)
}

// Sequence returns the full command list ApplyBeam sends for cfg. Registers are
// built first, so an invalid config yields an error and no commands.
func Sequence(cfg BeamConfig) ([]Command, error) {
	regs, err := BuildRegisters(cfg)
	if err != nil {
		return nil, err
	}
	return beamSequence(regs, cfg.Mode), nil
}

// FastSequence returns the commands ApplyBeamFast sends to an initialised
// array: program, flush and enable.
func FastSequence(cfg BeamConfig) ([]Command, error) {
	regs, err := BuildRegisters(cfg)
	if err != nil {
		return nil, err
	}
	return fastSequence(regs, cfg.Mode), nil
}

// DisableSequence returns the commands that turn both RF chains off.
func DisableSequence() []Command {
	return disableCommands(PhaseDisable)
}

// CommandTexts flattens a sequence to its wire strings, without terminators.
func CommandTexts(cmds []Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Text
	}
	return out
}
