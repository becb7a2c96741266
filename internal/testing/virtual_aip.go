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

// Package testing provides test utilities including a wire-level simulator of
// the AiP command port.
//
// VirtualAiP implements io.ReadWriter. Commands written to it are split on
// the CR terminator and answered the way the array firmware answers them:
// control commands with "AMO:ok", a flush of four staged registers with the
// chip-setting literal. Faults can be injected per command.
package testing

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-aip/internal/frame"
	"github.com/ZaparooProject/go-aip/internal/syncutil"
)

const (
	replyError   = "AMO:error"
	lineEnd      = "\r\n"
	regPrefix    = "AT+REG="
	registerSize = 16
	numChips     = 4

	// temperatureRegister is the poll register; the simulator answers its
	// flush with a reading.
	temperatureRegister = "000500000004dcd5"
)

// VirtualAiP simulates the serial command port of one AiP array.
//
// Commands other than AT+DUT are rejected with AMO:error until the array has
// been selected, matching firmware that ignores register traffic before the
// device-under-test is chosen.
type VirtualAiP struct {
	silenced    map[string]bool
	replies     map[string]string
	staged      []string
	commands    []string
	batches     [][]string
	garbage     []byte
	rxBuffer    bytes.Buffer
	txBuffer    bytes.Buffer
	temperature string
	trickle     int
	mu          syncutil.Mutex
	silent      bool
	selected    bool
	txEnabled   bool
	rxEnabled   bool
}

// NewVirtualAiP creates a simulator with both chains off and nothing staged.
func NewVirtualAiP() *VirtualAiP {
	return &VirtualAiP{
		silenced:    make(map[string]bool),
		replies:     make(map[string]string),
		temperature: "TEMP:31.5",
	}
}

// Write receives bytes from the host. Every complete CR-terminated command is
// handled immediately and its reply queued for Read.
func (v *VirtualAiP) Write(data []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	_, _ = v.rxBuffer.Write(data)
	for {
		line, err := v.rxBuffer.ReadString(frame.Terminator)
		if err != nil {
			// Incomplete command: keep it for the next write.
			v.rxBuffer.Reset()
			_, _ = v.rxBuffer.WriteString(line)
			break
		}
		cmd := strings.Trim(line, "\r\n\x00")
		if cmd == "" {
			continue
		}
		v.handle(cmd)
	}
	return len(data), nil
}

// Read returns queued reply bytes. An empty queue reads as zero bytes and no
// error, like a serial port whose read timed out.
func (v *VirtualAiP) Read(buf []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.txBuffer.Len() == 0 {
		return 0, nil
	}
	if v.trickle > 0 && len(buf) > v.trickle {
		buf = buf[:v.trickle]
	}
	n, err := v.txBuffer.Read(buf)
	if err != nil {
		return n, fmt.Errorf("read from tx buffer: %w", err)
	}
	return n, nil
}

func (v *VirtualAiP) handle(cmd string) {
	v.commands = append(v.commands, cmd)
	reply := v.respond(cmd)

	if v.silent || v.silenced[cmd] {
		return
	}
	if custom, ok := v.replies[cmd]; ok {
		reply = custom
	}
	if v.garbage != nil {
		_, _ = v.txBuffer.Write(v.garbage)
		v.garbage = nil
		return
	}
	_, _ = v.txBuffer.WriteString(reply)
}

// respond updates the simulated state and returns the firmware's reply.
func (v *VirtualAiP) respond(cmd string) string {
	ok := frame.AckOK + lineEnd

	switch {
	case strings.HasPrefix(cmd, "AT+DUT="):
		v.selected = true
		return ok
	case !v.selected:
		return replyError + lineEnd
	case strings.HasPrefix(cmd, "AT+AIPCONFIG="), strings.HasPrefix(cmd, "AT+ADRNUM="):
		return ok
	case strings.HasPrefix(cmd, regPrefix):
		value := strings.TrimPrefix(cmd, regPrefix)
		if len(value) != registerSize || !isHex(value) {
			return replyError + lineEnd
		}
		v.staged = append(v.staged, value)
		return ok
	case cmd == "AT+SEND?":
		return v.flush()
	case cmd == "AT+TXEN=1", cmd == "AT+TXEN=0":
		v.txEnabled = cmd == "AT+TXEN=1"
		return ok
	case cmd == "AT+RXEN=1", cmd == "AT+RXEN=0":
		v.rxEnabled = cmd == "AT+RXEN=1"
		return ok
	default:
		return replyError + lineEnd
	}
}

func (v *VirtualAiP) flush() string {
	batch := v.staged
	v.staged = nil
	v.batches = append(v.batches, batch)

	if len(batch) != numChips {
		return frame.AckOK + lineEnd
	}
	reply := frame.AckChipSetting + lineEnd
	if batch[0] == temperatureRegister {
		reply = v.temperature + lineEnd + reply
	}
	return reply
}

func isHex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

// SetSilent makes the simulator stop answering anything, as a powered-off
// array or an unplugged cable would.
func (v *VirtualAiP) SetSilent(silent bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.silent = silent
}

// SilenceCommand suppresses the reply to one command, given without terminator.
func (v *VirtualAiP) SilenceCommand(cmd string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.silenced[cmd] = true
}

// SetReply overrides the reply to one command. The state change still happens.
func (v *VirtualAiP) SetReply(cmd, reply string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.replies[cmd] = reply
}

// InjectGarbage replaces the next reply with raw bytes.
func (v *VirtualAiP) InjectGarbage(data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.garbage = append([]byte{}, data...)
}

// SetTrickle limits every Read to n bytes. Zero removes the limit.
func (v *VirtualAiP) SetTrickle(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.trickle = n
}

// SetTemperature sets the line printed before the temperature flush ack.
func (v *VirtualAiP) SetTemperature(line string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.temperature = line
}

// Commands returns every command received, in order.
func (v *VirtualAiP) Commands() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.commands...)
}

// Batches returns each group of registers committed by AT+SEND?.
func (v *VirtualAiP) Batches() [][]string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([][]string, len(v.batches))
	for i, b := range v.batches {
		out[i] = append([]string(nil), b...)
	}
	return out
}

// Programmed returns the last committed batch that was neither the reset
// nor the temperature poll, i.e. the beam registers in effect.
func (v *VirtualAiP) Programmed() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := len(v.batches) - 1; i >= 0; i-- {
		b := v.batches[i]
		if len(b) == 0 || b[0] == temperatureRegister || strings.EqualFold(b[0], "00000000000143E0") {
			continue
		}
		return append([]string(nil), b...)
	}
	return nil
}

// TxEnabled reports whether the transmit chain is on.
func (v *VirtualAiP) TxEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.txEnabled
}

// RxEnabled reports whether the receive chain is on.
func (v *VirtualAiP) RxEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rxEnabled
}

// Selected reports whether AT+DUT has been received.
func (v *VirtualAiP) Selected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selected
}

// Pending returns the number of reply bytes not yet read.
func (v *VirtualAiP) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.txBuffer.Len()
}

// DiscardPending drops unread reply bytes, as a host input flush does.
func (v *VirtualAiP) DiscardPending() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.txBuffer.Reset()
}
