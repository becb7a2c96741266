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

package frame

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCommand is returned for commands that cannot be framed.
var ErrInvalidCommand = errors.New("invalid command")

// EncodeCommand frames an AT command for the wire by appending the CR
// terminator. Commands must be printable ASCII without line breaks.
func EncodeCommand(cmd string) ([]byte, error) {
	if cmd == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidCommand)
	}
	if len(cmd) > MaxCommandLength {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidCommand, len(cmd), MaxCommandLength)
	}
	for i := range len(cmd) {
		c := cmd[i]
		if c < 0x20 || c > 0x7E {
			return nil, fmt.Errorf("%w: byte 0x%02X at offset %d", ErrInvalidCommand, c, i)
		}
	}
	out := make([]byte, 0, len(cmd)+1)
	out = append(out, cmd...)
	return append(out, Terminator), nil
}

// DecodeCommand strips the terminator (and a trailing NUL some hosts send)
// from a framed command.
func DecodeCommand(raw []byte) string {
	return string(bytes.TrimRight(raw, "\r\n\x00"))
}

// SplitLines breaks a raw response into trimmed, non-empty lines. The firmware
// ends lines with CR, LF or both, and may pad with NUL.
func SplitLines(resp []byte) []string {
	fields := strings.FieldsFunc(string(resp), func(r rune) bool {
		return r == '\r' || r == '\n' || r == 0
	})
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		if t := strings.TrimSpace(f); t != "" {
			lines = append(lines, t)
		}
	}
	return lines
}

// ContainsAck reports whether any line of resp equals one of the accepted
// acknowledgement literals.
func ContainsAck(resp []byte, accepted ...string) bool {
	for _, line := range SplitLines(resp) {
		for _, ack := range accepted {
			if line == ack {
				return true
			}
		}
	}
	return false
}
