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

package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeVIDPID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{in: "0403:6001", want: "0403:6001"},
		{in: "10c4:ea60", want: "10C4:EA60"},
		{in: " 0x1a86 : 0x7523 ", want: "1A86:7523"},
		{in: "0403", want: ""},
		{in: "zz:6001", want: ""},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeVIDPID(tt.in))
		})
	}
}

func TestIsBlocked(t *testing.T) {
	t.Parallel()
	assert.True(t, IsBlocked("10c4:ea60", []string{"10C4:EA60"}))
	assert.False(t, IsBlocked("0403:6001", []string{"10C4:EA60"}))
	assert.False(t, IsBlocked("", []string{"10C4:EA60"}))
	assert.False(t, IsBlocked("0403:6001", nil))
}

func TestIsPathIgnored(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		devicePath  string
		ignorePaths []string
		expected    bool
	}{
		{name: "empty ignore list", devicePath: "/dev/ttyUSB0", expected: false},
		{name: "empty device path", devicePath: "", ignorePaths: []string{"/dev/ttyUSB0"}, expected: false},
		{name: "exact match", devicePath: "/dev/ttyUSB0", ignorePaths: []string{"/dev/ttyUSB0"}, expected: true},
		{name: "windows path", devicePath: "COM3", ignorePaths: []string{"com3"}, expected: true},
		{name: "unclean path", devicePath: "/dev/ttyUSB1", ignorePaths: []string{"/dev/../dev/ttyUSB1"}, expected: true},
		{name: "other port", devicePath: "/dev/ttyUSB1", ignorePaths: []string{"", "/dev/ttyUSB0"}, expected: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, IsPathIgnored(tt.devicePath, tt.ignorePaths))
		})
	}
}
