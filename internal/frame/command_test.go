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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cmd     string
		want    string
		wantErr bool
	}{
		{name: "control", cmd: "AT+DUT=0158", want: "AT+DUT=0158\r"},
		{name: "register", cmd: "AT+REG=0002000000000820", want: "AT+REG=0002000000000820\r"},
		{name: "query", cmd: "AT+SEND?", want: "AT+SEND?\r"},
		{name: "empty", cmd: "", wantErr: true},
		{name: "embedded CR", cmd: "AT+TXEN=1\rAT", wantErr: true},
		{name: "NUL", cmd: "AT+TXEN=1\x00", wantErr: true},
		{name: "too long", cmd: "AT+REG=" + strings.Repeat("0", MaxCommandLength), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := EncodeCommand(tt.cmd)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidCommand)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
			assert.Equal(t, tt.cmd, DecodeCommand(got))
		})
	}
}

func TestDecodeCommand_TrailingNUL(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "AT+RXEN=0", DecodeCommand([]byte("AT+RXEN=0\r\x00")))
}

func TestSplitLines(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		resp string
		want []string
	}{
		{name: "empty", resp: "", want: []string{}},
		{name: "CR only", resp: "AMO:ok\r", want: []string{"AMO:ok"}},
		{name: "CRLF", resp: "AMO:ok\r\n", want: []string{"AMO:ok"}},
		{name: "echo then ack", resp: "AT+SEND?\r\nAMO:4 chip setting complite ok\r\n", want: []string{"AT+SEND?", AckChipSetting}},
		{name: "padding", resp: "\x00\x00 AMO:ok \r\n\r\n", want: []string{"AMO:ok"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SplitLines([]byte(tt.resp)))
		})
	}
}

func TestContainsAck(t *testing.T) {
	t.Parallel()
	assert.True(t, ContainsAck([]byte("AMO:ok\r\n"), AckOK))
	assert.True(t, ContainsAck([]byte("AMO:4 chip setting complite ok\r\n"), AckOK, AckChipSetting))
	assert.False(t, ContainsAck([]byte("AMO:4 chip setting complite ok\r\n"), AckOK))
	assert.False(t, ContainsAck([]byte("AMO:okay\r\n"), AckOK))
	assert.False(t, ContainsAck(nil, AckOK))
	assert.False(t, ContainsAck([]byte("ERROR\r\n"), AckOK, AckChipSetting))
}

func TestReadBufferPool(t *testing.T) {
	t.Parallel()
	buf := GetReadBuffer()
	require.Len(t, buf, ReadChunkSize)
	buf[0] = 'A'
	PutReadBuffer(buf)
	PutReadBuffer(make([]byte, 3))

	again := GetReadBuffer()
	assert.Len(t, again, ReadChunkSize)
	assert.Zero(t, again[0])
}
