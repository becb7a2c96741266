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

import "sync"

// readPool holds scratch buffers for serial reads so the drain loop does not
// allocate per chunk.
var readPool = sync.Pool{
	New: func() any {
		buf := make([]byte, ReadChunkSize)
		return &buf
	},
}

// GetReadBuffer returns a ReadChunkSize scratch buffer.
// Return it with PutReadBuffer when done.
func GetReadBuffer() []byte {
	bufPtr, ok := readPool.Get().(*[]byte)
	if !ok {
		return make([]byte, ReadChunkSize)
	}
	return (*bufPtr)[:ReadChunkSize]
}

// PutReadBuffer returns a buffer obtained from GetReadBuffer. Buffers of any
// other capacity are left to the GC.
func PutReadBuffer(buf []byte) {
	if cap(buf) != ReadChunkSize {
		return
	}
	full := buf[:ReadChunkSize]
	clear(full)
	readPool.Put(&full)
}
