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

package radio

import "math/rand/v2"

// Baseband packet layout: a burst of QPSK symbols followed by silence.
const (
	PacketSymbols = 1000
	PacketLength  = 10000
)

// BasebandPacket returns the packet transmitted on the baseband channel:
// PacketSymbols random QPSK symbols (±1±1j) followed by zeros up to
// PacketLength. The same seed always yields the same packet.
func BasebandPacket(seed uint64) []complex64 {
	rng := rand.New(rand.NewPCG(seed, seed)) //nolint:gosec // test waveform, not crypto
	out := make([]complex64, PacketLength)
	for i := range PacketSymbols {
		re := float32(2*rng.IntN(2) - 1)
		im := float32(2*rng.IntN(2) - 1)
		out[i] = complex(re, im)
	}
	return out
}

// LOSignal returns n samples of the constant 1+0j carrier fed to the LO chain.
func LOSignal(n int) []complex64 {
	out := make([]complex64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
