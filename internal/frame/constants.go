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

package frame

// Terminator ends every command sent to the array.
const Terminator = '\r'

// Acknowledgement literals the array firmware prints. The misspelling is the
// firmware's own and must be matched byte for byte.
const (
	AckOK          = "AMO:ok"
	AckChipSetting = "AMO:4 chip setting complite ok"
)

// Size limits
const (
	MaxCommandLength = 64   // Longest AT command the firmware accepts
	MaxResponseSize  = 4096 // Cap on one accumulated response
	ReadChunkSize    = 256  // Bytes requested per serial read
)
