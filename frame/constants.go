// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package frame

// Sentinel marks the start of every unit on the wire.
const Sentinel byte = 0xA8

const (
	MinWidth = 1
	MaxWidth = 8

	MinChannels = 1
)
