// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package frame

import "fmt"

// Sample holds one decoded value per channel.
type Sample []int64

// Frame is a Sample tagged with its arrival order inside a session.
// Values must not be modified once the Frame has been published.
type Frame struct {
	Seq    uint64
	Values Sample
}

// Shape is the per-session frame geometry negotiated out of band.
type Shape struct {
	Width    int // bytes per channel value
	Channels int
}

type InvalidShapeError struct {
	Width    int
	Channels int
}

func (e *InvalidShapeError) Error() string {
	return fmt.Sprintf("frame: invalid shape: width %d (want %d..%d), channels %d (want >= %d)",
		e.Width, MinWidth, MaxWidth, e.Channels, MinChannels)
}

// Validate reports whether the shape can be decoded.
func (s Shape) Validate() error {
	if s.Width < MinWidth || s.Width > MaxWidth || s.Channels < MinChannels {
		return &InvalidShapeError{Width: s.Width, Channels: s.Channels}
	}
	return nil
}

// PayloadSize is the number of bytes following the sentinel.
func (s Shape) PayloadSize() int {
	return s.Width * s.Channels
}

// UnitSize is the full on-wire size of one frame, sentinel included.
func (s Shape) UnitSize() int {
	return 1 + s.PayloadSize()
}
