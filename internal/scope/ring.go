// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package scope

import (
	"fmt"
	"sync"

	"github.com/ffutop/serial-scope/frame"
)

// DefaultCapacity is the number of frames kept on screen.
const DefaultCapacity = 25

// RollingBuffer is a fixed-capacity FIFO of the most recent frames.
// One goroutine appends, any number may take snapshots.
type RollingBuffer struct {
	mu       sync.RWMutex
	frames   []frame.Frame // ring storage, len == capacity
	head     int           // index of the oldest frame
	size     int
	channels int
	seq      uint64
}

// NewRollingBuffer allocates an empty buffer for frames of the given
// channel count. A non-positive capacity selects DefaultCapacity.
func NewRollingBuffer(capacity, channels int) *RollingBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RollingBuffer{
		frames:   make([]frame.Frame, capacity),
		channels: channels,
	}
}

// Prefill fills the buffer with zero samples (Seq 0) so a renderer never
// sees a partially filled window.
func (b *RollingBuffer) Prefill() {
	b.mu.Lock()
	defer b.mu.Unlock()

	zero := make(frame.Sample, b.channels)
	for i := range b.frames {
		b.frames[i] = frame.Frame{Values: zero}
	}
	b.head = 0
	b.size = len(b.frames)
}

// Append copies values into a new frame, evicting the oldest one when the
// buffer is full. Samples of the wrong length are rejected whole.
func (b *RollingBuffer) Append(values frame.Sample) error {
	if len(values) != b.channels {
		return fmt.Errorf("scope: sample has %d values, buffer holds %d channels", len(values), b.channels)
	}
	f := frame.Frame{Values: append(frame.Sample(nil), values...)}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	f.Seq = b.seq
	capacity := len(b.frames)
	if b.size < capacity {
		b.frames[(b.head+b.size)%capacity] = f
		b.size++
		return nil
	}
	b.frames[b.head] = f
	b.head = (b.head + 1) % capacity
	return nil
}

// Snapshot returns the buffered frames, oldest first. The returned slice
// is owned by the caller; the Values it references are never modified.
func (b *RollingBuffer) Snapshot() []frame.Frame {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]frame.Frame, b.size)
	capacity := len(b.frames)
	for i := range out {
		out[i] = b.frames[(b.head+i)%capacity]
	}
	return out
}

func (b *RollingBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

func (b *RollingBuffer) Cap() int {
	return len(b.frames)
}

func (b *RollingBuffer) Channels() int {
	return b.channels
}
