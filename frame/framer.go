// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package frame

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrShortRead wraps every read failure; the underlying cause
	// (io.EOF, a device timeout, ...) stays reachable through errors.Is.
	ErrShortRead = errors.New("frame: short read")

	ErrResyncLimit = errors.New("frame: resync limit exceeded")
)

type ResyncError struct {
	Skipped int
}

func (e *ResyncError) Error() string {
	return fmt.Sprintf("frame: no sentinel after %d bytes", e.Skipped)
}

func (e *ResyncError) Unwrap() error {
	return ErrResyncLimit
}

const (
	stateSentinel = 1 << iota
	statePayload
)

// Decoder reads sentinel-delimited frames from r.
//
// The wire format carries no escaping and no checksum: a payload byte equal
// to Sentinel is indistinguishable from a frame start, so a stream that
// loses sync inside such a payload may stay misaligned.
type Decoder struct {
	r     io.Reader
	shape Shape

	// MaxResync bounds the number of consecutive non-sentinel bytes skipped
	// while searching for a frame start. Zero means no bound.
	MaxResync int

	one     [1]byte
	payload []byte
	skipped int
}

// NewDecoder returns a Decoder for the given shape. The shape is not
// validated here; see Shape.Validate.
func NewDecoder(r io.Reader, shape Shape) *Decoder {
	d := &Decoder{r: r}
	d.SetShape(shape)
	return d
}

// SetShape changes the geometry used by the next ReadSample call.
// It must not be called while ReadSample is running.
func (d *Decoder) SetShape(shape Shape) {
	d.shape = shape
	if cap(d.payload) < shape.PayloadSize() {
		d.payload = make([]byte, shape.PayloadSize())
	}
	d.payload = d.payload[:shape.PayloadSize()]
}

// Shape returns the current geometry.
func (d *Decoder) Shape() Shape {
	return d.shape
}

// Skipped returns how many bytes the last ReadSample discarded before it
// found a sentinel.
func (d *Decoder) Skipped() int {
	return d.skipped
}

// ReadSample blocks until one complete frame has been read. A failed read
// never yields a partial Sample.
func (d *Decoder) ReadSample() (Sample, error) {
	d.skipped = 0
	state := stateSentinel

	for {
		switch state {
		case stateSentinel:
			if _, err := io.ReadFull(d.r, d.one[:]); err != nil {
				return nil, shortRead(err)
			}
			if d.one[0] == Sentinel {
				state = statePayload
				continue
			}
			d.skipped++
			if d.MaxResync > 0 && d.skipped > d.MaxResync {
				return nil, &ResyncError{Skipped: d.skipped}
			}
		case statePayload:
			if _, err := io.ReadFull(d.r, d.payload); err != nil {
				return nil, shortRead(err)
			}
			return DecodeSample(d.payload, d.shape), nil
		}
	}
}

func shortRead(err error) error {
	return fmt.Errorf("%w: %w", ErrShortRead, err)
}

// DecodeSample splits payload into shape.Channels little-endian signed
// integers of shape.Width bytes each. len(payload) must equal
// shape.PayloadSize().
func DecodeSample(payload []byte, shape Shape) Sample {
	s := make(Sample, shape.Channels)
	for i := range s {
		s[i] = DecodeValue(payload[i*shape.Width : (i+1)*shape.Width])
	}
	return s
}

// DecodeValue interprets b as a little-endian two's complement integer of
// len(b) bytes, 1 <= len(b) <= 8.
func DecodeValue(b []byte) int64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	shift := 64 - 8*uint(len(b))
	return int64(v<<shift) >> shift
}
