// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package frame

import "fmt"

type ValueRangeError struct {
	Value int64
	Width int
}

func (e *ValueRangeError) Error() string {
	return fmt.Sprintf("frame: value %d does not fit in %d byte(s)", e.Value, e.Width)
}

// Encode builds one on-wire unit:
//
//	Sentinel : 1 byte (0xA8)
//	Values   : Channels x Width bytes, little-endian, signed
func Encode(shape Shape, values Sample) ([]byte, error) {
	return AppendUnit(make([]byte, 0, shape.UnitSize()), shape, values)
}

// AppendUnit appends the encoding of values to dst.
func AppendUnit(dst []byte, shape Shape, values Sample) ([]byte, error) {
	if err := shape.Validate(); err != nil {
		return dst, err
	}
	if len(values) != shape.Channels {
		return dst, fmt.Errorf("frame: got %d values for %d channels", len(values), shape.Channels)
	}
	dst = append(dst, Sentinel)
	for _, v := range values {
		if !fits(v, shape.Width) {
			return dst, &ValueRangeError{Value: v, Width: shape.Width}
		}
		for i := 0; i < shape.Width; i++ {
			dst = append(dst, byte(v>>(8*i)))
		}
	}
	return dst, nil
}

// Range returns the smallest and largest value representable in width bytes.
func Range(width int) (lo, hi int64) {
	if width >= MaxWidth {
		return -1 << 63, 1<<63 - 1
	}
	hi = 1<<(8*width-1) - 1
	return -hi - 1, hi
}

func fits(v int64, width int) bool {
	lo, hi := Range(width)
	return v >= lo && v <= hi
}
