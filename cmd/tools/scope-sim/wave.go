// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"fmt"
	"math"

	"github.com/ffutop/serial-scope/frame"
)

type waveform func(phase float64) float64

var waveforms = map[string]waveform{
	"sine": func(p float64) float64 { return math.Sin(2 * math.Pi * p) },
	"ramp": func(p float64) float64 { return 2*p - 1 },
	"square": func(p float64) float64 {
		if p < 0.5 {
			return 1
		}
		return -1
	},
}

// generator produces one sample per call. Channel i is shifted by i/channels
// of a period so the traces are distinguishable.
type generator struct {
	shape     frame.Shape
	wave      waveform
	amplitude int64
	period    int // samples per period
	n         int
}

func newGenerator(shape frame.Shape, wave string, amplitude int64, period int) (*generator, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	w, ok := waveforms[wave]
	if !ok {
		return nil, fmt.Errorf("unknown waveform %q", wave)
	}
	if period < 1 {
		return nil, fmt.Errorf("period must be >= 1, got %d", period)
	}
	_, hi := frame.Range(shape.Width)
	if amplitude <= 0 || amplitude > hi {
		amplitude = hi
	}
	return &generator{shape: shape, wave: w, amplitude: amplitude, period: period}, nil
}

func (g *generator) next() frame.Sample {
	s := make(frame.Sample, g.shape.Channels)
	for ch := range s {
		phase := math.Mod(float64(g.n)/float64(g.period)+float64(ch)/float64(g.shape.Channels), 1)
		s[ch] = int64(math.Round(g.wave(phase) * float64(g.amplitude)))
	}
	g.n++
	return s
}

// unit encodes the next sample.
func (g *generator) unit() ([]byte, error) {
	return frame.Encode(g.shape, g.next())
}
