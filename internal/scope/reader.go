// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package scope

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/ffutop/serial-scope/frame"
	"github.com/ffutop/serial-scope/transport"
	"go.uber.org/atomic"
)

// appender is the only view of the buffer the reader gets.
type appender interface {
	Append(frame.Sample) error
}

// FrameReader owns the device of the current session and turns its byte
// stream into frames. It reports state changes but does not keep them.
type FrameReader struct {
	open   transport.Opener
	log    *slog.Logger
	report func(State, error) error

	// MaxResync is handed to the decoder; zero searches forever.
	MaxResync int

	mu    sync.Mutex
	dev   transport.Device
	shape frame.Shape

	frames    atomic.Uint64
	discarded atomic.Uint64
}

// NewFrameReader returns a reader that opens devices with open and reports
// transitions through report.
func NewFrameReader(open transport.Opener, logger *slog.Logger, report func(State, error) error) *FrameReader {
	if logger == nil {
		logger = slog.Default()
	}
	if report == nil {
		report = func(State, error) error { return nil }
	}
	return &FrameReader{open: open, log: logger, report: report}
}

// Connect opens the device. A failure is reported as Failed and returned;
// it is never fatal.
func (r *FrameReader) Connect(ctx context.Context, cfg transport.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.report(Connecting, nil)
	if r.dev != nil {
		r.dev.Close()
		r.dev = nil
	}
	dev, err := r.open(ctx, cfg)
	if err != nil {
		r.log.Error("Failed to connect", "port", cfg.Port, "baudRate", cfg.BaudRate, "err", err)
		r.report(Failed, err)
		return err
	}
	r.dev = dev
	r.log.Info("Connected", "port", cfg.Port, "baudRate", cfg.BaudRate, "timeout", cfg.ReadTimeout())
	r.report(Connected, nil)
	return nil
}

// Configure sets the frame shape for the next Listen and resets the
// counters. It must not be called while Listen runs.
func (r *FrameReader) Configure(shape frame.Shape) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.shape = shape
	r.frames.Store(0)
	r.discarded.Store(0)
}

// Listen decodes frames into out until a read fails or ctx is canceled.
// Cancellation is checked before every device read, so it is observed
// within one read timeout. The terminal state is reported before return.
func (r *FrameReader) Listen(ctx context.Context, out appender) error {
	r.mu.Lock()
	dev, shape := r.dev, r.shape
	r.mu.Unlock()

	if dev == nil {
		r.report(Failed, transport.ErrClosed)
		return transport.ErrClosed
	}

	dec := frame.NewDecoder(ctxReader{ctx: ctx, r: dev}, shape)
	dec.MaxResync = r.MaxResync

	r.log.Debug("Read loop started", "width", shape.Width, "channels", shape.Channels)
	for {
		sample, err := dec.ReadSample()
		if n := dec.Skipped(); n > 0 {
			r.discarded.Add(uint64(n))
		}
		if err == nil {
			err = out.Append(sample)
		}
		if err != nil {
			state, cause := r.classify(ctx, err)
			r.log.Debug("Read loop stopped", "frames", r.frames.Load(), "discarded", r.discarded.Load(), "err", err)
			r.report(state, cause)
			return cause
		}
		r.frames.Inc()
		r.log.Debug("Frame", "values", sample)
	}
}

// classify maps a loop error to the state it leaves the session in.
// Cancellation is a clean stop; timeouts and hang-ups disconnect; anything
// else is an abrupt failure.
func (r *FrameReader) classify(ctx context.Context, err error) (State, error) {
	switch {
	case ctx.Err() != nil:
		return Disconnected, nil
	case errors.Is(err, transport.ErrTimeout),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return Disconnected, err
	default:
		return Failed, err
	}
}

// Disconnect releases the device. It is safe to call more than once.
func (r *FrameReader) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dev == nil {
		return nil
	}
	err := r.dev.Close()
	r.dev = nil
	return err
}

// Frames is the number of frames appended in the current session.
func (r *FrameReader) Frames() uint64 {
	return r.frames.Load()
}

// Discarded is the number of bytes skipped while searching for a sentinel.
func (r *FrameReader) Discarded() uint64 {
	return r.discarded.Load()
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
