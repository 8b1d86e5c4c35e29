// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package scope

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ffutop/serial-scope/frame"
	"github.com/ffutop/serial-scope/transport"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/atomic"
)

// Options configures a Controller. The zero value is usable.
type Options struct {
	// Capacity of the rolling buffer; DefaultCapacity when <= 0.
	Capacity int
	// PreFill starts every session with a buffer full of zero frames.
	PreFill bool
	// MaxResync bounds sentinel search; zero searches forever.
	MaxResync int
	// Device holds the serial settings shared by all sessions (data bits,
	// parity, stop bits, read timeout). Port and baud rate come from the
	// ConnectionConfig passed to Start.
	Device transport.Config

	Logger *slog.Logger
	// OnStateChange is called after every state transition, from the
	// goroutine that caused it. It must not call back into the Controller.
	OnStateChange func(Transition)
}

// Status is a point-in-time view of the controller.
type Status struct {
	State     State
	Err       error
	Acquiring bool
	Frames    uint64
	Discarded uint64
	Buffered  int
	Config    ConnectionConfig
}

// session is what a render tick may look at.
type session struct {
	cfg ConnectionConfig
	buf *RollingBuffer
}

// Controller owns the rolling buffer, the connection state and the
// start/stop lifecycle of acquisition sessions.
type Controller struct {
	opts   Options
	log    *slog.Logger
	state  stateMachine
	reader *FrameReader

	// mu serializes Start and Stop.
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     *conc.WaitGroup

	sessMu sync.RWMutex
	sess   session

	acquiring atomic.Bool
}

// New returns a Controller that opens devices with open.
func New(open transport.Opener, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		opts: opts,
		log:  logger,
	}
	c.state.log = logger
	c.state.onChange = opts.OnStateChange
	c.reader = NewFrameReader(open, logger, c.state.set)
	c.reader.MaxResync = opts.MaxResync
	return c
}

// Start opens the device described by cfg and launches the read loop on
// its own goroutine. A running session is stopped first. On a connection
// failure the state is Failed, the previous buffer is kept and the error
// is returned. The session ends on Stop, on a read failure, or when ctx is
// canceled.
func (c *Controller) Start(ctx context.Context, cfg ConnectionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.stop(); err != nil {
		c.log.Warn("Failed to release previous device", "err", err)
	}

	devCfg := c.opts.Device
	devCfg.Port = cfg.Port
	devCfg.BaudRate = cfg.BaudRate
	if err := c.reader.Connect(ctx, devCfg); err != nil {
		return err
	}

	c.reader.Configure(cfg.Shape())
	buf := NewRollingBuffer(c.opts.Capacity, cfg.Channels)
	if c.opts.PreFill {
		buf.Prefill()
	}
	c.sessMu.Lock()
	c.sess = session{cfg: cfg, buf: buf}
	c.sessMu.Unlock()

	sessCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg = &conc.WaitGroup{}
	c.acquiring.Store(true)
	c.wg.Go(func() { c.run(sessCtx, buf) })

	c.log.Info("Acquisition started", "port", cfg.Port, "baudRate", cfg.BaudRate,
		"width", cfg.ByteWidth, "channels", cfg.Channels, "capacity", buf.Cap())
	return nil
}

func (c *Controller) run(ctx context.Context, buf *RollingBuffer) {
	defer c.acquiring.Store(false)

	var pc panics.Catcher
	pc.Try(func() {
		c.reader.Listen(ctx, buf)
	})
	if r := pc.Recovered(); r != nil {
		c.log.Error("Read loop panicked", "panic", r.Value, "stack", string(r.Stack))
		c.state.set(Failed, r.AsError())
	}
	if err := c.reader.Disconnect(); err != nil {
		c.log.Warn("Failed to close device", "err", err)
	}
}

// Stop ends the current session: the read loop observes the cancellation
// within one read timeout, the device is closed and the state becomes
// Disconnected. Stop without a session is a no-op.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stop()
}

// stop must be called with c.mu held.
func (c *Controller) stop() error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	c.wg.Wait()
	c.cancel = nil
	c.wg = nil

	err := c.reader.Disconnect()
	c.state.set(Disconnected, nil)
	c.log.Info("Acquisition stopped", "frames", c.reader.Frames(), "discarded", c.reader.Discarded())
	return err
}

// Snapshot returns the current window, oldest frame first. It never blocks
// on I/O and is safe to call while the read loop appends.
func (c *Controller) Snapshot() []frame.Frame {
	c.sessMu.RLock()
	buf := c.sess.buf
	c.sessMu.RUnlock()

	if buf == nil {
		return nil
	}
	return buf.Snapshot()
}

// State returns the current connection state.
func (c *Controller) State() State {
	s, _ := c.state.get()
	return s
}

// Acquiring reports whether a read loop is running.
func (c *Controller) Acquiring() bool {
	return c.acquiring.Load()
}

// Status returns state, counters and the active configuration.
func (c *Controller) Status() Status {
	state, err := c.state.get()
	c.sessMu.RLock()
	sess := c.sess
	c.sessMu.RUnlock()

	st := Status{
		State:     state,
		Err:       err,
		Acquiring: c.acquiring.Load(),
		Frames:    c.reader.Frames(),
		Discarded: c.reader.Discarded(),
		Config:    sess.cfg,
	}
	if sess.buf != nil {
		st.Buffered = sess.buf.Len()
	}
	return st
}
