// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"context"
	"errors"
	"io"
	"time"
)

// DefaultTimeout bounds every single read on a device.
const DefaultTimeout = 4 * time.Second

var (
	// ErrTimeout is returned (wrapped) when a read saw no data within the
	// configured timeout.
	ErrTimeout = errors.New("transport: read timeout")

	ErrClosed = errors.New("transport: device closed")
)

// Config is what a device needs to be opened for one session.
type Config struct {
	Port     string // device path or tcp://host:port
	BaudRate int
	DataBits int
	Parity   string
	StopBits int
	Timeout  time.Duration // per read, must be finite
}

// ReadTimeout returns the configured per-read timeout, falling back to
// DefaultTimeout so that reads never block forever.
func (c Config) ReadTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// Device is a byte source owned by exactly one reader goroutine.
// Close may be called from another goroutine once reading has stopped.
type Device interface {
	io.Reader
	io.Closer
}

// Opener opens a Device. Implementations must not block longer than the
// device's own connect timeout.
type Opener func(ctx context.Context, cfg Config) (Device, error)
