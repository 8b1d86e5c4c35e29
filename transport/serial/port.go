// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ffutop/serial-scope/transport"
	"github.com/grid-x/serial"
)

// openPort is replaced in tests.
var openPort = func(c *serial.Config) (io.ReadWriteCloser, error) {
	return serial.Open(c)
}

// Port is a serial device opened with a finite read timeout.
type Port struct {
	// Serial port configuration.
	serial.Config

	mu sync.Mutex
	// port is platform-dependent data structure for serial port.
	port io.ReadWriteCloser
}

// New maps a transport config onto a Port without opening it.
func New(cfg transport.Config) *Port {
	p := &Port{}
	p.Config.Address = cfg.Port
	p.Config.BaudRate = cfg.BaudRate
	p.Config.DataBits = cfg.DataBits
	p.Config.StopBits = cfg.StopBits
	p.Config.Parity = cfg.Parity
	p.Config.Timeout = cfg.ReadTimeout()

	if p.Config.DataBits == 0 {
		p.Config.DataBits = 8
	}
	if p.Config.StopBits == 0 {
		p.Config.StopBits = 1
	}
	if p.Config.Parity == "" {
		p.Config.Parity = "N"
	}
	return p
}

// Open implements transport.Opener.
func Open(ctx context.Context, cfg transport.Config) (transport.Device, error) {
	p := New(cfg)
	if err := p.Connect(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Port) Connect(ctx context.Context) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.connect(ctx)
}

// connect opens the serial port if it is not open. Caller must hold the mutex.
func (p *Port) connect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if p.port == nil {
		port, err := openPort(&p.Config)
		if err != nil {
			return fmt.Errorf("could not open %s at %d baud: %w", p.Config.Address, p.Config.BaudRate, err)
		}
		p.port = port
		slog.Debug("serial port opened", "device", p.Config.Address, "baudRate", p.Config.BaudRate, "timeout", p.Config.Timeout)
	}
	return nil
}

// Read reads from the open port. The lock is not held while blocked so that
// Close is never delayed by a pending read.
func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	port := p.port
	p.mu.Unlock()

	if port == nil {
		return 0, transport.ErrClosed
	}
	n, err := port.Read(b)
	if err != nil {
		if errors.Is(err, serial.ErrTimeout) {
			return n, fmt.Errorf("%w after %v on %s", transport.ErrTimeout, p.Config.Timeout, p.Config.Address)
		}
		return n, err
	}
	if n == 0 && len(b) > 0 {
		// readable with no data: the other end hung up
		return 0, io.EOF
	}
	return n, nil
}

// Write is used by the device simulator.
func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	port := p.port
	p.mu.Unlock()

	if port == nil {
		return 0, transport.ErrClosed
	}
	return port.Write(b)
}

func (p *Port) Close() (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.close()
}

// close closes the serial port if it is open. Caller must hold the mutex.
func (p *Port) close() (err error) {
	if p.port != nil {
		err = p.port.Close()
		p.port = nil
	}
	return
}
