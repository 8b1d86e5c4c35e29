// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/ffutop/serial-scope/transport"
)

// Scheme prefixes port identifiers served by a serial-over-TCP bridge.
const Scheme = "tcp://"

const (
	dialTimeout = 10 * time.Second
)

// Client reads a raw serial stream relayed over TCP (ser2net raw mode and
// similar bridges).
type Client struct {
	Address string
	Timeout time.Duration // per read

	mu   sync.Mutex
	conn net.Conn
}

// NewClient allocates a Client for address (with or without Scheme).
func NewClient(address string) *Client {
	return &Client{
		Address: strings.TrimPrefix(address, Scheme),
		Timeout: transport.DefaultTimeout,
	}
}

// IsAddress reports whether port names a TCP bridge.
func IsAddress(port string) bool {
	return strings.HasPrefix(port, Scheme)
}

// Dial implements transport.Opener. The baud rate is the bridge's concern.
func Dial(ctx context.Context, cfg transport.Config) (transport.Device, error) {
	c := NewClient(cfg.Port)
	c.Timeout = cfg.ReadTimeout()
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.Address)
	if err != nil {
		return fmt.Errorf("could not connect to %s: %w", c.Address, err)
	}
	c.conn = conn
	slog.Debug("serial bridge connected", "addr", c.Address, "timeout", c.Timeout)
	return nil
}

func (c *Client) Read(b []byte) (int, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return 0, transport.ErrClosed
	}
	if err := conn.SetReadDeadline(time.Now().Add(c.Timeout)); err != nil {
		return 0, err
	}
	n, err := conn.Read(b)
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return n, fmt.Errorf("%w after %v on %s", transport.ErrTimeout, c.Timeout, c.Address)
	}
	return n, err
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
