// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package scope

import (
	"errors"
	"fmt"

	"github.com/ffutop/serial-scope/frame"
)

var ErrInvalidConfig = errors.New("scope: invalid connection config")

// ConnectionConfig describes one acquisition session. It is consumed once
// by Start; changing any field requires a new session.
type ConnectionConfig struct {
	Port      string
	BaudRate  int
	ByteWidth int // bytes per channel value
	Channels  int

	// Display bounds, passed through to the renderer untouched.
	YMin int
	YMax int
}

// Validate checks the fields the acquisition path depends on.
// Display bounds are not validated.
func (c ConnectionConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("%w: port is required", ErrInvalidConfig)
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("%w: baud rate must be > 0, got %d", ErrInvalidConfig, c.BaudRate)
	}
	if err := c.Shape().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c ConnectionConfig) Shape() frame.Shape {
	return frame.Shape{Width: c.ByteWidth, Channels: c.Channels}
}
