// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"

	"github.com/ffutop/serial-scope/transport"
	"github.com/ffutop/serial-scope/transport/serial"
	"github.com/ffutop/serial-scope/transport/tcp"
)

// openDevice picks the transport from the port name: tcp://host:port goes
// through a serial-over-TCP bridge, anything else is a local serial device.
func openDevice(ctx context.Context, cfg transport.Config) (transport.Device, error) {
	if tcp.IsAddress(cfg.Port) {
		return tcp.Dial(ctx, cfg)
	}
	return serial.Open(ctx, cfg)
}
