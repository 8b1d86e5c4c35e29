// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Command scope-sim streams synthetic frames to a serial device or to TCP
// clients, for exercising serial-scope without hardware.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ffutop/serial-scope/frame"
	"github.com/ffutop/serial-scope/transport"
	"github.com/ffutop/serial-scope/transport/serial"
	"github.com/spf13/pflag"
)

func main() {
	device := pflag.StringP("device", "p", "", "Serial device to write to.")
	listen := pflag.StringP("listen", "l", "", "TCP address to serve frames on instead of a serial device.")
	baudRate := pflag.IntP("baud_rate", "s", 115200, "Serial port speed.")
	dataSize := pflag.IntP("data_size", "d", 1, "Bytes per channel value.")
	numLines := pflag.IntP("num_lines", "n", 1, "Number of channels.")
	wave := pflag.StringP("wave", "w", "sine", "Waveform: sine, ramp or square.")
	amplitude := pflag.Int64P("amplitude", "a", 0, "Peak value; 0 uses the largest value the width allows.")
	period := pflag.IntP("period", "P", 50, "Samples per waveform period.")
	rate := pflag.IntP("rate", "r", 100, "Frames per second.")
	pflag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	shape := frame.Shape{Width: *dataSize, Channels: *numLines}
	gen, err := newGenerator(shape, *wave, *amplitude, *period)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid options: %v\n", err)
		os.Exit(2)
	}
	if *rate < 1 {
		fmt.Fprintln(os.Stderr, "Invalid options: rate must be >= 1")
		os.Exit(2)
	}
	interval := time.Second / time.Duration(*rate)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case *listen != "":
		err = serveTCP(ctx, *listen, gen, interval, logger)
	case *device != "":
		err = serveSerial(ctx, transport.Config{Port: *device, BaudRate: *baudRate}, gen, interval, logger)
	default:
		fmt.Fprintln(os.Stderr, "One of --device or --listen is required")
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Simulator stopped", "err", err)
		os.Exit(1)
	}
}

func serveSerial(ctx context.Context, cfg transport.Config, gen *generator, interval time.Duration, logger *slog.Logger) error {
	port := serial.New(cfg)
	if err := port.Connect(ctx); err != nil {
		return err
	}
	defer port.Close()
	logger.Info("Streaming frames", "device", cfg.Port, "baudRate", cfg.BaudRate)
	return stream(ctx, port, gen, interval)
}

// serveTCP streams to one client at a time, like a serial-over-TCP bridge.
func serveTCP(ctx context.Context, addr string, gen *generator, interval time.Duration, logger *slog.Logger) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	logger.Info("Serving frames", "address", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		logger.Info("Client connected", "remote", conn.RemoteAddr().String())
		err = stream(ctx, conn, gen, interval)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Info("Client disconnected", "remote", conn.RemoteAddr().String(), "err", err)
	}
}

func stream(ctx context.Context, w io.Writer, gen *generator, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			unit, err := gen.unit()
			if err != nil {
				return err
			}
			if _, err := w.Write(unit); err != nil {
				return err
			}
		}
	}
}
