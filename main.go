// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ffutop/serial-scope/internal/config"
	"github.com/ffutop/serial-scope/internal/scope"
	"github.com/ffutop/serial-scope/transport"
	"github.com/spf13/pflag"
)

func main() {
	flags := config.NewFlagSet(os.Args[0])
	saveRecord := flags.String("save_record", "", "Write the session record to this file on exit.")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Printf("Failed to parse flags: %v\n", err)
		os.Exit(2)
	}

	// Load Configuration
	cfg, err := config.LoadConfig(flags)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	logger.Info("Starting serial scope...", "device", cfg.Serial.Device)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ctrl := scope.New(openDevice, scope.Options{
		Capacity:  cfg.Scope.Capacity,
		PreFill:   cfg.Scope.PreFill,
		MaxResync: cfg.Scope.MaxResync,
		Device: transport.Config{
			DataBits: cfg.Serial.DataBits,
			Parity:   cfg.Serial.Parity,
			StopBits: cfg.Serial.StopBits,
			Timeout:  cfg.Serial.Timeout,
		},
		Logger: logger.With("component", "scope"),
		OnStateChange: func(t scope.Transition) {
			logger.Info("Connection state changed", "from", t.From, "to", t.To, "err", t.Err)
		},
	})

	conn := connectionConfig(cfg)
	if err := ctrl.Start(ctx, conn); err != nil {
		// The render loop retries when reconnect is enabled.
		logger.Error("Failed to start acquisition", "err", err)
		if cfg.ReconnectMin <= 0 {
			os.Exit(1)
		}
	}

	r := newRenderer(ctrl, conn, cfg, logger.With("component", "render"))
	r.Run(ctx)

	logger.Info("Shutting down...")
	if err := ctrl.Stop(); err != nil {
		logger.Warn("Failed to close device", "err", err)
	}
	if *saveRecord != "" {
		path, err := config.SaveRecord(*saveRecord, cfg.Scope.Record())
		if err != nil {
			logger.Error("Failed to save session record", "err", err)
		} else {
			logger.Info("Session record saved", "path", path)
		}
	}
	logger.Info("Goodbye.")
}

func connectionConfig(cfg *config.Config) scope.ConnectionConfig {
	return scope.ConnectionConfig{
		Port:      cfg.Serial.Device,
		BaudRate:  cfg.Scope.BaudRate,
		ByteWidth: cfg.Scope.DataSize,
		Channels:  cfg.Scope.NumLines,
		YMin:      cfg.Scope.YMin,
		YMax:      cfg.Scope.YMax,
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Printf("Failed to open log file, falling back to stdout: %v\n", err)
			handler = slog.NewTextHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
