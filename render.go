// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/ffutop/serial-scope/frame"
	"github.com/ffutop/serial-scope/internal/config"
	"github.com/ffutop/serial-scope/internal/scope"
)

const statsInterval = 5 * time.Second

// acquisition is the part of scope.Controller the render loop uses.
type acquisition interface {
	Start(ctx context.Context, cfg scope.ConnectionConfig) error
	Snapshot() []frame.Frame
	Status() scope.Status
}

// renderer samples the rolling window on a fixed tick and draws it.
// It also restarts acquisition after the session ends, when enabled.
type renderer struct {
	src      acquisition
	conn     scope.ConnectionConfig
	interval time.Duration
	log      *slog.Logger

	// Connection and backoff state
	backoff     time.Duration
	backoffMin  time.Duration // 0 disables reconnect
	backoffMax  time.Duration
	nextAttempt time.Time

	lastSeq   uint64
	lastStats time.Time
}

func newRenderer(src acquisition, conn scope.ConnectionConfig, cfg *config.Config, logger *slog.Logger) *renderer {
	return &renderer{
		src:        src,
		conn:       conn,
		interval:   cfg.RenderInterval,
		log:        logger,
		backoffMin: cfg.ReconnectMin,
		backoffMax: cfg.ReconnectMax,
	}
}

// Run ticks until ctx is canceled.
func (r *renderer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.tick(ctx, now)
		}
	}
}

func (r *renderer) tick(ctx context.Context, now time.Time) {
	st := r.src.Status()
	if !st.Acquiring && r.backoffMin > 0 {
		r.ensureAcquiring(ctx, now, st)
	}

	frames := r.src.Snapshot()
	if n := len(frames); n > 0 && frames[n-1].Seq != r.lastSeq {
		r.lastSeq = frames[n-1].Seq
		r.draw(frames)
	}

	if now.Sub(r.lastStats) >= statsInterval {
		r.lastStats = now
		r.log.Info("Acquisition status", "state", st.State, "frames", st.Frames,
			"discarded", st.Discarded, "buffered", st.Buffered, "err", st.Err)
	}
}

func (r *renderer) ensureAcquiring(ctx context.Context, now time.Time, st scope.Status) {
	if st.State != scope.Disconnected && st.State != scope.Failed {
		return
	}
	if now.Before(r.nextAttempt) {
		return
	}
	if err := r.src.Start(ctx, r.conn); err != nil {
		r.bumpBackoff(err)
		r.nextAttempt = now.Add(r.backoff)
		return
	}
	r.backoff = 0
	r.nextAttempt = time.Time{}
}

func (r *renderer) bumpBackoff(err error) {
	if r.backoff == 0 {
		r.backoff = r.backoffMin
	} else {
		r.backoff *= 2
		if r.backoff > r.backoffMax {
			r.backoff = r.backoffMax
		}
	}
	r.log.Warn("Reconnect failed", "port", r.conn.Port, "retry_in", r.backoff, "err", err)
}

func (r *renderer) draw(frames []frame.Frame) {
	traces := plot(frames, r.conn.YMin, r.conn.YMax)
	latest := make([]int64, len(traces))
	for ch, t := range traces {
		latest[ch] = t[len(t)-1]
	}
	r.log.Debug("Frame", "seq", r.lastSeq, "window", len(frames), "values", latest)
}

// plot turns a window into one trace per channel, oldest point first, with
// every point clamped to [ymin, ymax].
func plot(frames []frame.Frame, ymin, ymax int) [][]int64 {
	if len(frames) == 0 {
		return nil
	}
	traces := make([][]int64, len(frames[0].Values))
	for ch := range traces {
		traces[ch] = make([]int64, len(frames))
	}
	for i, f := range frames {
		for ch, v := range f.Values {
			traces[ch][i] = clamp(v, int64(ymin), int64(ymax))
		}
	}
	return traces
}

func clamp(v, lo, hi int64) int64 {
	if lo > hi {
		return v
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
