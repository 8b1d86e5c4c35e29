// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package scope

import (
	"sync"
	"testing"

	"github.com/ffutop/serial-scope/frame"
	"github.com/google/go-cmp/cmp"
)

func values(frames []frame.Frame) []int64 {
	out := make([]int64, len(frames))
	for i, f := range frames {
		out[i] = f.Values[0]
	}
	return out
}

func TestRollingBuffer_EvictsOldest(t *testing.T) {
	b := NewRollingBuffer(25, 1)
	for i := int64(1); i <= 30; i++ {
		if err := b.Append(frame.Sample{i}); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}

	snap := b.Snapshot()
	if len(snap) != 25 {
		t.Fatalf("len(Snapshot()) = %d, want 25", len(snap))
	}
	var want []int64
	for i := int64(6); i <= 30; i++ {
		want = append(want, i)
	}
	if diff := cmp.Diff(want, values(snap)); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if snap[0].Seq != 6 || snap[24].Seq != 30 {
		t.Errorf("Seq range = %d..%d, want 6..30", snap[0].Seq, snap[24].Seq)
	}
}

func TestRollingBuffer_PartiallyFilled(t *testing.T) {
	b := NewRollingBuffer(0, 2)
	if b.Cap() != DefaultCapacity {
		t.Errorf("Cap() = %d, want %d", b.Cap(), DefaultCapacity)
	}
	if got := b.Snapshot(); len(got) != 0 {
		t.Errorf("empty buffer snapshot = %v", got)
	}

	b.Append(frame.Sample{1, 2})
	b.Append(frame.Sample{3, 4})
	want := []frame.Frame{{Seq: 1, Values: frame.Sample{1, 2}}, {Seq: 2, Values: frame.Sample{3, 4}}}
	if diff := cmp.Diff(want, b.Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestRollingBuffer_RejectsWrongShape(t *testing.T) {
	b := NewRollingBuffer(4, 3)
	if err := b.Append(frame.Sample{1, 2}); err == nil {
		t.Error("Append() accepted a short sample")
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d after rejected append", b.Len())
	}
}

func TestRollingBuffer_Prefill(t *testing.T) {
	b := NewRollingBuffer(5, 2)
	b.Prefill()
	b.Append(frame.Sample{7, 8})

	snap := b.Snapshot()
	if len(snap) != 5 {
		t.Fatalf("len(Snapshot()) = %d, want 5", len(snap))
	}
	for _, f := range snap[:4] {
		if diff := cmp.Diff(frame.Sample{0, 0}, f.Values); diff != "" || f.Seq != 0 {
			t.Errorf("prefilled frame = %+v", f)
		}
	}
	if diff := cmp.Diff(frame.Frame{Seq: 1, Values: frame.Sample{7, 8}}, snap[4]); diff != "" {
		t.Errorf("newest frame mismatch (-want +got):\n%s", diff)
	}
}

func TestRollingBuffer_SnapshotIsolation(t *testing.T) {
	b := NewRollingBuffer(3, 1)
	in := frame.Sample{1}
	b.Append(in)
	in[0] = 99 // caller reuses its slice

	snap := b.Snapshot()
	snap[0] = frame.Frame{Seq: 42}

	if diff := cmp.Diff([]frame.Frame{{Seq: 1, Values: frame.Sample{1}}}, b.Snapshot()); diff != "" {
		t.Errorf("buffer changed through aliases (-want +got):\n%s", diff)
	}
}

func TestRollingBuffer_ConcurrentAppendSnapshot(t *testing.T) {
	const (
		channels = 4
		total    = 20000
	)
	b := NewRollingBuffer(25, channels)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s := make(frame.Sample, channels)
		for i := 0; i < total; i++ {
			for c := range s {
				s[c] = int64(i)
			}
			b.Append(s)
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		snap := b.Snapshot()
		if len(snap) > b.Cap() {
			t.Fatalf("snapshot of %d frames exceeds capacity", len(snap))
		}
		for i, f := range snap {
			if len(f.Values) != channels {
				t.Fatalf("frame %d has %d values", f.Seq, len(f.Values))
			}
			for _, v := range f.Values {
				if v != f.Values[0] {
					t.Fatalf("torn frame %d: %v", f.Seq, f.Values)
				}
			}
			if i > 0 && f.Seq != snap[i-1].Seq+1 {
				t.Fatalf("out of order: %d after %d", f.Seq, snap[i-1].Seq)
			}
		}
		select {
		case <-done:
			if got := b.Snapshot(); got[len(got)-1].Seq != total {
				t.Errorf("last Seq = %d, want %d", got[len(got)-1].Seq, total)
			}
			return
		default:
		}
	}
}
