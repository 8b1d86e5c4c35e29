// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package scope

import (
	"fmt"
	"log/slog"
	"sync"
)

// State is the connection state of an acquisition session.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var transitions = map[State][]State{
	Disconnected: {Connecting},
	Connecting:   {Connected, Failed, Disconnected},
	Connected:    {Disconnected, Failed},
	Failed:       {Connecting, Disconnected},
}

// CanTransition reports whether s may move to next.
func (s State) CanTransition(next State) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Transition describes one state change; Err is the cause, if any.
type Transition struct {
	From State
	To   State
	Err  error
}

type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("scope: invalid state transition %s -> %s", e.From, e.To)
}

// stateMachine holds the authoritative connection state.
type stateMachine struct {
	mu    sync.RWMutex
	state State
	err   error

	onChange func(Transition)
	log      *slog.Logger
}

// set moves to next. Setting the current state again is a no-op.
// onChange runs outside the lock.
func (m *stateMachine) set(next State, cause error) error {
	m.mu.Lock()
	prev := m.state
	if prev == next {
		m.mu.Unlock()
		return nil
	}
	if !prev.CanTransition(next) {
		m.mu.Unlock()
		err := &TransitionError{From: prev, To: next}
		m.log.Warn("Rejected state change", "err", err)
		return err
	}
	m.state = next
	m.err = cause
	m.mu.Unlock()

	if cause != nil {
		m.log.Info("Connection state changed", "from", prev, "to", next, "err", cause)
	} else {
		m.log.Info("Connection state changed", "from", prev, "to", next)
	}
	if m.onChange != nil {
		m.onChange(Transition{From: prev, To: next, Err: cause})
	}
	return nil
}

func (m *stateMachine) get() (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.err
}
