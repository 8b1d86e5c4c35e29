// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package serial

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ffutop/serial-scope/transport"
	"github.com/grid-x/serial"
)

type mockPort struct {
	io.Reader
	io.Writer
	readErr error
	closed  bool
}

func (m *mockPort) Read(b []byte) (int, error) {
	if m.readErr != nil {
		return 0, m.readErr
	}
	return m.Reader.Read(b)
}

func (m *mockPort) Close() error {
	m.closed = true
	return nil
}

func withOpener(t *testing.T, fn func(c *serial.Config) (io.ReadWriteCloser, error)) {
	t.Helper()
	prev := openPort
	openPort = fn
	t.Cleanup(func() { openPort = prev })
}

func TestNew_Defaults(t *testing.T) {
	p := New(transport.Config{Port: "/dev/ttyACM0", BaudRate: 115200})

	if p.Config.Timeout != transport.DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", p.Config.Timeout, transport.DefaultTimeout)
	}
	if p.Config.DataBits != 8 || p.Config.StopBits != 1 || p.Config.Parity != "N" {
		t.Errorf("framing = %d%s%d, want 8N1", p.Config.DataBits, p.Config.Parity, p.Config.StopBits)
	}
}

func TestOpen_Failure(t *testing.T) {
	cause := errors.New("permission denied")
	withOpener(t, func(c *serial.Config) (io.ReadWriteCloser, error) {
		return nil, cause
	})

	_, err := Open(context.Background(), transport.Config{Port: "/dev/ttyACM9", BaudRate: 9600})
	if !errors.Is(err, cause) {
		t.Fatalf("Open() error = %v, want wrapped %v", err, cause)
	}
}

func TestOpen_CanceledContext(t *testing.T) {
	withOpener(t, func(c *serial.Config) (io.ReadWriteCloser, error) {
		t.Error("opener called with canceled context")
		return nil, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Open(ctx, transport.Config{Port: "/dev/ttyACM0"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Open() error = %v, want context.Canceled", err)
	}
}

func TestPort_Read(t *testing.T) {
	mock := &mockPort{Reader: bytes.NewReader([]byte{0xA8, 0x01}), Writer: &bytes.Buffer{}}
	var got *serial.Config
	withOpener(t, func(c *serial.Config) (io.ReadWriteCloser, error) {
		got = c
		return mock, nil
	})

	dev, err := Open(context.Background(), transport.Config{Port: "/dev/ttyACM0", BaudRate: 57600, Timeout: 250 * time.Millisecond})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got.BaudRate != 57600 || got.Timeout != 250*time.Millisecond {
		t.Errorf("opened with %+v", got)
	}

	buf := make([]byte, 2)
	if _, err := io.ReadFull(dev, buf); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if !bytes.Equal(buf, []byte{0xA8, 0x01}) {
		t.Errorf("read % X", buf)
	}

	// exhausted reader: zero bytes without error is a hang-up
	if _, err := dev.Read(buf); !errors.Is(err, io.EOF) {
		t.Errorf("Read() after drain error = %v, want io.EOF", err)
	}

	if err := dev.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !mock.closed {
		t.Error("underlying port not closed")
	}
	if _, err := dev.Read(buf); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Read() after Close error = %v, want ErrClosed", err)
	}
}

func TestPort_ReadTimeout(t *testing.T) {
	mock := &mockPort{readErr: serial.ErrTimeout}
	withOpener(t, func(c *serial.Config) (io.ReadWriteCloser, error) {
		return mock, nil
	})

	dev, err := Open(context.Background(), transport.Config{Port: "/dev/ttyACM0"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dev.Close()

	if _, err := dev.Read(make([]byte, 1)); !errors.Is(err, transport.ErrTimeout) {
		t.Errorf("Read() error = %v, want transport.ErrTimeout", err)
	}
}
