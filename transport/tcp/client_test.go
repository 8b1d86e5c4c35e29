// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package tcp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/ffutop/serial-scope/transport"
)

// bridge accepts one connection, writes payload and keeps the socket open
// until the test ends.
func bridge(t *testing.T, payload []byte) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	t.Cleanup(func() {
		close(done)
		listener.Close()
	})

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write(payload)
		<-done
	}()
	return Scheme + listener.Addr().String()
}

func TestDial_ReadThenTimeout(t *testing.T) {
	addr := bridge(t, []byte{0xA8, 0x05, 0xFB})

	dev, err := Dial(context.Background(), transport.Config{Port: addr, Timeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer dev.Close()

	buf := make([]byte, 3)
	if _, err := io.ReadFull(dev, buf); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if !bytes.Equal(buf, []byte{0xA8, 0x05, 0xFB}) {
		t.Errorf("read % X", buf)
	}

	start := time.Now()
	_, err = dev.Read(buf)
	if !errors.Is(err, transport.ErrTimeout) {
		t.Fatalf("Read() error = %v, want transport.ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestDial_Refused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := listener.Addr().String()
	listener.Close()

	if _, err := Dial(context.Background(), transport.Config{Port: Scheme + addr}); err == nil {
		t.Error("Dial() to closed port succeeded")
	}
}

func TestClient_CloseIdempotent(t *testing.T) {
	addr := bridge(t, nil)
	dev, err := Dial(context.Background(), transport.Config{Port: addr})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := dev.Read(make([]byte, 1)); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Read() after Close error = %v, want ErrClosed", err)
	}
}

func TestIsAddress(t *testing.T) {
	if !IsAddress("tcp://10.0.0.2:4001") {
		t.Error("tcp address not recognised")
	}
	if IsAddress("/dev/ttyACM0") {
		t.Error("device path treated as tcp address")
	}
}
