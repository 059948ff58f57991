// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netframe_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"code.hybscloud.com/netframe"
)

// TestRelayForwardOne relays a single logical packet from one Conn to
// another and checks both the returned byte count and the destination's
// wire bytes.
func TestRelayForwardOne(t *testing.T) {
	src, srcWire := newPipe(t)
	if err := src.Enqueue([]byte("hello")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	from := readerOver(t, srcWire.Bytes())
	to, dstWire := newPipe(t)

	r := netframe.NewRelay(from, to, nil)
	n, err := r.ForwardOne()
	if err != nil {
		t.Fatalf("ForwardOne: %v", err)
	}
	if n != len("hello") {
		t.Fatalf("ForwardOne returned %d bytes, want %d", n, len("hello"))
	}

	check := readerOver(t, dstWire.Bytes())
	payload, err := check.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket on relayed wire: %v", err)
	}
	if !bytes.Equal(payload, []byte("hello")) {
		t.Fatalf("relayed payload = %q, want %q", payload, "hello")
	}
}

// TestRelayRunUntilEOF relays every packet on the source wire and returns
// the end-of-stream error once the source is exhausted, the same clean
// termination ForwardOne itself reports.
func TestRelayRunUntilEOF(t *testing.T) {
	src, srcWire := newPipe(t)
	want := [][]byte{[]byte("first"), []byte("second")}
	for _, p := range want {
		if err := src.Enqueue(p); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	from := readerOver(t, srcWire.Bytes())
	to, dstWire := newPipe(t)

	r := netframe.NewRelay(from, to, nil)
	if err := r.Run(); err == nil {
		t.Fatal("Run: expected an end-of-stream error, got nil")
	} else if !errors.Is(err, netframe.ErrEndOfStream) {
		t.Fatalf("Run error = %v, want one wrapping ErrEndOfStream", err)
	}

	check := readerOver(t, dstWire.Bytes())
	for i, p := range want {
		got, err := check.ReadPacket()
		if err != nil {
			t.Fatalf("ReadPacket #%d: %v", i, err)
		}
		if !bytes.Equal(got, p) {
			t.Fatalf("relayed packet #%d = %q, want %q", i, got, p)
		}
	}
}

// TestRelayForwardOnePropagatesWriteError checks that a destination write
// failure is surfaced by ForwardOne rather than swallowed.
func TestRelayForwardOnePropagatesWriteError(t *testing.T) {
	src, srcWire := newPipe(t)
	if err := src.Enqueue([]byte("x")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	from := readerOver(t, srcWire.Bytes())
	to, err := netframe.New(&alwaysFailTransport{})
	if err != nil {
		t.Fatalf("New(to): %v", err)
	}

	r := netframe.NewRelay(from, to, nil)
	if _, err := r.ForwardOne(); err == nil {
		t.Fatal("ForwardOne: expected the destination's write error, got nil")
	} else if netframe.KindOf(err) != netframe.KindWrite {
		t.Fatalf("KindOf(err) = %v, want KindWrite", netframe.KindOf(err))
	}
}

// alwaysFailTransport is a Transport double whose every Write hard-fails,
// standing in for a broken destination connection.
type alwaysFailTransport struct{}

func (t *alwaysFailTransport) Read(buf []byte) (int, error)  { return 0, nil }
func (t *alwaysFailTransport) Write(buf []byte) (int, error) { return 0, errors.New("connection reset") }
func (t *alwaysFailTransport) SetBlocking(bool)              {}
func (t *alwaysFailTransport) IsBlocking() bool              { return true }
func (t *alwaysFailTransport) ShouldRetry() bool             { return false }
func (t *alwaysFailTransport) WasTimeout() bool              { return false }
func (t *alwaysFailTransport) SetTimeout(netframe.Direction, time.Duration) {}
func (t *alwaysFailTransport) Pending() (int, error) { return 0, nil }
