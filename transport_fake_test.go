// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netframe_test

import (
	"bytes"
	"io"
	"time"

	"code.hybscloud.com/netframe"
)

// fakeTransport is a scripted stand-in for netframe.Transport, following
// the same spirit as code.hybscloud.com/framer's scriptedReader/
// wouldBlockWriter test fakes: a small, deterministic double instead of a
// mocking framework.
type fakeTransport struct {
	r io.Reader
	w io.Writer

	blocking    bool
	shouldRetry bool
	wasTimeout  bool

	// writeLimit caps bytes accepted per Write call; 0 means unlimited.
	writeLimit int
}

func newFakeTransport(wire []byte, w io.Writer) *fakeTransport {
	return &fakeTransport{r: bytes.NewReader(wire), w: w, blocking: true}
}

func (t *fakeTransport) Read(buf []byte) (int, error) {
	n, err := t.r.Read(buf)
	if err == io.EOF {
		return 0, nil
	}
	return n, err
}

func (t *fakeTransport) Write(buf []byte) (int, error) {
	if t.writeLimit > 0 && len(buf) > t.writeLimit {
		buf = buf[:t.writeLimit]
	}
	return t.w.Write(buf)
}

func (t *fakeTransport) SetBlocking(b bool)                        { t.blocking = b }
func (t *fakeTransport) IsBlocking() bool                          { return t.blocking }
func (t *fakeTransport) ShouldRetry() bool                         { return t.shouldRetry }
func (t *fakeTransport) WasTimeout() bool                          { return t.wasTimeout }
func (t *fakeTransport) SetTimeout(netframe.Direction, time.Duration) {}
func (t *fakeTransport) Pending() (int, error)                     { return 0, nil }

// scriptedReader replays a fixed sequence of (bytes, error) steps,
// matching code.hybscloud.com/framer/framer_test.go's fake of the same
// name.
type scriptedReader struct {
	steps []struct {
		b   []byte
		err error
	}
	step int
	off  int
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	for {
		if r.step >= len(r.steps) {
			return 0, io.EOF
		}
		st := r.steps[r.step]
		if len(st.b) == 0 {
			r.step++
			r.off = 0
			return 0, st.err
		}
		if r.off >= len(st.b) {
			r.step++
			r.off = 0
			continue
		}
		n := copy(p, st.b[r.off:])
		r.off += n
		return n, nil
	}
}
