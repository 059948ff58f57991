// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netframe

import (
	"net"
	"time"

	"code.hybscloud.com/iox"
)

// netTransport adapts a net.Conn into a Transport, synthesizing would-block
// semantics via short read/write deadlines when operated in non-blocking
// mode. This is the minimum realistic collaborator needed to exercise Conn
// end-to-end; TLS, dialing, and address resolution stay out of scope.
type netTransport struct {
	conn      net.Conn
	blocking  bool
	lastWasWB bool
	lastWasTO bool
}

// NetConn wraps an established net.Conn (TCP, Unix, or otherwise) as a
// Transport.
func NetConn(conn net.Conn) Transport {
	return &netTransport{conn: conn, blocking: true}
}

func (t *netTransport) Read(buf []byte) (int, error) {
	t.lastWasWB, t.lastWasTO = false, false
	if !t.blocking {
		_ = t.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
		defer t.conn.SetReadDeadline(time.Time{})
	}
	n, err := t.conn.Read(buf)
	if err != nil {
		t.classify(err)
		err = wouldBlockError(t, err)
	}
	return n, err
}

func (t *netTransport) Write(buf []byte) (int, error) {
	t.lastWasWB, t.lastWasTO = false, false
	if !t.blocking {
		_ = t.conn.SetWriteDeadline(time.Now().Add(time.Millisecond))
		defer t.conn.SetWriteDeadline(time.Time{})
	}
	n, err := t.conn.Write(buf)
	if err != nil {
		t.classify(err)
		err = wouldBlockError(t, err)
	}
	return n, err
}

func (t *netTransport) classify(err error) {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		t.lastWasTO = true
		if !t.blocking {
			t.lastWasWB = true
		}
	}
}

func (t *netTransport) SetBlocking(blocking bool) { t.blocking = blocking }
func (t *netTransport) IsBlocking() bool          { return t.blocking }

func (t *netTransport) ShouldRetry() bool { return false }
func (t *netTransport) WasTimeout() bool  { return t.lastWasTO }

func (t *netTransport) SetTimeout(dir Direction, d time.Duration) {
	switch dir {
	case DirRead:
		_ = t.conn.SetReadDeadline(deadlineFor(d))
	case DirWrite:
		_ = t.conn.SetWriteDeadline(deadlineFor(d))
	}
}

func (t *netTransport) Pending() (int, error) { return 0, nil }

func deadlineFor(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}

// wouldBlockError reports the sentinel netTransport.Read/Write substitutes
// for a deadline-exceeded error while operating non-blocking, so callers can
// compare with errors.Is(err, iox.ErrWouldBlock) regardless of transport.
func wouldBlockError(t *netTransport, err error) error {
	if t.lastWasWB {
		return iox.ErrWouldBlock
	}
	return err
}
