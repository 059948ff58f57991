// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netframe

import "time"

// Direction selects which half-duplex deadline SetTimeout applies to.
type Direction uint8

const (
	DirRead Direction = iota
	DirWrite
)

// Descriptor is one entry of a scatter/gather write: a byte range handed
// to the transport without being copied first.
type Descriptor struct {
	Bytes []byte
}

// Transport is the byte-stream capability contract a Conn consumes, per
// spec.md §6.1. Connection establishment, TLS, and address resolution are
// the caller's concern; Transport only exposes what framing needs.
//
// Read and Write report a would-block condition by returning
// iox.ErrWouldBlock (or any error satisfying errors.Is against it), the
// same convention code.hybscloud.com/framer uses. A Read that returns
// (0, nil) signals end-of-stream.
type Transport interface {
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)

	SetBlocking(blocking bool)
	IsBlocking() bool

	// ShouldRetry reports whether the most recent Read/Write error was a
	// recoverable interruption (e.g. EINTR) rather than a hard failure.
	ShouldRetry() bool
	// WasTimeout reports whether the most recent Read/Write error was a
	// deadline expiry.
	WasTimeout() bool

	SetTimeout(dir Direction, d time.Duration)

	// Pending reports bytes already buffered locally by the transport,
	// ahead of whatever framing state currently tracks. Used only by an
	// optional assertion when resetting for a new command.
	Pending() (int, error)
}

// VectoredWriter is an optional capability: a transport that can write a
// scatter list in one call. Conn's non-blocking writer prefers this over
// per-segment Write calls when available.
type VectoredWriter interface {
	WriteVectored(descs []Descriptor) (int, error)
}
