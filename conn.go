// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package netframe implements the packet-framing layer of a database wire
// protocol: it turns a bidirectional byte-stream transport into a sequence
// of numbered, length-prefixed logical packets, splits payloads larger
// than one frame, optionally compresses frames, and offers both a
// blocking API with bounded retry and a cooperative non-blocking API with
// an explicit resumable state machine.
package netframe

import (
	"time"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	// maxFrameLen is 2²⁴−1, the largest single-frame payload; longer
	// logical packets are split across frames, the last possibly zero
	// length when the logical size is an exact multiple of this.
	maxFrameLen = 0xFFFFFF

	// ioGranularity is the buffer growth quantum (net_realloc's rounding unit).
	ioGranularity = 4096

	// headerReservation covers the larger of the plain (4-byte) and
	// compressed (7-byte) frame headers.
	headerReservation = 7
)

type ioState uint8

const (
	ioIdle ioState = iota
	ioReading
	ioWriting
)

// Conn is one framer state: a single logical database connection paired
// with a Transport. It is not safe for concurrent use; distinct Conns are
// fully independent.
type Conn struct {
	transport Transport

	buffer         []byte
	bufferCapacity int
	readOffset     int
	writePos       int

	maxAllowedPacket int
	readTimeout      time.Duration
	writeTimeout     time.Duration
	retryLimit       int
	retryDelay       time.Duration
	compressEnabled  bool

	seqOut      byte
	seqIn       byte
	compressSeq byte

	ioState ioState
	lastErr *ProtocolError

	// usable reports whether the connection is still externally usable —
	// the "connection marker" of spec.md §7 (error == 2 in the original).
	// It goes false once an unrecoverable read/write/sequence error fires.
	usable atomic.Bool

	writeAux writeAux
	readAux  readAux

	logger *zap.Logger
}

// New constructs a Conn over transport, applying opts on top of the
// package defaults.
func New(transport Transport, opts ...Option) (*Conn, error) {
	if transport == nil {
		return nil, newProtoErr(KindInvalidArgument, ErrInvalidArgument, nil)
	}
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.MaxAllowedPacket <= 0 {
		return nil, newProtoErr(KindInvalidArgument, ErrInvalidArgument, nil)
	}

	c := &Conn{
		transport:        transport,
		maxAllowedPacket: o.MaxAllowedPacket,
		readTimeout:      o.ReadTimeout,
		writeTimeout:     o.WriteTimeout,
		retryLimit:       o.RetryLimit,
		retryDelay:       o.RetryDelay,
		compressEnabled:  o.CompressEnabled,
		logger:           o.Logger,
	}
	c.usable.Store(true)
	initCap := ioGranularity + headerReservation + 1
	if initCap > c.maxAllowedPacket+headerReservation+1 {
		initCap = c.maxAllowedPacket + headerReservation + 1
	}
	c.buffer = make([]byte, initCap)
	c.bufferCapacity = initCap

	transport.SetTimeout(DirRead, c.readTimeout)
	transport.SetTimeout(DirWrite, c.writeTimeout)

	c.logger.Debug("conn initialized",
		zap.Int("max_allowed_packet", c.maxAllowedPacket),
		zap.Bool("compress_enabled", c.compressEnabled),
	)
	return c, nil
}

// Usable reports whether a prior error has permanently marked the
// connection unusable (spec.md §7's "error == 2").
func (c *Conn) Usable() bool { return c.usable.Load() }

// LastError returns the most recently recorded *ProtocolError, or nil.
func (c *Conn) LastError() *ProtocolError { return c.lastErr }

// Close tears the Conn down: it flushes the writer, drops any in-flight
// non-blocking state, and closes the transport if it implements io.Closer,
// combining the flush and close errors the way seekableWriterImpl.Close does.
func (c *Conn) Close() error {
	err := c.Flush()
	c.writeAux = writeAux{}
	c.readAux = readAux{}
	if closer, ok := c.transport.(interface{ Close() error }); ok {
		err = multierr.Append(err, closer.Close())
	}
	c.usable.Store(false)
	c.buffer = nil
	c.bufferCapacity = 0
	return err
}

// fail records a classified error, marks the connection unusable for the
// kinds spec.md §7 says are fatal for the connection, and returns it.
func (c *Conn) fail(kind Kind, sentinel, cause error) error {
	pe := newProtoErr(kind, sentinel, cause)
	c.lastErr = pe
	switch kind {
	case KindPacketTooLarge, KindOutOfResources:
		// fatal for the operation only; the connection remains usable
		// once the buffer is drained.
	default:
		c.usable.Store(false)
	}
	c.logger.Warn("netframe operation failed", zap.String("kind", kind.String()), zap.Error(pe))
	return pe
}

// growBuffer ensures the staging buffer can hold `required` bytes counted
// from the start of the buffer (callers include readOffset in required),
// plus the header reservation and safety byte (net_realloc, spec.md §4.4).
// required must not itself exceed maxAllowedPacket.
func (c *Conn) growBuffer(required int) error {
	if required > c.maxAllowedPacket {
		return c.fail(KindPacketTooLarge, ErrPacketTooLarge, nil)
	}
	needCap := required + headerReservation + 1
	if needCap <= c.bufferCapacity {
		return nil
	}
	newCap := roundUp(required, ioGranularity) + headerReservation + 1
	if newCap < needCap {
		newCap = needCap
	}
	newBuf := make([]byte, newCap)
	copy(newBuf, c.buffer[:c.bufferCapacity])
	c.buffer = newBuf
	c.bufferCapacity = newCap
	c.logger.Debug("grew staging buffer", zap.Int("new_capacity", newCap))
	return nil
}

func roundUp(n, granularity int) int {
	if n <= 0 {
		return granularity
	}
	return ((n + granularity - 1) / granularity) * granularity
}

func putUint24LE(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
}

func getUint24LE(src []byte) uint32 {
	return uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16
}
