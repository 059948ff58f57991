// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netframe

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

// Kind classifies a netframe error the way spec.md §7 enumerates them.
// A tagged Kind lets callers branch on classification without string
// matching, while ProtocolError.Unwrap still makes the package-level
// sentinels below work with errors.Is/errors.As.
type Kind uint8

const (
	// KindNone is the zero Kind; never set on a returned error.
	KindNone Kind = iota
	// KindPacketTooLarge: a logical packet would exceed MaxAllowedPacket.
	KindPacketTooLarge
	// KindOutOfResources: a buffer growth allocation failed.
	KindOutOfResources
	// KindSequence: the received sequence byte did not match the expected counter.
	KindSequence
	// KindRead: an unrecoverable transport read error.
	KindRead
	// KindWrite: an unrecoverable transport write error.
	KindWrite
	// KindReadInterrupted: a read timed out (reported distinctly from KindRead).
	KindReadInterrupted
	// KindWriteInterrupted: a write timed out (reported distinctly from KindWrite).
	KindWriteInterrupted
	// KindUncompress: inner-payload decompression failed.
	KindUncompress
	// KindEndOfStream: the peer closed before a full frame was read.
	KindEndOfStream
	// KindInvalidArgument: nil transport or malformed configuration.
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindPacketTooLarge:
		return "packet too large"
	case KindOutOfResources:
		return "out of resources"
	case KindSequence:
		return "sequence error"
	case KindRead:
		return "read error"
	case KindWrite:
		return "write error"
	case KindReadInterrupted:
		return "read interrupted"
	case KindWriteInterrupted:
		return "write interrupted"
	case KindUncompress:
		return "uncompress error"
	case KindEndOfStream:
		return "end of stream"
	case KindInvalidArgument:
		return "invalid argument"
	default:
		return "none"
	}
}

// ProtocolError is the tagged result spec.md §9's design notes call for: a
// structured error Kind plus the underlying cause, instead of an ad-hoc
// sentinel mixed with out-of-band fields.
type ProtocolError struct {
	Kind Kind
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Err == nil {
		return "netframe: " + e.Kind.String()
	}
	return "netframe: " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// newProtoErr wraps both the Kind's sentinel and the real cause into Err,
// so ProtocolError.Unwrap keeps errors.Is(err, <sentinel>) true even when a
// real transport/decompression error is attached, while the cause itself
// stays reachable through the same chain.
func newProtoErr(kind Kind, sentinel error, cause error) *ProtocolError {
	if cause == nil || cause == sentinel {
		return &ProtocolError{Kind: kind, Err: sentinel}
	}
	return &ProtocolError{Kind: kind, Err: fmt.Errorf("%w: %w", sentinel, cause)}
}

// Sentinel errors, comparable with errors.Is, mirroring
// code.hybscloud.com/framer/errors.go's plain-sentinel style.
var (
	ErrPacketTooLarge   = errors.New("netframe: packet too large")
	ErrOutOfResources   = errors.New("netframe: out of resources")
	ErrSequence         = errors.New("netframe: sequence mismatch")
	ErrRead             = errors.New("netframe: read error")
	ErrWrite            = errors.New("netframe: write error")
	ErrReadInterrupted  = errors.New("netframe: read interrupted")
	ErrWriteInterrupted = errors.New("netframe: write interrupted")
	ErrUncompress       = errors.New("netframe: uncompress error")
	ErrEndOfStream      = errors.New("netframe: end of stream")
	ErrInvalidArgument  = errors.New("netframe: invalid argument")

	// ErrWouldBlock and ErrMore are re-exported so callers of the non-blocking
	// driver need not import iox directly, following framer.go's own aliasing.
	ErrWouldBlock = iox.ErrWouldBlock
	ErrMore       = iox.ErrMore
)

// KindOf returns the Kind carried by err, or KindNone if err is nil or does
// not wrap a *ProtocolError.
func KindOf(err error) Kind {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindNone
}
