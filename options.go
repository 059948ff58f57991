// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netframe

import (
	"time"

	"go.uber.org/zap"
)

// defaultMaxAllowedPacket matches the original NET protocol's conservative
// default before a server/client negotiates a larger value.
const defaultMaxAllowedPacket = 1024 * 1024

// Options configures a Conn's framing behavior. See spec.md §6.3.
type Options struct {
	// MaxAllowedPacket caps a logical packet's total length. Exceeding it
	// yields ErrPacketTooLarge. New rejects zero or a negative value with
	// ErrInvalidArgument; when no option sets it, defaultMaxAllowedPacket
	// applies.
	MaxAllowedPacket int

	// ReadTimeout and WriteTimeout bound a single blocking raw read/write.
	// Zero means no deadline.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// RetryLimit bounds how many times a recoverable transport interruption
	// (ShouldRetry) is retried before the operation fails.
	RetryLimit int

	// CompressEnabled wraps every frame in the §6.2 compressed envelope.
	CompressEnabled bool

	// RetryDelay controls how Conn reacts to iox.ErrWouldBlock from the
	// underlying transport in blocking calls:
	//   - negative: nonblock, return ErrWouldBlock immediately
	//   - zero: yield (runtime.Gosched) and retry
	//   - positive: sleep for the duration and retry
	RetryDelay time.Duration

	// Logger receives structured debug/warn diagnostics. Defaults to a
	// no-op logger.
	Logger *zap.Logger
}

var defaultOptions = Options{
	MaxAllowedPacket: defaultMaxAllowedPacket,
	RetryLimit:       10,
	RetryDelay:       -1,
	Logger:           zap.NewNop(),
}

type Option func(*Options)

// WithMaxAllowedPacket sets the hard cap on a logical packet's length.
func WithMaxAllowedPacket(n int) Option {
	return func(o *Options) { o.MaxAllowedPacket = n }
}

// WithReadTimeout bounds a single blocking raw read.
func WithReadTimeout(d time.Duration) Option {
	return func(o *Options) { o.ReadTimeout = d }
}

// WithWriteTimeout bounds a single blocking raw write.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *Options) { o.WriteTimeout = d }
}

// WithRetryLimit bounds recoverable-interruption retries in blocking calls.
func WithRetryLimit(n int) Option {
	return func(o *Options) { o.RetryLimit = n }
}

// WithCompression turns on the compressed envelope for every frame.
func WithCompression(enabled bool) Option {
	return func(o *Options) { o.CompressEnabled = enabled }
}

// WithRetryDelay sets the retry/wait policy used when the underlying
// transport returns iox.ErrWouldBlock.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Options) { o.RetryDelay = d }
}

// WithBlock enables cooperative blocking (yield-and-retry) on iox.ErrWouldBlock.
func WithBlock() Option {
	return func(o *Options) { o.RetryDelay = 0 }
}

// WithNonblock forces non-blocking behavior (return iox.ErrWouldBlock immediately).
func WithNonblock() Option {
	return func(o *Options) { o.RetryDelay = -1 }
}

// WithLogger attaches a structured logger. A nil logger is treated as
// zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l == nil {
			l = zap.NewNop()
		}
		o.Logger = l
	}
}
