// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netframe

import "time"

// Transport-kind presets.
//
// Single source of truth — transport kind → (timeouts, compression):
//   - TCP    → generous timeouts, compression left to the caller
//   - Unix   → shorter timeouts (a local peer that stalls is almost always dead)
//   - Local  → no deadlines, compression off (in-process pipe, never worth the CPU)

type netKind uint8

const (
	netTCP netKind = iota
	netUnixStream
	netLocalStream
)

func defaultsFor(kind netKind) Options {
	o := defaultOptions
	switch kind {
	case netTCP:
		o.ReadTimeout = 30 * time.Second
		o.WriteTimeout = 30 * time.Second
	case netUnixStream:
		o.ReadTimeout = 5 * time.Second
		o.WriteTimeout = 5 * time.Second
	case netLocalStream:
		o.ReadTimeout = 0
		o.WriteTimeout = 0
		o.CompressEnabled = false
	}
	return o
}

// WithTCP applies the TCP transport-kind preset.
func WithTCP() Option {
	return func(o *Options) {
		d := defaultsFor(netTCP)
		o.ReadTimeout = d.ReadTimeout
		o.WriteTimeout = d.WriteTimeout
	}
}

// WithUnix applies the Unix-domain-socket transport-kind preset.
func WithUnix() Option {
	return func(o *Options) {
		d := defaultsFor(netUnixStream)
		o.ReadTimeout = d.ReadTimeout
		o.WriteTimeout = d.WriteTimeout
	}
}

// WithLocal applies the in-process (net.Pipe-style) transport-kind preset:
// no deadlines, no compression.
func WithLocal() Option {
	return func(o *Options) {
		d := defaultsFor(netLocalStream)
		o.ReadTimeout = d.ReadTimeout
		o.WriteTimeout = d.WriteTimeout
		o.CompressEnabled = d.CompressEnabled
	}
}
