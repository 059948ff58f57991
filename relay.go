// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netframe

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Relay forwards whole logical packets, one at a time, from one Conn to
// another — a 1:1 proxy primitive, not a multiplexer (multiplexing
// unrelated streams on one connection stays out of scope per spec.md's
// Non-goals). Each Relay carries a correlation ID so its log lines can be
// grep'd across a proxied session, the way mickamy-sql-tap's conn.go
// tags each forwarded transaction.
type Relay struct {
	id   uuid.UUID
	from *Conn
	to   *Conn
	log  *zap.Logger
}

// NewRelay builds a Relay that reads logical packets off from and writes
// them to to. Both Conns must already be configured (timeouts,
// compression, etc.) for their respective transports.
func NewRelay(from, to *Conn, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New()
	return &Relay{
		id:   id,
		from: from,
		to:   to,
		log:  logger.With(zap.String("relay_id", id.String())),
	}
}

// ID returns the correlation ID assigned at construction.
func (r *Relay) ID() uuid.UUID { return r.id }

// ForwardOne reads exactly one logical packet from the source Conn and
// re-enqueues it verbatim on the destination Conn. It returns the number
// of payload bytes relayed.
func (r *Relay) ForwardOne() (int, error) {
	payload, err := r.from.ReadPacket()
	if err != nil {
		r.log.Debug("relay read failed", zap.Error(err))
		return 0, err
	}
	n := len(payload)
	// ReadPacket's result aliases Conn's internal buffer; copy it out
	// before the destination Conn starts framing, since Enqueue may grow
	// and overwrite its own staging buffer while this one is read-owned.
	owned := append([]byte(nil), payload...)
	if err := r.to.Enqueue(owned); err != nil {
		r.log.Debug("relay write failed", zap.Error(err))
		return 0, err
	}
	r.log.Debug("relayed packet", zap.Int("bytes", n))
	return n, nil
}

// Run forwards packets until ForwardOne returns an error (including a
// clean end-of-stream), then returns that error.
func (r *Relay) Run() error {
	for {
		if _, err := r.ForwardOne(); err != nil {
			return err
		}
	}
}
