// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netframe

import (
	"errors"
	"runtime"
	"time"

	"code.hybscloud.com/iox"
)

// Enqueue frames payload as one logical packet (§4.1) and writes it to the
// transport, splitting it across multiple frames if it is at least
// maxFrameLen bytes long.
func (c *Conn) Enqueue(payload []byte) error {
	return c.writeLogicalPacket(nil, payload)
}

// SendCommand is Enqueue of command<<header<<payload, with the command
// tag occupying the first byte of the first frame's payload region.
func (c *Conn) SendCommand(command byte, header, payload []byte) error {
	prefix := make([]byte, 1+len(header))
	prefix[0] = command
	copy(prefix[1:], header)
	if err := c.writeLogicalPacket(prefix, payload); err != nil {
		return err
	}
	return c.Flush()
}

// Flush is a no-op for an uncompressed connection (Enqueue/SendCommand
// already push complete frames to the transport); when compression is
// active it synchronizes seq_out from the compressed-envelope counter, per
// spec.md §4.1.
func (c *Conn) Flush() error {
	c.writePos = 0
	if c.compressEnabled {
		c.seqOut = c.compressSeq
	}
	return nil
}

func (c *Conn) writeLogicalPacket(prefix, payload []byte) error {
	if c.ioState != ioIdle {
		return c.fail(KindInvalidArgument, ErrInvalidArgument, errors.New("write already in progress"))
	}
	total := len(prefix) + len(payload)
	if total >= c.maxAllowedPacket {
		return c.fail(KindPacketTooLarge, ErrPacketTooLarge, nil)
	}

	c.ioState = ioWriting
	defer func() { c.ioState = ioIdle }()

	cur := segCursor{segs: nonEmptySegs(prefix, payload)}
	remaining := total
	for {
		frameLen := remaining
		if frameLen > maxFrameLen {
			frameLen = maxFrameLen
		}
		if err := c.writeOneFrame(frameLen, &cur); err != nil {
			return err
		}
		remaining -= frameLen
		if frameLen < maxFrameLen {
			break
		}
		if remaining == 0 {
			// exact multiple of maxFrameLen: mandatory zero-length terminator
			if err := c.writeOneFrame(0, &cur); err != nil {
				return err
			}
			break
		}
	}
	return nil
}

// writeOneFrame materializes frameLen bytes from cur into the staging
// buffer (this is the §4.1 note permitting the compression window to cap
// in-buffer accumulation at maxFrameLen) and emits it, compressed or
// plain.
func (c *Conn) writeOneFrame(frameLen int, cur *segCursor) error {
	if err := c.growBuffer(frameLen); err != nil {
		return err
	}
	dst := c.buffer[:frameLen]
	cur.fill(dst)

	seq := c.seqOut
	c.seqOut++
	if c.compressEnabled {
		return c.writeCompressedFrame(seq, dst)
	}
	return c.writePlainFrame(seq, dst)
}

func (c *Conn) writePlainFrame(seq byte, payload []byte) error {
	var hdr [4]byte
	putUint24LE(hdr[0:3], uint32(len(payload)))
	hdr[3] = seq
	if err := c.rawWrite(hdr[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	return c.rawWrite(payload)
}

func (c *Conn) writeCompressedFrame(seq byte, payload []byte) error {
	innerHdr := [4]byte{}
	putUint24LE(innerHdr[0:3], uint32(len(payload)))
	innerHdr[3] = seq
	inner := make([]byte, 4+len(payload))
	copy(inner, innerHdr[:])
	copy(inner[4:], payload)

	compressed, uncompressedLen := compressPacket(inner)

	var outerHdr [7]byte
	putUint24LE(outerHdr[0:3], uint32(len(compressed)))
	outerHdr[3] = c.compressSeq
	putUint24LE(outerHdr[4:7], uint32(uncompressedLen))
	c.compressSeq++

	if err := c.rawWrite(outerHdr[:]); err != nil {
		return err
	}
	if len(compressed) == 0 {
		return nil
	}
	return c.rawWrite(compressed)
}

// rawWrite drives the transport's blocking write loop (§4.1 "raw write
// loop"): it retries recoverable interruptions up to retryLimit, and
// reacts to a would-block signal per the RetryDelay policy.
func (c *Conn) rawWrite(p []byte) error {
	remaining := p
	retries := 0
	for len(remaining) > 0 {
		n, err := c.transport.Write(remaining)
		if n > 0 {
			remaining = remaining[n:]
		}
		if err == nil {
			continue
		}
		if errors.Is(err, iox.ErrWouldBlock) {
			if werr := c.waitForRetry(); werr != nil {
				return c.fail(KindWrite, ErrWrite, werr)
			}
			continue
		}
		if c.transport.ShouldRetry() {
			retries++
			if retries > c.retryLimit {
				return c.fail(KindWrite, ErrWrite, err)
			}
			continue
		}
		if c.transport.WasTimeout() {
			return c.fail(KindWriteInterrupted, ErrWriteInterrupted, err)
		}
		return c.fail(KindWrite, ErrWrite, err)
	}
	return nil
}

// waitForRetry applies the RetryDelay policy on a would-block signal:
// negative propagates immediately, zero cooperatively yields, positive
// sleeps. Returns a non-nil error only for the negative (non-blocking)
// case, which the caller turns into a fatal write error (rawWrite) or read
// error (rawReadFull) — callers that
// want true non-blocking behavior should drive WriteTick instead of the
// blocking Enqueue/SendCommand path.
func (c *Conn) waitForRetry() error {
	switch {
	case c.retryDelay < 0:
		return iox.ErrWouldBlock
	case c.retryDelay == 0:
		runtime.Gosched()
		return nil
	default:
		time.Sleep(c.retryDelay)
		return nil
	}
}
