// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netframe

import (
	"errors"

	"code.hybscloud.com/iox"
)

// TickResult is what a non-blocking driver call reports: whether the
// caller should wait for readability/writability and re-enter, or whether
// the operation has finished (successfully or not).
type TickResult uint8

const (
	NotReady TickResult = iota
	Complete
)

type writePhase uint8

const (
	writeIdle writePhase = iota
	writing
)

// writeAux is the non-blocking auxiliary write state of spec.md §3: a
// scatter list built once up front (so a multi-frame logical packet never
// needs the caller to resume construction) plus a cursor into it.
type writeAux struct {
	phase writePhase
	segs  [][]byte
	idx   int
	off   int
}

// BeginWrite starts a non-blocking write of one logical packet, building
// the full scatter list before the first WriteTick call. When the
// connection was not constructed with compression, the list holds 4-byte
// frame headers plus direct references into payload (no payload copy, per
// §4.1's scatter-list note). When compression is active, every frame is
// wrapped as the §6.2 compressed envelope exactly as writeCompressedFrame
// does for the blocking path — compression has to see a frame's full
// bytes at once, so those segments are materialized rather than
// zero-copy. Only one write may be in flight per Conn.
func (c *Conn) BeginWrite(command *byte, header, payload []byte) error {
	if c.writeAux.phase != writeIdle {
		return c.fail(KindInvalidArgument, ErrInvalidArgument, errors.New("write already in progress"))
	}
	var prefix []byte
	if command != nil {
		prefix = make([]byte, 1+len(header))
		prefix[0] = *command
		copy(prefix[1:], header)
	}
	total := len(prefix) + len(payload)
	if total >= c.maxAllowedPacket {
		return c.fail(KindPacketTooLarge, ErrPacketTooLarge, nil)
	}

	var segs [][]byte
	cur := segCursor{segs: nonEmptySegs(prefix, payload)}
	remaining := total
	for {
		frameLen := remaining
		if frameLen > maxFrameLen {
			frameLen = maxFrameLen
		}
		segs = append(segs, c.buildWriteFrame(frameLen, &cur)...)
		remaining -= frameLen
		if frameLen < maxFrameLen {
			break
		}
		if remaining == 0 {
			segs = append(segs, c.buildWriteFrame(0, &cur)...)
			break
		}
	}

	c.writeAux = writeAux{phase: writing, segs: segs}
	c.ioState = ioWriting
	return nil
}

// buildWriteFrame returns the wire segments for one frame of frameLen
// bytes pulled from cur, advancing Conn's sequence counters exactly as
// writeOneFrame does for the blocking path.
func (c *Conn) buildWriteFrame(frameLen int, cur *segCursor) [][]byte {
	if !c.compressEnabled {
		hdr := make([]byte, 4)
		putUint24LE(hdr[0:3], uint32(frameLen))
		hdr[3] = c.seqOut
		c.seqOut++

		segs := [][]byte{hdr}
		left := frameLen
		for left > 0 {
			chunk := cur.take(left)
			if len(chunk) == 0 {
				break
			}
			segs = append(segs, chunk)
			left -= len(chunk)
		}
		return segs
	}

	payload := make([]byte, frameLen)
	cur.fill(payload)

	seq := c.seqOut
	c.seqOut++
	var innerHdr [4]byte
	putUint24LE(innerHdr[0:3], uint32(frameLen))
	innerHdr[3] = seq
	inner := make([]byte, 4+frameLen)
	copy(inner, innerHdr[:])
	copy(inner[4:], payload)

	compressed, uncompressedLen := compressPacket(inner)

	outerHdr := make([]byte, 7)
	putUint24LE(outerHdr[0:3], uint32(len(compressed)))
	outerHdr[3] = c.compressSeq
	putUint24LE(outerHdr[4:7], uint32(uncompressedLen))
	c.compressSeq++

	if len(compressed) == 0 {
		return [][]byte{outerHdr}
	}
	return [][]byte{outerHdr, compressed}
}

// WriteTick advances the in-flight write by exactly one transport call and
// returns. It returns NotReady whenever the scatter list isn't fully
// consumed yet — whether because the transport would block or because
// this call's write was itself partial — and Complete (with the terminal
// error, if any) once every segment has been consumed.
func (c *Conn) WriteTick() (TickResult, error) {
	wa := &c.writeAux
	if wa.phase == writeIdle {
		return Complete, nil
	}

	if vw, ok := c.transport.(VectoredWriter); ok {
		return c.writeTickVectored(vw)
	}

	c.skipConsumedSegments()
	if wa.idx >= len(wa.segs) {
		c.finishWrite()
		return Complete, nil
	}

	n, err := c.transport.Write(wa.segs[wa.idx][wa.off:])
	if n > 0 {
		wa.off += n
	}
	if err != nil {
		if errors.Is(err, iox.ErrWouldBlock) {
			return NotReady, nil
		}
		c.finishWrite()
		return Complete, c.classifyWriteErr(err)
	}

	c.skipConsumedSegments()
	if wa.idx >= len(wa.segs) {
		c.finishWrite()
		return Complete, nil
	}
	return NotReady, nil
}

func (c *Conn) skipConsumedSegments() {
	wa := &c.writeAux
	for wa.idx < len(wa.segs) && wa.off >= len(wa.segs[wa.idx]) {
		wa.idx++
		wa.off = 0
	}
}

// writeTickVectored is the vectored-write fast path of §4.1: one call to
// the transport's WriteVectored per tick, covering every remaining
// segment, avoiding per-segment round trips when the transport supports
// it.
func (c *Conn) writeTickVectored(vw VectoredWriter) (TickResult, error) {
	wa := &c.writeAux
	c.skipConsumedSegments()
	if wa.idx >= len(wa.segs) {
		c.finishWrite()
		return Complete, nil
	}
	descs := make([]Descriptor, 0, len(wa.segs)-wa.idx)
	for i := wa.idx; i < len(wa.segs); i++ {
		b := wa.segs[i]
		if i == wa.idx {
			b = b[wa.off:]
		}
		descs = append(descs, Descriptor{Bytes: b})
	}

	n, err := vw.WriteVectored(descs)
	if n > 0 {
		c.advanceWriteCursor(n)
	}
	if err != nil {
		if errors.Is(err, iox.ErrWouldBlock) {
			c.skipConsumedSegments()
			if wa.idx >= len(wa.segs) {
				c.finishWrite()
				return Complete, nil
			}
			return NotReady, nil
		}
		c.finishWrite()
		return Complete, c.classifyWriteErr(err)
	}
	c.skipConsumedSegments()
	if wa.idx >= len(wa.segs) {
		c.finishWrite()
		return Complete, nil
	}
	return NotReady, nil
}

func (c *Conn) advanceWriteCursor(n int) {
	wa := &c.writeAux
	for n > 0 && wa.idx < len(wa.segs) {
		remain := len(wa.segs[wa.idx]) - wa.off
		if n < remain {
			wa.off += n
			return
		}
		n -= remain
		wa.idx++
		wa.off = 0
	}
}

func (c *Conn) classifyWriteErr(err error) error {
	if c.transport.WasTimeout() {
		return c.fail(KindWriteInterrupted, ErrWriteInterrupted, err)
	}
	return c.fail(KindWrite, ErrWrite, err)
}

func (c *Conn) finishWrite() {
	c.writeAux = writeAux{}
	c.ioState = ioIdle
	if c.compressEnabled {
		c.seqOut = c.compressSeq
	}
}

type readPhase uint8

const (
	readIdle readPhase = iota
	readingHeader
	readingBody
)

// readAux is the non-blocking auxiliary read state of spec.md §4.3: a
// phase plus how many bytes the current structural read (header or body)
// still wants. Sized and branched to carry either a plain 4-byte frame
// header or a compressed envelope's 7-byte outer header, decided once at
// BeginRead per Conn.compressEnabled — spec.md §3 makes compression a
// per-connection invariant covering the whole Framer state, not only the
// blocking path.
type readAux struct {
	phase      readPhase
	compressed bool

	header [7]byte
	hdrLen int
	gotHdr int

	// wanted tracks the plain-path body: bytes still to land directly in
	// Conn's staging buffer at readOffset+at.
	wanted int

	// rawBody/gotRaw track the compressed-path body: the outer envelope's
	// still-compressed bytes, staged separately since decompression must
	// see the whole envelope before anything can land in Conn's buffer.
	rawBody   []byte
	gotRaw    int
	uncompLen int

	at      int
	frameLn int
}

// BeginRead starts a non-blocking read of one physical frame at logical
// offset at (accumulated by the caller across continuation frames, as
// spec.md §4.3 describes for the outer driver loop). Call ReadTick until
// it reports Complete.
func (c *Conn) BeginRead(at int) error {
	if c.readAux.phase != readIdle {
		return c.fail(KindInvalidArgument, ErrInvalidArgument, errors.New("read already in progress"))
	}
	hdrLen := 4
	if c.compressEnabled {
		hdrLen = 7
	}
	c.readAux = readAux{phase: readingHeader, at: at, compressed: c.compressEnabled, hdrLen: hdrLen}
	c.ioState = ioReading
	return nil
}

// ReadTick advances the in-flight frame read by exactly one transport
// call. On Complete with a nil error, frameLen is the just-read frame's
// payload length; maxFrameLen signals a continuation — the caller calls
// BeginRead again with at advanced by frameLen and accumulates totals.
// When compression is active, a compressed envelope's decompression and
// inner-header parsing happen in-memory once its body finishes arriving,
// without an extra transport call, the same way readOneCompressedFrame
// does for the blocking path.
func (c *Conn) ReadTick() (result TickResult, frameLen int, err error) {
	ra := &c.readAux
	switch ra.phase {
	case readIdle:
		return Complete, 0, c.fail(KindInvalidArgument, ErrInvalidArgument, errors.New("read not started"))

	case readingHeader:
		n, rerr := c.transport.Read(ra.header[ra.gotHdr:ra.hdrLen])
		if n > 0 {
			ra.gotHdr += n
		}
		if rerr != nil {
			if errors.Is(rerr, iox.ErrWouldBlock) {
				return NotReady, 0, nil
			}
			c.finishRead()
			return Complete, 0, c.classifyReadErr(rerr)
		}
		if n == 0 {
			c.finishRead()
			return Complete, 0, c.fail(KindEndOfStream, ErrEndOfStream, nil)
		}
		if ra.gotHdr < ra.hdrLen {
			return NotReady, 0, nil
		}
		if !ra.compressed {
			return c.beginPlainBody()
		}
		return c.beginCompressedBody()

	case readingBody:
		if !ra.compressed {
			return c.tickPlainBody()
		}
		return c.tickCompressedBody()

	default:
		return Complete, 0, nil
	}
}

func (c *Conn) beginPlainBody() (TickResult, int, error) {
	ra := &c.readAux
	length := int(getUint24LE(ra.header[0:3]))
	seq := ra.header[3]
	if seq != c.seqIn {
		c.finishRead()
		return Complete, 0, c.fail(KindSequence, ErrSequence, nil)
	}
	c.seqIn++
	ra.frameLn = length
	if length == 0 {
		c.finishRead()
		return Complete, 0, nil
	}
	if err := c.growBuffer(c.readOffset + ra.at + length); err != nil {
		c.finishRead()
		return Complete, 0, err
	}
	ra.wanted = length
	ra.phase = readingBody
	return NotReady, 0, nil
}

func (c *Conn) tickPlainBody() (TickResult, int, error) {
	ra := &c.readAux
	base := c.readOffset + ra.at + ra.frameLn - ra.wanted
	dst := c.buffer[base : base+ra.wanted]
	n, rerr := c.transport.Read(dst)
	if n > 0 {
		ra.wanted -= n
	}
	if rerr != nil {
		if errors.Is(rerr, iox.ErrWouldBlock) {
			return NotReady, 0, nil
		}
		c.finishRead()
		return Complete, 0, c.classifyReadErr(rerr)
	}
	if n == 0 {
		c.finishRead()
		return Complete, 0, c.fail(KindEndOfStream, ErrEndOfStream, nil)
	}
	if ra.wanted > 0 {
		return NotReady, 0, nil
	}
	frameLn := ra.frameLn
	c.finishRead()
	return Complete, frameLn, nil
}

func (c *Conn) beginCompressedBody() (TickResult, int, error) {
	ra := &c.readAux
	compLen := int(getUint24LE(ra.header[0:3]))
	seq := ra.header[3]
	if seq != c.compressSeq {
		c.finishRead()
		return Complete, 0, c.fail(KindSequence, ErrSequence, nil)
	}
	c.compressSeq++
	ra.uncompLen = int(getUint24LE(ra.header[4:7]))
	if compLen == 0 {
		return c.finishCompressedFrame(nil)
	}
	ra.rawBody = make([]byte, compLen)
	ra.gotRaw = 0
	ra.phase = readingBody
	return NotReady, 0, nil
}

func (c *Conn) tickCompressedBody() (TickResult, int, error) {
	ra := &c.readAux
	n, rerr := c.transport.Read(ra.rawBody[ra.gotRaw:])
	if n > 0 {
		ra.gotRaw += n
	}
	if rerr != nil {
		if errors.Is(rerr, iox.ErrWouldBlock) {
			return NotReady, 0, nil
		}
		c.finishRead()
		return Complete, 0, c.classifyReadErr(rerr)
	}
	if n == 0 {
		c.finishRead()
		return Complete, 0, c.fail(KindEndOfStream, ErrEndOfStream, nil)
	}
	if ra.gotRaw < len(ra.rawBody) {
		return NotReady, 0, nil
	}
	return c.finishCompressedFrame(ra.rawBody)
}

// finishCompressedFrame decompresses (if needed) an outer envelope's raw
// bytes, parses the inner plain-format frame it carries, and copies its
// payload into Conn's staging buffer — the non-blocking counterpart of
// readOneCompressedFrame, run once the whole envelope has arrived.
func (c *Conn) finishCompressedFrame(raw []byte) (TickResult, int, error) {
	ra := &c.readAux
	var inner []byte
	if ra.uncompLen == 0 {
		inner = raw
	} else {
		expanded, err := uncompressPacket(raw, ra.uncompLen)
		if err != nil {
			c.finishRead()
			return Complete, 0, c.fail(KindUncompress, ErrUncompress, err)
		}
		inner = expanded
	}

	if len(inner) < 4 {
		c.finishRead()
		return Complete, 0, c.fail(KindUncompress, ErrUncompress, errors.New("short inner frame"))
	}
	length := int(getUint24LE(inner[0:3]))
	innerSeq := inner[3]
	if innerSeq != c.seqIn {
		c.finishRead()
		return Complete, 0, c.fail(KindSequence, ErrSequence, nil)
	}
	c.seqIn++
	if length == 0 {
		c.finishRead()
		return Complete, 0, nil
	}
	if len(inner) < 4+length {
		c.finishRead()
		return Complete, 0, c.fail(KindUncompress, ErrUncompress, errors.New("truncated inner frame"))
	}
	at := ra.at
	if err := c.growBuffer(c.readOffset + at + length); err != nil {
		c.finishRead()
		return Complete, 0, err
	}
	copy(c.buffer[c.readOffset+at:c.readOffset+at+length], inner[4:4+length])
	c.finishRead()
	return Complete, length, nil
}

// Frame returns the logical packet staged at buffer[at:at+total] plus its
// trailing safety byte, the non-blocking counterpart of ReadPacket's final
// step. Call it once the outer driver loop has accumulated total across
// every continuation ReadTick reported (a returned frameLen of maxFrameLen
// each time but the last). The returned slice aliases Conn's internal
// buffer, valid only until the next read operation.
func (c *Conn) Frame(at, total int) ([]byte, error) {
	if err := c.growBuffer(c.readOffset + at + total + 1); err != nil {
		return nil, err
	}
	c.buffer[c.readOffset+at+total] = 0
	return c.buffer[c.readOffset+at : c.readOffset+at+total], nil
}

func (c *Conn) classifyReadErr(err error) error {
	if c.transport.WasTimeout() {
		return c.fail(KindReadInterrupted, ErrReadInterrupted, err)
	}
	return c.fail(KindRead, ErrRead, err)
}

func (c *Conn) finishRead() {
	c.readAux = readAux{}
	c.ioState = ioIdle
}
