// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netframe

// segCursor walks a small ordered list of byte slices ("segments") without
// copying them, handing out sub-slices on demand. It backs both the
// blocking writer's frame materialization and the non-blocking writer's
// scatter list, so a caller's payload is never copied into a temporary
// buffer just to be framed.
type segCursor struct {
	segs [][]byte
	idx  int
	off  int
}

func nonEmptySegs(segs ...[]byte) [][]byte {
	out := make([][]byte, 0, len(segs))
	for _, s := range segs {
		if len(s) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// take returns a slice of at most n bytes from the current segment,
// advancing the cursor. It never spans a segment boundary in one call;
// callers loop until the desired total is consumed.
func (c *segCursor) take(n int) []byte {
	for c.idx < len(c.segs) && c.off >= len(c.segs[c.idx]) {
		c.idx++
		c.off = 0
	}
	if c.idx >= len(c.segs) || n <= 0 {
		return nil
	}
	seg := c.segs[c.idx][c.off:]
	if n >= len(seg) {
		c.off += len(seg)
		return seg
	}
	c.off += n
	return seg[:n]
}

// fill copies exactly len(dst) bytes from the segments into dst, returning
// the number of bytes actually copied (less than len(dst) only if the
// segments are exhausted).
func (c *segCursor) fill(dst []byte) int {
	copied := 0
	for copied < len(dst) {
		chunk := c.take(len(dst) - copied)
		if len(chunk) == 0 {
			break
		}
		copied += copy(dst[copied:], chunk)
	}
	return copied
}
