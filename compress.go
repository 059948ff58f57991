// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netframe

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
)

// compressPacket compresses plain, following the original my_compress
// policy: if compression doesn't shrink the payload, the caller is told to
// send it as-is by way of a zero uncompressedLen, per §6.2.
func compressPacket(plain []byte) (payload []byte, uncompressedLen int) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(plain); err != nil {
		return plain, 0
	}
	if err := zw.Close(); err != nil {
		return plain, 0
	}
	if buf.Len() >= len(plain) {
		return plain, 0
	}
	return buf.Bytes(), len(plain)
}

// uncompressPacket expands compressed back to exactly uncompressedLen
// bytes, mirroring my_uncompress's strict length check.
func uncompressPacket(compressed []byte, uncompressedLen int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out := make([]byte, uncompressedLen)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, err
	}
	return out, nil
}
