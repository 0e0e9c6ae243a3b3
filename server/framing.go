package server

import (
	"encoding/binary"
	"fmt"
	"io"
)

// 帧格式：4 字节大端无符号长度 + 该长度的 UTF-8 JSON 负载，双向一致
const frameHeaderLen = 4

// ReadFrame 从流中读取一帧。长度超过 max 返回 ErrFraming；
// 读失败（包括帧中途 EOF）返回 *TransportError。
func ReadFrame(r io.Reader, max int) ([]byte, error) {
	var hdr [frameHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if uint64(n) > uint64(max) {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds limit %d", ErrFraming, n, max)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, &TransportError{Op: "read", Err: err}
	}
	return payload, nil
}

// WriteFrame 写出一帧；头和负载一次写出，避免并发写交错
func WriteFrame(w io.Writer, payload []byte, max int) error {
	if len(payload) > max {
		return fmt.Errorf("%w: outgoing frame of %d bytes exceeds limit %d", ErrFraming, len(payload), max)
	}
	buf := make([]byte, frameHeaderLen+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[frameHeaderLen:], payload)
	if _, err := w.Write(buf); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}
