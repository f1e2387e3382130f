package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// Frame types
const (
	frameData  byte = 0x01 // one serialized envelope or request
	frameClose byte = 0x02 // close handshake, payload: 2 byte code + reason
	frameAuth  byte = 0x03 // first frame sent by a client, payload: api token
)

const (
	headerSize   = 5
	maxFrameSize = 64 * 1024 * 1024 // 64 MB
)

// writeFrame writes a frame to the connection with the format:
// - 1 byte: frame type
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
func writeFrame(conn net.Conn, frameType byte, data []byte) error {
	header := make([]byte, headerSize)
	header[0] = frameType
	binary.BigEndian.PutUint32(header[1:5], uint32(len(data)))

	b := net.Buffers{header, data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads a frame from the connection using the provided buffer
// If the buffer is too small, it will allocate a new temporary buffer for the data
func readFrame(r io.Reader, buf []byte) (byte, []byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}

	frameType := header[0]
	contentLength := binary.BigEndian.Uint32(header[1:5])

	if contentLength > maxFrameSize {
		return 0, nil, fmt.Errorf("frame of %d bytes exceeds the limit of %d bytes", contentLength, maxFrameSize)
	}

	if contentLength == 0 {
		return frameType, []byte{}, nil
	}

	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}

	if _, err := io.ReadFull(r, buf[:contentLength]); err != nil {
		return 0, nil, err
	}

	return frameType, buf[:contentLength], nil
}

// encodeClose builds the payload of a close frame
func encodeClose(code int, reason string) []byte {
	b := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(b[:2], uint16(code))
	copy(b[2:], reason)
	return b
}

// decodeClose parses the payload of a close frame
func decodeClose(data []byte) (code int, reason string) {
	if len(data) < 2 {
		return 0, ""
	}
	return int(binary.BigEndian.Uint16(data[:2])), string(data[2:])
}
