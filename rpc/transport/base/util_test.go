package base

import (
	"bytes"
	"encoding/binary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload := []byte(`{"action":"queue.list","requestId":1}`)
	go func() {
		_ = writeFrame(client, frameData, payload)
		_ = writeFrame(client, frameData, nil)
		_ = writeFrame(client, frameClose, encodeClose(1000, "bye"))
	}()

	buf := make([]byte, 8)
	frameType, data, err := readFrame(server, buf)
	require.NoError(t, err)
	assert.Equal(t, frameData, frameType)
	assert.Equal(t, payload, data)

	frameType, data, err = readFrame(server, buf)
	require.NoError(t, err)
	assert.Equal(t, frameData, frameType)
	assert.Empty(t, data)

	frameType, data, err = readFrame(server, buf)
	require.NoError(t, err)
	assert.Equal(t, frameClose, frameType)
	code, reason := decodeClose(data)
	assert.Equal(t, 1000, code)
	assert.Equal(t, "bye", reason)
}

func TestReadFrameUsesBuffer(t *testing.T) {
	var in bytes.Buffer
	in.Write([]byte{frameData, 0, 0, 0, 3})
	in.WriteString("abc")

	buf := make([]byte, 16)
	_, data, err := readFrame(&in, buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
	assert.Equal(t, &buf[0], &data[0])
}

func TestReadFrameTooLarge(t *testing.T) {
	header := make([]byte, headerSize)
	header[0] = frameData
	binary.BigEndian.PutUint32(header[1:], maxFrameSize+1)

	_, _, err := readFrame(bytes.NewReader(header), nil)
	assert.Error(t, err)
}

func TestReadFrameTruncated(t *testing.T) {
	_, _, err := readFrame(bytes.NewReader([]byte{frameData, 0, 0, 0, 10, 'x'}), nil)
	assert.Error(t, err)
}

func TestDecodeCloseShort(t *testing.T) {
	code, reason := decodeClose([]byte{0x03})
	assert.Equal(t, 0, code)
	assert.Empty(t, reason)
}
