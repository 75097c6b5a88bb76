package network

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeLayout(t *testing.T) {
	frame, err := Encode("a.txt", []byte("hi"))
	require.NoError(t, err)
	want := []byte{0, 0, 0, 5, 0, 0, 0, 2, 'a', '.', 't', 'x', 't', 'h', 'i'}
	assert.Equal(t, want, frame)
}

func TestRoundTrip(t *testing.T) {
	big := bytes.Repeat([]byte{0xAB, 0x00, 0x7F}, 70_000)
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty.bin", []byte{}},
		{"one.bin", []byte{0x42}},
		{"résumé.pdf", []byte("%PDF-1.4 tiny")},
		{"big.bin", big},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.name, tt.payload)
			require.NoError(t, err)

			var streamed bytes.Buffer
			require.NoError(t, WriteMessage(&streamed, Message{Name: tt.name, Payload: tt.payload}, nil))
			assert.Equal(t, frame, streamed.Bytes())

			msg, err := Decode(bytes.NewReader(frame))
			require.NoError(t, err)
			assert.Equal(t, tt.name, msg.Name)
			assert.Len(t, msg.Payload, len(tt.payload))
			assert.True(t, bytes.Equal(tt.payload, msg.Payload))
		})
	}
}

func TestDecodeConsumesOneFrame(t *testing.T) {
	first, err := Encode("one", []byte("1"))
	require.NoError(t, err)
	second, err := Encode("two", []byte("22"))
	require.NoError(t, err)
	r := bytes.NewReader(append(first, second...))

	msg, err := Decode(r)
	require.NoError(t, err)
	assert.Equal(t, "one", msg.Name)
	msg, err = Decode(r)
	require.NoError(t, err)
	assert.Equal(t, "two", msg.Name)
	assert.Equal(t, []byte("22"), msg.Payload)
}

func TestDecodeShortReads(t *testing.T) {
	frame, err := Encode("name.txt", []byte("payload"))
	require.NoError(t, err)

	tests := []struct {
		cut   int
		stage Stage
		err   error
	}{
		{0, StageNameLength, io.EOF},
		{3, StageNameLength, io.ErrUnexpectedEOF},
		{4, StagePayloadLength, io.ErrUnexpectedEOF},
		{7, StagePayloadLength, io.ErrUnexpectedEOF},
		{8, StageName, io.ErrUnexpectedEOF},
		{12, StageName, io.ErrUnexpectedEOF},
		{16, StagePayload, io.ErrUnexpectedEOF},
		{len(frame) - 1, StagePayload, io.ErrUnexpectedEOF},
	}
	for _, tt := range tests {
		_, err := Decode(bytes.NewReader(frame[:tt.cut]))
		var decErr *DecodeError
		require.ErrorAs(t, err, &decErr, "cut at %d", tt.cut)
		assert.Equal(t, tt.stage, decErr.Stage, "cut at %d", tt.cut)
		assert.ErrorIs(t, err, tt.err, "cut at %d", tt.cut)
	}
}

func TestDecodeShortPayloadAcrossChunks(t *testing.T) {
	frame, err := Encode("big", make([]byte, 3*chunkSize))
	require.NoError(t, err)
	_, err = Decode(bytes.NewReader(frame[:headerSize+3+chunkSize]))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func header(nameLen, payloadLen uint32) []byte {
	h := make([]byte, headerSize)
	binary.BigEndian.PutUint32(h[0:4], nameLen)
	binary.BigEndian.PutUint32(h[4:8], payloadLen)
	return h
}

func TestDecodeLimitsCheckedBeforeReading(t *testing.T) {
	d := Decoder{MaxNameLen: 16, MaxPayloadLen: 1024}

	// Only the header is present: a decoder that allocated and read on
	// would report a short read instead of the limit.
	_, err := d.Decode(bytes.NewReader(header(17, 0)))
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	_, err = d.Decode(bytes.NewReader(header(4, 0xFFFFFFFF)))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, StagePayloadLength, decErr.Stage)

	frame, err := Encode("exactly-16-bytes", make([]byte, 1024))
	require.NoError(t, err)
	_, err = d.Decode(bytes.NewReader(frame))
	assert.NoError(t, err)
}

func TestDecodeInvalidName(t *testing.T) {
	frame := append(header(2, 0), 0xff, 0xfe)
	_, err := Decode(bytes.NewReader(frame))
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestProgressReportsChunks(t *testing.T) {
	payload := make([]byte, 2*chunkSize+10)
	frame, err := Encode("p.bin", payload)
	require.NoError(t, err)

	var seen []int64
	d := Decoder{OnProgress: func(name string, received, total int64) {
		assert.Equal(t, "p.bin", name)
		assert.Equal(t, int64(len(payload)), total)
		seen = append(seen, received)
	}}
	_, err = d.Decode(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, []int64{chunkSize, 2 * chunkSize, int64(len(payload))}, seen)

	var sent []int64
	err = WriteMessage(io.Discard, Message{Name: "p.bin", Payload: payload}, func(n, _ int64) {
		sent = append(sent, n)
	})
	require.NoError(t, err)
	assert.Equal(t, seen, sent)
}
