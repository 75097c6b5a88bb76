package network

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

const (
	headerSize = 8
	chunkSize  = 64 * 1024
)

var (
	// ErrFrameTooLarge reports a declared length above the decoder limit.
	ErrFrameTooLarge = errors.New("frame exceeds size limit")
	// ErrInvalidName reports a name that is not valid UTF-8.
	ErrInvalidName = errors.New("file name is not valid UTF-8")
	// ErrFieldTooLong reports a field that does not fit a 32-bit length.
	ErrFieldTooLong = errors.New("field longer than 4 GiB")
)

// Message is one file on the wire.
type Message struct {
	Name    string
	Payload []byte
}

// DecodeError names the part of the frame that could not be read.
type DecodeError struct {
	Stage Stage
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode returns the full frame for name and payload.
func Encode(name string, payload []byte) ([]byte, error) {
	header, err := frameHeader(name, payload)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, headerSize+len(name)+len(payload))
	frame = append(frame, header...)
	frame = append(frame, name...)
	frame = append(frame, payload...)
	return frame, nil
}

// WriteMessage writes the header, the name and then the payload in 64 KiB
// chunks. progress, when set, sees the running payload total after each chunk.
func WriteMessage(w io.Writer, msg Message, progress func(sent, total int64)) error {
	header, err := frameHeader(msg.Name, msg.Payload)
	if err != nil {
		return err
	}
	prefix := make([]byte, 0, headerSize+len(msg.Name))
	prefix = append(prefix, header...)
	prefix = append(prefix, msg.Name...)
	if _, err := w.Write(prefix); err != nil {
		return err
	}
	total := int64(len(msg.Payload))
	var sent int64
	for sent < total {
		end := sent + chunkSize
		if end > total {
			end = total
		}
		n, err := w.Write(msg.Payload[sent:end])
		sent += int64(n)
		if err != nil {
			return err
		}
		if progress != nil {
			progress(sent, total)
		}
	}
	return nil
}

func frameHeader(name string, payload []byte) ([]byte, error) {
	if uint64(len(name)) > math.MaxUint32 {
		return nil, fmt.Errorf("name: %w", ErrFieldTooLong)
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("payload: %w", ErrFieldTooLong)
	}
	header := make([]byte, headerSize)
	binary.BigEndian.PutUint32(header[0:4], uint32(len(name)))
	binary.BigEndian.PutUint32(header[4:8], uint32(len(payload)))
	return header, nil
}

// Decoder reads frames with optional size limits. A zero limit is unbounded.
type Decoder struct {
	MaxNameLen    uint32
	MaxPayloadLen uint32
	// OnProgress is called after every payload chunk.
	OnProgress func(name string, received, total int64)
}

// Decode reads one frame with no size limits.
func Decode(r io.Reader) (Message, error) {
	var d Decoder
	return d.Decode(r)
}

// Decode reads exactly one frame. Lengths are checked before anything is
// allocated and every field is read in full or reported as a *DecodeError.
func (d *Decoder) Decode(r io.Reader) (Message, error) {
	var lenBuf [4]byte

	if err := readFull(r, lenBuf[:], StageNameLength, true); err != nil {
		return Message{}, err
	}
	nameLen := binary.BigEndian.Uint32(lenBuf[:])

	if err := readFull(r, lenBuf[:], StagePayloadLength, false); err != nil {
		return Message{}, err
	}
	payloadLen := binary.BigEndian.Uint32(lenBuf[:])

	if d.MaxNameLen > 0 && nameLen > d.MaxNameLen {
		return Message{}, &DecodeError{Stage: StageNameLength, Err: fmt.Errorf("%w: name is %d bytes, limit %d", ErrFrameTooLarge, nameLen, d.MaxNameLen)}
	}
	if d.MaxPayloadLen > 0 && payloadLen > d.MaxPayloadLen {
		return Message{}, &DecodeError{Stage: StagePayloadLength, Err: fmt.Errorf("%w: payload is %d bytes, limit %d", ErrFrameTooLarge, payloadLen, d.MaxPayloadLen)}
	}

	nameBuf := make([]byte, nameLen)
	if err := readFull(r, nameBuf, StageName, false); err != nil {
		return Message{}, err
	}
	if !utf8.Valid(nameBuf) {
		return Message{}, &DecodeError{Stage: StageName, Err: ErrInvalidName}
	}
	name := string(nameBuf)

	payload := make([]byte, payloadLen)
	total := int64(payloadLen)
	var received int64
	for received < total {
		end := received + chunkSize
		if end > total {
			end = total
		}
		if err := readFull(r, payload[received:end], StagePayload, false); err != nil {
			return Message{}, err
		}
		received = end
		if d.OnProgress != nil {
			d.OnProgress(name, received, total)
		}
	}
	return Message{Name: name, Payload: payload}, nil
}

// readFull wraps io.ReadFull. A clean EOF is only reported as io.EOF before
// the first byte of a frame; anywhere later it is io.ErrUnexpectedEOF.
func readFull(r io.Reader, buf []byte, stage Stage, first bool) error {
	if len(buf) == 0 {
		return nil
	}
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) && !first {
			err = io.ErrUnexpectedEOF
		}
		return &DecodeError{Stage: stage, Err: err}
	}
	return nil
}
