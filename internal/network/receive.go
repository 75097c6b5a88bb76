package network

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/hamzawahab/hotdrop/internal/config"
	"github.com/hamzawahab/hotdrop/internal/events"
)

const (
	// ReplyOK acknowledges a stored file.
	ReplyOK = "OK"
	// ReplyNoDestination is sent instead of reading when no folder is chosen.
	ReplyNoDestination = "ERROR: No save directory selected"
)

// ErrUnsafeName reports a file name that would escape the destination folder.
var ErrUnsafeName = errors.New("unsafe file name")

// Receiver stores one inbound file per connection.
type Receiver struct {
	MaxNameLen    uint32
	MaxPayloadLen uint32
	IOTimeout     time.Duration
	Events        chan<- events.Event
}

// NewReceiver applies the transfer limits from cfg.
func NewReceiver(cfg *config.Config, ev chan<- events.Event) *Receiver {
	return &Receiver{
		MaxNameLen:    cfg.Transfer.MaxNameBytes,
		MaxPayloadLen: cfg.Transfer.MaxPayloadBytes,
		IOTimeout:     cfg.Transfer.IOTimeout,
		Events:        ev,
	}
}

// ReceiveOne handles a single connection. An empty destDir means no folder
// has been chosen: the error reply is written and nothing is read. The
// caller owns conn and closes it afterwards.
func (r *Receiver) ReceiveOne(conn io.ReadWriter, destDir string) Outcome {
	out := newOutcome()
	if nc, ok := conn.(net.Conn); ok {
		if addr := nc.RemoteAddr(); addr != nil {
			out.Peer = addr.String()
		}
		if r.IOTimeout > 0 {
			_ = nc.SetDeadline(time.Now().Add(r.IOTimeout))
		}
	}

	if destDir == "" {
		out.Status = NoDestinationConfigured
		if _, err := io.WriteString(conn, ReplyNoDestination); err != nil {
			out.Stage = StageRespond
			out.Err = err
		}
		return out
	}

	progressID := "recv:" + out.ID
	started := time.Now()
	dec := Decoder{
		MaxNameLen:    r.MaxNameLen,
		MaxPayloadLen: r.MaxPayloadLen,
		OnProgress: func(name string, received, total int64) {
			events.Emit(r.Events, events.Event{Type: events.Progress, Progress: &events.ProgressState{
				ID:        progressID,
				Label:     fmt.Sprintf("Receiving %s", name),
				Current:   received,
				Total:     total,
				Peer:      out.Peer,
				Direction: "receive",
				StartedAt: started,
			}})
		},
	}
	msg, err := dec.Decode(conn)
	if err != nil {
		var decErr *DecodeError
		if errors.As(err, &decErr) {
			return out.fail(ProtocolError, decErr.Stage, err)
		}
		return out.fail(ProtocolError, StagePayload, err)
	}
	out.Name = msg.Name
	out.Size = int64(len(msg.Payload))

	if err := checkName(msg.Name); err != nil {
		return out.fail(ProtocolError, StageValidateName, err)
	}

	out.Path = filepath.Join(destDir, msg.Name)
	if err := os.WriteFile(out.Path, msg.Payload, 0o644); err != nil {
		return out.fail(IOError, StageWriteFile, err)
	}
	out.MIME = mimetype.Detect(msg.Payload).String()
	events.Emit(r.Events, events.Event{Type: events.Progress, Progress: &events.ProgressState{
		ID:        progressID,
		Label:     fmt.Sprintf("Receiving %s", msg.Name),
		Current:   out.Size,
		Total:     out.Size,
		Done:      true,
		Path:      out.Path,
		Peer:      out.Peer,
		Direction: "receive",
		StartedAt: started,
	}})

	if _, err := io.WriteString(conn, ReplyOK); err != nil {
		return out.fail(IOError, StageRespond, err)
	}
	return out
}

// checkName accepts only a bare file name.
func checkName(name string) error {
	switch name {
	case "", ".", "..":
		return fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	if strings.ContainsAny(name, "/\\\x00") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	return nil
}
