package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hamzawahab/hotdrop/internal/config"
	"github.com/hamzawahab/hotdrop/internal/events"
)

const defaultDialTimeout = 5 * time.Second

// Sender pushes one file per call to a receiver.
type Sender struct {
	DialTimeout    time.Duration
	IOTimeout      time.Duration
	ResponseBuffer int
	Events         chan<- events.Event
}

// NewSender applies the client settings from cfg.
func NewSender(cfg *config.Config, ev chan<- events.Event) *Sender {
	return &Sender{
		DialTimeout:    cfg.Client.DialTimeout,
		IOTimeout:      cfg.Transfer.IOTimeout,
		ResponseBuffer: cfg.Transfer.ResponseBuffer,
		Events:         ev,
	}
}

// SendOne connects to serverAddr, sends filePath as a single frame and reads
// one reply. Any reply, including none at all, counts as Success.
func (s *Sender) SendOne(ctx context.Context, serverAddr, filePath string) Outcome {
	out := newOutcome()
	out.Peer = serverAddr
	out.Name = filepath.Base(filePath)
	out.Path = filePath

	timeout := s.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", serverAddr)
	if err != nil {
		return out.fail(IOError, StageConnect, err)
	}
	defer conn.Close()
	if s.IOTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.IOTimeout))
	}

	payload, err := os.ReadFile(filePath)
	if err != nil {
		return out.fail(IOError, StageReadFile, err)
	}
	out.Size = int64(len(payload))

	progressID := "send:" + out.ID
	label := fmt.Sprintf("Sending %s", out.Name)
	started := time.Now()
	progress := func(sent, total int64) {
		events.Emit(s.Events, events.Event{Type: events.Progress, Progress: &events.ProgressState{
			ID:        progressID,
			Label:     label,
			Current:   sent,
			Total:     total,
			Path:      filePath,
			Peer:      serverAddr,
			Direction: "send",
			StartedAt: started,
		}})
	}
	if err := WriteMessage(conn, Message{Name: out.Name, Payload: payload}, progress); err != nil {
		return out.fail(IOError, StageWriteFrame, err)
	}
	events.Emit(s.Events, events.Event{Type: events.Progress, Progress: &events.ProgressState{
		ID:        progressID,
		Label:     label,
		Current:   out.Size,
		Total:     out.Size,
		Done:      true,
		Path:      filePath,
		Peer:      serverAddr,
		Direction: "send",
		StartedAt: started,
	}})

	size := s.ResponseBuffer
	if size <= 0 {
		size = config.DefaultResponseBytes
	}
	buf := make([]byte, size)
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) && n == 0 {
		return out.fail(IOError, StageReadResponse, err)
	}
	out.Response = string(buf[:n])
	return out
}
