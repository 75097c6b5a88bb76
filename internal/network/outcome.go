package network

import (
	"fmt"

	"github.com/google/uuid"
)

// Status classifies the result of one transfer attempt.
type Status int

const (
	Success Status = iota
	NoDestinationConfigured
	IOError
	ProtocolError
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case NoDestinationConfigured:
		return "no destination configured"
	case IOError:
		return "I/O error"
	case ProtocolError:
		return "protocol error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Stage names the step a transfer had reached.
type Stage string

const (
	StageConnect       Stage = "connect"
	StageReadFile      Stage = "read file"
	StageWriteFrame    Stage = "write frame"
	StageReadResponse  Stage = "read response"
	StageNameLength    Stage = "name length"
	StagePayloadLength Stage = "payload length"
	StageName          Stage = "name"
	StagePayload       Stage = "payload"
	StageValidateName  Stage = "validate name"
	StageWriteFile     Stage = "write file"
	StageRespond       Stage = "respond"
)

// Outcome is what ReceiveOne and SendOne report. Err is nil on Success.
type Outcome struct {
	ID       string
	Status   Status
	Stage    Stage
	Err      error
	Peer     string
	Name     string
	Path     string
	Size     int64
	MIME     string
	Response string
}

func newOutcome() Outcome {
	return Outcome{ID: uuid.NewString(), Status: Success}
}

// OK reports whether the transfer succeeded.
func (o Outcome) OK() bool { return o.Status == Success }

func (o Outcome) fail(status Status, stage Stage, err error) Outcome {
	o.Status = status
	o.Stage = stage
	o.Err = err
	return o
}

// String renders the outcome for log lines.
func (o Outcome) String() string {
	if o.Status == Success {
		return fmt.Sprintf("%s %s (%d bytes)", o.ID, o.Name, o.Size)
	}
	if o.Err == nil {
		return fmt.Sprintf("%s %s", o.ID, o.Status)
	}
	return fmt.Sprintf("%s %s at %s: %v", o.ID, o.Status, o.Stage, o.Err)
}
