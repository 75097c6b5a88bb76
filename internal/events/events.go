package events

import "time"

// Type enumerates high-level console events.
type Type string

const (
	FileReceived       Type = "file_received"
	FileSent           Type = "file_sent"
	DestinationChanged Type = "destination_changed"
	Triggered          Type = "triggered"
	Status             Type = "status"
	Error              Type = "error"
	Progress           Type = "progress"
)

// Event carries data between background services and the console renderer.
type Event struct {
	Type      Type
	Title     string
	Message   string
	From      string
	To        string
	Path      string
	Size      int64
	Timestamp time.Time
	Progress  *ProgressState
}

// ProgressState models transfer progress updates.
type ProgressState struct {
	ID        string
	Current   int64
	Total     int64
	Label     string
	Done      bool
	Path      string
	Peer      string
	Direction string
	StartedAt time.Time
}

// Emit delivers evt without blocking; a full or nil channel drops it.
func Emit(ch chan<- Event, evt Event) {
	if ch == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	select {
	case ch <- evt:
	default:
	}
}
