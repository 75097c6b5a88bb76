package network

import (
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/hamzawahab/hotdrop/internal/logger"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Intake accepts connections for as long as it runs and hands them over in
// arrival order. When the queue is full the accept loop waits; nothing is
// dropped.
type Intake struct {
	ln       net.Listener
	queue    chan net.Conn
	logger   *logger.Logger
	stop     chan struct{}
	stopOnce sync.Once
	wait     sync.WaitGroup
}

// NewIntake wraps ln. capacity below 1 is treated as 1.
func NewIntake(ln net.Listener, capacity int, log *logger.Logger) *Intake {
	if capacity < 1 {
		capacity = 1
	}
	return &Intake{
		ln:     ln,
		queue:  make(chan net.Conn, capacity),
		logger: log,
		stop:   make(chan struct{}),
	}
}

// Listen binds a TCP listener on every interface.
func Listen(port int) (net.Listener, error) {
	return net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(port)))
}

// Start launches the accept loop.
func (i *Intake) Start() {
	i.wait.Add(1)
	go i.acceptLoop()
}

// Queue yields accepted connections. Each must be closed by whoever takes it.
func (i *Intake) Queue() <-chan net.Conn { return i.queue }

// Addr is the listening address.
func (i *Intake) Addr() net.Addr { return i.ln.Addr() }

// Stop closes the listener, waits for the accept loop and closes every
// connection still queued.
func (i *Intake) Stop() {
	i.stopOnce.Do(func() {
		close(i.stop)
		i.ln.Close()
	})
	i.wait.Wait()
	for {
		select {
		case conn := <-i.queue:
			conn.Close()
		default:
			return
		}
	}
}

func (i *Intake) stopping() bool {
	select {
	case <-i.stop:
		return true
	default:
		return false
	}
}

func (i *Intake) acceptLoop() {
	defer i.wait.Done()
	var backoff time.Duration
	for {
		conn, err := i.ln.Accept()
		if err != nil {
			if i.stopping() || errors.Is(err, net.ErrClosed) {
				return
			}
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else if backoff *= 2; backoff > maxAcceptBackoff {
				backoff = maxAcceptBackoff
			}
			i.logger.Error("accept error: %v (retrying in %s)", err, backoff)
			select {
			case <-i.stop:
				return
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0
		i.logger.Debug("accepted connection from %s", conn.RemoteAddr())
		select {
		case i.queue <- conn:
		case <-i.stop:
			conn.Close()
			return
		}
	}
}
