package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/brutella/dnssd"

	"github.com/hamzawahab/hotdrop/internal/logger"
	"github.com/hamzawahab/hotdrop/internal/version"
)

const (
	ServiceType   = "_hotdrop._tcp"
	ServiceDomain = "local"
)

// ErrNoReceiver is returned when browsing ends without a result.
var ErrNoReceiver = errors.New("no receiver found on the local network")

// Peer is a receiver seen through mDNS.
type Peer struct {
	Name string
	IP   net.IP
	Port int
}

// Address returns host:port for dialling.
func (p Peer) Address() string {
	return net.JoinHostPort(p.IP.String(), strconv.Itoa(p.Port))
}

// Announcer advertises a running receiver on the LAN.
type Announcer struct {
	name   string
	port   int
	logger *logger.Logger
}

// NewAnnouncer uses the host name as instance name when name is empty.
func NewAnnouncer(name string, port int, log *logger.Logger) *Announcer {
	if name == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "hotdrop"
		}
		name = host
	}
	return &Announcer{name: name, port: port, logger: log}
}

// Run answers mDNS queries until ctx is cancelled.
func (a *Announcer) Run(ctx context.Context) error {
	svc, err := dnssd.NewService(dnssd.Config{
		Name:   a.name,
		Type:   ServiceType,
		Domain: ServiceDomain,
		Port:   a.port,
		Text:   map[string]string{"version": version.Version},
	})
	if err != nil {
		return fmt.Errorf("create mDNS service: %w", err)
	}
	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("create mDNS responder: %w", err)
	}
	if _, err := rp.Add(svc); err != nil {
		return fmt.Errorf("add mDNS service: %w", err)
	}
	a.logger.Info("announcing %s as %q on port %d", ServiceType, a.name, a.port)
	if err := rp.Respond(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mDNS responder: %w", err)
	}
	return nil
}

// Discover browses for receivers and returns the first one seen within
// timeout.
func Discover(ctx context.Context, timeout time.Duration, log *logger.Logger) (Peer, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	found := make(chan Peer, 1)
	add := func(e dnssd.BrowseEntry) {
		ip := preferIPv4(e.IPs)
		if ip == nil {
			return
		}
		log.Debug("discovered %s at %s:%d", e.Name, ip, e.Port)
		select {
		case found <- Peer{Name: e.Name, IP: ip, Port: e.Port}:
		default:
		}
	}
	remove := func(dnssd.BrowseEntry) {}

	done := make(chan error, 1)
	go func() {
		done <- dnssd.LookupType(ctx, fmt.Sprintf("%s.%s.", ServiceType, ServiceDomain), add, remove)
	}()

	select {
	case peer := <-found:
		cancel()
		<-done
		return peer, nil
	case err := <-done:
		select {
		case peer := <-found:
			return peer, nil
		default:
		}
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return Peer{}, fmt.Errorf("mDNS lookup: %w", err)
		}
		return Peer{}, ErrNoReceiver
	}
}

func preferIPv4(ips []net.IP) net.IP {
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4
		}
	}
	if len(ips) > 0 {
		return ips[0]
	}
	return nil
}
