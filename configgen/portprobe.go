// Package configgen resolves user configuration plus an Environment into a
// startable torconfig.Config, reassigning unavailable ports.
package configgen

import (
	"context"
	"fmt"
	"net"

	"github.com/torctl/torctl/address"
)

// PortAvailable reports whether (host, port) is currently bindable via TCP
// on localhost. It binds and immediately closes a listener; this is the
// same approach the corpus uses for pre-flight reachability checks
// (nao1215-tornago's resolveAddr/portsReachable), inverted to test for a
// free rather than a reachable port.
func PortAvailable(host string, port address.ProxyPort) bool {
	l, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}

// PortUnavailableError is returned when the prober exhausts its scan limit.
type PortUnavailableError struct {
	Host  string
	Start address.ProxyPort
	Limit int
}

func (e *PortUnavailableError) Error() string {
	return fmt.Sprintf("configgen: no free port found near %s:%d within %d attempts", e.Host, e.Start, e.Limit)
}

// Prober scans for a free proxy port, wrapping around at ProxyPortMax back
// to ProxyPortMin, per spec §4.4.
type Prober struct {
	Host  string
	Check func(host string, port address.ProxyPort) bool
}

// NewProber builds a Prober using PortAvailable as the default check.
func NewProber(host string) *Prober {
	return &Prober{Host: host, Check: PortAvailable}
}

// FindFree scans up to limit (clamped to [1,1000]) candidate ports starting
// at start, wrapping at address.ProxyPortMax back to address.ProxyPortMin,
// yielding to ctx between attempts so a long scan can be cancelled.
func (p *Prober) FindFree(ctx context.Context, start address.ProxyPort, limit int) (address.ProxyPort, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 1000 {
		limit = 1000
	}

	port := start
	for i := 0; i < limit; i++ {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		if p.Check(p.Host, port) {
			return port, nil
		}

		if port >= address.ProxyPortMax {
			port = address.ProxyPortMin
		} else {
			port++
		}
	}
	return 0, &PortUnavailableError{Host: p.Host, Start: start, Limit: limit}
}
