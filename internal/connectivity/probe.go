// Package connectivity answers "is the network usable right now?" with a
// single bounded check. The answer is advisory; the sync attempt itself is
// the real arbiter.
package connectivity

import (
	"context"
	"log/slog"
	"net"
	"time"
)

type Probe interface {
	IsConnected(ctx context.Context) bool
}

// ProbeFunc adapts a plain function to Probe.
type ProbeFunc func(ctx context.Context) bool

func (f ProbeFunc) IsConnected(ctx context.Context) bool { return f(ctx) }

// Offline always reports no connectivity.
var Offline = ProbeFunc(func(context.Context) bool { return false })

// DialProbe reports connectivity by opening (and immediately closing) a TCP
// connection to the collector. It never waits longer than its timeout.
type DialProbe struct {
	addr    string
	timeout time.Duration
	dialer  net.Dialer
	logger  *slog.Logger
}

func NewDialProbe(addr string, timeout time.Duration, l *slog.Logger) *DialProbe {
	return &DialProbe{addr: addr, timeout: timeout, logger: l}
}

func (p *DialProbe) IsConnected(ctx context.Context) bool {
	if p.addr == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		p.logger.Debug("Connectivity probe failed", "addr", p.addr, "error", err)
		return false
	}
	conn.Close()
	return true
}
