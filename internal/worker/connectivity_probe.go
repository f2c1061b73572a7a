package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/connectivity"
)

// Pinger reports whether the remote API can be reached.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectivityProbe periodically pings the remote API and feeds the result to
// the connectivity monitor, the way a browser raises online/offline events.
type ConnectivityProbe struct {
	Remote  Pinger
	Monitor *connectivity.Monitor
	Logger  *slog.Logger

	Interval time.Duration
	// Timeout bounds a single ping. Zero means Interval.
	Timeout time.Duration
}

func NewConnectivityProbe(
	remote Pinger,
	monitor *connectivity.Monitor,
	interval time.Duration,
	logger *slog.Logger,
) *ConnectivityProbe {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectivityProbe{
		Remote:   remote,
		Monitor:  monitor,
		Logger:   logger,
		Interval: interval,
	}
}

// Run probes once right away, then on every tick until ctx is done.
func (p *ConnectivityProbe) Run(ctx context.Context) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	p.Logger.Info("connectivity probe started", "interval", p.Interval)
	p.ProcessProbe(ctx)

	for {
		select {
		case <-ctx.Done():
			p.Logger.Info("connectivity probe stopped")
			return
		case <-ticker.C:
			p.ProcessProbe(ctx)
		}
	}
}

// ProcessProbe pings once and records the resulting state.
func (p *ConnectivityProbe) ProcessProbe(ctx context.Context) connectivity.State {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = p.Interval
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	state := connectivity.Online
	if err := p.Remote.Ping(pingCtx); err != nil {
		if ctx.Err() != nil {
			// shutting down, not a connectivity change
			return p.Monitor.State()
		}
		p.Logger.Debug("remote API unreachable", "error", err)
		state = connectivity.Offline
	}

	p.Monitor.Set(state)
	return state
}
