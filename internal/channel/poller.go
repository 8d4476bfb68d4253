package channel

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/evently/courier/internal/bus"
)

// Poller periodically re-fetches conversations and the active thread while
// the push channel is down. Once started it runs until Stop; there is no
// automatic return to the websocket.
type Poller struct {
	interval time.Duration
	refresh  func(ctx context.Context)
	bus      *bus.Bus
	logger   *zap.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
}

// NewPoller builds a fallback poller. refresh is the service's Refresh.
func NewPoller(interval time.Duration, refresh func(ctx context.Context), b *bus.Bus, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		interval: interval,
		refresh:  refresh,
		bus:      b,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start launches the polling loop. Subsequent calls are no-ops, so the
// channel manager can hand off without coordinating.
func (p *Poller) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("fallback polling started", zap.Duration("interval", p.interval))
		if p.bus != nil {
			p.bus.Emit(bus.KindChannelDegraded, p.interval)
		}
		go p.run()
	})
}

func (p *Poller) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// First pass immediately so the user does not wait a full interval.
	p.refresh(context.Background())
	for {
		select {
		case <-ticker.C:
			p.refresh(context.Background())
		case <-p.stop:
			return
		}
	}
}

// Stop halts the loop. Safe to call whether or not Start ever ran.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
}
