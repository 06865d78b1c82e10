package dashboard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/janekbaraniewski/tokendash/internal/core"
)

// Poller drives periodic aggregation passes. One pass runs at a time: a tick
// arriving while a pass is in flight is skipped, not queued. On-demand
// refreshes are deduplicated with the ticker through a singleflight group.
type Poller struct {
	agg *Aggregator
	log *zap.Logger

	group    singleflight.Group
	inFlight atomic.Bool

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func NewPoller(agg *Aggregator, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		agg:  agg,
		log:  log,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the poll loop: one immediate pass, then one per poll
// interval. A failed pass is logged and the loop keeps going. Start returns
// once the loop is running; subsequent calls are no-ops.
func (p *Poller) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.started.Store(true)
		go p.loop(ctx)
	})
}

// Stop shuts the loop down and waits for any in-flight pass to finish. It is
// safe to call twice, and safe to call before Start.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	if p.started.Load() {
		<-p.done
	}
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	p.tick(ctx)

	interval := p.agg.Config().PollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("poller stopping", zap.String("reason", "context cancelled"))
			return
		case <-p.stop:
			p.log.Info("poller stopping", zap.String("reason", "stop requested"))
			return
		case <-ticker.C:
			p.tick(ctx)
			// Pick up interval changes from config hot-reload.
			if next := p.agg.Config().PollInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
				p.log.Info("poll interval updated", zap.Duration("interval", interval))
			}
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.log.Warn("aggregation still in flight, skipping tick")
		return
	}
	defer p.inFlight.Store(false)

	if _, err := p.Refresh(ctx); err != nil {
		p.log.Error("scheduled aggregation failed", zap.Error(err))
	}
}

// Refresh runs an aggregation pass on demand. Concurrent callers share a
// single pass and all receive its summary.
func (p *Poller) Refresh(ctx context.Context) (*core.DashboardSummary, error) {
	v, err, _ := p.group.Do("refresh", func() (any, error) {
		return p.agg.Run(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.DashboardSummary), nil
}
