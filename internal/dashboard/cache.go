package dashboard

import (
	"errors"
	"sync"

	"github.com/janekbaraniewski/tokendash/internal/core"
)

// ErrNoData marks a cache read before any aggregation pass has completed.
// It is a reportable condition, not a failure.
var ErrNoData = errors.New("no dashboard data yet")

// Cache holds the most recent summary. Only the aggregator writes it; any
// number of readers may hit it concurrently. The slot is replaced wholesale,
// so a reader never observes a partially built summary.
type Cache struct {
	mu   sync.RWMutex
	last *core.DashboardSummary
}

func NewCache() *Cache { return &Cache{} }

func (c *Cache) Set(summary *core.DashboardSummary) {
	c.mu.Lock()
	c.last = summary
	c.mu.Unlock()
}

// Get returns the cached summary, or false when no pass has completed yet.
func (c *Cache) Get() (*core.DashboardSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return nil, false
	}
	return c.last, true
}
