package collectors

import (
	"github.com/samber/lo"

	"github.com/janekbaraniewski/tokendash/internal/collectors/anthropic"
	"github.com/janekbaraniewski/tokendash/internal/collectors/moonshot"
	"github.com/janekbaraniewski/tokendash/internal/collectors/openai"
	"github.com/janekbaraniewski/tokendash/internal/collectors/openrouter"
	"github.com/janekbaraniewski/tokendash/internal/core"
)

// All returns the registered collectors in fixed registration order. The
// aggregator preserves this order in every summary it builds.
func All() []core.Collector {
	return []core.Collector{
		openai.New(),
		anthropic.New(),
		moonshot.New(),
		openrouter.New(),
	}
}

// ByID dispatches by provider id.
func ByID(id string) (core.Collector, bool) {
	return lo.Find(All(), func(c core.Collector) bool {
		return c.ID() == id
	})
}
