// Package pricing estimates USD cost from token counts for providers whose
// usage endpoints report tokens without cost figures.
package pricing

import (
	"math"
	"strings"
)

// ModelPricing is USD per 1M tokens.
type ModelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Model pricing in USD per 1M tokens, as of mid 2026.
var modelPricingTable = map[string]ModelPricing{
	// OpenAI
	"gpt-4.1":       {InputPerMillion: 2.00, OutputPerMillion: 8.00},
	"gpt-4.1-mini":  {InputPerMillion: 0.40, OutputPerMillion: 1.60},
	"gpt-4o":        {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini":   {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"gpt-4-turbo":   {InputPerMillion: 10.00, OutputPerMillion: 30.00},
	"gpt-3.5-turbo": {InputPerMillion: 0.50, OutputPerMillion: 1.50},
	"o3":            {InputPerMillion: 10.00, OutputPerMillion: 40.00},
	"o4-mini":       {InputPerMillion: 1.10, OutputPerMillion: 4.40},
	// Anthropic
	"claude-3-opus":     {InputPerMillion: 15.00, OutputPerMillion: 75.00},
	"claude-opus-4":     {InputPerMillion: 15.00, OutputPerMillion: 75.00},
	"claude-3-5-sonnet": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-sonnet-4":   {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-3-5-haiku":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},
	"claude-3-haiku":    {InputPerMillion: 0.25, OutputPerMillion: 1.25},
	// Moonshot (Kimi)
	"moonshot-v1-8k":   {InputPerMillion: 1.68, OutputPerMillion: 1.68},
	"moonshot-v1-32k":  {InputPerMillion: 3.36, OutputPerMillion: 3.36},
	"moonshot-v1-128k": {InputPerMillion: 8.40, OutputPerMillion: 8.40},
	"kimi-k2":          {InputPerMillion: 0.60, OutputPerMillion: 2.50},
}

// defaultPricing is the fallback for unknown models.
var defaultPricing = ModelPricing{InputPerMillion: 1.00, OutputPerMillion: 2.00}

// ForModel resolves pricing by exact match first, then longest known prefix
// (versioned snapshots like gpt-4o-2024-08-06 resolve to their base model).
func ForModel(model string) (ModelPricing, bool) {
	m := strings.ToLower(strings.TrimSpace(model))
	if p, ok := modelPricingTable[m]; ok {
		return p, true
	}

	bestLen := 0
	var best ModelPricing
	for known, p := range modelPricingTable {
		if strings.HasPrefix(m, known) && len(known) > bestLen {
			bestLen = len(known)
			best = p
		}
	}
	if bestLen > 0 {
		return best, true
	}
	return defaultPricing, false
}

// EstimateCostUSD estimates cost for a token count pair, rounded to
// micro-dollars the way the upstream billing views do.
func EstimateCostUSD(model string, inputTokens, outputTokens int64) float64 {
	p, _ := ForModel(model)
	cost := float64(inputTokens)/1_000_000*p.InputPerMillion +
		float64(outputTokens)/1_000_000*p.OutputPerMillion
	return math.Round(cost*1e6) / 1e6
}
