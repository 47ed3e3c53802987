package usage

// Ledger is the root structure stored in persistence.
type Ledger struct {
	Version   string          `json:"version"`
	Aggregate AggregatedStats `json:"aggregate"`
}

// AggregatedStats holds counters broken down by dimension.
type AggregatedStats struct {
	Total       TokenCounts            `json:"total"`
	ByModel     map[string]TokenCounts `json:"by_model"`
	ByOperation map[string]TokenCounts `json:"by_operation"` // grow, hypothesize, embed
}

// TokenCounts holds input/output sums plus the estimated spend.
type TokenCounts struct {
	Input  int64   `json:"input"`
	Output int64   `json:"output"`
	Cached int64   `json:"cached"`
	Total  int64   `json:"total"`
	Cost   float64 `json:"cost_est_usd"`
}

func (tc *TokenCounts) add(input, output, cached int, cost float64) {
	tc.Input += int64(input)
	tc.Output += int64(output)
	tc.Cached += int64(cached)
	tc.Total += int64(input + output)
	tc.Cost += cost
}
