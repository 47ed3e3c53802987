// Package pricing estimates the USD cost of generative calls from token
// counts and a per-model tiered rate table. Pure arithmetic, no I/O.
package pricing

import "math"

// ContextThreshold is the input token count above which the over-tier rates
// apply. Mirrors vendor billing: a large-context request is billed at the
// higher uniform rate for both input and output.
const ContextThreshold = 128000

// DefaultModel is the rate table used when a model key is unknown.
const DefaultModel = "gemini-2.5-flash"

// CostModel holds the linear rates for one model. All rates are USD per one
// million tokens; storage is USD per one million tokens per hour.
type CostModel struct {
	InputRate          float64
	OutputRate         float64
	InputRateOver      float64
	OutputRateOver     float64
	CachedInputRate    float64
	StorageRatePerHour float64
}

// Table maps model keys to cost models.
type Table map[string]CostModel

// DefaultTable returns the built-in rate table.
func DefaultTable() Table {
	return Table{
		"gemini-2.5-flash": {
			InputRate:          0.075,
			OutputRate:         0.30,
			InputRateOver:      0.15,
			OutputRateOver:     0.60,
			CachedInputRate:    0.01875,
			StorageRatePerHour: 0.0002,
		},
		"gemini-2.5-flash-lite": {
			InputRate:          0.0375,
			OutputRate:         0.15,
			InputRateOver:      0.075,
			OutputRateOver:     0.30,
			CachedInputRate:    0.009375,
			StorageRatePerHour: 0.0002,
		},
		"gemini-2.5-pro": {
			InputRate:          1.25,
			OutputRate:         5.00,
			InputRateOver:      2.50,
			OutputRateOver:     10.00,
			CachedInputRate:    0.3125,
			StorageRatePerHour: 0.0002,
		},
		"gemini-2.0-flash": {
			InputRate:          0.10,
			OutputRate:         0.40,
			InputRateOver:      0.10,
			OutputRateOver:     0.40,
			CachedInputRate:    0.025,
			StorageRatePerHour: 0.0002,
		},
	}
}

// Amount is a token quantity, built from either a raw count or a string.
type Amount struct {
	tokens int
}

// Tokens wraps a raw token count.
func Tokens(n int) Amount {
	if n < 0 {
		n = 0
	}
	return Amount{tokens: n}
}

// Text converts a string to an estimated token count using the 4-characters-
// per-token heuristic, rounding up.
func Text(s string) Amount {
	return Amount{tokens: int(math.Ceil(float64(len(s)) / 4.0))}
}

// Count returns the token count.
func (a Amount) Count() int {
	return a.tokens
}

// Estimate computes the standard (uncached) cost for one call against the
// default table.
func Estimate(modelKey string, input, output Amount) float64 {
	return DefaultTable().Estimate(modelKey, input, output)
}

// EstimateCached computes the cost of a call whose input is served from the
// provider cache, optionally adding cache storage for durationHours.
func EstimateCached(modelKey string, input, output Amount, durationHours float64) float64 {
	return DefaultTable().EstimateCached(modelKey, input, output, durationHours)
}

// Estimate computes the standard (uncached) cost for one call.
func (t Table) Estimate(modelKey string, input, output Amount) float64 {
	return t.estimate(modelKey, input, output, false, 0)
}

// EstimateCached computes the cached-input cost for one call. Output is
// always billed at the standard rate for the selected tier.
func (t Table) EstimateCached(modelKey string, input, output Amount, durationHours float64) float64 {
	return t.estimate(modelKey, input, output, true, durationHours)
}

func (t Table) estimate(modelKey string, input, output Amount, cached bool, durationHours float64) float64 {
	model, ok := t.resolve(modelKey)
	if !ok {
		return 0 // no table resolvable at all
	}

	inTokens := float64(input.Count())
	outTokens := float64(output.Count())

	// Tier selection is driven by input size alone; crossing the threshold
	// moves both input and output to the over rates.
	inputRate := model.InputRate
	outputRate := model.OutputRate
	if input.Count() > ContextThreshold {
		inputRate = model.InputRateOver
		outputRate = model.OutputRateOver
	}

	var cost float64
	if cached {
		cost = inTokens / 1e6 * model.CachedInputRate
		if durationHours > 0 {
			cost += inTokens / 1e6 * model.StorageRatePerHour * durationHours
		}
	} else {
		cost = inTokens / 1e6 * inputRate
	}
	cost += outTokens / 1e6 * outputRate

	return cost
}

// resolve looks up the model key, falling back to the default model's rates
// for unknown keys.
func (t Table) resolve(modelKey string) (CostModel, bool) {
	if m, ok := t[modelKey]; ok {
		return m, true
	}
	if m, ok := t[DefaultModel]; ok {
		return m, true
	}
	return CostModel{}, false
}
