// Package gateway wraps a single outbound generate-content call with
// cognitive-configuration merging and exponential-backoff retry. Every other
// component that talks to the language model routes through here.
package gateway

import (
	"context"
	"fmt"
	"strings"
)

// DefaultModel is used when neither an override nor a thought speed is set.
const DefaultModel = "gemini-2.5-flash"

// Model speeds. The speed names the provider model a call is sent to.
const (
	SpeedFlash     = "gemini-2.5-flash"
	SpeedFlashLite = "gemini-2.5-flash-lite"
	SpeedPro       = "gemini-2.5-pro"
	SpeedLegacy    = "gemini-2.0-flash" // no reasoning-trace support
)

// Clarity is the qualitative reasoning-effort level. Five levels map onto the
// provider's four thinking tiers, with instinct explicitly unspecified.
type Clarity string

const (
	ClarityInstinct Clarity = "instinct"
	ClarityGlimmer  Clarity = "glimmer"
	ClarityFocused  Clarity = "focused"
	ClarityLucid    Clarity = "lucid"
	ClarityPiercing Clarity = "piercing"
)

// ThinkingLevel maps the clarity to the provider's depth parameter.
// Unknown values fall back to unspecified.
func (c Clarity) ThinkingLevel() string {
	switch c {
	case ClarityInstinct:
		return "" // explicitly unspecified
	case ClarityGlimmer:
		return "minimal"
	case ClarityFocused:
		return "low"
	case ClarityLucid:
		return "medium"
	case ClarityPiercing:
		return "high"
	default:
		return ""
	}
}

// SupportsTrace reports whether a model accepts the reasoning-trace
// parameter. Sending it to a model that rejects it is a hard error on the
// provider side, so callers must gate on this.
func SupportsTrace(model string) bool {
	return strings.HasPrefix(model, "gemini-2.5")
}

// CognitiveConfig is the per-agent shared state the gateway reads at call
// time. The caller mutates it in place between calls; there is no concurrent
// writer.
type CognitiveConfig struct {
	SystemInstruction string
	ThoughtSpeed      string
	IncludeTrace      bool
	Clarity           Clarity
}

// ThinkingConfig is the provider-facing reasoning block, attached to a
// request only when the caller explicitly enabled the trace.
type ThinkingConfig struct {
	IncludeThoughts bool
	Level           string
}

// CallRequest is a single generate-content request. Constructed fresh per
// call, never persisted.
type CallRequest struct {
	Contents          string
	Model             string
	SystemInstruction string
	Thinking          *ThinkingConfig
}

// UsageMetadata carries the token counts from one successful response.
type UsageMetadata struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	CachedTokens int `json:"cached_tokens,omitempty"`
}

// CallOutcome is the transient result of one call, consumed immediately by
// the caller.
type CallOutcome struct {
	Text  string
	Usage UsageMetadata
}

// LanguageClient is the generate-content capability the gateway depends on.
// Any compliant provider client can be substituted.
type LanguageClient interface {
	GenerateContent(ctx context.Context, req *CallRequest) (*CallOutcome, error)
}

// UsageSink receives the usage metadata of every successful call. The
// gateway is the only place usage data is captured, so cost tracking and
// budget enforcement hook in through this.
type UsageSink interface {
	Record(model, operation string, inputTokens, outputTokens, cachedTokens int)
}

// ProviderError is a typed provider failure carrying the HTTP status.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Message)
}
