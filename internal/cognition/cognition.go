// Package cognition holds the per-agent orchestration state and the two
// higher-order operations composed from gateway calls plus prompt synthesis:
// iterative narrative growth and structured hypothesis formulation.
package cognition

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"muse/internal/gateway"
	"muse/internal/logging"
	"muse/internal/prompt"
	"muse/internal/types"
)

// System instructions are fixed per operation. Growth asks for the evolved
// whole, so the returned text replaces the body rather than extending it.
const (
	growInstruction = "You are a pattern continuation engine. You receive a record " +
		"with a title, synopsis, tags, and a body. Evolve the body: deepen it, " +
		"extend its patterns, and keep it coherent with the metadata. Output only " +
		"the evolved body text, as a whole. Do not output commentary, headers, or " +
		"the metadata envelope."

	hypothesisInstruction = "You are a structured extraction engine. You receive a " +
		"narrative record. Derive a single hypothesis from it and output it as " +
		"strict JSON with exactly these fields: " +
		`{"topic": {"title": string, "synopsis": string, "tags": [string]}, ` +
		`"thesis": string, "storyline": [string], "tags": [string]}. ` +
		"Output only the JSON object. No Markdown, no commentary."
)

// Mind is the cognitive orchestrator: per-agent mutable state read by the
// gateway at call time. The caller mutates it between calls; there is no
// concurrent writer, so no locking.
type Mind struct {
	gw *gateway.Gateway

	metaGoal    *types.Goal
	currentGoal *types.Goal
	currentPlan *types.Plan
	shape       *gateway.CognitiveConfig
}

// NewMind wires a mind over its gateway. shape is the same value the gateway
// was constructed with, so thought-speed and clarity changes here take effect
// on the next call.
func NewMind(gw *gateway.Gateway, shape *gateway.CognitiveConfig) *Mind {
	return &Mind{gw: gw, shape: shape}
}

// SetMetaGoal sets the top-level objective every prompt stays anchored to.
func (m *Mind) SetMetaGoal(g *types.Goal) { m.metaGoal = g }

// SetGoal sets the goal currently being pursued.
func (m *Mind) SetGoal(g *types.Goal) { m.currentGoal = g }

// SetPlan sets the ordered steps toward the current goal.
func (m *Mind) SetPlan(p *types.Plan) { m.currentPlan = p }

// MetaGoal returns the top-level objective, which may be nil.
func (m *Mind) MetaGoal() *types.Goal { return m.metaGoal }

// Goal returns the current goal, which may be nil.
func (m *Mind) Goal() *types.Goal { return m.currentGoal }

// Plan returns the current plan, which may be nil.
func (m *Mind) Plan() *types.Plan { return m.currentPlan }

// Shape returns the thinking shape shared with the gateway.
func (m *Mind) Shape() *gateway.CognitiveConfig { return m.shape }

// activeGoals is the goal list rendered into contextualized prompts.
func (m *Mind) activeGoals() []*types.Goal {
	if m.currentGoal == nil {
		return nil
	}
	return []*types.Goal{m.currentGoal}
}

// GrowNarrative runs iterations sequential growth rounds over n. Each round
// sends the full metadata envelope plus the current body and REPLACES the
// body with the returned text. Iteration i+1 always sees the output of
// iteration i. An empty response leaves the body untouched with a warning.
func (m *Mind) GrowNarrative(ctx context.Context, n *types.Narrative, iterations int) error {
	if n == nil {
		return fmt.Errorf("cannot grow a nil narrative")
	}

	m.shape.SystemInstruction = growInstruction
	gw := m.gw.WithOperation("grow")

	metaName := ""
	if m.metaGoal != nil {
		metaName = m.metaGoal.Name
	}

	for i := 1; i <= iterations; i++ {
		content := prompt.WithGoals(prompt.Metadata(n), metaName, m.activeGoals())

		outcome, err := gw.Process(ctx, content, "")
		if err != nil {
			return fmt.Errorf("growth iteration %d failed: %w", i, err)
		}

		if outcome.Text == "" {
			logging.CognitionWarn("GrowNarrative: empty response on iteration %d/%d, body kept", i, iterations)
			continue
		}

		// Replacement, not append: the instruction asks for the evolved whole.
		n.Body = outcome.Text
		logging.Cognition("GrowNarrative: iteration %d/%d title=%q body_len=%d",
			i, iterations, n.Title, len(n.Body))
	}

	return nil
}

// rawHypothesis mirrors the JSON shape the extraction instruction demands.
// Pointer fields distinguish absent keys from empty values.
type rawHypothesis struct {
	Topic *struct {
		Title    string   `json:"title"`
		Synopsis string   `json:"synopsis"`
		Tags     []string `json:"tags"`
	} `json:"topic"`
	Thesis    string   `json:"thesis"`
	Storyline []string `json:"storyline"`
	Tags      []string `json:"tags"`
}

// FormulateHypothesis derives a structured hypothesis from n. The call is
// forced onto the structured-output model regardless of the configured
// thought speed. Markdown code fences are stripped before parsing; every
// target field has an enumerated default, but a malformed JSON body itself
// propagates as a parse error.
func (m *Mind) FormulateHypothesis(ctx context.Context, n *types.Narrative) (*types.Hypothesis, error) {
	if n == nil {
		return nil, fmt.Errorf("cannot formulate a hypothesis from a nil narrative")
	}

	m.shape.SystemInstruction = hypothesisInstruction
	gw := m.gw.WithOperation("hypothesize")

	metaName := ""
	if m.metaGoal != nil {
		metaName = m.metaGoal.Name
	}
	content := prompt.WithGoals(prompt.Metadata(n), metaName, m.activeGoals())

	outcome, err := gw.Process(ctx, content, gateway.SpeedPro)
	if err != nil {
		return nil, fmt.Errorf("hypothesis call failed: %w", err)
	}

	cleaned := StripFences(outcome.Text)

	var raw rawHypothesis
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		logging.CognitionWarn("FormulateHypothesis: unparseable response (%d bytes): %v", len(cleaned), err)
		return nil, fmt.Errorf("failed to parse hypothesis JSON: %w", err)
	}

	topic := types.NewTopic(n.Title, n.Synopsis, n.Tags)
	if raw.Topic != nil {
		topic = types.NewTopic(raw.Topic.Title, raw.Topic.Synopsis, raw.Topic.Tags)
	}

	h := types.NewHypothesis(topic, raw.Thesis, raw.Storyline, raw.Tags)
	logging.Cognition("FormulateHypothesis: title=%q thesis_len=%d storyline_steps=%d",
		topic.Title, len(h.Thesis), len(h.Storyline.Body))
	return h, nil
}

// StripFences removes a Markdown code-fence wrapper from a model response.
// Structured-output models wrap JSON in fences despite instructions not to.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
