package agent

import (
	"context"
	"path/filepath"
	"testing"

	"muse/internal/archive"
	"muse/internal/cognition"
	"muse/internal/gateway"
	"muse/internal/types"
)

type cannedModel struct {
	text string
}

func (c *cannedModel) GenerateContent(ctx context.Context, req *gateway.CallRequest) (*gateway.CallOutcome, error) {
	return &gateway.CallOutcome{Text: c.text}, nil
}

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return []float32{0.1, 0.2}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func newTestAgent(t *testing.T, text string) (*Agent, *archive.Archive) {
	t.Helper()
	root := t.TempDir()
	arch, err := archive.New(filepath.Join(root, "archive"), filepath.Join(root, "index.db"))
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	t.Cleanup(func() { arch.Close() })

	shape := &gateway.CognitiveConfig{}
	mind := cognition.NewMind(gateway.New(&cannedModel{text: text}, shape), shape)
	return New("tester", mind, arch, &fakeEmbedder{}), arch
}

func TestGrowPersistsNarrative(t *testing.T) {
	a, arch := newTestAgent(t, "grown body")

	n := types.NewNarrative("Grown", "s", nil, "seed")
	if err := a.Grow(context.Background(), n, 1); err != nil {
		t.Fatalf("grow failed: %v", err)
	}
	if n.Body != "grown body" {
		t.Fatalf("unexpected body: %q", n.Body)
	}

	e, err := arch.Lookup(archive.KindNarrative, "Grown")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if e == nil {
		t.Fatal("expected the grown narrative to be archived")
	}

	var back types.Narrative
	if err := arch.Read(e.Path, &back); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if back.Body != "grown body" {
		t.Fatalf("archived body mismatch: %q", back.Body)
	}
}

func TestHypothesizePersists(t *testing.T) {
	a, arch := newTestAgent(t, `{"topic": {"title": "T"}, "thesis": "th", "storyline": ["s1"]}`)

	n := types.NewNarrative("Source", "s", nil, "body")
	h, err := a.Hypothesize(context.Background(), n)
	if err != nil {
		t.Fatalf("hypothesize failed: %v", err)
	}
	if h.Thesis != "th" {
		t.Fatalf("unexpected thesis: %q", h.Thesis)
	}

	e, err := arch.Lookup(archive.KindHypothesis, "T")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if e == nil {
		t.Fatal("expected the hypothesis to be archived")
	}
}

func TestEmbed(t *testing.T) {
	a, _ := newTestAgent(t, "x")

	vec, err := a.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if len(vec) != 2 {
		t.Fatalf("unexpected vector: %v", vec)
	}
}

func TestEmbedWithoutEngine(t *testing.T) {
	shape := &gateway.CognitiveConfig{}
	mind := cognition.NewMind(gateway.New(&cannedModel{}, shape), shape)
	a := New("bare", mind, nil, nil)

	if _, err := a.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected an error without an embedding engine")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if r.Len() != 0 {
		t.Fatalf("new registry should be empty, got %d", r.Len())
	}

	a, _ := newTestAgent(t, "x")
	b, _ := newTestAgent(t, "y")
	r.Add(a)
	r.Add(b)

	if r.Len() != 2 {
		t.Fatalf("expected 2 agents, got %d", r.Len())
	}
	if got := r.Get(a.ID); got != a {
		t.Fatal("lookup by ID returned the wrong agent")
	}
	if len(r.List()) != 2 {
		t.Fatal("list should return both agents")
	}

	r.Remove(a.ID)
	if r.Get(a.ID) != nil {
		t.Fatal("removed agent still present")
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 agent after removal, got %d", r.Len())
	}
}
