package prompt

import (
	"strings"
	"testing"

	"muse/internal/types"
)

func TestGoalFallbacks(t *testing.T) {
	if got := Goal(nil); got != "No goal has been set." {
		t.Fatalf("nil goal: got %q", got)
	}

	got := Goal(&types.Goal{Name: "ship"})
	if !strings.Contains(got, "ship") {
		t.Fatalf("expected goal name, got %q", got)
	}
	if !strings.Contains(got, "No description provided.") {
		t.Fatalf("expected description fallback, got %q", got)
	}
}

func TestMetadataComplete(t *testing.T) {
	n := types.NewNarrative("Tides", "Cities that move", []string{"sea", "city"}, "The body.")
	got := Metadata(n)

	for _, want := range []string{"Title: Tides", "Synopsis: Cities that move", "Tags: sea, city", "The body."} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestMetadataTotalOnEmptyRecord(t *testing.T) {
	got := Metadata(&types.Narrative{Title: "Bare"})

	if !strings.Contains(got, "Synopsis: No synopsis provided.") {
		t.Errorf("expected synopsis fallback, got:\n%s", got)
	}
	if !strings.Contains(got, "No body yet.") {
		t.Errorf("expected body fallback, got:\n%s", got)
	}
	if !strings.Contains(got, "Tags: \n") {
		t.Errorf("expected empty tag rendering, got:\n%s", got)
	}
}

func TestTags(t *testing.T) {
	tests := []struct {
		tags []string
		want string
	}{
		{nil, ""},
		{[]string{}, ""},
		{[]string{"one"}, "one"},
		{[]string{"one", "two"}, "one, two"},
	}
	for _, tt := range tests {
		if got := Tags(tt.tags); got != tt.want {
			t.Errorf("Tags(%v) = %q, want %q", tt.tags, got, tt.want)
		}
	}
}

func TestAbstractStateTotal(t *testing.T) {
	got := AbstractState(nil, nil, nil)
	if !strings.Contains(got, "No goal has been set.") {
		t.Errorf("expected goal fallback, got:\n%s", got)
	}
	if !strings.Contains(got, "No plan has been formed.") {
		t.Errorf("expected plan fallback, got:\n%s", got)
	}
}

func TestAbstractStateFull(t *testing.T) {
	a := &types.Abstract{Statement: "understand tides"}
	g := &types.Goal{Name: "survey", Description: "walk the coast"}
	p := &types.Plan{Goal: "survey", Steps: []string{"map", "measure"}}

	got := AbstractState(a, g, p)
	for _, want := range []string{"Intent: understand tides", "Goal: survey", "1. map", "2. measure"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestWithGoalsFraming(t *testing.T) {
	goals := []*types.Goal{
		{Name: "active one", Active: true},
		{Name: "dormant", Active: false},
		nil,
	}
	got := WithGoals("DATA", "the meta goal", goals)

	if !strings.HasPrefix(got, "You are working toward: the meta goal, currently pursuing: active one.\n\n") {
		t.Fatalf("unexpected framing:\n%s", got)
	}
	if !strings.HasSuffix(got, "DATA") {
		t.Fatalf("data block must follow the framing:\n%s", got)
	}
	if strings.Contains(got, "dormant") {
		t.Fatal("inactive goals must not be rendered")
	}
}

func TestWithGoalsEmpty(t *testing.T) {
	got := WithGoals("DATA", "", nil)
	if !strings.HasPrefix(got, "You are working toward: No goal has been set..") {
		// meta-goal fallback plus the closing period
		t.Fatalf("unexpected framing:\n%s", got)
	}
}
