package embedding

import "testing"

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{Model: DefaultModel}); err == nil {
		t.Fatal("expected an error without an API key")
	}
}

func TestTaskTypeResolution(t *testing.T) {
	if _, ok := taskTypes["SEMANTIC_SIMILARITY"]; !ok {
		t.Fatal("semantic similarity must be a known task type")
	}
	if _, ok := taskTypes["NOT_A_TASK"]; ok {
		t.Fatal("unknown task types must fall back, not resolve")
	}
}
