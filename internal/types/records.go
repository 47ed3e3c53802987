// Package types holds the shared data model for muse: the growable records
// the cognition layer produces (narratives, hypotheses, topics) and the goal
// chain (abstract -> goal -> plan) that anchors prompt synthesis.
package types

import "time"

// Review is reader feedback attached to a persisted record.
type Review struct {
	Reviewer string    `json:"reviewer"`
	Verdict  string    `json:"verdict"`
	Notes    string    `json:"notes,omitempty"`
	Created  time.Time `json:"created_at"`
}

// Narrative is a growable text record. The body is replaced wholesale on each
// growth iteration; title, synopsis, and tags stay fixed once set.
type Narrative struct {
	Title     string   `json:"title"`
	Synopsis  string   `json:"synopsis"`
	Tags      []string `json:"tags"`
	Body      string   `json:"body"`
	Timestamp int64    `json:"timestamp"`
	Reviews   []Review `json:"reviews"`
}

// Topic names a subject area a hypothesis is anchored to.
type Topic struct {
	Title     string   `json:"title"`
	Synopsis  string   `json:"synopsis"`
	Tags      []string `json:"tags"`
	Timestamp int64    `json:"timestamp"`
	Reviews   []Review `json:"reviews"`
}

// Storyline is the ordered argument of a hypothesis.
type Storyline struct {
	Body []string `json:"body"`
}

// Hypothesis is a structured record derived from a narrative via forced-JSON
// extraction: a topic, a thesis statement, and the storyline backing it.
type Hypothesis struct {
	Topic     Topic     `json:"topic"`
	Thesis    string    `json:"thesis"`
	Storyline Storyline `json:"storyline"`
	Tags      []string  `json:"tags"`
	Timestamp int64     `json:"timestamp"`
	Reviews   []Review  `json:"reviews"`
}

// Abstract is the highest-level statement of intent for an agent.
type Abstract struct {
	Statement string `json:"statement"`
}

// Goal is a concrete objective derived from an abstract.
type Goal struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Active      bool     `json:"active"`
	Tags        []string `json:"tags"`
}

// Plan is an ordered list of steps toward the current goal.
type Plan struct {
	Goal  string   `json:"goal"`
	Steps []string `json:"steps"`
}

// NewNarrative builds a narrative with every field populated. Nil tag and
// review slices become empty slices so serialization never emits null.
func NewNarrative(title, synopsis string, tags []string, body string) *Narrative {
	return &Narrative{
		Title:     title,
		Synopsis:  synopsis,
		Tags:      ensureTags(tags),
		Body:      body,
		Timestamp: time.Now().Unix(),
		Reviews:   []Review{},
	}
}

// NewTopic builds a topic with enumerated defaults for absent fields.
func NewTopic(title, synopsis string, tags []string) Topic {
	return Topic{
		Title:     title,
		Synopsis:  synopsis,
		Tags:      ensureTags(tags),
		Timestamp: time.Now().Unix(),
		Reviews:   []Review{},
	}
}

// NewHypothesis builds a hypothesis with enumerated defaults: no field is
// ever left implicit, so partially populated provider output maps cleanly.
func NewHypothesis(topic Topic, thesis string, storyline []string, tags []string) *Hypothesis {
	if storyline == nil {
		storyline = []string{}
	}
	return &Hypothesis{
		Topic:     topic,
		Thesis:    thesis,
		Storyline: Storyline{Body: storyline},
		Tags:      ensureTags(tags),
		Timestamp: time.Now().Unix(),
		Reviews:   []Review{},
	}
}

func ensureTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
