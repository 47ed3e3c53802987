// Package prompt renders typed records into prompt text. Every function is
// pure and total: optional fields have literal fallbacks, so synthesis never
// fails on a partially populated record.
package prompt

import (
	"fmt"
	"strings"

	"muse/internal/types"
)

const (
	noDescription = "No description provided."
	noSynopsis    = "No synopsis provided."
	noBody        = "No body yet."
	noGoal        = "No goal has been set."
	noPlan        = "No plan has been formed."
)

// Goal renders a bare goal.
func Goal(g *types.Goal) string {
	if g == nil {
		return noGoal
	}
	desc := g.Description
	if desc == "" {
		desc = noDescription
	}
	return fmt.Sprintf("Goal: %s\n%s", g.Name, desc)
}

// Metadata renders the title/synopsis/tags envelope of a narrative together
// with its body.
func Metadata(n *types.Narrative) string {
	var b strings.Builder

	b.WriteString("Title: ")
	b.WriteString(n.Title)
	b.WriteString("\n")

	synopsis := n.Synopsis
	if synopsis == "" {
		synopsis = noSynopsis
	}
	b.WriteString("Synopsis: ")
	b.WriteString(synopsis)
	b.WriteString("\n")

	b.WriteString("Tags: ")
	b.WriteString(Tags(n.Tags))
	b.WriteString("\n\n")

	body := n.Body
	if body == "" {
		body = noBody
	}
	b.WriteString(body)

	return b.String()
}

// Tags renders a tag list; an empty or nil list renders as an empty string.
func Tags(tags []string) string {
	return strings.Join(tags, ", ")
}

// AbstractState renders the abstract -> goal -> plan chain.
func AbstractState(a *types.Abstract, g *types.Goal, p *types.Plan) string {
	var b strings.Builder

	if a != nil && a.Statement != "" {
		b.WriteString("Intent: ")
		b.WriteString(a.Statement)
		b.WriteString("\n")
	}

	b.WriteString(Goal(g))
	b.WriteString("\n")

	if p == nil || len(p.Steps) == 0 {
		b.WriteString(noPlan)
	} else {
		b.WriteString("Plan:\n")
		for i, step := range p.Steps {
			b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, step))
		}
	}

	return b.String()
}

// WithGoals renders data inside a framing sentence built from the meta-goal
// and the active goal list. This is how every sub-task prompt stays anchored
// to the top-level objective.
func WithGoals(data string, metaGoal string, goals []*types.Goal) string {
	var b strings.Builder

	if metaGoal == "" {
		metaGoal = noGoal
	}

	active := make([]string, 0, len(goals))
	for _, g := range goals {
		if g != nil && g.Active {
			active = append(active, g.Name)
		}
	}

	b.WriteString("You are working toward: ")
	b.WriteString(metaGoal)
	if len(active) > 0 {
		b.WriteString(", currently pursuing: ")
		b.WriteString(strings.Join(active, ", "))
	}
	b.WriteString(".\n\n")
	b.WriteString(data)

	return b.String()
}
