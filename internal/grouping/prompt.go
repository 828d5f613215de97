package grouping

import (
	"fmt"
	"strings"
)

const planSystemPrompt = `You are a copywriting assistant that organizes SEO keyword phrases into coherent groups for product content. Respond with JSON only, no prose and no markdown fences.`

// BuildPrompt renders the system and user prompts for a plan request.
func BuildPrompt(req PlanRequest) (system, user string) {
	var b strings.Builder

	b.WriteString("Organize the keyword phrases below into groups")
	switch req.Config.Basis {
	case "attribute":
		if req.Config.AttributeName != "" {
			fmt.Fprintf(&b, " by the product attribute %q", req.Config.AttributeName)
		} else {
			b.WriteString(" by their dominant product attribute")
		}
	case "theme":
		b.WriteString(" by shared theme or intent")
	default:
		b.WriteString(" by whatever structure best fits the phrases")
	}
	b.WriteString(".\n\n")

	if req.Context.ClientName != "" {
		fmt.Fprintf(&b, "Client: %s\n", req.Context.ClientName)
	}
	if req.Context.Category != "" {
		fmt.Fprintf(&b, "Product category: %s\n", req.Context.Category)
	}
	if req.Context.PoolType != "" {
		fmt.Fprintf(&b, "These phrases are for %s copy.\n", req.Context.PoolType)
	}
	b.WriteString("\n")

	if req.Config.GroupCount > 0 {
		fmt.Fprintf(&b, "Produce exactly %d groups.\n", req.Config.GroupCount)
	}
	if req.Config.PhrasesPerGroup > 0 {
		fmt.Fprintf(&b, "Aim for about %d phrases per group.\n", req.Config.PhrasesPerGroup)
	}

	b.WriteString(`
Rules:
- Use every phrase at most once; do not invent phrases that are not in the list.
- Give each group a short, specific label.
- Return JSON of the shape {"groups":[{"groupIndex":0,"label":"...","phrases":["..."]}]} with groupIndex starting at 0.

Keyword phrases:
`)
	for _, kw := range req.Keywords {
		b.WriteString("- ")
		b.WriteString(kw)
		b.WriteString("\n")
	}

	return planSystemPrompt, b.String()
}
