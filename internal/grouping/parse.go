package grouping

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

type planPayload struct {
	Groups []PlannedGroup `json:"groups"`
}

// ParsePlanResponse parses the model's JSON plan and normalizes it:
// code fences are stripped, group indexes are reassigned sequentially,
// phrases not present in the input keyword set are dropped, and groups
// left empty after filtering are discarded.
func ParsePlanResponse(raw string, keywords []string) ([]PlannedGroup, error) {
	cleaned := stripFences(raw)

	var payload planPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, eris.Wrap(err, "grouping: parse plan response")
	}
	if len(payload.Groups) == 0 {
		return nil, eris.New("grouping: plan response contains no groups")
	}

	known := make(map[string]string, len(keywords))
	for _, kw := range keywords {
		known[strings.ToLower(strings.TrimSpace(kw))] = kw
	}

	var groups []PlannedGroup
	for _, g := range payload.Groups {
		var phrases []string
		seen := make(map[string]bool, len(g.Phrases))
		for _, p := range g.Phrases {
			key := strings.ToLower(strings.TrimSpace(p))
			original, ok := known[key]
			if !ok || seen[key] {
				continue
			}
			seen[key] = true
			phrases = append(phrases, original)
		}
		if len(phrases) == 0 {
			continue
		}
		groups = append(groups, PlannedGroup{
			GroupIndex: len(groups),
			Label:      strings.TrimSpace(g.Label),
			Phrases:    phrases,
			Metadata:   g.Metadata,
		})
	}
	if len(groups) == 0 {
		return nil, eris.New("grouping: no plan group references the supplied keywords")
	}
	return groups, nil
}

// stripFences removes a wrapping markdown code fence, which some model
// responses add despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
