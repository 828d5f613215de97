package grouping

import (
	"sort"
	"strings"

	"github.com/brightline/composer/internal/model"
)

// ApplyOverrides projects the override log onto the persisted groups
// and returns the effective view. Persisted rows are never mutated;
// overrides apply in creation order.
//
// Semantics per action:
//   - remove: the phrase disappears from whichever group holds it.
//   - move: the phrase leaves its current group and lands at the end of
//     the group with TargetGroupIndex; if no such group exists, an
//     effective group is created at that index with TargetGroupLabel.
//   - add: the phrase is appended to the target group (created the same
//     way) unless already present somewhere.
func ApplyOverrides(groups []model.KeywordGroup, overrides []model.GroupOverride) []model.KeywordGroup {
	effective := make([]model.KeywordGroup, len(groups))
	for i, g := range groups {
		effective[i] = g
		effective[i].Phrases = append([]string(nil), g.Phrases...)
	}

	for _, ov := range overrides {
		switch ov.Action {
		case model.OverrideRemove:
			removePhrase(effective, ov.Phrase)
		case model.OverrideMove:
			if ov.TargetGroupIndex == nil {
				continue
			}
			removePhrase(effective, ov.Phrase)
			effective = addPhrase(effective, *ov.TargetGroupIndex, ov.TargetGroupLabel, ov.Phrase)
		case model.OverrideAdd:
			if ov.TargetGroupIndex == nil || containsPhrase(effective, ov.Phrase) {
				continue
			}
			effective = addPhrase(effective, *ov.TargetGroupIndex, ov.TargetGroupLabel, ov.Phrase)
		}
	}

	sort.SliceStable(effective, func(i, j int) bool {
		return effective[i].GroupIndex < effective[j].GroupIndex
	})
	return effective
}

func removePhrase(groups []model.KeywordGroup, phrase string) {
	for i := range groups {
		for j, p := range groups[i].Phrases {
			if strings.EqualFold(p, phrase) {
				groups[i].Phrases = append(groups[i].Phrases[:j], groups[i].Phrases[j+1:]...)
				return
			}
		}
	}
}

func containsPhrase(groups []model.KeywordGroup, phrase string) bool {
	for i := range groups {
		for _, p := range groups[i].Phrases {
			if strings.EqualFold(p, phrase) {
				return true
			}
		}
	}
	return false
}

func addPhrase(groups []model.KeywordGroup, targetIndex int, targetLabel, phrase string) []model.KeywordGroup {
	for i := range groups {
		if groups[i].GroupIndex == targetIndex {
			groups[i].Phrases = append(groups[i].Phrases, phrase)
			return groups
		}
	}
	return append(groups, model.KeywordGroup{
		GroupIndex: targetIndex,
		Label:      targetLabel,
		Phrases:    []string{phrase},
	})
}
