package grouping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightline/composer/internal/model"
)

func baseGroups() []model.KeywordGroup {
	return []model.KeywordGroup{
		{ID: "g1", GroupIndex: 0, Label: "Blue Mugs", Phrases: []string{"blue mug", "navy mug"}},
		{ID: "g2", GroupIndex: 1, Label: "Red Mugs", Phrases: []string{"red mug"}},
	}
}

func intPtr(i int) *int { return &i }

func TestApplyOverridesRemove(t *testing.T) {
	groups := baseGroups()
	effective := ApplyOverrides(groups, []model.GroupOverride{
		{Phrase: "navy mug", Action: model.OverrideRemove},
	})

	require.Len(t, effective, 2)
	assert.Equal(t, []string{"blue mug"}, effective[0].Phrases)
	// Persisted rows stay untouched.
	assert.Equal(t, []string{"blue mug", "navy mug"}, groups[0].Phrases)
}

func TestApplyOverridesMove(t *testing.T) {
	effective := ApplyOverrides(baseGroups(), []model.GroupOverride{
		{Phrase: "navy mug", Action: model.OverrideMove, TargetGroupIndex: intPtr(1)},
	})

	require.Len(t, effective, 2)
	assert.Equal(t, []string{"blue mug"}, effective[0].Phrases)
	assert.Equal(t, []string{"red mug", "navy mug"}, effective[1].Phrases)
}

func TestApplyOverridesMoveToNewGroup(t *testing.T) {
	effective := ApplyOverrides(baseGroups(), []model.GroupOverride{
		{Phrase: "red mug", Action: model.OverrideMove, TargetGroupIndex: intPtr(2), TargetGroupLabel: "Overflow"},
	})

	require.Len(t, effective, 3)
	assert.Empty(t, effective[1].Phrases)
	assert.Equal(t, 2, effective[2].GroupIndex)
	assert.Equal(t, "Overflow", effective[2].Label)
	assert.Equal(t, []string{"red mug"}, effective[2].Phrases)
}

func TestApplyOverridesAdd(t *testing.T) {
	effective := ApplyOverrides(baseGroups(), []model.GroupOverride{
		{Phrase: "mug gift set", Action: model.OverrideAdd, TargetGroupIndex: intPtr(1)},
	})

	assert.Equal(t, []string{"red mug", "mug gift set"}, effective[1].Phrases)
}

func TestApplyOverridesAddSkipsExistingPhrase(t *testing.T) {
	effective := ApplyOverrides(baseGroups(), []model.GroupOverride{
		{Phrase: "Blue Mug", Action: model.OverrideAdd, TargetGroupIndex: intPtr(1)},
	})

	assert.Equal(t, []string{"red mug"}, effective[1].Phrases)
}

func TestApplyOverridesAppliesInOrder(t *testing.T) {
	effective := ApplyOverrides(baseGroups(), []model.GroupOverride{
		{Phrase: "navy mug", Action: model.OverrideMove, TargetGroupIndex: intPtr(1)},
		{Phrase: "navy mug", Action: model.OverrideRemove},
	})

	assert.Equal(t, []string{"blue mug"}, effective[0].Phrases)
	assert.Equal(t, []string{"red mug"}, effective[1].Phrases)
}

func TestApplyOverridesIgnoresMalformed(t *testing.T) {
	effective := ApplyOverrides(baseGroups(), []model.GroupOverride{
		{Phrase: "blue mug", Action: model.OverrideMove},                           // move without target
		{Phrase: "mug gift set", Action: model.OverrideAdd},                        // add without target
		{Phrase: "not anywhere", Action: model.OverrideRemove},                     // unknown phrase
		{Phrase: "blue mug", Action: model.OverrideAction("promote"), TargetGroupIndex: intPtr(0)}, // unknown action
	})

	assert.Equal(t, baseGroups(), effective)
}

func TestApplyOverridesEmptyInputs(t *testing.T) {
	assert.Empty(t, ApplyOverrides(nil, nil))
	assert.Equal(t, baseGroups(), ApplyOverrides(baseGroups(), nil))
}
