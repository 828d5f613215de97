package model

import "time"

// KeywordGroup is one labeled partition of a pool's cleaned keywords.
// Groups are created and replaced as a batch; there is no partial-group
// update path.
type KeywordGroup struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organizationId"`
	KeywordPoolID  string         `json:"keywordPoolId"`
	GroupIndex     int            `json:"groupIndex"`
	Label          string         `json:"label"`
	Phrases        []string       `json:"phrases"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// OverrideAction is a manual correction applied on top of a grouping.
type OverrideAction string

const (
	OverrideMove   OverrideAction = "move"
	OverrideRemove OverrideAction = "remove"
	OverrideAdd    OverrideAction = "add"
)

// Valid reports whether the action is known.
func (a OverrideAction) Valid() bool {
	switch a {
	case OverrideMove, OverrideRemove, OverrideAdd:
		return true
	}
	return false
}

// GroupOverride is one entry in the append-only log of manual
// corrections. Overrides never move phrases between persisted group
// rows; the read path overlays them onto the stored groups.
type GroupOverride struct {
	ID               string         `json:"id"`
	OrganizationID   string         `json:"organizationId"`
	KeywordPoolID    string         `json:"keywordPoolId"`
	Phrase           string         `json:"phrase"`
	Action           OverrideAction `json:"action"`
	TargetGroupIndex *int           `json:"targetGroupIndex,omitempty"`
	TargetGroupLabel string         `json:"targetGroupLabel,omitempty"`
	SourceGroupID    *string        `json:"sourceGroupId,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
}
