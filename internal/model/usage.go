package model

import "time"

// UsageActionGrouping is the action recorded for grouping-plan calls.
const UsageActionGrouping = "keyword_grouping"

// UsageEvent is the audit record for one external generation attempt,
// success or failure. Exactly one is written per attempt; it is the sole
// trail for cost attribution.
type UsageEvent struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organizationId"`
	ProjectID      string         `json:"projectId"`
	Action         string         `json:"action"`
	Model          string         `json:"model"`
	TokensIn       int            `json:"tokensIn"`
	TokensOut      int            `json:"tokensOut"`
	TokensTotal    int            `json:"tokensTotal"`
	DurationMs     int64          `json:"durationMs"`
	CostUSD        float64        `json:"costUsd"`
	Meta           map[string]any `json:"meta,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}
