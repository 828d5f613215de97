// Package model defines the keyword lifecycle entities shared by the
// ingestion, cleaning, and grouping components.
package model

import "time"

// PoolType distinguishes the keyword pools kept per project.
type PoolType string

const (
	PoolTypeBody   PoolType = "body"
	PoolTypeTitles PoolType = "titles"
)

// Valid reports whether the pool type is known.
func (t PoolType) Valid() bool {
	return t == PoolTypeBody || t == PoolTypeTitles
}

// RemovalReason classifies why the cleaning engine rejected a keyword.
type RemovalReason string

const (
	RemovalBlank      RemovalReason = "blank"
	RemovalDuplicate  RemovalReason = "duplicate"
	RemovalStopword   RemovalReason = "stopword"
	RemovalBrand      RemovalReason = "brand"
	RemovalCompetitor RemovalReason = "competitor"
	RemovalColor      RemovalReason = "color"
	RemovalSize       RemovalReason = "size"
)

// RemovedKeyword is one rejected term with the rule that rejected it.
type RemovedKeyword struct {
	Term   string        `json:"term"`
	Reason RemovalReason `json:"reason"`
}

// CleanSettings are the filter toggles applied by the cleaning engine.
// The snapshot stored on the pool records the toggles last applied.
type CleanSettings struct {
	RemoveColors          bool `json:"removeColors"`
	RemoveSizes           bool `json:"removeSizes"`
	RemoveBrandTerms      bool `json:"removeBrandTerms"`
	RemoveCompetitorTerms bool `json:"removeCompetitorTerms"`
}

// GroupingConfig is the basis/params snapshot of the last grouping run.
type GroupingConfig struct {
	Basis           string `json:"basis"`
	AttributeName   string `json:"attributeName,omitempty"`
	GroupCount      int    `json:"groupCount,omitempty"`
	PhrasesPerGroup int    `json:"phrasesPerGroup,omitempty"`
}

// ProjectContext carries the project fields the cleaning and grouping
// steps need: the client's name (brand filtering), category, and the
// "what not to say" competitor list.
type ProjectContext struct {
	ClientName   string   `json:"clientName"`
	Category     string   `json:"category,omitempty"`
	WhatNotToSay []string `json:"whatNotToSay,omitempty"`
}

// Variant is one product variant; its attribute map supplies the
// color/size vocabularies the cleaning engine derives its filters from.
type Variant struct {
	Attributes map[string]string `json:"attributes"`
}

// KeywordPool is the persistent container for one batch of keywords,
// scoped to a project, pool type, and optional sub-group.
type KeywordPool struct {
	ID             string   `json:"id"`
	OrganizationID string   `json:"organizationId"`
	ProjectID      string   `json:"projectId"`
	PoolType       PoolType `json:"poolType"`
	GroupID        *string  `json:"groupId,omitempty"`

	RawKeywords     []string         `json:"rawKeywords"`
	CleanedKeywords []string         `json:"cleanedKeywords"`
	RemovedKeywords []RemovedKeyword `json:"removedKeywords"`

	CleanSettings  *CleanSettings  `json:"cleanSettings,omitempty"`
	GroupingConfig *GroupingConfig `json:"groupingConfig,omitempty"`

	Status     PoolStatus `json:"status"`
	CleanedAt  *time.Time `json:"cleanedAt,omitempty"`
	GroupedAt  *time.Time `json:"groupedAt,omitempty"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ClearContent empties the pool's keyword content while preserving the
// row identity, returning it to the initial lifecycle stage.
func (p *KeywordPool) ClearContent() {
	p.RawKeywords = nil
	p.CleanedKeywords = nil
	p.RemovedKeywords = nil
	p.CleanSettings = nil
	p.GroupingConfig = nil
	p.Status = PoolStatusUploaded
	p.CleanedAt = nil
	p.GroupedAt = nil
	p.ApprovedAt = nil
}
