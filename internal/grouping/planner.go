package grouping

import (
	"context"
	"time"

	"github.com/brightline/composer/internal/apperr"
	"github.com/brightline/composer/internal/model"
	"github.com/brightline/composer/internal/store"
	"github.com/brightline/composer/internal/usage"
)

// Planner runs the grouping lifecycle against the store: precondition
// guards, the generation call, exactly-once usage logging, and the
// atomic group swap.
type Planner struct {
	store  store.Store
	gen    Generator
	ledger *usage.Ledger
}

func NewPlanner(st store.Store, gen Generator, ledger *usage.Ledger) *Planner {
	return &Planner{store: st, gen: gen, ledger: ledger}
}

// OverrideRequest carries one manual correction to record.
type OverrideRequest struct {
	Phrase           string               `json:"phrase"`
	Action           model.OverrideAction `json:"action"`
	TargetGroupIndex *int                 `json:"targetGroupIndex,omitempty"`
	TargetGroupLabel string               `json:"targetGroupLabel,omitempty"`
	SourceGroupID    *string              `json:"sourceGroupId,omitempty"`
}

// GroupsView is the read model for a pool's grouping: the persisted
// groups, the override log, and the overlay of the two.
type GroupsView struct {
	Groups    []model.KeywordGroup  `json:"groups"`
	Overrides []model.GroupOverride `json:"overrides"`
	Effective []model.KeywordGroup  `json:"effectiveGroups"`
}

// GeneratePlan generates and persists a grouping plan for the pool.
//
// Exactly one usage event is recorded per invocation, written as soon
// as the generation call resolves so a later persistence failure cannot
// lose the cost data. On any failure the pool keeps its pre-call
// status, leaving the operation retryable.
func (p *Planner) GeneratePlan(ctx context.Context, orgID, poolID string, cfg model.GroupingConfig, pctx model.ProjectContext) (*model.KeywordPool, []model.KeywordGroup, error) {
	pool, err := p.store.GetPool(ctx, orgID, poolID)
	if err != nil {
		return nil, nil, apperr.Persistence(err, "load pool %s", poolID)
	}
	if pool == nil {
		return nil, nil, apperr.NotFound("pool_not_found", "pool %s not found", poolID)
	}
	if pool.Status != model.PoolStatusCleaned {
		return nil, nil, apperr.Validation("invalid_pool_status",
			"pool status is %q, grouping requires %q", pool.Status, model.PoolStatusCleaned)
	}
	if len(pool.CleanedKeywords) == 0 {
		return nil, nil, apperr.Validation("empty_keyword_pool", "pool %s has no cleaned keywords to group", poolID)
	}

	start := time.Now()
	res, genErr := p.gen.GeneratePlan(ctx, PlanRequest{
		Keywords: pool.CleanedKeywords,
		Config:   cfg,
		Context: PlanContext{
			ClientName: pctx.ClientName,
			Category:   pctx.Category,
			PoolType:   pool.PoolType,
		},
	})
	elapsed := time.Since(start)

	if genErr != nil {
		p.ledger.Record(ctx, usage.Entry{
			OrganizationID: orgID,
			ProjectID:      pool.ProjectID,
			Action:         model.UsageActionGrouping,
			Model:          p.gen.Model(),
			Duration:       elapsed,
			Meta: map[string]any{
				"pool_id":       pool.ID,
				"keyword_count": len(pool.CleanedKeywords),
				"error":         genErr.Error(),
			},
		})
		return nil, nil, apperr.Upstream("generation_failed", genErr, "grouping plan generation failed")
	}

	p.ledger.Record(ctx, usage.Entry{
		OrganizationID: orgID,
		ProjectID:      pool.ProjectID,
		Action:         model.UsageActionGrouping,
		Model:          res.Usage.Model,
		TokensIn:       res.Usage.TokensIn,
		TokensOut:      res.Usage.TokensOut,
		Duration:       elapsed,
		Meta: map[string]any{
			"pool_id":       pool.ID,
			"keyword_count": len(pool.CleanedKeywords),
			"group_count":   len(res.Groups),
		},
	})

	groups := make([]model.KeywordGroup, len(res.Groups))
	for i, g := range res.Groups {
		groups[i] = model.KeywordGroup{
			OrganizationID: orgID,
			KeywordPoolID:  pool.ID,
			GroupIndex:     g.GroupIndex,
			Label:          g.Label,
			Phrases:        g.Phrases,
			Metadata:       g.Metadata,
		}
	}

	if err := model.ValidateTransition(pool.Status, model.PoolStatusGrouped); err != nil {
		return nil, nil, apperr.Validation("invalid_pool_status", "%v", err)
	}
	now := time.Now().UTC()
	pool.Status = model.PoolStatusGrouped
	pool.GroupingConfig = &cfg
	pool.GroupedAt = &now

	if err := p.store.ReplaceGroups(ctx, pool, groups); err != nil {
		return nil, nil, apperr.Persistence(err, "persist grouping plan for pool %s", poolID)
	}
	pool.ApprovedAt = nil
	return pool, groups, nil
}

// AddOverride records a manual correction. Approval on the pool is
// revoked by the store in the same transaction as the insert.
func (p *Planner) AddOverride(ctx context.Context, orgID, poolID string, req OverrideRequest) (*model.GroupOverride, error) {
	if req.Phrase == "" {
		return nil, apperr.Validation("missing_phrase", "override requires a phrase")
	}
	if !req.Action.Valid() {
		return nil, apperr.Validation("invalid_action", "unknown override action %q", req.Action)
	}
	if (req.Action == model.OverrideMove || req.Action == model.OverrideAdd) && req.TargetGroupIndex == nil {
		return nil, apperr.Validation("missing_target_group", "%s override requires targetGroupIndex", req.Action)
	}

	pool, err := p.store.GetPool(ctx, orgID, poolID)
	if err != nil {
		return nil, apperr.Persistence(err, "load pool %s", poolID)
	}
	if pool == nil {
		return nil, apperr.NotFound("pool_not_found", "pool %s not found", poolID)
	}

	ov := &model.GroupOverride{
		OrganizationID:   orgID,
		KeywordPoolID:    pool.ID,
		Phrase:           req.Phrase,
		Action:           req.Action,
		TargetGroupIndex: req.TargetGroupIndex,
		TargetGroupLabel: req.TargetGroupLabel,
		SourceGroupID:    req.SourceGroupID,
	}
	if err := p.store.InsertOverride(ctx, ov); err != nil {
		return nil, apperr.Persistence(err, "record override for pool %s", poolID)
	}
	return ov, nil
}

// ResetOverrides deletes the pool's override log. Groups and approval
// state are untouched.
func (p *Planner) ResetOverrides(ctx context.Context, orgID, poolID string) (int, error) {
	pool, err := p.store.GetPool(ctx, orgID, poolID)
	if err != nil {
		return 0, apperr.Persistence(err, "load pool %s", poolID)
	}
	if pool == nil {
		return 0, apperr.NotFound("pool_not_found", "pool %s not found", poolID)
	}
	n, err := p.store.DeleteOverrides(ctx, orgID, poolID)
	if err != nil {
		return 0, apperr.Persistence(err, "reset overrides for pool %s", poolID)
	}
	return n, nil
}

// Groups returns the pool's persisted groups, override log, and the
// effective overlay of the two.
func (p *Planner) Groups(ctx context.Context, orgID, poolID string) (*GroupsView, error) {
	pool, err := p.store.GetPool(ctx, orgID, poolID)
	if err != nil {
		return nil, apperr.Persistence(err, "load pool %s", poolID)
	}
	if pool == nil {
		return nil, apperr.NotFound("pool_not_found", "pool %s not found", poolID)
	}

	groups, err := p.store.ListGroups(ctx, orgID, poolID)
	if err != nil {
		return nil, apperr.Persistence(err, "list groups for pool %s", poolID)
	}
	overrides, err := p.store.ListOverrides(ctx, orgID, poolID)
	if err != nil {
		return nil, apperr.Persistence(err, "list overrides for pool %s", poolID)
	}
	return &GroupsView{
		Groups:    groups,
		Overrides: overrides,
		Effective: ApplyOverrides(groups, overrides),
	}, nil
}
