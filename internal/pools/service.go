// Package pools implements the keyword pool lifecycle operations that
// sit between the HTTP surface and the store: upload, clean, approval,
// and content deletion.
package pools

import (
	"context"
	"time"

	"github.com/brightline/composer/internal/apperr"
	"github.com/brightline/composer/internal/keywords"
	"github.com/brightline/composer/internal/model"
	"github.com/brightline/composer/internal/store"
)

// Service runs pool operations against the store.
type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// UploadRequest is one keyword upload. Keywords merge into the pool
// identified by (org, project, poolType, groupID), creating it when
// absent.
type UploadRequest struct {
	OrganizationID string
	ProjectID      string
	PoolType       model.PoolType
	GroupID        *string
	Keywords       []string
}

// UploadResult is the pool after merge plus the advisory count check.
type UploadResult struct {
	Pool       *model.KeywordPool       `json:"pool"`
	Validation keywords.CountValidation `json:"validation"`
}

// Upload merges keywords into the matching pool, lazily creating it.
// The only hard rejection is a merged count above the pool maximum;
// small counts are accepted with an advisory message since pools
// accumulate across uploads. Any accepted upload revokes approval.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if req.ProjectID == "" {
		return nil, apperr.Validation("missing_project", "upload requires a projectId")
	}
	if !req.PoolType.Valid() {
		return nil, apperr.Validation("invalid_pool_type", "unknown pool type %q", req.PoolType)
	}
	incoming := keywords.Dedupe(req.Keywords)
	if len(incoming) == 0 {
		return nil, apperr.Validation("empty_upload", "no keywords in upload")
	}

	pool, err := s.store.FindPool(ctx, req.OrganizationID, req.ProjectID, req.PoolType, req.GroupID)
	if err != nil {
		return nil, apperr.Persistence(err, "find pool")
	}

	var merged []string
	if pool == nil {
		merged = incoming
	} else {
		merged = keywords.Merge(pool.RawKeywords, incoming)
	}
	if len(merged) > keywords.MaxKeywords {
		return nil, apperr.Validation("too_many_keywords",
			"at most %d keywords allowed, pool would hold %d", keywords.MaxKeywords, len(merged))
	}

	if pool == nil {
		pool = &model.KeywordPool{
			OrganizationID: req.OrganizationID,
			ProjectID:      req.ProjectID,
			PoolType:       req.PoolType,
			GroupID:        req.GroupID,
			RawKeywords:    merged,
			Status:         model.PoolStatusUploaded,
		}
		if err := s.store.CreatePool(ctx, pool); err != nil {
			return nil, apperr.Persistence(err, "create pool")
		}
	} else {
		pool.RawKeywords = merged
		pool.ApprovedAt = nil
		if err := s.store.UpdatePool(ctx, pool); err != nil {
			return nil, apperr.Persistence(err, "update pool %s", pool.ID)
		}
	}

	return &UploadResult{Pool: pool, Validation: keywords.ValidateCount(len(merged))}, nil
}

// CleanRequest applies the cleaning engine to a pool's raw keywords.
type CleanRequest struct {
	Settings model.CleanSettings
	Project  model.ProjectContext
	Variants []model.Variant
}

// ApplyClean runs the cleaning engine and moves the pool to cleaned.
// Re-cleaning a cleaned pool is legal; cleaning a grouped pool is not.
func (s *Service) ApplyClean(ctx context.Context, orgID, poolID string, req CleanRequest) (*model.KeywordPool, error) {
	pool, err := s.getPool(ctx, orgID, poolID)
	if err != nil {
		return nil, err
	}
	if err := model.ValidateTransition(pool.Status, model.PoolStatusCleaned); err != nil {
		return nil, apperr.Validation("invalid_pool_status", "%v", err)
	}
	if len(pool.RawKeywords) == 0 {
		return nil, apperr.Validation("empty_keyword_pool", "pool %s has no keywords to clean", poolID)
	}

	result := keywords.Clean(pool.RawKeywords, req.Settings, req.Project, req.Variants)
	if len(result.Cleaned) == 0 {
		return nil, apperr.Validation("all_keywords_removed",
			"cleaning removed all %d keywords; relax the filters", len(pool.RawKeywords))
	}

	now := time.Now().UTC()
	settings := req.Settings
	pool.CleanedKeywords = result.Cleaned
	pool.RemovedKeywords = result.Removed
	pool.CleanSettings = &settings
	pool.Status = model.PoolStatusCleaned
	pool.CleanedAt = &now
	pool.ApprovedAt = nil

	if err := s.store.UpdatePool(ctx, pool); err != nil {
		return nil, apperr.Persistence(err, "update pool %s", poolID)
	}
	return pool, nil
}

// ApproveClean confirms the cleaned keyword set.
func (s *Service) ApproveClean(ctx context.Context, orgID, poolID string) (*model.KeywordPool, error) {
	pool, err := s.getPool(ctx, orgID, poolID)
	if err != nil {
		return nil, err
	}
	if pool.Status != model.PoolStatusCleaned {
		return nil, apperr.Validation("invalid_pool_status",
			"pool status is %q, approving a clean requires %q", pool.Status, model.PoolStatusCleaned)
	}
	now := time.Now().UTC()
	pool.ApprovedAt = &now
	if err := s.store.UpdatePool(ctx, pool); err != nil {
		return nil, apperr.Persistence(err, "update pool %s", poolID)
	}
	return pool, nil
}

// UnapproveClean revokes clean approval and returns the pool to the
// uploaded stage.
func (s *Service) UnapproveClean(ctx context.Context, orgID, poolID string) (*model.KeywordPool, error) {
	pool, err := s.getPool(ctx, orgID, poolID)
	if err != nil {
		return nil, err
	}
	if err := model.ValidateTransition(pool.Status, model.PoolStatusUploaded); err != nil {
		return nil, apperr.Validation("invalid_pool_status", "%v", err)
	}
	pool.Status = model.PoolStatusUploaded
	pool.ApprovedAt = nil
	if err := s.store.UpdatePool(ctx, pool); err != nil {
		return nil, apperr.Persistence(err, "update pool %s", poolID)
	}
	return pool, nil
}

// ApproveGroups confirms the grouping.
func (s *Service) ApproveGroups(ctx context.Context, orgID, poolID string) (*model.KeywordPool, error) {
	pool, err := s.getPool(ctx, orgID, poolID)
	if err != nil {
		return nil, err
	}
	if pool.Status != model.PoolStatusGrouped {
		return nil, apperr.Validation("invalid_pool_status",
			"pool status is %q, approving groups requires %q", pool.Status, model.PoolStatusGrouped)
	}
	now := time.Now().UTC()
	pool.ApprovedAt = &now
	if err := s.store.UpdatePool(ctx, pool); err != nil {
		return nil, apperr.Persistence(err, "update pool %s", poolID)
	}
	return pool, nil
}

// UnapproveGroups revokes grouping approval; the pool stays grouped.
func (s *Service) UnapproveGroups(ctx context.Context, orgID, poolID string) (*model.KeywordPool, error) {
	pool, err := s.getPool(ctx, orgID, poolID)
	if err != nil {
		return nil, err
	}
	pool.ApprovedAt = nil
	if err := s.store.UpdatePool(ctx, pool); err != nil {
		return nil, apperr.Persistence(err, "update pool %s", poolID)
	}
	return pool, nil
}

// DeleteKeywords clears the pool's content and grouping artifacts but
// keeps the pool row, returning it to the initial stage.
func (s *Service) DeleteKeywords(ctx context.Context, orgID, poolID string) (*model.KeywordPool, error) {
	pool, err := s.getPool(ctx, orgID, poolID)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.DeleteOverrides(ctx, orgID, poolID); err != nil {
		return nil, apperr.Persistence(err, "delete overrides for pool %s", poolID)
	}
	if _, err := s.store.DeleteGroups(ctx, orgID, poolID); err != nil {
		return nil, apperr.Persistence(err, "delete groups for pool %s", poolID)
	}

	pool.ClearContent()
	if err := s.store.UpdatePool(ctx, pool); err != nil {
		return nil, apperr.Persistence(err, "update pool %s", poolID)
	}
	return pool, nil
}

// Get fetches one pool.
func (s *Service) Get(ctx context.Context, orgID, poolID string) (*model.KeywordPool, error) {
	return s.getPool(ctx, orgID, poolID)
}

// List returns the pools matching the filter.
func (s *Service) List(ctx context.Context, filter store.PoolFilter) ([]model.KeywordPool, error) {
	pools, err := s.store.ListPools(ctx, filter)
	if err != nil {
		return nil, apperr.Persistence(err, "list pools")
	}
	return pools, nil
}

func (s *Service) getPool(ctx context.Context, orgID, poolID string) (*model.KeywordPool, error) {
	pool, err := s.store.GetPool(ctx, orgID, poolID)
	if err != nil {
		return nil, apperr.Persistence(err, "load pool %s", poolID)
	}
	if pool == nil {
		return nil, apperr.NotFound("pool_not_found", "pool %s not found", poolID)
	}
	return pool, nil
}
