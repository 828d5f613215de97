// Package store persists keyword pools, groups, overrides, and usage
// events. Postgres is the primary backend; SQLite serves local
// development.
package store

import (
	"context"

	"github.com/brightline/composer/internal/model"
)

// PoolFilter specifies criteria for listing pools.
type PoolFilter struct {
	OrganizationID string         `json:"organizationId"`
	ProjectID      string         `json:"projectId,omitempty"`
	PoolType       model.PoolType `json:"poolType,omitempty"`
	Limit          int            `json:"limit,omitempty"`
	Offset         int            `json:"offset,omitempty"`
}

// Store defines the persistence interface for the keyword pipeline.
// Lookups return (nil, nil) when the entity is absent; callers map that
// to their own not-found error.
type Store interface {
	// Pools
	CreatePool(ctx context.Context, pool *model.KeywordPool) error
	GetPool(ctx context.Context, orgID, poolID string) (*model.KeywordPool, error)
	FindPool(ctx context.Context, orgID, projectID string, poolType model.PoolType, groupID *string) (*model.KeywordPool, error)
	UpdatePool(ctx context.Context, pool *model.KeywordPool) error
	ListPools(ctx context.Context, filter PoolFilter) ([]model.KeywordPool, error)

	// Groups. ReplaceGroups atomically swaps a pool's groups for the
	// given set and applies the pool's new status/config/groupedAt;
	// either the prior set survives untouched or the new set is fully
	// in place.
	ReplaceGroups(ctx context.Context, pool *model.KeywordPool, groups []model.KeywordGroup) error
	ListGroups(ctx context.Context, orgID, poolID string) ([]model.KeywordGroup, error)
	DeleteGroups(ctx context.Context, orgID, poolID string) (int, error)

	// Overrides. InsertOverride also clears the owning pool's
	// approvedAt in the same transaction.
	InsertOverride(ctx context.Context, ov *model.GroupOverride) error
	ListOverrides(ctx context.Context, orgID, poolID string) ([]model.GroupOverride, error)
	DeleteOverrides(ctx context.Context, orgID, poolID string) (int, error)

	// Usage ledger
	InsertUsageEvent(ctx context.Context, ev *model.UsageEvent) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
