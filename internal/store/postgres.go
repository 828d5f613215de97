package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/brightline/composer/internal/db"
	"github.com/brightline/composer/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS composer_keyword_pools (
	id               TEXT PRIMARY KEY,
	organization_id  TEXT NOT NULL,
	project_id       TEXT NOT NULL,
	pool_type        TEXT NOT NULL,
	group_id         TEXT NOT NULL DEFAULT '',
	raw_keywords     JSONB NOT NULL DEFAULT '[]',
	cleaned_keywords JSONB NOT NULL DEFAULT '[]',
	removed_keywords JSONB NOT NULL DEFAULT '[]',
	clean_settings   JSONB,
	grouping_config  JSONB,
	status           TEXT NOT NULL DEFAULT 'uploaded',
	cleaned_at       TIMESTAMPTZ,
	grouped_at       TIMESTAMPTZ,
	approved_at      TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (organization_id, project_id, pool_type, group_id)
);

CREATE INDEX IF NOT EXISTS idx_composer_pools_org_project ON composer_keyword_pools(organization_id, project_id);
CREATE INDEX IF NOT EXISTS idx_composer_pools_status ON composer_keyword_pools(status);

CREATE TABLE IF NOT EXISTS composer_keyword_groups (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	keyword_pool_id TEXT NOT NULL REFERENCES composer_keyword_pools(id),
	group_index     INTEGER NOT NULL,
	label           TEXT NOT NULL,
	phrases         JSONB NOT NULL DEFAULT '[]',
	metadata        JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (keyword_pool_id, group_index)
);

CREATE INDEX IF NOT EXISTS idx_composer_groups_pool ON composer_keyword_groups(keyword_pool_id);

CREATE TABLE IF NOT EXISTS composer_keyword_group_overrides (
	id                 TEXT PRIMARY KEY,
	organization_id    TEXT NOT NULL,
	keyword_pool_id    TEXT NOT NULL REFERENCES composer_keyword_pools(id),
	phrase             TEXT NOT NULL,
	action             TEXT NOT NULL,
	target_group_index INTEGER,
	target_group_label TEXT NOT NULL DEFAULT '',
	source_group_id    TEXT,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_composer_overrides_pool ON composer_keyword_group_overrides(keyword_pool_id);

CREATE TABLE IF NOT EXISTS composer_usage_events (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	project_id      TEXT NOT NULL,
	action          TEXT NOT NULL,
	model           TEXT NOT NULL DEFAULT '',
	tokens_in       INTEGER NOT NULL DEFAULT 0,
	tokens_out      INTEGER NOT NULL DEFAULT 0,
	tokens_total    INTEGER NOT NULL DEFAULT 0,
	duration_ms     BIGINT NOT NULL DEFAULT 0,
	cost_usd        DOUBLE PRECISION NOT NULL DEFAULT 0,
	meta            JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_composer_usage_org_created ON composer_usage_events(organization_id, created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const poolColumns = `id, organization_id, project_id, pool_type, group_id,
	raw_keywords, cleaned_keywords, removed_keywords, clean_settings, grouping_config,
	status, cleaned_at, grouped_at, approved_at, created_at, updated_at`

func (s *PostgresStore) CreatePool(ctx context.Context, pool *model.KeywordPool) error {
	if pool.ID == "" {
		pool.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	pool.CreatedAt = now
	pool.UpdatedAt = now

	raw, cleaned, removed, settings, grouping, err := marshalPoolJSON(pool)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO composer_keyword_pools
		 (id, organization_id, project_id, pool_type, group_id,
		  raw_keywords, cleaned_keywords, removed_keywords, clean_settings, grouping_config,
		  status, cleaned_at, grouped_at, approved_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		pool.ID, pool.OrganizationID, pool.ProjectID, string(pool.PoolType), groupIDColumn(pool.GroupID),
		raw, cleaned, removed, settings, grouping,
		string(pool.Status), pool.CleanedAt, pool.GroupedAt, pool.ApprovedAt, pool.CreatedAt, pool.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert pool")
}

func (s *PostgresStore) GetPool(ctx context.Context, orgID, poolID string) (*model.KeywordPool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+poolColumns+` FROM composer_keyword_pools WHERE id = $1 AND organization_id = $2`,
		poolID, orgID,
	)
	pool, err := scanPool(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get pool %s", poolID)
	}
	return pool, nil
}

func (s *PostgresStore) FindPool(ctx context.Context, orgID, projectID string, poolType model.PoolType, groupID *string) (*model.KeywordPool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+poolColumns+` FROM composer_keyword_pools
		 WHERE organization_id = $1 AND project_id = $2 AND pool_type = $3 AND group_id = $4`,
		orgID, projectID, string(poolType), groupIDColumn(groupID),
	)
	pool, err := scanPool(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: find pool")
	}
	return pool, nil
}

func (s *PostgresStore) UpdatePool(ctx context.Context, pool *model.KeywordPool) error {
	pool.UpdatedAt = time.Now().UTC()

	raw, cleaned, removed, settings, grouping, err := marshalPoolJSON(pool)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE composer_keyword_pools SET
		   raw_keywords = $1, cleaned_keywords = $2, removed_keywords = $3,
		   clean_settings = $4, grouping_config = $5, status = $6,
		   cleaned_at = $7, grouped_at = $8, approved_at = $9, updated_at = $10
		 WHERE id = $11 AND organization_id = $12`,
		raw, cleaned, removed, settings, grouping, string(pool.Status),
		pool.CleanedAt, pool.GroupedAt, pool.ApprovedAt, pool.UpdatedAt,
		pool.ID, pool.OrganizationID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update pool %s", pool.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("pool not found: %s", pool.ID)
	}
	return nil
}

func (s *PostgresStore) ListPools(ctx context.Context, filter PoolFilter) ([]model.KeywordPool, error) {
	query := `SELECT ` + poolColumns + ` FROM composer_keyword_pools WHERE organization_id = $1`
	args := []any{filter.OrganizationID}
	argIdx := 2

	if filter.ProjectID != "" {
		query += fmt.Sprintf(` AND project_id = $%d`, argIdx)
		args = append(args, filter.ProjectID)
		argIdx++
	}
	if filter.PoolType != "" {
		query += fmt.Sprintf(` AND pool_type = $%d`, argIdx)
		args = append(args, string(filter.PoolType))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pools")
	}
	defer rows.Close()

	var pools []model.KeywordPool
	for rows.Next() {
		pool, err := scanPool(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan pool")
		}
		pools = append(pools, *pool)
	}
	return pools, eris.Wrap(rows.Err(), "postgres: list pools iterate")
}

func (s *PostgresStore) ReplaceGroups(ctx context.Context, pool *model.KeywordPool, groups []model.KeywordGroup) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: replace groups begin")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM composer_keyword_groups WHERE keyword_pool_id = $1 AND organization_id = $2`,
		pool.ID, pool.OrganizationID,
	); err != nil {
		return eris.Wrap(err, "postgres: replace groups delete")
	}

	rows := make([][]any, 0, len(groups))
	for i := range groups {
		g := &groups[i]
		if g.ID == "" {
			g.ID = uuid.New().String()
		}
		if g.CreatedAt.IsZero() {
			g.CreatedAt = time.Now().UTC()
		}
		phrases, err := json.Marshal(g.Phrases)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal group phrases")
		}
		metadata, err := marshalNullable(g.Metadata)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal group metadata")
		}
		rows = append(rows, []any{
			g.ID, g.OrganizationID, g.KeywordPoolID, g.GroupIndex, g.Label, phrases, metadata, g.CreatedAt,
		})
	}
	if _, err := db.CopyFrom(ctx, tx, "composer_keyword_groups",
		[]string{"id", "organization_id", "keyword_pool_id", "group_index", "label", "phrases", "metadata", "created_at"},
		rows,
	); err != nil {
		return err
	}

	grouping, err := marshalNullable(pool.GroupingConfig)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal grouping config")
	}
	pool.UpdatedAt = time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE composer_keyword_pools SET
		   status = $1, grouping_config = $2, grouped_at = $3, approved_at = NULL, updated_at = $4
		 WHERE id = $5 AND organization_id = $6`,
		string(pool.Status), grouping, pool.GroupedAt, pool.UpdatedAt,
		pool.ID, pool.OrganizationID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: replace groups update pool %s", pool.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("pool not found: %s", pool.ID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: replace groups commit")
}

func (s *PostgresStore) ListGroups(ctx context.Context, orgID, poolID string) ([]model.KeywordGroup, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, organization_id, keyword_pool_id, group_index, label, phrases, metadata, created_at
		 FROM composer_keyword_groups
		 WHERE keyword_pool_id = $1 AND organization_id = $2
		 ORDER BY group_index ASC`,
		poolID, orgID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list groups")
	}
	defer rows.Close()

	var groups []model.KeywordGroup
	for rows.Next() {
		var g model.KeywordGroup
		var phrases []byte
		var metadata *[]byte
		if err := rows.Scan(&g.ID, &g.OrganizationID, &g.KeywordPoolID, &g.GroupIndex, &g.Label, &phrases, &metadata, &g.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan group")
		}
		if err := json.Unmarshal(phrases, &g.Phrases); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal group phrases")
		}
		if metadata != nil {
			if err := json.Unmarshal(*metadata, &g.Metadata); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal group metadata")
			}
		}
		groups = append(groups, g)
	}
	return groups, eris.Wrap(rows.Err(), "postgres: list groups iterate")
}

func (s *PostgresStore) DeleteGroups(ctx context.Context, orgID, poolID string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM composer_keyword_groups WHERE keyword_pool_id = $1 AND organization_id = $2`,
		poolID, orgID,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete groups")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) InsertOverride(ctx context.Context, ov *model.GroupOverride) error {
	if ov.ID == "" {
		ov.ID = uuid.New().String()
	}
	if ov.CreatedAt.IsZero() {
		ov.CreatedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: insert override begin")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO composer_keyword_group_overrides
		 (id, organization_id, keyword_pool_id, phrase, action, target_group_index, target_group_label, source_group_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ov.ID, ov.OrganizationID, ov.KeywordPoolID, ov.Phrase, string(ov.Action),
		ov.TargetGroupIndex, ov.TargetGroupLabel, ov.SourceGroupID, ov.CreatedAt,
	); err != nil {
		return eris.Wrap(err, "postgres: insert override")
	}

	// An approved grouping becomes dirty the moment it is overridden.
	if _, err := tx.Exec(ctx,
		`UPDATE composer_keyword_pools SET approved_at = NULL, updated_at = $1 WHERE id = $2 AND organization_id = $3`,
		time.Now().UTC(), ov.KeywordPoolID, ov.OrganizationID,
	); err != nil {
		return eris.Wrap(err, "postgres: insert override clear approval")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: insert override commit")
}

func (s *PostgresStore) ListOverrides(ctx context.Context, orgID, poolID string) ([]model.GroupOverride, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, organization_id, keyword_pool_id, phrase, action, target_group_index, target_group_label, source_group_id, created_at
		 FROM composer_keyword_group_overrides
		 WHERE keyword_pool_id = $1 AND organization_id = $2
		 ORDER BY created_at ASC`,
		poolID, orgID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list overrides")
	}
	defer rows.Close()

	var overrides []model.GroupOverride
	for rows.Next() {
		var ov model.GroupOverride
		if err := rows.Scan(&ov.ID, &ov.OrganizationID, &ov.KeywordPoolID, &ov.Phrase, &ov.Action,
			&ov.TargetGroupIndex, &ov.TargetGroupLabel, &ov.SourceGroupID, &ov.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan override")
		}
		overrides = append(overrides, ov)
	}
	return overrides, eris.Wrap(rows.Err(), "postgres: list overrides iterate")
}

func (s *PostgresStore) DeleteOverrides(ctx context.Context, orgID, poolID string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM composer_keyword_group_overrides WHERE keyword_pool_id = $1 AND organization_id = $2`,
		poolID, orgID,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete overrides")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) InsertUsageEvent(ctx context.Context, ev *model.UsageEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	meta, err := marshalNullable(ev.Meta)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal usage meta")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO composer_usage_events
		 (id, organization_id, project_id, action, model, tokens_in, tokens_out, tokens_total, duration_ms, cost_usd, meta, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		ev.ID, ev.OrganizationID, ev.ProjectID, ev.Action, ev.Model,
		ev.TokensIn, ev.TokensOut, ev.TokensTotal, ev.DurationMs, ev.CostUSD, meta, ev.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert usage event")
}

// --- scan/marshal helpers ---

// groupIDColumn folds a nil group scope to the empty string so the
// per-pool uniqueness constraint treats "no group" as one value.
func groupIDColumn(groupID *string) string {
	if groupID == nil {
		return ""
	}
	return *groupID
}

func groupIDFromColumn(col string) *string {
	if col == "" {
		return nil
	}
	return &col
}

func marshalPoolJSON(pool *model.KeywordPool) (raw, cleaned, removed, settings, grouping []byte, err error) {
	if raw, err = json.Marshal(sliceOrEmpty(pool.RawKeywords)); err != nil {
		return nil, nil, nil, nil, nil, eris.Wrap(err, "postgres: marshal raw keywords")
	}
	if cleaned, err = json.Marshal(sliceOrEmpty(pool.CleanedKeywords)); err != nil {
		return nil, nil, nil, nil, nil, eris.Wrap(err, "postgres: marshal cleaned keywords")
	}
	if removed, err = json.Marshal(removedOrEmpty(pool.RemovedKeywords)); err != nil {
		return nil, nil, nil, nil, nil, eris.Wrap(err, "postgres: marshal removed keywords")
	}
	if settings, err = marshalNullable(pool.CleanSettings); err != nil {
		return nil, nil, nil, nil, nil, eris.Wrap(err, "postgres: marshal clean settings")
	}
	if grouping, err = marshalNullable(pool.GroupingConfig); err != nil {
		return nil, nil, nil, nil, nil, eris.Wrap(err, "postgres: marshal grouping config")
	}
	return raw, cleaned, removed, settings, grouping, nil
}

// marshalNullable returns nil (SQL NULL) for nil values instead of the
// JSON literal null.
func marshalNullable(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case *model.CleanSettings:
		if val == nil {
			return nil, nil
		}
	case *model.GroupingConfig:
		if val == nil {
			return nil, nil
		}
	case map[string]any:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func sliceOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func removedOrEmpty(s []model.RemovedKeyword) []model.RemovedKeyword {
	if s == nil {
		return []model.RemovedKeyword{}
	}
	return s
}

// scanPool reads one pool row; works for both pgx.Row and pgx.Rows.
func scanPool(row pgx.Row) (*model.KeywordPool, error) {
	var p model.KeywordPool
	var poolType, status, groupID string
	var raw, cleaned, removed []byte
	var settings, grouping *[]byte

	if err := row.Scan(
		&p.ID, &p.OrganizationID, &p.ProjectID, &poolType, &groupID,
		&raw, &cleaned, &removed, &settings, &grouping,
		&status, &p.CleanedAt, &p.GroupedAt, &p.ApprovedAt, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.PoolType = model.PoolType(poolType)
	p.Status = model.PoolStatus(status)
	p.GroupID = groupIDFromColumn(groupID)

	if err := json.Unmarshal(raw, &p.RawKeywords); err != nil {
		return nil, eris.Wrap(err, "unmarshal raw keywords")
	}
	if err := json.Unmarshal(cleaned, &p.CleanedKeywords); err != nil {
		return nil, eris.Wrap(err, "unmarshal cleaned keywords")
	}
	if err := json.Unmarshal(removed, &p.RemovedKeywords); err != nil {
		return nil, eris.Wrap(err, "unmarshal removed keywords")
	}
	if settings != nil {
		p.CleanSettings = &model.CleanSettings{}
		if err := json.Unmarshal(*settings, p.CleanSettings); err != nil {
			return nil, eris.Wrap(err, "unmarshal clean settings")
		}
	}
	if grouping != nil {
		p.GroupingConfig = &model.GroupingConfig{}
		if err := json.Unmarshal(*grouping, p.GroupingConfig); err != nil {
			return nil, eris.Wrap(err, "unmarshal grouping config")
		}
	}
	return &p, nil
}
