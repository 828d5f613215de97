package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/brightline/composer/internal/model"
)

// SQLiteStore implements Store on an embedded SQLite database. It is
// the local-development and CLI backend; Postgres is the deployment
// backend.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) a SQLite database at path.
// Pass ":memory:" for an in-memory database.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// The driver serializes access; a single connection avoids
	// SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: pragmas")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS composer_keyword_pools (
	id               TEXT PRIMARY KEY,
	organization_id  TEXT NOT NULL,
	project_id       TEXT NOT NULL,
	pool_type        TEXT NOT NULL,
	group_id         TEXT NOT NULL DEFAULT '',
	raw_keywords     TEXT NOT NULL DEFAULT '[]',
	cleaned_keywords TEXT NOT NULL DEFAULT '[]',
	removed_keywords TEXT NOT NULL DEFAULT '[]',
	clean_settings   TEXT,
	grouping_config  TEXT,
	status           TEXT NOT NULL DEFAULT 'uploaded',
	cleaned_at       TIMESTAMP,
	grouped_at       TIMESTAMP,
	approved_at      TIMESTAMP,
	created_at       TIMESTAMP NOT NULL,
	updated_at       TIMESTAMP NOT NULL,
	UNIQUE (organization_id, project_id, pool_type, group_id)
);

CREATE INDEX IF NOT EXISTS idx_composer_pools_org_project ON composer_keyword_pools(organization_id, project_id);

CREATE TABLE IF NOT EXISTS composer_keyword_groups (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	keyword_pool_id TEXT NOT NULL REFERENCES composer_keyword_pools(id),
	group_index     INTEGER NOT NULL,
	label           TEXT NOT NULL,
	phrases         TEXT NOT NULL DEFAULT '[]',
	metadata        TEXT,
	created_at      TIMESTAMP NOT NULL,
	UNIQUE (keyword_pool_id, group_index)
);

CREATE TABLE IF NOT EXISTS composer_keyword_group_overrides (
	id                 TEXT PRIMARY KEY,
	organization_id    TEXT NOT NULL,
	keyword_pool_id    TEXT NOT NULL REFERENCES composer_keyword_pools(id),
	phrase             TEXT NOT NULL,
	action             TEXT NOT NULL,
	target_group_index INTEGER,
	target_group_label TEXT NOT NULL DEFAULT '',
	source_group_id    TEXT,
	created_at         TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS composer_usage_events (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	project_id      TEXT NOT NULL,
	action          TEXT NOT NULL,
	model           TEXT NOT NULL DEFAULT '',
	tokens_in       INTEGER NOT NULL DEFAULT 0,
	tokens_out      INTEGER NOT NULL DEFAULT 0,
	tokens_total    INTEGER NOT NULL DEFAULT 0,
	duration_ms     INTEGER NOT NULL DEFAULT 0,
	cost_usd        REAL NOT NULL DEFAULT 0,
	meta            TEXT,
	created_at      TIMESTAMP NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return eris.Wrap(s.db.Close(), "sqlite: close")
}

func (s *SQLiteStore) CreatePool(ctx context.Context, pool *model.KeywordPool) error {
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

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO composer_keyword_pools
		 (id, organization_id, project_id, pool_type, group_id,
		  raw_keywords, cleaned_keywords, removed_keywords, clean_settings, grouping_config,
		  status, cleaned_at, grouped_at, approved_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pool.ID, pool.OrganizationID, pool.ProjectID, string(pool.PoolType), groupIDColumn(pool.GroupID),
		string(raw), string(cleaned), string(removed), nullableText(settings), nullableText(grouping),
		string(pool.Status), nullableTime(pool.CleanedAt), nullableTime(pool.GroupedAt), nullableTime(pool.ApprovedAt),
		pool.CreatedAt, pool.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert pool")
}

func (s *SQLiteStore) GetPool(ctx context.Context, orgID, poolID string) (*model.KeywordPool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+poolColumns+` FROM composer_keyword_pools WHERE id = ? AND organization_id = ?`,
		poolID, orgID,
	)
	pool, err := scanPoolSQL(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get pool %s", poolID)
	}
	return pool, nil
}

func (s *SQLiteStore) FindPool(ctx context.Context, orgID, projectID string, poolType model.PoolType, groupID *string) (*model.KeywordPool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+poolColumns+` FROM composer_keyword_pools
		 WHERE organization_id = ? AND project_id = ? AND pool_type = ? AND group_id = ?`,
		orgID, projectID, string(poolType), groupIDColumn(groupID),
	)
	pool, err := scanPoolSQL(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: find pool")
	}
	return pool, nil
}

func (s *SQLiteStore) UpdatePool(ctx context.Context, pool *model.KeywordPool) error {
	pool.UpdatedAt = time.Now().UTC()

	raw, cleaned, removed, settings, grouping, err := marshalPoolJSON(pool)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE composer_keyword_pools SET
		   raw_keywords = ?, cleaned_keywords = ?, removed_keywords = ?,
		   clean_settings = ?, grouping_config = ?, status = ?,
		   cleaned_at = ?, grouped_at = ?, approved_at = ?, updated_at = ?
		 WHERE id = ? AND organization_id = ?`,
		string(raw), string(cleaned), string(removed),
		nullableText(settings), nullableText(grouping), string(pool.Status),
		nullableTime(pool.CleanedAt), nullableTime(pool.GroupedAt), nullableTime(pool.ApprovedAt), pool.UpdatedAt,
		pool.ID, pool.OrganizationID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update pool %s", pool.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: update pool rows affected")
	}
	if n == 0 {
		return eris.Errorf("pool not found: %s", pool.ID)
	}
	return nil
}

func (s *SQLiteStore) ListPools(ctx context.Context, filter PoolFilter) ([]model.KeywordPool, error) {
	query := `SELECT ` + poolColumns + ` FROM composer_keyword_pools WHERE organization_id = ?`
	args := []any{filter.OrganizationID}

	if filter.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, filter.ProjectID)
	}
	if filter.PoolType != "" {
		query += ` AND pool_type = ?`
		args = append(args, string(filter.PoolType))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pools")
	}
	defer rows.Close()

	var pools []model.KeywordPool
	for rows.Next() {
		pool, err := scanPoolSQL(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pool")
		}
		pools = append(pools, *pool)
	}
	return pools, eris.Wrap(rows.Err(), "sqlite: list pools iterate")
}

func (s *SQLiteStore) ReplaceGroups(ctx context.Context, pool *model.KeywordPool, groups []model.KeywordGroup) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: replace groups begin")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM composer_keyword_groups WHERE keyword_pool_id = ? AND organization_id = ?`,
		pool.ID, pool.OrganizationID,
	); err != nil {
		return eris.Wrap(err, "sqlite: replace groups delete")
	}

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
			return eris.Wrap(err, "sqlite: marshal group phrases")
		}
		metadata, err := marshalNullable(g.Metadata)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal group metadata")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO composer_keyword_groups
			 (id, organization_id, keyword_pool_id, group_index, label, phrases, metadata, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			g.ID, g.OrganizationID, g.KeywordPoolID, g.GroupIndex, g.Label,
			string(phrases), nullableText(metadata), g.CreatedAt,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert group")
		}
	}

	grouping, err := marshalNullable(pool.GroupingConfig)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal grouping config")
	}
	pool.UpdatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE composer_keyword_pools SET
		   status = ?, grouping_config = ?, grouped_at = ?, approved_at = NULL, updated_at = ?
		 WHERE id = ? AND organization_id = ?`,
		string(pool.Status), nullableText(grouping), nullableTime(pool.GroupedAt), pool.UpdatedAt,
		pool.ID, pool.OrganizationID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: replace groups update pool %s", pool.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: replace groups rows affected")
	}
	if n == 0 {
		return eris.Errorf("pool not found: %s", pool.ID)
	}

	return eris.Wrap(tx.Commit(), "sqlite: replace groups commit")
}

func (s *SQLiteStore) ListGroups(ctx context.Context, orgID, poolID string) ([]model.KeywordGroup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, organization_id, keyword_pool_id, group_index, label, phrases, metadata, created_at
		 FROM composer_keyword_groups
		 WHERE keyword_pool_id = ? AND organization_id = ?
		 ORDER BY group_index ASC`,
		poolID, orgID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list groups")
	}
	defer rows.Close()

	var groups []model.KeywordGroup
	for rows.Next() {
		var g model.KeywordGroup
		var phrases string
		var metadata sql.NullString
		if err := rows.Scan(&g.ID, &g.OrganizationID, &g.KeywordPoolID, &g.GroupIndex, &g.Label, &phrases, &metadata, &g.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan group")
		}
		if err := json.Unmarshal([]byte(phrases), &g.Phrases); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal group phrases")
		}
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &g.Metadata); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal group metadata")
			}
		}
		groups = append(groups, g)
	}
	return groups, eris.Wrap(rows.Err(), "sqlite: list groups iterate")
}

func (s *SQLiteStore) DeleteGroups(ctx context.Context, orgID, poolID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM composer_keyword_groups WHERE keyword_pool_id = ? AND organization_id = ?`,
		poolID, orgID,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete groups")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete groups rows affected")
	}
	return int(n), nil
}

func (s *SQLiteStore) InsertOverride(ctx context.Context, ov *model.GroupOverride) error {
	if ov.ID == "" {
		ov.ID = uuid.New().String()
	}
	if ov.CreatedAt.IsZero() {
		ov.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert override begin")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO composer_keyword_group_overrides
		 (id, organization_id, keyword_pool_id, phrase, action, target_group_index, target_group_label, source_group_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ov.ID, ov.OrganizationID, ov.KeywordPoolID, ov.Phrase, string(ov.Action),
		nullableInt(ov.TargetGroupIndex), ov.TargetGroupLabel, nullableString(ov.SourceGroupID), ov.CreatedAt,
	); err != nil {
		return eris.Wrap(err, "sqlite: insert override")
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE composer_keyword_pools SET approved_at = NULL, updated_at = ? WHERE id = ? AND organization_id = ?`,
		time.Now().UTC(), ov.KeywordPoolID, ov.OrganizationID,
	); err != nil {
		return eris.Wrap(err, "sqlite: insert override clear approval")
	}

	return eris.Wrap(tx.Commit(), "sqlite: insert override commit")
}

func (s *SQLiteStore) ListOverrides(ctx context.Context, orgID, poolID string) ([]model.GroupOverride, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, organization_id, keyword_pool_id, phrase, action, target_group_index, target_group_label, source_group_id, created_at
		 FROM composer_keyword_group_overrides
		 WHERE keyword_pool_id = ? AND organization_id = ?
		 ORDER BY created_at ASC, id ASC`,
		poolID, orgID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list overrides")
	}
	defer rows.Close()

	var overrides []model.GroupOverride
	for rows.Next() {
		var ov model.GroupOverride
		var action string
		var targetIdx sql.NullInt64
		var sourceID sql.NullString
		if err := rows.Scan(&ov.ID, &ov.OrganizationID, &ov.KeywordPoolID, &ov.Phrase, &action,
			&targetIdx, &ov.TargetGroupLabel, &sourceID, &ov.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan override")
		}
		ov.Action = model.OverrideAction(action)
		if targetIdx.Valid {
			idx := int(targetIdx.Int64)
			ov.TargetGroupIndex = &idx
		}
		if sourceID.Valid {
			src := sourceID.String
			ov.SourceGroupID = &src
		}
		overrides = append(overrides, ov)
	}
	return overrides, eris.Wrap(rows.Err(), "sqlite: list overrides iterate")
}

func (s *SQLiteStore) DeleteOverrides(ctx context.Context, orgID, poolID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM composer_keyword_group_overrides WHERE keyword_pool_id = ? AND organization_id = ?`,
		poolID, orgID,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete overrides")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete overrides rows affected")
	}
	return int(n), nil
}

func (s *SQLiteStore) InsertUsageEvent(ctx context.Context, ev *model.UsageEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	meta, err := marshalNullable(ev.Meta)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal usage meta")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO composer_usage_events
		 (id, organization_id, project_id, action, model, tokens_in, tokens_out, tokens_total, duration_ms, cost_usd, meta, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.OrganizationID, ev.ProjectID, ev.Action, ev.Model,
		ev.TokensIn, ev.TokensOut, ev.TokensTotal, ev.DurationMs, ev.CostUSD, nullableText(meta), ev.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert usage event")
}

// --- database/sql helpers ---

type sqlScanner interface {
	Scan(dest ...any) error
}

func scanPoolSQL(row sqlScanner) (*model.KeywordPool, error) {
	var p model.KeywordPool
	var poolType, status, groupID string
	var raw, cleaned, removed string
	var settings, grouping sql.NullString
	var cleanedAt, groupedAt, approvedAt sql.NullTime

	if err := row.Scan(
		&p.ID, &p.OrganizationID, &p.ProjectID, &poolType, &groupID,
		&raw, &cleaned, &removed, &settings, &grouping,
		&status, &cleanedAt, &groupedAt, &approvedAt, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.PoolType = model.PoolType(poolType)
	p.Status = model.PoolStatus(status)
	p.GroupID = groupIDFromColumn(groupID)
	p.CleanedAt = timeFromNull(cleanedAt)
	p.GroupedAt = timeFromNull(groupedAt)
	p.ApprovedAt = timeFromNull(approvedAt)

	if err := json.Unmarshal([]byte(raw), &p.RawKeywords); err != nil {
		return nil, eris.Wrap(err, "unmarshal raw keywords")
	}
	if err := json.Unmarshal([]byte(cleaned), &p.CleanedKeywords); err != nil {
		return nil, eris.Wrap(err, "unmarshal cleaned keywords")
	}
	if err := json.Unmarshal([]byte(removed), &p.RemovedKeywords); err != nil {
		return nil, eris.Wrap(err, "unmarshal removed keywords")
	}
	if settings.Valid {
		p.CleanSettings = &model.CleanSettings{}
		if err := json.Unmarshal([]byte(settings.String), p.CleanSettings); err != nil {
			return nil, eris.Wrap(err, "unmarshal clean settings")
		}
	}
	if grouping.Valid {
		p.GroupingConfig = &model.GroupingConfig{}
		if err := json.Unmarshal([]byte(grouping.String), p.GroupingConfig); err != nil {
			return nil, eris.Wrap(err, "unmarshal grouping config")
		}
	}
	return &p, nil
}

func nullableText(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullableInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func timeFromNull(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}
