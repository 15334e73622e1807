package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/taxfoundry/policy-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS timeline_cache (
	key        TEXT PRIMARY KEY,
	years      TEXT NOT NULL,
	params     INTEGER NOT NULL,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS resolutions (
	id         TEXT PRIMARY KEY,
	key        TEXT NOT NULL,
	baseline   TEXT NOT NULL,
	reforms    TEXT NOT NULL,
	digests    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_timeline_cache_created_at ON timeline_cache(created_at);
CREATE INDEX IF NOT EXISTS idx_resolutions_key ON resolutions(key);
CREATE INDEX IF NOT EXISTS idx_resolutions_created_at ON resolutions(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetTimeline(ctx context.Context, key string) (*model.Timeline, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM timeline_cache WHERE key = ?`,
		key,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get timeline %s", key)
	}

	var tl model.Timeline
	if err := json.Unmarshal([]byte(payload), &tl); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal timeline %s", key)
	}
	return &tl, nil
}

func (s *SQLiteStore) PutTimeline(ctx context.Context, key string, tl *model.Timeline) error {
	payload, err := json.Marshal(tl)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal timeline")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO timeline_cache (key, years, params, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (key) DO NOTHING`,
		key, tl.Window().String(), len(tl.Params()), string(payload), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put timeline %s", key)
}

func (s *SQLiteStore) CacheStats(ctx context.Context) (*CacheStats, error) {
	var stats CacheStats
	var oldest, newest sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(LENGTH(payload)), 0), MIN(created_at), MAX(created_at)
		 FROM timeline_cache`,
	).Scan(&stats.Entries, &stats.Bytes, &oldest, &newest)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: cache stats")
	}
	if oldest.Valid {
		stats.Oldest = oldest.Time
	}
	if newest.Valid {
		stats.Newest = newest.Time
	}
	return &stats, nil
}

func (s *SQLiteStore) ClearCache(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM timeline_cache`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clear cache")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) RecordResolution(ctx context.Context, res Resolution) (*Resolution, error) {
	res.ID = uuid.New().String()
	res.CreatedAt = time.Now().UTC()

	reformsJSON, err := json.Marshal(res.Reforms)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal reforms")
	}
	digestsJSON, err := json.Marshal(res.Digests)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal digests")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO resolutions (id, key, baseline, reforms, digests, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		res.ID, res.Key, res.Baseline, string(reformsJSON), string(digestsJSON), res.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert resolution")
	}
	return &res, nil
}

func (s *SQLiteStore) ListResolutions(ctx context.Context, filter ResolutionFilter) ([]Resolution, error) {
	query := `SELECT id, key, baseline, reforms, digests, created_at FROM resolutions WHERE 1=1`
	var args []any

	if filter.Reform != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(resolutions.reforms) WHERE json_each.value = ?)`
		args = append(args, filter.Reform)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list resolutions")
	}
	defer rows.Close()

	var out []Resolution
	for rows.Next() {
		var r Resolution
		var reformsJSON, digestsJSON string
		if err := rows.Scan(&r.ID, &r.Key, &r.Baseline, &reformsJSON, &digestsJSON, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan resolution")
		}
		if err := json.Unmarshal([]byte(reformsJSON), &r.Reforms); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal reforms")
		}
		if err := json.Unmarshal([]byte(digestsJSON), &r.Digests); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal digests")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list resolutions iterate")
}
