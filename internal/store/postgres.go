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

	"github.com/taxfoundry/policy-cli/internal/db"
	"github.com/taxfoundry/policy-cli/internal/model"
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

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_timeline":      `SELECT payload FROM timeline_cache WHERE key = $1`,
	"put_timeline":      `INSERT INTO timeline_cache (key, years, params, payload, created_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (key) DO NOTHING`,
	"insert_resolution": `INSERT INTO resolutions (id, key, baseline, reforms, digests, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"cache_stats":       `SELECT COUNT(*), COALESCE(SUM(LENGTH(payload::text)), 0), MIN(created_at), MAX(created_at) FROM timeline_cache`,
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

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

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

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS timeline_cache (
	key        TEXT PRIMARY KEY,
	years      TEXT NOT NULL,
	params     INTEGER NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS resolutions (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	key        TEXT NOT NULL,
	baseline   TEXT NOT NULL,
	reforms    JSONB NOT NULL,
	digests    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_timeline_cache_created_at ON timeline_cache(created_at);
CREATE INDEX IF NOT EXISTS idx_resolutions_key ON resolutions(key);
CREATE INDEX IF NOT EXISTS idx_resolutions_created_at ON resolutions(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_resolutions_reforms ON resolutions USING gin(reforms);
`

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

func (s *PostgresStore) GetTimeline(ctx context.Context, key string) (*model.Timeline, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM timeline_cache WHERE key = $1`,
		key,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get timeline %s", key)
	}

	var tl model.Timeline
	if err := json.Unmarshal(payload, &tl); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal timeline %s", key)
	}
	return &tl, nil
}

func (s *PostgresStore) PutTimeline(ctx context.Context, key string, tl *model.Timeline) error {
	payload, err := json.Marshal(tl)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal timeline")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO timeline_cache (key, years, params, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key) DO NOTHING`,
		key, tl.Window().String(), len(tl.Params()), payload, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: put timeline %s", key)
}

func (s *PostgresStore) CacheStats(ctx context.Context) (*CacheStats, error) {
	var stats CacheStats
	var oldest, newest *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(LENGTH(payload::text)), 0), MIN(created_at), MAX(created_at)
		 FROM timeline_cache`,
	).Scan(&stats.Entries, &stats.Bytes, &oldest, &newest)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: cache stats")
	}
	if oldest != nil {
		stats.Oldest = *oldest
	}
	if newest != nil {
		stats.Newest = *newest
	}
	return &stats, nil
}

func (s *PostgresStore) ClearCache(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM timeline_cache`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: clear cache")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) RecordResolution(ctx context.Context, res Resolution) (*Resolution, error) {
	res.ID = uuid.New().String()
	res.CreatedAt = time.Now().UTC()

	reformsJSON, err := json.Marshal(res.Reforms)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal reforms")
	}
	digestsJSON, err := json.Marshal(res.Digests)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal digests")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO resolutions (id, key, baseline, reforms, digests, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		res.ID, res.Key, res.Baseline, reformsJSON, digestsJSON, res.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert resolution")
	}
	return &res, nil
}

func (s *PostgresStore) ListResolutions(ctx context.Context, filter ResolutionFilter) ([]Resolution, error) {
	query := `SELECT id, key, baseline, reforms, digests, created_at FROM resolutions WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Reform != "" {
		query += fmt.Sprintf(` AND reforms @> to_jsonb($%d::text)`, argIdx)
		args = append(args, filter.Reform)
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
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list resolutions")
	}
	defer rows.Close()

	var out []Resolution
	for rows.Next() {
		var r Resolution
		var reformsJSON, digestsJSON []byte
		if err := rows.Scan(&r.ID, &r.Key, &r.Baseline, &reformsJSON, &digestsJSON, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan resolution")
		}
		if err := json.Unmarshal(reformsJSON, &r.Reforms); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal reforms")
		}
		if err := json.Unmarshal(digestsJSON, &r.Digests); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal digests")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list resolutions iterate")
}
