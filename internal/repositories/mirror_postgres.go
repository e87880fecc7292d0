package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-progress-store/internal/logger"
	"github.com/sbilibin2017/gw-progress-store/internal/models"
)

// PostgresMirrorSchema creates the tables used by PostgresMirror.
const PostgresMirrorSchema = `
CREATE TABLE IF NOT EXISTS progress_mutations (
	mutation_id VARCHAR(64) PRIMARY KEY,
	user_id VARCHAR(64) NOT NULL,
	field VARCHAR(32) NOT NULL,
	op VARCHAR(16) NOT NULL,
	value JSONB NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS progress_mutations_user_idx ON progress_mutations (user_id, created_at);
CREATE TABLE IF NOT EXISTS user_daily_progress (
	user_id VARCHAR(64) NOT NULL,
	day DATE NOT NULL,
	distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
	time_min DOUBLE PRECISION NOT NULL DEFAULT 0,
	paths INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, day)
);
CREATE TABLE IF NOT EXISTS user_lifetime (
	user_id VARCHAR(64) PRIMARY KEY,
	distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
	time_min DOUBLE PRECISION NOT NULL DEFAULT 0,
	paths INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);
`

// PostgresMirror journals every mutation once and folds progress deltas into
// per-day and lifetime tables inside the same transaction.
type PostgresMirror struct {
	db *sqlx.DB
}

// NewPostgresMirror creates a Postgres backed mirror.
func NewPostgresMirror(db *sqlx.DB) *PostgresMirror {
	return &PostgresMirror{db: db}
}

// EnsureSchema creates the mirror tables if they do not exist.
func (r *PostgresMirror) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, PostgresMirrorSchema)
	logger.Log.Infow("query", "ensure mirror schema", "error", err)
	return err
}

// Put journals m. A mutation ID seen before is ignored, which makes retries of
// delta mutations safe.
func (r *PostgresMirror) Put(ctx context.Context, m models.Mutation) (err error) {
	value, err := json.Marshal(m.Value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", m.Field, err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	inserted, err := r.journal(ctx, tx, m, value)
	if err != nil {
		return err
	}

	if inserted && m.Field == models.FieldProgress {
		delta, ok := m.Value.(models.ProgressDelta)
		if !ok {
			return fmt.Errorf("unexpected progress value %T", m.Value)
		}
		if err = r.addProgress(ctx, tx, m.UserID, delta); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PostgresMirror) journal(ctx context.Context, tx *sqlx.Tx, m models.Mutation, value []byte) (bool, error) {
	const query = `
		INSERT INTO progress_mutations (mutation_id, user_id, field, op, value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (mutation_id) DO NOTHING
	`
	args := []any{m.ID, m.UserID, m.Field, string(m.Op), value, m.CreatedAt}

	res, err := tx.ExecContext(ctx, query, args...)
	var rowsAffected int64
	if res != nil {
		rowsAffected, _ = res.RowsAffected()
	}

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", args,
		"result", rowsAffected,
		"error", err,
	)

	return rowsAffected == 1, err
}

func (r *PostgresMirror) addProgress(ctx context.Context, tx *sqlx.Tx, userID string, delta models.ProgressDelta) error {
	const dailyQuery = `
		INSERT INTO user_daily_progress (user_id, day, distance_km, time_min, paths, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id, day) DO UPDATE
		SET distance_km = user_daily_progress.distance_km + EXCLUDED.distance_km,
		    time_min = user_daily_progress.time_min + EXCLUDED.time_min,
		    paths = user_daily_progress.paths + EXCLUDED.paths,
		    updated_at = NOW()
	`
	const lifetimeQuery = `
		INSERT INTO user_lifetime (user_id, distance_km, time_min, paths, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET distance_km = user_lifetime.distance_km + EXCLUDED.distance_km,
		    time_min = user_lifetime.time_min + EXCLUDED.time_min,
		    paths = user_lifetime.paths + EXCLUDED.paths,
		    updated_at = NOW()
	`

	d := delta.Delta
	dailyArgs := []any{userID, delta.Date.Time(), d.Distance, d.Time, d.Paths}
	_, err := tx.ExecContext(ctx, dailyQuery, dailyArgs...)
	logger.Log.Infow(
		"query", strings.Join(strings.Fields(dailyQuery), " "),
		"args", dailyArgs,
		"error", err,
	)
	if err != nil {
		return err
	}

	lifetimeArgs := []any{userID, d.Distance, d.Time, d.Paths}
	_, err = tx.ExecContext(ctx, lifetimeQuery, lifetimeArgs...)
	logger.Log.Infow(
		"query", strings.Join(strings.Fields(lifetimeQuery), " "),
		"args", lifetimeArgs,
		"error", err,
	)
	return err
}

// Lifetime reads the mirrored lifetime aggregate of userID.
func (r *PostgresMirror) Lifetime(ctx context.Context, userID string) (models.Triple, error) {
	const query = `
		SELECT distance_km, time_min, paths
		FROM user_lifetime
		WHERE user_id = $1
	`

	var row struct {
		Distance float64 `db:"distance_km"`
		Time     float64 `db:"time_min"`
		Paths    int     `db:"paths"`
	}
	err := r.db.GetContext(ctx, &row, query, userID)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{userID},
		"result", row,
		"error", err,
	)

	if err != nil {
		return models.Triple{}, err
	}
	return models.Triple{Distance: row.Distance, Time: row.Time, Paths: row.Paths}, nil
}
