package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS decision_journal (
    id UUID PRIMARY KEY,
    farmer_id TEXT NOT NULL,
    token_id BIGINT NOT NULL,
    action TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    tx_hash TEXT NOT NULL,
    state TEXT NOT NULL,
    failure_detail TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decision_journal_state ON decision_journal (state, created_at);
`

// PgJournal stores decision entries in Postgres.
type PgJournal struct {
	pool *pgxpool.Pool
}

// NewPgJournal connects to databaseURL and ensures the journal table exists.
func NewPgJournal(ctx context.Context, databaseURL string) (*PgJournal, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid database url")
	}
	cfg.MaxConns = 5
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ensure journal table")
	}
	return &PgJournal{pool: pool}, nil
}

// Close releases the underlying pool.
func (j *PgJournal) Close() {
	j.pool.Close()
}

func (j *PgJournal) Record(ctx context.Context, farmerID string, tokenID uint64, action, reason, txHash string) (*Entry, error) {
	now := time.Now().UTC()
	entry := &Entry{
		ID:        uuid.New(),
		FarmerID:  farmerID,
		TokenID:   tokenID,
		Action:    action,
		Reason:    reason,
		TxHash:    txHash,
		State:     StateBackendPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := j.pool.Exec(ctx, `
		INSERT INTO decision_journal (id, farmer_id, token_id, action, reason, tx_hash, state, failure_detail, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, '', $8, $8)`,
		entry.ID, entry.FarmerID, int64(entry.TokenID), entry.Action, entry.Reason, entry.TxHash, string(entry.State), now)
	if err != nil {
		return nil, errors.Wrap(err, "failed to record journal entry")
	}
	return entry, nil
}

func (j *PgJournal) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	return j.setState(ctx, id, StateCompleted, "")
}

func (j *PgJournal) MarkReconcileRequired(ctx context.Context, id uuid.UUID, detail string) error {
	return j.setState(ctx, id, StateReconcileRequired, detail)
}

func (j *PgJournal) setState(ctx context.Context, id uuid.UUID, state State, detail string) error {
	tag, err := j.pool.Exec(ctx, `
		UPDATE decision_journal SET state = $2, failure_detail = $3, updated_at = $4 WHERE id = $1`,
		id, string(state), detail, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "failed to update journal entry")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ErrEntryNotFound, "id %s", id)
	}
	return nil
}

func (j *PgJournal) ListUnresolved(ctx context.Context) ([]Entry, error) {
	rows, err := j.pool.Query(ctx, `
		SELECT id, farmer_id, token_id, action, reason, tx_hash, state, failure_detail, created_at, updated_at
		FROM decision_journal
		WHERE state IN ($1, $2)
		ORDER BY created_at ASC`,
		string(StateBackendPending), string(StateReconcileRequired))
	if err != nil {
		return nil, errors.Wrap(err, "failed to query unresolved entries")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			tokenID int64
			state   string
		)
		if err := rows.Scan(&e.ID, &e.FarmerID, &tokenID, &e.Action, &e.Reason, &e.TxHash, &state, &e.FailureDetail, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan journal entry")
		}
		e.TokenID = uint64(tokenID)
		e.State = State(state)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate journal entries")
	}
	return entries, nil
}

var _ Journal = (*PgJournal)(nil)
