package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nludevops/internal/domain"
)

var ErrRunNotFound = errors.New("test run not found")

type Store struct {
	pool *pgxpool.Pool
}

type RunSummary struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Utterances  int       `json:"utterance_count"`
	FailedCount int       `json:"failed_count"`
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS test_runs (
			run_id TEXT PRIMARY KEY,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			utterance_count INT NOT NULL DEFAULT 0,
			failed_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS test_results (
			run_id TEXT NOT NULL REFERENCES test_runs(run_id) ON DELETE CASCADE,
			idx INT NOT NULL,
			query JSONB NOT NULL,
			result JSONB,
			error TEXT NOT NULL DEFAULT '',
			intent TEXT,
			intent_score DOUBLE PRECISION,
			PRIMARY KEY (run_id, idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_test_runs_started ON test_runs(started_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_test_results_intent ON test_results(intent);`,
	}

	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SaveRun(ctx context.Context, run domain.Run) error {
	rows, err := outcomeRows(run)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO test_runs(run_id, started_at, finished_at, utterance_count, failed_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id)
		DO UPDATE SET finished_at = EXCLUDED.finished_at,
			utterance_count = EXCLUDED.utterance_count,
			failed_count = EXCLUDED.failed_count
	`, run.RunID, run.StartedAt, run.FinishedAt, len(run.Outcomes), run.FailedCount()); err != nil {
		return fmt.Errorf("insert test run: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM test_results WHERE run_id=$1`, run.RunID); err != nil {
		return fmt.Errorf("clear test results: %w", err)
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO test_results(run_id, idx, query, result, error, intent, intent_score)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, run.RunID, r.index, r.query, r.result, r.err, r.intent, r.intentScore)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert test results: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) GetRun(ctx context.Context, runID string) (domain.Run, error) {
	run := domain.Run{RunID: runID}
	err := s.pool.QueryRow(ctx, `
		SELECT started_at, finished_at
		FROM test_runs
		WHERE run_id=$1
	`, runID).Scan(&run.StartedAt, &run.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Run{}, ErrRunNotFound
	}
	if err != nil {
		return domain.Run{}, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT idx, query, result, error
		FROM test_results
		WHERE run_id=$1
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return domain.Run{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			o      domain.Outcome
			query  []byte
			result []byte
		)
		if err := rows.Scan(&o.Index, &query, &result, &o.Error); err != nil {
			return domain.Run{}, err
		}
		o.Query = json.RawMessage(query)
		if len(result) > 0 {
			res, err := domain.DecodeResult(result)
			if err != nil {
				return domain.Run{}, fmt.Errorf("decode stored result %s/%d: %w", runID, o.Index, err)
			}
			o.Result = res
		}
		run.Outcomes = append(run.Outcomes, o)
	}
	return run, rows.Err()
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, started_at, finished_at, utterance_count, failed_count
		FROM test_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.FinishedAt, &r.Utterances, &r.FailedCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type outcomeRow struct {
	index       int
	query       []byte
	result      []byte
	err         string
	intent      *string
	intentScore *float64
}

func outcomeRows(run domain.Run) ([]outcomeRow, error) {
	out := make([]outcomeRow, 0, len(run.Outcomes))
	for _, o := range run.Outcomes {
		row := outcomeRow{index: o.Index, query: o.Query, err: o.Error}
		if len(row.query) == 0 {
			row.query = []byte("null")
		}
		if o.Result != nil {
			b, err := json.Marshal(o.Result)
			if err != nil {
				return nil, fmt.Errorf("encode result %d: %w", o.Index, err)
			}
			row.result = b
			row.intent = o.Result.Labeled().Intent
			if score, ok := domain.IntentScore(o.Result); ok {
				row.intentScore = &score
			}
		}
		out = append(out, row)
	}
	return out, nil
}
