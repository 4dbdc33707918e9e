package runs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"nludevops/internal/domain"
)

type Tester interface {
	Test(ctx context.Context, query json.RawMessage) (domain.Result, error)
}

type RunStore interface {
	SaveRun(ctx context.Context, run domain.Run) error
}

type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, runID string, outcome domain.Outcome) error
}

type Service struct {
	tester    Tester
	registry  *Registry
	store     RunStore
	publisher OutcomePublisher
	logger    *slog.Logger
	now       func() time.Time
}

// New wires a run service. store and publisher are optional.
func New(tester Tester, registry *Registry, store RunStore, publisher OutcomePublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		tester:    tester,
		registry:  registry,
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Run tests every query in order. A failing query is recorded on its outcome
// and does not stop the run; only context cancellation does.
func (s *Service) Run(ctx context.Context, queries []json.RawMessage) (domain.Run, error) {
	run := domain.Run{
		RunID:     uuid.NewString(),
		StartedAt: s.now().UTC(),
		Outcomes:  make([]domain.Outcome, 0, len(queries)),
	}
	logger := s.logger.With("run_id", run.RunID)
	logger.Info("test run started", "utterance_count", len(queries))

	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			return domain.Run{}, err
		}

		outcome := domain.Outcome{Index: i, Query: q}
		res, err := s.tester.Test(ctx, q)
		if err != nil {
			outcome.Error = err.Error()
			logger.Warn("utterance failed", "index", i, "error", err)
		} else {
			outcome.Result = res
		}
		run.Outcomes = append(run.Outcomes, outcome)

		if s.publisher != nil {
			if err := s.publisher.PublishOutcome(ctx, run.RunID, outcome); err != nil {
				logger.Warn("publish outcome failed", "index", i, "error", err)
			}
		}
	}
	run.FinishedAt = s.now().UTC()

	if s.registry != nil {
		s.registry.Put(run)
	}
	if s.store != nil {
		if err := s.store.SaveRun(ctx, run); err != nil {
			return run, fmt.Errorf("save run %s: %w", run.RunID, err)
		}
	}
	logger.Info("test run finished",
		"utterance_count", len(run.Outcomes),
		"failed_count", run.FailedCount(),
		"duration", run.FinishedAt.Sub(run.StartedAt),
	)
	return run, nil
}

// LoadUtterances reads a JSON array of queries. Bare strings become
// {"text": ...} so they look like labeled utterances.
func LoadUtterances(r io.Reader) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode utterances: %w", err)
	}
	out := make([]json.RawMessage, 0, len(items))
	for i, item := range items {
		trimmed := strings.TrimSpace(string(item))
		if strings.HasPrefix(trimmed, `"`) {
			var text string
			if err := json.Unmarshal(item, &text); err != nil {
				return nil, fmt.Errorf("decode utterance %d: %w", i, err)
			}
			wrapped, err := json.Marshal(map[string]string{"text": text})
			if err != nil {
				return nil, err
			}
			item = wrapped
		}
		out = append(out, item)
	}
	return out, nil
}
