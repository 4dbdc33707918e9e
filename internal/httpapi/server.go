package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"nludevops/internal/db"
	"nludevops/internal/domain"
	"nludevops/internal/luis"
	"nludevops/internal/runs"
)

type Tester interface {
	Test(ctx context.Context, query json.RawMessage) (domain.Result, error)
}

type Runner interface {
	Run(ctx context.Context, queries []json.RawMessage) (domain.Run, error)
}

type RunLoader interface {
	GetRun(ctx context.Context, runID string) (domain.Run, error)
}

type RunHistory interface {
	ListRuns(ctx context.Context, limit int) ([]db.RunSummary, error)
}

type Deps struct {
	Mapper   luis.TypeMapper
	Tester   Tester
	Runner   Runner
	Registry *runs.Registry
	Store    RunLoader
	History  RunHistory
	Logger   *slog.Logger
}

type normalizeRequest struct {
	Response            json.RawMessage   `json:"response"`
	PrebuiltEntityTypes map[string]string `json:"prebuiltEntityTypes"`
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Post("/v1/normalize", func(w http.ResponseWriter, req *http.Request) {
		var body normalizeRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
			return
		}
		mapper := d.Mapper
		if body.PrebuiltEntityTypes != nil {
			m, err := luis.NewTypeMapper(body.PrebuiltEntityTypes)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
				return
			}
			mapper = m
		}
		res, err := luis.Normalize(body.Response, mapper)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	r.Post("/v1/test", func(w http.ResponseWriter, req *http.Request) {
		if d.Tester == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "prediction endpoint is not configured"})
			return
		}
		var query json.RawMessage
		if err := json.NewDecoder(req.Body).Decode(&query); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
			return
		}
		res, err := d.Tester.Test(req.Context(), query)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	r.Post("/v1/runs", func(w http.ResponseWriter, req *http.Request) {
		if d.Runner == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "prediction endpoint is not configured"})
			return
		}
		queries, err := runs.LoadUtterances(req.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		if len(queries) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "at least one utterance is required"})
			return
		}
		run, err := d.Runner.Run(req.Context(), queries)
		if err != nil && run.RunID == "" {
			writeError(w, d.Logger, err)
			return
		}
		if err != nil {
			d.Logger.Error("run finished with error", "run_id", run.RunID, "error", err)
		}
		writeJSON(w, http.StatusOK, run)
	})

	r.Get("/v1/runs", func(w http.ResponseWriter, _ *http.Request) {
		if d.Registry == nil {
			writeJSON(w, http.StatusOK, []domain.Run{})
			return
		}
		writeJSON(w, http.StatusOK, d.Registry.List())
	})

	r.Get("/v1/runs/history", func(w http.ResponseWriter, req *http.Request) {
		if d.History == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "run storage is not configured"})
			return
		}
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		summaries, err := d.History.ListRuns(req.Context(), limit)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if summaries == nil {
			summaries = []db.RunSummary{}
		}
		writeJSON(w, http.StatusOK, summaries)
	})

	r.Get("/v1/runs/{runID}", func(w http.ResponseWriter, req *http.Request) {
		runID := chi.URLParam(req, "runID")
		if d.Registry != nil {
			if run, ok := d.Registry.Get(runID); ok {
				writeJSON(w, http.StatusOK, run)
				return
			}
		}
		if d.Store != nil {
			run, err := d.Store.GetRun(req.Context(), runID)
			if err == nil {
				writeJSON(w, http.StatusOK, run)
				return
			}
			if !errors.Is(err, db.ErrRunNotFound) {
				writeError(w, d.Logger, err)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "run not found"})
	})

	return r
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var fe *luis.FormatError
	var ae *luis.ArgumentError
	switch {
	case errors.As(err, &fe), errors.As(err, &ae):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	case errors.Is(err, luis.ErrSpeechUnsupported):
		writeJSON(w, http.StatusNotImplemented, map[string]any{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, map[string]any{"error": err.Error()})
	default:
		logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
