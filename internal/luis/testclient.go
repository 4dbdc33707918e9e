package luis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"nludevops/internal/domain"
)

var ErrSpeechUnsupported = errors.New("speech prediction is not supported")

type Predictor interface {
	Query(ctx context.Context, req domain.PredictionRequest) ([]byte, error)
}

// TestClient sends test queries to the prediction service and normalizes the
// responses. It is safe for concurrent use.
type TestClient struct {
	predictor Predictor
	mapper    TypeMapper
	logger    *slog.Logger
}

func NewTestClient(settings Settings, predictor Predictor, logger *slog.Logger) (*TestClient, error) {
	if predictor == nil {
		return nil, &ArgumentError{Param: "predictor"}
	}
	mapper, err := NewTypeMapper(settings.PrebuiltEntityTypes)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TestClient{predictor: predictor, mapper: mapper, logger: logger}, nil
}

// Test accepts either a prediction request or a labeled utterance; "text" is
// used when "query" is absent.
func (c *TestClient) Test(ctx context.Context, query json.RawMessage) (domain.Result, error) {
	req, err := DecodeQuery(query)
	if err != nil {
		return nil, err
	}

	raw, err := c.predictor.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("predict %q: %w", req.Query, err)
	}

	res, err := Normalize(raw, c.mapper)
	if err != nil {
		c.logger.Warn("normalize prediction failed", "query", req.Query, "error", err)
		return nil, err
	}
	c.logger.Debug("prediction normalized", "query", req.Query, "entity_count", len(res.Labeled().Entities))
	return res, nil
}

func (c *TestClient) TestSpeech(_ context.Context, speechFile string, _ json.RawMessage) (domain.Result, error) {
	if strings.TrimSpace(speechFile) == "" {
		return nil, &ArgumentError{Param: "speechFile"}
	}
	return nil, ErrSpeechUnsupported
}

func DecodeQuery(query json.RawMessage) (domain.PredictionRequest, error) {
	if len(query) == 0 || strings.TrimSpace(string(query)) == "null" {
		return domain.PredictionRequest{}, &ArgumentError{Param: "query"}
	}

	var text string
	if err := json.Unmarshal(query, &text); err == nil {
		if strings.TrimSpace(text) == "" {
			return domain.PredictionRequest{}, &ArgumentError{Param: "query"}
		}
		return domain.PredictionRequest{Query: text}, nil
	}

	var in struct {
		domain.PredictionRequest
		Text string `json:"text"`
	}
	if err := json.Unmarshal(query, &in); err != nil {
		return domain.PredictionRequest{}, fmt.Errorf("decode query: %w", err)
	}
	req := in.PredictionRequest
	if req.Query == "" {
		req.Query = in.Text
	}
	if strings.TrimSpace(req.Query) == "" {
		return domain.PredictionRequest{}, &ArgumentError{Param: "query"}
	}
	return req, nil
}
