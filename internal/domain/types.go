package domain

import (
	"encoding/json"
	"time"

	"nludevops/internal/jsonval"
)

// LabeledEntity is either an Entity or a ScoredEntity.
type LabeledEntity interface {
	Base() Entity
	labeledEntity()
}

type Entity struct {
	EntityType       string
	EntityValue      jsonval.Value
	EntityResolution *jsonval.Value
	MatchText        string
	MatchIndex       int
}

type ScoredEntity struct {
	Entity
	Score float64
}

func (e Entity) Base() Entity { return e }
func (Entity) labeledEntity() {}

func (e ScoredEntity) Base() Entity { return e.Entity }
func (ScoredEntity) labeledEntity() {}

func EntityScore(e LabeledEntity) (float64, bool) {
	if s, ok := e.(ScoredEntity); ok {
		return s.Score, true
	}
	return 0, false
}

type entityJSON struct {
	EntityType       string         `json:"entityType"`
	EntityValue      jsonval.Value  `json:"entityValue"`
	EntityResolution *jsonval.Value `json:"entityResolution,omitempty"`
	MatchText        string         `json:"matchText"`
	MatchIndex       int            `json:"matchIndex"`
	Score            *float64       `json:"score,omitempty"`
}

func (e Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.toJSON())
}

func (e ScoredEntity) MarshalJSON() ([]byte, error) {
	out := e.Entity.toJSON()
	score := e.Score
	out.Score = &score
	return json.Marshal(out)
}

func (e Entity) toJSON() entityJSON {
	return entityJSON{
		EntityType:       e.EntityType,
		EntityValue:      e.EntityValue,
		EntityResolution: e.EntityResolution,
		MatchText:        e.MatchText,
		MatchIndex:       e.MatchIndex,
	}
}

// Result is either a LabeledUtterance or a ScoredLabeledUtterance.
type Result interface {
	Labeled() LabeledUtterance
	result()
}

// LabeledUtterance fields are nil when the service returned nothing for them.
// A nil Entities slice means no entity group at all, not zero entities.
type LabeledUtterance struct {
	Text     *string
	Intent   *string
	Entities []LabeledEntity
}

type ScoredLabeledUtterance struct {
	LabeledUtterance
	Score float64
}

func (u LabeledUtterance) Labeled() LabeledUtterance { return u }
func (LabeledUtterance) result() {}

func (u ScoredLabeledUtterance) Labeled() LabeledUtterance { return u.LabeledUtterance }
func (ScoredLabeledUtterance) result() {}

func IntentScore(r Result) (float64, bool) {
	if s, ok := r.(ScoredLabeledUtterance); ok {
		return s.Score, true
	}
	return 0, false
}

type utteranceJSON struct {
	Text     *string         `json:"text"`
	Intent   *string         `json:"intent"`
	Score    *float64        `json:"score,omitempty"`
	Entities []LabeledEntity `json:"entities"`
}

func (u LabeledUtterance) MarshalJSON() ([]byte, error) {
	return json.Marshal(utteranceJSON{Text: u.Text, Intent: u.Intent, Entities: u.Entities})
}

func (u ScoredLabeledUtterance) MarshalJSON() ([]byte, error) {
	score := u.Score
	return json.Marshal(utteranceJSON{Text: u.Text, Intent: u.Intent, Score: &score, Entities: u.Entities})
}

// PredictionRequest is the body sent to the prediction endpoint.
type PredictionRequest struct {
	Query            string             `json:"query"`
	Options          *PredictionOptions `json:"options,omitempty"`
	ExternalEntities json.RawMessage    `json:"externalEntities,omitempty"`
	DynamicLists     json.RawMessage    `json:"dynamicLists,omitempty"`
}

type PredictionOptions struct {
	DatetimeReference      string `json:"datetimeReference,omitempty"`
	PreferExternalEntities bool   `json:"preferExternalEntities,omitempty"`
}

type Outcome struct {
	Index  int             `json:"index"`
	Query  json.RawMessage `json:"query"`
	Result Result          `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type Run struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcomes   []Outcome `json:"outcomes"`
}

func (r Run) FailedCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Error != "" {
			n++
		}
	}
	return n
}
