package luis

import (
	"bytes"
	"fmt"
	"math"

	"github.com/tidwall/gjson"

	"nludevops/internal/domain"
	"nludevops/internal/jsonval"
)

// Normalize converts a raw v3 prediction response into a labeled utterance.
// It either succeeds for the whole response or returns an error and no result.
func Normalize(raw []byte, mapper TypeMapper) (domain.Result, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return domain.LabeledUtterance{}, nil
	}
	if !gjson.ValidBytes(trimmed) {
		return nil, &FormatError{Reason: "response is not valid json"}
	}
	root := gjson.ParseBytes(trimmed)
	if !root.IsObject() {
		return nil, &FormatError{Reason: "response is not a json object"}
	}

	query := field(root, "query")
	prediction := field(root, "prediction")
	if prediction.Exists() && prediction.Type != gjson.Null && !prediction.IsObject() {
		return nil, &FormatError{Reason: "prediction is not an object"}
	}

	var text *string
	if query.Type == gjson.String {
		s := query.Str
		text = &s
	}

	var intent *string
	topIntent := field(prediction, "topIntent")
	if topIntent.Type == gjson.String {
		s := topIntent.Str
		intent = &s
	}

	entities, err := normalizeEntities(query.String(), field(prediction, "entities"), mapper)
	if err != nil {
		return nil, err
	}

	u := domain.LabeledUtterance{Text: text, Intent: intent, Entities: entities}
	if intent != nil {
		score := field(field(field(prediction, "intents"), *intent), "score")
		if score.Type == gjson.Number {
			return domain.ScoredLabeledUtterance{LabeledUtterance: u, Score: score.Float()}, nil
		}
	}
	return u, nil
}

func normalizeEntities(utterance string, entities gjson.Result, mapper TypeMapper) ([]domain.LabeledEntity, error) {
	if !entities.Exists() || entities.Type == gjson.Null {
		return nil, nil
	}
	if !entities.IsObject() {
		return nil, &FormatError{Reason: "entities is not an object"}
	}

	instance := field(entities, instanceKey)
	out := []domain.LabeledEntity{}
	var err error
	entities.ForEach(func(k, values gjson.Result) bool {
		entityType := k.String()
		if entityType == instanceKey {
			return true
		}
		var group []domain.LabeledEntity
		group, err = normalizeGroup(utterance, entityType, values, field(instance, entityType), mapper)
		if err != nil {
			return false
		}
		out = append(out, group...)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeGroup(utterance, entityType string, values, metadata gjson.Result, mapper TypeMapper) ([]domain.LabeledEntity, error) {
	if !values.IsArray() {
		return nil, &FormatError{Type: entityType, Reason: "entity values are not an array"}
	}
	if !metadata.IsArray() {
		return nil, &FormatError{Type: entityType, Reason: "missing instance metadata"}
	}
	vs := values.Array()
	ms := metadata.Array()
	if len(vs) != len(ms) {
		return nil, &FormatError{Type: entityType, Reason: fmt.Sprintf("%d values but %d instance metadata records", len(vs), len(ms))}
	}

	out := make([]domain.LabeledEntity, 0, len(vs))
	for i := range vs {
		e, err := normalizeEntity(utterance, entityType, vs[i], ms[i], mapper)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func normalizeEntity(utterance, entityType string, value, metadata gjson.Result, mapper TypeMapper) (domain.LabeledEntity, error) {
	startIndex, ok := spanOffset(field(metadata, "startIndex"))
	if !ok {
		return nil, &FormatError{Type: entityType, Reason: "instance metadata requires an integer startIndex"}
	}
	length, ok := spanOffset(field(metadata, "length"))
	if !ok {
		return nil, &FormatError{Type: entityType, Reason: "instance metadata requires an integer length"}
	}

	matchText, matchIndex, err := AlignSpan(utterance, startIndex, length)
	if err != nil {
		if fe, ok := err.(*FormatError); ok {
			fe.Type = entityType
		}
		return nil, err
	}

	e := domain.Entity{
		EntityType:  mapper.Map(entityType),
		EntityValue: PruneMetadata(value),
		MatchText:   matchText,
		MatchIndex:  matchIndex,
	}
	if res := field(metadata, "resolution"); res.Exists() && res.Type != gjson.Null {
		v := jsonval.FromResult(res)
		e.EntityResolution = &v
	}

	if score := field(metadata, "score"); score.Type == gjson.Number {
		return domain.ScoredEntity{Entity: e, Score: score.Float()}, nil
	}
	return e, nil
}

// spanOffset accepts only whole numbers that fit in an int.
func spanOffset(r gjson.Result) (int, bool) {
	if r.Type != gjson.Number {
		return 0, false
	}
	f := r.Float()
	if f != math.Trunc(f) || f < float64(math.MinInt) || f >= float64(math.MaxInt) {
		return 0, false
	}
	return int(f), true
}

// field looks up an object key without interpreting it as a gjson path, since
// entity and intent names may contain path syntax.
func field(obj gjson.Result, key string) gjson.Result {
	var out gjson.Result
	if !obj.IsObject() {
		return out
	}
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			out = v
			return false
		}
		return true
	})
	return out
}
