package domain

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"nludevops/internal/jsonval"
)

// DecodeResult reads the JSON form produced by Result.MarshalJSON back into the
// matching variant. A present "score" selects the scored variant.
func DecodeResult(data []byte) (Result, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("decode result: invalid json")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("decode result: expected object, got %s", root.Type)
	}

	u := LabeledUtterance{
		Text:   optionalString(root.Get("text")),
		Intent: optionalString(root.Get("intent")),
	}

	if entities := root.Get("entities"); entities.IsArray() {
		u.Entities = []LabeledEntity{}
		var decodeErr error
		entities.ForEach(func(_, item gjson.Result) bool {
			e, err := decodeEntity(item)
			if err != nil {
				decodeErr = err
				return false
			}
			u.Entities = append(u.Entities, e)
			return true
		})
		if decodeErr != nil {
			return nil, decodeErr
		}
	}

	if score := root.Get("score"); score.Type == gjson.Number {
		return ScoredLabeledUtterance{LabeledUtterance: u, Score: score.Float()}, nil
	}
	return u, nil
}

func decodeEntity(item gjson.Result) (LabeledEntity, error) {
	if !item.IsObject() {
		return nil, fmt.Errorf("decode result: entity must be an object")
	}
	e := Entity{
		EntityType:  item.Get("entityType").String(),
		EntityValue: jsonval.FromResult(item.Get("entityValue")),
		MatchText:   item.Get("matchText").String(),
		MatchIndex:  int(item.Get("matchIndex").Int()),
	}
	if res := item.Get("entityResolution"); res.Exists() && res.Type != gjson.Null {
		v := jsonval.FromResult(res)
		e.EntityResolution = &v
	}
	if score := item.Get("score"); score.Type == gjson.Number {
		return ScoredEntity{Entity: e, Score: score.Float()}, nil
	}
	return e, nil
}

func optionalString(r gjson.Result) *string {
	if r.Type != gjson.String {
		return nil
	}
	s := r.Str
	return &s
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var raw struct {
		Index  int             `json:"index"`
		Query  json.RawMessage `json:"query"`
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := Outcome{Index: raw.Index, Query: raw.Query, Error: raw.Error}
	if len(raw.Result) > 0 && string(raw.Result) != "null" {
		res, err := DecodeResult(raw.Result)
		if err != nil {
			return err
		}
		out.Result = res
	}
	*o = out
	return nil
}
