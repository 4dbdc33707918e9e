package luis

import (
	"github.com/tidwall/gjson"

	"nludevops/internal/jsonval"
)

const instanceKey = "$instance"

// PruneMetadata drops the "$instance" annotations from objects at every depth.
// Arrays and scalars are returned as they are.
func PruneMetadata(r gjson.Result) jsonval.Value {
	if !r.IsObject() {
		return jsonval.FromResult(r)
	}
	var members []jsonval.Member
	r.ForEach(func(k, v gjson.Result) bool {
		if k.String() != instanceKey {
			members = append(members, jsonval.Member{Key: k.String(), Value: PruneMetadata(v)})
		}
		return true
	})
	return jsonval.NewObject(members...)
}

func PruneValue(v jsonval.Value) jsonval.Value {
	if v.Kind() != jsonval.Object {
		return v
	}
	var members []jsonval.Member
	for _, m := range v.Members() {
		if m.Key != instanceKey {
			members = append(members, jsonval.Member{Key: m.Key, Value: PruneValue(m.Value)})
		}
	}
	return jsonval.NewObject(members...)
}
