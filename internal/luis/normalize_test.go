package luis

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nludevops/internal/domain"
)

func mustMapper(t *testing.T, table map[string]string) TypeMapper {
	t.Helper()
	m, err := NewTypeMapper(table)
	require.NoError(t, err)
	return m
}

func TestNormalizeBookFlight(t *testing.T) {
	raw := `{"query":"book a flight to boston","prediction":{"topIntent":"BookFlight","intents":{"BookFlight":{"score":0.91}},"entities":{"city":["boston"],"$instance":{"city":[{"startIndex":17,"length":6,"score":0.8}]}}}}`

	res, err := Normalize([]byte(raw), mustMapper(t, map[string]string{}))
	require.NoError(t, err)

	scored, ok := res.(domain.ScoredLabeledUtterance)
	require.True(t, ok, "expected scored utterance, got %T", res)
	require.NotNil(t, scored.Text)
	require.NotNil(t, scored.Intent)
	assert.Equal(t, "book a flight to boston", *scored.Text)
	assert.Equal(t, "BookFlight", *scored.Intent)
	assert.Equal(t, 0.91, scored.Score)

	require.Len(t, scored.Entities, 1)
	e, ok := scored.Entities[0].(domain.ScoredEntity)
	require.True(t, ok, "expected scored entity, got %T", scored.Entities[0])
	assert.Equal(t, "city", e.EntityType)
	assert.Equal(t, `"boston"`, e.EntityValue.String())
	assert.Equal(t, "boston", e.MatchText)
	assert.Equal(t, 0, e.MatchIndex)
	assert.Equal(t, 0.8, e.Score)
	assert.Nil(t, e.EntityResolution)

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"book a flight to boston","intent":"BookFlight","score":0.91,
		"entities":[{"entityType":"city","entityValue":"boston","matchText":"boston","matchIndex":0,"score":0.8}]}`, string(out))
}

func TestNormalizeEmptyResponse(t *testing.T) {
	for _, raw := range []string{"", "   ", "null"} {
		res, err := Normalize([]byte(raw), TypeMapper{})
		require.NoError(t, err)
		u, ok := res.(domain.LabeledUtterance)
		require.True(t, ok)
		assert.Nil(t, u.Text)
		assert.Nil(t, u.Intent)
		assert.Nil(t, u.Entities)
	}

	res, err := Normalize(nil, TypeMapper{})
	require.NoError(t, err)
	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":null,"intent":null,"entities":null}`, string(out))
}

func TestNormalizeWithoutEntities(t *testing.T) {
	raw := `{"query":"hi","prediction":{"topIntent":"Greet","intents":{"Greet":{}}}}`
	res, err := Normalize([]byte(raw), TypeMapper{})
	require.NoError(t, err)

	u, ok := res.(domain.LabeledUtterance)
	require.True(t, ok, "intent without score must stay unscored, got %T", res)
	assert.Equal(t, "Greet", *u.Intent)
	assert.Nil(t, u.Entities)
}

func TestNormalizeEmptyEntityGroupIsNotNull(t *testing.T) {
	raw := `{"query":"hi","prediction":{"topIntent":"Greet","entities":{}}}`
	res, err := Normalize([]byte(raw), TypeMapper{})
	require.NoError(t, err)
	assert.NotNil(t, res.Labeled().Entities)
	assert.Empty(t, res.Labeled().Entities)
}

func TestNormalizeScoredSelectionIsIndependent(t *testing.T) {
	raw := `{"query":"two and two","prediction":{
		"topIntent":"Add",
		"intents":{"Add":{"score":0.7}},
		"entities":{
			"number":[2,2],
			"$instance":{"number":[
				{"startIndex":0,"length":3},
				{"startIndex":8,"length":3,"score":0.5}
			]}
		}}}`

	res, err := Normalize([]byte(raw), TypeMapper{})
	require.NoError(t, err)
	_, ok := domain.IntentScore(res)
	assert.True(t, ok)

	entities := res.Labeled().Entities
	require.Len(t, entities, 2)
	_, scored := domain.EntityScore(entities[0])
	assert.False(t, scored)
	score, scored := domain.EntityScore(entities[1])
	assert.True(t, scored)
	assert.Equal(t, 0.5, score)
	assert.Equal(t, 1, entities[1].Base().MatchIndex)

	raw = `{"query":"two","prediction":{"topIntent":"Add","intents":{"Other":{"score":0.7}}}}`
	res, err = Normalize([]byte(raw), TypeMapper{})
	require.NoError(t, err)
	_, ok = domain.IntentScore(res)
	assert.False(t, ok, "score of a different intent must not be used")
}

func TestNormalizeMapsPrunesAndOrders(t *testing.T) {
	raw := `{"query":"order 3 pizzas to Seattle and 3 sodas","prediction":{
		"topIntent":"Order",
		"intents":{"Order":{"score":0.88}},
		"entities":{
			"builtin.number":[3,3],
			"address":[{"city":["Seattle"],"$instance":{"city":[{"startIndex":18,"length":7}]}}],
			"$instance":{
				"builtin.number":[
					{"startIndex":6,"length":1,"resolution":{"value":"3"}},
					{"startIndex":30,"length":1}
				],
				"address":[{"startIndex":18,"length":7,"score":0.6}]
			}
		}}}`

	res, err := Normalize([]byte(raw), mustMapper(t, map[string]string{"quantity": "number"}))
	require.NoError(t, err)

	entities := res.Labeled().Entities
	require.Len(t, entities, 3)

	first := entities[0].Base()
	assert.Equal(t, "quantity", first.EntityType)
	assert.Equal(t, "3", first.MatchText)
	assert.Equal(t, 0, first.MatchIndex)
	require.NotNil(t, first.EntityResolution)
	assert.Equal(t, `{"value":"3"}`, first.EntityResolution.String())

	second := entities[1].Base()
	assert.Equal(t, "quantity", second.EntityType)
	assert.Equal(t, 1, second.MatchIndex)
	assert.Nil(t, second.EntityResolution)

	third, ok := entities[2].(domain.ScoredEntity)
	require.True(t, ok)
	assert.Equal(t, "address", third.EntityType)
	assert.Equal(t, "Seattle", third.MatchText)
	assert.Equal(t, `{"city":["Seattle"]}`, third.EntityValue.String())
}

func TestNormalizeEchoedQueryIsText(t *testing.T) {
	raw := `{"query":"Book A Flight","prediction":{"topIntent":"BookFlight"}}`
	res, err := Normalize([]byte(raw), TypeMapper{})
	require.NoError(t, err)
	assert.Equal(t, "Book A Flight", *res.Labeled().Text)
}

func TestNormalizeRejectsMalformedResponses(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantType string
	}{
		{
			name:     "length mismatch",
			raw:      `{"query":"a b","prediction":{"topIntent":"X","entities":{"letter":["a","b"],"$instance":{"letter":[{"startIndex":0,"length":1}]}}}}`,
			wantType: "letter",
		},
		{
			name:     "missing instance group",
			raw:      `{"query":"a b","prediction":{"topIntent":"X","entities":{"letter":["a"]}}}`,
			wantType: "letter",
		},
		{
			name:     "span outside query",
			raw:      `{"query":"a b","prediction":{"topIntent":"X","entities":{"letter":["z"],"$instance":{"letter":[{"startIndex":9,"length":1}]}}}}`,
			wantType: "letter",
		},
		{
			name:     "missing offsets",
			raw:      `{"query":"a b","prediction":{"topIntent":"X","entities":{"letter":["a"],"$instance":{"letter":[{"score":0.2}]}}}}`,
			wantType: "letter",
		},
		{
			name:     "start offset overflows int",
			raw:      `{"query":"a b","prediction":{"topIntent":"X","entities":{"letter":["a"],"$instance":{"letter":[{"startIndex":9223372036854775807,"length":1}]}}}}`,
			wantType: "letter",
		},
		{
			name:     "length overflows int",
			raw:      `{"query":"a b","prediction":{"topIntent":"X","entities":{"letter":["a"],"$instance":{"letter":[{"startIndex":0,"length":1e300}]}}}}`,
			wantType: "letter",
		},
		{
			name:     "fractional offsets",
			raw:      `{"query":"book a flight to boston","prediction":{"topIntent":"X","entities":{"city":["boston"],"$instance":{"city":[{"startIndex":17.9,"length":6.4}]}}}}`,
			wantType: "city",
		},
		{
			name: "invalid json",
			raw:  `{"query":`,
		},
		{
			name: "not an object",
			raw:  `[1,2]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Normalize([]byte(tt.raw), TypeMapper{})
			assert.Nil(t, res)
			var fe *FormatError
			require.True(t, errors.As(err, &fe), "expected FormatError, got %v", err)
			assert.Equal(t, tt.wantType, fe.Type)
		})
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	raw := []byte(`{"query":"x y z","prediction":{"topIntent":"T","entities":{
		"z":["z"],"y":["y"],"x":["x"],
		"$instance":{"x":[{"startIndex":0,"length":1}],"y":[{"startIndex":2,"length":1}],"z":[{"startIndex":4,"length":1}]}}}}`)

	first, err := Normalize(raw, TypeMapper{})
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Normalize(raw, TypeMapper{})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	var types []string
	for _, e := range first.Labeled().Entities {
		types = append(types, e.Base().EntityType)
	}
	assert.Equal(t, []string{"z", "y", "x"}, types)
}
