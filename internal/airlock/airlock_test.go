package airlock

import (
	"errors"
	"math"
	"testing"

	"arbiter/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDocument() map[string]any {
	return map[string]any{
		"alternatives": []any{"A", map[string]any{"name": "B", "description": "fallback"}},
		"criteria": map[string]any{
			"Cost":    0.4,
			"Quality": map[string]any{"weight": "0.6", "description": "build quality"},
		},
		"scores": map[string]any{
			"A": map[string]any{"Cost": 8, "Quality": "7"},
			"B": map[string]any{"Cost": 6.0, "Quality": 9},
		},
		"methodology": "weighted-sum",
	}
}

func failureKind(t *testing.T, err error) domain.FailureKind {
	t.Helper()
	var failure *domain.Failure
	require.ErrorAs(t, err, &failure)
	return failure.Kind
}

func TestSanitize_HappyPath(t *testing.T) {
	ev, err := Sanitize(validDocument())
	require.NoError(t, err)

	assert.Len(t, ev.Alternatives, 2)
	assert.Len(t, ev.Criteria, 2)
	assert.Len(t, ev.Scores, 4)
	assert.Equal(t, "fallback", ev.Alternatives[1].Description)

	// Numeric strings coerce cleanly.
	v, ok := ev.ScoreValue("A", "Quality")
	require.True(t, ok)
	assert.Equal(t, 7.0, v)

	// Weight supplied as a numeric string.
	for _, c := range ev.Criteria {
		if c.Name == "Quality" {
			assert.Equal(t, 0.6, c.Weight)
			assert.Equal(t, "build quality", c.Description)
		}
	}
}

func TestSanitize_TopLevelSchema(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
		kind   domain.FailureKind
	}{
		{"missing alternatives", func(d map[string]any) { delete(d, "alternatives") }, domain.SchemaError},
		{"missing criteria", func(d map[string]any) { delete(d, "criteria") }, domain.SchemaError},
		{"missing scores", func(d map[string]any) { delete(d, "scores") }, domain.SchemaError},
		{"extra key", func(d map[string]any) { d["verdict"] = true }, domain.SchemaError},
		{"alternatives not a list", func(d map[string]any) { d["alternatives"] = "A,B" }, domain.TypeError},
		{"criteria not a map", func(d map[string]any) { d["criteria"] = []any{0.4} }, domain.TypeError},
		{"scores not a map", func(d map[string]any) { d["scores"] = 7 }, domain.TypeError},
		{"methodology not a string", func(d map[string]any) { d["methodology"] = 2 }, domain.TypeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDocument()
			tt.mutate(doc)
			_, err := Sanitize(doc)
			require.Error(t, err)
			assert.Equal(t, tt.kind, failureKind(t, err))
		})
	}
}

func TestSanitize_AlternativeShapes(t *testing.T) {
	doc := validDocument()
	doc["alternatives"] = []any{"A", 42}
	_, err := Sanitize(doc)
	require.Error(t, err)
	assert.Equal(t, domain.TypeError, failureKind(t, err))
	assert.Contains(t, err.Error(), "alternatives[1]")
	assert.Contains(t, err.Error(), "int")

	doc = validDocument()
	doc["alternatives"] = []any{map[string]any{"description": "no name"}, "B"}
	_, err = Sanitize(doc)
	require.Error(t, err)
	assert.Equal(t, domain.SchemaError, failureKind(t, err))
}

func TestSanitize_UnparsableWeight(t *testing.T) {
	doc := validDocument()
	doc["criteria"] = map[string]any{"Cost": "cheap", "Quality": 0.6}
	// Scores reference both criteria; the weight fails first.
	_, err := Sanitize(doc)
	require.Error(t, err)
	assert.Equal(t, domain.TypeError, failureKind(t, err))
	assert.Contains(t, err.Error(), "criteria.Cost")
	assert.Contains(t, err.Error(), "cheap")
}

func TestSanitize_NonFiniteNumbersRejected(t *testing.T) {
	// strconv.ParseFloat accepts "NaN" and "Inf", and NaN would sail past
	// every downstream range and sum comparison.
	tests := []struct {
		name  string
		value any
	}{
		{"NaN string", "NaN"},
		{"Inf string", "Inf"},
		{"negative Inf string", "-Infinity"},
		{"NaN float", math.NaN()},
		{"Inf float", math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDocument()
			doc["criteria"] = map[string]any{"Cost": tt.value, "Quality": 0.6}

			_, err := Sanitize(doc)
			require.Error(t, err)
			assert.Equal(t, domain.RangeError, failureKind(t, err))
			assert.Contains(t, err.Error(), "finite")
		})
	}
}

func TestSanitize_ScoreReferences(t *testing.T) {
	doc := validDocument()
	scores := doc["scores"].(map[string]any)
	scores["Ghost"] = map[string]any{"Cost": 5, "Quality": 5}
	_, err := Sanitize(doc)
	require.Error(t, err)
	assert.Equal(t, domain.ReferenceError, failureKind(t, err))
	assert.Contains(t, err.Error(), "Ghost")
}

func TestSanitize_NameTrimming(t *testing.T) {
	doc := validDocument()
	doc["alternatives"] = []any{"  A  ", map[string]any{"name": "B"}}
	ev, err := Sanitize(doc)
	require.NoError(t, err)
	assert.Equal(t, "A", ev.Alternatives[0].Name)

	doc = validDocument()
	doc["alternatives"] = []any{"   ", "B"}
	_, err = Sanitize(doc)
	require.Error(t, err)
}

func TestDecodeDocument(t *testing.T) {
	direct := `{"alternatives":["A"],"criteria":{"Cost":1.0},"scores":{"A":{"Cost":5}}}`

	t.Run("direct JSON", func(t *testing.T) {
		doc, err := DecodeDocument(direct)
		require.NoError(t, err)
		assert.Contains(t, doc, "alternatives")
	})

	t.Run("markdown fenced", func(t *testing.T) {
		doc, err := DecodeDocument("```json\n" + direct + "\n```")
		require.NoError(t, err)
		assert.Contains(t, doc, "criteria")
	})

	t.Run("embedded in prose", func(t *testing.T) {
		doc, err := DecodeDocument("Here is the matrix you asked for:\n" + direct + "\nHope that helps!")
		require.NoError(t, err)
		assert.Contains(t, doc, "scores")
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := DecodeDocument("{alternatives: [A, B")
		require.Error(t, err)
		var failure *domain.Failure
		require.True(t, errors.As(err, &failure))
		assert.Equal(t, domain.ParseError, failure.Kind)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := DecodeDocument("   \n  ")
		require.Error(t, err)
		assert.Equal(t, domain.ParseError, failureKind(t, err))
	})
}

func TestSanitize_RoundTrip(t *testing.T) {
	ev, err := Sanitize(validDocument())
	require.NoError(t, err)

	again, err := Sanitize(ev.ToDocument())
	require.NoError(t, err)

	assert.Equal(t, ev.Alternatives, again.Alternatives)
	assert.Equal(t, ev.Criteria, again.Criteria)
	assert.Equal(t, ev.Methodology, again.Methodology)
	for _, a := range ev.Alternatives {
		for _, c := range ev.Criteria {
			want, _ := ev.ScoreValue(a.Name, c.Name)
			got, ok := again.ScoreValue(a.Name, c.Name)
			require.True(t, ok)
			assert.Equal(t, want, got, "score %s/%s", a.Name, c.Name)
		}
	}
}
