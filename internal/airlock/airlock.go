// Package airlock is the sanitization boundary between untrusted generator
// output and the strict domain model. It accepts loosely-typed documents
// (strings where maps are expected, numeric strings where numbers are
// expected) and either produces a validated domain.Evaluation or fails with
// a *domain.Failure naming the exact field and value that was rejected.
//
// The airlock is a pure function from raw input to (Evaluation | Failure):
// it performs no I/O and keeps no state between calls.
package airlock

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"arbiter/internal/domain"
	"arbiter/internal/logging"

	"go.uber.org/zap"
)

// topLevelKeys are the only keys a decision document may carry.
var topLevelKeys = map[string]bool{
	"alternatives": true,
	"criteria":     true,
	"scores":       true,
	"methodology":  true,
}

// Sanitize converts a raw decision document into a validated Evaluation.
// All failures are *domain.Failure values; none are fatal.
func Sanitize(raw map[string]any) (*domain.Evaluation, error) {
	log := logging.Get(logging.CategoryAirlock)

	if raw == nil {
		return nil, domain.NewFailure(domain.SchemaError, "", nil, "document is empty")
	}
	for key := range raw {
		if !topLevelKeys[key] {
			return nil, domain.NewFailure(domain.SchemaError, key, raw[key],
				"unexpected top-level key %q", key)
		}
	}

	alternatives, err := sanitizeAlternatives(raw["alternatives"])
	if err != nil {
		return nil, err
	}
	criteria, err := sanitizeCriteria(raw["criteria"])
	if err != nil {
		return nil, err
	}
	scores, err := sanitizeScores(raw["scores"])
	if err != nil {
		return nil, err
	}

	methodology := ""
	if rawMeth, ok := raw["methodology"]; ok {
		methodology, ok = rawMeth.(string)
		if !ok {
			return nil, domain.NewFailure(domain.TypeError, "methodology", rawMeth,
				"methodology must be a string, got %s", typeName(rawMeth))
		}
		methodology = strings.TrimSpace(methodology)
	}

	ev, err := domain.NewEvaluation(alternatives, criteria, scores, methodology)
	if err != nil {
		return nil, err
	}

	log.Debug("document sanitized",
		zap.Int("alternatives", len(ev.Alternatives)),
		zap.Int("criteria", len(ev.Criteria)),
		zap.Int("scores", len(ev.Scores)))
	return ev, nil
}

// sanitizeAlternatives accepts a list of plain strings or maps with a
// required "name" and optional "description".
func sanitizeAlternatives(raw any) ([]domain.Alternative, error) {
	if raw == nil {
		return nil, domain.NewFailure(domain.SchemaError, "alternatives", nil,
			"required key is missing")
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, domain.NewFailure(domain.TypeError, "alternatives", raw,
			"expected a list, got %s", typeName(raw))
	}

	out := make([]domain.Alternative, 0, len(list))
	for i, entry := range list {
		switch v := entry.(type) {
		case string:
			name := strings.TrimSpace(v)
			if name == "" {
				return nil, domain.NewFailure(domain.TypeError,
					fmt.Sprintf("alternatives[%d]", i), v, "alternative name is empty")
			}
			out = append(out, domain.Alternative{Name: name})
		case map[string]any:
			rawName, ok := v["name"]
			if !ok {
				return nil, domain.NewFailure(domain.SchemaError,
					fmt.Sprintf("alternatives[%d]", i), v, "missing key: alternative map needs a \"name\"")
			}
			name, ok := rawName.(string)
			if !ok {
				return nil, domain.NewFailure(domain.TypeError,
					fmt.Sprintf("alternatives[%d].name", i), rawName,
					"name must be a string, got %s", typeName(rawName))
			}
			name = strings.TrimSpace(name)
			if name == "" {
				return nil, domain.NewFailure(domain.TypeError,
					fmt.Sprintf("alternatives[%d].name", i), rawName, "alternative name is empty")
			}
			alt := domain.Alternative{Name: name}
			if rawDesc, ok := v["description"]; ok {
				desc, ok := rawDesc.(string)
				if !ok {
					return nil, domain.NewFailure(domain.TypeError,
						fmt.Sprintf("alternatives[%d].description", i), rawDesc,
						"description must be a string, got %s", typeName(rawDesc))
				}
				alt.Description = desc
			}
			out = append(out, alt)
		default:
			return nil, domain.NewFailure(domain.TypeError,
				fmt.Sprintf("alternatives[%d]", i), entry,
				"expected a string or a map, got %s", typeName(entry))
		}
	}
	return out, nil
}

// sanitizeCriteria accepts a map from criterion name to a bare numeric
// weight, a numeric string, or a map with a required "weight".
func sanitizeCriteria(raw any) ([]domain.Criterion, error) {
	if raw == nil {
		return nil, domain.NewFailure(domain.SchemaError, "criteria", nil,
			"required key is missing")
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, domain.NewFailure(domain.TypeError, "criteria", raw,
			"expected a map, got %s", typeName(raw))
	}

	out := make([]domain.Criterion, 0, len(m))
	for _, name := range sortedKeys(m) {
		entry := m[name]
		field := "criteria." + name

		crit := domain.Criterion{Name: strings.TrimSpace(name)}
		switch v := entry.(type) {
		case map[string]any:
			rawWeight, ok := v["weight"]
			if !ok {
				return nil, domain.NewFailure(domain.SchemaError, field, v,
					"missing key: criterion map needs a \"weight\"")
			}
			w, err := coerceFloat(rawWeight, field+".weight")
			if err != nil {
				return nil, err
			}
			crit.Weight = w
			if rawDesc, ok := v["description"]; ok {
				desc, ok := rawDesc.(string)
				if !ok {
					return nil, domain.NewFailure(domain.TypeError, field+".description", rawDesc,
						"description must be a string, got %s", typeName(rawDesc))
				}
				crit.Description = desc
			}
		default:
			w, err := coerceFloat(entry, field)
			if err != nil {
				return nil, err
			}
			crit.Weight = w
		}
		out = append(out, crit)
	}
	return out, nil
}

// sanitizeScores accepts a map keyed by alternative name whose values are
// maps keyed by criterion name. Reference checks against the sanitized
// alternative/criterion sets happen when the Evaluation is constructed.
func sanitizeScores(raw any) ([]domain.Score, error) {
	if raw == nil {
		return nil, domain.NewFailure(domain.SchemaError, "scores", nil,
			"required key is missing")
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, domain.NewFailure(domain.TypeError, "scores", raw,
			"expected a map, got %s", typeName(raw))
	}

	out := make([]domain.Score, 0, len(m))
	for _, altName := range sortedKeys(m) {
		row, ok := m[altName].(map[string]any)
		if !ok {
			return nil, domain.NewFailure(domain.TypeError, "scores."+altName, m[altName],
				"expected a map of criterion scores, got %s", typeName(m[altName]))
		}
		for _, critName := range sortedKeys(row) {
			field := "scores." + altName + "." + critName
			value, err := coerceFloat(row[critName], field)
			if err != nil {
				return nil, err
			}
			out = append(out, domain.Score{
				Alternative: strings.TrimSpace(altName),
				Criterion:   strings.TrimSpace(critName),
				Value:       value,
			})
		}
	}
	return out, nil
}

// coerceFloat accepts integers, floats, and strings that parse cleanly as
// floats. Anything else fails with a TypeError naming the field and the
// actual type received.
func coerceFloat(raw any, field string) (float64, error) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, domain.NewFailure(domain.TypeError, field, v,
				"string %q does not parse as a number", v)
		}
		f = parsed
	default:
		return 0, domain.NewFailure(domain.TypeError, field, raw,
			"expected a number or numeric string, got %s", typeName(raw))
	}
	// ParseFloat happily yields NaN and ±Inf, and NaN defeats every
	// downstream comparison, so the boundary rejects non-finite values.
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, domain.NewFailure(domain.RangeError, field, raw,
			"value must be a finite number")
	}
	return f, nil
}

// typeName reports the concrete type of a raw value for error messages.
func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
