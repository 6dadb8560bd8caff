// Package domain holds the validated decision-matrix entities: alternatives,
// weighted criteria, scores, and the Evaluation aggregate that owns them.
// An Evaluation can only be built through NewEvaluation, which enforces the
// structural invariants; once constructed it is treated as immutable and
// any reweighting produces a fresh Evaluation.
package domain

import (
	"math"
	"strings"
)

// MethodologyWeightedSum is the only methodology this core computes.
// Other tags are rejected at construction time.
const MethodologyWeightedSum = "weighted-sum"

// WeightSumTolerance is the allowed drift of the criterion weight sum from 1.0.
const WeightSumTolerance = 0.01

// Score values live on a fixed 0-10 scale.
const (
	ScoreMin = 0.0
	ScoreMax = 10.0
)

// Alternative is one option under evaluation.
type Alternative struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Criterion is one weighted dimension of the decision.
type Criterion struct {
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description,omitempty"`
}

// Score associates one alternative with one criterion. The canonical field
// name for the magnitude is Value.
type Score struct {
	Alternative   string  `json:"alternative"`
	Criterion     string  `json:"criterion"`
	Value         float64 `json:"value"`
	Justification string  `json:"justification,omitempty"`
}

// Evaluation is the validated aggregate. Alternatives and Criteria keep their
// input order; Scores are complete (exactly one per alternative/criterion
// pair, checked at construction).
type Evaluation struct {
	Alternatives []Alternative `json:"alternatives"`
	Criteria     []Criterion   `json:"criteria"`
	Scores       []Score       `json:"scores"`
	Methodology  string        `json:"methodology"`

	// scoreIndex is built once at construction for O(1) lookup.
	scoreIndex map[string]float64
}

func scoreKey(alternative, criterion string) string {
	return alternative + "\x00" + criterion
}

// NewEvaluation validates the pieces and assembles the aggregate.
// It enforces, in order:
//   - methodology is "weighted-sum" (empty defaults to it)
//   - names are non-empty after trimming and unique within their set
//   - criterion weights lie in [0,1] and sum to 1.0 within tolerance
//   - every (alternative, criterion) pair has exactly one score
//
// Failures are returned as *Failure values naming the offending field.
func NewEvaluation(alternatives []Alternative, criteria []Criterion, scores []Score, methodology string) (*Evaluation, error) {
	if methodology == "" {
		methodology = MethodologyWeightedSum
	}
	if methodology != MethodologyWeightedSum {
		return nil, NewFailure(TypeError, "methodology", methodology,
			"unsupported methodology, only %q is computed", MethodologyWeightedSum)
	}

	if len(alternatives) == 0 {
		return nil, NewFailure(SchemaError, "alternatives", nil, "at least one alternative is required")
	}
	if len(criteria) == 0 {
		return nil, NewFailure(SchemaError, "criteria", nil, "at least one criterion is required")
	}

	altSeen := make(map[string]bool, len(alternatives))
	for i, alt := range alternatives {
		name := strings.TrimSpace(alt.Name)
		if name == "" {
			return nil, NewFailure(TypeError, "alternatives", alt.Name,
				"alternative %d has an empty name", i)
		}
		if altSeen[name] {
			return nil, NewFailure(TypeError, "alternatives", name,
				"duplicate alternative name %q", name)
		}
		altSeen[name] = true
		alternatives[i].Name = name
	}

	critSeen := make(map[string]bool, len(criteria))
	weightSum := 0.0
	for i, crit := range criteria {
		name := strings.TrimSpace(crit.Name)
		if name == "" {
			return nil, NewFailure(TypeError, "criteria", crit.Name,
				"criterion %d has an empty name", i)
		}
		if critSeen[name] {
			return nil, NewFailure(TypeError, "criteria", name,
				"duplicate criterion name %q", name)
		}
		critSeen[name] = true
		criteria[i].Name = name

		// Written as a negated conjunction so NaN fails the check too.
		if !(crit.Weight >= 0 && crit.Weight <= 1) {
			return nil, NewFailure(RangeError, "criteria."+name+".weight", crit.Weight,
				"weight must be between 0.0 and 1.0")
		}
		weightSum += crit.Weight
	}
	if math.Abs(weightSum-1.0) > WeightSumTolerance {
		return nil, NewFailure(InvariantError, "criteria", weightSum,
			"criterion weights must sum to 1.0, got %.4f", weightSum)
	}

	index := make(map[string]float64, len(scores))
	for _, sc := range scores {
		alt := strings.TrimSpace(sc.Alternative)
		crit := strings.TrimSpace(sc.Criterion)
		if !altSeen[alt] {
			return nil, NewFailure(ReferenceError, "scores."+alt, sc.Value,
				"score references unknown alternative %q", alt)
		}
		if !critSeen[crit] {
			return nil, NewFailure(ReferenceError, "scores."+alt+"."+crit, sc.Value,
				"score references unknown criterion %q", crit)
		}
		if !(sc.Value >= ScoreMin && sc.Value <= ScoreMax) {
			return nil, NewFailure(RangeError, "scores."+alt+"."+crit, sc.Value,
				"score must be between %.1f and %.1f", ScoreMin, ScoreMax)
		}
		key := scoreKey(alt, crit)
		if _, dup := index[key]; dup {
			return nil, NewFailure(InvariantError, "scores."+alt+"."+crit, sc.Value,
				"duplicate score for alternative %q, criterion %q", alt, crit)
		}
		index[key] = sc.Value
	}

	// Missing pairs are a validation failure, never a default-to-zero.
	for _, alt := range alternatives {
		for _, crit := range criteria {
			if _, ok := index[scoreKey(alt.Name, crit.Name)]; !ok {
				return nil, NewFailure(InvariantError, "scores."+alt.Name+"."+crit.Name, nil,
					"missing key: no score for alternative %q on criterion %q", alt.Name, crit.Name)
			}
		}
	}

	return &Evaluation{
		Alternatives: alternatives,
		Criteria:     criteria,
		Scores:       scores,
		Methodology:  methodology,
		scoreIndex:   index,
	}, nil
}

// ScoreValue returns the score for the given pair. The second return is false
// only if the aggregate was built without that pair, which NewEvaluation
// makes impossible; callers treat false as a programming-contract violation.
func (e *Evaluation) ScoreValue(alternative, criterion string) (float64, bool) {
	v, ok := e.scoreIndex[scoreKey(alternative, criterion)]
	return v, ok
}

// Reweight builds a new Evaluation with the given criterion weights, keeping
// alternatives, scores, and methodology. The weights slice must be parallel
// to e.Criteria. The new aggregate goes back through full validation.
func (e *Evaluation) Reweight(weights []float64) (*Evaluation, error) {
	if len(weights) != len(e.Criteria) {
		return nil, NewFailure(InvariantError, "criteria", len(weights),
			"reweight needs %d weights, got %d", len(e.Criteria), len(weights))
	}
	criteria := make([]Criterion, len(e.Criteria))
	copy(criteria, e.Criteria)
	for i := range criteria {
		criteria[i].Weight = weights[i]
	}
	alternatives := make([]Alternative, len(e.Alternatives))
	copy(alternatives, e.Alternatives)
	scores := make([]Score, len(e.Scores))
	copy(scores, e.Scores)
	return NewEvaluation(alternatives, criteria, scores, e.Methodology)
}

// ToDocument renders the Evaluation in the raw input shape accepted by the
// airlock. Persisting this document and re-validating it reconstructs an
// identical Evaluation, which is the round-trip contract external stores
// rely on.
func (e *Evaluation) ToDocument() map[string]any {
	alts := make([]any, 0, len(e.Alternatives))
	for _, a := range e.Alternatives {
		if a.Description == "" {
			alts = append(alts, a.Name)
			continue
		}
		alts = append(alts, map[string]any{"name": a.Name, "description": a.Description})
	}

	crits := make(map[string]any, len(e.Criteria))
	for _, c := range e.Criteria {
		if c.Description == "" {
			crits[c.Name] = c.Weight
			continue
		}
		crits[c.Name] = map[string]any{"weight": c.Weight, "description": c.Description}
	}

	scores := make(map[string]any, len(e.Alternatives))
	for _, a := range e.Alternatives {
		row := make(map[string]any, len(e.Criteria))
		for _, c := range e.Criteria {
			v, _ := e.ScoreValue(a.Name, c.Name)
			row[c.Name] = v
		}
		scores[a.Name] = row
	}

	return map[string]any{
		"alternatives": alts,
		"criteria":     crits,
		"scores":       scores,
		"methodology":  e.Methodology,
	}
}
