// Package fracture classifies pipeline failures into a severity taxonomy.
// A fracture is not the failure itself: it is the failure re-labeled for the
// correction loop, carrying evidence of what went wrong and a hint telling
// the generator how to fix its own output.
package fracture

import (
	"errors"
	"fmt"
	"strings"

	"arbiter/internal/domain"
	"arbiter/internal/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind is the fracture taxonomy.
type Kind string

const (
	SyntaxTear    Kind = "syntax_tear"    // output is not parseable
	LogicFracture Kind = "logic_fracture" // output parsed but violates the schema
	Hallucination Kind = "hallucination"  // output references things that do not exist
	SafetyVoid    Kind = "safety_void"    // output is a refusal or safety deflection
)

// Base severities per kind. Final severity scales with task difficulty and
// is clamped at 1.0.
var baseSeverity = map[Kind]float64{
	SyntaxTear:    0.3,
	LogicFracture: 0.5,
	Hallucination: 0.6,
	SafetyVoid:    0.9,
}

// correctionHints are the per-kind instructions fed back to the generator.
var correctionHints = map[Kind]string{
	SyntaxTear:    "Ensure the output is a single syntactically valid JSON object; fix unbalanced delimiters and quoting.",
	LogicFracture: "Conform to the required schema: alternatives, criteria with weights summing to 1.0, and a complete score matrix.",
	Hallucination: "Only reference alternatives and criteria that actually appear in the document.",
	SafetyVoid:    "Rephrase the response to be helpful and harmless; return the requested structured content.",
}

// Fracture is one classified failure.
type Fracture struct {
	ID             string  `json:"id"`
	Kind           Kind    `json:"kind"`
	Severity       float64 `json:"severity"`
	Evidence       string  `json:"evidence"`
	Context        string  `json:"context"`
	CorrectionHint string  `json:"correctionHint"`
}

// phrasePattern maps a lowercase cue phrase to the kind it indicates.
// Order matters: safety cues are checked before syntax and logic cues.
type phrasePattern struct {
	phrase string
	kind   Kind
}

var phrasePatterns = []phrasePattern{
	{"i cannot", SafetyVoid},
	{"i can't", SafetyVoid},
	{"i will not", SafetyVoid},
	{"i won't", SafetyVoid},
	{"harmful", SafetyVoid},
	{"dangerous", SafetyVoid},
	{"against my policy", SafetyVoid},

	{"unexpected token", SyntaxTear},
	{"invalid json", SyntaxTear},
	{"syntax error", SyntaxTear},
	{"unexpected end of", SyntaxTear},

	{"does not exist", Hallucination},
	{"no such", Hallucination},
	{"unknown alternative", Hallucination},
	{"unknown criterion", Hallucination},

	{"missing key", LogicFracture},
	{"wrong type", LogicFracture},
	{"out of range", LogicFracture},
	{"must sum to", LogicFracture},
}

// severityFor computes min(1.0, base + (difficulty-1) * 0.1). Difficulty is
// a caller-supplied measure of how demanding the original task was; values
// below 1 are treated as 1.
func severityFor(kind Kind, difficulty int) float64 {
	if difficulty < 1 {
		difficulty = 1
	}
	s := baseSeverity[kind] + float64(difficulty-1)*0.1
	if s > 1.0 {
		s = 1.0
	}
	return s
}

// hintFor returns the correction hint for a kind; LogicFracture hints name
// the schema violation directly when the failure message identifies one.
func hintFor(kind Kind, evidence string) string {
	hint := correctionHints[kind]
	if kind == LogicFracture && strings.Contains(strings.ToLower(evidence), "missing key") {
		return fmt.Sprintf("Add the field named in the failure: %s", evidence)
	}
	return hint
}

func newFracture(kind Kind, severity float64, evidence, context string) Fracture {
	return Fracture{
		ID:             uuid.NewString(),
		Kind:           kind,
		Severity:       severity,
		Evidence:       evidence,
		Context:        context,
		CorrectionHint: hintFor(kind, evidence),
	}
}

// Classify maps a raised failure to exactly one fracture. The rule chain is
// checked in order, first match wins:
//
//  1. structured parse failure of the document   → SyntaxTear
//  2. airlock validation failure                 → LogicFracture
//  3. phrase scan over the failure message       → matched kind
//  4. anything else                              → LogicFracture
func Classify(err error, context string, difficulty int) []Fracture {
	if err == nil {
		return nil
	}

	var failure *domain.Failure
	kind := LogicFracture
	switch {
	case errors.As(err, &failure) && failure.Kind == domain.ParseError:
		kind = SyntaxTear
	case errors.As(err, &failure):
		kind = LogicFracture
	default:
		if matched, ok := matchPhrase(err.Error()); ok {
			kind = matched
		}
	}

	f := newFracture(kind, severityFor(kind, difficulty), err.Error(), context)
	logging.Get(logging.CategoryFracture).Debug("failure classified",
		zap.String("kind", string(f.Kind)),
		zap.Float64("severity", f.Severity),
		zap.String("context", context))
	return []Fracture{f}
}

// ScanText applies the phrase patterns directly against arbitrary output
// text, with no raised failure involved. Matches come back at flat base
// severity (difficulty does not apply); at most one fracture per kind.
// This catches output that validated nowhere but still looks unsafe.
func ScanText(output, context string) []Fracture {
	lower := strings.ToLower(output)
	seen := make(map[Kind]bool, len(baseSeverity))
	var out []Fracture
	for _, p := range phrasePatterns {
		if seen[p.kind] || !strings.Contains(lower, p.phrase) {
			continue
		}
		seen[p.kind] = true
		evidence := fmt.Sprintf("output contains %q", p.phrase)
		out = append(out, newFracture(p.kind, baseSeverity[p.kind], evidence, context))
	}
	return out
}

// matchPhrase reports the first kind whose cue phrase appears in the text.
func matchPhrase(text string) (Kind, bool) {
	lower := strings.ToLower(text)
	for _, p := range phrasePatterns {
		if strings.Contains(lower, p.phrase) {
			return p.kind, true
		}
	}
	return "", false
}

// MostSevere returns the highest severity in a fracture set, 0 for empty.
func MostSevere(fractures []Fracture) float64 {
	max := 0.0
	for _, f := range fractures {
		if f.Severity > max {
			max = f.Severity
		}
	}
	return max
}
