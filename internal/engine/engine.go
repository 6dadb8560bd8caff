// Package engine computes deterministic results over a validated Evaluation:
// weighted-sum totals, a stable ranking, per-criterion breakdowns, and a
// sensitivity analysis that perturbs the dominant criterion to test whether
// the winner is robust. The engine is closed over already-validated data and
// raises no domain errors of its own.
package engine

import (
	"fmt"
	"sort"

	"arbiter/internal/domain"
	"arbiter/internal/logging"

	"go.uber.org/zap"
)

// sensitivityReduction is the fraction removed from the dominant weight when
// testing robustness.
const sensitivityReduction = 0.20

// RankedAlternative is one row of the final ranking. Ranks are 1-based and
// contiguous; ties keep the original input order of the tied alternatives.
type RankedAlternative struct {
	Rank  int     `json:"rank"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Contribution is what one criterion adds to one alternative's total.
type Contribution struct {
	Raw      float64 `json:"raw"`
	Weighted float64 `json:"weighted"`
}

// SensitivityWarning reports a winner change under reweighting.
type SensitivityWarning struct {
	Criterion string  `json:"criterion"`
	OldWeight float64 `json:"oldWeight"`
	NewWeight float64 `json:"newWeight"`
	OldWinner string  `json:"oldWinner"`
	NewWinner string  `json:"newWinner"`
}

// Sensitivity is the outcome of the robustness check.
type Sensitivity struct {
	IsRobust bool                 `json:"isRobust"`
	Warnings []SensitivityWarning `json:"warnings"`
}

// Report is the full computation result for one Evaluation.
type Report struct {
	Rankings       []RankedAlternative                `json:"rankings"`
	DetailedScores map[string]map[string]Contribution `json:"detailedScores"`
	Sensitivity    Sensitivity                        `json:"sensitivity"`
}

// Winner returns the top-ranked alternative name, or "" for an empty report.
func (r *Report) Winner() string {
	if len(r.Rankings) == 0 {
		return ""
	}
	return r.Rankings[0].Name
}

// Evaluate computes the weighted-sum report for a validated Evaluation.
// The only error it can return is a programming-contract violation (a score
// missing despite construction-time validation), which is internal and not
// part of the recoverable failure taxonomy.
func Evaluate(ev *domain.Evaluation) (*Report, error) {
	log := logging.Get(logging.CategoryEngine)

	rankings, detailed, err := rank(ev)
	if err != nil {
		return nil, err
	}

	sensitivity, err := analyzeSensitivity(ev, rankings)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Rankings:       rankings,
		DetailedScores: detailed,
		Sensitivity:    sensitivity,
	}
	log.Debug("evaluation complete",
		zap.String("winner", report.Winner()),
		zap.Bool("robust", sensitivity.IsRobust))
	return report, nil
}

// rank computes totals and the stable descending ranking.
func rank(ev *domain.Evaluation) ([]RankedAlternative, map[string]map[string]Contribution, error) {
	rankings := make([]RankedAlternative, 0, len(ev.Alternatives))
	detailed := make(map[string]map[string]Contribution, len(ev.Alternatives))

	for _, alt := range ev.Alternatives {
		total := 0.0
		breakdown := make(map[string]Contribution, len(ev.Criteria))
		for _, crit := range ev.Criteria {
			raw, ok := ev.ScoreValue(alt.Name, crit.Name)
			if !ok {
				return nil, nil, fmt.Errorf(
					"internal: validated evaluation has no score for %q/%q", alt.Name, crit.Name)
			}
			weighted := crit.Weight * raw
			breakdown[crit.Name] = Contribution{Raw: raw, Weighted: weighted}
			total += weighted
		}
		detailed[alt.Name] = breakdown
		rankings = append(rankings, RankedAlternative{Name: alt.Name, Score: total})
	}

	// Stable sort keeps input order for equal totals.
	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].Score > rankings[j].Score
	})
	for i := range rankings {
		rankings[i].Rank = i + 1
	}
	return rankings, detailed, nil
}

// analyzeSensitivity reduces the dominant criterion's weight by 20%,
// redistributes the reduction to the remaining criteria in proportion to
// their existing weights, and reports whether the winner changes. With
// fewer than two criteria the evaluation is robust by definition.
func analyzeSensitivity(ev *domain.Evaluation, rankings []RankedAlternative) (Sensitivity, error) {
	if len(ev.Criteria) < 2 {
		return Sensitivity{IsRobust: true, Warnings: []SensitivityWarning{}}, nil
	}

	dominant := 0
	for i, crit := range ev.Criteria {
		if crit.Weight > ev.Criteria[dominant].Weight {
			dominant = i
		}
	}

	oldWeight := ev.Criteria[dominant].Weight
	reduction := oldWeight * sensitivityReduction
	newWeight := oldWeight - reduction

	// Pool the actual non-dominant weights rather than assuming 1-oldWeight:
	// a weight sum anywhere inside the accepted tolerance must survive the
	// perturbation unchanged, or Reweight would reject a valid evaluation.
	restSum := 0.0
	for i, crit := range ev.Criteria {
		if i != dominant {
			restSum += crit.Weight
		}
	}
	weights := make([]float64, len(ev.Criteria))
	for i, crit := range ev.Criteria {
		if i == dominant {
			weights[i] = newWeight
			continue
		}
		if restSum > 1e-9 {
			weights[i] = crit.Weight + reduction*(crit.Weight/restSum)
		} else {
			// Dominant weight was 1.0: spread the reduction evenly.
			weights[i] = reduction / float64(len(ev.Criteria)-1)
		}
	}

	perturbed, err := ev.Reweight(weights)
	if err != nil {
		return Sensitivity{}, fmt.Errorf("internal: reweighted evaluation invalid: %w", err)
	}
	perturbedRankings, _, err := rank(perturbed)
	if err != nil {
		return Sensitivity{}, err
	}

	oldWinner := rankings[0].Name
	newWinner := perturbedRankings[0].Name
	if oldWinner == newWinner {
		return Sensitivity{IsRobust: true, Warnings: []SensitivityWarning{}}, nil
	}

	warning := SensitivityWarning{
		Criterion: ev.Criteria[dominant].Name,
		OldWeight: oldWeight,
		NewWeight: newWeight,
		OldWinner: oldWinner,
		NewWinner: newWinner,
	}
	logging.Get(logging.CategoryEngine).Warn("ranking is sensitive to dominant criterion",
		zap.String("criterion", warning.Criterion),
		zap.Float64("oldWeight", warning.OldWeight),
		zap.Float64("newWeight", warning.NewWeight),
		zap.String("oldWinner", warning.OldWinner),
		zap.String("newWinner", warning.NewWinner))
	return Sensitivity{IsRobust: false, Warnings: []SensitivityWarning{warning}}, nil
}
