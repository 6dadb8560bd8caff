package engine

import (
	"math"
	"testing"

	"arbiter/internal/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const epsilon = 1e-9

func mustEvaluation(t *testing.T, alternatives []domain.Alternative, criteria []domain.Criterion, scores []domain.Score) *domain.Evaluation {
	t.Helper()
	ev, err := domain.NewEvaluation(alternatives, criteria, scores, "")
	if err != nil {
		t.Fatalf("NewEvaluation() error = %v", err)
	}
	return ev
}

func worked(t *testing.T) *domain.Evaluation {
	return mustEvaluation(t,
		[]domain.Alternative{{Name: "A"}, {Name: "B"}},
		[]domain.Criterion{{Name: "Cost", Weight: 0.4}, {Name: "Quality", Weight: 0.6}},
		[]domain.Score{
			{Alternative: "A", Criterion: "Cost", Value: 8},
			{Alternative: "A", Criterion: "Quality", Value: 7},
			{Alternative: "B", Criterion: "Cost", Value: 6},
			{Alternative: "B", Criterion: "Quality", Value: 9},
		})
}

func TestEvaluate_WorkedExample(t *testing.T) {
	report, err := Evaluate(worked(t))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	want := []RankedAlternative{
		{Rank: 1, Name: "B", Score: 7.8},
		{Rank: 2, Name: "A", Score: 7.4},
	}
	if diff := cmp.Diff(want, report.Rankings, cmpopts.EquateApprox(0, epsilon)); diff != "" {
		t.Errorf("rankings mismatch (-want +got):\n%s", diff)
	}

	wantDetail := map[string]map[string]Contribution{
		"A": {"Cost": {Raw: 8, Weighted: 3.2}, "Quality": {Raw: 7, Weighted: 4.2}},
		"B": {"Cost": {Raw: 6, Weighted: 2.4}, "Quality": {Raw: 9, Weighted: 5.4}},
	}
	if diff := cmp.Diff(wantDetail, report.DetailedScores, cmpopts.EquateApprox(0, epsilon)); diff != "" {
		t.Errorf("detailed scores mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluate_StableTies(t *testing.T) {
	// C and A tie; input order C-before-A must survive, with contiguous ranks.
	ev := mustEvaluation(t,
		[]domain.Alternative{{Name: "C"}, {Name: "A"}, {Name: "Z"}},
		[]domain.Criterion{{Name: "Only", Weight: 1.0}},
		[]domain.Score{
			{Alternative: "C", Criterion: "Only", Value: 5},
			{Alternative: "A", Criterion: "Only", Value: 5},
			{Alternative: "Z", Criterion: "Only", Value: 9},
		})

	report, err := Evaluate(ev)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	names := []string{report.Rankings[0].Name, report.Rankings[1].Name, report.Rankings[2].Name}
	wantNames := []string{"Z", "C", "A"}
	for i := range wantNames {
		if names[i] != wantNames[i] {
			t.Fatalf("order = %v, want %v", names, wantNames)
		}
		if report.Rankings[i].Rank != i+1 {
			t.Errorf("rank[%d] = %d, want %d", i, report.Rankings[i].Rank, i+1)
		}
	}
}

func TestEvaluate_SensitivityFlip(t *testing.T) {
	// Quality 0.6 -> 0.48, Cost absorbs the rest -> 0.52.
	// B: 6*0.52 + 9*0.48 = 7.44 vs A: 8*0.52 + 7*0.48 = 7.52,
	// so A overtakes B and this evaluation is NOT robust.
	report, err := Evaluate(worked(t))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if report.Sensitivity.IsRobust {
		t.Fatal("expected sensitivity warning: reducing Quality flips the winner")
	}
	if len(report.Sensitivity.Warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(report.Sensitivity.Warnings))
	}
	w := report.Sensitivity.Warnings[0]
	if w.Criterion != "Quality" {
		t.Errorf("Criterion = %q, want Quality", w.Criterion)
	}
	if math.Abs(w.OldWeight-0.6) > epsilon || math.Abs(w.NewWeight-0.48) > epsilon {
		t.Errorf("weights = %v -> %v, want 0.6 -> 0.48", w.OldWeight, w.NewWeight)
	}
	if w.OldWinner != "B" || w.NewWinner != "A" {
		t.Errorf("winners = %q -> %q, want B -> A", w.OldWinner, w.NewWinner)
	}
}

func TestEvaluate_SensitivityRobustWinner(t *testing.T) {
	// B dominates on every criterion, so no reweighting can flip it.
	ev := mustEvaluation(t,
		[]domain.Alternative{{Name: "A"}, {Name: "B"}},
		[]domain.Criterion{{Name: "Cost", Weight: 0.4}, {Name: "Quality", Weight: 0.6}},
		[]domain.Score{
			{Alternative: "A", Criterion: "Cost", Value: 3},
			{Alternative: "A", Criterion: "Quality", Value: 4},
			{Alternative: "B", Criterion: "Cost", Value: 8},
			{Alternative: "B", Criterion: "Quality", Value: 9},
		})

	report, err := Evaluate(ev)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !report.Sensitivity.IsRobust {
		t.Errorf("expected robust result, got warnings %v", report.Sensitivity.Warnings)
	}
	if len(report.Sensitivity.Warnings) != 0 {
		t.Errorf("robust result carries warnings: %v", report.Sensitivity.Warnings)
	}
}

func TestEvaluate_SingleCriterionRobustByDefinition(t *testing.T) {
	ev := mustEvaluation(t,
		[]domain.Alternative{{Name: "A"}, {Name: "B"}},
		[]domain.Criterion{{Name: "Only", Weight: 1.0}},
		[]domain.Score{
			{Alternative: "A", Criterion: "Only", Value: 2},
			{Alternative: "B", Criterion: "Only", Value: 3},
		})

	report, err := Evaluate(ev)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !report.Sensitivity.IsRobust {
		t.Error("single-criterion evaluation must be robust by definition")
	}
}

func TestEvaluate_PerturbedWeightsStillSum(t *testing.T) {
	// Three criteria; redistribution must keep the sum at 1.0 so the
	// perturbed evaluation passes construction.
	ev := mustEvaluation(t,
		[]domain.Alternative{{Name: "A"}, {Name: "B"}},
		[]domain.Criterion{
			{Name: "X", Weight: 0.5},
			{Name: "Y", Weight: 0.3},
			{Name: "Z", Weight: 0.2},
		},
		[]domain.Score{
			{Alternative: "A", Criterion: "X", Value: 1},
			{Alternative: "A", Criterion: "Y", Value: 2},
			{Alternative: "A", Criterion: "Z", Value: 3},
			{Alternative: "B", Criterion: "X", Value: 3},
			{Alternative: "B", Criterion: "Y", Value: 2},
			{Alternative: "B", Criterion: "Z", Value: 1},
		})

	if _, err := Evaluate(ev); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
}

func TestEvaluate_ToleratedWeightSumSurvivesSensitivity(t *testing.T) {
	// 0.609 + 0.4 = 1.009 is inside the accepted weight-sum tolerance, so
	// the perturbed weights must sum to 1.009 as well; redistributing
	// against an assumed sum of 1.0 would push them out of tolerance and
	// fail a valid evaluation.
	ev := mustEvaluation(t,
		[]domain.Alternative{{Name: "A"}, {Name: "B"}},
		[]domain.Criterion{{Name: "Quality", Weight: 0.609}, {Name: "Cost", Weight: 0.4}},
		[]domain.Score{
			{Alternative: "A", Criterion: "Cost", Value: 8},
			{Alternative: "A", Criterion: "Quality", Value: 7},
			{Alternative: "B", Criterion: "Cost", Value: 6},
			{Alternative: "B", Criterion: "Quality", Value: 9},
		})

	report, err := Evaluate(ev)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if report.Winner() == "" {
		t.Error("report has no winner")
	}
}
