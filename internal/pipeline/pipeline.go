// Package pipeline wires the full validation-and-self-correction flow:
// decode the raw generator output, sanitize it through the airlock, compute
// the weighted-sum report — and on failure, classify the fractures and hand
// them to the stabilization loop so the generator can fix its own output.
//
// The pipeline is synchronous and stateless; each Process call is an
// independent run whose only side effect is the regenerate callback it may
// invoke.
package pipeline

import (
	"context"
	"fmt"

	"arbiter/internal/airlock"
	"arbiter/internal/domain"
	"arbiter/internal/engine"
	"arbiter/internal/fracture"
	"arbiter/internal/logging"
	"arbiter/internal/stabilize"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pipeline drives one decode→sanitize→evaluate run with optional
// stabilization on failure.
type Pipeline struct {
	loop        *stabilize.Loop
	difficulty  int
	taskContext string
	log         *zap.Logger
}

// Outcome is the terminal result of one run. Exactly one of Report or a
// non-nil failure path is populated: when Report is nil, Fractures holds the
// classified remaining failures and Stabilization the loop's terminal result
// (nil when the loop never ran).
type Outcome struct {
	RunID         string              `json:"runId"`
	Report        *engine.Report      `json:"report,omitempty"`
	Evaluation    *domain.Evaluation  `json:"evaluation,omitempty"`
	Fractures     []fracture.Fracture `json:"fractures,omitempty"`
	Stabilization *stabilize.Result   `json:"stabilization,omitempty"`
}

// New builds a pipeline. taskContext describes what the generator was asked
// to produce and is echoed into feedback prompts; difficulty scales fracture
// severity and must be >= 1.
func New(cfg stabilize.Config, difficulty int, taskContext string) *Pipeline {
	return &Pipeline{
		loop:        stabilize.NewLoop(cfg, difficulty),
		difficulty:  difficulty,
		taskContext: taskContext,
		log:         logging.Get(logging.CategoryPipeline),
	}
}

// validateText runs the decode+sanitize path and returns the Evaluation.
func validateText(text string) (*domain.Evaluation, error) {
	doc, err := airlock.DecodeDocument(text)
	if err != nil {
		return nil, err
	}
	return airlock.Sanitize(doc)
}

// Process runs the pipeline over raw generator output. When validation
// fails and regenerate is non-nil, the stabilization loop drives bounded
// correction attempts; a nil regenerate (or a disabled loop) surfaces the
// original validation failure unchanged.
//
// The returned error is nil exactly when Outcome.Report is set.
func (p *Pipeline) Process(ctx context.Context, rawText string, regenerate stabilize.Regenerate) (*Outcome, error) {
	outcome := &Outcome{RunID: uuid.NewString()}

	ev, verr := validateText(rawText)
	if verr == nil {
		report, err := engine.Evaluate(ev)
		if err != nil {
			return nil, err
		}
		outcome.Evaluation = ev
		outcome.Report = report
		return outcome, nil
	}

	fractures := fracture.Classify(verr, "initial validation", p.difficulty)
	outcome.Fractures = fractures
	p.log.Info("validation failed",
		zap.String("runId", outcome.RunID),
		zap.String("kind", string(fractures[0].Kind)),
		zap.Float64("severity", fractures[0].Severity))

	if regenerate == nil {
		return outcome, verr
	}

	lastErr := verr
	result := p.loop.Run(ctx, fractures, rawText, p.taskContext, regenerate, func(text string) error {
		_, err := validateText(text)
		if err != nil {
			lastErr = err
		}
		return err
	})
	outcome.Stabilization = result
	outcome.Fractures = result.RemainingFractures

	if !result.Succeeded {
		return outcome, lastErr
	}

	// Revalidation is pure and cheap; rebuilding here keeps the corrected
	// Evaluation and the validated text from ever diverging.
	corrected, err := validateText(result.CorrectedOutput)
	if err != nil {
		return nil, fmt.Errorf("internal: corrected output failed revalidation: %w", err)
	}
	report, err := engine.Evaluate(corrected)
	if err != nil {
		return nil, err
	}
	outcome.Evaluation = corrected
	outcome.Report = report
	return outcome, nil
}
