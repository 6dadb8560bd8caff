// Package stabilize drives the bounded self-correction loop: it feeds
// fracture evidence back to an external regenerator, revalidates the
// regenerated output, and repeats until the output validates, the attempt
// budget is spent, or the regenerator times out or errors.
//
// The loop never re-raises into the caller; every outcome is a terminal
// Result. The only concurrency in the pipeline lives here: each attempt's
// regenerate call runs in one worker goroutine so a wall-clock deadline can
// be enforced. A timed-out call is abandoned, not killed; its side effects
// are unknown and no further attempts follow a timeout.
package stabilize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"arbiter/internal/fracture"
	"arbiter/internal/logging"

	"go.uber.org/zap"
)

// State is the loop's lifecycle position.
type State string

const (
	StateIdle       State = "idle"       // loop disabled or nothing to fix
	StateAttempting State = "attempting" // at least one attempt in flight
	StateSucceeded  State = "succeeded"  // regenerated output validated
	StateExhausted  State = "exhausted"  // attempt budget spent
	StateAborted    State = "aborted"    // timeout or regenerator error
)

// Config bounds the loop.
type Config struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"max_attempts"`
	Timeout     time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the stock loop bounds.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		MaxAttempts: 3,
		Timeout:     2 * time.Minute,
	}
}

// Regenerate asks the external generator to produce corrected output for a
// feedback prompt. It may block arbitrarily; the loop guards it with a
// deadline. The context carries the per-attempt deadline for callers that
// honor cancellation, but honoring it is not assumed.
type Regenerate func(ctx context.Context, prompt string) (string, error)

// Validate checks a candidate output, returning nil when it is acceptable.
type Validate func(text string) error

// Result is the loop's terminal outcome.
type Result struct {
	CorrectedOutput    string              `json:"correctedOutput,omitempty"`
	Succeeded          bool                `json:"succeeded"`
	AttemptsMade       int                 `json:"attemptsMade"`
	RemainingFractures []fracture.Fracture `json:"remainingFractures"`
	FinalState         State               `json:"finalState"`
	TimedOut           bool                `json:"timedOut,omitempty"`
}

// errAttemptTimeout marks a regenerate call that outlived its deadline.
var errAttemptTimeout = errors.New("regenerate deadline elapsed")

// Loop runs bounded correction attempts. A Loop holds no mutable state
// across runs; one value can serve many sequential invocations.
type Loop struct {
	cfg        Config
	difficulty int
	log        *zap.Logger
}

// NewLoop builds a loop with the given bounds. Difficulty scales the
// severity of fractures classified from failed attempts; values below 1
// are treated as 1.
func NewLoop(cfg Config, difficulty int) *Loop {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if difficulty < 1 {
		difficulty = 1
	}
	return &Loop{
		cfg:        cfg,
		difficulty: difficulty,
		log:        logging.Get(logging.CategoryStabilize),
	}
}

// Run executes the loop for one failed output. fractures is the initial
// classified failure set, originalOutput the invalid text that produced it,
// and taskContext a description of what the generator was asked for.
//
// Attempts are strictly sequential: attempt N+1 never starts before attempt
// N's outcome is known.
func (l *Loop) Run(
	ctx context.Context,
	fractures []fracture.Fracture,
	originalOutput string,
	taskContext string,
	regenerate Regenerate,
	validate Validate,
) *Result {
	if !l.cfg.Enabled || len(fractures) == 0 {
		return &Result{
			Succeeded:          false,
			AttemptsMade:       0,
			RemainingFractures: fractures,
			FinalState:         StateIdle,
		}
	}

	current := fractures
	for attempt := 1; attempt <= l.cfg.MaxAttempts; attempt++ {
		prompt := buildFeedbackPrompt(taskContext, current, originalOutput, attempt)
		l.log.Info("stabilization attempt",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", l.cfg.MaxAttempts),
			zap.Int("fractures", len(current)))

		output, err := l.callWithDeadline(ctx, regenerate, prompt)
		switch {
		case errors.Is(err, errAttemptTimeout):
			// The abandoned call may still be running; its side effects are
			// unknown, so no further attempts and no further validation.
			l.log.Warn("regenerate timed out, abandoning loop",
				zap.Int("attempt", attempt),
				zap.Duration("timeout", l.cfg.Timeout))
			return &Result{
				Succeeded:          false,
				AttemptsMade:       attempt,
				RemainingFractures: current,
				FinalState:         StateAborted,
				TimedOut:           true,
			}
		case err != nil:
			// A regenerator failure is not retried.
			l.log.Error("regenerate failed, aborting loop",
				zap.Int("attempt", attempt), zap.Error(err))
			return &Result{
				Succeeded:          false,
				AttemptsMade:       attempt,
				RemainingFractures: current,
				FinalState:         StateAborted,
			}
		}

		if verr := validate(output); verr != nil {
			current = fracture.Classify(verr,
				fmt.Sprintf("stabilization attempt %d", attempt), l.difficulty)
			continue
		}

		l.log.Info("stabilization succeeded", zap.Int("attempts", attempt))
		return &Result{
			CorrectedOutput:    output,
			Succeeded:          true,
			AttemptsMade:       attempt,
			RemainingFractures: []fracture.Fracture{},
			FinalState:         StateSucceeded,
		}
	}

	l.log.Warn("stabilization exhausted",
		zap.Int("attempts", l.cfg.MaxAttempts),
		zap.Float64("severity", fracture.MostSevere(current)))
	return &Result{
		Succeeded:          false,
		AttemptsMade:       l.cfg.MaxAttempts,
		RemainingFractures: current,
		FinalState:         StateExhausted,
	}
}

// regenOutcome carries one worker's result across the deadline select.
type regenOutcome struct {
	output string
	err    error
}

// callWithDeadline dispatches regenerate to a single worker goroutine and
// waits at most cfg.Timeout for it. On timeout the worker is abandoned (the
// channel is buffered so the late send does not leak a blocked goroutine).
func (l *Loop) callWithDeadline(ctx context.Context, regenerate Regenerate, prompt string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	done := make(chan regenOutcome, 1)
	go func() {
		output, err := regenerate(attemptCtx, prompt)
		done <- regenOutcome{output: output, err: err}
	}()

	select {
	case outcome := <-done:
		return outcome.output, outcome.err
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return "", errAttemptTimeout
		}
		return "", attemptCtx.Err()
	}
}

// buildFeedbackPrompt assembles the correction request: the original task
// context, the fracture evidence, the correction hints, the failed output
// (first attempt only, to avoid prompt bloat later), and an instruction to
// return only the corrected content.
func buildFeedbackPrompt(taskContext string, fractures []fracture.Fracture, originalOutput string, attempt int) string {
	var b strings.Builder
	b.WriteString("Your previous output failed validation and must be corrected.\n")

	if taskContext != "" {
		b.WriteString("\n## Original Task\n")
		b.WriteString(taskContext)
		b.WriteString("\n")
	}

	b.WriteString("\n## Detected Problems\n")
	for _, f := range fractures {
		fmt.Fprintf(&b, "- %s\n", f.Evidence)
	}

	b.WriteString("\n## How To Fix\n")
	for _, f := range fractures {
		fmt.Fprintf(&b, "- %s\n", f.CorrectionHint)
	}

	if attempt == 1 && originalOutput != "" {
		b.WriteString("\n## Previous Output\n")
		b.WriteString(originalOutput)
		b.WriteString("\n")
	}

	b.WriteString("\nReturn ONLY the corrected content, with no commentary.")
	return b.String()
}
