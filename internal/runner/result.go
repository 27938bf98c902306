package runner

import (
	"time"

	"github.com/EbramTawfik/mcp-evals/internal/scoring"
)

// Result is the outcome of one evaluation.
type Result struct {
	// Name identifies the originating evaluation case; results always carry
	// it so a reordered or filtered view stays attributable.
	Name string `json:"name"`

	// Description is copied from the evaluation case.
	Description string `json:"description,omitempty"`

	// Prompt is the natural-language request that was evaluated.
	Prompt string `json:"prompt"`

	// Response is the joined tool output presented to the judge. Empty when
	// the evaluation failed before execution.
	Response string `json:"response,omitempty"`

	// Score is the judge's five-dimension grade. Failed evaluations carry
	// the minimum-valued sentinel, not a real judgment.
	Score scoring.Score `json:"score"`

	// Success is true when the full connect-execute-score flow completed
	// and the case's expect expression (if any) held.
	Success bool `json:"success"`

	// Error describes what went wrong for unsuccessful results.
	Error string `json:"error,omitempty"`

	// DurationMs is the wall-clock time for the whole per-case flow.
	DurationMs int64 `json:"duration_ms"`

	// PlanSource records whether the model or the deterministic fallback
	// planned the tool calls.
	PlanSource string `json:"plan_source,omitempty"`
}

// Summary is the aggregate outcome of one suite run.
type Summary struct {
	// RunID uniquely identifies this run.
	RunID string `json:"run_id"`

	// Suite is the path of the suite that ran.
	Suite string `json:"suite"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	// Results holds one entry per evaluation case, in suite order
	// regardless of completion order.
	Results []Result `json:"results"`

	// Passed and Failed count successful and unsuccessful results.
	Passed int `json:"passed"`
	Failed int `json:"failed"`

	// MeanScore is the mean judge average across successful results only;
	// zero when nothing succeeded.
	MeanScore float64 `json:"mean_score"`
}

// Succeeded reports whether every evaluation in the run passed.
func (s *Summary) Succeeded() bool {
	return s.Failed == 0 && s.Passed > 0
}

// aggregate recomputes the counters from Results.
func (s *Summary) aggregate() {
	s.Passed, s.Failed, s.MeanScore = 0, 0, 0

	var sum float64
	for _, res := range s.Results {
		if res.Success {
			s.Passed++
			sum += res.Score.Average()
		} else {
			s.Failed++
		}
	}
	if s.Passed > 0 {
		s.MeanScore = sum / float64(s.Passed)
	}
}
