// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package runner

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/EbramTawfik/mcp-evals/internal/config"
	"github.com/EbramTawfik/mcp-evals/internal/planner"
	"github.com/EbramTawfik/mcp-evals/internal/scoring"
	"github.com/EbramTawfik/mcp-evals/internal/server"
)

// fakeToolClient implements server.ToolClient for runner tests.
type fakeToolClient struct {
	tools []server.ToolDefinition
}

func (f *fakeToolClient) ListTools(ctx context.Context) ([]server.ToolDefinition, error) {
	return f.tools, nil
}

func (f *fakeToolClient) CallTool(ctx context.Context, req server.ToolCallRequest) (*server.ToolCallResponse, error) {
	return &server.ToolCallResponse{}, nil
}

func (f *fakeToolClient) Close() error { return nil }

// fakeClientSource implements ClientSource for runner tests.
type fakeClientSource struct {
	client    server.ToolClient
	err       error
	closedAll atomic.Int32
}

func (f *fakeClientSource) GetOrCreateClient(ctx context.Context, cfg config.ServerConfig) (server.ToolClient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}

func (f *fakeClientSource) CloseAll() {
	f.closedAll.Add(1)
}

// fakeInteractor implements Interactor for runner tests.
type fakeInteractor struct {
	fn    func(eval, prompt string) (string, *planner.Plan, error)
	calls atomic.Int32
}

func (f *fakeInteractor) ExecuteInteraction(ctx context.Context, client server.ToolClient, eval, prompt string) (string, *planner.Plan, error) {
	f.calls.Add(1)
	if f.fn != nil {
		return f.fn(eval, prompt)
	}
	return "response for " + eval, &planner.Plan{Source: planner.SourceModel}, nil
}

// fakeScorer implements Scorer for runner tests.
type fakeScorer struct {
	score scoring.Score
	calls atomic.Int32
}

func (f *fakeScorer) Grade(ctx context.Context, prompt, response, expected string) scoring.Score {
	f.calls.Add(1)
	return f.score
}

func goodScore(t *testing.T) scoring.Score {
	t.Helper()
	score, err := scoring.NewScore(4, 4, 4, 4, 4)
	if err != nil {
		t.Fatalf("NewScore() error = %v", err)
	}
	return score
}

func testSuite(evals ...config.EvalCase) *config.Suite {
	return &config.Suite{
		Model:  config.ModelConfig{Provider: "openai", Name: "gpt-4o"},
		Server: config.ServerConfig{Transport: "stdio", Path: "server.py", Timeout: 30},
		Evals:  evals,
		Path:   "suite.yaml",
	}
}

func newTestRunner(t *testing.T, cfg Config) *Runner {
	t.Helper()
	if cfg.Clients == nil {
		cfg.Clients = &fakeClientSource{client: &fakeToolClient{tools: []server.ToolDefinition{{Name: "echo"}}}}
	}
	if cfg.Interactor == nil {
		cfg.Interactor = &fakeInteractor{}
	}
	if cfg.Scorer == nil {
		cfg.Scorer = &fakeScorer{score: scoring.Score{Accuracy: 4, Completeness: 4, Relevance: 4, Clarity: 4, Reasoning: 4}}
	}
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func TestNew_Validation(t *testing.T) {
	clients := &fakeClientSource{client: &fakeToolClient{}}
	interactor := &fakeInteractor{}
	scorer := &fakeScorer{}

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing clients", cfg: Config{Interactor: interactor, Scorer: scorer}},
		{name: "missing interactor", cfg: Config{Clients: clients, Scorer: scorer}},
		{name: "missing scorer", cfg: Config{Clients: clients, Interactor: interactor}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Errorf("New() expected error, got nil")
			}
		})
	}
}

func TestRun_AllPass(t *testing.T) {
	clients := &fakeClientSource{client: &fakeToolClient{tools: []server.ToolDefinition{{Name: "add"}}}}
	runner := newTestRunner(t, Config{Clients: clients, Scorer: &fakeScorer{score: goodScore(t)}})

	suite := testSuite(
		config.EvalCase{Name: "first", Prompt: "add 1 and 2"},
		config.EvalCase{Name: "second", Prompt: "add 3 and 4"},
		config.EvalCase{Name: "third", Prompt: "add 5 and 6"},
	)

	summary, err := runner.Run(context.Background(), suite)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.RunID == "" {
		t.Errorf("Expected non-empty run ID")
	}
	if summary.Suite != "suite.yaml" {
		t.Errorf("Suite = %q, want %q", summary.Suite, "suite.yaml")
	}
	if summary.Passed != 3 || summary.Failed != 0 {
		t.Errorf("Passed/Failed = %d/%d, want 3/0", summary.Passed, summary.Failed)
	}
	if !summary.Succeeded() {
		t.Errorf("Succeeded() = false, want true")
	}
	if summary.MeanScore != 4.0 {
		t.Errorf("MeanScore = %v, want 4.0", summary.MeanScore)
	}
	if clients.closedAll.Load() != 1 {
		t.Errorf("CloseAll() called %d times, want 1", clients.closedAll.Load())
	}

	wantOrder := []string{"first", "second", "third"}
	for i, res := range summary.Results {
		if res.Name != wantOrder[i] {
			t.Errorf("Results[%d].Name = %q, want %q", i, res.Name, wantOrder[i])
		}
		if !res.Success {
			t.Errorf("Results[%d] failed: %s", i, res.Error)
		}
		if res.PlanSource != string(planner.SourceModel) {
			t.Errorf("Results[%d].PlanSource = %q, want %q", i, res.PlanSource, planner.SourceModel)
		}
	}
}

func TestRun_ConnectFailureShortCircuits(t *testing.T) {
	clients := &fakeClientSource{err: fmt.Errorf("spawn failed: no such file")}
	interactor := &fakeInteractor{}
	runner := newTestRunner(t, Config{Clients: clients, Interactor: interactor})

	summary, err := runner.Run(context.Background(), testSuite(config.EvalCase{Name: "only", Prompt: "do it"}))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Failed != 1 || summary.Passed != 0 {
		t.Fatalf("Passed/Failed = %d/%d, want 0/1", summary.Passed, summary.Failed)
	}
	res := summary.Results[0]
	if res.Success {
		t.Errorf("Expected failure result")
	}
	if !strings.Contains(res.Error, "spawn failed") {
		t.Errorf("Error = %q, want spawn failure message", res.Error)
	}
	if res.Score.Average() != 1.0 {
		t.Errorf("Score.Average() = %v, want sentinel 1.0", res.Score.Average())
	}
	if interactor.calls.Load() != 0 {
		t.Errorf("Interactor called %d times after connect failure, want 0", interactor.calls.Load())
	}
	if clients.closedAll.Load() != 1 {
		t.Errorf("CloseAll() called %d times, want 1", clients.closedAll.Load())
	}
}

func TestRun_EmptyToolListFailsProbe(t *testing.T) {
	clients := &fakeClientSource{client: &fakeToolClient{tools: nil}}
	runner := newTestRunner(t, Config{Clients: clients})

	summary, err := runner.Run(context.Background(), testSuite(config.EvalCase{Name: "only", Prompt: "do it"}))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	res := summary.Results[0]
	if res.Success {
		t.Fatalf("Expected failure result")
	}
	if !strings.Contains(res.Error, "no tools") {
		t.Errorf("Error = %q, want no-tools probe failure", res.Error)
	}
}

func TestRun_ExecuteErrorBecomesFailure(t *testing.T) {
	interactor := &fakeInteractor{fn: func(eval, prompt string) (string, *planner.Plan, error) {
		return "", nil, fmt.Errorf("listing tools: pipe closed")
	}}
	scorer := &fakeScorer{score: goodScore(t)}
	runner := newTestRunner(t, Config{Interactor: interactor, Scorer: scorer})

	summary, err := runner.Run(context.Background(), testSuite(config.EvalCase{Name: "only", Prompt: "do it"}))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	res := summary.Results[0]
	if res.Success {
		t.Fatalf("Expected failure result")
	}
	if !strings.Contains(res.Error, "pipe closed") {
		t.Errorf("Error = %q, want execute failure message", res.Error)
	}
	if scorer.calls.Load() != 0 {
		t.Errorf("Scorer called %d times after execute failure, want 0", scorer.calls.Load())
	}
}

func TestRun_PanicConvertedToFailure(t *testing.T) {
	interactor := &fakeInteractor{fn: func(eval, prompt string) (string, *planner.Plan, error) {
		if eval == "boom" {
			panic("unexpected nil tool schema")
		}
		return "fine", &planner.Plan{Source: planner.SourceFallback}, nil
	}}
	runner := newTestRunner(t, Config{Interactor: interactor, Scorer: &fakeScorer{score: goodScore(t)}})

	suite := testSuite(
		config.EvalCase{Name: "boom", Prompt: "explode"},
		config.EvalCase{Name: "survivor", Prompt: "carry on"},
	)

	summary, err := runner.Run(context.Background(), suite)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Passed != 1 || summary.Failed != 1 {
		t.Fatalf("Passed/Failed = %d/%d, want 1/1", summary.Passed, summary.Failed)
	}
	boom := summary.Results[0]
	if boom.Success {
		t.Errorf("Expected panic case to fail")
	}
	if !strings.Contains(boom.Error, "panic") || !strings.Contains(boom.Error, "nil tool schema") {
		t.Errorf("Error = %q, want panic message", boom.Error)
	}
	if boom.Score.Average() != 1.0 {
		t.Errorf("Score.Average() = %v, want sentinel 1.0", boom.Score.Average())
	}
	if !summary.Results[1].Success {
		t.Errorf("Sibling case should survive a panic: %s", summary.Results[1].Error)
	}
}

func TestRun_ExpectGatesSuccess(t *testing.T) {
	tests := []struct {
		name        string
		expect      string
		wantSuccess bool
		wantInError string
	}{
		{
			name:        "satisfied expression",
			expect:      "score.average >= 3.5 && success",
			wantSuccess: true,
		},
		{
			name:        "threshold not met",
			expect:      "score.average >= 4.5",
			wantSuccess: false,
			wantInError: "not satisfied",
		},
		{
			name:        "response predicate",
			expect:      `has(response, "response for")`,
			wantSuccess: true,
		},
		{
			name:        "broken expression",
			expect:      "score.average >=",
			wantSuccess: false,
			wantInError: "expect",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newTestRunner(t, Config{Scorer: &fakeScorer{score: goodScore(t)}})
			suite := testSuite(config.EvalCase{Name: "only", Prompt: "do it", Expect: tt.expect})

			summary, err := runner.Run(context.Background(), suite)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			res := summary.Results[0]
			if res.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v (error: %s)", res.Success, tt.wantSuccess, res.Error)
			}
			if tt.wantInError != "" && !strings.Contains(res.Error, tt.wantInError) {
				t.Errorf("Error = %q, want substring %q", res.Error, tt.wantInError)
			}
		})
	}
}

func TestRun_MeanScoreExcludesFailures(t *testing.T) {
	interactor := &fakeInteractor{fn: func(eval, prompt string) (string, *planner.Plan, error) {
		if eval == "bad" {
			return "", nil, fmt.Errorf("boom")
		}
		return "ok", &planner.Plan{Source: planner.SourceModel}, nil
	}}
	runner := newTestRunner(t, Config{Interactor: interactor, Scorer: &fakeScorer{score: goodScore(t)}})

	suite := testSuite(
		config.EvalCase{Name: "good", Prompt: "works"},
		config.EvalCase{Name: "bad", Prompt: "breaks"},
	)

	summary, err := runner.Run(context.Background(), suite)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.MeanScore != 4.0 {
		t.Errorf("MeanScore = %v, want 4.0 (failure sentinel must not drag the mean)", summary.MeanScore)
	}
	if summary.Succeeded() {
		t.Errorf("Succeeded() = true with a failed case")
	}
}

func TestRun_BoundsParallelism(t *testing.T) {
	var active, peak atomic.Int32
	interactor := &fakeInteractor{fn: func(eval, prompt string) (string, *planner.Plan, error) {
		now := active.Add(1)
		for {
			seen := peak.Load()
			if now <= seen || peak.CompareAndSwap(seen, now) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return "ok", &planner.Plan{Source: planner.SourceModel}, nil
	}}

	runner := newTestRunner(t, Config{Interactor: interactor, Scorer: &fakeScorer{score: goodScore(t)}, Parallelism: 2})

	evals := make([]config.EvalCase, 6)
	for i := range evals {
		evals[i] = config.EvalCase{Name: fmt.Sprintf("case-%d", i), Prompt: "p"}
	}

	summary, err := runner.Run(context.Background(), testSuite(evals...))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Passed != 6 {
		t.Fatalf("Passed = %d, want 6", summary.Passed)
	}
	if got := peak.Load(); got > 2 {
		t.Errorf("Peak concurrency = %d, want <= 2", got)
	}
}

func TestRun_ResultsInSuiteOrder(t *testing.T) {
	// Later cases finish first; slots must still follow suite order.
	interactor := &fakeInteractor{fn: func(eval, prompt string) (string, *planner.Plan, error) {
		if eval == "slow" {
			time.Sleep(30 * time.Millisecond)
		}
		return "ok", &planner.Plan{Source: planner.SourceModel}, nil
	}}
	runner := newTestRunner(t, Config{Interactor: interactor, Scorer: &fakeScorer{score: goodScore(t)}, Parallelism: 3})

	suite := testSuite(
		config.EvalCase{Name: "slow", Prompt: "p"},
		config.EvalCase{Name: "quick-a", Prompt: "p"},
		config.EvalCase{Name: "quick-b", Prompt: "p"},
	)

	summary, err := runner.Run(context.Background(), suite)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantOrder := []string{"slow", "quick-a", "quick-b"}
	for i, res := range summary.Results {
		if res.Name != wantOrder[i] {
			t.Errorf("Results[%d].Name = %q, want %q", i, res.Name, wantOrder[i])
		}
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clients := &fakeClientSource{client: &fakeToolClient{tools: []server.ToolDefinition{{Name: "echo"}}}}
	runner := newTestRunner(t, Config{Clients: clients, Parallelism: 1})

	suite := testSuite(
		config.EvalCase{Name: "a", Prompt: "p"},
		config.EvalCase{Name: "b", Prompt: "p"},
	)

	summary, err := runner.Run(ctx, suite)
	if err == nil {
		t.Fatalf("Run() expected context error")
	}

	if len(summary.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(summary.Results))
	}
	for i, res := range summary.Results {
		if res.Success {
			t.Errorf("Results[%d] unexpectedly succeeded", i)
		}
	}
	if clients.closedAll.Load() != 1 {
		t.Errorf("CloseAll() called %d times, want 1", clients.closedAll.Load())
	}
}

func TestRun_DurationRecorded(t *testing.T) {
	interactor := &fakeInteractor{fn: func(eval, prompt string) (string, *planner.Plan, error) {
		time.Sleep(10 * time.Millisecond)
		return "ok", &planner.Plan{Source: planner.SourceModel}, nil
	}}
	runner := newTestRunner(t, Config{Interactor: interactor, Scorer: &fakeScorer{score: goodScore(t)}})

	summary, err := runner.Run(context.Background(), testSuite(config.EvalCase{Name: "only", Prompt: "p"}))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Results[0].DurationMs < 10 {
		t.Errorf("DurationMs = %d, want >= 10", summary.Results[0].DurationMs)
	}
	if summary.CompletedAt.Before(summary.StartedAt) {
		t.Errorf("CompletedAt %v before StartedAt %v", summary.CompletedAt, summary.StartedAt)
	}
}
