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

package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/EbramTawfik/mcp-evals/internal/log"
	"github.com/EbramTawfik/mcp-evals/internal/server"
)

// noToolsLine is emitted when planning matched nothing; the response must
// still carry a line the judge can grade.
const noToolsLine = "No applicable tools were found for this prompt."

// ExecuteInteraction runs the plan-then-execute loop for one prompt: list the
// live server's tools, plan against them, invoke each planned call in order,
// and join the retained output lines with newlines. Per-tool failures become
// inline error lines so one bad call cannot abort the rest. The error return
// covers the tool listing only.
func (p *Planner) ExecuteInteraction(ctx context.Context, client server.ToolClient, eval, prompt string) (string, *Plan, error) {
	tools, err := client.ListTools(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("listing tools: %w", err)
	}

	plan := p.PlanToolExecutions(ctx, prompt, tools)
	p.logger.Debug("tool plan ready",
		"source", string(plan.Source),
		"planned", len(plan.Executions),
		"eval", eval)

	if len(plan.Executions) == 0 {
		return noToolsLine, plan, nil
	}

	var lines []string
	for _, exec := range plan.Executions {
		line, keep := p.invoke(ctx, client, eval, exec)
		if keep {
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, "\n"), plan, nil
}

// invoke runs one planned call and formats its output line. The bool result
// is false when the call produced nothing worth keeping.
func (p *Planner) invoke(ctx context.Context, client server.ToolClient, eval string, exec ToolExecution) (string, bool) {
	var resp *server.ToolCallResponse

	call := &log.ToolCall{Tool: exec.ToolName, Eval: eval, Arguments: exec.Arguments}
	err := p.calls.Tool(call, func() error {
		var callErr error
		resp, callErr = client.CallTool(ctx, server.ToolCallRequest{
			Name:      exec.ToolName,
			Arguments: exec.Arguments,
		})
		if callErr != nil {
			return callErr
		}
		if resp.IsError {
			return fmt.Errorf("%s", toolErrorText(resp))
		}
		return nil
	})
	p.metrics.ToolCallCompleted(err == nil)
	if err != nil {
		return fmt.Sprintf("Error invoking tool %s: %v", exec.ToolName, err), true
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", false
	}
	return text, true
}

// toolErrorText collects the text content of a failed tool result.
func toolErrorText(resp *server.ToolCallResponse) string {
	var parts []string
	for _, item := range resp.Content {
		if item.Type == "text" && item.Text != "" {
			parts = append(parts, item.Text)
		}
	}
	if len(parts) == 0 {
		return "tool execution failed"
	}
	return strings.Join(parts, "; ")
}
