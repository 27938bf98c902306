package planner

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/EbramTawfik/mcp-evals/internal/server"
)

var (
	numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
	quotedPattern = regexp.MustCompile(`"[^"]*"|'[^']*'`)
)

// FallbackPlan matches the prompt against the advertised tools with
// deterministic heuristics. The first tool whose lower-cased name occurs in
// the prompt, or that shares at least two distinct description words longer
// than three characters with it, wins. No match yields an empty plan.
func FallbackPlan(prompt string, tools []server.ToolDefinition) []ToolExecution {
	lowered := strings.ToLower(prompt)

	for _, tool := range tools {
		if !matchesPrompt(lowered, tool) {
			continue
		}
		return []ToolExecution{{
			ToolName:  tool.Name,
			Arguments: heuristicArguments(prompt),
		}}
	}

	return nil
}

func matchesPrompt(lowered string, tool server.ToolDefinition) bool {
	if name := strings.ToLower(tool.Name); name != "" && strings.Contains(lowered, name) {
		return true
	}
	return descriptionOverlap(lowered, tool.Description) >= 2
}

// descriptionOverlap counts the distinct description words longer than three
// characters that appear in the lower-cased prompt.
func descriptionOverlap(lowered, description string) int {
	seen := make(map[string]bool)
	overlap := 0

	for _, word := range strings.Fields(strings.ToLower(description)) {
		word = strings.Trim(word, `.,;:!?()"'`)
		if len(word) <= 3 || seen[word] {
			continue
		}
		seen[word] = true
		if strings.Contains(lowered, word) {
			overlap++
		}
	}

	return overlap
}

// heuristicArguments extracts arguments from the prompt text alone. Numbers
// map to the a/b pair convention, or value/number when only one is present.
// The first quoted substring, or else the whole prompt, is passed under the
// message, text, and input keys together since the target schema is unknown
// ahead of time.
func heuristicArguments(prompt string) map[string]interface{} {
	args := make(map[string]interface{})

	numbers := extractNumbers(prompt)
	switch {
	case len(numbers) >= 2:
		args["a"] = numbers[0]
		args["b"] = numbers[1]
	case len(numbers) == 1:
		args["value"] = numbers[0]
		args["number"] = numbers[0]
	}

	message := extractMessage(prompt)
	args["message"] = message
	args["text"] = message
	args["input"] = message

	return args
}

// extractNumbers returns the numeric literals in the prompt, as ints when
// integral so JSON round-trips keep them whole.
func extractNumbers(prompt string) []interface{} {
	var numbers []interface{}

	for _, match := range numberPattern.FindAllString(prompt, -1) {
		if !strings.Contains(match, ".") {
			if n, err := strconv.Atoi(match); err == nil {
				numbers = append(numbers, n)
				continue
			}
		}
		if f, err := strconv.ParseFloat(match, 64); err == nil {
			numbers = append(numbers, f)
		}
	}

	return numbers
}

// extractMessage returns the first single- or double-quoted substring of the
// prompt, or else the whole prompt.
func extractMessage(prompt string) string {
	if match := quotedPattern.FindString(prompt); len(match) >= 2 {
		if content := match[1 : len(match)-1]; content != "" {
			return content
		}
	}
	return prompt
}
