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

package assert

import (
	"testing"
)

func evalContext() map[string]interface{} {
	return map[string]interface{}{
		"name":        "weather lookup",
		"response":    "The current temperature in Paris is 18C.",
		"success":     true,
		"duration_ms": int64(742),
		"error":       "",
		"score": map[string]interface{}{
			"accuracy":     4,
			"completeness": 4,
			"relevance":    5,
			"clarity":      4,
			"reasoning":    3,
			"average":      4.0,
			"comments":     "Solid answer with correct units.",
		},
	}
}

func TestEvaluator_Comparisons(t *testing.T) {
	eval := New()

	tests := []struct {
		name       string
		expression string
		wantPassed bool
	}{
		{
			name:       "average threshold pass",
			expression: "score.average >= 3.5",
			wantPassed: true,
		},
		{
			name:       "average threshold fail",
			expression: "score.average >= 4.5",
			wantPassed: false,
		},
		{
			name:       "dimension access",
			expression: "score.relevance == 5",
			wantPassed: true,
		},
		{
			name:       "boolean field",
			expression: "success",
			wantPassed: true,
		},
		{
			name:       "conjunction",
			expression: "success && score.accuracy > 3",
			wantPassed: true,
		},
		{
			name:       "duration bound",
			expression: "duration_ms < 5000",
			wantPassed: true,
		},
		{
			name:       "error empty",
			expression: `error == ""`,
			wantPassed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := eval.Evaluate(tt.expression, evalContext())
			if result.Err != nil {
				t.Fatalf("Unexpected error: %v", result.Err)
			}
			if result.Passed != tt.wantPassed {
				t.Errorf("Expected Passed=%v, got %v", tt.wantPassed, result.Passed)
			}
		})
	}
}

func TestEvaluator_Functions(t *testing.T) {
	eval := New()

	tests := []struct {
		name       string
		expression string
		context    map[string]interface{}
		wantPassed bool
		wantError  bool
	}{
		{
			name:       "has ignores case",
			expression: `has(response, "PARIS")`,
			context:    evalContext(),
			wantPassed: true,
		},
		{
			name:       "has miss",
			expression: `has(response, "london")`,
			context:    evalContext(),
			wantPassed: false,
		},
		{
			name:       "match pass",
			expression: `match(response, "\\d+C")`,
			context:    evalContext(),
			wantPassed: true,
		},
		{
			name:       "match fail",
			expression: `match(response, "^error")`,
			context:    evalContext(),
			wantPassed: false,
		},
		{
			name:       "match invalid pattern",
			expression: `match(response, "[")`,
			context:    evalContext(),
			wantError:  true,
		},
		{
			name:       "includes pass",
			expression: `includes(tools, "get_weather")`,
			context: map[string]interface{}{
				"tools": []interface{}{"get_weather", "get_forecast"},
			},
			wantPassed: true,
		},
		{
			name:       "includes fail",
			expression: `includes(tools, "send_email")`,
			context: map[string]interface{}{
				"tools": []interface{}{"get_weather"},
			},
			wantPassed: false,
		},
		{
			name:       "lowercase transform",
			expression: `lowercase(name) == "weather lookup"`,
			context:    map[string]interface{}{"name": "Weather Lookup"},
			wantPassed: true,
		},
		{
			name:       "uppercase transform",
			expression: `uppercase(code) == "OK"`,
			context:    map[string]interface{}{"code": "ok"},
			wantPassed: true,
		},
		{
			name:       "round to places",
			expression: `round(average, 1) == 3.7`,
			context:    map[string]interface{}{"average": 3.666},
			wantPassed: true,
		},
		{
			name:       "builtin len still works",
			expression: `len(response) > 0`,
			context:    evalContext(),
			wantPassed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := eval.Evaluate(tt.expression, tt.context)
			if tt.wantError {
				if result.Err == nil {
					t.Errorf("Expected error, got none")
				}
				return
			}
			if result.Err != nil {
				t.Fatalf("Unexpected error: %v", result.Err)
			}
			if result.Passed != tt.wantPassed {
				t.Errorf("Expected Passed=%v, got %v", tt.wantPassed, result.Passed)
			}
		})
	}
}

func TestEvaluator_EmptyExpression(t *testing.T) {
	eval := New()

	result := eval.Evaluate("", map[string]interface{}{})
	if result.Err != nil {
		t.Fatalf("Unexpected error: %v", result.Err)
	}
	if !result.Passed {
		t.Errorf("Empty expression should pass")
	}
}

func TestEvaluator_InvalidExpression(t *testing.T) {
	eval := New()

	tests := []struct {
		name       string
		expression string
	}{
		{
			name:       "syntax error",
			expression: "score.average >=",
		},
		{
			name:       "non-boolean result",
			expression: "duration_ms + 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := eval.Evaluate(tt.expression, evalContext())
			if result.Err == nil {
				t.Errorf("Expected error, got none")
			}
			if result.Passed {
				t.Errorf("Invalid expression should not pass")
			}
		})
	}
}

func TestEvaluator_UndefinedVariable(t *testing.T) {
	eval := New()

	// Undefined variables resolve to nil rather than failing compilation,
	// so suites can reference optional fields.
	result := eval.Evaluate("missing == nil", map[string]interface{}{})
	if result.Err != nil {
		t.Fatalf("Unexpected error: %v", result.Err)
	}
	if !result.Passed {
		t.Errorf("Expected undefined variable to compare equal to nil")
	}
}

func TestEvaluator_Validate(t *testing.T) {
	eval := New()

	if err := eval.Validate("score.average >= 3"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := eval.Validate(""); err != nil {
		t.Fatalf("Unexpected error for empty expression: %v", err)
	}
	if err := eval.Validate("&&"); err == nil {
		t.Errorf("Expected error for malformed expression")
	}
}

func TestEvaluator_Cache(t *testing.T) {
	eval := New()

	expression := "score.average >= 3"
	ctx := evalContext()

	result := eval.Evaluate(expression, ctx)
	if result.Err != nil {
		t.Fatalf("Unexpected error: %v", result.Err)
	}
	if eval.CacheSize() != 1 {
		t.Errorf("Expected cache size 1, got %d", eval.CacheSize())
	}

	result = eval.Evaluate(expression, ctx)
	if result.Err != nil {
		t.Fatalf("Unexpected error: %v", result.Err)
	}
	if eval.CacheSize() != 1 {
		t.Errorf("Expected cache size 1 after re-evaluation, got %d", eval.CacheSize())
	}
}
