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

// Package assert evaluates per-evaluation expect expressions.
//
// An expect expression is a boolean expr-lang program run against the
// finished evaluation record, for example:
//
//	score.average >= 3.5 && success
//	has(response, "hello")
package assert

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Evaluator compiles and runs expect expressions. Compiled programs are
// cached so a suite re-run (watch mode) or a shared expression across
// evaluations compiles once.
type Evaluator struct {
	cache map[string]*vm.Program
	mu    sync.RWMutex
}

// New creates an expect evaluator.
func New() *Evaluator {
	return &Evaluator{
		cache: make(map[string]*vm.Program),
	}
}

// Result is the outcome of one expect evaluation.
type Result struct {
	// Passed reports whether the expression evaluated to true.
	Passed bool

	// Expression is the expect expression that was evaluated.
	Expression string

	// Err is set when the expression failed to compile, failed at runtime,
	// or did not produce a boolean.
	Err error
}

// Evaluate runs an expect expression against the evaluation context. The
// empty expression passes; a non-boolean result is an error, never a pass.
func (e *Evaluator) Evaluate(expression string, ctx map[string]interface{}) Result {
	if expression == "" {
		return Result{Passed: true, Expression: expression}
	}

	program, err := e.compile(expression)
	if err != nil {
		return Result{
			Expression: expression,
			Err:        fmt.Errorf("failed to compile expect expression: %w", err),
		}
	}

	evalCtx := make(map[string]interface{}, len(ctx))
	for k, v := range ctx {
		evalCtx[k] = v
	}
	for name, fn := range Functions() {
		evalCtx[name] = fn
	}

	out, err := expr.Run(program, evalCtx)
	if err != nil {
		return Result{
			Expression: expression,
			Err:        fmt.Errorf("expect expression failed: %w", err),
		}
	}

	passed, ok := out.(bool)
	if !ok {
		return Result{
			Expression: expression,
			Err:        fmt.Errorf("expect expression must return a boolean, got %T", out),
		}
	}

	return Result{Passed: passed, Expression: expression}
}

// Validate compiles an expression without running it, for suite validation.
func (e *Evaluator) Validate(expression string) error {
	if expression == "" {
		return nil
	}
	_, err := e.compile(expression)
	return err
}

func (e *Evaluator) compile(expression string) (*vm.Program, error) {
	e.mu.RLock()
	if prog, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	env := make(map[string]interface{})
	for name, fn := range Functions() {
		env[name] = fn
	}

	prog, err := expr.Compile(expression,
		expr.Env(env),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expression] = prog
	e.mu.Unlock()

	return prog, nil
}

// CacheSize returns the number of cached programs.
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
