package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/itchyny/gojq"

	"github.com/EbramTawfik/mcp-evals/internal/runner"
)

const (
	// jqTimeout bounds expression execution; a report filter that runs
	// longer than this is a runaway program, not a query.
	jqTimeout = 1 * time.Second

	// jqMaxInputSize bounds the document fed to the filter (10MB).
	jqMaxInputSize = 10 * 1024 * 1024
)

// ApplyJQ filters the summary document with a jq expression and returns
// the transformed value: a single output directly, multiple outputs as an
// array.
func ApplyJQ(ctx context.Context, expression string, summary *runner.Summary) (interface{}, error) {
	doc, err := toDocument(summary)
	if err != nil {
		return nil, err
	}
	if expression == "" {
		return doc, nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("jq parse error: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("jq compile error: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, jqTimeout)
	defer cancel()

	resultChan := make(chan interface{}, 1)
	errorChan := make(chan error, 1)

	go func() {
		iter := code.Run(doc)

		var results []interface{}
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				errorChan <- err
				return
			}
			results = append(results, v)
		}

		switch len(results) {
		case 0:
			resultChan <- nil
		case 1:
			resultChan <- results[0]
		default:
			resultChan <- results
		}
	}()

	select {
	case result := <-resultChan:
		return result, nil
	case err := <-errorChan:
		return nil, fmt.Errorf("jq evaluation failed: %w", err)
	case <-execCtx.Done():
		return nil, fmt.Errorf("jq execution timeout after %v", jqTimeout)
	}
}

// WriteJQ writes a jq result as indented JSON.
func WriteJQ(value interface{}, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// toDocument converts the summary to the plain map/slice form gojq
// consumes, enforcing the input size bound along the way.
func toDocument(summary *runner.Summary) (interface{}, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal results: %w", err)
	}
	if len(data) > jqMaxInputSize {
		return nil, fmt.Errorf("results size (%d bytes) exceeds maximum (%d bytes)",
			len(data), jqMaxInputSize)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to rebuild results document: %w", err)
	}
	return doc, nil
}
