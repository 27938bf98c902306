// Package scoring grades evaluation responses with a judge model.
package scoring

import "fmt"

const (
	minSubScore = 1
	maxSubScore = 5
)

// Score is the five-dimension quality judgment for one evaluation response.
// Each sub-score is an integer in [1, 5].
type Score struct {
	// Accuracy measures factual correctness of the response.
	Accuracy int `json:"accuracy"`

	// Completeness measures whether the response covers the whole request.
	Completeness int `json:"completeness"`

	// Relevance measures how directly the response addresses the request.
	Relevance int `json:"relevance"`

	// Clarity measures how readable the response is.
	Clarity int `json:"clarity"`

	// Reasoning measures the quality of the steps taken to the answer.
	Reasoning int `json:"reasoning"`

	// Comments carries the judge's free-text remarks.
	Comments string `json:"comments,omitempty"`
}

// NewScore builds a Score, rejecting any sub-score outside [1, 5]. Values
// are never clamped; an out-of-range judgment is a grading bug the caller
// must handle, not data to normalize.
func NewScore(accuracy, completeness, relevance, clarity, reasoning int) (Score, error) {
	dims := []struct {
		name  string
		value int
	}{
		{"accuracy", accuracy},
		{"completeness", completeness},
		{"relevance", relevance},
		{"clarity", clarity},
		{"reasoning", reasoning},
	}
	for _, dim := range dims {
		if dim.value < minSubScore || dim.value > maxSubScore {
			return Score{}, fmt.Errorf("%s sub-score %d out of range [%d, %d]",
				dim.name, dim.value, minSubScore, maxSubScore)
		}
	}

	return Score{
		Accuracy:     accuracy,
		Completeness: completeness,
		Relevance:    relevance,
		Clarity:      clarity,
		Reasoning:    reasoning,
	}, nil
}

// Average returns the arithmetic mean of the five sub-scores.
func (s Score) Average() float64 {
	return float64(s.Accuracy+s.Completeness+s.Relevance+s.Clarity+s.Reasoning) / 5.0
}

// FailureScore is the minimum-valued sentinel attached to failed results.
// It records that the evaluation did not run to completion, not a real
// quality judgment.
func FailureScore(message string) Score {
	return Score{
		Accuracy:     minSubScore,
		Completeness: minSubScore,
		Relevance:    minSubScore,
		Clarity:      minSubScore,
		Reasoning:    minSubScore,
		Comments:     message,
	}
}

// NeutralScore is the mid-range score used when grading itself fails; the
// comment names what went wrong so the record is not mistaken for a real
// judgment.
func NeutralScore(comment string) Score {
	return Score{
		Accuracy:     3,
		Completeness: 3,
		Relevance:    3,
		Clarity:      3,
		Reasoning:    3,
		Comments:     comment,
	}
}
