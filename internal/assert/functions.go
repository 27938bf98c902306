package assert

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Functions returns the helper functions available inside expect
// expressions, keyed by name. Names avoid expr built-ins and reserved
// operators (contains, matches, in, len).
func Functions() map[string]interface{} {
	return map[string]interface{}{
		"has":       hasFunc,
		"match":     matchFunc,
		"includes":  includesFunc,
		"lowercase": lowercaseFunc,
		"uppercase": uppercaseFunc,
		"round":     roundFunc,
	}
}

// hasFunc reports whether s contains substr, ignoring case.
func hasFunc(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// matchFunc reports whether s matches the regular expression pattern.
func matchFunc(s, pattern string) (bool, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return re.MatchString(s), nil
}

// includesFunc reports whether list contains item. Comparison uses the
// string form of each element so mixed numeric types compare naturally.
func includesFunc(list interface{}, item interface{}) bool {
	items, ok := list.([]interface{})
	if !ok {
		return false
	}
	want := fmt.Sprintf("%v", item)
	for _, candidate := range items {
		if fmt.Sprintf("%v", candidate) == want {
			return true
		}
	}
	return false
}

func lowercaseFunc(s string) string {
	return strings.ToLower(s)
}

func uppercaseFunc(s string) string {
	return strings.ToUpper(s)
}

// roundFunc rounds x to the given number of decimal places.
func roundFunc(x float64, places int) float64 {
	if places < 0 {
		places = 0
	}
	shift := math.Pow(10, float64(places))
	return math.Round(x*shift) / shift
}
