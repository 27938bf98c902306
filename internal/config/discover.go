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

package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Discover expands suite arguments into a sorted, de-duplicated file list.
// Literal paths must exist; arguments containing glob metacharacters are
// expanded with doublestar patterns (e.g. "evals/**/*.yaml").
func Discover(args []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	for _, arg := range args {
		if !hasGlobMeta(arg) {
			if _, err := os.Stat(arg); err != nil {
				return nil, fmt.Errorf("suite file %s: %w", arg, err)
			}
			if !seen[arg] {
				seen[arg] = true
				files = append(files, arg)
			}
			continue
		}

		matches, err := doublestar.FilepathGlob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid suite pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no suite files match pattern %q", arg)
		}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}
			if !seen[match] {
				seen[match] = true
				files = append(files, match)
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

// hasGlobMeta reports whether the argument contains glob metacharacters.
func hasGlobMeta(path string) bool {
	return strings.ContainsAny(path, "*?[{")
}
