package llm

import (
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("```[^`\\n]*\\n([\\s\\S]*?)```")

// ExtractJSON pulls the first JSON object or array out of completion text.
// JSON mode keeps most providers honest, but fenced or prose-wrapped output
// still shows up, so this strips markdown fences and falls back to bracket
// matching. Returns "" when the text contains no JSON value.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") {
		return text
	}

	for _, match := range fencedBlock.FindAllStringSubmatch(text, -1) {
		content := strings.TrimSpace(match[1])
		if strings.HasPrefix(content, "{") || strings.HasPrefix(content, "[") {
			return content
		}
	}

	return bracketSpan(text)
}

// bracketSpan locates the first { or [ and returns the balanced region that
// starts there, tracking string literals so brackets inside them don't count.
func bracketSpan(text string) string {
	open := strings.IndexAny(text, "{[")
	if open == -1 {
		return ""
	}

	var closeByte byte = '}'
	if text[open] == '[' {
		closeByte = ']'
	}
	openByte := text[open]

	depth := 0
	inString := false
	escaped := false

	for i := open; i < len(text); i++ {
		ch := text[i]

		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch ch {
		case openByte:
			depth++
		case closeByte:
			depth--
			if depth == 0 {
				return text[open : i+1]
			}
		}
	}

	return ""
}
