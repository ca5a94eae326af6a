package engine

import (
	"regexp"
	"strings"
)

// Responses are structured with <plan>, <think> and <solution> blocks. The
// solution marker doubles as the terminal condition of the run loop.
var (
	planPattern     = regexp.MustCompile(`(?is)<plan>(.*?)</\s*plan\s*>`)
	thinkPattern    = regexp.MustCompile(`(?is)<think>(.*?)</\s*think\s*>`)
	solutionPattern = regexp.MustCompile(`(?is)<solution>(.*?)</\s*solution\s*>`)
)

// ExtractPlan returns the trimmed body of the first <plan> block.
func ExtractPlan(content string) (string, bool) {
	return extract(planPattern, content)
}

// ExtractThink returns the trimmed body of the first <think> block.
func ExtractThink(content string) (string, bool) {
	return extract(thinkPattern, content)
}

// ExtractSolution returns the trimmed body of the first <solution> block.
// An opened but unclosed block falls back to the full content so a solution
// is never lost to a missing closing tag.
func ExtractSolution(content string) (string, bool) {
	if body, ok := extract(solutionPattern, content); ok {
		return body, true
	}
	if HasSolutionMarker(content) {
		return strings.TrimSpace(content), true
	}
	return "", false
}

// HasSolutionMarker reports whether the response declares itself terminal.
func HasSolutionMarker(content string) bool {
	return strings.Contains(strings.ToLower(content), "<solution>")
}

func extract(p *regexp.Regexp, content string) (string, bool) {
	m := p.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}
