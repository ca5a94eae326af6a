package security

import (
	"regexp"
	"strings"
)

// 外部提交的代码在执行前先过一遍风险检查
// Code submitted from outside the agent loop is screened before execution.
// The agent's own generated code is trusted; this guards surfaces where an
// arbitrary host can submit code directly, such as the MCP stdio server.

var (
	shellEscapePattern = regexp.MustCompile(`\b(os\.system|os\.popen|os\.exec[a-z]*|os\.spawn[a-z]*|subprocess\.|pty\.spawn)\s*\(?`)
	fsDestroyPattern   = regexp.MustCompile(`\b(shutil\.rmtree|os\.remove|os\.unlink|os\.rmdir|os\.removedirs)\s*\(`)
	dynamicImport      = regexp.MustCompile(`\b__import__\s*\(`)
)

// CodeRisk is the outcome of screening one code block.
type CodeRisk struct {
	Blocked bool
	Reason  string
}

// AnalyzeCode flags Python code that escapes to a shell, deletes files, or
// hides imports behind __import__. Unknown constructs pass; only the listed
// patterns block.
func AnalyzeCode(code string) CodeRisk {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return CodeRisk{}
	}

	if shellEscapePattern.MatchString(trimmed) {
		return CodeRisk{Blocked: true, Reason: "shell escape (os.system/subprocess)"}
	}
	if fsDestroyPattern.MatchString(trimmed) {
		return CodeRisk{Blocked: true, Reason: "filesystem deletion call"}
	}
	if dynamicImport.MatchString(trimmed) {
		return CodeRisk{Blocked: true, Reason: "dynamic import"}
	}
	return CodeRisk{}
}
