package agents

import (
	"regexp"
	"strings"
)

// Mode is the execution path chosen for one request.
type Mode string

const (
	// ModeDirect runs a single Reason→Act pass.
	ModeDirect Mode = "direct"
	// ModeLoop runs the bounded perceive/reason/act/observe loop.
	ModeLoop Mode = "loop"
	// ModeExplain reads a file and asks the model to explain it.
	ModeExplain Mode = "explain"
)

// ModeProfile holds the sampling settings for a mode.
type ModeProfile struct {
	Name        Mode
	Temperature float64
	MaxTokens   int
}

func defaultModeProfiles() map[Mode]ModeProfile {
	return map[Mode]ModeProfile{
		ModeDirect:  {Name: ModeDirect, Temperature: 0.1, MaxTokens: 512},
		ModeLoop:    {Name: ModeLoop, Temperature: 0.2, MaxTokens: 1024},
		ModeExplain: {Name: ModeExplain, Temperature: 0.3, MaxTokens: 1536},
	}
}

const directMaxWords = 5

var (
	simpleVerbs = map[string]bool{
		"read": true, "show": true, "display": true, "cat": true, "open": true,
		"list": true, "ls": true, "run": true, "execute": true, "delete": true,
		"remove": true, "create": true, "make": true, "write": true, "git": true,
		"status": true, "diff": true, "log": true, "lint": true, "check": true,
		"commit": true, "push": true, "pull": true, "test": true,
	}
	complexHints  = regexp.MustCompile(`(?i)\b(and then|then|after that|afterwards|finally|also|until|fix|refactor|implement)\b|;|\band\b`)
	explainWords  = regexp.MustCompile(`(?i)\b(explain|describe|summari[sz]e|walk (?:me )?through|what does|how does|overview of)\b`)
	explainTarget = regexp.MustCompile(`[\w./\\-]+\.(?:py|go|js|ts|java|rb|rs|c|cpp|h|md|txt|json|yaml|yml|toml|sh)\b`)
	leadingCall   = regexp.MustCompile(`^([A-Za-z_]\w*)\s*\(`)
)

// ClassifyRequest picks the execution path. Explanation requests need a
// file to explain; direct-path requests either start with a known tool call
// or are short imperative phrases with no multi-step connectives.
func ClassifyRequest(input string, known map[string]struct{}, flags FeatureFlags) Mode {
	text := strings.TrimSpace(input)
	if explainWords.MatchString(text) && explainTarget.MatchString(text) {
		return ModeExplain
	}
	if !flags.EnableReactLoop {
		return ModeDirect
	}
	if !flags.DirectPath {
		return ModeLoop
	}
	if m := leadingCall.FindStringSubmatch(text); m != nil {
		if _, ok := known[m[1]]; ok {
			return ModeDirect
		}
	}
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 || len(words) > directMaxWords {
		return ModeLoop
	}
	if !simpleVerbs[strings.Trim(words[0], ".,!?:")] {
		return ModeLoop
	}
	if complexHints.MatchString(text) {
		return ModeLoop
	}
	return ModeDirect
}

// explainFile returns the file an explanation request refers to.
func explainFile(input string) string {
	return explainTarget.FindString(input)
}
