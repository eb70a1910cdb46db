package parse

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lexcodex/codebuddy/framework"
)

var (
	filenamePattern = regexp.MustCompile(`\b[A-Za-z_][\w./-]*\.[A-Za-z]+\b`)

	deleteWords  = regexp.MustCompile(`\b(?:delete|remove)\b`)
	createWords  = regexp.MustCompile(`\b(?:create|make)\b`)
	writeWords   = regexp.MustCompile(`\b(?:create|make|write)\b`)
	readWords    = regexp.MustCompile(`\b(?:show|read|display)\b`)
	runWords     = regexp.MustCompile(`\b(?:run|execute)\b`)
	listWords    = regexp.MustCompile(`\blist\b`)
	folderWords  = regexp.MustCompile(`\b(?:folder|directory)\b`)
	listingWords = regexp.MustCompile(`\b(?:files?|folders?|director(?:y|ies))\b`)
)

// recognizedExtensions gates the heuristics that need a filename.
var recognizedExtensions = map[string]bool{
	".py": true, ".txt": true, ".js": true, ".ts": true, ".md": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true, ".html": true,
	".css": true, ".go": true, ".sh": true, ".cfg": true, ".ini": true,
}

var folderNameFiller = map[string]bool{"called": true, "named": true, "name": true, "with": true}

type intentRule struct {
	tool  string
	infer func(input, lower string) (framework.Params, bool)
}

// intentRules are tried in order; the first match wins. Folder rules run
// before file rules so "create a folder report.txt" makes a folder.
var intentRules = []intentRule{
	{"delete_folder", func(input, lower string) (framework.Params, bool) {
		if !deleteWords.MatchString(lower) || !folderWords.MatchString(lower) {
			return nil, false
		}
		name, ok := wordAfterFolder(input)
		if !ok {
			return nil, false
		}
		return framework.Params{"folderpath": framework.StringValue(name)}, true
	}},
	{"delete_file", func(input, lower string) (framework.Params, bool) {
		if !deleteWords.MatchString(lower) {
			return nil, false
		}
		name, ok := findFilename(input, nil)
		if !ok {
			return nil, false
		}
		return framework.Params{"filepath": framework.StringValue(name)}, true
	}},
	{"create_folder", func(input, lower string) (framework.Params, bool) {
		if !createWords.MatchString(lower) || !folderWords.MatchString(lower) {
			return nil, false
		}
		name, ok := wordAfterFolder(input)
		if !ok {
			name = "new_folder"
		}
		return framework.Params{"folderpath": framework.StringValue(name)}, true
	}},
	{"write_file", func(input, lower string) (framework.Params, bool) {
		if !writeWords.MatchString(lower) {
			return nil, false
		}
		name, ok := findFilename(input, recognizedExtensions)
		if !ok {
			return nil, false
		}
		return framework.Params{
			"filepath": framework.StringValue(name),
			"content":  framework.StringValue(templateContent(name, lower)),
		}, true
	}},
	{"read_file", func(input, lower string) (framework.Params, bool) {
		if !readWords.MatchString(lower) {
			return nil, false
		}
		name, ok := findFilename(input, recognizedExtensions)
		if !ok {
			return nil, false
		}
		return framework.Params{"filepath": framework.StringValue(name)}, true
	}},
	{"run_python", func(input, lower string) (framework.Params, bool) {
		if !runWords.MatchString(lower) {
			return nil, false
		}
		name, ok := findFilename(input, map[string]bool{".py": true})
		if !ok {
			return nil, false
		}
		return framework.Params{"filepath": framework.StringValue(name)}, true
	}},
	{"list_files", func(input, lower string) (framework.Params, bool) {
		if !listWords.MatchString(lower) || !listingWords.MatchString(lower) {
			return nil, false
		}
		return framework.Params{"folderpath": framework.StringValue(".")}, true
	}},
}

// InferIntent synthesises a tool call from the user's request when the model
// produced no usable call syntax. Rules whose tool is not in known are
// skipped.
func InferIntent(userInput string, known map[string]struct{}) (framework.Plan, bool) {
	input := strings.TrimSpace(userInput)
	if input == "" {
		return framework.Plan{}, false
	}
	lower := strings.ToLower(input)
	for _, rule := range intentRules {
		if _, ok := known[rule.tool]; !ok {
			continue
		}
		if params, ok := rule.infer(input, lower); ok {
			return framework.ToolPlan(rule.tool, params, framework.StrategyIntent), true
		}
	}
	return framework.Plan{}, false
}

// findFilename returns the first filename-like token. When exts is non-nil
// the extension must be in it.
func findFilename(input string, exts map[string]bool) (string, bool) {
	for _, candidate := range filenamePattern.FindAllString(input, -1) {
		if exts == nil || exts[strings.ToLower(filepath.Ext(candidate))] {
			return candidate, true
		}
	}
	return "", false
}

func wordAfterFolder(input string) (string, bool) {
	words := strings.Fields(input)
	for i, w := range words {
		switch strings.ToLower(trimWord(w)) {
		case "folder", "directory":
		default:
			continue
		}
		for _, next := range words[i+1:] {
			candidate := trimWord(next)
			if candidate == "" || folderNameFiller[strings.ToLower(candidate)] {
				continue
			}
			return candidate, true
		}
	}
	return "", false
}

func trimWord(w string) string {
	w = strings.Trim(w, "\"'`,!?:;()")
	return strings.TrimRight(w, ".")
}

func templateContent(filename, lower string) string {
	switch {
	case strings.Contains(lower, "hello"):
		return `print("Hello, World!")`
	case strings.Contains(lower, "calculator"):
		return "def add(a, b):\n    return a + b\n\n" +
			"def subtract(a, b):\n    return a - b\n\n" +
			"print(\"Simple calculator functions created\")"
	default:
		return "# " + filename + " - Created by CodeBuddy\nprint(\"File created successfully!\")"
	}
}

// IntentTools returns the names of every tool intent inference can produce.
func IntentTools() map[string]struct{} {
	out := make(map[string]struct{}, len(intentRules))
	for _, rule := range intentRules {
		out[rule.tool] = struct{}{}
	}
	return out
}
