package sift

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var codeBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*\n?(.*?)```") //nolint:gochecknoglobals
var thinkRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)             //nolint:gochecknoglobals

// StripThinkBlocks removes <think>...</think> blocks from model responses.
// Some models (like qwen3) output reasoning in these blocks.
func StripThinkBlocks(s string) string {
	return strings.TrimSpace(thinkRegex.ReplaceAllString(s, ""))
}

// ExtractJSON pulls the first balanced JSON object or array out of a model
// response. Providers routinely wrap JSON in prose or markdown code fences,
// so the raw text is never fed to json.Unmarshal directly. Returns the
// extracted substring and whether anything JSON-shaped was found.
func ExtractJSON(raw string) (string, bool) {
	raw = StripThinkBlocks(raw)

	// Code fences first: models told "no markdown" add them anyway.
	if m := codeBlockRegex.FindStringSubmatch(raw); len(m) == 2 {
		if inner := strings.TrimSpace(m[1]); inner != "" {
			raw = inner
		}
	}

	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return "", false
	}

	opener := raw[start]
	closer := byte('}')
	if opener == '[' {
		closer = ']'
	}

	// Scan for the matching closer, honoring strings and escapes so braces
	// inside quoted values don't end the match early.
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == opener:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}

	// Truncated output: return from the opener to the end so the caller's
	// unmarshal fails cleanly and the fallback path runs.
	return raw[start:], true
}

// DecodeJSON extracts a JSON value from raw model output and unmarshals it
// into v. Every stage uses this one helper with an explicit stage-local
// fallback at the call site; a non-nil error means the stage keeps its
// previous state.
func DecodeJSON(raw string, v any) error {
	extracted, ok := ExtractJSON(raw)
	if !ok {
		return fmt.Errorf("no JSON found in response: %.120q", raw)
	}
	if err := json.Unmarshal([]byte(extracted), v); err != nil {
		return fmt.Errorf("decode model JSON: %w (raw: %.200s)", err, extracted)
	}
	return nil
}

func trimStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
