// Package llmjson recovers JSON objects from raw model output. Models are
// asked for bare JSON but routinely wrap it in markdown fences or prose, so
// parsing runs through an ordered list of recovery strategies and the first
// one that yields valid JSON wins.
package llmjson

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fencedBlockRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")
	objectSpanRe  = regexp.MustCompile(`\{[\s\S]*\}`)
)

// ErrNoJSON is returned when no recovery strategy produced valid JSON.
var ErrNoJSON = fmt.Errorf("llmjson: no parseable JSON found in model output")

// strategy extracts a candidate JSON payload from raw text. The bool reports
// whether the strategy applied at all; the candidate still has to parse.
type strategy func(raw string) (string, bool)

// direct takes the whole response as-is.
func direct(raw string) (string, bool) {
	return strings.TrimSpace(raw), true
}

// firstFencedBlock extracts the body of the first ``` or ```json block.
func firstFencedBlock(raw string) (string, bool) {
	m := fencedBlockRe.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// stripFences removes every fence marker and keeps whatever is left, for
// responses with unbalanced or trailing fences the block regex misses.
func stripFences(raw string) (string, bool) {
	if !strings.Contains(raw, "```") {
		return "", false
	}
	s := strings.ReplaceAll(raw, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s), true
}

// outermostObject grabs the span from the first '{' to the last '}', which
// handles JSON buried in surrounding prose.
func outermostObject(raw string) (string, bool) {
	m := objectSpanRe.FindString(raw)
	if m == "" {
		return "", false
	}
	return m, true
}

// strategies in recovery order. Cheapest and most faithful first; the
// prose-stripping span match is the last resort because it can over-capture.
var strategies = []strategy{direct, firstFencedBlock, stripFences, outermostObject}

// Extract pulls the first parseable JSON value out of raw model output.
// It never panics on malformed input; if nothing parses it returns ErrNoJSON.
func Extract(raw string) (json.RawMessage, error) {
	for _, s := range strategies {
		candidate, ok := s(raw)
		if !ok || candidate == "" {
			continue
		}
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
	}
	return nil, ErrNoJSON
}

// Unmarshal extracts JSON from raw model output and decodes it into v.
func Unmarshal(raw string, v any) error {
	payload, err := Extract(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("llmjson: decode recovered JSON: %w", err)
	}
	return nil
}
