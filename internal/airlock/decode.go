package airlock

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"arbiter/internal/domain"
)

// embeddedObjectPattern finds candidate JSON objects inside mixed prose.
var embeddedObjectPattern = regexp.MustCompile(`\{[\s\S]*\}`)

// DecodeDocument parses raw generator output into a decision document.
// Generators rarely return clean JSON, so decoding is attempted in order:
//
//  1. the whole text as a JSON object
//  2. the text with markdown code fences stripped
//  3. the largest embedded JSON object found in mixed content
//
// If nothing yields a JSON object, a ParseError Failure carrying the
// underlying decode error is returned.
func DecodeDocument(text string) (map[string]any, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, domain.NewFailure(domain.ParseError, "", text, "document is empty")
	}

	doc, firstErr := decodeObject(trimmed)
	if firstErr == nil {
		return doc, nil
	}

	if doc, err := decodeObject(stripMarkdownFences(trimmed)); err == nil {
		return doc, nil
	}

	// Mixed content: try each embedded candidate, largest first.
	matches := embeddedObjectPattern.FindAllString(trimmed, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		if doc, err := decodeObject(matches[i]); err == nil {
			return doc, nil
		}
	}

	return nil, domain.NewFailure(domain.ParseError, "", truncateValue(trimmed),
		"no JSON object found in output: %v", firstErr)
}

func decodeObject(s string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// stripMarkdownFences removes ```json ... ``` wrapping.
func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// truncateValue keeps failure payloads readable in logs.
func truncateValue(s string) string {
	const maxLen = 200
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// sortedKeys returns map keys in a stable order so sanitization is
// deterministic regardless of Go map iteration.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
