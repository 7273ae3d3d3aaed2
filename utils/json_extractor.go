package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
)

// ErrNoJSONFound is returned when no valid JSON object/array is found in the input
var ErrNoJSONFound = errors.New("no valid JSON object or array found in response")

// ExtractJSON salvages a JSON payload from an extraction-service response.
// Even with structured output requested, responses arrive wrapped in
// markdown fences, prefixed with commentary, or trailed by garbage; the
// JSONCompletion fallback path is worse. Tries progressively more
// aggressive recovery before giving up.
func ExtractJSON(response string) (string, error) {
	if response == "" {
		return "", ErrNoJSONFound
	}

	cleaned := stripMarkdownFences(response)

	// Bracket matching finds the first complete object/array, ignoring
	// brackets inside string literals
	if jsonStr := matchBrackets(cleaned); jsonStr != "" && json.Valid([]byte(jsonStr)) {
		return jsonStr, nil
	}

	if json.Valid([]byte(cleaned)) {
		return cleaned, nil
	}

	// First-to-last brace span, for responses with unbalanced noise
	if jsonStr := widestBraceSpan(response); jsonStr != "" && json.Valid([]byte(jsonStr)) {
		return jsonStr, nil
	}

	if jsonStr := stripControlNoise(cleaned); jsonStr != "" && json.Valid([]byte(jsonStr)) {
		return jsonStr, nil
	}

	log.Printf("JSON Extractor: No valid JSON in response (length=%d)", len(response))
	return "", fmt.Errorf("%w: response length=%d", ErrNoJSONFound, len(response))
}

// ExtractJSONTo extracts JSON from a response and unmarshals it into target
func ExtractJSONTo(response string, target interface{}) error {
	jsonStr, err := ExtractJSON(response)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(jsonStr), target); err != nil {
		log.Printf("JSON Extractor: Unmarshal failed: %v", err)
		return err
	}
	return nil
}

var markdownFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")

// stripMarkdownFences removes ```json code fences around the payload
func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)

	if matches := markdownFenceRe.FindStringSubmatch(s); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// matchBrackets returns the first balanced {...} or [...] span, tracking
// string literals and escapes so embedded brackets don't end the span early
func matchBrackets(s string) string {
	startObj := strings.Index(s, "{")
	startArr := strings.Index(s, "[")

	var start int
	var openChar, closeChar rune

	switch {
	case startObj == -1 && startArr == -1:
		return ""
	case startArr == -1 || (startObj != -1 && startObj < startArr):
		start, openChar, closeChar = startObj, '{', '}'
	default:
		start, openChar, closeChar = startArr, '[', ']'
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := rune(s[i])

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		if c == openChar {
			depth++
		} else if c == closeChar {
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	return ""
}

// widestBraceSpan cuts from the first opening to the last closing bracket
func widestBraceSpan(s string) string {
	if first, last := strings.Index(s, "{"), strings.LastIndex(s, "}"); first != -1 && last > first {
		return s[first : last+1]
	}
	if first, last := strings.Index(s, "["), strings.LastIndex(s, "]"); first != -1 && last > first {
		return s[first : last+1]
	}
	return ""
}

// stripControlNoise trims garbage around the outermost braces and drops
// non-printable characters that break json.Valid
func stripControlNoise(s string) string {
	if last := strings.LastIndex(s, "}"); last > 0 {
		s = s[:last+1]
	}
	if first := strings.Index(s, "{"); first > 0 {
		s = s[first:]
	}

	var cleaned strings.Builder
	for _, r := range s {
		if r >= 32 && r < 127 || r == '\n' || r == '\r' || r == '\t' {
			cleaned.WriteRune(r)
		}
	}
	return cleaned.String()
}
