package services

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sahilchouksey/qbank-pipeline/model"
)

// bloomKeywords maps each Bloom level to its indicative action verbs.
// Primary action words (define, explain, solve, analyze, evaluate, design)
// score double.
var bloomKeywords = map[int][]string{
	1: {"define", "list", "recall", "name", "identify", "recognize", "memorize", "state", "write", "repeat", "what is", "who is"},
	2: {"explain", "describe", "summarize", "interpret", "classify", "compare", "contrast", "discuss", "distinguish", "illustrate", "how does", "why does"},
	3: {"solve", "implement", "apply", "calculate", "demonstrate", "execute", "use", "construct", "operate", "practice", "compute", "derive"},
	4: {"analyze", "compare", "examine", "differentiate", "investigate", "categorize", "decompose", "infer", "organize", "structure", "break down"},
	5: {"evaluate", "justify", "critique", "assess", "judge", "defend", "support", "conclude", "recommend", "validate", "argue"},
	6: {"design", "create", "develop", "construct", "formulate", "invent", "compose", "generate", "produce", "build", "synthesize", "integrate"},
}

var primaryBloomWords = map[string]bool{
	"define": true, "explain": true, "solve": true,
	"analyze": true, "evaluate": true, "design": true,
}

// GuessBloomLevel scores a question's text against the Bloom keyword sets
// and returns the best level with its category label. Returns (nil, "") when
// no level scores above the classification floor.
func GuessBloomLevel(text string) (*int, string) {
	textLower := strings.ToLower(text)

	bestLevel := 0
	bestScore := 0.0

	for level := 1; level <= 6; level++ {
		keywords := bloomKeywords[level]
		score := 0
		for _, keyword := range keywords {
			if strings.Contains(textLower, keyword) {
				if primaryBloomWords[keyword] {
					score += 2
				} else {
					score++
				}
			}
		}
		// Normalize so levels with longer keyword lists don't dominate
		normalized := float64(score) / float64(len(keywords)*2)
		if normalized > bestScore {
			bestScore = normalized
			bestLevel = level
		}
	}

	if bestLevel == 0 || bestScore == 0 {
		return nil, ""
	}

	return &bestLevel, model.BloomCategories[bestLevel]
}

// marksPatterns recognize bracketed/parenthetical numeric annotations near
// a question boundary, e.g. "[5]", "(5 marks)", "5M".
var marksPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\s*marks?`),
	regexp.MustCompile(`(?i)(\d+)\s*points?`),
	regexp.MustCompile(`(?i)\b(\d+)\s*M\b`),
	regexp.MustCompile(`\[(\d+)\]`),
	regexp.MustCompile(`\((\d+)\)\s*$`),
}

// ParseMarks extracts a marks annotation from question text. Absence yields
// nil, never a guessed default.
func ParseMarks(text string) *int {
	for _, pattern := range marksPatterns {
		match := pattern.FindStringSubmatch(text)
		if len(match) > 1 {
			marks, err := strconv.Atoi(match[1])
			if err == nil && marks > 0 && marks <= 100 {
				return &marks
			}
		}
	}
	return nil
}

// EstimateDifficulty scores marks plus Bloom level into easy/medium/hard
func EstimateDifficulty(marks *int, bloomLevel *int) string {
	score := 0

	if marks != nil {
		switch {
		case *marks <= 5:
			score++
		case *marks <= 10:
			score += 2
		default:
			score += 3
		}
	}

	if bloomLevel != nil {
		score += *bloomLevel
	}

	switch {
	case score <= 3:
		return "easy"
	case score <= 6:
		return "medium"
	default:
		return "hard"
	}
}
