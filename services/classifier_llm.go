package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/sahilchouksey/qbank-pipeline/model"
	"github.com/sahilchouksey/qbank-pipeline/services/digitalocean"
	"github.com/sahilchouksey/qbank-pipeline/utils"
)

// LLMUnitClassifier asks the inference service to pick the syllabus unit for
// a question. Any failure degrades to an empty match so a single bad call
// never aborts the document; the question is routed to review instead.
type LLMUnitClassifier struct {
	client ExtractionClient
}

// NewLLMUnitClassifier creates a classifier backed by the inference service
func NewLLMUnitClassifier(client ExtractionClient) *LLMUnitClassifier {
	return &LLMUnitClassifier{client: client}
}

// unitClassificationResult is the shape the service must return. A null
// unit_number means the service abstained.
type unitClassificationResult struct {
	UnitNumber *int     `json:"unit_number"`
	Confidence float64  `json:"confidence"`
	TopicTags  []string `json:"topic_tags"`
}

var unitClassificationSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"unit_number": map[string]any{
			"type":        []string{"integer", "null"},
			"description": "Unit number of the best-matching syllabus unit, null when no unit fits",
		},
		"confidence": map[string]any{
			"type":        "number",
			"description": "Confidence in the assignment between 0.0 and 1.0",
		},
		"topic_tags": map[string]any{
			"type":        "array",
			"description": "Topic strings from the chosen unit's syllabus that the question covers",
			"items":       map[string]any{"type": "string"},
		},
	},
	"required": []string{"unit_number", "confidence"},
}

const unitClassificationPrompt = `You are an expert at mapping examination questions to syllabus units.

CRITICAL: You MUST respond with ONLY valid JSON. No markdown, no explanations, no code blocks. Start your response with { and end with }.

RULES:
1. Pick the ONE unit whose syllabus topics best cover the question. Report its unit number.
2. Set unit_number to null when the question does not belong to ANY listed unit. Never force a match.
3. Report confidence between 0.0 and 1.0 reflecting how clearly the question belongs to the unit.
4. topic_tags must be EXACT topic strings copied from the chosen unit's topic list. Never invent tags.

REMEMBER: Output ONLY the JSON object.`

// Classify asks the service for a unit assignment. Returns an empty match on
// service failure, unparseable output, an unknown unit number, an abstention,
// or a confidence at or below the threshold.
func (c *LLMUnitClassifier) Classify(ctx context.Context, questionText string, units []model.CourseUnit) UnitMatch {
	if len(units) == 0 || strings.TrimSpace(questionText) == "" {
		return UnitMatch{}
	}

	userPrompt := buildUnitClassificationPrompt(questionText, units)

	response, err := c.client.StructuredCompletion(
		ctx,
		unitClassificationPrompt,
		userPrompt,
		"unit_classification",
		"Syllabus unit assignment for one exam question",
		unitClassificationSchema,
		digitalocean.WithInferenceMaxTokens(512),
		digitalocean.WithInferenceTemperature(0),
	)
	if err != nil {
		log.Printf("Unit Classifier: Structured output failed, falling back to JSONCompletion: %v", err)
		response, err = c.client.JSONCompletion(
			ctx,
			unitClassificationPrompt,
			userPrompt,
			digitalocean.WithInferenceMaxTokens(512),
			digitalocean.WithInferenceTemperature(0),
		)
	}
	if err != nil {
		cerr := &ClassificationError{Reason: "classification service call failed", Err: err}
		log.Printf("Unit Classifier: %v", cerr)
		return UnitMatch{}
	}

	var result unitClassificationResult
	if err := utils.ExtractJSONTo(response, &result); err != nil {
		cerr := &ClassificationError{Reason: "service returned unparseable result", Err: err}
		log.Printf("Unit Classifier: %v", cerr)
		return UnitMatch{}
	}

	// Abstention: the service decided no listed unit fits
	if result.UnitNumber == nil {
		return UnitMatch{}
	}

	matched := findUnitByNumber(units, *result.UnitNumber)
	if matched == nil {
		cerr := &ClassificationError{Reason: fmt.Sprintf("service chose unit %d which is not in the syllabus", *result.UnitNumber)}
		log.Printf("Unit Classifier: %v", cerr)
		return UnitMatch{}
	}

	confidence := clampConfidence(result.Confidence)
	if !clearsThreshold(confidence) {
		return UnitMatch{Confidence: confidence}
	}

	return UnitMatch{
		UnitID:     &matched.ID,
		UnitName:   matched.Name,
		Confidence: confidence,
		TopicTags:  filterTopicTags(result.TopicTags, matched.TopicList()),
	}
}

// buildUnitClassificationPrompt renders the syllabus units and the question
func buildUnitClassificationPrompt(questionText string, units []model.CourseUnit) string {
	var sb strings.Builder
	sb.WriteString("Syllabus units:\n")
	for i := range units {
		sb.WriteString(fmt.Sprintf("Unit %d: %s\n", units[i].UnitNumber, units[i].Name))
		if topics := units[i].TopicList(); len(topics) > 0 {
			sb.WriteString(fmt.Sprintf("  Topics: %s\n", strings.Join(topics, "; ")))
		}
	}
	sb.WriteString("\nQuestion:\n")
	sb.WriteString(questionText)
	return sb.String()
}

func findUnitByNumber(units []model.CourseUnit, number int) *model.CourseUnit {
	for i := range units {
		if units[i].UnitNumber == number {
			return &units[i]
		}
	}
	return nil
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// filterTopicTags keeps only tags that are actual topic strings of the unit,
// returned in syllabus casing. Tags are always exact syllabus strings.
func filterTopicTags(tags, topics []string) []string {
	byLower := make(map[string]string, len(topics))
	for _, topic := range topics {
		byLower[strings.ToLower(strings.TrimSpace(topic))] = topic
	}

	var kept []string
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		key := strings.ToLower(strings.TrimSpace(tag))
		if topic, ok := byLower[key]; ok && !seen[key] {
			seen[key] = true
			kept = append(kept, topic)
		}
	}
	return kept
}
