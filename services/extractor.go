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

// ExtractionClient is the boundary to the external text+vision reasoning
// service. Satisfied by digitalocean.InferenceClient; tests substitute fakes.
type ExtractionClient interface {
	StructuredCompletion(ctx context.Context, systemPrompt, userPrompt string, schemaName, schemaDescription string, schema map[string]interface{}, options ...digitalocean.InferenceOption) (string, error)
	JSONCompletion(ctx context.Context, systemPrompt, userPrompt string, options ...digitalocean.InferenceOption) (string, error)
	StructuredVisionCompletion(ctx context.Context, systemPrompt, userPrompt string, attachments [][]byte, attachmentMIME string, schemaName, schemaDescription string, schema map[string]interface{}, options ...digitalocean.InferenceOption) (string, error)
}

// ExtractedQuestion is one question record produced by extraction, before
// classification and persistence.
type ExtractedQuestion struct {
	Number        string `json:"number"`
	Text          string `json:"text"`
	Marks         *int   `json:"marks"`
	BloomLevel    *int   `json:"bloom_level"`
	BloomCategory string `json:"bloom_category"`
	HasDiagram    bool   `json:"has_diagram"`
	HasSubparts   bool   `json:"has_subparts"`
	PageNumber    *int   `json:"page_number"`
}

// questionExtractionResult is the top-level shape the extraction service
// must return
type questionExtractionResult struct {
	Questions []ExtractedQuestion `json:"questions"`
}

// QuestionExtractor produces a flat ordered list of question records from
// converter output
type QuestionExtractor struct {
	client ExtractionClient
}

// NewQuestionExtractor creates a new question extractor
func NewQuestionExtractor(client ExtractionClient) *QuestionExtractor {
	return &QuestionExtractor{client: client}
}

// questionExtractionSchema is the JSON schema for structured question extraction
var questionExtractionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"questions": map[string]any{
			"type":        "array",
			"description": "Ordered list of questions in the paper, subparts as separate entries",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"number": map[string]any{
						"type":        "string",
						"description": "Question label exactly as printed (e.g., 1, 2a, 3(ii))",
					},
					"text": map[string]any{
						"type":        "string",
						"description": "Full self-contained question text, context restated for subparts",
					},
					"marks": map[string]any{
						"type":        []string{"integer", "null"},
						"description": "Marks allocated, null when the paper does not state them",
					},
					"bloom_level": map[string]any{
						"type":        []string{"integer", "null"},
						"description": "Bloom's taxonomy level 1-6, null if unclear",
					},
					"bloom_category": map[string]any{
						"type":        "string",
						"description": "Bloom category label matching the level (Remembering..Creating)",
					},
					"has_diagram": map[string]any{
						"type":        "boolean",
						"description": "Whether the question includes or requires a diagram/figure",
					},
					"has_subparts": map[string]any{
						"type":        "boolean",
						"description": "Whether this record was split out of a multi-part question",
					},
					"page_number": map[string]any{
						"type":        []string{"integer", "null"},
						"description": "1-indexed page the question appears on, if identifiable",
					},
				},
				"required": []string{"number", "text"},
			},
		},
	},
	"required": []string{"questions"},
}

// questionExtractionPrompt is the system prompt for question extraction
const questionExtractionPrompt = `You are an expert at extracting individual questions from academic examination question papers.

CRITICAL: You MUST respond with ONLY valid JSON. No markdown, no explanations, no code blocks, no text before or after the JSON. Start your response with { and end with }.

IMPORTANT - UNDERSTAND THE EXAM PAPER STRUCTURE:
- Questions are numbered 1, 2, 3, etc.
- Many questions have SUB-PARTS labeled (a), (b), (i), (ii) - these are SEPARATE questions
- Marks usually appear in brackets near the question, e.g. [5], (10 marks), 5M

EXTRACTION RULES:
1. SUB-PARTS = emit SEPARATE entries with numbers like "2a", "2b", "3(i)", "3(ii)".
   Each entry must restate enough context to stand alone. Set has_subparts=true on them.
2. MARKS = only report marks printed on the paper. If no marks annotation is visible
   for a question, set marks to null. NEVER guess a default.
3. BLOOM LEVEL = classify the cognitive skill the question demands:
   1=Remembering, 2=Understanding, 3=Applying, 4=Analyzing, 5=Evaluating, 6=Creating.
   Set null if genuinely unclear.
4. DIAGRAMS = set has_diagram=true when the question shows a figure or asks to draw one.
5. ORDER = keep questions in the order they appear in the paper.
6. Extract ALL questions - do not miss any sub-parts.

REMEMBER: Output ONLY the JSON object. Start with { end with }.`

// Extract produces the ordered question records for a converted document.
// Empty or unparseable service output yields an *ExtractionError, fatal for
// the whole document.
func (e *QuestionExtractor) Extract(ctx context.Context, conv *ConversionResult) ([]ExtractedQuestion, error) {
	if conv == nil || (conv.Text == "" && len(conv.PageBlobs) == 0) {
		return nil, &ExtractionError{Reason: "no text or page payloads to extract from"}
	}

	var response string
	var err error

	if conv.Text != "" {
		response, err = e.extractFromText(ctx, conv.Text)
	} else {
		// Image-only document: the vision endpoint works from page payloads
		log.Printf("Question Extractor: No text layer, sending %d page payloads to vision endpoint", len(conv.PageBlobs))
		response, err = e.client.StructuredVisionCompletion(
			ctx,
			questionExtractionPrompt,
			"Extract every question from the attached question paper pages.",
			conv.PageBlobs,
			"application/pdf",
			"question_extraction",
			"Structured extraction of exam questions with subpart decomposition",
			questionExtractionSchema,
			digitalocean.WithInferenceMaxTokens(8192),
			digitalocean.WithInferenceTemperature(0),
		)
	}
	if err != nil {
		return nil, &ExtractionError{Reason: "extraction service call failed", Err: err}
	}

	var result questionExtractionResult
	if err := utils.ExtractJSONTo(response, &result); err != nil {
		log.Printf("Question Extractor: Failed to parse response (length=%d): %v", len(response), err)
		return nil, &ExtractionError{Reason: "service returned unparseable result", Err: err}
	}

	questions := e.normalize(result.Questions)
	if len(questions) == 0 {
		return nil, &ExtractionError{Reason: "service returned no questions"}
	}

	log.Printf("Question Extractor: Extracted %d questions", len(questions))
	return questions, nil
}

// extractFromText runs structured extraction over document text with a
// JSONCompletion fallback, following the usual two-step LLM call pattern
func (e *QuestionExtractor) extractFromText(ctx context.Context, text string) (string, error) {
	maxChars := 50000
	if len(text) > maxChars {
		text = text[:maxChars] + "\n\n[Document truncated due to length]"
	}

	userPrompt := fmt.Sprintf("Extract every question from the following question paper:\n\n%s", text)

	response, err := e.client.StructuredCompletion(
		ctx,
		questionExtractionPrompt,
		userPrompt,
		"question_extraction",
		"Structured extraction of exam questions with subpart decomposition",
		questionExtractionSchema,
		digitalocean.WithInferenceMaxTokens(8192),
		digitalocean.WithInferenceTemperature(0), // Deterministic output
	)
	if err == nil {
		return response, nil
	}

	log.Printf("Question Extractor: Structured output failed, falling back to JSONCompletion: %v", err)
	return e.client.JSONCompletion(
		ctx,
		questionExtractionPrompt,
		userPrompt,
		digitalocean.WithInferenceMaxTokens(8192),
		digitalocean.WithInferenceTemperature(0),
	)
}

// normalize validates service output and fills heuristic fallbacks: marks
// from bracketed annotations, Bloom level from keyword scoring.
func (e *QuestionExtractor) normalize(raw []ExtractedQuestion) []ExtractedQuestion {
	questions := make([]ExtractedQuestion, 0, len(raw))

	for _, q := range raw {
		q.Text = strings.TrimSpace(q.Text)
		q.Number = strings.TrimSpace(q.Number)
		if q.Text == "" {
			continue
		}
		if q.Number == "" {
			q.Number = fmt.Sprintf("%d", len(questions)+1)
		}

		if q.Marks != nil && *q.Marks <= 0 {
			q.Marks = nil
		}
		if q.Marks == nil {
			q.Marks = ParseMarks(q.Text)
		}

		if q.BloomLevel != nil && (*q.BloomLevel < 1 || *q.BloomLevel > 6) {
			q.BloomLevel = nil
			q.BloomCategory = ""
		}
		if q.BloomLevel == nil {
			q.BloomLevel, q.BloomCategory = GuessBloomLevel(q.Text)
		}
		if q.BloomLevel != nil && q.BloomCategory == "" {
			q.BloomCategory = model.BloomCategories[*q.BloomLevel]
		}

		if q.PageNumber != nil && *q.PageNumber < 1 {
			q.PageNumber = nil
		}

		questions = append(questions, q)
	}

	return questions
}
