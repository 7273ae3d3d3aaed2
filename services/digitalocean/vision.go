package digitalocean

import (
	"context"
	"encoding/base64"
	"fmt"
)

// ContentPart is one element of a multimodal chat message
type ContentPart struct {
	Type     string        `json:"type"` // "text" or "image_url"
	Text     string        `json:"text,omitempty"`
	ImageURL *ImageURLPart `json:"image_url,omitempty"`
}

// ImageURLPart carries an attachment as a data URL
type ImageURLPart struct {
	URL string `json:"url"`
}

// VisionMessage is a chat message whose content is a list of parts
type VisionMessage struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// visionRequest mirrors InferenceRequest with multimodal messages
type visionRequest struct {
	Model          string          `json:"model"`
	Messages       []VisionMessage `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// StructuredVisionCompletion sends a prompt plus binary page attachments to
// the vision-capable endpoint, requesting schema-constrained JSON output.
// Attachments are inlined as base64 data URLs.
func (c *InferenceClient) StructuredVisionCompletion(ctx context.Context, systemPrompt, userPrompt string, attachments [][]byte, attachmentMIME string, schemaName, schemaDescription string, schema map[string]interface{}, options ...InferenceOption) (string, error) {
	if len(attachments) == 0 {
		return "", fmt.Errorf("no attachments provided for vision completion")
	}

	parts := make([]ContentPart, 0, len(attachments)+1)
	parts = append(parts, ContentPart{Type: "text", Text: userPrompt})
	for _, blob := range attachments {
		dataURL := fmt.Sprintf("data:%s;base64,%s", attachmentMIME, base64.StdEncoding.EncodeToString(blob))
		parts = append(parts, ContentPart{Type: "image_url", ImageURL: &ImageURLPart{URL: dataURL}})
	}

	// Reuse the option mechanism through a throwaway InferenceRequest
	base := InferenceRequest{
		Model:       c.model,
		Temperature: 0.3,
		MaxTokens:   4096,
	}
	options = append(options, WithResponseFormatJSONSchema(schemaName, schemaDescription, schema, true))
	for _, opt := range options {
		opt(&base)
	}

	req := visionRequest{
		Model: base.Model,
		Messages: []VisionMessage{
			{Role: "system", Content: []ContentPart{{Type: "text", Text: systemPrompt}}},
			{Role: "user", Content: parts},
		},
		Temperature:    base.Temperature,
		MaxTokens:      base.MaxTokens,
		ResponseFormat: base.ResponseFormat,
	}

	return c.sendVisionCompletion(ctx, req)
}

func (c *InferenceClient) sendVisionCompletion(ctx context.Context, req visionRequest) (string, error) {
	resp, err := c.postJSON(ctx, "/v1/chat/completions", req)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from inference API")
	}
	return resp.Choices[0].Message.Content, nil
}
