package digitalocean

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/sync/errgroup"
)

// DefaultEmbeddingModel is the default model for text embeddings
const DefaultEmbeddingModel = "gte-large-en-v1.5"

const (
	// embeddingBatchSize caps inputs per request; the API rejects oversized batches
	embeddingBatchSize = 64
	// embeddingMaxConcurrency bounds parallel embedding requests
	embeddingMaxConcurrency = 4
)

// embeddingRequest is an OpenAI-compatible embeddings request
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingData holds one embedding vector from the response
type embeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// embeddingResponse is the response from the embeddings API
type embeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  InferenceUsage  `json:"usage"`
}

// CreateEmbeddings returns one embedding vector per input text, in input
// order. Uses the same bearer auth and base URL as chat completions. Large
// input sets are split into batches fetched concurrently.
func (c *InferenceClient) CreateEmbeddings(ctx context.Context, model string, inputs []string) ([][]float64, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs provided for embeddings")
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}

	if len(inputs) <= embeddingBatchSize {
		return c.createEmbeddingBatch(ctx, model, inputs)
	}

	vectors := make([][]float64, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embeddingMaxConcurrency)

	for start := 0; start < len(inputs); start += embeddingBatchSize {
		end := start + embeddingBatchSize
		if end > len(inputs) {
			end = len(inputs)
		}
		start, end := start, end
		g.Go(func() error {
			batch, err := c.createEmbeddingBatch(gctx, model, inputs[start:end])
			if err != nil {
				return err
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// createEmbeddingBatch performs a single embeddings API request.
func (c *InferenceClient) createEmbeddingBatch(ctx context.Context, model string, inputs []string) ([][]float64, error) {
	jsonData, err := json.Marshal(embeddingRequest{Model: model, Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/v1/embeddings"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embeddings API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result embeddingResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Data) != len(inputs) {
		return nil, fmt.Errorf("embeddings API returned %d vectors for %d inputs", len(result.Data), len(inputs))
	}

	// The API documents input-order responses but indexes are authoritative
	vectors := make([][]float64, len(inputs))
	for _, data := range result.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, fmt.Errorf("embeddings API returned out-of-range index %d", data.Index)
		}
		vectors[data.Index] = data.Embedding
	}

	return vectors, nil
}
