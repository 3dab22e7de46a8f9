package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	// DefaultVoyageModel is the default Voyage AI embedding model.
	DefaultVoyageModel = "voyage-3"

	// VoyageAPIEndpoint is the Voyage AI API endpoint.
	VoyageAPIEndpoint = "https://api.voyageai.com/v1/embeddings"

	maxErrorBody = 512
)

// HTTPClient posts batches to an embeddings endpoint that speaks the
// Voyage/OpenAI wire shape: {"input": [...], "model": ...} in, and
// {"data": [{"embedding": [...], "index": n}]} out.
type HTTPClient struct {
	apiKey    string
	model     string
	endpoint  string
	inputType string
	dimension int
	client    *http.Client
}

var _ Backend = (*HTTPClient)(nil)

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithEndpoint overrides the API endpoint.
func WithEndpoint(url string) HTTPOption {
	return func(c *HTTPClient) {
		if url != "" {
			c.endpoint = url
		}
	}
}

// WithHTTPClient sets the underlying http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) { c.client = hc }
}

// WithDimension makes the client reject vectors of any other length.
func WithDimension(dim int) HTTPOption {
	return func(c *HTTPClient) { c.dimension = dim }
}

// WithInputType sets Voyage's input_type hint ("document" or "query").
func WithInputType(t string) HTTPOption {
	return func(c *HTTPClient) { c.inputType = t }
}

// NewHTTPClient creates an embedding client. If model is empty, uses
// DefaultVoyageModel.
func NewHTTPClient(apiKey, model string, opts ...HTTPOption) (*HTTPClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key required for HTTP embeddings")
	}
	if model == "" {
		model = DefaultVoyageModel
	}
	c := &HTTPClient{
		apiKey:   apiKey,
		model:    model,
		endpoint: VoyageAPIEndpoint,
		client:   &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Model returns the configured embedding model name.
func (c *HTTPClient) Model() string {
	return c.model
}

type embedRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// EmbedTexts sends one request for the whole slice.
// HTTP 429 yields ErrRateLimited, other non-2xx codes a *StatusError.
func (c *HTTPClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	jsonBody, err := json.Marshal(embedRequest{Input: texts, Model: c.model, InputType: c.inputType})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classify(fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrMalformedResponse, err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings, want %d",
			ErrMalformedResponse, len(parsed.Data), len(texts))
	}

	// Sort by index and extract embeddings
	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) || out[d.Index] != nil {
			return nil, fmt.Errorf("%w: invalid index %d", ErrMalformedResponse, d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at %d", ErrMalformedResponse, d.Index)
		}
		if c.dimension > 0 && len(d.Embedding) != c.dimension {
			return nil, fmt.Errorf("%w: embedding %d dimension %d, want %d",
				ErrMalformedResponse, d.Index, len(d.Embedding), c.dimension)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
