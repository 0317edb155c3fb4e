package evaluate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// ReconstructionClient asks a seq2seq scoring server for the reconstruction
// loss of a text.
type ReconstructionClient struct {
	endpoint string
	http     *http.Client
}

var _ ReconstructionScorer = (*ReconstructionClient)(nil)

// NewReconstructionClient creates a reusable HTTP client.
func NewReconstructionClient(endpoint string) *ReconstructionClient {
	return &ReconstructionClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Loss returns the mean token loss with the story as source and target,
// truncated to 1024 tokens.
func (c *ReconstructionClient) Loss(ctx context.Context, text string) (float64, error) {
	payload := map[string]any{
		"inputs": text,
		"parameters": map[string]any{
			"truncation": true,
			"max_length": 1024,
		},
	}

	var resp struct {
		Loss *float64 `json:"loss"`
	}
	if err := postJSON(ctx, c.http, c.endpoint, payload, &resp); err != nil {
		return 0, err
	}
	if resp.Loss == nil {
		return 0, fmt.Errorf("response has no loss")
	}
	return *resp.Loss, nil
}

// TGIClient talks to a text-generation-inference server hosting a causal
// language model.
type TGIClient struct {
	endpoint string
	http     *http.Client
}

var _ LogProbScorer = (*TGIClient)(nil)

// NewTGIClient creates a reusable HTTP client.
func NewTGIClient(endpoint string) *TGIClient {
	return &TGIClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Tokenize returns the tokens of text with their byte spans.
func (c *TGIClient) Tokenize(ctx context.Context, text string) ([]Token, error) {
	var tokens []Token
	if err := postJSON(ctx, c.http, c.endpoint+"/tokenize", map[string]any{"inputs": text}, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

type prefillToken struct {
	ID      int      `json:"id"`
	Text    string   `json:"text"`
	LogProb *float64 `json:"logprob"`
}

// PrefillLogProbs runs a one-token generation with decoder input details and
// returns the log probability of every prompt token.
func (c *TGIClient) PrefillLogProbs(ctx context.Context, text string) ([]float64, error) {
	payload := map[string]any{
		"inputs": text,
		"parameters": map[string]any{
			"max_new_tokens":        1,
			"details":               true,
			"decoder_input_details": true,
		},
	}

	var resp struct {
		Details *struct {
			Prefill []prefillToken `json:"prefill"`
		} `json:"details"`
	}
	if err := postJSON(ctx, c.http, c.endpoint+"/generate", payload, &resp); err != nil {
		return nil, err
	}
	if resp.Details == nil {
		return nil, fmt.Errorf("response has no details")
	}

	lps := make([]float64, len(resp.Details.Prefill))
	for i, tok := range resp.Details.Prefill {
		if tok.LogProb == nil {
			lps[i] = math.NaN()
			continue
		}
		lps[i] = *tok.LogProb
	}
	return lps, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
