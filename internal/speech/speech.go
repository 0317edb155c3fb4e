// Package speech reads stories aloud using a hosted text-to-speech model.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Yates-Labs/storyteller/internal/apperr"
)

const op = "synthesize speech"

// DefaultContentType is what the hosted VITS model returns.
const DefaultContentType = "audio/flac"

var (
	ErrEmptyText    = errors.New("text is empty")
	ErrEmptyAudio   = errors.New("model returned no audio")
	ErrMissingToken = errors.New("HUGGINGFACEHUB_API_TOKEN not set")
)

// Audio is synthesized speech and its MIME type.
type Audio struct {
	Data        []byte
	ContentType string
}

// Synthesizer turns text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*Audio, error)
}

// Client calls the Hugging Face inference API for a text-to-speech model.
type Client struct {
	baseURL    string
	model      string
	token      string
	httpClient *http.Client
}

var _ Synthesizer = (*Client)(nil)

// NewClient creates a speech client for model served under baseURL.
func NewClient(baseURL, model, token string) (*Client, error) {
	if token == "" {
		return nil, apperr.E(apperr.KindConfiguration, op, ErrMissingToken)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		token:   token,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}, nil
}

type apiError struct {
	Error string `json:"error"`
}

// Synthesize posts text to the model and returns the audio body unchanged.
func (c *Client) Synthesize(ctx context.Context, text string) (*Audio, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.E(apperr.KindInvalidInput, op, ErrEmptyText)
	}

	payload, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return nil, apperr.Errorf(apperr.KindUpstream, op, "encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, apperr.Errorf(apperr.KindUpstream, op, "creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Errorf(apperr.KindUpstream, op, "sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Errorf(apperr.KindUpstream, op, "reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, apperr.Errorf(apperr.KindUpstream, op, "status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return nil, apperr.Errorf(apperr.KindUpstream, op, "status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if len(body) == 0 {
		return nil, apperr.E(apperr.KindUpstream, op, ErrEmptyAudio)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "audio/") {
		contentType = DefaultContentType
	}
	return &Audio{Data: body, ContentType: contentType}, nil
}
