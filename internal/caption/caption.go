// Package caption turns images into one-sentence scene descriptions using a
// hosted image-to-text model.
package caption

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Yates-Labs/storyteller/internal/apperr"
)

const op = "caption image"

var (
	ErrEmptyImage   = errors.New("image is empty")
	ErrNotAnImage   = errors.New("file is not an image")
	ErrEmptyCaption = errors.New("model returned no caption")
	ErrMissingToken = errors.New("HUGGINGFACEHUB_API_TOKEN not set")
)

// unknownBinary is what content sniffing reports for formats it has no
// signature for, such as TIFF, HEIC and AVIF.
const unknownBinary = "application/octet-stream"

// Result is the outcome of one captioning call. Exactly one of Text and Err
// is meaningful.
type Result struct {
	Text string
	Err  error
}

// OK reports whether the call produced a caption.
func (r Result) OK() bool {
	return r.Err == nil
}

// Captioner produces image descriptions.
type Captioner interface {
	Caption(ctx context.Context, image []byte) Result
}

// Client calls the Hugging Face inference API for an image-to-text model.
type Client struct {
	baseURL    string
	model      string
	token      string
	httpClient *http.Client
}

var _ Captioner = (*Client)(nil)

// NewClient creates a captioning client for model served under baseURL.
func NewClient(baseURL, model, token string) (*Client, error) {
	if token == "" {
		return nil, apperr.E(apperr.KindConfiguration, op, ErrMissingToken)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		token:   token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

type generatedText struct {
	GeneratedText string `json:"generated_text"`
}

type apiError struct {
	Error string `json:"error"`
}

// Caption sends image to the model and returns the first generated text.
func (c *Client) Caption(ctx context.Context, image []byte) Result {
	contentType, err := DetectFormat(image)
	if err != nil {
		return Result{Err: err}
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(image))
	if err != nil {
		return Result{Err: apperr.Errorf(apperr.KindImageProcessing, op, "creating request: %w", err)}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{Err: apperr.Errorf(apperr.KindImageProcessing, op, "sending request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Err: apperr.Errorf(apperr.KindImageProcessing, op, "reading response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return Result{Err: apperr.Errorf(apperr.KindImageProcessing, op, "status %d: %s", resp.StatusCode, apiErr.Error)}
		}
		return Result{Err: apperr.Errorf(apperr.KindImageProcessing, op, "status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	var out []generatedText
	if err := json.Unmarshal(body, &out); err != nil {
		return Result{Err: apperr.Errorf(apperr.KindImageProcessing, op, "decoding response: %w", err)}
	}
	if len(out) == 0 || strings.TrimSpace(out[0].GeneratedText) == "" {
		return Result{Err: apperr.E(apperr.KindImageProcessing, op, ErrEmptyCaption)}
	}

	return Result{Text: strings.TrimSpace(out[0].GeneratedText)}
}

// CaptionFile reads an image from disk and captions it.
func CaptionFile(ctx context.Context, c Captioner, path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Err: apperr.Errorf(apperr.KindImageProcessing, op, "reading %s: %w", path, err)}
	}
	return c.Caption(ctx, data)
}

// DetectFormat sniffs the image MIME type. Unrecognised binary data is
// passed through as application/octet-stream for the model to decode.
// Empty input, text and other recognised non-image formats are image
// processing errors.
func DetectFormat(image []byte) (string, error) {
	if len(image) == 0 {
		return "", apperr.E(apperr.KindImageProcessing, op, ErrEmptyImage)
	}
	contentType := http.DetectContentType(image)
	if contentType != unknownBinary && !strings.HasPrefix(contentType, "image/") {
		return "", apperr.Errorf(apperr.KindImageProcessing, op, "%w: detected %s", ErrNotAnImage, contentType)
	}
	return contentType, nil
}
