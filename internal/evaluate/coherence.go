package evaluate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Yates-Labs/storyteller/internal/apperr"
)

const coherenceOp = "evaluate coherence"

var ErrEmptyStory = errors.New("story is empty")

var errCoherenceUnconfigured = apperr.Errorf(apperr.KindConfiguration, coherenceOp, "coherence scorers not configured")

// CoherenceScores holds the two fluency measures. BartScore is in (0, 1],
// higher is better; PerplexityScore is at least 1, lower is better.
type CoherenceScores struct {
	BartScore       float64 `json:"bart_score"`
	PerplexityScore float64 `json:"perplexity_score"`
}

// ReconstructionScorer returns the mean token loss of a seq2seq model asked
// to reproduce text from itself.
type ReconstructionScorer interface {
	Loss(ctx context.Context, text string) (float64, error)
}

// Token is one tokenizer piece with its byte span in the source text.
type Token struct {
	ID    int    `json:"id"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	Stop  int    `json:"stop"`
}

// LogProbScorer exposes a causal language model's tokenizer and the log
// probability it assigns to each token of a text given the tokens before
// it. The first log probability has no context and is NaN.
type LogProbScorer interface {
	Tokenize(ctx context.Context, text string) ([]Token, error)
	PrefillLogProbs(ctx context.Context, text string) ([]float64, error)
}

// PerplexityWindow configures the sliding window in tokens.
type PerplexityWindow struct {
	MaxLength int
	Stride    int
}

// DefaultPerplexityWindow matches a 1024-token context model.
func DefaultPerplexityWindow() PerplexityWindow {
	return PerplexityWindow{MaxLength: 1024, Stride: 512}
}

// Coherence scores fluency with a reconstruction model and a causal model.
type Coherence struct {
	reconstruction ReconstructionScorer
	logProbs       LogProbScorer
	window         PerplexityWindow
}

// NewCoherence creates a coherence evaluator.
func NewCoherence(reconstruction ReconstructionScorer, logProbs LogProbScorer, window PerplexityWindow) *Coherence {
	if window.MaxLength <= 0 || window.Stride <= 0 || window.Stride > window.MaxLength {
		window = DefaultPerplexityWindow()
	}
	return &Coherence{
		reconstruction: reconstruction,
		logProbs:       logProbs,
		window:         window,
	}
}

// Evaluate computes both coherence scores for text.
func (c *Coherence) Evaluate(ctx context.Context, text string) (CoherenceScores, error) {
	if strings.TrimSpace(text) == "" {
		return CoherenceScores{}, apperr.E(apperr.KindInvalidInput, coherenceOp, ErrEmptyStory)
	}

	bart, err := c.BartScore(ctx, text)
	if err != nil {
		return CoherenceScores{}, err
	}
	ppl, err := c.Perplexity(ctx, text)
	if err != nil {
		return CoherenceScores{}, err
	}

	return CoherenceScores{
		BartScore:       bart,
		PerplexityScore: ppl,
	}, nil
}

// BartScore is exp(-loss) of the story reconstructing itself.
func (c *Coherence) BartScore(ctx context.Context, text string) (float64, error) {
	loss, err := c.reconstruction.Loss(ctx, text)
	if err != nil {
		return 0, apperr.E(apperr.KindUpstream, coherenceOp, fmt.Errorf("bart score: %w", err))
	}
	return math.Exp(-loss), nil
}

// Perplexity is exp of the mean negative log likelihood per token,
// accumulated over sliding windows. Each window covers up to MaxLength
// tokens and is scored only on its last Stride-or-fewer tokens, so earlier
// tokens act as context. A window's mean loss is weighted by its target
// length, which for the last window is only the tokens left, and the sum is
// divided by the total token count.
func (c *Coherence) Perplexity(ctx context.Context, text string) (float64, error) {
	tokens, err := c.logProbs.Tokenize(ctx, text)
	if err != nil {
		return 0, apperr.E(apperr.KindUpstream, coherenceOp, fmt.Errorf("tokenize: %w", err))
	}
	n := len(tokens)
	if n == 0 {
		return 0, apperr.E(apperr.KindInvalidInput, coherenceOp, ErrEmptyStory)
	}

	maxLen, stride := c.window.MaxLength, c.window.Stride
	var total float64
	for i := 0; i < n; i += stride {
		begin := max(i+stride-maxLen, 0)
		end := min(i+stride, n)
		trgLen := end - i

		window, err := sliceTokens(text, tokens, begin, end)
		if err != nil {
			return 0, apperr.E(apperr.KindUpstream, coherenceOp, err)
		}

		lps, err := c.logProbs.PrefillLogProbs(ctx, window)
		if err != nil {
			return 0, apperr.E(apperr.KindUpstream, coherenceOp, fmt.Errorf("log probabilities: %w", err))
		}

		total += windowNLL(lps, trgLen) * float64(trgLen)
	}

	return math.Exp(total / float64(n)), nil
}

// windowNLL is the mean negative log probability over the last trgLen
// entries of lps, ignoring entries without context.
func windowNLL(lps []float64, trgLen int) float64 {
	targets := lps
	if len(lps) > trgLen {
		targets = lps[len(lps)-trgLen:]
	}

	var sum float64
	count := 0
	for _, lp := range targets {
		if math.IsNaN(lp) {
			continue
		}
		sum -= lp
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func sliceTokens(text string, tokens []Token, begin, end int) (string, error) {
	start, stop := tokens[begin].Start, tokens[end-1].Stop
	if start < 0 || stop > len(text) || start > stop {
		return "", fmt.Errorf("token span [%d, %d) outside text of %d bytes", start, stop, len(text))
	}
	return text[start:stop], nil
}
