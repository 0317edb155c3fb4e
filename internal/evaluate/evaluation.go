package evaluate

import (
	"context"
)

// Evaluation bundles the metrics computed for one story. Story is a copy of
// the evaluated text. Metrics that were not requested are nil.
type Evaluation struct {
	Story       string             `json:"story"`
	Sentiment   *SentimentScores   `json:"sentiment,omitempty"`
	Readability *ReadabilityScores `json:"readability,omitempty"`
	Coherence   *CoherenceScores   `json:"coherence,omitempty"`
	Rouge       *RougeScores       `json:"rouge_scores,omitempty"`
}

// Options selects the optional metrics. Sentiment and readability always run.
type Options struct {
	Coherence bool
	// Reference enables ROUGE when non-empty.
	Reference string
}

// Evaluator runs the scorers in a fixed order: sentiment, readability,
// coherence, ROUGE.
type Evaluator struct {
	coherence *Coherence
}

// NewEvaluator creates an evaluator. coherence may be nil when no scoring
// servers are configured; requesting coherence then fails.
func NewEvaluator(coherence *Coherence) *Evaluator {
	return &Evaluator{coherence: coherence}
}

// Evaluate scores story according to opts.
func (e *Evaluator) Evaluate(ctx context.Context, story string, opts Options) (*Evaluation, error) {
	sentiment := Sentiment(story)
	readability := Readability(story)

	eval := &Evaluation{
		Story:       story,
		Sentiment:   &sentiment,
		Readability: &readability,
	}

	if opts.Coherence {
		scores, err := e.Coherence(ctx, story)
		if err != nil {
			return nil, err
		}
		eval.Coherence = &scores
	}

	if opts.Reference != "" {
		rouge := Rouge(story, opts.Reference)
		eval.Rouge = &rouge
	}

	return eval, nil
}

// Coherence computes only the coherence scores.
func (e *Evaluator) Coherence(ctx context.Context, story string) (CoherenceScores, error) {
	if e.coherence == nil {
		return CoherenceScores{}, errCoherenceUnconfigured
	}
	return e.coherence.Evaluate(ctx, story)
}
