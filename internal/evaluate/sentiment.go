// Package evaluate scores finished stories: sentiment polarity, readability
// grade, fluency via two language-model metrics, and n-gram overlap against a
// reference text. Every scorer takes the story text and never modifies it.
package evaluate

import (
	"sync"

	"github.com/jonreiter/govader"
)

// SentimentScores are VADER polarity scores. Compound is normalised to
// [-1, 1]; the other three are proportions summing to about 1.
type SentimentScores struct {
	Neg      float64 `json:"neg"`
	Neu      float64 `json:"neu"`
	Pos      float64 `json:"pos"`
	Compound float64 `json:"compound"`
}

// The lexicon is parsed once and only read afterwards.
var analyzer = sync.OnceValue(govader.NewSentimentIntensityAnalyzer)

// Sentiment returns the polarity scores of text.
func Sentiment(text string) SentimentScores {
	s := analyzer().PolarityScores(text)
	return SentimentScores{
		Neg:      s.Negative,
		Neu:      s.Neutral,
		Pos:      s.Positive,
		Compound: s.Compound,
	}
}
