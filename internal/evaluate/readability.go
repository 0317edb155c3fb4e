package evaluate

import (
	"math"
	"strings"
	"unicode"
)

// ReadabilityScores holds the two Flesch measures.
type ReadabilityScores struct {
	FleschReadingEase  float64 `json:"flesch_reading_ease"`
	FleschKincaidGrade float64 `json:"flesch_kincaid_grade"`
}

// Readability computes Flesch Reading Ease and Flesch-Kincaid Grade Level.
// Text without words scores zero on both.
func Readability(text string) ReadabilityScores {
	words := wordsOf(text)
	if len(words) == 0 {
		return ReadabilityScores{}
	}

	sentences := countSentences(text)
	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}

	wps := float64(len(words)) / float64(sentences)
	spw := float64(syllables) / float64(len(words))

	return ReadabilityScores{
		FleschReadingEase:  round2(206.835 - 1.015*wps - 84.6*spw),
		FleschKincaidGrade: round2(0.39*wps + 11.8*spw - 15.59),
	}
}

// wordsOf returns the whitespace-separated tokens that contain a letter or
// digit, stripped of surrounding punctuation.
func wordsOf(text string) []string {
	var words []string
	for _, field := range strings.Fields(text) {
		w := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

// countSentences counts runs of text ended by '.', '!' or '?' that contain
// at least one letter or digit. Trailing text without a terminator counts as
// a sentence. The result is at least 1.
func countSentences(text string) int {
	count := 0
	hasWord := false
	for _, r := range text {
		switch {
		case r == '.' || r == '!' || r == '?':
			if hasWord {
				count++
				hasWord = false
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			hasWord = true
		}
	}
	if hasWord {
		count++
	}
	if count == 0 {
		return 1
	}
	return count
}

// countSyllables estimates syllables as vowel groups, dropping a silent
// final "e". Every word has at least one syllable.
func countSyllables(word string) int {
	w := strings.ToLower(word)
	count := 0
	inVowel := false
	for _, r := range w {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !inVowel {
			count++
		}
		inVowel = vowel
	}

	if count > 1 && strings.HasSuffix(w, "e") && !strings.HasSuffix(w, "le") && !strings.HasSuffix(w, "ee") {
		count--
	}
	if count == 0 {
		return 1
	}
	return count
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
