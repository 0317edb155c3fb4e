package evaluate

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

// RougeScores are F-measures of candidate against reference.
type RougeScores struct {
	Rouge1 float64 `json:"rouge1"`
	Rouge2 float64 `json:"rouge2"`
	RougeL float64 `json:"rougeL"`
}

// Rouge scores candidate against reference with unigram, bigram and longest
// common subsequence overlap.
func Rouge(candidate, reference string) RougeScores {
	cand := rougeTokens(candidate)
	ref := rougeTokens(reference)

	return RougeScores{
		Rouge1: ngramF(cand, ref, 1),
		Rouge2: ngramF(cand, ref, 2),
		RougeL: lcsF(cand, ref),
	}
}

// rougeTokens lower-cases text, splits on anything that is not an ASCII
// letter or digit, and stems tokens longer than three characters with the
// Snowball English (Porter2) stemmer.
func rougeTokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r))
	})
	tokens := make([]string, len(fields))
	for i, f := range fields {
		if len(f) > 3 {
			f = english.Stem(f, true)
		}
		tokens[i] = f
	}
	return tokens
}

func ngrams(tokens []string, n int) map[string]int {
	counts := make(map[string]int)
	for i := 0; i+n <= len(tokens); i++ {
		counts[strings.Join(tokens[i:i+n], " ")]++
	}
	return counts
}

func ngramF(cand, ref []string, n int) float64 {
	candGrams := ngrams(cand, n)
	refGrams := ngrams(ref, n)

	candTotal, refTotal, overlap := 0, 0, 0
	for _, c := range candGrams {
		candTotal += c
	}
	for g, c := range refGrams {
		refTotal += c
		overlap += min(c, candGrams[g])
	}
	return fmeasure(overlap, candTotal, refTotal)
}

func lcsF(cand, ref []string) float64 {
	return fmeasure(lcsLength(cand, ref), len(cand), len(ref))
}

// lcsLength is the classic dynamic program, kept to two rows.
func lcsLength(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func fmeasure(overlap, candTotal, refTotal int) float64 {
	if overlap == 0 || candTotal == 0 || refTotal == 0 {
		return 0
	}
	precision := float64(overlap) / float64(candTotal)
	recall := float64(overlap) / float64(refTotal)
	return 2 * precision * recall / (precision + recall)
}
