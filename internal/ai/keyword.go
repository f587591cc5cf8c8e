package ai

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/azure/mentions-monitor/internal/models"
)

// KeywordScorer is an offline Scorer used when no AI key is configured.
// A candidate scores by the share of keywords whose terms all appear in its
// title or description, nudged by the token similarity of the title.
type KeywordScorer struct{}

var _ Scorer = KeywordScorer{}

func (KeywordScorer) Score(ctx context.Context, candidate models.Candidate, keywords []string) (Relevance, error) {
	if len(keywords) == 0 {
		return Relevance{Score: 0, Rationale: "no keywords"}, nil
	}

	haystack := tokenSet(candidate.Title + " " + candidate.Description + " " + candidate.URL)
	var matched []string
	for _, keyword := range keywords {
		terms := tokenize(keyword)
		if len(terms) == 0 {
			continue
		}
		found := true
		for _, term := range terms {
			if _, ok := haystack[term]; !ok {
				found = false
				break
			}
		}
		if found {
			matched = append(matched, keyword)
		}
	}

	coverage := float64(len(matched)) / float64(len(keywords))
	score := clamp(0.8*coverage+0.2*Similarity(strings.Join(keywords, " "), candidate.Title), 0, 1)
	if len(matched) == 0 {
		return Relevance{Score: score, Rationale: "no keyword matched"}, nil
	}
	return Relevance{
		Score:     score,
		Rationale: fmt.Sprintf("matched %d of %d keywords: %s", len(matched), len(keywords), strings.Join(matched, ", ")),
	}, nil
}

// Similarity is the Jaccard index of the lower-cased word sets of a and b.
// It is symmetric, 1 for identical non-empty texts and 0 when either side has no words.
func Similarity(a, b string) float64 {
	setA, setB := tokenSet(a), tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range tokenize(text) {
		set[token] = struct{}{}
	}
	return set
}

// CosineSimilarity compares two embeddings; mismatched or zero vectors score 0
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
