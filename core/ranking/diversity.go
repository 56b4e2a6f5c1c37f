package ranking

import (
	"github.com/siherrmann/hybridrag/core/pipeline"
)

// shingles returns the word bigrams of a text, or its single word
func shingles(text string) map[string]bool {
	words := pipeline.Words(text)
	set := make(map[string]bool, len(words))
	if len(words) == 1 {
		set[words[0]] = true
		return set
	}
	for i := 1; i < len(words); i++ {
		set[words[i-1]+" "+words[i]] = true
	}
	return set
}

// Jaccard returns the Jaccard similarity of the word shingles of a and b.
// Texts without words are never similar.
func Jaccard(a, b string) float64 {
	return jaccard(shingles(a), shingles(b))
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for s := range a {
		if b[s] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
