package scoring

import "strings"

// similarity returns a 0.0–1.0 likeness of two already-lowercased strings:
// 1.0 on equality, 0.8 on substring containment, otherwise the Jaccard
// overlap of their word sets.
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1.0
	}
	if strings.Contains(b, a) || strings.Contains(a, b) {
		return 0.8
	}

	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	return float64(intersection) / float64(union)
}

// tokenize splits a lowercased title into words longer than two characters.
// Short words ("a", "of", "to") carry no signal and inflate the match
// fraction.
func tokenize(s string) []string {
	var words []string
	for _, w := range strings.Fields(s) {
		if len(w) > 2 {
			words = append(words, w)
		}
	}
	return words
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}
