package tokenizer

import (
	"github.com/sugarme/tokenizer/normalizer"
	"sort"
)

/*
BuildVocab collects a WordPiece vocabulary from the corpus.
It starts with SpecialTokens, then all seen characters both as a word start and as a
continuation (##c), then the most frequent words. Size limits the total count of tokens,
characters are never dropped.
*/
func BuildVocab(texts []string, size int, lower bool) ([]string, error) {
	n := normalizer.NewBertNormalizer(true, true, lower, lower)
	counts := map[string]int{}
	chars := map[string]bool{}
	for _, s := range texts {
		ws, err := words(s, n)
		if err != nil {
			return nil, err
		}
		for _, w := range ws {
			counts[w]++
			for _, c := range w {
				chars[string(c)] = true
			}
		}
	}

	tokens := append([]string{}, SpecialTokens...)
	seen := map[string]bool{}
	for _, s := range tokens {
		seen[s] = true
	}

	cs := make([]string, 0, len(chars))
	for c := range chars {
		cs = append(cs, c)
	}
	sort.Strings(cs)
	for _, c := range cs {
		if !seen[c] {
			tokens = append(tokens, c)
			seen[c] = true
		}
	}
	for _, c := range cs {
		tokens = append(tokens, "##"+c)
		seen["##"+c] = true
	}

	ws := make([]string, 0, len(counts))
	for w := range counts {
		if !seen[w] {
			ws = append(ws, w)
		}
	}
	sort.Slice(ws, func(i, j int) bool {
		if counts[ws[i]] != counts[ws[j]] {
			return counts[ws[i]] > counts[ws[j]]
		}
		return ws[i] < ws[j]
	})
	for _, w := range ws {
		if size > 0 && len(tokens) >= size {
			break
		}
		tokens = append(tokens, w)
	}
	return tokens, nil
}
