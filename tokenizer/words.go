package tokenizer

import (
	"github.com/sugarme/tokenizer/normalizer"
	"go-ml.dev/pkg/zorros/zorros"
	"strings"
	"unicode"
)

func isPunct(c rune) bool {
	if (c >= 33 && c <= 47) || (c >= 58 && c <= 64) || (c >= 91 && c <= 96) || (c >= 123 && c <= 126) {
		return true
	}
	return unicode.IsPunct(c)
}

/*
words normalizes text and splits it on whitespace and punctuation
the same way the WordPiece pre-tokenizer does
*/
func words(text string, n *normalizer.BertNormalizer) ([]string, error) {
	ns, err := n.Normalize(normalizer.NewNormalizedFrom(text))
	if err != nil {
		return nil, zorros.Wrapf(err, "failed to normalize `%v`: %v", text, err.Error())
	}
	var r []string
	for _, w := range strings.Fields(ns.GetNormalized()) {
		start := -1
		rs := []rune(w)
		for i, c := range rs {
			if isPunct(c) {
				if start >= 0 {
					r = append(r, string(rs[start:i]))
					start = -1
				}
				r = append(r, string(c))
			} else if start < 0 {
				start = i
			}
		}
		if start >= 0 {
			r = append(r, string(rs[start:]))
		}
	}
	return r, nil
}
