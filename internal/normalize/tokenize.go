package normalize

import (
	"sort"
	"strings"
)

// Tokenizer turns free text into a set of normalized keyword strings.
type Tokenizer interface {
	Tokenize(text string) []string
}

// VocabTokenizer matches a controlled vocabulary against lowered text.
// Multi-word terms match as substrings; single words require word boundaries
// so "go" does not fire on "golang" twice or on "category".
type VocabTokenizer struct {
	terms []string
}

func NewVocabTokenizer(vocabulary []string) *VocabTokenizer {
	seen := map[string]bool{}
	var terms []string
	for _, v := range vocabulary {
		v = strings.ToLower(CleanText(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		terms = append(terms, v)
	}
	return &VocabTokenizer{terms: terms}
}

func (t *VocabTokenizer) Tokenize(text string) []string {
	lowered := strings.ToLower(text)
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(lowered, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '+' || r == '#')
	}) {
		words[w] = true
	}

	var out []string
	for _, term := range t.terms {
		if strings.ContainsAny(term, " -") {
			if strings.Contains(lowered, term) {
				out = append(out, term)
			}
			continue
		}
		if words[term] {
			out = append(out, term)
		}
	}
	sort.Strings(out)
	return out
}
