// Package tokenizer turns free text into the normalized term stream the
// full-text index builds postings from: NFKD normalization with diacritic
// stripping, lowercasing, word-boundary splitting, stopword and
// short-token filtering, and optional stemming.
package tokenizer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/kljensen/snowball"
)

// Config controls a Tokenizer's behavior.
type Config struct {
	Stem     bool
	Language string // passed to the snowball stemmer, e.g. "english"
}

func DefaultConfig() Config { return Config{Stem: false, Language: "english"} }

var defaultStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "of": {}, "for": {},
}

var tokenRe = regexp.MustCompile(`\w+`)

// Tokenizer converts raw text into a slice of normalized terms.
type Tokenizer struct {
	stem      bool
	language  string
	stopwords map[string]struct{}
}

func New(cfg Config) *Tokenizer {
	lang := cfg.Language
	if lang == "" {
		lang = "english"
	}
	return &Tokenizer{stem: cfg.Stem, language: lang, stopwords: defaultStopwords}
}

// Tokenize normalizes text to NFKD (stripping diacritics so search is
// accent-insensitive), lowercases it, splits on word boundaries, drops
// stopwords and single-character tokens, and stems what remains when
// configured to.
func (t *Tokenizer) Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	folded := stripDiacritics(norm.NFKD.String(text))
	folded = strings.ToLower(folded)

	raw := tokenRe.FindAllString(folded, -1)
	terms := make([]string, 0, len(raw))
	for _, tok := range raw {
		if len(tok) <= 1 {
			continue
		}
		if _, stop := t.stopwords[tok]; stop {
			continue
		}
		terms = append(terms, tok)
	}

	if !t.stem {
		return terms
	}
	for i, term := range terms {
		if stemmed, err := snowball.Stem(term, t.language, true); err == nil {
			terms[i] = stemmed
		}
	}
	return terms
}

func stripDiacritics(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
