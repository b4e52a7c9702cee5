// Package neologism implements the Neologism Tagger (C9): a pure function
// from (text, locale) to candidate term spans, with no global state.
//
// The interface is specified as domain-specific and pluggable; this package
// ships one concrete, intentionally simple implementation — a capitalized
// multi-word-compound heuristic — grounded on the teacher's
// internal/processor/layout_analyzer.go habit of scanning token runs for a
// structural signal (there, table cell alignment; here, capitalization
// runs) rather than invoking an external NLP service.
package neologism

import (
	"strings"
	"unicode"

	"github.com/JAaron93/phenomenallayout/internal/model"
)

// Span identifies one tagged term's location within the source text.
type Span struct {
	Start int
	End   int
}

// Tag is one candidate neologism found in a text.
type Tag struct {
	Span       Span
	Term       string
	Confidence float64
	Context    model.TranslationContext
}

// Tagger is the pluggable interface the layout-aware translator depends on.
type Tagger interface {
	Tag(text, locale string) []Tag
}

// CapitalizedCompoundTagger flags runs of two or more consecutive
// capitalized words (e.g. "Dasein Analysis", "Will To Power") as candidate
// neologisms. It is a pure function of its inputs: the same (text, locale)
// always yields the same tags.
type CapitalizedCompoundTagger struct {
	// MinWords is the minimum run length (in words) to qualify; below this
	// a capitalized word is assumed to be an ordinary proper noun or
	// sentence-initial capital rather than a coined term.
	MinWords int
}

func NewCapitalizedCompoundTagger() *CapitalizedCompoundTagger {
	return &CapitalizedCompoundTagger{MinWords: 2}
}

// Tag scans text for runs of capitalized words and returns one Tag per run
// of at least MinWords words. Confidence grows with run length, capped at
// 0.9 since this heuristic never claims certainty.
func (t *CapitalizedCompoundTagger) Tag(text, locale string) []Tag {
	minWords := t.MinWords
	if minWords < 1 {
		minWords = 2
	}

	var tags []Tag
	words := splitWords(text)

	i := 0
	for i < len(words) {
		if !isCapitalizedWord(words[i].text) {
			i++
			continue
		}
		j := i
		for j < len(words) && isCapitalizedWord(words[j].text) {
			j++
		}
		runLen := j - i
		if runLen >= minWords {
			term := joinRun(words[i:j])
			confidence := 0.5 + 0.1*float64(runLen)
			if confidence > 0.9 {
				confidence = 0.9
			}
			tags = append(tags, Tag{
				Span:       Span{Start: words[i].start, End: words[j-1].end},
				Term:       term,
				Confidence: confidence,
				Context: model.TranslationContext{
					SourceLanguage: locale,
					SurroundingTerms: surrounding(words, i, j),
				},
			})
		}
		i = j
	}
	return tags
}

type word struct {
	text       string
	start, end int
}

func splitWords(text string) []word {
	var words []word
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				words = append(words, word{text: text[start:i], start: start, end: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, word{text: text[start:], start: start, end: len(text)})
	}
	return words
}

func isCapitalizedWord(w string) bool {
	w = strings.TrimFunc(w, func(r rune) bool { return unicode.IsPunct(r) })
	if w == "" {
		return false
	}
	runes := []rune(w)
	return unicode.IsUpper(runes[0])
}

func joinRun(words []word) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.text
	}
	return strings.Join(parts, " ")
}

func surrounding(words []word, i, j int) []string {
	const window = 3
	var out []string
	lo := i - window
	if lo < 0 {
		lo = 0
	}
	hi := j + window
	if hi > len(words) {
		hi = len(words)
	}
	for k := lo; k < i; k++ {
		out = append(out, words[k].text)
	}
	for k := j; k < hi; k++ {
		out = append(out, words[k].text)
	}
	return out
}
