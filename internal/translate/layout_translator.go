package translate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/JAaron93/phenomenallayout/internal/layout"
	"github.com/JAaron93/phenomenallayout/internal/model"
	"github.com/JAaron93/phenomenallayout/internal/neologism"
)

// DefaultBatchSize is the number of blocks grouped per translation call.
const DefaultBatchSize = 100

// whitespaceRun collapses runs of spaces/tabs/newlines to a single space.
var whitespaceRun = regexp.MustCompile(`\s+`)

// ChoiceLookup resolves a prior user decision for a tagged term, mirroring
// the subset of the User-Choice Store's contract the translator needs. A
// nil ChoiceLookup (or one that always returns found=false) degrades to
// plain translation of every span.
type ChoiceLookup interface {
	Resolve(term string, ctx model.TranslationContext) (choiceType model.ChoiceType, translationResult string, found bool)
}

// LayoutTranslator combines the translation client (C6) and the layout
// engine (C5) to turn OCR TextBlocks into TranslatedElements, per page.
type LayoutTranslator struct {
	client    *Client
	engine    *layout.Engine
	tagger    neologism.Tagger
	batchSize int
}

func NewLayoutTranslator(client *Client, engine *layout.Engine, tagger neologism.Tagger) *LayoutTranslator {
	return &LayoutTranslator{client: client, engine: engine, tagger: tagger, batchSize: DefaultBatchSize}
}

// WithBatchSize overrides DefaultBatchSize.
func (t *LayoutTranslator) WithBatchSize(n int) *LayoutTranslator {
	if n > 0 {
		t.batchSize = n
	}
	return t
}

type preparedBlock struct {
	block       model.TextBlock
	normalized  string
	placeholders []placeholder
}

type placeholder struct {
	index      int
	term       string
	choiceType model.ChoiceType
	result     string
}

func placeholderToken(n int) string {
	return fmt.Sprintf("⟦NEO:%d⟧", n)
}

// TranslateBlocks is the C7 contract: translate every block of a page and
// return one TranslatedElement per surviving block, in order.
func (t *LayoutTranslator) TranslateBlocks(ctx context.Context, jobID string, blocks []model.TextBlock, srcLang, tgtLang string, choices ChoiceLookup) ([]model.TranslatedElement, error) {
	prepared := make([]preparedBlock, len(blocks))
	for i, b := range blocks {
		prepared[i] = t.prepareBlock(b, srcLang, tgtLang, choices)
	}

	elements := make([]model.TranslatedElement, 0, len(blocks))

	for start := 0; start < len(prepared); start += t.batchSize {
		end := start + t.batchSize
		if end > len(prepared) {
			end = len(prepared)
		}
		batch := prepared[start:end]

		reqs := make([]Request, len(batch))
		for i, pb := range batch {
			reqs[i] = Request{Text: pb.normalized, SourceLanguage: srcLang, TargetLanguage: tgtLang}
		}

		results, err := t.client.TranslateBatch(ctx, jobID, reqs)
		if err != nil {
			return nil, err
		}

		for i, res := range results {
			pb := batch[i]
			translated := res.TranslatedText
			if res.Err != nil {
				// Per-item failure: keep the block's place in the page by
				// falling back to the source text unchanged, so the page does
				// not silently lose content; layout adjustment then runs on
				// that source text.
				translated = pb.normalized
			}
			restored := restorePlaceholders(translated, pb.placeholders)

			fit := t.engine.AnalyzeFit(len(pb.block.Text), len(restored), pb.block.BBox, pb.block.Font)
			strategy := t.engine.DecideStrategy(fit)
			adjustedText, adjustedFont, adjustedBBox := t.engine.Apply(restored, pb.block.BBox, pb.block.Font, strategy)
			quality := t.engine.QualityScore(fit, strategy)

			elements = append(elements, model.TranslatedElement{
				OriginalText:       pb.block.Text,
				TranslatedText:     restored,
				AdjustedText:       adjustedText,
				BBox:               adjustedBBox,
				FontInfo:           adjustedFont,
				LayoutStrategyName: strategy.Type,
				Confidence:         quality,
			})
		}
	}

	return elements, nil
}

// prepareBlock normalizes whitespace and replaces any tagged neologism spans
// with opaque placeholder tokens per the §7 passthrough protocol, resolving
// each span against the choice lookup (when provided) before translation.
func (t *LayoutTranslator) prepareBlock(block model.TextBlock, srcLang, tgtLang string, choices ChoiceLookup) preparedBlock {
	normalized := whitespaceRun.ReplaceAllString(strings.TrimSpace(block.Text), " ")

	if t.tagger == nil || choices == nil {
		return preparedBlock{block: block, normalized: normalized}
	}

	tags := t.tagger.Tag(normalized, srcLang)
	if len(tags) == 0 {
		return preparedBlock{block: block, normalized: normalized}
	}

	// Escape any pre-existing delimiter characters once, up front: escaping
	// again after a placeholder token has been spliced in would double the
	// token's own delimiters and corrupt it.
	out := escapeDelimiters(normalized)

	var placeholders []placeholder
	// Replace from the rightmost span first so earlier offsets stay valid.
	for i := len(tags) - 1; i >= 0; i-- {
		tg := tags[i]
		tCtx := tg.Context
		tCtx.TargetLanguage = tgtLang
		choiceType, result, found := choices.Resolve(tg.Term, tCtx)
		if !found {
			continue
		}
		token := placeholderToken(len(placeholders))
		out = out[:tg.Span.Start] + token + out[tg.Span.End:]
		placeholders = append(placeholders, placeholder{
			index: len(placeholders), term: tg.Term, choiceType: choiceType, result: result,
		})
	}

	return preparedBlock{block: block, normalized: out, placeholders: placeholders}
}

// escapeDelimiters doubles any literal placeholder delimiter already present
// in the text, per the §7 escape rule, so restoration cannot be confused by
// pre-existing marker characters.
func escapeDelimiters(s string) string {
	s = strings.ReplaceAll(s, "⟦", "⟦⟦")
	s = strings.ReplaceAll(s, "⟧", "⟧⟧")
	return s
}

// restorePlaceholders substitutes each placeholder token back with its
// resolved value: verbatim source term for PRESERVE, the choice's
// translation_result for TRANSLATE/CUSTOM, or removed entirely for SKIP.
func restorePlaceholders(text string, placeholders []placeholder) string {
	for _, p := range placeholders {
		token := placeholderToken(p.index)
		var replacement string
		switch p.choiceType {
		case model.ChoicePreserve:
			replacement = p.term
		case model.ChoiceSkip:
			replacement = ""
		default: // TRANSLATE, CUSTOM
			replacement = p.result
		}
		text = strings.ReplaceAll(text, token, replacement)
	}
	return text
}
