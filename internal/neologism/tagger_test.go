package neologism

import "testing"

func TestCapitalizedCompoundTagger_FlagsMultiWordRun(t *testing.T) {
	tagger := NewCapitalizedCompoundTagger()
	tags := tagger.Tag("the concept of Dasein Analysis is central here", "de")

	if len(tags) != 1 {
		t.Fatalf("expected 1 tag, got %d: %+v", len(tags), tags)
	}
	if tags[0].Term != "Dasein Analysis" {
		t.Fatalf("expected term %q, got %q", "Dasein Analysis", tags[0].Term)
	}
	if tags[0].Confidence <= 0.5 || tags[0].Confidence > 0.9 {
		t.Fatalf("expected confidence in (0.5, 0.9], got %f", tags[0].Confidence)
	}
}

func TestCapitalizedCompoundTagger_IgnoresSingleCapitalizedWord(t *testing.T) {
	tagger := NewCapitalizedCompoundTagger()
	tags := tagger.Tag("Hello there, how are you", "en")
	if len(tags) != 0 {
		t.Fatalf("expected no tags for a lone capitalized word, got %+v", tags)
	}
}

func TestCapitalizedCompoundTagger_ConfidenceCapsAtPointNine(t *testing.T) {
	tagger := NewCapitalizedCompoundTagger()
	tags := tagger.Tag("The Great Big Long Compound Term appears here", "en")
	if len(tags) != 1 {
		t.Fatalf("expected 1 tag, got %d", len(tags))
	}
	if tags[0].Confidence != 0.9 {
		t.Fatalf("expected confidence capped at 0.9, got %f", tags[0].Confidence)
	}
}

func TestCapitalizedCompoundTagger_SpanCoversFullRun(t *testing.T) {
	text := "prefix Will To Power suffix"
	tagger := NewCapitalizedCompoundTagger()
	tags := tagger.Tag(text, "en")
	if len(tags) != 1 {
		t.Fatalf("expected 1 tag, got %d", len(tags))
	}
	got := text[tags[0].Span.Start:tags[0].Span.End]
	if got != "Will To Power" {
		t.Fatalf("expected span to cover %q, got %q", "Will To Power", got)
	}
}

func TestCapitalizedCompoundTagger_RecordsSurroundingTerms(t *testing.T) {
	tagger := NewCapitalizedCompoundTagger()
	tags := tagger.Tag("a b c Dasein Analysis d e f", "de")
	if len(tags) != 1 {
		t.Fatalf("expected 1 tag, got %d", len(tags))
	}
	if len(tags[0].Context.SurroundingTerms) == 0 {
		t.Fatalf("expected surrounding terms to be recorded")
	}
	if tags[0].Context.SourceLanguage != "de" {
		t.Fatalf("expected locale propagated to context, got %q", tags[0].Context.SourceLanguage)
	}
}

func TestCapitalizedCompoundTagger_EmptyTextYieldsNoTags(t *testing.T) {
	tagger := NewCapitalizedCompoundTagger()
	if tags := tagger.Tag("", "en"); len(tags) != 0 {
		t.Fatalf("expected no tags for empty text, got %+v", tags)
	}
}
