package quality

import (
	"testing"

	"github.com/JAaron93/phenomenallayout/internal/model"
)

func TestLayoutHashSimilarity_IdenticalLayoutsScoreOne(t *testing.T) {
	original := [][]model.TextBlock{
		{{BBox: model.BoundingBox{X: 10, Y: 10, Width: 100, Height: 20}}},
	}
	translated := model.TranslatedLayout{
		Pages: []model.TranslatedPage{
			{Elements: []model.TranslatedElement{{BBox: model.BoundingBox{X: 10, Y: 10, Width: 100, Height: 20}}}},
		},
	}
	got := layoutHashSimilarity(original, translated, 10)
	if got != 1.0 {
		t.Fatalf("expected identical layouts to score 1.0, got %f", got)
	}
}

func TestLayoutHashSimilarity_BothEmptyScoresOne(t *testing.T) {
	got := layoutHashSimilarity(nil, model.TranslatedLayout{}, 10)
	if got != 1.0 {
		t.Fatalf("expected two empty layouts to score 1.0, got %f", got)
	}
}

func TestLayoutHashSimilarity_GrossRearrangementScoresLow(t *testing.T) {
	original := [][]model.TextBlock{
		{{BBox: model.BoundingBox{X: 10, Y: 10, Width: 50, Height: 20}}},
	}
	translated := model.TranslatedLayout{
		Pages: []model.TranslatedPage{
			{Elements: []model.TranslatedElement{{BBox: model.BoundingBox{X: 500, Y: 700, Width: 50, Height: 20}}}},
		},
	}
	got := layoutHashSimilarity(original, translated, 10)
	if got != 0.0 {
		t.Fatalf("expected disjoint buckets to score 0.0, got %f", got)
	}
}

func TestFontPreservationRatio_AllFontsPreserved(t *testing.T) {
	original := map[string]bool{"Helvetica": true, "Times": true}
	reconstructed := map[string]bool{"Helvetica": true, "Times": true, "Courier": true}
	got := fontPreservationRatio(original, reconstructed)
	if got != 1.0 {
		t.Fatalf("expected 1.0 when every original font survives, got %f", got)
	}
}

func TestFontPreservationRatio_PartialLoss(t *testing.T) {
	original := map[string]bool{"Helvetica": true, "Times": true}
	reconstructed := map[string]bool{"Helvetica": true}
	got := fontPreservationRatio(original, reconstructed)
	if got != 0.5 {
		t.Fatalf("expected 0.5 for half the fonts preserved, got %f", got)
	}
}

func TestFontPreservationRatio_EmptyOriginalScoresOne(t *testing.T) {
	got := fontPreservationRatio(map[string]bool{}, map[string]bool{"Helvetica": true})
	if got != 1.0 {
		t.Fatalf("expected 1.0 when there were no original fonts to preserve, got %f", got)
	}
}

func TestDefaultConfig_WindowIsSane(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MinTextCoverageRatio >= cfg.MaxTextCoverageRatio {
		t.Fatalf("expected min < max text coverage ratio, got %f >= %f", cfg.MinTextCoverageRatio, cfg.MaxTextCoverageRatio)
	}
}

func TestValidate_FontAndLayoutMetricsForMatchingBlocks(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	originalBlocks := [][]model.TextBlock{
		{{Text: "hello world", BBox: model.BoundingBox{X: 10, Y: 10, Width: 100, Height: 20}, Font: model.FontInfo{Family: "Helvetica"}}},
	}
	layout := model.TranslatedLayout{
		Pages: []model.TranslatedPage{
			{Elements: []model.TranslatedElement{{AdjustedText: "hallo welt", BBox: model.BoundingBox{X: 10, Y: 10, Width: 100, Height: 20}}}},
		},
	}
	usedFamilies := map[string]bool{"Helvetica": true}

	// extractText will fail to open a nonexistent reconstructed path and fall
	// through every extraction tier to an empty string with no OCR fallback;
	// this still exercises the ratio/threshold math end to end.
	report, err := v.Validate("job1", "/nonexistent/original.pdf", "/nonexistent/reconstructed.pdf", originalBlocks, layout, usedFamilies)
	if err != nil {
		t.Fatalf("Validate returned an error: %v", err)
	}
	if report.FontPreservationRatio != 1.0 {
		t.Fatalf("expected font preservation 1.0, got %f", report.FontPreservationRatio)
	}
	if report.LayoutHashSimilarity != 1.0 {
		t.Fatalf("expected layout hash similarity 1.0 for identical bboxes, got %f", report.LayoutHashSimilarity)
	}
}
