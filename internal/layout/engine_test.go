package layout

import (
	"math"
	"strings"
	"testing"

	"github.com/JAaron93/phenomenallayout/internal/model"
)

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestDecideStrategy_UnchangedFit(t *testing.T) {
	e := NewEngine(DefaultConfig())
	bbox := model.BoundingBox{X: 0, Y: 0, Width: 200, Height: 20}
	font := model.FontInfo{Family: "Helvetica", Size: 12}

	fit := e.AnalyzeFit(len("Hello world"), len("Salut"), bbox, font)
	strategy := e.DecideStrategy(fit)

	if strategy.Type != model.StrategyNone {
		t.Fatalf("expected NONE, got %s", strategy.Type)
	}
	if strategy.FontScale != 1.0 || strategy.WrapLines != 1 {
		t.Fatalf("NONE invariant violated: %+v", strategy)
	}

	score := e.QualityScore(fit, strategy)
	if !approxEqual(score, 1.0, 1e-9) {
		t.Fatalf("expected quality_score ~= 1.0, got %f", score)
	}
}

func TestDecideStrategy_FontScale(t *testing.T) {
	e := NewEngine(DefaultConfig())
	bbox := model.BoundingBox{X: 0, Y: 0, Width: 40, Height: 20}
	font := model.FontInfo{Family: "Helvetica", Size: 12}

	fit := e.AnalyzeFit(len("Hi"), len("Greetings"), bbox, font)
	strategy := e.DecideStrategy(fit)

	if strategy.Type != model.StrategyFontScale {
		t.Fatalf("expected FONT_SCALE, got %s", strategy.Type)
	}
	if !approxEqual(strategy.FontScale, 0.7407, 1e-3) {
		t.Fatalf("expected font_scale ~= 0.7407, got %f", strategy.FontScale)
	}
	if strategy.WrapLines != 1 {
		t.Fatalf("expected wrap_lines=1, got %d", strategy.WrapLines)
	}
}

func TestDecideStrategy_TextWrap(t *testing.T) {
	e := NewEngine(DefaultConfig())
	bbox := model.BoundingBox{X: 0, Y: 0, Width: 40, Height: 60}
	font := model.FontInfo{Family: "Helvetica", Size: 12}

	fit := e.AnalyzeFit(len("a"), 20, bbox, font)
	strategy := e.DecideStrategy(fit)

	if strategy.Type != model.StrategyTextWrap {
		t.Fatalf("expected TEXT_WRAP, got %s", strategy.Type)
	}
	if fit.MaxLines != 4 {
		t.Fatalf("expected max_lines=4, got %d", fit.MaxLines)
	}
	if strategy.WrapLines != 3 {
		t.Fatalf("expected wrap_lines=3, got %d", strategy.WrapLines)
	}
}

func TestDecideStrategy_HybridFallback(t *testing.T) {
	e := NewEngine(DefaultConfig())
	bbox := model.BoundingBox{X: 0, Y: 0, Width: 40, Height: 24}
	font := model.FontInfo{Family: "Helvetica", Size: 12}

	// translated length chosen so one_line_width == 240 at avg_char_w=6.
	fit := e.AnalyzeFit(1, 40, bbox, font)
	if !approxEqual(fit.OneLineWidth, 240, 1e-9) {
		t.Fatalf("expected one_line_width=240, got %f", fit.OneLineWidth)
	}
	if fit.MaxLines != 1 {
		t.Fatalf("expected max_lines=1, got %d", fit.MaxLines)
	}

	strategy := e.DecideStrategy(fit)
	if strategy.Type != model.StrategyTextWrap {
		t.Fatalf("expected fallback TEXT_WRAP, got %s", strategy.Type)
	}
	if strategy.WrapLines != 1 {
		t.Fatalf("expected wrap_lines=1 (max_lines), got %d", strategy.WrapLines)
	}
}

func TestDecideStrategy_TargetNeverLongerThanSourceIsNone(t *testing.T) {
	e := NewEngine(DefaultConfig())
	bbox := model.BoundingBox{X: 0, Y: 0, Width: 300, Height: 40}
	font := model.FontInfo{Family: "Helvetica", Size: 14}

	for srcLen := 1; srcLen <= 50; srcLen += 7 {
		for tgtLen := 1; tgtLen <= srcLen; tgtLen++ {
			fit := e.AnalyzeFit(srcLen, tgtLen, bbox, font)
			strategy := e.DecideStrategy(fit)
			if strategy.Type != model.StrategyNone {
				t.Fatalf("srcLen=%d tgtLen=%d: expected NONE when tgt<=src, got %s", srcLen, tgtLen, strategy.Type)
			}
		}
	}
}

func TestQualityScore_AlwaysInUnitInterval(t *testing.T) {
	e := NewEngine(DefaultConfig())
	bbox := model.BoundingBox{X: 0, Y: 0, Width: 50, Height: 30}
	font := model.FontInfo{Family: "Helvetica", Size: 10}

	for srcLen := 1; srcLen <= 5; srcLen++ {
		for tgtLen := 1; tgtLen <= 80; tgtLen += 3 {
			fit := e.AnalyzeFit(srcLen, tgtLen, bbox, font)
			strategy := e.DecideStrategy(fit)
			score := e.QualityScore(fit, strategy)
			if score < 0 || score > 1 {
				t.Fatalf("srcLen=%d tgtLen=%d: quality_score out of range: %f", srcLen, tgtLen, score)
			}
		}
	}
}

func TestApply_BBoxExpansionBounded(t *testing.T) {
	e := NewEngine(DefaultConfig())
	bbox := model.BoundingBox{X: 0, Y: 0, Width: 40, Height: 60}
	font := model.FontInfo{Family: "Helvetica", Size: 12}

	text := "aaaaaaaaaaaaaaaaaaaa"
	fit := e.AnalyzeFit(1, len(text), bbox, font)
	strategy := e.DecideStrategy(fit)

	_, _, adjustedBBox := e.Apply(text, bbox, font, strategy)

	maxAllowedHeight := bbox.Height * (1 + e.cfg.MaxBBoxExpansion)
	if adjustedBBox.Height > maxAllowedHeight+1e-9 {
		t.Fatalf("adjusted bbox height %f exceeds allowed max %f", adjustedBBox.Height, maxAllowedHeight)
	}
	if strategy.Type != model.StrategyNone && adjustedBBox.Width != bbox.Width {
		t.Fatalf("adjusted bbox width should equal original width unless NONE")
	}
}

func TestApply_NeverSplitsAWordSmallerThanLineWidth(t *testing.T) {
	e := NewEngine(DefaultConfig())
	bbox := model.BoundingBox{X: 0, Y: 0, Width: 30, Height: 60}
	font := model.FontInfo{Family: "Helvetica", Size: 12}

	strategy := model.LayoutStrategy{Type: model.StrategyTextWrap, FontScale: 1.0, WrapLines: 3}
	text := "supercalifragilisticexpialidocious short words"
	adjustedText, _, _ := e.Apply(text, bbox, font, strategy)

	if adjustedText == "" {
		t.Fatal("expected non-empty wrapped text")
	}
	if first := strings.SplitN(adjustedText, "\n", 2)[0]; first != "supercalifragilisticexpialidocious" {
		t.Fatalf("expected the long word kept whole on its own line, got %q", adjustedText)
	}
}
