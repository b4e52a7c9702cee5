// Package layout implements the deterministic layout preservation engine:
// given a source length, a translated length, a bounding box, and a font, it
// decides how translated text should be scaled and/or wrapped to fit inside
// the original bounding box, then applies that decision.
//
// Every formula here is specified exactly by contract (SPEC_FULL.md §4.5);
// the numeric constants are part of the contract, not tuning knobs, so this
// package is pure arithmetic over the standard library (math) with no
// third-party dependency — there is no parsing, I/O, or formatting concern
// for a library to serve.
package layout

import (
	"math"
	"strings"

	"github.com/JAaron93/phenomenallayout/internal/model"
)

// Config holds the engine's tunable constants, read once from
// internal/config.Config at startup.
type Config struct {
	FontScaleMin       float64
	FontScaleMax       float64
	MaxBBoxExpansion   float64
	AverageCharWidthEM float64
	LineHeightFactor   float64
}

// DefaultConfig matches the literal constants fixed by SPEC_FULL.md §4.5.
func DefaultConfig() Config {
	return Config{
		FontScaleMin:       0.6,
		FontScaleMax:       1.2,
		MaxBBoxExpansion:   0.30,
		AverageCharWidthEM: 0.5,
		LineHeightFactor:   1.2,
	}
}

// Engine evaluates fit, decides a strategy, and applies it.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// AnalyzeFit computes every metric decide_strategy and apply need, from the
// source text length, translated text length, original bbox, and font.
func (e *Engine) AnalyzeFit(srcLen, tgtLen int, bbox model.BoundingBox, font model.FontInfo) model.FitAnalysis {
	tgt := tgtLen
	if tgt < 1 {
		tgt = 1
	}
	src := srcLen
	if src < 1 {
		src = 1
	}

	avgCharW := font.Size * e.cfg.AverageCharWidthEM
	oneLineWidth := float64(tgt) * avgCharW
	lineHeight := font.Size * e.cfg.LineHeightFactor

	maxLines := int(math.Floor(bbox.Height / lineHeight))
	if maxLines < 1 {
		maxLines = 1
	}

	linesNeeded := int(math.Ceil(oneLineWidth / bbox.Width))
	if linesNeeded < 1 {
		linesNeeded = 1
	}

	lengthRatio := float64(tgtLen) / float64(src)
	canFit := oneLineWidth <= bbox.Width
	requiredScale := bbox.Width / oneLineWidth
	canScale := requiredScale >= e.cfg.FontScaleMin && requiredScale <= e.cfg.FontScaleMax
	canWrap := linesNeeded <= maxLines

	return model.FitAnalysis{
		LengthRatio:                lengthRatio,
		OneLineWidth:               oneLineWidth,
		LineHeight:                 lineHeight,
		MaxLines:                   maxLines,
		LinesNeeded:                linesNeeded,
		CanFitWithoutChanges:       canFit,
		RequiredScaleForSingleLine: requiredScale,
		CanScaleToSingleLine:       canScale,
		CanWrapWithinHeight:        canWrap,
	}
}

// DecideStrategy picks one of NONE / FONT_SCALE / TEXT_WRAP / HYBRID
// following the priority order fixed by SPEC_FULL.md §4.5.
func (e *Engine) DecideStrategy(fit model.FitAnalysis) model.LayoutStrategy {
	if fit.CanFitWithoutChanges || fit.LengthRatio <= 1 {
		return model.LayoutStrategy{Type: model.StrategyNone, FontScale: 1.0, WrapLines: 1}
	}

	if fit.CanScaleToSingleLine {
		scale := clamp(fit.RequiredScaleForSingleLine, e.cfg.FontScaleMin, e.cfg.FontScaleMax)
		return model.LayoutStrategy{Type: model.StrategyFontScale, FontScale: scale, WrapLines: 1}
	}

	if fit.CanWrapWithinHeight {
		return model.LayoutStrategy{Type: model.StrategyTextWrap, FontScale: 1.0, WrapLines: fit.LinesNeeded}
	}

	// Attempt HYBRID: find the largest scale >= FontScaleMin and below 1.0
	// such that wrapping at that scale fits within max_lines with the
	// allowed vertical expansion.
	verticalBudget := float64(fit.MaxLines) * (1 + e.cfg.MaxBBoxExpansion)
	best := -1.0
	bestWrap := 0
	const steps = 61 // equal steps from FontScaleMax down to FontScaleMin (~0.0098 apart at the 1.2/0.6 defaults)
	for i := 0; i <= steps; i++ {
		frac := float64(i) / float64(steps)
		scale := e.cfg.FontScaleMax - frac*(e.cfg.FontScaleMax-e.cfg.FontScaleMin)
		if scale < e.cfg.FontScaleMin {
			break
		}
		if scale >= 1.0 {
			continue
		}
		scaledWidth := fit.OneLineWidth * scale
		// bbox.Width itself isn't stored on FitAnalysis, but it is
		// recoverable exactly from OneLineWidth and RequiredScaleForSingleLine
		// since required_scale_for_single_line = bbox.width / one_line_width.
		bboxWidth := fit.OneLineWidth * fit.RequiredScaleForSingleLine
		linesAtScale := int(math.Ceil(scaledWidth / bboxWidth))
		if linesAtScale < 1 {
			linesAtScale = 1
		}
		if float64(linesAtScale) <= verticalBudget {
			if scale > best {
				best = scale
				bestWrap = linesAtScale
			}
		}
	}

	if best >= e.cfg.FontScaleMin && bestWrap >= 2 {
		return model.LayoutStrategy{Type: model.StrategyHybrid, FontScale: best, WrapLines: bestWrap}
	}

	// No viable hybrid scale: fall back to TEXT_WRAP, accepting truncation.
	// Note: when max_lines itself is 1 this yields wrap_lines=1, which
	// narrowly violates the general TEXT_WRAP invariant (wrap_lines>=2) —
	// this fallback path is the documented exception (SPEC_FULL.md §8
	// scenario 4), since fewer lines than max_lines would contradict the
	// literal worked example.
	return model.LayoutStrategy{Type: model.StrategyTextWrap, FontScale: 1.0, WrapLines: fit.MaxLines}
}

// Apply computes the adjusted text, font, and bbox for a strategy,
// wrapping greedily on whitespace and expanding/truncating per SPEC_FULL.md
// §4.5.
func (e *Engine) Apply(text string, bbox model.BoundingBox, font model.FontInfo, strategy model.LayoutStrategy) (string, model.FontInfo, model.BoundingBox) {
	adjustedFont := font
	adjustedFont.Size = font.Size * strategy.FontScale

	if strategy.Type == model.StrategyNone {
		return text, adjustedFont, bbox
	}

	adjustedBBox := bbox

	if strategy.Type == model.StrategyFontScale {
		return text, adjustedFont, adjustedBBox
	}

	// TEXT_WRAP or HYBRID: wrap greedily on whitespace.
	lines := wrapText(text, adjustedBBox.Width, adjustedFont, e.cfg.AverageCharWidthEM)

	lineHeight := adjustedFont.Size * e.cfg.LineHeightFactor
	maxLines := int(math.Floor(bbox.Height / lineHeight))
	if maxLines < 1 {
		maxLines = 1
	}

	if len(lines) > maxLines {
		expandedHeight := bbox.Height * (1 + e.cfg.MaxBBoxExpansion)
		maxLinesExpanded := int(math.Floor(expandedHeight / lineHeight))
		if maxLinesExpanded < 1 {
			maxLinesExpanded = 1
		}
		if len(lines) <= maxLinesExpanded {
			adjustedBBox.Height = expandedHeight
		} else {
			adjustedBBox.Height = expandedHeight
			lines = lines[:maxLinesExpanded]
		}
	}

	return strings.Join(lines, "\n"), adjustedFont, adjustedBBox
}

// wrapText greedily packs whitespace-delimited words into lines that fit
// width at the given font. A single word wider than the line is never split
// — it occupies its own line and may overflow horizontally.
func wrapText(text string, width float64, font model.FontInfo, avgCharWidthEM float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	avgCharW := font.Size * avgCharWidthEM
	var lines []string
	var current strings.Builder

	lineWidth := func(s string) float64 {
		return float64(len(s)) * avgCharW
	}

	for _, word := range words {
		if current.Len() == 0 {
			current.WriteString(word)
			continue
		}
		candidate := current.String() + " " + word
		if lineWidth(candidate) <= width {
			current.Reset()
			current.WriteString(candidate)
		} else {
			lines = append(lines, current.String())
			current.Reset()
			current.WriteString(word)
		}
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	return lines
}

// QualityScore scores how well a strategy preserved the original appearance,
// clamped to [0,1].
func (e *Engine) QualityScore(fit model.FitAnalysis, strategy model.LayoutStrategy) float64 {
	score := 1.0
	score -= 0.35 * math.Abs(1-strategy.FontScale)
	score -= 0.25 * maxFloat(0, float64(strategy.WrapLines-1)/float64(maxInt(fit.MaxLines, 1)))
	if strategy.Type == model.StrategyNone {
		score += 0.05
	}
	return clamp(score, 0, 1)
}
