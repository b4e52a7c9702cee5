// Package quality implements the post-hoc Quality Validator (C12): it
// compares the original and reconstructed PDFs on text coverage, layout
// similarity, and font preservation.
//
// Grounded on casadeprovision2016-nCotAi's go-pdf-processor, which extracts
// page text via github.com/ledongthuc/pdf's GetPlainText; the alternative
// extraction strategy here falls back to the same library's lower-level
// Content() API (a distinct codepath through the same package, not a
// second dependency) before giving up to an OCR fallback supplied by the
// caller.
package quality

import (
	"strconv"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/JAaron93/phenomenallayout/internal/apperr"
	"github.com/JAaron93/phenomenallayout/internal/model"
)

// Config bounds the acceptable window for each metric.
type Config struct {
	MinTextCoverageRatio    float64
	MaxTextCoverageRatio    float64
	MinLayoutHashSimilarity float64
	MinFontPreservationRatio float64
	GridSize                int
}

func DefaultConfig() Config {
	return Config{
		MinTextCoverageRatio:     0.5,
		MaxTextCoverageRatio:     2.5,
		MinLayoutHashSimilarity:  0.6,
		MinFontPreservationRatio: 0.8,
		GridSize:                 10,
	}
}

// ReconstructionReport is the persisted outcome of one quality check.
type ReconstructionReport struct {
	TextCoverageRatio     float64
	TextCoveragePass      bool
	LayoutHashSimilarity  float64
	LayoutHashPass        bool
	FontPreservationRatio float64
	FontPreservationPass  bool
	Pass                  bool
	Warnings              []string
}

// OCRFallback extracts text from page images when both direct PDF text
// extraction strategies yield nothing. Validate calls it with a nil image
// slice; the orchestrator constructs its validator with no fallback.
type OCRFallback func(pageImages [][]byte) (string, error)

// Validator compares an original document against its translated
// reconstruction.
type Validator struct {
	cfg      Config
	fallback OCRFallback
}

func NewValidator(cfg Config, fallback OCRFallback) *Validator {
	return &Validator{cfg: cfg, fallback: fallback}
}

// Validate runs all three metrics and returns a pass/fail report.
func (v *Validator) Validate(jobID, originalPath, reconstructedPath string, originalBlocks [][]model.TextBlock, layout model.TranslatedLayout, usedFamilies map[string]bool) (*ReconstructionReport, error) {
	report := &ReconstructionReport{}

	reconText, err := v.extractText(jobID, reconstructedPath)
	if err != nil {
		return nil, err
	}

	expectedLen := 0
	for _, page := range layout.Pages {
		for _, el := range page.Elements {
			expectedLen += len(el.AdjustedText)
		}
	}
	if expectedLen < 1 {
		expectedLen = 1
	}
	report.TextCoverageRatio = float64(len(reconText)) / float64(expectedLen)
	report.TextCoveragePass = report.TextCoverageRatio >= v.cfg.MinTextCoverageRatio && report.TextCoverageRatio <= v.cfg.MaxTextCoverageRatio
	if !report.TextCoveragePass {
		report.Warnings = append(report.Warnings, "text coverage ratio outside acceptable window")
	}

	report.LayoutHashSimilarity = layoutHashSimilarity(originalBlocks, layout, v.cfg.GridSize)
	report.LayoutHashPass = report.LayoutHashSimilarity >= v.cfg.MinLayoutHashSimilarity
	if !report.LayoutHashPass {
		report.Warnings = append(report.Warnings, "layout hash similarity below threshold; possible gross rearrangement")
	}

	originalFonts := collectOriginalFonts(originalBlocks)
	report.FontPreservationRatio = fontPreservationRatio(originalFonts, usedFamilies)
	report.FontPreservationPass = report.FontPreservationRatio >= v.cfg.MinFontPreservationRatio
	if !report.FontPreservationPass {
		report.Warnings = append(report.Warnings, "font preservation ratio below threshold")
	}

	report.Pass = report.TextCoveragePass && report.LayoutHashPass && report.FontPreservationPass
	return report, nil
}

// extractText runs the layered extraction strategy: direct GetPlainText,
// then the package's lower-level Content() API, then an OCR fallback if
// both yield nothing.
func (v *Validator) extractText(jobID, path string) (string, error) {
	text, err := extractDirect(path)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}

	text, err = extractViaContent(path)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}

	if v.fallback != nil {
		text, err := v.fallback(nil)
		if err == nil {
			return text, nil
		}
	}

	return "", nil
}

func extractDirect(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", apperr.NewCorrupted("", err.Error())
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// extractViaContent reads the decoded content-stream text runs directly,
// bypassing GetPlainText's layout reconstruction. It catches documents
// whose text-positioning operators confuse the higher-level extractor.
func extractViaContent(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", apperr.NewCorrupted("", err.Error())
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		for _, t := range content.Text {
			sb.WriteString(t.S)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// layoutHashSimilarity buckets element centroids into a coarse grid per
// page and returns the Jaccard index of occupied buckets between the
// original OCR blocks and the translated/adjusted layout, catching gross
// rearrangement without requiring pixel-exact geometry comparison.
func layoutHashSimilarity(original [][]model.TextBlock, translated model.TranslatedLayout, gridSize int) float64 {
	if gridSize < 1 {
		gridSize = 10
	}

	originalBuckets := make(map[string]bool)
	for pageIdx, blocks := range original {
		for _, b := range blocks {
			originalBuckets[bucketKey(pageIdx, b.BBox, gridSize)] = true
		}
	}

	translatedBuckets := make(map[string]bool)
	for pageIdx, page := range translated.Pages {
		for _, el := range page.Elements {
			translatedBuckets[bucketKey(pageIdx, el.BBox, gridSize)] = true
		}
	}

	if len(originalBuckets) == 0 && len(translatedBuckets) == 0 {
		return 1.0
	}

	intersection := 0
	for k := range originalBuckets {
		if translatedBuckets[k] {
			intersection++
		}
	}
	union := len(originalBuckets)
	for k := range translatedBuckets {
		if !originalBuckets[k] {
			union++
		}
	}
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}

func bucketKey(pageIdx int, bbox model.BoundingBox, gridSize int) string {
	centroidX := bbox.X + bbox.Width/2
	centroidY := bbox.Y + bbox.Height/2
	// Page coordinates are in points against a nominal US Letter canvas;
	// normalizing against a fixed 612x792 extent is coarse but sufficient
	// for gross-rearrangement detection, not pixel-exact placement.
	bucketX := int(centroidX / (612.0 / float64(gridSize)))
	bucketY := int(centroidY / (792.0 / float64(gridSize)))
	return strconv.Itoa(pageIdx) + ":" + strconv.Itoa(bucketX) + ":" + strconv.Itoa(bucketY)
}

func collectOriginalFonts(blocks [][]model.TextBlock) map[string]bool {
	out := make(map[string]bool)
	for _, page := range blocks {
		for _, b := range page {
			family := b.Font.Family
			if family == "" {
				family = model.DefaultFontFamily
			}
			out[family] = true
		}
	}
	return out
}

func fontPreservationRatio(original, reconstructed map[string]bool) float64 {
	if len(original) == 0 {
		return 1.0
	}
	intersection := 0
	for k := range original {
		if reconstructed[k] {
			intersection++
		}
	}
	return float64(intersection) / float64(len(original))
}
