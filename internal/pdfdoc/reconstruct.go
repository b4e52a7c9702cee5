// Reconstruct (C10) renders a TranslatedLayout into a new PDF at the
// original page geometry, drawing translated text as true text objects.
//
// Grounded on other_examples' novvoo-translator-web backend-translator-pdf
// style-preserving file for the "replay styled elements onto a fresh page"
// shape, and on vnykmshr-rememory (a full example repo, preferred over the
// other_examples standalone file per the pack-preference rule) for the
// concrete PDF-writing library, github.com/go-pdf/fpdf.
package pdfdoc

import (
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/JAaron93/phenomenallayout/internal/model"
)

// ReconstructionResult reports the metrics a quality-sensitive caller needs:
// how much text overflowed its bbox, how often a font fallback was applied,
// and any warnings worth surfacing.
type ReconstructionResult struct {
	OverflowRate     float64
	FontFallbackRate float64
	Warnings         []string
	// UsedFamilies is the set of font family names actually written to the
	// output, after fallback substitution; consumed by the quality
	// validator's font_preservation_ratio metric.
	UsedFamilies map[string]bool
}

// standard14Fallback maps a font's bold/italic style key to the Helvetica
// variant of the PDF standard 14 fonts used when a family is unavailable.
var standard14Fallback = map[string]string{
	"bold-italic": "Helvetica-BoldOblique",
	"bold":        "Helvetica-Bold",
	"italic":      "Helvetica-Oblique",
	"regular":     "Helvetica",
}

func fallbackFontKey(font model.FontInfo) string {
	bold := font.Weight == model.FontWeightBold
	italic := font.Style == model.FontStyleItalic
	switch {
	case bold && italic:
		return "bold-italic"
	case bold:
		return "bold"
	case italic:
		return "italic"
	default:
		return "regular"
	}
}

// fpdfStyle maps a FontInfo to fpdf's style string ("", "B", "I", "BI").
func fpdfStyle(font model.FontInfo) string {
	style := ""
	if font.Weight == model.FontWeightBold {
		style += "B"
	}
	if font.Style == model.FontStyleItalic {
		style += "I"
	}
	return style
}

// knownFamilies are the families fpdf's core font set recognizes without
// registering an external font file.
var knownFamilies = map[string]bool{
	"helvetica": true, "arial": true, "courier": true, "times": true, "symbol": true, "zapfdingbats": true,
}

// Reconstruct writes layout to outPath as a PDF, one page per
// TranslatedPage, honoring each element's adjusted bbox, font, and color.
// lineHeightFactor must match the value the layout engine (C5) used to
// compute each element's bbox and wrap decisions, or the two stages
// disagree about how much vertical space a line occupies.
func Reconstruct(layout model.TranslatedLayout, outPath string, lineHeightFactor float64) (*ReconstructionResult, error) {
	result := &ReconstructionResult{UsedFamilies: make(map[string]bool)}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		SizeStr:        "",
		Size:           fpdf.SizeType{Wd: 612, Ht: 792},
	})

	totalElements := 0
	overflowCount := 0
	fallbackCount := 0

	for _, page := range layout.Pages {
		width, height := page.Width, page.Height
		if width <= 0 {
			width = 612
		}
		if height <= 0 {
			height = 792
		}
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: width, Ht: height})

		for _, el := range page.Elements {
			totalElements++

			family := el.FontInfo.Family
			familyKey := family
			if familyKey == "" {
				familyKey = model.DefaultFontFamily
			}
			resolvedFamily := familyKey
			if !knownFamilies[normalizeFamily(familyKey)] {
				resolvedFamily = standard14Fallback[fallbackFontKey(el.FontInfo)]
				fallbackCount++
				result.Warnings = append(result.Warnings, fmt.Sprintf(
					"page %d: font family %q not available, falling back to %s", page.PageNumber, family, resolvedFamily))
			}

			result.UsedFamilies[resolvedFamily] = true
			pdf.SetFont(resolvedFamily, fpdfStyle(el.FontInfo), el.FontInfo.Size)
			pdf.SetTextColor(int(el.FontInfo.Color.R), int(el.FontInfo.Color.G), int(el.FontInfo.Color.B))

			lineHeight := el.FontInfo.Size * lineHeightFactor
			lines := splitLines(el.AdjustedText)

			maxLines := int(el.BBox.Height / lineHeight)
			if maxLines < 1 {
				maxLines = 1
			}
			if len(lines) > maxLines {
				lines = lines[:maxLines]
				overflowCount++
				result.Warnings = append(result.Warnings, fmt.Sprintf(
					"page %d: text truncated to fit bbox height", page.PageNumber))
			}

			y := el.BBox.Y
			for _, line := range lines {
				pdf.SetXY(el.BBox.X, y)
				pdf.CellFormat(el.BBox.Width, lineHeight, line, "", 0, "L", false, 0, "")
				y += lineHeight
			}
		}
	}

	if totalElements > 0 {
		result.OverflowRate = float64(overflowCount) / float64(totalElements)
		result.FontFallbackRate = float64(fallbackCount) / float64(totalElements)
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return nil, err
	}
	return result, nil
}

func normalizeFamily(family string) string {
	out := make([]byte, 0, len(family))
	for i := 0; i < len(family); i++ {
		c := family[i]
		if c >= 'A' && c <= 'Z' {
			c = c - 'A' + 'a'
		}
		out = append(out, c)
	}
	return string(out)
}

func splitLines(text string) []string {
	return strings.Split(text, "\n")
}
