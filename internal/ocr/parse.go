// Parse normalizes an OcrLayout into TextBlocks per page (C4), per the
// normalization rules in SPEC_FULL.md §4.4.
package ocr

import (
	"strings"

	"github.com/JAaron93/phenomenallayout/internal/model"
)

const minDimension = 1.0

// Parse turns a raw OcrLayout into a list of TextBlocks per page. Empty or
// whitespace-only blocks are discarded; non-positive dimensions are clamped
// to 1pt; block bbox is the union of its lines' bboxes (never its words',
// to avoid kerning jitter); block font comes from the first non-empty word.
func Parse(layout *OcrLayout) [][]model.TextBlock {
	pages := make([][]model.TextBlock, len(layout.Pages))

	for pi, page := range layout.Pages {
		var blocks []model.TextBlock
		for _, block := range page.Blocks {
			tb, ok := parseBlock(block)
			if !ok {
				continue
			}
			blocks = append(blocks, tb)
		}
		pages[pi] = blocks
	}
	return pages
}

func parseBlock(block OcrBlock) (model.TextBlock, bool) {
	var lineTexts []string
	var lineBoxes []model.BoundingBox
	var font model.FontInfo
	fontFound := false
	var conf float64
	confFound := false

	for _, line := range block.Lines {
		var words []string
		var wordBoxes []model.BoundingBox
		for _, word := range line.Words {
			if strings.TrimSpace(word.Text) == "" {
				continue
			}
			words = append(words, word.Text)
			wordBoxes = append(wordBoxes, toBBox(word.BBox))

			if !fontFound {
				font = toFontInfo(word.Font)
				fontFound = true
			}
			if !confFound && word.Confidence != 0 {
				conf = word.Confidence
				confFound = true
			}
		}
		if len(words) == 0 {
			continue
		}
		lineTexts = append(lineTexts, strings.Join(words, " "))
		lineBoxes = append(lineBoxes, unionBBox(wordBoxes))
	}

	text := strings.Join(lineTexts, "\n")
	if strings.TrimSpace(text) == "" {
		return model.TextBlock{}, false
	}

	if !fontFound {
		font = model.FontInfo{Family: model.DefaultFontFamily, Size: 12, Weight: model.FontWeightNormal, Style: model.FontStyleNormal}
	}

	bbox := clampBBox(unionBBox(lineBoxes))

	return model.TextBlock{
		Text:          text,
		BBox:          bbox,
		Font:          font,
		OCRConfidence: conf,
		HasConfidence: confFound,
	}, true
}

func toBBox(raw []float64) model.BoundingBox {
	if len(raw) != 4 {
		return model.BoundingBox{Width: minDimension, Height: minDimension}
	}
	return model.BoundingBox{X: raw[0], Y: raw[1], Width: raw[2], Height: raw[3]}
}

func unionBBox(boxes []model.BoundingBox) model.BoundingBox {
	if len(boxes) == 0 {
		return model.BoundingBox{Width: minDimension, Height: minDimension}
	}
	minX, minY := boxes[0].X, boxes[0].Y
	maxX, maxY := boxes[0].X+boxes[0].Width, boxes[0].Y+boxes[0].Height
	for _, b := range boxes[1:] {
		if b.X < minX {
			minX = b.X
		}
		if b.Y < minY {
			minY = b.Y
		}
		if b.X+b.Width > maxX {
			maxX = b.X + b.Width
		}
		if b.Y+b.Height > maxY {
			maxY = b.Y + b.Height
		}
	}
	return model.BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func clampBBox(b model.BoundingBox) model.BoundingBox {
	if b.Width <= 0 {
		b.Width = minDimension
	}
	if b.Height <= 0 {
		b.Height = minDimension
	}
	return b
}

func toFontInfo(f *OcrFont) model.FontInfo {
	if f == nil {
		return model.FontInfo{Family: model.DefaultFontFamily, Size: 12, Weight: model.FontWeightNormal, Style: model.FontStyleNormal}
	}
	family := f.Family
	if family == "" {
		family = model.DefaultFontFamily
	}
	size := f.Size
	if size <= 0 {
		size = 12
	}
	weight := model.FontWeightNormal
	if f.Weight == string(model.FontWeightBold) {
		weight = model.FontWeightBold
	}
	style := model.FontStyleNormal
	if f.Style == string(model.FontStyleItalic) {
		style = model.FontStyleItalic
	}
	color := model.RGB{}
	if len(f.Color) == 3 {
		color = model.RGB{R: uint8(f.Color[0]), G: uint8(f.Color[1]), B: uint8(f.Color[2])}
	}
	return model.FontInfo{Family: family, Size: size, Weight: weight, Style: style, Color: color}
}
