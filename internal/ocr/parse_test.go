package ocr

import "testing"

func TestParse_DiscardsWhitespaceOnlyBlocks(t *testing.T) {
	layout := &OcrLayout{
		Pages: []OcrPage{
			{
				Blocks: []OcrBlock{
					{Lines: []OcrLine{{Words: []OcrWord{{Text: "   "}}}}},
					{Lines: []OcrLine{{Words: []OcrWord{{Text: "Hello", BBox: []float64{0, 0, 50, 10}}}}}},
				},
			},
		},
	}

	pages := Parse(layout)
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	if len(pages[0]) != 1 {
		t.Fatalf("expected whitespace-only block discarded, got %d blocks", len(pages[0]))
	}
	if pages[0][0].Text != "Hello" {
		t.Fatalf("expected text 'Hello', got %q", pages[0][0].Text)
	}
}

func TestParse_ConcatenatesWordsAndLines(t *testing.T) {
	layout := &OcrLayout{
		Pages: []OcrPage{
			{
				Blocks: []OcrBlock{
					{Lines: []OcrLine{
						{Words: []OcrWord{{Text: "Hello", BBox: []float64{0, 0, 20, 10}}, {Text: "world", BBox: []float64{20, 0, 20, 10}}}},
						{Words: []OcrWord{{Text: "line2", BBox: []float64{0, 10, 20, 10}}}},
					}},
				},
			},
		},
	}

	pages := Parse(layout)
	got := pages[0][0].Text
	want := "Hello world\nline2"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestParse_ClampsNonPositiveDimensions(t *testing.T) {
	layout := &OcrLayout{
		Pages: []OcrPage{
			{Blocks: []OcrBlock{
				{Lines: []OcrLine{{Words: []OcrWord{{Text: "x", BBox: []float64{0, 0, 0, -5}}}}}},
			}},
		},
	}
	pages := Parse(layout)
	b := pages[0][0].BBox
	if b.Width < minDimension || b.Height < minDimension {
		t.Fatalf("expected dimensions clamped to >= %f, got width=%f height=%f", minDimension, b.Width, b.Height)
	}
}

func TestParse_BlockBBoxIsUnionOfLinesNotWords(t *testing.T) {
	// Two words in one line with a gap between them: block bbox should be
	// the union of the *line* bbox (itself the union of its words), which
	// in this single-line case is equivalent, but must not collapse to a
	// single word's box.
	layout := &OcrLayout{
		Pages: []OcrPage{
			{Blocks: []OcrBlock{
				{Lines: []OcrLine{{Words: []OcrWord{
					{Text: "A", BBox: []float64{0, 0, 10, 10}},
					{Text: "B", BBox: []float64{100, 0, 10, 10}},
				}}}},
			}},
		},
	}
	pages := Parse(layout)
	b := pages[0][0].BBox
	if b.Width != 110 {
		t.Fatalf("expected union width 110, got %f", b.Width)
	}
}
