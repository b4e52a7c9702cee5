package ocr

// OcrLayout is the logical shape of a remote OCR response: pages of blocks
// of lines of words, each word carrying its own bounding box, confidence,
// and font guess. All numeric fields are optional; missing values default
// to their zero value and are handled by Parse.
//
// Struct shape grounded on the teacher's internal/processor/ocr_types.go
// (OCRResult/OCRPage/OCRWord), generalized from the teacher's integer pixel
// BoundingBox to floating-point PDF points as SPEC_FULL.md §4.3 requires.
type OcrLayout struct {
	Pages []OcrPage `json:"pages"`
}

type OcrPage struct {
	Blocks []OcrBlock `json:"blocks"`
}

type OcrBlock struct {
	Lines []OcrLine `json:"lines"`
}

type OcrLine struct {
	Words []OcrWord `json:"words"`
}

type OcrWord struct {
	Text       string    `json:"text"`
	BBox       []float64 `json:"bbox"` // [x, y, w, h]
	Confidence float64   `json:"confidence"`
	Font       *OcrFont  `json:"font"`
}

type OcrFont struct {
	Family string `json:"family"`
	Size   float64 `json:"size"`
	Weight string `json:"weight"`
	Style  string `json:"style"`
	Color  []int  `json:"color"` // [r, g, b]
}
