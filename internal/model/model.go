// Package model holds the data types shared across the translation pipeline:
// bounding geometry, font metadata, OCR text blocks, layout decisions, and
// the translated document tree produced at the end of the pipeline.
package model

import "time"

// BoundingBox is a rectangle in PDF user-space units (points, 72 per inch),
// with the origin at the page's top-left corner as reported by OCR.
type BoundingBox struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// FontWeight and FontStyle enumerate the subset of font variation this system
// tracks; anything else collapses to the "normal" value at parse time.
type FontWeight string
type FontStyle string

const (
	FontWeightNormal FontWeight = "normal"
	FontWeightBold   FontWeight = "bold"

	FontStyleNormal FontStyle = "normal"
	FontStyleItalic FontStyle = "italic"
)

// RGB is an 8-bit-per-channel color, defaulting to black.
type RGB struct {
	R, G, B uint8
}

// DefaultFontFamily is used whenever OCR does not report a usable family.
const DefaultFontFamily = "Helvetica"

// FontInfo describes the font a text block was rendered with.
type FontInfo struct {
	Family string
	Size   float64
	Weight FontWeight
	Style  FontStyle
	Color  RGB
}

// TextBlock is the fundamental OCR output unit: created by the OCR parser,
// read by the translator and reconstructor, never mutated afterward.
type TextBlock struct {
	Text          string
	BBox          BoundingBox
	Font          FontInfo
	OCRConfidence float64 // 0 when not reported
	HasConfidence bool
}

// StrategyType enumerates the four layout strategies the layout engine can
// choose between.
type StrategyType string

const (
	StrategyNone      StrategyType = "NONE"
	StrategyFontScale StrategyType = "FONT_SCALE"
	StrategyTextWrap  StrategyType = "TEXT_WRAP"
	StrategyHybrid    StrategyType = "HYBRID"
)

// FitAnalysis holds every metric analyze_fit derives from a (source length,
// translated length, bbox, font) tuple. All fields are deterministic
// functions of the inputs; see internal/layout for the formulas.
type FitAnalysis struct {
	LengthRatio                float64
	OneLineWidth               float64
	LineHeight                 float64
	MaxLines                   int
	LinesNeeded                int
	CanFitWithoutChanges       bool
	RequiredScaleForSingleLine float64
	CanScaleToSingleLine       bool
	CanWrapWithinHeight        bool
}

// LayoutStrategy is the decided fit strategy along with its parameters.
// Invariants (enforced by internal/layout.DecideStrategy):
//   - NONE:       FontScale == 1.0, WrapLines == 1
//   - FONT_SCALE: WrapLines == 1, FontScale in [font_scale_min, font_scale_max]
//   - TEXT_WRAP:  FontScale == 1.0, WrapLines >= 2, except the fallback taken
//     when no HYBRID scale fits, which uses WrapLines == max_lines (may be 1)
//   - HYBRID:     FontScale < 1.0, WrapLines >= 2
type LayoutStrategy struct {
	Type      StrategyType
	FontScale float64
	WrapLines int
}

// TranslatedElement is one text block after translation and layout
// adjustment, ready for the reconstructor.
type TranslatedElement struct {
	OriginalText       string
	TranslatedText     string
	AdjustedText       string
	BBox               BoundingBox
	FontInfo           FontInfo
	LayoutStrategyName StrategyType
	Confidence         float64
}

// TranslatedPage groups the translated elements of a single PDF page.
type TranslatedPage struct {
	PageNumber int
	Elements   []TranslatedElement
	Width      float64
	Height     float64
}

// TranslatedLayout owns every translated page of a document.
type TranslatedLayout struct {
	Pages []TranslatedPage
}

// TranslationContext carries the semantic metadata a term was encountered in,
// used to match it against previously recorded user choices.
type TranslationContext struct {
	SentenceContext    string
	ParagraphContext   string
	SemanticField      string
	PhilosophicalDomain string
	Author             string
	SourceLanguage     string
	TargetLanguage     string
	PageNumber         int
	SurroundingTerms   []string
	RelatedConcepts    []string
	ConfidenceScore    float64
	ContextHash        string
}

// ChoiceType enumerates how a user wants a term handled.
type ChoiceType string

const (
	ChoiceTranslate ChoiceType = "TRANSLATE"
	ChoicePreserve  ChoiceType = "PRESERVE"
	ChoiceCustom    ChoiceType = "CUSTOM"
	ChoiceSkip      ChoiceType = "SKIP"
)

// ChoiceScope enumerates the visibility of a user choice.
type ChoiceScope string

const (
	ScopeGlobal     ChoiceScope = "GLOBAL"
	ScopeContextual ChoiceScope = "CONTEXTUAL"
	ScopeDocument   ChoiceScope = "DOCUMENT"
	ScopeSession    ChoiceScope = "SESSION"
)

// UserChoice is a persisted translation decision for one term.
type UserChoice struct {
	ChoiceID          string
	Term              string
	ChoiceType        ChoiceType
	TranslationResult string
	Context           TranslationContext
	Scope             ChoiceScope
	ConfidenceLevel   float64
	UsageCount        int
	SuccessRate       float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LastUsedAt        time.Time
	SessionID         string
	DocumentID        string
}

// SessionStatus enumerates the lifecycle states of a ChoiceSession.
type SessionStatus string

const (
	SessionActive    SessionStatus = "ACTIVE"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionSuspended SessionStatus = "SUSPENDED"
	SessionExpired   SessionStatus = "EXPIRED"
)

// SessionCounts tallies how many choices of each type a session recorded.
type SessionCounts struct {
	Translate int
	Preserve  int
	Custom    int
	Skip      int
	Total     int
}

// ChoiceSession groups the choices made while working through one document.
// It does not own the UserChoice records it references by SessionID;
// deleting a session never deletes GLOBAL- or CONTEXTUAL-scope choices.
type ChoiceSession struct {
	SessionID        string
	Name             string
	Status           SessionStatus
	UserID           string
	DocumentID       string
	SourceLanguage   string
	TargetLanguage   string
	Counts           SessionCounts
	ConsistencyScore float64
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

// JobStatus enumerates the lifecycle states of a translation Job.
type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

// Job tracks one document-translation request from submission to terminal
// state. Progress is monotone non-decreasing within a job's lifetime.
type Job struct {
	JobID          string
	Status         JobStatus
	Progress       int
	SourcePath     string
	SourceLanguage string
	TargetLanguage string
	OutputPath     string
	Error          string
	CreatedAt      time.Time
	LastUpdated    time.Time
}

// Clone returns a value copy of the job, safe to hand to a reader outside
// the orchestrator's lock.
func (j Job) Clone() Job {
	return j
}
