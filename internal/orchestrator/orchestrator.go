// Package orchestrator implements the Job Orchestrator (C11): it drives a
// document through every pipeline stage, tracks progress at canonical mile
// markers, and exposes a concurrency-safe status/result contract.
//
// Grounded on the teacher's cmd/worker/main.go bootstrap/lifecycle shape
// and internal/processor/processor.go's stage-by-stage ProcessDocument
// method, generalized from the teacher's fileprocess domain to this
// translation pipeline's twelve components.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JAaron93/phenomenallayout/internal/apperr"
	"github.com/JAaron93/phenomenallayout/internal/layout"
	"github.com/JAaron93/phenomenallayout/internal/logging"
	"github.com/JAaron93/phenomenallayout/internal/model"
	"github.com/JAaron93/phenomenallayout/internal/neologism"
	"github.com/JAaron93/phenomenallayout/internal/ocr"
	"github.com/JAaron93/phenomenallayout/internal/pdfdoc"
	"github.com/JAaron93/phenomenallayout/internal/quality"
	"github.com/JAaron93/phenomenallayout/internal/translate"
	"github.com/JAaron93/phenomenallayout/internal/userchoice"
)

// Canonical progress mile markers.
const (
	ProgressValidated    = 5
	ProgressRasterized   = 15
	ProgressOCRComplete  = 40
	ProgressTranslated   = 70
	ProgressReconstructed = 95
	ProgressDone         = 100
)

// PostgresMirror is the subset of the durability mirror the orchestrator
// writes to after each stage. Status and Result read only the in-memory
// job table, never the mirror.
type PostgresMirror interface {
	UpsertJob(ctx context.Context, job model.Job) error
	StoreQualityReport(ctx context.Context, jobID string, report quality.ReconstructionReport) error
}

// ChoiceResolver adapts the User-Choice Store (C8) to the translate
// package's ChoiceLookup contract, scoping every lookup to one job's
// session and language pair.
type ChoiceResolver struct {
	store     *userchoice.Store
	sessionID string
	srcLang   string
	tgtLang   string
}

func NewChoiceResolver(store *userchoice.Store, sessionID, srcLang, tgtLang string) *ChoiceResolver {
	return &ChoiceResolver{store: store, sessionID: sessionID, srcLang: srcLang, tgtLang: tgtLang}
}

func (r *ChoiceResolver) Resolve(term string, ctx model.TranslationContext) (model.ChoiceType, string, bool) {
	choice, err := r.store.GetChoice(context.Background(), term, ctx, r.sessionID)
	if err != nil || choice == nil {
		return "", "", false
	}
	return choice.ChoiceType, choice.TranslationResult, true
}

type jobEntry struct {
	mu     sync.Mutex
	job    model.Job
	cancel context.CancelFunc
}

// Orchestrator drives C1 through C12 for every submitted job and tracks
// their lifecycle in an in-memory table mirrored to Postgres.
type Orchestrator struct {
	logger     *logging.Logger
	rasterizer *pdfdoc.Rasterizer
	ocrClient  *ocr.Client
	layoutCfg  layout.Config
	engine     *layout.Engine
	translator *translate.LayoutTranslator
	tagger     neologism.Tagger
	choices    *userchoice.Store
	validator  *quality.Validator
	mirror     PostgresMirror
	dpi        int
	outputDir  string

	jobsMu sync.RWMutex
	jobs   map[string]*jobEntry

	retentionHours int
}

// Config bundles the orchestrator's dependencies, each already constructed
// by cmd/worker/main.go.
type Config struct {
	Logger         *logging.Logger
	Rasterizer     *pdfdoc.Rasterizer
	OCRClient      *ocr.Client
	TranslateClient *translate.Client
	Tagger         neologism.Tagger
	Choices        *userchoice.Store
	Mirror         PostgresMirror
	DPI            int
	OutputDir      string
	RetentionHours int
	LayoutConfig   layout.Config
}

func New(cfg Config) *Orchestrator {
	engine := layout.NewEngine(cfg.LayoutConfig)
	return &Orchestrator{
		logger:         cfg.Logger,
		rasterizer:     cfg.Rasterizer,
		ocrClient:      cfg.OCRClient,
		layoutCfg:      cfg.LayoutConfig,
		engine:         engine,
		translator:     translate.NewLayoutTranslator(cfg.TranslateClient, engine, cfg.Tagger),
		tagger:         cfg.Tagger,
		choices:        cfg.Choices,
		validator:      quality.NewValidator(quality.DefaultConfig(), nil),
		mirror:         cfg.Mirror,
		dpi:            cfg.DPI,
		outputDir:      cfg.OutputDir,
		jobs:           make(map[string]*jobEntry),
		retentionHours: cfg.RetentionHours,
	}
}

// Submit registers a new job in QUEUED state and returns its id, for a
// caller that already holds this Orchestrator in-process (it then enqueues
// the returned id via queue.Consumer.Enqueue). A job known only as a
// dequeued payload is registered instead via RegisterFromQueue. Either way,
// Run is invoked separately to drive the pipeline.
func (o *Orchestrator) Submit(sourcePath, srcLang, tgtLang string) string {
	jobID := uuid.NewString()
	o.register(jobID, sourcePath, srcLang, tgtLang)
	return jobID
}

// RegisterFromQueue seeds the in-memory job table for a jobID that already
// exists only as a dequeued task payload, so Run can find it. It is
// idempotent: a task redelivered by the queue (retry, at-least-once
// redelivery) finds its job already registered and leaves that entry's
// progress untouched rather than resetting it to QUEUED.
func (o *Orchestrator) RegisterFromQueue(jobID, sourcePath, srcLang, tgtLang string) {
	o.register(jobID, sourcePath, srcLang, tgtLang)
}

func (o *Orchestrator) register(jobID, sourcePath, srcLang, tgtLang string) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	if _, exists := o.jobs[jobID]; exists {
		return
	}

	now := time.Now().UTC()
	o.jobs[jobID] = &jobEntry{
		job: model.Job{
			JobID:          jobID,
			Status:         model.JobQueued,
			Progress:       0,
			SourcePath:     sourcePath,
			SourceLanguage: srcLang,
			TargetLanguage: tgtLang,
			CreatedAt:      now,
			LastUpdated:    now,
		},
	}
}

// Status returns a point-in-time snapshot of a job; safe to call
// concurrently with Run.
func (o *Orchestrator) Status(jobID string) (model.Job, error) {
	entry, err := o.lookup(jobID)
	if err != nil {
		return model.Job{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.job.Clone(), nil
}

// Result returns the output path of a COMPLETED job, or the stored error
// string if it FAILED.
func (o *Orchestrator) Result(jobID string) (string, error) {
	job, err := o.Status(jobID)
	if err != nil {
		return "", err
	}
	switch job.Status {
	case model.JobCompleted:
		return job.OutputPath, nil
	case model.JobFailed:
		return "", apperr.NewInternal(jobID, fmt.Errorf("%s", job.Error))
	default:
		return "", apperr.NewInvalidInput(jobID, fmt.Sprintf("job not finished, status=%s", job.Status))
	}
}

// Cancel requests cancellation of a running job's context.
func (o *Orchestrator) Cancel(jobID string) error {
	entry, err := o.lookup(jobID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	cancel := entry.cancel
	entry.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (o *Orchestrator) lookup(jobID string) (*jobEntry, error) {
	o.jobsMu.RLock()
	defer o.jobsMu.RUnlock()
	entry, ok := o.jobs[jobID]
	if !ok {
		return nil, apperr.NewNotFound(jobID, "job")
	}
	return entry, nil
}

// setProgress enforces the monotonic-progress guarantee: a write below the
// job's current progress is silently ignored.
func (o *Orchestrator) setProgress(entry *jobEntry, progress int, status model.JobStatus) {
	entry.mu.Lock()
	if progress > entry.job.Progress {
		entry.job.Progress = progress
	}
	entry.job.Status = status
	entry.job.LastUpdated = time.Now().UTC()
	snapshot := entry.job.Clone()
	entry.mu.Unlock()

	if o.mirror != nil {
		if err := o.mirror.UpsertJob(context.Background(), snapshot); err != nil && o.logger != nil {
			o.logger.Warn("failed to mirror job status", "jobId", snapshot.JobID, "error", err)
		}
	}
}

func (o *Orchestrator) fail(entry *jobEntry, err error) error {
	entry.mu.Lock()
	entry.job.Status = model.JobFailed
	entry.job.Error = err.Error()
	entry.job.LastUpdated = time.Now().UTC()
	snapshot := entry.job.Clone()
	entry.mu.Unlock()

	if o.mirror != nil {
		_ = o.mirror.UpsertJob(context.Background(), snapshot)
	}
	return err
}

// Run drives jobID through C1-C10 and C12, updating progress at the
// canonical mile markers. Concurrent calls on the same job are not guarded
// against. The queue consumer calls it once per task delivery, and a task
// whose run failed is delivered again under the queue's retry policy, so
// Run can be called more than once for the same job.
func (o *Orchestrator) Run(parent context.Context, jobID string) error {
	entry, err := o.lookup(jobID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	entry.mu.Lock()
	entry.cancel = cancel
	sourcePath := entry.job.SourcePath
	srcLang := entry.job.SourceLanguage
	tgtLang := entry.job.TargetLanguage
	entry.mu.Unlock()
	defer cancel()

	o.setProgress(entry, 0, model.JobRunning)

	if err := pdfdoc.Validate(jobID, sourcePath); err != nil {
		return o.fail(entry, err)
	}
	o.setProgress(entry, ProgressValidated, model.JobRunning)

	var pageBlocks [][]model.TextBlock
	var pageDims []struct{ W, H float64 }
	var images [][]byte

	err = o.rasterizer.Render(ctx, jobID, sourcePath, o.dpi, func(page pdfdoc.Page) error {
		raw, err := pdfdoc.ReadPage(page.Path)
		if err != nil {
			return apperr.NewInternal(jobID, err)
		}
		images = append(images, raw)

		w, h, err := pdfdoc.PageDimensions(jobID, sourcePath, page.Number)
		if err != nil {
			return err
		}
		pageDims = append(pageDims, struct{ W, H float64 }{w, h})
		return nil
	})
	if err != nil {
		return o.fail(entry, err)
	}
	o.setProgress(entry, ProgressRasterized, model.JobRunning)

	ocrLayout, err := o.ocrClient.Process(ctx, jobID, images)
	if err != nil {
		return o.fail(entry, err)
	}
	pageBlocks = ocr.Parse(ocrLayout)
	o.setProgress(entry, ProgressOCRComplete, model.JobRunning)

	var resolver translate.ChoiceLookup
	if o.choices != nil {
		sessionID := jobID
		resolver = NewChoiceResolver(o.choices, sessionID, srcLang, tgtLang)
	}

	translatedLayout := model.TranslatedLayout{Pages: make([]model.TranslatedPage, len(pageBlocks))}
	for i, blocks := range pageBlocks {
		elements, err := o.translator.TranslateBlocks(ctx, jobID, blocks, srcLang, tgtLang, resolver)
		if err != nil {
			return o.fail(entry, err)
		}
		width, height := 612.0, 792.0
		if i < len(pageDims) {
			width, height = pageDims[i].W, pageDims[i].H
		}
		translatedLayout.Pages[i] = model.TranslatedPage{
			PageNumber: i + 1,
			Elements:   elements,
			Width:      width,
			Height:     height,
		}
	}
	o.setProgress(entry, ProgressTranslated, model.JobRunning)

	outputPath := filepath.Join(o.outputDir, fmt.Sprintf("%s-translated.pdf", jobID))
	if err := os.MkdirAll(o.outputDir, 0o755); err != nil {
		return o.fail(entry, apperr.NewInternal(jobID, err))
	}
	reconResult, err := pdfdoc.Reconstruct(translatedLayout, outputPath, o.layoutCfg.LineHeightFactor)
	if err != nil {
		return o.fail(entry, apperr.NewInternal(jobID, err))
	}
	o.setProgress(entry, ProgressReconstructed, model.JobRunning)

	if o.validator != nil {
		report, err := o.validator.Validate(jobID, sourcePath, outputPath, pageBlocks, translatedLayout, reconResult.UsedFamilies)
		if err != nil && o.logger != nil {
			o.logger.Warn("quality validation failed to run", "jobId", jobID, "error", err)
		} else if report != nil {
			if !report.Pass && o.logger != nil {
				o.logger.Warn("quality validation did not pass", "jobId", jobID, "warnings", report.Warnings)
			}
			if o.mirror != nil {
				if err := o.mirror.StoreQualityReport(context.Background(), jobID, *report); err != nil && o.logger != nil {
					o.logger.Warn("failed to store quality report", "jobId", jobID, "error", err)
				}
			}
		}
	}

	entry.mu.Lock()
	entry.job.OutputPath = outputPath
	entry.mu.Unlock()

	o.setProgress(entry, ProgressDone, model.JobCompleted)
	return nil
}

// StartSweeper runs a background goroutine that purges terminal jobs older
// than retentionHours and expires stale user-choice sessions, once per
// hour, until ctx is cancelled.
func (o *Orchestrator) StartSweeper(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.sweepJobs()
				if o.choices != nil {
					if n, err := o.choices.ExpireSweep(ctx); err == nil && n > 0 && o.logger != nil {
						o.logger.Info("expired stale choice sessions", "count", n)
					}
				}
			}
		}
	}()
}

func (o *Orchestrator) sweepJobs() {
	cutoff := time.Now().UTC().Add(-time.Duration(o.retentionHours) * time.Hour)

	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	for id, entry := range o.jobs {
		entry.mu.Lock()
		terminal := entry.job.Status == model.JobCompleted || entry.job.Status == model.JobFailed
		stale := entry.job.LastUpdated.Before(cutoff)
		entry.mu.Unlock()
		if terminal && stale {
			delete(o.jobs, id)
		}
	}
}
