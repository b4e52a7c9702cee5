package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/JAaron93/phenomenallayout/internal/apperr"
	"github.com/JAaron93/phenomenallayout/internal/logging"
	"github.com/JAaron93/phenomenallayout/internal/model"
	"github.com/JAaron93/phenomenallayout/internal/quality"
)

type fakeMirror struct {
	jobs    []model.Job
	reports []quality.ReconstructionReport
}

func (f *fakeMirror) UpsertJob(ctx context.Context, job model.Job) error {
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeMirror) StoreQualityReport(ctx context.Context, jobID string, report quality.ReconstructionReport) error {
	f.reports = append(f.reports, report)
	return nil
}

func newTestOrchestrator(mirror PostgresMirror) *Orchestrator {
	return New(Config{
		Logger:         logging.NewLoggerAt("test", "error"),
		Mirror:         mirror,
		OutputDir:      "/tmp",
		RetentionHours: 24,
	})
}

func TestSubmit_RegistersJobInQueuedState(t *testing.T) {
	o := newTestOrchestrator(nil)
	jobID := o.Submit("/tmp/in.pdf", "de", "en")

	job, err := o.Status(jobID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if job.Status != model.JobQueued {
		t.Fatalf("expected QUEUED, got %s", job.Status)
	}
	if job.Progress != 0 {
		t.Fatalf("expected progress 0, got %d", job.Progress)
	}
}

func TestStatus_UnknownJobReturnsNotFound(t *testing.T) {
	o := newTestOrchestrator(nil)
	if _, err := o.Status("does-not-exist"); err == nil {
		t.Fatalf("expected an error for an unknown job id")
	}
}

func TestResult_RunningJobReturnsInvalidInput(t *testing.T) {
	o := newTestOrchestrator(nil)
	jobID := o.Submit("/tmp/in.pdf", "de", "en")
	entry, err := o.lookup(jobID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	entry.mu.Lock()
	entry.job.Status = model.JobRunning
	entry.mu.Unlock()

	_, err = o.Result(jobID)
	pe, ok := err.(*apperr.PipelineError)
	if !ok || pe.Code != apperr.CodeInvalidInput {
		t.Fatalf("expected an INVALID_INPUT error for a running job, got %v", err)
	}
}

func TestResult_CompletedJobReturnsOutputPath(t *testing.T) {
	o := newTestOrchestrator(nil)
	jobID := o.Submit("/tmp/in.pdf", "de", "en")
	entry, err := o.lookup(jobID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	entry.mu.Lock()
	entry.job.Status = model.JobCompleted
	entry.job.OutputPath = "/tmp/out.pdf"
	entry.mu.Unlock()

	got, err := o.Result(jobID)
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	if got != "/tmp/out.pdf" {
		t.Fatalf("expected output path round-trip, got %q", got)
	}
}

func TestResult_FailedJobReturnsStoredError(t *testing.T) {
	o := newTestOrchestrator(nil)
	jobID := o.Submit("/tmp/in.pdf", "de", "en")
	entry, _ := o.lookup(jobID)
	entry.mu.Lock()
	entry.job.Status = model.JobFailed
	entry.job.Error = "rasterization failed"
	entry.mu.Unlock()

	if _, err := o.Result(jobID); err == nil {
		t.Fatalf("expected an error for a failed job")
	}
}

func TestSetProgress_IsMonotonicAndMirrored(t *testing.T) {
	mirror := &fakeMirror{}
	o := newTestOrchestrator(mirror)
	jobID := o.Submit("/tmp/in.pdf", "de", "en")
	entry, _ := o.lookup(jobID)

	o.setProgress(entry, ProgressRasterized, model.JobRunning)
	o.setProgress(entry, ProgressValidated, model.JobRunning) // lower value, must be ignored

	job, err := o.Status(jobID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if job.Progress != ProgressRasterized {
		t.Fatalf("expected progress to stay at %d, got %d", ProgressRasterized, job.Progress)
	}
	if len(mirror.jobs) != 2 {
		t.Fatalf("expected both setProgress calls to mirror, got %d", len(mirror.jobs))
	}
}

func TestCancel_InvokesStoredCancelFunc(t *testing.T) {
	o := newTestOrchestrator(nil)
	jobID := o.Submit("/tmp/in.pdf", "de", "en")
	entry, _ := o.lookup(jobID)

	called := false
	entry.mu.Lock()
	entry.cancel = func() { called = true }
	entry.mu.Unlock()

	if err := o.Cancel(jobID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if !called {
		t.Fatalf("expected the stored cancel func to be invoked")
	}
}

func TestSweepJobs_RemovesStaleTerminalJobsOnly(t *testing.T) {
	o := newTestOrchestrator(nil)
	staleDone := o.Submit("/tmp/a.pdf", "de", "en")
	freshDone := o.Submit("/tmp/b.pdf", "de", "en")
	staleRunning := o.Submit("/tmp/c.pdf", "de", "en")

	old := time.Now().UTC().Add(-48 * time.Hour)
	for id, status := range map[string]model.JobStatus{
		staleDone:    model.JobCompleted,
		freshDone:    model.JobCompleted,
		staleRunning: model.JobRunning,
	} {
		entry, _ := o.lookup(id)
		entry.mu.Lock()
		entry.job.Status = status
		if id == staleDone || id == staleRunning {
			entry.job.LastUpdated = old
		}
		entry.mu.Unlock()
	}

	o.sweepJobs()

	if _, err := o.Status(staleDone); err == nil {
		t.Fatalf("expected the stale completed job to be swept")
	}
	if _, err := o.Status(freshDone); err != nil {
		t.Fatalf("expected the fresh completed job to survive: %v", err)
	}
	if _, err := o.Status(staleRunning); err != nil {
		t.Fatalf("expected the stale but non-terminal job to survive: %v", err)
	}
}
