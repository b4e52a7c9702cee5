// Package storage mirrors job and quality-report state into Postgres so
// status queries survive a worker restart; the in-memory orchestrator map
// remains the source of truth while a job is running.
//
// Grounded on the teacher's internal/storage/postgres.go for the
// connection-pool tuning and UPSERT-by-id idiom, generalized from the
// fileprocess job/document-DNA schema to the translation job/quality-report
// schema.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/JAaron93/phenomenallayout/internal/model"
	"github.com/JAaron93/phenomenallayout/internal/quality"
)

// PostgresClient persists job and quality-report state.
type PostgresClient struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS translation_jobs (
	job_id          UUID PRIMARY KEY,
	status          TEXT NOT NULL,
	progress        INTEGER NOT NULL DEFAULT 0,
	source_path     TEXT NOT NULL,
	source_language TEXT NOT NULL,
	target_language TEXT NOT NULL,
	output_path     TEXT,
	error_message   TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS quality_reports (
	job_id                   UUID PRIMARY KEY REFERENCES translation_jobs(job_id),
	text_coverage_ratio      NUMERIC(6,4) NOT NULL,
	text_coverage_pass       BOOLEAN NOT NULL,
	layout_hash_similarity   NUMERIC(6,4) NOT NULL,
	layout_hash_pass         BOOLEAN NOT NULL,
	font_preservation_ratio  NUMERIC(6,4) NOT NULL,
	font_preservation_pass   BOOLEAN NOT NULL,
	overall_pass             BOOLEAN NOT NULL,
	created_at               TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// sanitizeConfidence rounds a ratio to 4 decimal places and clamps it to
// [0.0, 1.0] so PostgreSQL's NUMERIC(6,4) columns never reject an
// over-precise float64 (e.g. 0.9632000000000001).
func sanitizeConfidence(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return float64(int(v*10000+0.5)) / 10000
}

// NewPostgresClient opens a pooled connection and ensures the schema exists.
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// UpsertJob mirrors a job's current state. It implements
// orchestrator.PostgresMirror.
func (p *PostgresClient) UpsertJob(ctx context.Context, job model.Job) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	query := `
		INSERT INTO translation_jobs (
			job_id, status, progress, source_path, source_language, target_language,
			output_path, error_message, created_at, updated_at
		) VALUES ($1::uuid, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, NOW())
		ON CONFLICT (job_id) DO UPDATE SET
			status        = EXCLUDED.status,
			progress      = GREATEST(translation_jobs.progress, EXCLUDED.progress),
			output_path   = COALESCE(EXCLUDED.output_path, translation_jobs.output_path),
			error_message = COALESCE(EXCLUDED.error_message, translation_jobs.error_message),
			updated_at    = NOW()
	`

	_, err := p.db.ExecContext(ctx, query,
		job.JobID, string(job.Status), job.Progress, job.SourcePath,
		job.SourceLanguage, job.TargetLanguage, job.OutputPath, job.Error, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert job %s: %w", job.JobID, err)
	}
	return nil
}

// GetJob retrieves a mirrored job's last known state, used to recover
// status after a worker restart.
func (p *PostgresClient) GetJob(ctx context.Context, jobID string) (model.Job, error) {
	var job model.Job
	var status string
	var outputPath, errMsg sql.NullString
	var createdAt, updatedAt time.Time

	err := p.db.QueryRowContext(ctx, `
		SELECT job_id, status, progress, source_path, source_language, target_language,
			output_path, error_message, created_at, updated_at
		FROM translation_jobs WHERE job_id = $1::uuid
	`, jobID).Scan(
		&job.JobID, &status, &job.Progress, &job.SourcePath, &job.SourceLanguage, &job.TargetLanguage,
		&outputPath, &errMsg, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return model.Job{}, fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return model.Job{}, fmt.Errorf("failed to get job: %w", err)
	}

	job.Status = model.JobStatus(status)
	job.OutputPath = outputPath.String
	job.Error = errMsg.String
	job.CreatedAt = createdAt
	job.LastUpdated = updatedAt
	return job, nil
}

// StoreQualityReport persists a quality-validator verdict for a completed
// job.
func (p *PostgresClient) StoreQualityReport(ctx context.Context, jobID string, report quality.ReconstructionReport) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO quality_reports (
			job_id, text_coverage_ratio, text_coverage_pass,
			layout_hash_similarity, layout_hash_pass,
			font_preservation_ratio, font_preservation_pass, overall_pass
		) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (job_id) DO UPDATE SET
			text_coverage_ratio     = EXCLUDED.text_coverage_ratio,
			text_coverage_pass      = EXCLUDED.text_coverage_pass,
			layout_hash_similarity  = EXCLUDED.layout_hash_similarity,
			layout_hash_pass        = EXCLUDED.layout_hash_pass,
			font_preservation_ratio = EXCLUDED.font_preservation_ratio,
			font_preservation_pass  = EXCLUDED.font_preservation_pass,
			overall_pass            = EXCLUDED.overall_pass
	`, jobID,
		sanitizeConfidence(report.TextCoverageRatio), report.TextCoveragePass,
		sanitizeConfidence(report.LayoutHashSimilarity), report.LayoutHashPass,
		sanitizeConfidence(report.FontPreservationRatio), report.FontPreservationPass,
		report.Pass,
	)
	if err != nil {
		return fmt.Errorf("failed to store quality report for job %s: %w", jobID, err)
	}
	return nil
}

// Ping checks database connectivity.
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection.
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics.
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}
