// Package queue wires the Job Orchestrator (C11) to a Redis-backed asynq
// task queue: a producer enqueues a translation job payload, one consumer
// per worker process pops jobs and drives them through the orchestrator.
//
// Grounded on the teacher's internal/queue/consumer.go for the asynq
// server/mux/retry-delay setup, generalized from a single
// "process-document" task type to this domain's "translate-pdf" task.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/JAaron93/phenomenallayout/internal/logging"
	"github.com/JAaron93/phenomenallayout/internal/orchestrator"
)

// TaskTranslatePDF is the asynq task type name for a document translation
// job.
const TaskTranslatePDF = "translate-pdf"

// TranslationJobData is the payload carried on the queue for one
// translation job.
type TranslationJobData struct {
	JobID          string `json:"jobId"`
	SourcePath     string `json:"sourcePath"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
}

// Consumer pops translate-pdf tasks and drives them through the
// orchestrator.
type Consumer struct {
	client       *asynq.Client
	server       *asynq.Server
	mux          *asynq.ServeMux
	orchestrator *orchestrator.Orchestrator
	logger       *logging.Logger
	config       Config
}

// Config holds consumer configuration.
type Config struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	ProcessingTimeout time.Duration
}

// NewConsumer creates a queue consumer bound to orch.
func NewConsumer(cfg Config, orch *orchestrator.Orchestrator, logger *logging.Logger) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		cfg.QueueName = "translate"
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = 5 * time.Minute
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task processing error", "type", task.Type(), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		client:       client,
		server:       server,
		mux:          mux,
		orchestrator: orch,
		logger:       logger,
		config:       cfg,
	}

	mux.HandleFunc(TaskTranslatePDF, consumer.handleTranslatePDF)

	return consumer, nil
}

// Enqueue submits a translation job payload to the queue.
func (c *Consumer) Enqueue(ctx context.Context, data TranslationJobData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}
	task := asynq.NewTask(TaskTranslatePDF, payload)
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.config.QueueName))
	return err
}

// Start runs the queue server in the background.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting queue consumer", "concurrency", c.config.Concurrency, "queue", c.config.QueueName)
	go func() {
		if err := c.server.Run(c.mux); err != nil {
			c.logger.Error("queue consumer exited", "error", err)
		}
	}()
	return nil
}

// Stop shuts the consumer down gracefully.
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.Info("stopping queue consumer")
	c.server.Shutdown()
	return c.client.Close()
}

func (c *Consumer) handleTranslatePDF(ctx context.Context, task *asynq.Task) error {
	start := time.Now()

	var data TranslationJobData
	if err := json.Unmarshal(task.Payload(), &data); err != nil {
		return fmt.Errorf("unmarshal job payload: %w", err)
	}

	c.logger.Info("processing translation job", "jobId", data.JobID, "source", data.SourcePath)

	// The job may reach this handler only as a dequeued payload, with no
	// prior Submit call in this process — register it (a no-op when it is
	// already registered) before driving it through the pipeline, or Run's
	// lookup fails with NOT_FOUND.
	c.orchestrator.RegisterFromQueue(data.JobID, data.SourcePath, data.SourceLanguage, data.TargetLanguage)

	runCtx, cancel := context.WithTimeout(ctx, c.config.ProcessingTimeout)
	defer cancel()

	err := c.orchestrator.Run(runCtx, data.JobID)
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("translation job failed", "jobId", data.JobID, "duration", duration, "error", err)
		return fmt.Errorf("translation job %s failed: %w", data.JobID, err)
	}

	c.logger.Info("translation job completed", "jobId", data.JobID, "duration", duration)
	return nil
}
