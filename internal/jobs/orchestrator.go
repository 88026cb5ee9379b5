package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eduscan/markscan/internal/omr"
)

// ErrQueueFull means the dispatch queue is at capacity; the caller should
// retry later rather than grow the backlog unboundedly.
var ErrQueueFull = errors.New("job queue is full")

// ErrOrchestratorClosed is returned by Dispatch after Close.
var ErrOrchestratorClosed = errors.New("orchestrator is closed")

// OrchestratorConfig sizes the worker pool.
type OrchestratorConfig struct {
	// Workers is the fixed pool size (0 = runtime.NumCPU()). Image
	// processing is CPU and memory heavy; the pool bounds concurrency.
	Workers int
	// QueueSize bounds the number of dispatched-but-unstarted jobs.
	QueueSize int
	// Timeout force-fails a job that runs too long.
	Timeout time.Duration
}

// DefaultOrchestratorConfig returns pool defaults.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Workers:   runtime.NumCPU(),
		QueueSize: 256,
		Timeout:   30 * time.Second,
	}
}

// Orchestrator owns job records and drives them through the pipeline on a
// fixed-size worker pool.
type Orchestrator struct {
	store    *Store
	pipeline *omr.Pipeline
	cfg      OrchestratorConfig

	queue  chan string
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	// mu guards closed so Dispatch never sends on a closed queue.
	mu     sync.Mutex
	closed bool

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewOrchestrator assembles an orchestrator; call Start before dispatching.
func NewOrchestrator(store *Store, pipeline *omr.Pipeline, cfg OrchestratorConfig) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		store:    store,
		pipeline: pipeline,
		cfg:      cfg,
		queue:    make(chan string, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the worker pool.
func (o *Orchestrator) Start() {
	o.startOnce.Do(func() {
		for range o.cfg.Workers {
			o.wg.Add(1)
			go o.worker()
		}
		slog.Info("job workers started", "workers", o.cfg.Workers, "queue_size", o.cfg.QueueSize)
	})
}

// Close stops accepting work, waits for in-flight jobs and shuts the pool
// down. In-flight jobs still land in a terminal state: cancellation is
// surfaced as a FAILED outcome.
func (o *Orchestrator) Close() {
	o.stopOnce.Do(func() {
		o.mu.Lock()
		o.closed = true
		close(o.queue)
		o.mu.Unlock()
		o.cancel()
		o.wg.Wait()
	})
}

// CreateJob allocates a PENDING job record and returns its id. It does not
// start processing.
func (o *Orchestrator) CreateJob(ctx context.Context, examID, imagePath, formType string) (string, error) {
	j := &Job{
		ID:        uuid.NewString(),
		ExamID:    examID,
		ImagePath: imagePath,
		FormType:  formType,
	}
	if err := o.store.Create(ctx, j); err != nil {
		return "", err
	}
	slog.Debug("job created", "job_id", j.ID, "exam_id", examID, "form_type", formType)
	return j.ID, nil
}

// Dispatch hands the job to the worker pool without blocking the caller.
// Returns ErrQueueFull when the bounded queue is at capacity and
// ErrOrchestratorClosed after Close.
func (o *Orchestrator) Dispatch(jobID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrOrchestratorClosed
	}
	select {
	case o.queue <- jobID:
		jobQueueDepth.Set(float64(len(o.queue)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Status returns the current job record.
func (o *Orchestrator) Status(ctx context.Context, jobID string) (*Job, error) {
	return o.store.Get(ctx, jobID)
}

// Process drives one job synchronously to a terminal state. Every started
// job ends COMPLETED or FAILED: pipeline shortfalls (alignment, identity,
// low confidence) complete the job with Success=false in the result, while
// ingestion errors, timeouts and internal faults fail it.
func (o *Orchestrator) Process(ctx context.Context, jobID string) error {
	// Store writes must land even when the run context is canceled, so the
	// job cannot be stranded in PROCESSING.
	storeCtx := context.WithoutCancel(ctx)

	j, err := o.store.Get(storeCtx, jobID)
	if err != nil {
		return err
	}
	if err := o.store.Transition(storeCtx, jobID, StatusPending, StatusProcessing, Update{}); err != nil {
		return err
	}

	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	result, perr := o.pipeline.Process(runCtx, j.ImagePath, j.FormType)
	jobProcessingDuration.Observe(time.Since(start).Seconds())

	if perr != nil {
		msg := perr.Error()
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			msg = fmt.Sprintf("processing timed out after %s", o.cfg.Timeout)
		case errors.Is(runCtx.Err(), context.Canceled):
			msg = "processing canceled"
		}
		if terr := o.store.Transition(storeCtx, jobID, StatusProcessing, StatusFailed,
			Update{ErrorMessage: msg}); terr != nil {
			return terr
		}
		jobsProcessedTotal.WithLabelValues(string(StatusFailed)).Inc()
		slog.Warn("job failed", "job_id", jobID, "err", msg)
		return nil
	}

	return o.complete(storeCtx, jobID, result)
}

// complete encodes the result and lands the job in COMPLETED. A result that
// cannot be encoded still reaches a terminal state: the job is FAILED with
// the encode error instead of sitting in PROCESSING forever.
func (o *Orchestrator) complete(ctx context.Context, jobID string, result *omr.Result) error {
	raw, err := result.Marshal()
	if err != nil {
		if terr := o.store.Transition(ctx, jobID, StatusProcessing, StatusFailed,
			Update{ErrorMessage: fmt.Sprintf("encoding result: %v", err)}); terr != nil {
			return terr
		}
		jobsProcessedTotal.WithLabelValues(string(StatusFailed)).Inc()
		slog.Error("job result encoding failed", "job_id", jobID, "err", err)
		return fmt.Errorf("encoding result for job %s: %w", jobID, err)
	}
	if err := o.store.Transition(ctx, jobID, StatusProcessing, StatusCompleted, Update{
		StudentNumber: result.StudentNumberDetected,
		Confidence:    result.ConfidenceScore,
		RawData:       raw,
	}); err != nil {
		return err
	}
	jobsProcessedTotal.WithLabelValues(string(StatusCompleted)).Inc()
	slog.Info("job completed",
		"job_id", jobID,
		"success", result.Success,
		"confidence", result.ConfidenceScore)
	return nil
}

func (o *Orchestrator) worker() {
	defer o.wg.Done()
	for jobID := range o.queue {
		jobQueueDepth.Set(float64(len(o.queue)))
		if err := o.Process(o.ctx, jobID); err != nil {
			slog.Error("job processing error", "job_id", jobID, "err", err)
		}
	}
}
