package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a background pipeline run.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is an observable handle for one background run. Callers receive
// value snapshots; the registry owns the mutable record.
type Job struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Jobs tracks background runs in memory. Jobs live for the process lifetime;
// there is no persistence and no eviction, which is fine for a pipeline that
// runs a handful of times a day.
type Jobs struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobs creates an empty job registry.
func NewJobs() *Jobs {
	return &Jobs{jobs: make(map[string]*Job)}
}

// Start runs fn in a background goroutine tracked by a job handle and
// returns a snapshot of the pending job. The goroutine outlives the caller's
// context: cancellation is stripped so an HTTP trigger returning early does
// not kill the run. Panics inside fn are captured as job failures.
func (js *Jobs) Start(ctx context.Context, fn func(context.Context) error) Job {
	job := &Job{
		ID:        uuid.New().String()[:8],
		Status:    JobStatusPending,
		StartedAt: time.Now(),
	}

	js.mu.Lock()
	js.jobs[job.ID] = job
	snapshot := *job
	js.mu.Unlock()

	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				js.finish(job.ID, fmt.Errorf("internal panic: %v", r))
			}
		}()

		js.setRunning(job.ID)
		js.finish(job.ID, fn(runCtx))
	}()

	slog.Info("job started", "job_id", job.ID)
	return snapshot
}

// Get returns a snapshot of the job with the given ID.
func (js *Jobs) Get(id string) (Job, bool) {
	js.mu.RLock()
	defer js.mu.RUnlock()

	job, ok := js.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns snapshots of all jobs, most recent first.
func (js *Jobs) List() []Job {
	js.mu.RLock()
	defer js.mu.RUnlock()

	jobs := make([]Job, 0, len(js.jobs))
	for _, job := range js.jobs {
		jobs = append(jobs, *job)
	}

	slices.SortFunc(jobs, func(a, b Job) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return jobs
}

func (js *Jobs) setRunning(id string) {
	js.mu.Lock()
	defer js.mu.Unlock()

	if job, ok := js.jobs[id]; ok {
		job.Status = JobStatusRunning
	}
}

func (js *Jobs) finish(id string, err error) {
	js.mu.Lock()
	job, ok := js.jobs[id]
	if ok {
		now := time.Now()
		job.CompletedAt = &now
		if err != nil {
			job.Status = JobStatusFailed
			job.Error = err.Error()
		} else {
			job.Status = JobStatusCompleted
		}
	}
	js.mu.Unlock()

	if !ok {
		return
	}
	if err != nil {
		slog.Error("job failed", "job_id", id, "error", err)
	} else {
		slog.Info("job completed", "job_id", id)
	}
}
