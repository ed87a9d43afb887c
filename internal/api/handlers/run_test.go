package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"sift/internal/models"
	"sift/internal/pipeline"
	"sift/internal/vectorindex"
)

// stallAdapter holds a run open until release is closed.
type stallAdapter struct {
	started chan struct{}
	release chan struct{}
}

func (s *stallAdapter) Name() string {
	return "stall"
}

func (s *stallAdapter) FetchItems(ctx context.Context, lookback time.Duration) ([]models.IngestedItem, error) {
	close(s.started)
	<-s.release
	return nil, nil
}

// stubEmbedder satisfies vectorindex.Embedder for runs that ingest nothing.
type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, 4), nil
}

func (stubEmbedder) Dimension() int {
	return 4
}

// waitForTerminal polls the registry until the job completes or fails.
func waitForTerminal(t *testing.T, jobs *pipeline.Jobs, id string) pipeline.Job {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := jobs.Get(id)
		if !ok {
			t.Fatalf("job %s not found", id)
		}
		if job.Status == pipeline.JobStatusCompleted || job.Status == pipeline.JobStatusFailed {
			return job
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("job %s never finished", id)
	return pipeline.Job{}
}

func TestTriggerRun(t *testing.T) {
	store := newTestStore(t)
	runner := newIdleRunner(t, store)
	jobs := pipeline.NewJobs()

	r := httptest.NewRequest(http.MethodPost, "/api/run", nil)
	w := httptest.NewRecorder()

	TriggerRun(runner, jobs).ServeHTTP(w, r)

	if w.Code != http.StatusAccepted {
		t.Fatalf("got status %d, want %d; body: %s", w.Code, http.StatusAccepted, w.Body.String())
	}

	var job pipeline.Job
	if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(job.ID) != 8 {
		t.Errorf("job ID = %q, want 8 characters", job.ID)
	}
	if job.StartedAt.IsZero() {
		t.Error("job StartedAt not set")
	}

	done := waitForTerminal(t, jobs, job.ID)
	if done.Status != pipeline.JobStatusCompleted {
		t.Errorf("job finished %q (%s), want %q", done.Status, done.Error, pipeline.JobStatusCompleted)
	}

	// An idle runner still produces (and stores) an empty digest.
	if _, err := store.LatestDigest(context.Background()); err != nil {
		t.Errorf("LatestDigest() after run: %v", err)
	}
}

func TestTriggerRunConflict(t *testing.T) {
	store := newTestStore(t)
	adapter := &stallAdapter{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	runner := pipeline.New(pipeline.Options{
		Store: store,
		Index: vectorindex.Open(t.TempDir(), stubEmbedder{}),
		Sources: []pipeline.Source{{
			Adapter:    adapter,
			Lookback:   time.Hour,
			Preference: models.PrefSourceHackerNews,
		}},
		DataDir: t.TempDir(),
	})
	jobs := pipeline.NewJobs()

	first := httptest.NewRecorder()
	TriggerRun(runner, jobs).ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/run", nil))
	if first.Code != http.StatusAccepted {
		t.Fatalf("first run got status %d, want %d", first.Code, http.StatusAccepted)
	}
	<-adapter.started

	second := httptest.NewRecorder()
	TriggerRun(runner, jobs).ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/run", nil))
	if second.Code != http.StatusConflict {
		t.Errorf("overlapping run got status %d, want %d", second.Code, http.StatusConflict)
	}

	close(adapter.release)

	var job pipeline.Job
	if err := json.NewDecoder(first.Body).Decode(&job); err != nil {
		t.Fatalf("decoding first response: %v", err)
	}
	done := waitForTerminal(t, jobs, job.ID)
	if done.Status != pipeline.JobStatusCompleted {
		t.Errorf("job finished %q (%s), want %q", done.Status, done.Error, pipeline.JobStatusCompleted)
	}
}

func TestTriggerRunInvalidJSON(t *testing.T) {
	store := newTestStore(t)
	runner := newIdleRunner(t, store)
	jobs := pipeline.NewJobs()

	r := httptest.NewRequest(http.MethodPost, "/api/run", bytes.NewBufferString("not json"))
	w := httptest.NewRecorder()

	TriggerRun(runner, jobs).ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}
	if len(jobs.List()) != 0 {
		t.Error("a job was created for a rejected request")
	}
}

func TestGetJob(t *testing.T) {
	jobs := pipeline.NewJobs()
	job := jobs.Start(context.Background(), func(ctx context.Context) error {
		return nil
	})
	waitForTerminal(t, jobs, job.ID)

	r := httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", job.ID)
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	GetJob(jobs).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	var got pipeline.Job
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.ID != job.ID {
		t.Errorf("job ID = %q, want %q", got.ID, job.ID)
	}
	if got.Status != pipeline.JobStatusCompleted {
		t.Errorf("job status = %q, want %q", got.Status, pipeline.JobStatusCompleted)
	}
}

func TestGetJobNotFound(t *testing.T) {
	jobs := pipeline.NewJobs()

	r := httptest.NewRequest(http.MethodGet, "/api/jobs/deadbeef", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "deadbeef")
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	GetJob(jobs).ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestListJobs(t *testing.T) {
	jobs := pipeline.NewJobs()
	job := jobs.Start(context.Background(), func(ctx context.Context) error {
		return nil
	})
	waitForTerminal(t, jobs, job.ID)

	r := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	w := httptest.NewRecorder()

	ListJobs(jobs).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	var got struct {
		Jobs []pipeline.Job `json:"jobs"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got.Jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(got.Jobs))
	}
	if got.Jobs[0].ID != job.ID {
		t.Errorf("job ID = %q, want %q", got.Jobs[0].ID, job.ID)
	}
}
