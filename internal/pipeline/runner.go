// Package pipeline orchestrates sift's two phases. Ingestion pulls items
// from the enabled source adapters, drops duplicates against the vector
// index, prefilters for relevance, and persists what survives. Generation
// evaluates the stored pool with every active persona, assigns each accepted
// item to exactly one of them, and renders, stores, and delivers the digest.
package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sift/internal/ai"
	"sift/internal/config"
	"sift/internal/delivery"
	"sift/internal/digest"
	"sift/internal/embedding"
	"sift/internal/evaluator"
	"sift/internal/models"
	"sift/internal/prefilter"
	"sift/internal/sources"
	"sift/internal/storage"
	"sift/internal/vectorindex"
)

const (
	// candidatePoolSize bounds how many stored items generation considers.
	candidatePoolSize = 1000
	// perSourceCap keeps any single source family from flooding the pool.
	perSourceCap = 50
	// batchSize is how many items share one evaluation prompt.
	batchSize = 12
	// maxConcurrent caps in-flight persona/batch evaluations.
	maxConcurrent = 4
)

// digestSubject is the delivery subject line for every digest.
const digestSubject = "Daily AI Intelligence Digest"

// databaseFile is the SQLite file name under the data directory.
const databaseFile = "intelligence.db"

// ErrAlreadyRunning is returned when a run is triggered while another is
// still in flight.
var ErrAlreadyRunning = errors.New("pipeline run already in progress")

// Embedder produces the vector for a single text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// TextGenerator is the LLM surface the digest summary needs.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Source pairs an adapter with its lookback window and the preference key
// that toggles it at run time.
type Source struct {
	Adapter    sources.Adapter
	Lookback   time.Duration
	Preference string
}

// Delivery pairs a channel with the preference key that toggles it.
type Delivery struct {
	Channel    delivery.Channel
	Preference string
}

// Status reports whether a run is in flight and since when.
type Status struct {
	Running bool      `json:"running"`
	Since   time.Time `json:"since"`
}

// Options carries a Runner's collaborators. Tests inject fakes here;
// production wiring comes from NewFromConfig.
type Options struct {
	Store      *storage.Store
	Index      *vectorindex.Index
	Embedder   Embedder
	Prefilter  *prefilter.Prefilter
	Evaluators []*evaluator.Evaluator
	LLM        TextGenerator
	Sources    []Source
	Deliveries []Delivery
	DataDir    string
}

// Runner executes ingestion and generation. At most one run is in flight at
// a time; concurrent triggers get ErrAlreadyRunning.
type Runner struct {
	store      *storage.Store
	index      *vectorindex.Index
	embedder   Embedder
	prefilter  *prefilter.Prefilter
	evaluators []*evaluator.Evaluator
	llm        TextGenerator
	sources    []Source
	deliveries []Delivery
	dataDir    string

	// db is set only when the Runner opened the database itself.
	db *sql.DB

	mu      sync.Mutex
	running bool
	since   time.Time
}

// New creates a Runner from pre-built collaborators.
func New(opts Options) *Runner {
	return &Runner{
		store:      opts.Store,
		index:      opts.Index,
		embedder:   opts.Embedder,
		prefilter:  opts.Prefilter,
		evaluators: opts.Evaluators,
		llm:        opts.LLM,
		sources:    opts.Sources,
		deliveries: opts.Deliveries,
		dataDir:    opts.DataDir,
	}
}

// NewFromConfig wires a Runner from the loaded configuration: the SQLite
// store and vector index sidecars under dataDir, the embedding provider,
// the LLM client, the prefilter, one evaluator per persona, the three
// source adapters, and whichever delivery channels the config enables.
func NewFromConfig(cfg *config.Config, dataDir string) (*Runner, error) {
	db, err := storage.OpenDatabase(filepath.Join(dataDir, databaseFile))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := storage.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	llm, err := ai.New(cfg.LLM)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing llm client: %w", err)
	}

	embedder := embedding.New(cfg.LLM, cfg.Embedding)
	index := vectorindex.Open(dataDir, embedder)

	pf := prefilter.New(embedder, prefilter.DefaultAnchors(),
		float32(cfg.Filters.PrefilterThreshold), cfg.Filters.HighEngagementThreshold)

	var evaluators []*evaluator.Evaluator
	for _, persona := range evaluator.Personas() {
		evaluators = append(evaluators, evaluator.New(persona, embedder, llm, cfg.Filters.SemanticThreshold))
	}

	srcs := []Source{
		{
			Adapter:    sources.NewHackerNews(cfg.Sources.ExtractContent),
			Lookback:   time.Duration(cfg.Sources.HNLookbackHours) * time.Hour,
			Preference: models.PrefSourceHackerNews,
		},
		{
			Adapter:    sources.NewRSS(cfg.Sources.RSSFeeds),
			Lookback:   time.Duration(cfg.Sources.RSSLookbackHours) * time.Hour,
			Preference: models.PrefSourceRSS,
		},
		{
			Adapter:    sources.NewReddit(cfg.Sources.Subreddits),
			Lookback:   time.Duration(cfg.Sources.RedditLookbackHours) * time.Hour,
			Preference: models.PrefSourceReddit,
		},
	}

	var deliveries []Delivery
	if cfg.Email.Enabled {
		deliveries = append(deliveries, Delivery{
			Channel:    delivery.NewEmail(cfg.Email),
			Preference: models.PrefDeliveryEmail,
		})
	}
	if cfg.Telegram.Enabled {
		deliveries = append(deliveries, Delivery{
			Channel:    delivery.NewTelegram(cfg.Telegram),
			Preference: models.PrefDeliveryTelegram,
		})
	}

	r := New(Options{
		Store:      storage.NewStore(db),
		Index:      index,
		Embedder:   embedder,
		Prefilter:  pf,
		Evaluators: evaluators,
		LLM:        llm,
		Sources:    srcs,
		Deliveries: deliveries,
		DataDir:    dataDir,
	})
	r.db = db
	return r, nil
}

// Store exposes the backing store for the HTTP handlers.
func (r *Runner) Store() *storage.Store {
	return r.store
}

// Close releases the database handle when the Runner owns one.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Status reports the current run state.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{Running: r.running, Since: r.since}
}

func (r *Runner) begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrAlreadyRunning
	}
	r.running = true
	r.since = time.Now().UTC()
	return nil
}

func (r *Runner) end() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

// Run executes a full cycle: ingestion followed by digest generation.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.begin(); err != nil {
		return err
	}
	defer r.end()

	if err := r.ingest(ctx); err != nil {
		return err
	}
	return r.generate(ctx)
}

// RunIngestion fetches and stores new items without generating a digest.
func (r *Runner) RunIngestion(ctx context.Context) error {
	if err := r.begin(); err != nil {
		return err
	}
	defer r.end()
	return r.ingest(ctx)
}

// RunGeneration builds and delivers a digest from already-stored items.
func (r *Runner) RunGeneration(ctx context.Context) error {
	if err := r.begin(); err != nil {
		return err
	}
	defer r.end()
	return r.generate(ctx)
}

// ingest fetches from every enabled source and persists what survives the
// duplicate and relevance gates. Embedding failures abort the run; a failed
// item save is logged and skipped.
func (r *Runner) ingest(ctx context.Context) error {
	started := time.Now()
	slog.Info("ingestion started")

	feeds, err := r.enabledFeeds(ctx)
	if err != nil {
		return err
	}
	if len(feeds) == 0 {
		slog.Warn("ingestion skipped, all sources disabled")
		return nil
	}

	result, err := sources.FetchAll(ctx, feeds)
	if err != nil {
		return fmt.Errorf("fetching sources: %w", err)
	}
	for _, failed := range result.Failed {
		slog.Warn("source failed", "source", failed.Source, "error", failed.Error)
	}

	var saved, duplicates, irrelevant int
	seen := make(map[string]struct{}, len(result.Items))

	for i := range result.Items {
		item := &result.Items[i]

		key := item.DedupKey()
		if _, ok := seen[key]; ok {
			duplicates++
			continue
		}
		seen[key] = struct{}{}

		if r.index.HasID(item.ID) {
			duplicates++
			continue
		}

		vec, err := r.embedder.Embed(ctx, item.EmbedText())
		if err != nil {
			return fmt.Errorf("embedding %q: %w", item.Title, err)
		}
		item.Embedding = vec

		if r.index.IsDuplicateVector(vec, vectorindex.DefaultDuplicateThreshold) {
			slog.Debug("semantic duplicate", "title", item.Title)
			duplicates++
			continue
		}

		relevant, err := r.prefilter.IsRelevant(ctx, item)
		if err != nil {
			return fmt.Errorf("prefiltering %q: %w", item.Title, err)
		}
		if !relevant {
			irrelevant++
			continue
		}

		inserted, err := r.store.SaveItem(ctx, item)
		if err != nil {
			slog.Error("saving item", "title", item.Title, "error", err)
			continue
		}
		if !inserted {
			duplicates++
			continue
		}
		if err := r.index.AddVector(item.ID, vec); err != nil {
			slog.Warn("indexing item", "title", item.Title, "error", err)
		}
		saved++
	}

	if err := r.index.Save(); err != nil {
		slog.Error("persisting vector index", "error", err)
	}

	slog.Info("ingestion complete",
		"fetched", len(result.Items),
		"saved", saved,
		"duplicates", duplicates,
		"irrelevant", irrelevant,
		"elapsed", time.Since(started).Round(time.Millisecond))
	return nil
}

// enabledFeeds resolves the source preference toggles against the store.
func (r *Runner) enabledFeeds(ctx context.Context) ([]sources.Feed, error) {
	var feeds []sources.Feed
	for _, src := range r.sources {
		enabled, err := r.store.BoolPreference(ctx, src.Preference)
		if err != nil {
			return nil, fmt.Errorf("reading preference %s: %w", src.Preference, err)
		}
		if !enabled {
			slog.Info("source disabled by preference", "source", src.Adapter.Name())
			continue
		}
		feeds = append(feeds, sources.Feed{Adapter: src.Adapter, Lookback: src.Lookback})
	}
	return feeds, nil
}

// generate evaluates the stored candidate pool, assigns accepted items to
// personas, and renders, stores, and delivers the digest. A failed digest
// insert aborts the run; failed evaluation inserts and failed deliveries
// are logged and skipped.
func (r *Runner) generate(ctx context.Context) error {
	started := time.Now()
	slog.Info("digest generation started")

	items, err := r.store.RecentItems(ctx, candidatePoolSize)
	if err != nil {
		return fmt.Errorf("loading recent items: %w", err)
	}

	pool, err := r.candidatePool(ctx, items)
	if err != nil {
		return err
	}
	slog.Info("candidate pool built", "candidates", len(pool), "stored", len(items))

	active, err := r.activeEvaluators(ctx)
	if err != nil {
		return err
	}

	personas := make([]evaluator.Persona, 0, len(active))
	personaOrder := make([]string, 0, len(active))
	for _, ev := range active {
		personas = append(personas, ev.Persona())
		personaOrder = append(personaOrder, ev.Persona().Name)
	}

	outcomes := r.evaluatePool(ctx, active, pool)
	assigned := digest.Assign(outcomes, personaOrder)
	summary := digest.BuildSummary(ctx, r.llm, assigned, personaOrder)

	now := time.Now().UTC()
	doc := digest.BuildDocument(personas, assigned, summary, now)
	markdown := digest.Render(doc)

	path := filepath.Join(r.dataDir, "digest_"+now.Format("2006-01-02")+".md")
	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
		slog.Error("writing digest file", "path", path, "error", err)
	} else {
		slog.Info("digest written", "path", path)
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding digest document: %w", err)
	}
	id, err := r.store.SaveDigest(ctx, &models.Digest{
		GeneratedOn:     now.Format("2006-01-02"),
		Summary:         summary,
		ContentMarkdown: markdown,
		ContentJSON:     string(docJSON),
	})
	if err != nil {
		return fmt.Errorf("saving digest: %w", err)
	}

	r.saveEvaluations(ctx, assigned)
	r.deliver(ctx, markdown)

	total := 0
	for _, selections := range assigned {
		total += len(selections)
	}
	slog.Info("digest generation complete",
		"digest_id", id,
		"personas", len(personaOrder),
		"items", total,
		"elapsed", time.Since(started).Round(time.Millisecond))
	return nil
}

// candidatePool narrows stored items to what the evaluators will see:
// disabled source families drop out, each remaining family keeps its top
// perSourceCap items by raw score, and near-identical titles collapse to
// the first occurrence. Families without a preference key pass through.
func (r *Runner) candidatePool(ctx context.Context, items []models.IngestedItem) ([]models.IngestedItem, error) {
	prefs := map[string]string{
		"HackerNews": models.PrefSourceHackerNews,
		"Reddit":     models.PrefSourceReddit,
		"RSS":        models.PrefSourceRSS,
	}
	enabled := make(map[string]bool, len(prefs))
	for family, key := range prefs {
		on, err := r.store.BoolPreference(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("reading preference %s: %w", key, err)
		}
		enabled[family] = on
	}

	bySource := make(map[string][]models.IngestedItem)
	var familyOrder []string
	for _, item := range items {
		family := item.SourceKey()
		if on, known := enabled[family]; known && !on {
			continue
		}
		if _, ok := bySource[family]; !ok {
			familyOrder = append(familyOrder, family)
		}
		bySource[family] = append(bySource[family], item)
	}

	var pool []models.IngestedItem
	for _, family := range familyOrder {
		group := bySource[family]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].RawScore > group[j].RawScore
		})
		if len(group) > perSourceCap {
			group = group[:perSourceCap]
		}
		pool = append(pool, group...)
	}

	titles := make(map[string]struct{}, len(pool))
	deduped := pool[:0]
	for _, item := range pool {
		key := models.NormalizeTitle(item.Title)
		if _, ok := titles[key]; ok {
			continue
		}
		titles[key] = struct{}{}
		deduped = append(deduped, item)
	}
	return deduped, nil
}

// activeEvaluators resolves the persona preference toggles against the store.
func (r *Runner) activeEvaluators(ctx context.Context) ([]*evaluator.Evaluator, error) {
	var active []*evaluator.Evaluator
	for _, ev := range r.evaluators {
		on, err := r.store.BoolPreference(ctx, ev.Persona().Preference)
		if err != nil {
			return nil, fmt.Errorf("reading preference %s: %w", ev.Persona().Preference, err)
		}
		if !on {
			slog.Info("persona disabled by preference", "persona", ev.Persona().Name)
			continue
		}
		active = append(active, ev)
	}
	return active, nil
}

// evaluatePool fans candidate batches out across every active persona. A
// failed batch contributes an empty outcome so one bad LLM response never
// sinks the rest of the run.
func (r *Runner) evaluatePool(ctx context.Context, active []*evaluator.Evaluator, pool []models.IngestedItem) []digest.PersonaOutcome {
	var batches [][]models.IngestedItem
	for start := 0; start < len(pool); start += batchSize {
		end := start + batchSize
		if end > len(pool) {
			end = len(pool)
		}
		batches = append(batches, pool[start:end])
	}

	var (
		mu       sync.Mutex
		outcomes []digest.PersonaOutcome
	)
	var g errgroup.Group
	g.SetLimit(maxConcurrent)
	for _, ev := range active {
		for _, batch := range batches {
			g.Go(func() error {
				results, err := ev.EvaluateBatch(ctx, batch)
				if err != nil {
					slog.Error("batch evaluation failed",
						"persona", ev.Persona().Name, "items", len(batch), "error", err)
					results = nil
				}
				mu.Lock()
				outcomes = append(outcomes, digest.PersonaOutcome{
					Persona: ev.Persona().Name,
					Items:   batch,
					Results: results,
				})
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait() // tasks always return nil

	return outcomes
}

// saveEvaluations records each winning selection. The digest row already
// exists at this point, so failures are logged and skipped.
func (r *Runner) saveEvaluations(ctx context.Context, assigned map[string][]digest.Selection) {
	for _, selections := range assigned {
		for _, sel := range selections {
			if err := r.store.SaveEvaluation(ctx, &sel.Result); err != nil {
				slog.Warn("saving evaluation", "item_id", sel.Result.ItemID, "error", err)
			}
		}
	}
}

// deliver sends the rendered digest over every enabled channel. A failing
// channel is logged and never fails the run.
func (r *Runner) deliver(ctx context.Context, body string) {
	for _, d := range r.deliveries {
		enabled, err := r.store.BoolPreference(ctx, d.Preference)
		if err != nil {
			slog.Warn("reading preference", "key", d.Preference, "error", err)
			continue
		}
		if !enabled {
			slog.Info("delivery disabled by preference", "channel", d.Channel.Name())
			continue
		}
		if err := d.Channel.Send(ctx, digestSubject, body); err != nil {
			slog.Error("delivery failed", "channel", d.Channel.Name(), "error", err)
		}
	}
}
