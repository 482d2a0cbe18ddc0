package batch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/presslate/internal/language"
	"horse.fit/presslate/internal/segment"
	"horse.fit/presslate/internal/translation"
	"horse.fit/presslate/internal/wordpress"
)

const (
	DefaultMaxRetries  = 3
	DefaultBackoffBase = 2 * time.Second
	DefaultMaxChunkLen = 4500

	excerptLimit = 160

	// Meta key carrying the language marker for multilingual plugins.
	languageMetaKey = "content_language"
)

// Translator is the chunk-level translation collaborator.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string, title bool) (string, error)
}

// Publisher hands a translated item to the content host.
type Publisher interface {
	Publish(ctx context.Context, item wordpress.NewItem) (int64, error)
}

// Options tunes one orchestrator.
type Options struct {
	MaxRetries  int           // retries per item after the initial attempt
	BackoffBase time.Duration // delay before retry n is BackoffBase·2^(n-1)
	MaxChunkLen int
	Observer    Observer
	Logger      zerolog.Logger
	// Sleep is the backoff wait. Tests inject a recording stub; nil uses a
	// timer honouring ctx and cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Orchestrator drives one batch run, one item at a time, in submission
// order. All run state is mutated only by the goroutine inside Run; the
// mutex exists so Snapshot can be read while the run is live.
type Orchestrator struct {
	translator Translator
	publisher  Publisher
	observer   Observer
	logger     zerolog.Logger
	sleep      func(ctx context.Context, d time.Duration) error

	maxRetries  int
	backoffBase time.Duration
	maxChunkLen int

	cancelled atomic.Bool

	mu       sync.Mutex
	state    State
	progress float64
	total    int
	results  []ItemResult
}

func New(translator Translator, publisher Publisher, opts Options) (*Orchestrator, error) {
	if translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}

	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	backoffBase := opts.BackoffBase
	if backoffBase <= 0 {
		backoffBase = DefaultBackoffBase
	}
	maxChunkLen := opts.MaxChunkLen
	if maxChunkLen <= 0 {
		maxChunkLen = DefaultMaxChunkLen
	}
	observer := opts.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	sleep := opts.Sleep

	o := &Orchestrator{
		translator:  translator,
		publisher:   publisher,
		observer:    observer,
		logger:      opts.Logger,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
		maxChunkLen: maxChunkLen,
		state:       StateIdle,
	}
	if sleep == nil {
		sleep = o.defaultSleep
	}
	o.sleep = sleep
	return o, nil
}

// Cancel requests cooperative cancellation: no new item or retry is
// dispatched once set. An in-flight provider call is not aborted; its result
// is discarded when it returns.
func (o *Orchestrator) Cancel() {
	o.cancelled.Store(true)
}

// Snapshot returns the current run state, progress, and tallies.
func (o *Orchestrator) Snapshot() Summary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.summaryLocked()
}

// Results returns the per-item terminal records recorded so far, in
// submission order.
func (o *Orchestrator) Results() []ItemResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]ItemResult, len(o.results))
	copy(out, o.results)
	return out
}

// Run processes items strictly sequentially: segment, translate chunk by
// chunk, restore, publish, with per-item retry and backoff. It returns the
// terminal summary. An error is returned only for precondition failures;
// individual item failures are recorded, not raised.
func (o *Orchestrator) Run(ctx context.Context, items []wordpress.Item, targetLang string) (Summary, error) {
	if o == nil {
		return Summary{}, fmt.Errorf("orchestrator is not initialized")
	}
	if len(items) == 0 {
		return Summary{}, fmt.Errorf("no items selected for translation")
	}
	lang := language.NormalizeCode(targetLang)
	if lang == "" {
		return Summary{}, fmt.Errorf("target language is required")
	}
	if !translation.IsSupportedLanguage(lang) {
		return Summary{}, fmt.Errorf("target language %q is not supported", targetLang)
	}

	o.mu.Lock()
	if o.state == StateRunning {
		o.mu.Unlock()
		return Summary{}, fmt.Errorf("a run is already in progress")
	}
	o.state = StateRunning
	o.progress = 0
	o.total = len(items)
	o.results = o.results[:0]
	o.mu.Unlock()

	for index, item := range items {
		if o.isCancelled(ctx) {
			return o.finish(StateAborted), nil
		}

		result := o.processItem(ctx, item, lang, index)
		if result.Status != ItemDone && result.Status != ItemFailed {
			// Cancellation interrupted the item; nothing is recorded for it.
			return o.finish(StateAborted), nil
		}

		o.mu.Lock()
		o.results = append(o.results, result)
		o.progress = maxProgress(o.progress, float64(len(o.results))/float64(o.total)*100)
		o.mu.Unlock()

		o.observer.ItemResolved(result)
	}

	return o.finish(StateCompleted), nil
}

// processItem runs the retry loop for one item. The returned status is
// ItemDone, ItemFailed, or ItemPending when cancellation interrupted the
// attempt.
func (o *Orchestrator) processItem(ctx context.Context, item wordpress.Item, lang string, index int) ItemResult {
	var lastErr error
	for attempt := 1; attempt <= o.maxRetries+1; attempt++ {
		title, publishedID, err := o.attemptItem(ctx, item, lang, index)
		if o.isCancelled(ctx) {
			// Result of the in-flight attempt is discarded.
			return ItemResult{ItemID: item.ID, Status: ItemPending, Attempts: attempt, Err: ErrCancelled}
		}
		if err == nil {
			return ItemResult{
				ItemID:          item.ID,
				Status:          ItemDone,
				Attempts:        attempt,
				TranslatedTitle: title,
				PublishedID:     publishedID,
				ResolvedAt:      time.Now().UTC(),
			}
		}

		lastErr = err
		o.logger.Warn().
			Err(err).
			Int64("item_id", item.ID).
			Int("attempt", attempt).
			Str("target_lang", lang).
			Msg("item attempt failed")

		if attempt > o.maxRetries {
			break
		}
		delay := o.backoffBase * (1 << (attempt - 1))
		if err := o.sleep(ctx, delay); err != nil {
			return ItemResult{ItemID: item.ID, Status: ItemPending, Attempts: attempt, Err: ErrCancelled}
		}
		if o.isCancelled(ctx) {
			return ItemResult{ItemID: item.ID, Status: ItemPending, Attempts: attempt, Err: ErrCancelled}
		}
	}

	return ItemResult{
		ItemID:     item.ID,
		Status:     ItemFailed,
		Attempts:   o.maxRetries + 1,
		Err:        lastErr,
		ErrMessage: errMessage(lastErr),
		ResolvedAt: time.Now().UTC(),
	}
}

// attemptItem performs one full translate+publish pass over an item. A
// retried item starts from scratch; chunk-level partial progress is not
// carried across attempts.
func (o *Orchestrator) attemptItem(ctx context.Context, item wordpress.Item, lang string, index int) (string, int64, error) {
	stripped, placeholders := segment.ExtractStructural(item.Body)
	chunks := segment.SplitChunks(stripped, o.maxChunkLen)

	// Title and the final publish count as units alongside the body chunks,
	// so a live item never reports a full fraction before it resolves.
	unitTotal := 1 + len(chunks) + 1
	unitsDone := 0
	o.publishProgress(item, index, unitsDone, unitTotal, ItemTranslating)

	translatedTitle, err := o.translator.Translate(ctx, item.Title, lang, true)
	if err != nil {
		return "", 0, fmt.Errorf("translate title of item %d: %w", item.ID, err)
	}
	if o.isCancelled(ctx) {
		return "", 0, ErrCancelled
	}
	unitsDone++
	o.publishProgress(item, index, unitsDone, unitTotal, ItemTranslating)

	translatedChunks := make([]string, 0, len(chunks))
	for chunkIndex, chunk := range chunks {
		translated, err := o.translator.Translate(ctx, chunk, lang, false)
		if err != nil {
			return "", 0, fmt.Errorf("translate chunk %d/%d of item %d: %w", chunkIndex+1, len(chunks), item.ID, err)
		}
		if o.isCancelled(ctx) {
			return "", 0, ErrCancelled
		}
		translatedChunks = append(translatedChunks, translated)
		unitsDone++
		o.publishProgress(item, index, unitsDone, unitTotal, ItemTranslating)
	}

	translatedBody, missing := segment.RestoreStructural(segment.JoinChunks(translatedChunks), placeholders)
	if len(missing) > 0 {
		o.logger.Warn().
			Int64("item_id", item.ID).
			Strs("tokens", missing).
			Msg("placeholder tokens lost in translation")
	}

	o.publishProgress(item, index, unitsDone, unitTotal, ItemPublishing)

	newItem := wordpress.NewItem{
		Title:         translatedTitle,
		Body:          translatedBody,
		Slug:          wordpress.TranslatedSlug(item.Slug, lang),
		Excerpt:       segment.Excerpt(translatedBody, excerptLimit),
		Categories:    item.Categories,
		Tags:          item.Tags,
		FeaturedMedia: item.FeaturedMedia,
		Meta:          metaWithLanguage(item.Meta, lang),
	}
	publishedID, err := o.publisher.Publish(ctx, newItem)
	if err != nil {
		return "", 0, fmt.Errorf("publish item %d: %w", item.ID, err)
	}
	if o.isCancelled(ctx) {
		return "", 0, ErrCancelled
	}
	return translatedTitle, publishedID, nil
}

func (o *Orchestrator) publishProgress(item wordpress.Item, index, unitsDone, unitTotal int, status ItemStatus) {
	fraction := 0.0
	if unitTotal > 0 {
		fraction = float64(unitsDone) / float64(unitTotal)
	}

	o.mu.Lock()
	percent := (float64(len(o.results)) + fraction) / float64(o.total) * 100
	o.progress = maxProgress(o.progress, percent)
	percent = o.progress
	o.mu.Unlock()

	o.observer.Progress(ProgressEvent{
		Percent:    percent,
		ItemID:     item.ID,
		ItemIndex:  index,
		TotalItems: o.total,
		UnitsDone:  unitsDone,
		UnitTotal:  unitTotal,
		ItemStatus: status,
	})
}

func (o *Orchestrator) finish(terminal State) Summary {
	o.mu.Lock()
	o.state = terminal
	if terminal == StateCompleted {
		// 100 is reached only on completion, never on abort.
		o.progress = 100
	}
	summary := o.summaryLocked()
	o.mu.Unlock()

	o.observer.RunFinished(summary)
	o.logger.Info().
		Str("state", string(terminal)).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("batch run finished")
	return summary
}

func (o *Orchestrator) summaryLocked() Summary {
	succeeded, failed := 0, 0
	for _, result := range o.results {
		switch result.Status {
		case ItemDone:
			succeeded++
		case ItemFailed:
			failed++
		}
	}
	return Summary{
		State:     o.state,
		Total:     o.total,
		Succeeded: succeeded,
		Failed:    failed,
		Progress:  o.progress,
	}
}

func (o *Orchestrator) isCancelled(ctx context.Context) bool {
	return o.cancelled.Load() || ctx.Err() != nil
}

func (o *Orchestrator) defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	// Poll the cancellation flag so a cancel request cuts the backoff short.
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case <-ticker.C:
			if o.cancelled.Load() {
				return ErrCancelled
			}
		}
	}
}

func metaWithLanguage(meta map[string]any, lang string) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for key, value := range meta {
		out[key] = value
	}
	out[languageMetaKey] = strings.ToLower(lang)
	return out
}

func maxProgress(current, candidate float64) float64 {
	if candidate > current {
		return candidate
	}
	return current
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
