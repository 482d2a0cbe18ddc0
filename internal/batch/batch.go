// Package batch sequences content items through translate and publish with
// per-item retry, progress reporting, and cooperative cancellation.
package batch

import (
	"fmt"
	"time"
)

// State is the lifecycle of one batch run.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

// ItemStatus is the per-item sub-state.
type ItemStatus string

const (
	ItemPending     ItemStatus = "pending"
	ItemTranslating ItemStatus = "translating"
	ItemPublishing  ItemStatus = "publishing"
	ItemDone        ItemStatus = "done"
	ItemFailed      ItemStatus = "failed"
)

// ItemResult is the terminal record for one item.
type ItemResult struct {
	ItemID          int64      `json:"item_id"`
	Status          ItemStatus `json:"status"`
	Attempts        int        `json:"attempts"`
	TranslatedTitle string     `json:"translated_title,omitempty"`
	PublishedID     int64      `json:"published_id,omitempty"`
	Err             error      `json:"-"`
	ErrMessage      string     `json:"error,omitempty"`
	ResolvedAt      time.Time  `json:"resolved_at"`
}

// ProgressEvent reports fractional run progress while translating.
type ProgressEvent struct {
	Percent    float64    `json:"percent"`
	ItemID     int64      `json:"item_id"`
	ItemIndex  int        `json:"item_index"`
	TotalItems int        `json:"total_items"`
	UnitsDone  int        `json:"units_done"`
	UnitTotal  int        `json:"unit_total"`
	ItemStatus ItemStatus `json:"item_status"`
}

// Summary is the terminal tally of a run.
type Summary struct {
	State     State   `json:"state"`
	Total     int     `json:"total"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
	Progress  float64 `json:"progress"`
}

// Observer receives run events as they resolve. Implementations must not
// block: events are published from the orchestrator's single worker.
type Observer interface {
	Progress(ProgressEvent)
	ItemResolved(ItemResult)
	RunFinished(Summary)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) Progress(ProgressEvent)  {}
func (NopObserver) ItemResolved(ItemResult) {}
func (NopObserver) RunFinished(Summary)     {}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) Progress(e ProgressEvent) {
	for _, o := range m {
		o.Progress(e)
	}
}

func (m MultiObserver) ItemResolved(r ItemResult) {
	for _, o := range m {
		o.ItemResolved(r)
	}
}

func (m MultiObserver) RunFinished(s Summary) {
	for _, o := range m {
		o.RunFinished(s)
	}
}

// ErrCancelled is recorded for items interrupted by cancellation.
var ErrCancelled = fmt.Errorf("run cancelled")
