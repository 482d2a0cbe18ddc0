// Package store persists terminal run and item records to Postgres.
// Persistence is optional: a nil *Store disables it. Only resolved results
// are written, never mid-item state.
package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"horse.fit/presslate/internal/batch"
)

// Run is one batch run row.
type Run struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	RunUUID    string    `gorm:"uniqueIndex;size:64" json:"run_uuid"`
	TargetLang string    `gorm:"size:16" json:"target_lang"`
	State      string    `gorm:"size:16" json:"state"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Progress   float64   `json:"progress"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Run) TableName() string { return "presslate_runs" }

// Item is one resolved item row.
type Item struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	RunUUID         string    `gorm:"index;size:64" json:"run_uuid"`
	ItemID          int64     `json:"item_id"`
	Status          string    `gorm:"size:16" json:"status"`
	Attempts        int       `json:"attempts"`
	TranslatedTitle string    `json:"translated_title,omitempty"`
	PublishedID     int64     `json:"published_id,omitempty"`
	Error           string    `json:"error,omitempty"`
	ResolvedAt      time.Time `json:"resolved_at"`
}

func (Item) TableName() string { return "presslate_run_items" }

// Store wraps the Postgres connection.
type Store struct {
	db *gorm.DB
}

// Open connects and migrates the run-history tables. An empty URL returns a
// nil store, which every method tolerates.
func Open(databaseURL string) (*Store, error) {
	url := strings.TrimSpace(databaseURL)
	if url == "" {
		return nil, nil
	}

	db, err := gorm.Open(postgres.Open(url), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open run-history database: %w", err)
	}
	if err := db.AutoMigrate(&Run{}, &Item{}); err != nil {
		return nil, fmt.Errorf("migrate run-history tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) CreateRun(runUUID, targetLang string, total int) error {
	if s == nil {
		return nil
	}
	row := Run{
		RunUUID:    runUUID,
		TargetLang: targetLang,
		State:      string(batch.StateRunning),
		Total:      total,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("insert run %s: %w", runUUID, err)
	}
	return nil
}

func (s *Store) RecordItem(runUUID string, result batch.ItemResult) error {
	if s == nil {
		return nil
	}
	row := Item{
		RunUUID:         runUUID,
		ItemID:          result.ItemID,
		Status:          string(result.Status),
		Attempts:        result.Attempts,
		TranslatedTitle: result.TranslatedTitle,
		PublishedID:     result.PublishedID,
		Error:           result.ErrMessage,
		ResolvedAt:      result.ResolvedAt,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("insert item result for run %s: %w", runUUID, err)
	}
	return nil
}

func (s *Store) FinishRun(runUUID string, summary batch.Summary) error {
	if s == nil {
		return nil
	}
	updates := map[string]any{
		"state":     string(summary.State),
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"progress":  summary.Progress,
	}
	if err := s.db.Model(&Run{}).Where("run_uuid = ?", runUUID).Updates(updates).Error; err != nil {
		return fmt.Errorf("finish run %s: %w", runUUID, err)
	}
	return nil
}

func (s *Store) ListRuns(limit int) ([]Run, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var runs []Run
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func (s *Store) GetRun(runUUID string) (*Run, []Item, error) {
	if s == nil {
		return nil, nil, nil
	}
	var run Run
	if err := s.db.Where("run_uuid = ?", runUUID).First(&run).Error; err != nil {
		return nil, nil, fmt.Errorf("load run %s: %w", runUUID, err)
	}
	var items []Item
	if err := s.db.Where("run_uuid = ?", runUUID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, nil, fmt.Errorf("load run items %s: %w", runUUID, err)
	}
	return &run, items, nil
}

// Observer adapts the store to the batch event interface. Write failures are
// logged, never raised into the pipeline.
func (s *Store) Observer(runUUID string, logger zerolog.Logger) batch.Observer {
	return &storeObserver{store: s, runUUID: runUUID, logger: logger}
}

type storeObserver struct {
	store   *Store
	runUUID string
	logger  zerolog.Logger
}

func (o *storeObserver) Progress(batch.ProgressEvent) {}

func (o *storeObserver) ItemResolved(result batch.ItemResult) {
	if err := o.store.RecordItem(o.runUUID, result); err != nil {
		o.logger.Error().Err(err).Str("run_uuid", o.runUUID).Msg("record item result failed")
	}
}

func (o *storeObserver) RunFinished(summary batch.Summary) {
	if err := o.store.FinishRun(o.runUUID, summary); err != nil {
		o.logger.Error().Err(err).Str("run_uuid", o.runUUID).Msg("finish run failed")
	}
}
