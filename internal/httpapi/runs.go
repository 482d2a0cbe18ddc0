package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/presslate/internal/batch"
	"horse.fit/presslate/internal/manifest"
	"horse.fit/presslate/internal/store"
	"horse.fit/presslate/internal/wordpress"
)

const maxManifestBytes = 1 << 20

type liveRun struct {
	RunUUID      string
	TargetLang   string
	CreatedAt    time.Time
	orchestrator *batch.Orchestrator
}

type runRegistry struct {
	mu   sync.Mutex
	runs map[string]*liveRun
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*liveRun)}
}

func (r *runRegistry) add(run *liveRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.RunUUID] = run
}

func (r *runRegistry) get(runUUID string) (*liveRun, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runUUID]
	return run, ok
}

func newRunUUID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

type runResponse struct {
	RunUUID    string             `json:"run_uuid"`
	TargetLang string             `json:"target_lang"`
	Summary    batch.Summary      `json:"summary"`
	Items      []batch.ItemResult `json:"items,omitempty"`
}

// handleStartRun validates the manifest, fetches every selected item, and
// launches the run in the background. The response carries the run id; state
// is polled via the detail endpoint.
func (s *Server) handleStartRun(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxManifestBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read request body")
	}

	m, err := manifest.Validate(json.RawMessage(payload))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	items := make([]wordpress.Item, 0, len(m.ItemIDs))
	for _, id := range m.ItemIDs {
		item, err := s.fetcher.FetchItem(c.Request().Context(), id)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, fmt.Sprintf("fetch item %d: %v", id, err))
		}
		items = append(items, *item)
	}

	runUUID := newRunUUID()

	batchOptions := s.batchOptions
	if m.MaxChunkLen > 0 {
		batchOptions.MaxChunkLen = m.MaxChunkLen
	}
	if m.MaxRetries > 0 {
		batchOptions.MaxRetries = m.MaxRetries
	}
	observers := batch.MultiObserver{}
	if batchOptions.Observer != nil {
		observers = append(observers, batchOptions.Observer)
	}
	if s.history != nil {
		observers = append(observers, s.history.Observer(runUUID, s.logger))
	}
	batchOptions.Observer = observers
	batchOptions.Logger = s.logger

	orchestrator, err := batch.New(s.translator, s.publisher, batchOptions)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	run := &liveRun{
		RunUUID:      runUUID,
		TargetLang:   m.TargetLang,
		CreatedAt:    time.Now().UTC(),
		orchestrator: orchestrator,
	}
	s.runs.add(run)

	if err := s.history.CreateRun(runUUID, m.TargetLang, len(items)); err != nil {
		s.logger.Error().Err(err).Str("run_uuid", runUUID).Msg("record run failed")
	}

	go func() {
		// The run outlives the HTTP request that started it.
		if _, err := orchestrator.Run(context.Background(), items, m.TargetLang); err != nil {
			s.logger.Error().Err(err).Str("run_uuid", runUUID).Msg("run rejected")
		}
	}()

	return c.JSON(http.StatusAccepted, runResponse{
		RunUUID:    runUUID,
		TargetLang: m.TargetLang,
		Summary:    orchestrator.Snapshot(),
	})
}

func (s *Server) handleRunDetail(c echo.Context) error {
	runUUID := c.Param("run_uuid")

	if run, ok := s.runs.get(runUUID); ok {
		return c.JSON(http.StatusOK, runResponse{
			RunUUID:    run.RunUUID,
			TargetLang: run.TargetLang,
			Summary:    run.orchestrator.Snapshot(),
			Items:      run.orchestrator.Results(),
		})
	}

	if s.history != nil {
		storedRun, storedItems, err := s.history.GetRun(runUUID)
		if err == nil && storedRun != nil {
			return c.JSON(http.StatusOK, map[string]any{
				"run":   storedRun,
				"items": storedItems,
			})
		}
	}

	return echo.NewHTTPError(http.StatusNotFound, "run not found")
}

func (s *Server) handleCancelRun(c echo.Context) error {
	runUUID := c.Param("run_uuid")
	run, ok := s.runs.get(runUUID)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}

	run.orchestrator.Cancel()
	return c.JSON(http.StatusOK, runResponse{
		RunUUID:    run.RunUUID,
		TargetLang: run.TargetLang,
		Summary:    run.orchestrator.Snapshot(),
	})
}

func (s *Server) handleListRuns(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	runs, err := s.history.ListRuns(limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list runs failed")
	}
	if runs == nil {
		runs = []store.Run{}
	}
	return c.JSON(http.StatusOK, map[string]any{"runs": runs})
}
