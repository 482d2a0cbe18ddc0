package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/presslate/internal/auth"
	"horse.fit/presslate/internal/batch"
	"horse.fit/presslate/internal/store"
	"horse.fit/presslate/internal/translation"
	"horse.fit/presslate/internal/wordpress"
)

// ItemFetcher loads source items from the content host.
type ItemFetcher interface {
	FetchItem(ctx context.Context, id int64) (*wordpress.Item, error)
}

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Basic auth for the API. Empty PasswordHash disables auth.
	Username     string
	PasswordHash string
}

// Server exposes batch translation runs over HTTP. The orchestrator itself
// stays transport-independent; the server is one observer among others.
type Server struct {
	fetcher    ItemFetcher
	translator batch.Translator
	publisher  batch.Publisher
	history    *store.Store
	runs       *runRegistry
	logger     zerolog.Logger
	opts       Options

	batchOptions batch.Options
}

func NewServer(
	fetcher ItemFetcher,
	translator batch.Translator,
	publisher batch.Publisher,
	history *store.Store,
	batchOptions batch.Options,
	logger zerolog.Logger,
	opts Options,
) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8098
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		fetcher:      fetcher,
		translator:   translator,
		publisher:    publisher,
		history:      history,
		runs:         newRunRegistry(),
		logger:       logger,
		batchOptions: batchOptions,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			Username:        strings.TrimSpace(opts.Username),
			PasswordHash:    strings.TrimSpace(opts.PasswordHash),
		},
	}
}

func (s *Server) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	if s.opts.PasswordHash != "" {
		api.Use(middleware.BasicAuth(func(username, password string, _ echo.Context) (bool, error) {
			if auth.NormalizeUsername(username) != auth.NormalizeUsername(s.opts.Username) {
				return false, nil
			}
			return auth.VerifyPassword(password, s.opts.PasswordHash), nil
		}))
	}

	api.GET("/health", s.handleHealth)
	api.GET("/languages", s.handleLanguages)
	api.POST("/runs", s.handleStartRun)
	api.GET("/runs", s.handleListRuns)
	api.GET("/runs/:run_uuid", s.handleRunDetail)
	api.POST("/runs/:run_uuid/cancel", s.handleCancelRun)

	return e
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.fetcher == nil || s.translator == nil || s.publisher == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.newEcho()

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("presslate api server started")
	if err := e.StartServer(httpServer); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("start server: %w", err)
	}
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "internal server error"
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Code
		if msg, isString := httpErr.Message.(string); isString {
			message = msg
		} else {
			message = http.StatusText(status)
		}
	}

	if writeErr := c.JSON(status, map[string]any{"error": message}); writeErr != nil {
		s.logger.Error().Err(writeErr).Msg("write error response failed")
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleLanguages(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"languages": translation.LanguageOptions(),
	})
}
