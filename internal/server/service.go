package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"inboxpilot/internal/assistant"
	"inboxpilot/internal/logging"
)

const (
	defaultAddr       = ":8080"
	defaultMaxInbox   = 10
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// Runner executes one workflow traversal.
type Runner interface {
	Run(ctx context.Context, st *assistant.SharedState) *assistant.SharedState
}

// Sender delivers drafted replies. Optional; when absent drafts stay in
// the workflow result only.
type Sender interface {
	SendMessage(ctx context.Context, to, subject, body string) (string, error)
}

// Config holds the service settings.
type Config struct {
	Addr         string
	PollInterval time.Duration // 0 disables the background poll
	MaxInbox     int64
	SendReplies  bool
}

// Deps are the service collaborators. Runner and Inbox are required.
type Deps struct {
	Runner Runner
	Inbox  assistant.InboxSource
	Sender Sender
	Logger *slog.Logger
}

// Service ties the workflow to the HTTP surface and the poll loop.
type Service struct {
	cfg     Config
	runner  Runner
	inbox   assistant.InboxSource
	sender  Sender
	logger  *slog.Logger
	metrics *Metrics
	health  *HealthChecker

	// runMu serializes workflow executions so at most one run is in
	// flight at a time, whichever path triggered it. Sync callers block
	// on it; manual callers fail fast with a 409.
	syncGroup singleflight.Group
	runMu     sync.Mutex

	lastMu sync.RWMutex
	last   *assistant.SharedState

	httpServer *http.Server
}

// New validates the collaborators and returns a ready Service.
func New(cfg Config, deps Deps) (*Service, error) {
	if deps.Runner == nil {
		return nil, fmt.Errorf("server: runner is required")
	}
	if deps.Inbox == nil {
		return nil, fmt.Errorf("server: inbox source is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.MaxInbox <= 0 {
		cfg.MaxInbox = defaultMaxInbox
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		cfg:     cfg,
		runner:  deps.Runner,
		inbox:   deps.Inbox,
		sender:  deps.Sender,
		logger:  logger,
		metrics: NewMetrics(),
		health:  NewHealthChecker(),
	}, nil
}

// Handler returns the service's HTTP handler.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/healthz", s.health.LivenessHandler())
	mux.Handle("/readyz", s.health.ReadinessHandler())
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/api/last-result", s.handleLastResult)
	mux.HandleFunc("/api/run-workflow", s.handleRunWorkflow)
	mux.HandleFunc("/api/sync", s.handleSync)
	return mux
}

// Run serves HTTP and the poll loop until ctx is cancelled, then drains
// gracefully.
func (s *Service) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()
	if s.cfg.PollInterval > 0 {
		go s.pollLoop(ctx)
	}
	s.logger.Info("server listening",
		slog.String("addr", s.cfg.Addr),
		slog.Duration("poll_interval", s.cfg.PollInterval))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.health.SetShuttingDown()
	s.health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("server shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Service) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.syncOnce(ctx); err != nil {
				s.logger.Warn("background sync failed", logging.Err(err))
			}
		}
	}
}

// syncOnce fetches the inbox and runs the workflow. Concurrent callers
// collapse onto a single execution and share its result.
func (s *Service) syncOnce(ctx context.Context) (*assistant.SharedState, error) {
	result, err, _ := s.syncGroup.Do("sync", func() (any, error) {
		messages, err := s.inbox.FetchInbox(ctx, s.cfg.MaxInbox)
		if err != nil {
			s.metrics.ObserveFetchFailure()
			return nil, fmt.Errorf("inbox fetch failed: %w", err)
		}
		s.runMu.Lock()
		defer s.runMu.Unlock()
		return s.runWorkflow(ctx, assistant.NewState(messages)), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*assistant.SharedState), nil
}

// runWorkflow executes one traversal, records metrics, updates the
// last-result slot, and optionally sends drafted replies.
func (s *Service) runWorkflow(ctx context.Context, st *assistant.SharedState) *assistant.SharedState {
	start := time.Now()
	result := s.runner.Run(ctx, st)
	s.metrics.ObserveRun(string(result.Action), time.Since(start))

	s.lastMu.Lock()
	s.last = result
	s.lastMu.Unlock()

	if s.cfg.SendReplies && s.sender != nil && result.Reply != "" {
		s.sendDrafts(ctx, result.Reply)
	}
	return result
}

// LastResult returns the most recent workflow result, or nil if no run
// has completed yet.
func (s *Service) LastResult() *assistant.SharedState {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last
}

func (s *Service) handleLastResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	last := s.LastResult()
	if last == nil {
		writeError(w, http.StatusNotFound, "no workflow has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, last)
}

// handleRunWorkflow triggers a manual run. The request body may carry a
// state, which is how a confirmed slot suggestion re-enters the
// workflow; an empty body runs against a freshly fetched inbox.
func (s *Service) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.runMu.TryLock() {
		writeError(w, http.StatusConflict, "a workflow run is already in progress")
		return
	}
	defer s.runMu.Unlock()

	var st *assistant.SharedState
	if r.Body != nil && r.ContentLength != 0 {
		st = &assistant.SharedState{}
		if err := json.NewDecoder(r.Body).Decode(st); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	if st == nil {
		messages, err := s.inbox.FetchInbox(r.Context(), s.cfg.MaxInbox)
		if err != nil {
			s.metrics.ObserveFetchFailure()
			writeError(w, http.StatusBadGateway, "inbox fetch failed: "+err.Error())
			return
		}
		st = assistant.NewState(messages)
	}

	writeJSON(w, http.StatusOK, s.runWorkflow(r.Context(), st))
}

func (s *Service) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	result, err := s.syncOnce(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// sendDrafts delivers each drafted reply to its recipient. Failed
// drafts (the workflow records those as data) are skipped.
func (s *Service) sendDrafts(ctx context.Context, reply string) {
	for _, d := range parseDrafts(reply) {
		if strings.HasPrefix(d.Body, "Could not draft") {
			continue
		}
		subject, body := splitSubject(d.Body)
		if _, err := s.sender.SendMessage(ctx, d.To, subject, body); err != nil {
			s.logger.Warn("failed to send reply",
				logging.UserHash(d.To), logging.Err(err))
			continue
		}
		s.logger.Info("reply sent", logging.UserHash(d.To))
	}
}
