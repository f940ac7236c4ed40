package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/christophercallejongarcia/Test-Deeplearning/api_tutor/internal/events"
	"github.com/christophercallejongarcia/Test-Deeplearning/api_tutor/internal/session"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/logging"
)

const publishTimeout = 5 * time.Second

// EventPublisher receives one event per answered query.
type EventPublisher interface {
	Publish(ctx context.Context, event events.QueryEvent) error
}

type AssistantConfig struct {
	Orchestrator *Orchestrator
	Registry     *Registry
	Sessions     session.Store
	Publisher    EventPublisher
	Logger       logging.Logger
}

// Assistant is the top-level query entry point: it loads session history,
// runs the orchestrator and stores the exchange.
type Assistant struct {
	orchestrator *Orchestrator
	registry     *Registry
	sessions     session.Store
	publisher    EventPublisher
	logger       logging.Logger

	// sessionLocks serializes concurrent queries on the same session id.
	// Entries are reference counted and dropped once no query holds or
	// waits on them.
	locksMu      sync.Mutex
	sessionLocks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

type Answer struct {
	Text      string           `json:"answer"`
	Sources   []Source         `json:"sources"`
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`
}

func NewAssistant(cfg AssistantConfig) (*Assistant, error) {
	if cfg.Orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	registry := cfg.Registry
	if registry == nil {
		registry = cfg.Orchestrator.registry
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Assistant{
		orchestrator: cfg.Orchestrator,
		registry:     registry,
		sessions:     cfg.Sessions,
		publisher:    cfg.Publisher,
		logger:       logger,
		sessionLocks: make(map[string]*sessionLock),
	}, nil
}

// Sessions exposes the store used for history.
func (a *Assistant) Sessions() session.Store {
	return a.sessions
}

// Process answers query. Model and tool failures become answer text; only
// session store failures are returned as errors. An empty sessionID skips
// history entirely.
func (a *Assistant) Process(ctx context.Context, query, sessionID string) (Answer, error) {
	start := time.Now()
	queriesActive.Inc()
	defer queriesActive.Dec()

	var history string
	if sessionID != "" {
		lock := a.lockSession(sessionID)
		defer a.unlockSession(sessionID, lock)

		var err error
		history, err = a.sessions.History(ctx, sessionID)
		if err != nil {
			return Answer{}, err
		}
	}

	prov := a.registry.NewProvenance()
	defer a.registry.ClearProvenance(prov)

	req := RunRequest{Query: query, History: history, Provenance: prov}
	var result OrchestratorResult
	if a.registry.Len() == 0 {
		result = a.orchestrator.RunSingle(ctx, req)
	} else {
		result = a.orchestrator.Run(ctx, req)
	}
	sources := a.registry.CollectProvenance(prov)
	if sources == nil {
		sources = []Source{}
	}

	if sessionID != "" {
		if err := a.sessions.Append(ctx, sessionID, query, result.Answer); err != nil {
			return Answer{}, err
		}
	}

	a.logger.WithFields(logging.Fields{
		"session_id":  sessionID,
		"rounds":      result.Rounds,
		"tool_calls":  len(result.ToolCalls),
		"sources":     len(sources),
		"termination": result.Termination,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Query answered")

	if a.publisher != nil {
		a.publish(ctx, sessionID, query, result, sources, time.Since(start))
	}

	return Answer{Text: result.Answer, Sources: sources, ToolCalls: result.ToolCalls}, nil
}

func (a *Assistant) lockSession(id string) *sessionLock {
	a.locksMu.Lock()
	lock, ok := a.sessionLocks[id]
	if !ok {
		lock = &sessionLock{}
		a.sessionLocks[id] = lock
	}
	lock.refs++
	a.locksMu.Unlock()

	lock.mu.Lock()
	return lock
}

func (a *Assistant) unlockSession(id string, lock *sessionLock) {
	lock.mu.Unlock()

	a.locksMu.Lock()
	defer a.locksMu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(a.sessionLocks, id)
	}
}

// publish sends the event in the background; failures are logged only.
func (a *Assistant) publish(ctx context.Context, sessionID, query string, result OrchestratorResult, sources []Source, latency time.Duration) {
	tools := make([]string, 0, len(result.ToolCalls))
	for _, call := range result.ToolCalls {
		tools = append(tools, call.Name)
	}
	displays := make([]string, 0, len(sources))
	for _, src := range sources {
		displays = append(displays, src.Display)
	}
	event := events.QueryEvent{
		SessionID:   sessionID,
		Query:       query,
		Tools:       tools,
		Sources:     displays,
		Rounds:      result.Rounds,
		Termination: result.Termination,
		LatencyMS:   latency.Milliseconds(),
		OccurredAt:  time.Now().UTC(),
	}
	go func() {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := a.publisher.Publish(pubCtx, event); err != nil {
			a.logger.WithError(err).Warn("Failed to publish query event")
		}
	}()
}
