// Package agentic delegates unroutable queries to the external agentic
// tool-selection engine. The engine is not safe to share across concurrent
// callers, so every request gets a fresh, isolated instance, created under a
// global concurrency limit.
package agentic

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/semaphore"

	"archie/internal/config"
	archerrors "archie/internal/errors"
	"archie/internal/logging"
)

// Engine is one isolated instance of the external agentic engine. Instances
// are single-use: Run may only be called once.
type Engine interface {
	Run(ctx context.Context, query, behaviorRules string) (Reply, error)
}

// Reply is the engine's free-text output plus whatever tool-call trace it
// produced.
type Reply struct {
	Text      string
	ToolTrace []string
}

// Factory constructs a fresh engine instance for one request.
type Factory func() (Engine, error)

// Delegator bounds and isolates calls into the agentic engine.
type Delegator struct {
	cfg     config.AgenticConfig
	factory Factory
	sem     *semaphore.Weighted
	rules   string
	logger  logging.Logger
}

// NewDelegator creates the delegator. The behavior-rules document is loaded
// once; a missing rules file leaves the injected rules empty rather than
// failing startup.
func NewDelegator(cfg config.AgenticConfig, factory Factory) *Delegator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	logger := logging.NewComponentLogger("agentic")
	rules := ""
	if cfg.RulesPath != "" {
		data, err := os.ReadFile(cfg.RulesPath)
		if err != nil {
			logger.Warn("behavior rules not loaded from %s: %v", cfg.RulesPath, err)
		} else {
			rules = string(data)
		}
	}

	return &Delegator{
		cfg:     cfg,
		factory: factory,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrent),
		rules:   rules,
		logger:  logger,
	}
}

// Available reports whether an engine factory is configured.
func (d *Delegator) Available() bool {
	return d != nil && d.factory != nil
}

// Delegate runs the query on a fresh engine instance under the concurrency
// limit. Acquisition respects the request's cancellation; the engine call
// itself gets the configured timeout.
func (d *Delegator) Delegate(ctx context.Context, query string) (Reply, error) {
	if !d.Available() {
		return Reply{}, fmt.Errorf("agentic engine not configured")
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return Reply{}, archerrors.NewBackendTimeout("agentic", err)
	}
	defer d.sem.Release(1)

	engine, err := d.factory()
	if err != nil {
		return Reply{}, archerrors.NewBackend("agentic", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	reply, err := engine.Run(runCtx, query, d.rules)
	if err != nil {
		if runCtx.Err() != nil {
			return Reply{}, archerrors.NewBackendTimeout("agentic", err)
		}
		return Reply{}, archerrors.NewBackend("agentic", err)
	}
	d.logger.Debug("agentic reply: %d tool calls", len(reply.ToolTrace))
	return reply, nil
}
