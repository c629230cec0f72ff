// Package decompose runs the provider fallback chain: enabled external
// providers in configured order, then the offline heuristic.
package decompose

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"goalsplit-backend/internal/ai"
	"goalsplit-backend/internal/config"
)

const DefaultTimeout = 10 * time.Second

type Orchestrator struct {
	providers []ai.Provider
	fallback  ai.Provider
	timeout   time.Duration
	log       *slog.Logger
}

// New builds an orchestrator trying providers in the given order. The
// heuristic is always appended as the last resort.
func New(log *slog.Logger, timeout time.Duration, providers ...ai.Provider) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Orchestrator{
		providers: providers,
		fallback:  ai.NewHeuristic(),
		timeout:   timeout,
		log:       log,
	}
}

// FromConfig wires the enabled providers listed in PROVIDER_ORDER.
func FromConfig(cfg *config.Config, log *slog.Logger) *Orchestrator {
	var providers []ai.Provider
	for _, name := range cfg.ProviderOrder {
		pc, ok := cfg.Provider(name)
		if !ok || !pc.Enabled {
			continue
		}

		switch name {
		case config.ProviderOpenAI:
			providers = append(providers, ai.NewOpenAI(pc.APIKey, pc.Model, pc.BaseURL, cfg.ProviderTimeout))
		case config.ProviderHuggingFace:
			providers = append(providers, ai.NewHuggingFace(pc.APIKey, pc.Model, pc.BaseURL, cfg.ProviderTimeout))
		case config.ProviderAnthropic:
			providers = append(providers, ai.NewAnthropic(pc.APIKey, pc.Model, pc.BaseURL, cfg.ProviderTimeout))
		}
		log.Info("decomposition provider enabled", "provider", name, "model", pc.Model)
	}
	return New(log, cfg.ProviderTimeout, providers...)
}

// Providers returns the names of the external providers in try order.
func (o *Orchestrator) Providers() []string {
	names := make([]string, len(o.providers))
	for i, p := range o.providers {
		names[i] = p.Name()
	}
	return names
}

// Decompose returns the first successful decomposition. goal must be
// non-empty after trimming; the caller validates it. The result always
// holds at least one sub-goal.
func (o *Orchestrator) Decompose(ctx context.Context, goal string) ai.Result {
	goal = strings.TrimSpace(goal)

	failed := 0
	for _, p := range o.providers {
		res, err := o.try(ctx, p, goal)
		if err == nil {
			res.Meta.Fallback = failed
			return res
		}
		failed++
		o.log.Warn("decomposition provider failed, falling back",
			"provider", p.Name(),
			"error", err,
		)
	}

	res, _ := o.fallback.Decompose(ctx, goal)
	res.Subgoals = ai.Normalize(res.Subgoals, ai.MaxHeuristicSubgoals)
	res.Meta.Fallback = failed
	return res
}

type outcome struct {
	res ai.Result
	err error
}

// try runs one provider under the per-attempt timeout. A provider that
// ignores its context is abandoned when the deadline passes.
func (o *Orchestrator) try(ctx context.Context, p ai.Provider, goal string) (ai.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		res, err := p.Decompose(ctx, goal)
		done <- outcome{res, err}
	}()

	var res ai.Result
	select {
	case out := <-done:
		if out.err != nil {
			return ai.Result{}, out.err
		}
		res = out.res
	case <-ctx.Done():
		return ai.Result{}, &ai.ProviderError{Provider: p.Name(), Op: "timeout", Err: ctx.Err()}
	}

	res.Subgoals = ai.Normalize(res.Subgoals, ai.MaxProviderSubgoals)
	if len(res.Subgoals) == 0 {
		return ai.Result{}, &ai.ProviderError{Provider: p.Name(), Op: "validate", Err: ai.ErrEmptySubgoals}
	}
	if res.Meta.Source == "" {
		res.Meta.Source = p.Name()
	}
	return res, nil
}
