// Package alert turns the candidate alerts produced by agent monitors
// into deduplicated, triaged notifications. One monitor cycle is
// all-or-nothing: a cancelled cycle emits nothing and leaves the
// dedup state untouched.
package alert

import (
	"context"
	"sync"
	"time"

	"github.com/futureready/retain/pkg/model"
	"github.com/futureready/retain/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Engine deduplicates and triages candidate alerts.
type Engine struct {
	policy *TriagePolicy
	ttl    time.Duration
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

// EngineOption is a functional option for Engine
type EngineOption func(*Engine)

// WithTriagePolicy sets the Rego triage policy.
func WithTriagePolicy(p *TriagePolicy) EngineOption {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithDedupTTL sets how long an emitted alert suppresses duplicates.
func WithDedupTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) {
		e.ttl = ttl
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an alert engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		ttl:  24 * time.Hour,
		now:  time.Now,
		seen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process triages one monitor cycle's candidates and returns the alerts
// to emit. Duplicates of alerts emitted within the TTL are dropped, as
// are candidates the policy discards. The dedup set is only committed
// when the whole cycle succeeds, so a failed cycle is retried in full.
func (e *Engine) Process(ctx context.Context, candidates []*model.Alert) ([]*model.Alert, error) {
	now := e.now().UTC()
	e.prune(now)

	logger := logging.From(ctx)

	var accepted []*model.Alert
	staged := make(map[string]time.Time)

	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, goerr.Wrap(err, "monitor cycle cancelled")
		}

		key := cand.DedupKey()
		if e.isSeen(key, now) {
			logger.Debug("suppressed duplicate alert", "type", cand.Type, "key", key)
			continue
		}
		if _, ok := staged[key]; ok {
			continue
		}

		triage, err := e.policy.Evaluate(ctx, cand)
		if err != nil {
			return nil, err
		}
		if triage.Action == "discard" {
			logger.Debug("policy discarded alert", "type", cand.Type, "note", triage.Note)
			staged[key] = now
			continue
		}

		out := *cand
		if triage.Severity != "" {
			sev := model.Severity(triage.Severity)
			if err := sev.Validate(); err != nil {
				return nil, goerr.Wrap(err, "triage policy returned invalid severity",
					goerr.V("severity", triage.Severity))
			}
			out.Severity = sev
		}
		if triage.Note != "" {
			out.Message = out.Message + "; " + triage.Note
		}

		staged[key] = now
		accepted = append(accepted, &out)
	}

	if err := ctx.Err(); err != nil {
		return nil, goerr.Wrap(err, "monitor cycle cancelled")
	}

	e.commit(staged)
	return accepted, nil
}

func (e *Engine) isSeen(key string, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	at, ok := e.seen[key]
	return ok && now.Sub(at) < e.ttl
}

func (e *Engine) commit(staged map[string]time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, at := range staged {
		e.seen[key] = at
	}
}

func (e *Engine) prune(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, at := range e.seen {
		if now.Sub(at) >= e.ttl {
			delete(e.seen, key)
		}
	}
}
