package failover

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/speechgate/errors"
	"github.com/kbukum/speechgate/logger"
	"github.com/kbukum/speechgate/observability"
	"github.com/kbukum/speechgate/transcription"
)

// rank scores every registered identity allowed by the policy, highest first.
// Ties keep registration order. Identities in exclude are left out.
func (e *Engine) rank(cfg Config, exclude map[transcription.Identity]bool) []Candidate {
	policy := cfg.HealthPolicy()
	var out []Candidate
	for _, id := range e.registry.Keys() {
		if exclude[id] || !cfg.Policy.Allows(id.Class()) {
			continue
		}
		c := Candidate{Identity: id, BaseScore: Score(id, cfg.Policy, e.device)}
		penalty, reason := e.health.Penalty(id, policy)
		c.SkipReason = reason
		if reason == "" {
			c.EffectiveScore = effectiveScore(c.BaseScore, penalty)
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EffectiveScore > out[j].EffectiveScore
	})
	return out
}

// acquire returns the best available backend, constructing and preparing
// candidates in rank order. Each candidate that fails to construct, prepare
// or report itself available is recorded as a failure.
func (e *Engine) acquire(ctx context.Context, cfg Config, exclude map[transcription.Identity]bool) (transcription.Transcriber, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanAcquire)
	defer span.End()

	candidates := e.rank(cfg, exclude)
	for _, c := range candidates {
		if c.SkipReason != "" || c.EffectiveScore == 0 {
			e.log.Debug("skipping candidate", logger.Fields(
				logger.FieldProvider, string(c.Identity),
				logger.FieldScore, c.EffectiveScore,
				"reason", c.SkipReason,
			))
			continue
		}
		t, err := e.tryCandidate(ctx, c.Identity, cfg)
		if err != nil {
			continue
		}
		span.SetAttributes(attribute.String(observability.AttrProvider, string(c.Identity)))
		return t, nil
	}

	err := errors.NoProviderAvailable().WithDetail("candidates", len(candidates))
	observability.SetSpanError(span, err)
	return nil, err
}

// tryCandidate constructs and prepares id without consulting its score.
func (e *Engine) tryCandidate(ctx context.Context, id transcription.Identity, cfg Config) (transcription.Transcriber, error) {
	fields := logger.Fields(logger.FieldProvider, string(id))

	t, err := e.registry.GetOrCreate(id, e.providerCfg[id])
	if err != nil {
		err = errors.ModelUnavailable(string(id)).WithCause(err)
		e.log.Warn("provider construction failed", logger.MergeWithError(fields, err))
		e.recordFailure(ctx, id, err, cfg)
		return nil, err
	}
	if err := t.Prepare(ctx); err != nil {
		e.log.Warn("provider preparation failed", logger.MergeWithError(fields, err))
		e.recordFailure(ctx, id, err, cfg)
		return nil, err
	}
	if !t.IsAvailable(ctx) {
		err := errors.ModelUnavailable(string(id)).WithDetail("reason", "reported unavailable")
		e.log.Warn("provider unavailable after preparation", fields)
		e.recordFailure(ctx, id, err, cfg)
		return nil, err
	}
	return t, nil
}

// acquireReplacement prefers the dedicated fallback unless it is excluded,
// its circuit is open or its effective score is 0, then falls back to ranking
// without the excluded set.
func (e *Engine) acquireReplacement(ctx context.Context, cfg Config, exclude map[transcription.Identity]bool) (transcription.Transcriber, error) {
	if id := e.fallback; id != "" && !exclude[id] && e.registry.Has(id) && cfg.Policy.Allows(id.Class()) {
		penalty, reason := e.health.Penalty(id, cfg.HealthPolicy())
		if reason == "" && effectiveScore(Score(id, cfg.Policy, e.device), penalty) > 0 {
			if t, err := e.tryCandidate(ctx, id, cfg); err == nil {
				return t, nil
			}
		}
		exclude = withExcluded(exclude, id)
	}
	return e.acquire(ctx, cfg, exclude)
}

func withExcluded(exclude map[transcription.Identity]bool, ids ...transcription.Identity) map[transcription.Identity]bool {
	out := make(map[transcription.Identity]bool, len(exclude)+len(ids))
	for id, v := range exclude {
		out[id] = v
	}
	for _, id := range ids {
		out[id] = true
	}
	return out
}
