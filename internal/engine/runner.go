package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/ldwatch/internal/contracts"
	"github.com/wonny/ldwatch/pkg/redis"
)

// ErrRunInProgress is returned when the same contract/period is already being evaluated
var ErrRunInProgress = errors.New("evaluation already in progress")

// Locker grants exclusive evaluation runs
type Locker interface {
	Acquire(ctx context.Context, key string) (redis.ReleaseFunc, bool, error)
}

// ResultCache stores the last result per contract
type ResultCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Runner guards evaluations with a run lock and caches the latest result.
// Each run creates its own breach records, so callers go through Runner
// rather than the Evaluator directly.
type Runner struct {
	evaluator contracts.Evaluator
	lock      Locker
	cache     ResultCache
	cacheTTL  time.Duration
	log       zerolog.Logger
}

// NewRunner creates a runner
func NewRunner(evaluator contracts.Evaluator, lock Locker, cache ResultCache, cacheTTL time.Duration, log zerolog.Logger) *Runner {
	return &Runner{
		evaluator: evaluator,
		lock:      lock,
		cache:     cache,
		cacheTTL:  cacheTTL,
		log:       log.With().Str("component", "runner").Logger(),
	}
}

// Run evaluates one contract/period under the run lock
func (r *Runner) Run(ctx context.Context, contractID string, start, end time.Time) (*contracts.EvaluationResult, error) {
	key := redis.EvaluationRunKey(contractID, start, end)

	release, ok, err := r.lock.Acquire(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: contract %s", ErrRunInProgress, contractID)
	}
	defer func() {
		// 실행 컨텍스트가 취소돼도 잠금은 해제
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			r.log.Warn().Err(err).Str("contract_id", contractID).Msg("failed to release run lock")
		}
	}()

	result := r.evaluator.EvaluatePeriod(ctx, contractID, start, end)

	if err := r.cache.Set(ctx, redis.LatestEvaluationKey(contractID), result, r.cacheTTL); err != nil {
		r.log.Warn().Err(err).Str("contract_id", contractID).Msg("failed to cache evaluation result")
	}
	return result, nil
}

// Latest returns the cached result of the last run, nil on miss
func (r *Runner) Latest(ctx context.Context, contractID string) (*contracts.EvaluationResult, error) {
	var result contracts.EvaluationResult
	found, err := r.cache.Get(ctx, redis.LatestEvaluationKey(contractID), &result)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &result, nil
}
