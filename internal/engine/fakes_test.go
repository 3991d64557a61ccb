package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/ldwatch/internal/contracts"
	"github.com/wonny/ldwatch/pkg/redis"
)

type fakeClauses struct {
	clauses []contracts.Clause
	err     error
}

func (f *fakeClauses) LoadEvaluable(_ context.Context, _ string) ([]contracts.Clause, error) {
	return f.clauses, f.err
}

type fakeSeries struct {
	readings    []contracts.MeterReading
	events      []contracts.OperationalEvent
	readingsErr error
	eventsErr   error
	calls       int
	mu          sync.Mutex
}

func (f *fakeSeries) LoadReadings(_ context.Context, _, _ string, _, _ time.Time) ([]contracts.MeterReading, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.readingsErr != nil {
		return []contracts.MeterReading{}, fmt.Errorf("%w: %v", contracts.ErrDataUnavailable, f.readingsErr)
	}
	return f.readings, nil
}

func (f *fakeSeries) LoadExcusedEvents(_ context.Context, _ string, _, _ time.Time, _ []string) ([]contracts.OperationalEvent, error) {
	if f.eventsErr != nil {
		return []contracts.OperationalEvent{}, fmt.Errorf("%w: %v", contracts.ErrDataUnavailable, f.eventsErr)
	}
	return f.events, nil
}

// storeBackedSeries serves excused events from what the store has persisted
type storeBackedSeries struct {
	*fakeSeries
	store *fakeStore
}

func (f *storeBackedSeries) LoadExcusedEvents(_ context.Context, _ string, _, _ time.Time, _ []string) ([]contracts.OperationalEvent, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return append([]contracts.OperationalEvent{}, f.store.events...), nil
}

// fakeStore records writes; failClauses makes PersistBreach fail for those clause IDs
type fakeStore struct {
	mu          sync.Mutex
	events      []contracts.OperationalEvent
	breaches    []contracts.Breach
	failClauses map[string]bool
	failEvents  bool
	seq         int
}

func (f *fakeStore) CreateOperationalEvent(_ context.Context, e *contracts.OperationalEvent) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEvents {
		return "", fmt.Errorf("%w: insert operational event: connection reset", contracts.ErrPersistence)
	}
	id := fmt.Sprintf("oe-%d", len(f.events)+1)
	f.events = append(f.events, *e)
	return id, nil
}

func (f *fakeStore) PersistBreach(_ context.Context, b *contracts.Breach) (*contracts.PersistedBreach, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failClauses[b.RuleOutput.ClauseID] {
		return nil, fmt.Errorf("%w: insert rule output: deadlock detected", contracts.ErrPersistence)
	}
	f.seq++
	f.breaches = append(f.breaches, *b)
	return &contracts.PersistedBreach{
		DefaultEventID: fmt.Sprintf("de-%d", f.seq),
		RuleOutputID:   fmt.Sprintf("ro-%d", f.seq),
		NotificationID: fmt.Sprintf("n-%d", f.seq),
	}, nil
}

type panicDetector struct{}

func (panicDetector) Detect(string, []contracts.MeterReading) []contracts.OperationalEvent {
	panic("percentile of empty slice")
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []contracts.Notification
	err  error
}

func (f *fakePublisher) PublishNotification(_ context.Context, n *contracts.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, *n)
	return nil
}

type fakeSnapshots struct {
	runIDs []string
}

func (f *fakeSnapshots) SaveReport(_ context.Context, runID, _, _ string, _ *contracts.CompletenessReport) error {
	f.runIDs = append(f.runIDs, runID)
	return nil
}

type fakeLocker struct {
	held     bool
	err      error
	released int
}

func (f *fakeLocker) Acquire(context.Context, string) (redis.ReleaseFunc, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if f.held {
		return func(context.Context) error { return nil }, false, nil
	}
	return func(context.Context) error {
		f.released++
		return nil
	}, true, nil
}

// fakeCache round-trips values through JSON like the Redis cache does
type fakeCache struct {
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}}
}

func (f *fakeCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := f.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = raw
	return nil
}

var errBoom = errors.New("boom")
