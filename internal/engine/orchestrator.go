// Package engine runs compliance evaluations for one contract and period.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/ldwatch/internal/contracts"
	"github.com/wonny/ldwatch/internal/ld"
	"github.com/wonny/ldwatch/internal/rules"
	"github.com/wonny/ldwatch/internal/rulesconfig"
	"github.com/wonny/ldwatch/pkg/observability"
)

// SnapshotStore saves completeness reports for later inspection
type SnapshotStore interface {
	SaveReport(ctx context.Context, runID, contractID, projectID string, report *contracts.CompletenessReport) error
}

// Deps are the collaborators of an Orchestrator.
// Publisher, Snapshots and Telemetry are optional.
type Deps struct {
	Clauses   contracts.ClauseRepository
	Series    contracts.TimeSeriesStore
	Store     contracts.BreachStore
	Detector  contracts.EventDetector
	Checker   contracts.CompletenessChecker
	Registry  *rules.Registry
	Publisher contracts.NotificationPublisher
	Snapshots SnapshotStore
	Telemetry *observability.Provider
}

// Options holds run-wide settings
type Options struct {
	Workers       int
	Timeout       time.Duration // 0 = no deadline
	MeterTypeCode string
	ConfigHash    string
	Severity      rulesconfig.Severity
}

// Orchestrator coordinates one evaluation run
// ⭐ SSOT: 평가 파이프라인 조율과 쓰기 경로는 여기서만
type Orchestrator struct {
	deps Deps
	opts Options
	log  zerolog.Logger

	now      func() time.Time
	newRunID func() string
}

var _ contracts.Evaluator = (*Orchestrator)(nil)

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(deps Deps, opts Options, log zerolog.Logger) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Severity == (rulesconfig.Severity{}) {
		opts.Severity = rulesconfig.Default().Severity
	}
	if deps.Telemetry == nil {
		deps.Telemetry = observability.Nop()
	}
	return &Orchestrator{
		deps:     deps,
		opts:     opts,
		log:      log.With().Str("component", "engine").Logger(),
		now:      time.Now,
		newRunID: uuid.NewString,
	}
}

// clauseEval is the in-memory result of one clause before persistence
type clauseEval struct {
	clause contracts.Clause
	kind   rules.Kind
	status contracts.ClauseStatus
	result rules.Result
	err    error
}

// EvaluatePeriod evaluates every evaluable clause of contractID over [start, end).
// Never returns nil; failures are reported as processing notes.
func (o *Orchestrator) EvaluatePeriod(ctx context.Context, contractID string, start, end time.Time) (result *contracts.EvaluationResult) {
	started := o.now()
	result = contracts.NewEvaluationResult(o.newRunID(), contractID, start, end)
	result.ConfigHash = o.opts.ConfigHash
	result.StartedAt = started

	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	ctx, span := o.deps.Telemetry.StartSpan(ctx, "engine.EvaluatePeriod",
		attribute.String("contract_id", contractID),
		attribute.String("run_id", result.RunID),
	)
	log := o.log.With().Str("run_id", result.RunID).Str("contract_id", contractID).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("evaluation aborted")
			abort(result, fmt.Sprintf("evaluation aborted: %v", r))
		}

		result.Duration = time.Since(started)
		failed := 0
		for _, ev := range result.Evaluations {
			if ev.Status == contracts.ClauseFailed {
				failed++
			}
		}
		failed += result.BreachCount() - result.PersistedCount()

		attrs := []attribute.KeyValue{attribute.String("contract_id", contractID)}
		o.deps.Telemetry.RecordEvaluation(ctx, result.Duration, result.BreachCount(), failed, attrs...)
		span.SetAttributes(
			attribute.Int("breaches", result.BreachCount()),
			attribute.String("ld_total", result.LDTotal.StringFixed(2)),
		)
		span.End()

		log.Info().
			Str("project_id", result.ProjectID).
			Int("clauses", len(result.Evaluations)).
			Int("breaches", result.BreachCount()).
			Int("notifications", result.NotificationsGenerated).
			Str("ld_total", result.LDTotal.StringFixed(2)).
			Int("notes", len(result.ProcessingNotes)).
			Dur("duration", result.Duration).
			Msg("evaluation completed")
	}()

	log.Info().
		Time("period_start", start).
		Time("period_end", end).
		Msg("starting evaluation")

	if !end.After(start) {
		result.AddNote("invalid period: end %s is not after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
		return result
	}

	o.run(ctx, result, log)
	return result
}

// run executes the pipeline stages; every failure becomes a note on result
func (o *Orchestrator) run(ctx context.Context, result *contracts.EvaluationResult, log zerolog.Logger) {
	start, end := result.PeriodStart, result.PeriodEnd

	// 1. 평가 가능한 조항 로드
	clauses, err := o.loadClauses(ctx, result.ContractID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load clauses")
		result.AddNote("failed to load clauses: %v", err)
		return
	}
	if len(clauses) == 0 {
		result.AddNote("no evaluable clauses for contract %s", result.ContractID)
		return
	}

	// 2. 프로젝트 식별
	projectID := clauses[0].ProjectID
	if projectID == "" {
		result.AddNote("evaluation aborted: %v for contract %s", contracts.ErrNoProject, result.ContractID)
		return
	}
	result.ProjectID = projectID
	log = log.With().Str("project_id", projectID).Logger()

	// 3. 계측값 1회 로드 (이후 불변 스냅샷)
	readings := o.loadReadings(ctx, projectID, start, end, result, log)

	// 4. 데이터 완전성 (참고용)
	o.checkCompleteness(ctx, readings, result, log)

	// 5. 운영 이상 감지 + 저장
	firstEventID := o.detectIncidents(ctx, projectID, readings, result, log)

	// ⭐ 면책 이벤트는 감지 결과 저장 후 로드: 재실행해도 동일한 LD
	excused := o.loadExcused(ctx, projectID, start, end, result, log)

	// 6. 조항별 평가 (병렬)
	evals := o.evaluateClauses(ctx, clauses, readings, excused, start, end)

	if err := ctx.Err(); err != nil {
		o.recordOutcomes(evals, result, log)
		abort(result, fmt.Sprintf("evaluation deadline exceeded before persistence: %v", err))
		return
	}

	// 7. 위반 기록 저장 (순차, 위반별 트랜잭션)
	o.recordOutcomes(evals, result, log)
	o.persistBreaches(ctx, evals, firstEventID, result, log)
}

func (o *Orchestrator) loadClauses(ctx context.Context, contractID string) ([]contracts.Clause, error) {
	all, err := o.deps.Clauses.LoadEvaluable(ctx, contractID)
	if err != nil {
		return nil, err
	}
	clauses := make([]contracts.Clause, 0, len(all))
	for _, c := range all {
		if c.Evaluable() {
			clauses = append(clauses, c)
		}
	}
	return clauses, nil
}

func (o *Orchestrator) loadReadings(ctx context.Context, projectID string, start, end time.Time, result *contracts.EvaluationResult, log zerolog.Logger) []contracts.MeterReading {
	raw, err := o.deps.Series.LoadReadings(ctx, projectID, o.opts.MeterTypeCode, start, end)
	if err != nil {
		log.Warn().Err(err).Msg("meter readings unavailable")
		result.AddNote("meter readings unavailable: %v", err)
		raw = nil
	}
	readings := contracts.AggregateByTimestamp(raw)

	log.Debug().
		Int("readings", len(readings)).
		Int("meters_raw", len(raw)).
		Msg("readings loaded")
	return readings
}

// loadExcused 는 이번 실행에서 저장한 incident 도 포함해 읽는다
func (o *Orchestrator) loadExcused(ctx context.Context, projectID string, start, end time.Time, result *contracts.EvaluationResult, log zerolog.Logger) []contracts.OperationalEvent {
	// 타입 필터는 조항별 허용 목록으로 적용
	excused, err := o.deps.Series.LoadExcusedEvents(ctx, projectID, start, end, nil)
	if err != nil {
		log.Warn().Err(err).Msg("excused events unavailable")
		result.AddNote("excused events unavailable, no time excused: %v", err)
		return []contracts.OperationalEvent{}
	}
	log.Debug().Int("events", len(excused)).Msg("excused events loaded")
	return excused
}

func (o *Orchestrator) checkCompleteness(ctx context.Context, readings []contracts.MeterReading, result *contracts.EvaluationResult, log zerolog.Logger) {
	if o.deps.Checker == nil {
		return
	}
	report := o.deps.Checker.Check(readings, result.PeriodStart, result.PeriodEnd)
	result.Completeness = report

	if !report.Complete {
		result.AddNote("incomplete meter data: %.2f%% coverage (%d of %d readings), %d gap(s) totalling %.1fh",
			report.CoveragePct, report.ActualReadings, report.ExpectedReadings, len(report.Gaps), report.GapHours())
	}

	if o.deps.Snapshots != nil {
		if err := o.deps.Snapshots.SaveReport(ctx, result.RunID, result.ContractID, result.ProjectID, report); err != nil {
			log.Warn().Err(err).Msg("failed to save completeness report")
		}
	}
}

// detectIncidents persists detected incidents and returns the first stored ID
func (o *Orchestrator) detectIncidents(ctx context.Context, projectID string, readings []contracts.MeterReading, result *contracts.EvaluationResult, log zerolog.Logger) (firstID string) {
	if o.deps.Detector == nil || len(readings) == 0 {
		return ""
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("event detection failed")
			result.AddNote("event detection failed: %v", r)
		}
	}()

	events := o.deps.Detector.Detect(projectID, readings)
	for i := range events {
		e := &events[i]
		id, err := o.deps.Store.CreateOperationalEvent(ctx, e)
		if err != nil {
			log.Warn().Err(err).Str("event_type", e.EventTypeCode).Time("time_start", e.TimeStart).Msg("failed to persist incident")
			result.AddNote("failed to persist %s incident starting %s: %v", e.EventTypeCode, e.TimeStart.Format(time.RFC3339), err)
			continue
		}
		e.ID = id
		result.DetectedEvents = append(result.DetectedEvents, id)
		if firstID == "" {
			firstID = id
		}
	}

	if len(events) > 0 {
		log.Info().
			Int("detected", len(events)).
			Int("persisted", len(result.DetectedEvents)).
			Msg("operational incidents detected")
	}
	return firstID
}

// evaluateClauses runs one task per clause in a bounded pool.
// Results keep clause order; tasks never fail the group.
func (o *Orchestrator) evaluateClauses(ctx context.Context, clauses []contracts.Clause, readings []contracts.MeterReading, excused []contracts.OperationalEvent, start, end time.Time) []clauseEval {
	evals := make([]clauseEval, len(clauses))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)
	for i := range clauses {
		i := i
		g.Go(func() error {
			evals[i] = o.evaluateClause(gctx, clauses[i], readings, excused, start, end)
			return nil
		})
	}
	_ = g.Wait()

	return evals
}

func (o *Orchestrator) evaluateClause(ctx context.Context, c contracts.Clause, readings []contracts.MeterReading, excused []contracts.OperationalEvent, start, end time.Time) (ev clauseEval) {
	ev.clause = c

	defer func() {
		if r := recover(); r != nil {
			ev.status = contracts.ClauseFailed
			ev.err = fmt.Errorf("panic: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		ev.status = contracts.ClauseFailed
		ev.err = err
		return ev
	}

	_, span := o.deps.Telemetry.StartSpan(ctx, "engine.evaluateClause",
		attribute.String("clause_id", c.ID),
		attribute.String("category_code", c.CategoryCode),
	)
	defer func() {
		span.SetAttributes(attribute.String("status", string(ev.status)))
		span.End()
	}()

	if c.ParamsErr != nil {
		ev.status = contracts.ClauseFailed
		ev.err = fmt.Errorf("%w: clause %s parameters: %v", contracts.ErrConfiguration, c.ID, c.ParamsErr)
		return ev
	}

	rule, err := o.deps.Registry.Build(c)
	if errors.Is(err, rules.ErrUnsupportedCategory) {
		ev.status = contracts.ClauseSkipped
		ev.err = err
		return ev
	}
	if err != nil {
		ev.status = contracts.ClauseFailed
		ev.err = err
		return ev
	}
	ev.kind = rule.Kind()

	res, err := rule.Evaluate(readings, start, end, excused)
	if err != nil {
		ev.status = contracts.ClauseFailed
		ev.err = fmt.Errorf("clause %s (%s): %w", c.ID, ev.kind, err)
		return ev
	}

	ev.result = res
	ev.status = contracts.ClauseNoBreach
	if res.Breach {
		ev.status = contracts.ClauseBreach
	}
	return ev
}

// recordOutcomes fills result.Evaluations and notes per-clause failures
func (o *Orchestrator) recordOutcomes(evals []clauseEval, result *contracts.EvaluationResult, log zerolog.Logger) {
	for _, ev := range evals {
		out := contracts.ClauseOutcome{
			ClauseID:     ev.clause.ID,
			CategoryCode: ev.clause.CategoryCode,
			RuleType:     string(ev.kind),
			Status:       ev.status,
		}

		switch ev.status {
		case contracts.ClauseSkipped:
			log.Debug().Str("clause_id", ev.clause.ID).Str("category", ev.clause.CategoryCode).Msg("unsupported category, clause skipped")
		case contracts.ClauseFailed:
			out.Error = ev.err.Error()
			if errors.Is(ev.err, contracts.ErrConfiguration) {
				log.Warn().Err(ev.err).Str("clause_id", ev.clause.ID).Msg("clause configuration error")
				result.AddNote("clause %s not evaluated: %v", ev.clause.ID, ev.err)
			} else {
				log.Error().Err(ev.err).Str("clause_id", ev.clause.ID).Msg("clause evaluation failed")
				result.AddNote("clause %s evaluation failed: %v", ev.clause.ID, ev.err)
			}
		default:
			calc, thr := ev.result.CalculatedValue, ev.result.ThresholdValue
			out.CalculatedValue = &calc
			out.ThresholdValue = &thr
		}

		result.Evaluations = append(result.Evaluations, out)
	}
}

// persistBreaches writes each breach in its own transaction.
// A failure for one breach never stops the next.
func (o *Orchestrator) persistBreaches(ctx context.Context, evals []clauseEval, firstEventID string, result *contracts.EvaluationResult, log zerolog.Logger) {
	for i, ev := range evals {
		if ev.status != contracts.ClauseBreach {
			continue
		}

		summary := o.summarize(ev)
		result.LDTotal = result.LDTotal.Add(summary.LDAmount)

		b := o.buildBreach(ev, summary, result, firstEventID)
		persisted, err := o.deps.Store.PersistBreach(ctx, b)
		if err != nil {
			log.Error().
				Err(err).
				Str("clause_id", ev.clause.ID).
				Str("rule_type", string(ev.kind)).
				Str("ld_amount", summary.LDAmount.StringFixed(2)).
				Msg("failed to persist breach")
			result.AddNote("failed to persist breach for clause %s: %v", ev.clause.ID, err)
			result.Breaches = append(result.Breaches, summary)
			continue
		}

		summary.DefaultEventID = persisted.DefaultEventID
		summary.RuleOutputID = persisted.RuleOutputID
		summary.NotificationID = persisted.NotificationID
		summary.Persisted = true
		result.Breaches = append(result.Breaches, summary)
		result.NotificationsGenerated++
		result.Evaluations[i].Status = contracts.ClausePersisted

		b.Notification.ID = persisted.NotificationID
		b.Notification.DefaultEventID = persisted.DefaultEventID
		b.Notification.RuleOutputID = persisted.RuleOutputID
		o.publish(ctx, &b.Notification, result, log)
	}
	result.LDTotal = result.LDTotal.Round(2)
}

// publish announces a committed notification; failure is only a note
func (o *Orchestrator) publish(ctx context.Context, n *contracts.Notification, result *contracts.EvaluationResult, log zerolog.Logger) {
	if o.deps.Publisher == nil {
		return
	}
	if err := o.deps.Publisher.PublishNotification(ctx, n); err != nil {
		log.Warn().Err(err).Str("notification_id", n.ID).Msg("failed to publish notification")
		result.AddNote("notification %s stored but not published: %v", n.ID, err)
	}
}

// abort clears the breach list after a run-level failure
func abort(result *contracts.EvaluationResult, note string) {
	persisted := result.PersistedCount()
	result.Breaches = []contracts.BreachSummary{}
	result.LDTotal = ld.Zero()
	if persisted > 0 {
		note = fmt.Sprintf("%s (%d breach record(s) already stored)", note, persisted)
	}
	result.AddNote("%s", note)
}
