package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/ldwatch/internal/contracts"
	"github.com/wonny/ldwatch/internal/engine"
	"github.com/wonny/ldwatch/pkg/logger"
)

// ContractRunner evaluates one contract/period under the run lock
type ContractRunner interface {
	Run(ctx context.Context, contractID string, start, end time.Time) (*contracts.EvaluationResult, error)
}

// MonthlyComplianceJob evaluates every active contract for the previous calendar month
type MonthlyComplianceJob struct {
	contracts contracts.ContractLister
	runner    ContractRunner
	schedule  string
	loc       *time.Location
	now       func() time.Time
	logger    *logger.Logger
}

// NewMonthlyComplianceJob creates a new monthly compliance job
func NewMonthlyComplianceJob(lister contracts.ContractLister, runner ContractRunner, schedule string, loc *time.Location, log *logger.Logger) *MonthlyComplianceJob {
	if loc == nil {
		loc = time.UTC
	}
	return &MonthlyComplianceJob{
		contracts: lister,
		runner:    runner,
		schedule:  schedule,
		loc:       loc,
		now:       time.Now,
		logger:    log,
	}
}

// Name returns the job name
func (j *MonthlyComplianceJob) Name() string {
	return "monthly_compliance"
}

// Schedule returns the cron schedule (default 06:00 on the 1st)
func (j *MonthlyComplianceJob) Schedule() string {
	return j.schedule
}

// PreviousMonth returns [first of last month, first of this month) in loc
func PreviousMonth(now time.Time, loc *time.Location) (time.Time, time.Time) {
	now = now.In(loc)
	end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	return end.AddDate(0, -1, 0), end
}

// Run executes the monthly evaluation.
// Only the contract listing can fail the job; per-contract errors are logged
// so a retry never re-evaluates contracts that already produced records.
func (j *MonthlyComplianceJob) Run(ctx context.Context) error {
	start, end := PreviousMonth(j.now(), j.loc)

	ids, err := j.contracts.ListActiveContracts(ctx, start)
	if err != nil {
		return fmt.Errorf("list active contracts: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"contracts":    len(ids),
		"period_start": start.Format("2006-01-02"),
		"period_end":   end.Format("2006-01-02"),
	}).Info("Starting monthly compliance evaluation")

	var evaluated, skipped, failed, breaches int
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		result, err := j.runner.Run(ctx, id, start, end)
		switch {
		case errors.Is(err, engine.ErrRunInProgress):
			skipped++
			j.logger.WithField("contract_id", id).Warn("Evaluation already running, skipped")
			continue
		case err != nil:
			failed++
			j.logger.WithError(err).WithField("contract_id", id).Error("Evaluation could not start")
			continue
		}

		evaluated++
		breaches += result.BreachCount()
		j.logger.WithFields(map[string]interface{}{
			"contract_id": id,
			"breaches":    result.BreachCount(),
			"ld_total":    result.LDTotal.StringFixed(2),
			"notes":       len(result.ProcessingNotes),
		}).Info("Contract evaluated")
	}

	j.logger.WithFields(map[string]interface{}{
		"evaluated": evaluated,
		"skipped":   skipped,
		"failed":    failed,
		"breaches":  breaches,
	}).Info("Monthly compliance evaluation completed")

	return nil
}
