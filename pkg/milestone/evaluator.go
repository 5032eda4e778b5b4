// Package milestone fires the time-boxed Go/No-Go evaluation for a
// training run. The evaluation happens at most once per run: once a
// decision is recorded it is never re-evaluated, even across resumes.
package milestone

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/amapiano-ml/trainwatch/pkg/checkpoint"
	"github.com/amapiano-ml/trainwatch/pkg/costing"
	"github.com/amapiano-ml/trainwatch/pkg/decision"
)

// State describes where the evaluator is in its lifecycle.
type State string

const (
	StatePending    State = "PENDING"
	StateEvaluating State = "EVALUATING"
	StateDecided    State = "DECIDED"
)

// Progress is the training progress snapshot the evaluator reads at
// check time.
type Progress struct {
	Epoch       int
	Step        int64
	BestValLoss float64
}

// UnobservedValLoss stands in for the best validation loss when a run
// reaches the milestone without a single validation pass. It is finite
// so the metrics snapshot stays serializable, high enough to fail any
// sane loss threshold, and scores zero authenticity.
const UnobservedValLoss = 999.0

// Outcome is the result of a single Check call. Fired is true only for
// the one call that performed the evaluation.
type Outcome struct {
	Fired   bool
	Result  decision.Result
	Metrics decision.MilestoneMetrics
}

// Evaluator owns the milestone lifecycle for one run. It is not safe
// for concurrent use; the orchestrator calls it from its event loop.
type Evaluator struct {
	runID         string
	thresholdDays float64
	thresholds    decision.Thresholds
	scorer        decision.Scorer
	accountant    *costing.Accountant
	store         *checkpoint.Store
	logger        *zap.Logger

	state State
}

// New creates an evaluator in the PENDING state.
func New(runID string, thresholdDays float64, thresholds decision.Thresholds, acct *costing.Accountant, store *checkpoint.Store, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		runID:         runID,
		thresholdDays: thresholdDays,
		thresholds:    thresholds,
		scorer:        decision.LossProxyScorer,
		accountant:    acct,
		store:         store,
		logger:        logger,
		state:         StatePending,
	}
}

// WithScorer replaces the authenticity scorer. Used when a better
// estimate than the loss proxy is available.
func (e *Evaluator) WithScorer(s decision.Scorer) *Evaluator {
	if s != nil {
		e.scorer = s
	}
	return e
}

// WithDecided marks the milestone as already evaluated. Used on resume
// so a restarted run never re-fires its decision.
func (e *Evaluator) WithDecided() *Evaluator {
	e.state = StateDecided
	return e
}

// State reports the evaluator's current lifecycle state.
func (e *Evaluator) State() State {
	return e.state
}

// Check evaluates the milestone if its time threshold has been reached.
// Before the threshold, or after a decision has been made, it returns an
// Outcome with Fired false. A persistence failure leaves the evaluator
// PENDING so the next check retries; the decision itself is only
// recorded after the metrics snapshot is durably written.
func (e *Evaluator) Check(ctx context.Context, p Progress) (*Outcome, error) {
	if e.state == StateDecided {
		return &Outcome{}, nil
	}

	elapsedDays := e.accountant.ElapsedDays()
	if elapsedDays < e.thresholdDays {
		return &Outcome{}, nil
	}

	e.state = StateEvaluating
	e.logger.Info("milestone threshold reached, evaluating",
		zap.String("run_id", e.runID),
		zap.Float64("elapsed_days", elapsedDays),
		zap.Float64("threshold_days", e.thresholdDays))

	bestValLoss := p.BestValLoss
	if math.IsInf(bestValLoss, 1) || math.IsNaN(bestValLoss) {
		bestValLoss = UnobservedValLoss
	}

	metrics := decision.MilestoneMetrics{
		RunID:        e.runID,
		ElapsedDays:  elapsedDays,
		ElapsedHours: e.accountant.ElapsedHours(),
		CostUSD:      e.accountant.CostSoFar(),
		CurrentEpoch: p.Epoch,
		BestValLoss:  bestValLoss,
		Authenticity: e.scorer(bestValLoss),
		GlobalStep:   p.Step,
	}

	if err := e.store.SaveMilestone(ctx, e.runID, &metrics); err != nil {
		e.state = StatePending
		return nil, fmt.Errorf("persist milestone metrics: %w", err)
	}

	result := decision.Decide(metrics, e.thresholds)
	e.state = StateDecided

	e.logger.Info("milestone decision",
		zap.String("run_id", e.runID),
		zap.String("decision", string(result.Decision)),
		zap.Strings("failures", result.Failures),
		zap.Strings("warnings", result.Warnings),
		zap.Float64("authenticity", metrics.Authenticity),
		zap.Float64("cost_usd", metrics.CostUSD),
		zap.Float64("best_val_loss", metrics.BestValLoss))

	return &Outcome{Fired: true, Result: result, Metrics: metrics}, nil
}

// AbortReportFor builds the abort report for a NO_GO outcome.
func (e *Evaluator) AbortReportFor(out *Outcome, now time.Time) *checkpoint.AbortReport {
	return &checkpoint.AbortReport{
		Timestamp:         now.UTC(),
		Reason:            fmt.Sprintf("%.0f-day milestone evaluation failed", e.thresholdDays),
		Failures:          out.Result.Failures,
		Metrics:           out.Metrics,
		Recommendation:    checkpoint.AbortRecommendation,
		EstimatedTimeline: checkpoint.EstimatedPhase3Timeline,
		EstimatedCost:     checkpoint.EstimatedPhase3Cost,
	}
}
