// Package orchestrator supervises a training run end to end: it spawns
// the training process, folds parsed metrics into run state, bills
// elapsed GPU time, fires the milestone evaluation, and checkpoints
// progress so an interrupted run can resume.
package orchestrator

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amapiano-ml/trainwatch/pkg/checkpoint"
	"github.com/amapiano-ml/trainwatch/pkg/costing"
	"github.com/amapiano-ml/trainwatch/pkg/decision"
	"github.com/amapiano-ml/trainwatch/pkg/metrics"
	"github.com/amapiano-ml/trainwatch/pkg/milestone"
	"github.com/amapiano-ml/trainwatch/pkg/supervisor"
	"github.com/amapiano-ml/trainwatch/pkg/trainconfig"
)

// Outcome classifies how a supervised run ended.
type Outcome string

const (
	OutcomeCompleted   Outcome = "COMPLETED"
	OutcomeEscalated   Outcome = "ESCALATED"
	OutcomeFailed      Outcome = "FAILED"
	OutcomeInterrupted Outcome = "INTERRUPTED"
)

// ErrEscalationRequired is returned when the milestone decided NO_GO
// and the run was aborted with a written report.
var ErrEscalationRequired = errors.New("milestone decided NO_GO, escalation required")

// errAbortNoGo stops the supervisor from inside a hook.
var errAbortNoGo = errors.New("abort on NO_GO")

// Config configures an orchestrated run.
type Config struct {
	// RunID identifies the run. Empty generates a fresh UUID.
	RunID string

	// Train is the validated training configuration. Required.
	Train *trainconfig.Config

	// Checkpoints persists run state. Required.
	Checkpoints *checkpoint.Store

	// Sink receives metric observations. Nil disables emission.
	Sink metrics.Sink

	// Echo receives a copy of the training process output. Nil
	// disables echoing.
	Echo io.Writer

	// Resume is a prior run record to continue from. Nil starts fresh.
	Resume *checkpoint.Record

	// TickInterval overrides the supervision tick used for periodic
	// checkpoints and milestone checks.
	TickInterval time.Duration

	// Scorer overrides the authenticity estimate. Nil uses the loss
	// proxy.
	Scorer decision.Scorer

	// Clock overrides the wall clock.
	Clock func() time.Time

	Logger *zap.Logger
}

// Orchestrator runs one training job under supervision.
type Orchestrator struct {
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time
	state      *TrainingState
	accountant *costing.Accountant
	evaluator  *milestone.Evaluator
	milestone  *decision.MilestoneMetrics
	snap       atomic.Pointer[Snapshot]
}

// New validates the configuration and prepares a run.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Train == nil {
		return nil, errors.New("orchestrator: training config is required")
	}
	if err := cfg.Train.Validate(); err != nil {
		return nil, err
	}
	if cfg.Checkpoints == nil {
		return nil, errors.New("orchestrator: checkpoint store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	runID := cfg.RunID
	startedAt := now().UTC()
	var resumed *checkpoint.Record
	if cfg.Resume != nil {
		resumed = cfg.Resume
		runID = resumed.RunID
		startedAt = resumed.StartedAt
	}
	if runID == "" {
		runID = uuid.New().String()
	}

	state := NewState(runID, startedAt)
	if resumed != nil {
		state.CurrentEpoch = resumed.CurrentEpoch
		state.GlobalStep = resumed.GlobalStep
		if resumed.BestValLoss > 0 {
			state.BestValLoss = resumed.BestValLoss
		}
		state.MilestoneDecided = resumed.MilestoneDecided
	}

	acct := costing.New(cfg.Train.GPUCostPerHour, startedAt).WithClock(now)

	eval := milestone.New(runID, cfg.Train.MilestoneThresholdDays, cfg.Train.Thresholds, acct, cfg.Checkpoints, logger)
	if cfg.Scorer != nil {
		eval = eval.WithScorer(cfg.Scorer)
	}
	if state.MilestoneDecided {
		eval = eval.WithDecided()
	}

	o := &Orchestrator{
		cfg:        cfg,
		logger:     logger,
		now:        now,
		state:      state,
		accountant: acct,
		evaluator:  eval,
	}
	if resumed != nil {
		o.milestone = resumed.Milestone
	}
	o.publishSnapshot()
	return o, nil
}

// RunID returns the identifier of the supervised run.
func (o *Orchestrator) RunID() string {
	return o.state.RunID
}

// Snapshot returns the most recently published state snapshot. Safe to
// call from any goroutine.
func (o *Orchestrator) Snapshot() *Snapshot {
	return o.snap.Load()
}

// Run supervises the training process to completion. It returns the
// outcome and, for escalation and failure, the error describing it.
func (o *Orchestrator) Run(ctx context.Context) (Outcome, error) {
	o.logBanner()

	configJSON, err := o.cfg.Train.Serialize()
	if err != nil {
		return OutcomeFailed, err
	}

	sup, err := supervisor.New(supervisor.Config{
		Command:      o.cfg.Train.TrainingCommand,
		ConfigJSON:   string(configJSON),
		Echo:         o.cfg.Echo,
		TickInterval: o.cfg.TickInterval,
		Logger:       o.logger,
	})
	if err != nil {
		return OutcomeFailed, err
	}

	runErr := sup.Run(ctx, supervisor.Hooks{
		OnLine: o.handleLine,
		OnTick: o.handleTick,
	})

	switch {
	case runErr == nil:
		if err := o.saveCheckpoint(false); err != nil {
			o.logger.Warn("final checkpoint save failed", zap.Error(err))
		}
		o.logger.Info("training run completed",
			zap.String("run_id", o.state.RunID),
			zap.Float64("cost_usd", o.accountant.CostSoFar()))
		return OutcomeCompleted, nil

	case errors.Is(runErr, errAbortNoGo):
		return OutcomeEscalated, ErrEscalationRequired

	case errors.Is(runErr, supervisor.ErrInterrupted):
		if err := o.saveCheckpoint(true); err != nil {
			o.logger.Warn("interrupt checkpoint save failed", zap.Error(err))
		}
		o.logger.Info("training run interrupted, state saved",
			zap.String("run_id", o.state.RunID),
			zap.Int64("global_step", o.state.GlobalStep))
		return OutcomeInterrupted, nil

	default:
		if err := o.saveCheckpoint(false); err != nil {
			o.logger.Warn("checkpoint save after failure failed", zap.Error(err))
		}
		return OutcomeFailed, runErr
	}
}

// handleLine parses one training output line, folds any metrics update
// into the state, forwards observations, and checks the milestone.
func (o *Orchestrator) handleLine(line string) error {
	update := metrics.ParseLine(line)
	if !update.Empty() {
		o.state.ObserveUpdate(update)
		o.emitObservations(update)
		o.publishSnapshot()
	}
	return o.checkMilestone()
}

// handleTick saves a periodic checkpoint and checks the milestone, so
// a quiet training process still gets billed and evaluated on time.
func (o *Orchestrator) handleTick() error {
	if err := o.saveCheckpoint(false); err != nil {
		o.logger.Warn("periodic checkpoint save failed", zap.Error(err))
	}
	o.publishSnapshot()
	return o.checkMilestone()
}

func (o *Orchestrator) emitObservations(update metrics.Update) {
	if o.cfg.Sink == nil {
		return
	}
	at := o.now().UTC()
	if update.TrainLoss != nil {
		o.observe(metrics.Observation{
			Step:  o.state.GlobalStep,
			Name:  metrics.NameTrainLoss,
			Value: *update.TrainLoss,
			At:    at,
		})
	}
	if update.ValLoss != nil {
		o.observe(metrics.Observation{
			Step:  o.state.GlobalStep,
			Name:  metrics.NameValLoss,
			Value: *update.ValLoss,
			At:    at,
		})
	}
}

func (o *Orchestrator) observe(obs metrics.Observation) {
	if err := o.cfg.Sink.Observe(context.Background(), obs); err != nil {
		o.logger.Warn("metrics sink observe failed",
			zap.String("name", obs.Name),
			zap.Error(err))
	}
}

// checkMilestone asks the evaluator whether the decision is due. A
// NO_GO decision writes the abort report and stops the run; GO and
// CONDITIONAL_GO let training continue.
func (o *Orchestrator) checkMilestone() error {
	out, err := o.evaluator.Check(context.Background(), milestone.Progress{
		Epoch:       o.state.CurrentEpoch,
		Step:        o.state.GlobalStep,
		BestValLoss: o.state.BestValLoss,
	})
	if err != nil {
		o.logger.Warn("milestone check failed, will retry", zap.Error(err))
		return nil
	}
	if !out.Fired {
		return nil
	}

	o.state.MilestoneDecided = true
	o.state.Decision = string(out.Result.Decision)
	o.milestone = &out.Metrics
	o.publishSnapshot()

	if err := o.saveCheckpoint(false); err != nil {
		o.logger.Warn("milestone checkpoint save failed", zap.Error(err))
	}

	if out.Result.Decision != decision.NoGo {
		for _, w := range out.Result.Warnings {
			o.logger.Warn("milestone warning", zap.String("warning", w))
		}
		return nil
	}

	report := o.evaluator.AbortReportFor(out, o.now())
	if err := o.cfg.Checkpoints.WriteAbortReport(context.Background(), o.state.RunID, report); err != nil {
		o.logger.Error("abort report write failed", zap.Error(err))
	}
	o.logger.Error("milestone decided NO_GO, aborting training",
		zap.String("run_id", o.state.RunID),
		zap.Strings("failures", out.Result.Failures))
	return errAbortNoGo
}

func (o *Orchestrator) saveCheckpoint(interrupted bool) error {
	rec := &checkpoint.Record{
		RunID:            o.state.RunID,
		Timestamp:        o.now().UTC(),
		CurrentEpoch:     o.state.CurrentEpoch,
		GlobalStep:       o.state.GlobalStep,
		StartedAt:        o.state.StartedAt,
		ElapsedSeconds:   o.accountant.ElapsedHours() * 3600,
		Interrupted:      interrupted,
		MilestoneDecided: o.state.MilestoneDecided,
		Milestone:        o.milestone,
	}
	if o.state.HasValLoss() {
		rec.BestValLoss = o.state.BestValLoss
	}
	return o.cfg.Checkpoints.Save(context.Background(), rec)
}

func (o *Orchestrator) publishSnapshot() {
	o.snap.Store(o.state.snapshot(o.accountant.ElapsedHours(), o.accountant.CostSoFar()))
}

func (o *Orchestrator) logBanner() {
	t := o.cfg.Train
	o.logger.Info("amapiano fine-tuning orchestrator",
		zap.String("run_id", o.state.RunID),
		zap.String("model", t.ModelName),
		zap.String("dataset_dir", t.DatasetDir),
		zap.Float64("gpu_cost_per_hour", t.GPUCostPerHour),
		zap.Float64("milestone_threshold_days", t.MilestoneThresholdDays),
		zap.Float64("min_authenticity", t.Thresholds.MinAuthenticityScore),
		zap.Float64("max_cost_usd", t.Thresholds.MaxCostUSD),
		zap.Float64("max_val_loss", t.Thresholds.MaxValLoss),
		zap.Time("started_at", o.state.StartedAt))
}
