package orchestrator

import (
	"math"
	"time"

	"github.com/amapiano-ml/trainwatch/pkg/metrics"
)

// TrainingState tracks run progress as parsed from the training
// process's output. It is owned by the orchestrator's event loop and
// never accessed concurrently; concurrent readers get a Snapshot.
type TrainingState struct {
	RunID            string
	CurrentEpoch     int
	GlobalStep       int64
	BestValLoss      float64
	StartedAt        time.Time
	MilestoneDecided bool
	Decision         string
}

// NewState creates state for a fresh run. BestValLoss starts at +Inf
// so the first observed validation loss always becomes the best.
func NewState(runID string, startedAt time.Time) *TrainingState {
	return &TrainingState{
		RunID:       runID,
		StartedAt:   startedAt,
		BestValLoss: math.Inf(1),
	}
}

// ObserveUpdate folds a parsed metrics update into the state. Epoch and
// step move forward to whatever the training process last reported;
// validation loss is min-tracked.
func (s *TrainingState) ObserveUpdate(u metrics.Update) {
	if u.Epoch != nil {
		s.CurrentEpoch = *u.Epoch
	}
	if u.Step != nil {
		s.GlobalStep = *u.Step
	}
	if u.ValLoss != nil && *u.ValLoss < s.BestValLoss {
		s.BestValLoss = *u.ValLoss
	}
}

// HasValLoss reports whether any validation loss has been observed.
func (s *TrainingState) HasValLoss() bool {
	return !math.IsInf(s.BestValLoss, 1)
}

// Snapshot is an immutable copy of the training state safe to hand to
// other goroutines. BestValLoss is nil until a validation loss has been
// seen, keeping the JSON form free of non-finite numbers.
type Snapshot struct {
	RunID            string    `json:"run_id"`
	CurrentEpoch     int       `json:"current_epoch"`
	GlobalStep       int64     `json:"global_step"`
	BestValLoss      *float64  `json:"best_val_loss,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	ElapsedHours     float64   `json:"elapsed_hours"`
	CostUSD          float64   `json:"cost_usd"`
	MilestoneDecided bool      `json:"milestone_decided"`
	Decision         string    `json:"decision,omitempty"`
}

func (s *TrainingState) snapshot(elapsedHours, costUSD float64) *Snapshot {
	snap := &Snapshot{
		RunID:            s.RunID,
		CurrentEpoch:     s.CurrentEpoch,
		GlobalStep:       s.GlobalStep,
		StartedAt:        s.StartedAt,
		ElapsedHours:     elapsedHours,
		CostUSD:          costUSD,
		MilestoneDecided: s.MilestoneDecided,
		Decision:         s.Decision,
	}
	if s.HasValLoss() {
		v := s.BestValLoss
		snap.BestValLoss = &v
	}
	return snap
}
