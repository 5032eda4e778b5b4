// Package checkpoint persists orchestrator state, milestone metrics, and
// abort reports as JSON documents under a per-run directory.
package checkpoint

import (
	"time"

	"github.com/amapiano-ml/trainwatch/pkg/decision"
)

// Record is the durable snapshot of a training run. One record describes
// the run's progress at the moment it was written; the newest record on
// disk is the resume point.
type Record struct {
	RunID            string    `json:"run_id"`
	Timestamp        time.Time `json:"timestamp"`
	CurrentEpoch     int       `json:"current_epoch"`
	GlobalStep       int64     `json:"global_step"`
	BestValLoss      float64   `json:"best_val_loss"`
	StartedAt        time.Time `json:"started_at"`
	ElapsedSeconds   float64   `json:"elapsed_seconds"`
	Interrupted      bool      `json:"interrupted"`
	MilestoneDecided bool      `json:"milestone_decided"`

	// Milestone holds the metrics captured at evaluation time.
	// Nil until the milestone has fired.
	Milestone *decision.MilestoneMetrics `json:"milestone,omitempty"`
}

// AbortReport is written when a run stops on a NO_GO decision. It
// records what failed and the recommended path forward so the report
// stands alone without the run's logs.
type AbortReport struct {
	Timestamp         time.Time                 `json:"abort_timestamp"`
	Reason            string                    `json:"reason"`
	Failures          []string                  `json:"failures"`
	Metrics           decision.MilestoneMetrics `json:"metrics"`
	Recommendation    string                    `json:"recommendation"`
	EstimatedTimeline string                    `json:"estimated_phase_3_timeline"`
	EstimatedCost     string                    `json:"estimated_phase_3_cost"`
}

// Fixed guidance embedded in every abort report.
const (
	AbortRecommendation     = "Escalate to Phase 3: Full Amapiano dataset collection"
	EstimatedPhase3Timeline = "7 months"
	EstimatedPhase3Cost     = "$85,000 - $185,000"
)
