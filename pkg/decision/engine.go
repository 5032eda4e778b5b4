// Package decision implements the milestone Go/No-Go policy.
//
// Decide is a pure function: it has no side effects and identical inputs
// always produce identical results. All applicable failure reasons are
// collected rather than short-circuiting on the first.
package decision

import "fmt"

// Decision is the ternary outcome of a milestone evaluation.
//
// NOTE: These values are persisted in milestone artifacts and are part of
// the stable on-disk contract.
type Decision string

const (
	Go            Decision = "GO"
	ConditionalGo Decision = "CONDITIONAL_GO"
	NoGo          Decision = "NO_GO"
)

// Thresholds are the hard limits a run must stay inside at the milestone.
type Thresholds struct {
	// MinAuthenticityScore is the minimum acceptable authenticity proxy,
	// in [0, 1].
	MinAuthenticityScore float64 `json:"min_authenticity_score" yaml:"min_authenticity_score"`

	// MaxCostUSD is the spend ceiling for the run.
	MaxCostUSD float64 `json:"max_cost_usd" yaml:"max_cost_usd"`

	// MaxValLoss is the highest acceptable best validation loss.
	MaxValLoss float64 `json:"max_val_loss" yaml:"max_val_loss"`
}

// MilestoneMetrics is the immutable snapshot a decision is derived from.
// It is created once per run and persisted the moment it is built.
type MilestoneMetrics struct {
	RunID        string  `json:"run_id,omitempty"`
	ElapsedDays  float64 `json:"elapsed_days"`
	ElapsedHours float64 `json:"elapsed_hours"`
	CostUSD      float64 `json:"cost_usd"`
	CurrentEpoch int     `json:"current_epoch"`
	BestValLoss  float64 `json:"best_val_loss"`
	Authenticity float64 `json:"estimated_authenticity"`
	GlobalStep   int64   `json:"global_step"`
}

// Result is a decision together with the ordered reasons behind it.
type Result struct {
	Decision Decision `json:"decision"`

	// Failures are the conditions that forced NO_GO. Empty otherwise.
	Failures []string `json:"failures,omitempty"`

	// Warnings are borderline conditions that produced CONDITIONAL_GO.
	// Only populated when the corresponding failure did not fire.
	Warnings []string `json:"warnings,omitempty"`
}

// AuthenticityWarningMargin is the band above the minimum authenticity
// threshold that still counts as borderline.
const AuthenticityWarningMargin = 0.05

// CostWarningFraction is the share of the cost budget above which spend
// counts as approaching the limit.
const CostWarningFraction = 0.8

// Decide maps a milestone snapshot and thresholds to a decision.
//
// Any failure forces NO_GO regardless of warnings. Warnings are only
// evaluated for conditions whose failure did not hold. No failures and no
// warnings yields GO.
func Decide(m MilestoneMetrics, t Thresholds) Result {
	var failures, warnings []string

	if m.Authenticity < t.MinAuthenticityScore {
		failures = append(failures, fmt.Sprintf(
			"authenticity %.1f%% < %.1f%% minimum threshold",
			m.Authenticity*100, t.MinAuthenticityScore*100))
	} else if m.Authenticity < t.MinAuthenticityScore+AuthenticityWarningMargin {
		warnings = append(warnings, fmt.Sprintf(
			"authenticity %.1f%% borderline, within %.0f points of the %.1f%% minimum",
			m.Authenticity*100, AuthenticityWarningMargin*100, t.MinAuthenticityScore*100))
	}

	if m.CostUSD > t.MaxCostUSD {
		failures = append(failures, fmt.Sprintf(
			"cost $%.2f > $%.2f budget", m.CostUSD, t.MaxCostUSD))
	} else if m.CostUSD > t.MaxCostUSD*CostWarningFraction {
		warnings = append(warnings, fmt.Sprintf(
			"cost $%.2f approaching budget limit of $%.2f", m.CostUSD, t.MaxCostUSD))
	}

	if m.BestValLoss > t.MaxValLoss {
		failures = append(failures, fmt.Sprintf(
			"val loss %.4f > %.4f threshold", m.BestValLoss, t.MaxValLoss))
	}

	switch {
	case len(failures) > 0:
		return Result{Decision: NoGo, Failures: failures}
	case len(warnings) > 0:
		return Result{Decision: ConditionalGo, Warnings: warnings}
	default:
		return Result{Decision: Go}
	}
}
