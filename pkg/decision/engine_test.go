package decision

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testThresholds = Thresholds{
	MinAuthenticityScore: 0.35,
	MaxCostUSD:           600,
	MaxValLoss:           3.5,
}

func TestDecide_NoGoOnLowAuthenticity(t *testing.T) {
	m := MilestoneMetrics{
		Authenticity: 0.30,
		CostUSD:      500,
		BestValLoss:  3.0,
	}

	res := Decide(m, testThresholds)

	assert.Equal(t, NoGo, res.Decision)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0], "authenticity")
	assert.Empty(t, res.Warnings)
}

func TestDecide_ConditionalGoOnCostWarning(t *testing.T) {
	m := MilestoneMetrics{
		Authenticity: 0.50,
		CostUSD:      550, // above 80% of 600
		BestValLoss:  2.0,
	}

	res := Decide(m, testThresholds)

	assert.Equal(t, ConditionalGo, res.Decision)
	assert.Empty(t, res.Failures)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "approaching budget")
}

func TestDecide_Go(t *testing.T) {
	m := MilestoneMetrics{
		Authenticity: 0.60,
		CostUSD:      100,
		BestValLoss:  1.5,
	}

	res := Decide(m, testThresholds)

	assert.Equal(t, Go, res.Decision)
	assert.Empty(t, res.Failures)
	assert.Empty(t, res.Warnings)
}

func TestDecide_CollectsAllFailures(t *testing.T) {
	m := MilestoneMetrics{
		Authenticity: 0.10,
		CostUSD:      700,
		BestValLoss:  4.2,
	}

	res := Decide(m, testThresholds)

	assert.Equal(t, NoGo, res.Decision)
	require.Len(t, res.Failures, 3)
	joined := strings.Join(res.Failures, "; ")
	assert.Contains(t, joined, "authenticity")
	assert.Contains(t, joined, "budget")
	assert.Contains(t, joined, "val loss")
}

func TestDecide_FailureOverridesWarning(t *testing.T) {
	// Cost is in warning territory but val loss fails: the failure wins
	// and no warnings are reported.
	m := MilestoneMetrics{
		Authenticity: 0.60,
		CostUSD:      550,
		BestValLoss:  4.0,
	}

	res := Decide(m, testThresholds)

	assert.Equal(t, NoGo, res.Decision)
	assert.NotEmpty(t, res.Failures)
	assert.Empty(t, res.Warnings)
}

func TestDecide_AuthenticityBorderlineWarns(t *testing.T) {
	m := MilestoneMetrics{
		Authenticity: 0.37, // within 5 points above 0.35
		CostUSD:      100,
		BestValLoss:  1.0,
	}

	res := Decide(m, testThresholds)

	assert.Equal(t, ConditionalGo, res.Decision)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "borderline")
}

func TestDecide_Pure(t *testing.T) {
	m := MilestoneMetrics{
		Authenticity: 0.30,
		CostUSD:      650,
		BestValLoss:  3.9,
	}

	first := Decide(m, testThresholds)
	second := Decide(m, testThresholds)

	assert.Equal(t, first, second)
}

func TestLossProxyScorer(t *testing.T) {
	tests := []struct {
		name string
		loss float64
		want float64
	}{
		{"typical loss", 3.5, 0.65},
		{"zero loss", 0, 1},
		{"huge loss clamps to zero", 42, 0},
		{"negative loss clamps to one", -5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LossProxyScorer(tt.loss)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("LossProxyScorer(%v) = %v, want %v", tt.loss, got, tt.want)
			}
		})
	}
}
