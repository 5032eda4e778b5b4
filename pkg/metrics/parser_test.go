package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine_FullLine(t *testing.T) {
	u := ParseLine("Epoch 5/20 | Step 1500 | Loss: 2.345 | Val Loss: 2.567")

	require.NotNil(t, u.Epoch)
	assert.Equal(t, 5, *u.Epoch)
	require.NotNil(t, u.Step)
	assert.Equal(t, int64(1500), *u.Step)
	require.NotNil(t, u.TrainLoss)
	assert.Equal(t, 2.345, *u.TrainLoss)
	require.NotNil(t, u.ValLoss)
	assert.Equal(t, 2.567, *u.ValLoss)
}

func TestParseLine_PartialSegments(t *testing.T) {
	u := ParseLine("Epoch 3/20 | Step 900")

	require.NotNil(t, u.Epoch)
	assert.Equal(t, 3, *u.Epoch)
	require.NotNil(t, u.Step)
	assert.Equal(t, int64(900), *u.Step)
	assert.Nil(t, u.TrainLoss)
	assert.Nil(t, u.ValLoss)
}

func TestParseLine_MalformedSegmentsIgnored(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty line", ""},
		{"plain chatter", "Loading dataset with 5000 valid clips"},
		{"epoch without number", "Epoch banana | Step 100"},
		{"step without number", "Step q"},
		{"loss without value", "Val Loss: "},
		{"loss not numeric", "Val Loss: NaN-ish-text"},
		{"separator only", "|||"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := ParseLine(tt.line)
			// Some segments may extract and others not; malformed ones
			// must simply be absent, never panic or error.
			_ = u
		})
	}
}

func TestParseLine_MalformedStepStillExtractsValLoss(t *testing.T) {
	u := ParseLine("Step ??? | Val Loss: 1.25")

	assert.Nil(t, u.Step)
	require.NotNil(t, u.ValLoss)
	assert.Equal(t, 1.25, *u.ValLoss)
}

func TestParseLine_ValLossNotMistakenForTrainLoss(t *testing.T) {
	u := ParseLine("Val Loss: 3.1")

	assert.Nil(t, u.TrainLoss)
	require.NotNil(t, u.ValLoss)
	assert.Equal(t, 3.1, *u.ValLoss)
}

func TestParseLine_Empty(t *testing.T) {
	assert.True(t, ParseLine("some unrelated log output").Empty())
	assert.False(t, ParseLine("Step 5").Empty())
}
