// Package trainconfig provides loading and validation of training run
// configuration.
//
// A training config is a YAML or JSON file whose recognized keys are the
// fields below. Unspecified keys fall back to built-in defaults; unknown
// keys are ignored. The config is validated once at load time, before any
// cost is incurred or process spawned.
//
// Example config (YAML):
//
//	model_name: facebook/musicgen-small
//	dataset_dir: ./datasets/amapiano_proxy
//	checkpoint_dir: ./checkpoints/phase_2_5
//	batch_size: 8
//	num_epochs: 20
//	gpu_cost_per_hour: 1.30
//	milestone_threshold_days: 35
//	thresholds:
//	  min_authenticity_score: 0.35
//	  max_cost_usd: 600
//	  max_val_loss: 3.5
package trainconfig

import (
	"fmt"

	"github.com/amapiano-ml/trainwatch/pkg/decision"
)

// Config is the immutable configuration of a supervised training run.
type Config struct {
	// ModelName is the base model identifier handed to the training job.
	ModelName string `json:"model_name" yaml:"model_name"`

	// DatasetDir is the training dataset location.
	DatasetDir string `json:"dataset_dir" yaml:"dataset_dir"`

	// CheckpointDir is where orchestrator state, milestone metrics and
	// abort reports are persisted.
	CheckpointDir string `json:"checkpoint_dir" yaml:"checkpoint_dir"`

	// MetricsDir is the local metrics sink location (JSONL records and
	// the observation history database).
	MetricsDir string `json:"metrics_dir" yaml:"metrics_dir"`

	// TrainingCommand is the argv of the external training job. The
	// serialized config is appended as `--config <json>`.
	TrainingCommand []string `json:"training_command" yaml:"training_command"`

	BatchSize                 int     `json:"batch_size" yaml:"batch_size"`
	LearningRate              float64 `json:"learning_rate" yaml:"learning_rate"`
	NumEpochs                 int     `json:"num_epochs" yaml:"num_epochs"`
	GradientAccumulationSteps int     `json:"gradient_accumulation_steps" yaml:"gradient_accumulation_steps"`
	WarmupSteps               int     `json:"warmup_steps" yaml:"warmup_steps"`
	SaveEveryNSteps           int     `json:"save_every_n_steps" yaml:"save_every_n_steps"`
	EvalEveryNSteps           int     `json:"eval_every_n_steps" yaml:"eval_every_n_steps"`

	// GPUCostPerHour is the hourly rate used for cost accounting.
	GPUCostPerHour float64 `json:"gpu_cost_per_hour" yaml:"gpu_cost_per_hour"`

	// MilestoneThresholdDays is the elapsed-time gate at which the
	// Go/No-Go decision fires, once per run.
	MilestoneThresholdDays float64 `json:"milestone_threshold_days" yaml:"milestone_threshold_days"`

	// Thresholds are the Go/No-Go limits evaluated at the milestone.
	Thresholds decision.Thresholds `json:"thresholds" yaml:"thresholds"`
}

// Default values for optional configuration fields.
const (
	DefaultModelName     = "facebook/musicgen-small"
	DefaultDatasetDir    = "./datasets/amapiano_proxy"
	DefaultCheckpointDir = "./checkpoints/phase_2_5"
	DefaultMetricsDir    = "./runs/phase_2_5"

	DefaultBatchSize                 = 8
	DefaultLearningRate              = 1e-5
	DefaultNumEpochs                 = 20
	DefaultGradientAccumulationSteps = 4
	DefaultWarmupSteps               = 500
	DefaultSaveEveryNSteps           = 1000
	DefaultEvalEveryNSteps           = 500

	// DefaultGPUCostPerHour is the g4dn.xlarge on-demand rate.
	DefaultGPUCostPerHour = 1.30

	DefaultMilestoneThresholdDays = 35

	DefaultMinAuthenticityScore = 0.35
	DefaultMaxCostUSD           = 600
	DefaultMaxValLoss           = 3.5
)

// Default returns a config populated with every built-in default.
func Default() *Config {
	return &Config{
		ModelName:                 DefaultModelName,
		DatasetDir:                DefaultDatasetDir,
		CheckpointDir:             DefaultCheckpointDir,
		MetricsDir:                DefaultMetricsDir,
		TrainingCommand:           []string{"python3", "train_musicgen.py"},
		BatchSize:                 DefaultBatchSize,
		LearningRate:              DefaultLearningRate,
		NumEpochs:                 DefaultNumEpochs,
		GradientAccumulationSteps: DefaultGradientAccumulationSteps,
		WarmupSteps:               DefaultWarmupSteps,
		SaveEveryNSteps:           DefaultSaveEveryNSteps,
		EvalEveryNSteps:           DefaultEvalEveryNSteps,
		GPUCostPerHour:            DefaultGPUCostPerHour,
		MilestoneThresholdDays:    DefaultMilestoneThresholdDays,
		Thresholds: decision.Thresholds{
			MinAuthenticityScore: DefaultMinAuthenticityScore,
			MaxCostUSD:           DefaultMaxCostUSD,
			MaxValLoss:           DefaultMaxValLoss,
		},
	}
}

// Validate checks that required fields are present and sane.
//
// Validation failures are fatal at startup: the orchestrator refuses to
// spawn a training job from a config it cannot trust.
func (c *Config) Validate() error {
	if c.ModelName == "" {
		return &ValidationError{Field: "model_name", Message: "model name is required"}
	}
	if c.CheckpointDir == "" {
		return &ValidationError{Field: "checkpoint_dir", Message: "checkpoint directory is required"}
	}
	if len(c.TrainingCommand) == 0 {
		return &ValidationError{Field: "training_command", Message: "training command is required"}
	}
	if c.BatchSize <= 0 {
		return &ValidationError{Field: "batch_size", Message: "batch size must be positive"}
	}
	if c.LearningRate <= 0 {
		return &ValidationError{Field: "learning_rate", Message: "learning rate must be positive"}
	}
	if c.NumEpochs <= 0 {
		return &ValidationError{Field: "num_epochs", Message: "epoch count must be positive"}
	}
	if c.GradientAccumulationSteps <= 0 {
		return &ValidationError{Field: "gradient_accumulation_steps", Message: "must be positive"}
	}
	if c.GPUCostPerHour < 0 {
		return &ValidationError{Field: "gpu_cost_per_hour", Message: "hourly cost must not be negative"}
	}
	if c.MilestoneThresholdDays <= 0 {
		return &ValidationError{Field: "milestone_threshold_days", Message: "milestone threshold must be positive"}
	}
	if c.Thresholds.MinAuthenticityScore < 0 || c.Thresholds.MinAuthenticityScore > 1 {
		return &ValidationError{Field: "thresholds.min_authenticity_score", Message: "must be in [0, 1]"}
	}
	if c.Thresholds.MaxCostUSD <= 0 {
		return &ValidationError{Field: "thresholds.max_cost_usd", Message: "cost budget must be positive"}
	}
	if c.Thresholds.MaxValLoss <= 0 {
		return &ValidationError{Field: "thresholds.max_val_loss", Message: "val loss ceiling must be positive"}
	}
	return nil
}

// ValidationError reports an invalid or missing configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("training config: %s: %s", e.Field, e.Message)
}
