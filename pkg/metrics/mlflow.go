package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/databricks/databricks-sdk-go"
	"github.com/databricks/databricks-sdk-go/service/ml"
	"golang.org/x/time/rate"
)

// MLflowConfig configures the MLflow tracking sink.
type MLflowConfig struct {
	// TrackingURI is the MLflow server URL, or "databricks" to use the
	// ambient Databricks environment.
	TrackingURI string

	// Token authenticates against a Databricks-hosted tracker. Optional
	// for plain MLflow servers.
	Token string

	// ExperimentID is the experiment to create the run under (required).
	ExperimentID string

	// RunName names the tracked run. Defaults to a timestamped name.
	RunName string

	// RequestsPerSecond paces LogMetric calls so a slow tracker cannot
	// consume unbounded budget. Zero means unpaced.
	RequestsPerSecond float64
}

// MLflowSink forwards observations to an MLflow tracking server.
//
// The sink is expected to be wrapped in an AsyncSink: LogMetric is a
// network round trip and may also wait on the rate limiter.
type MLflowSink struct {
	client  *databricks.WorkspaceClient
	runID   string
	limiter *rate.Limiter
}

// NewMLflowSink connects to the tracker and opens a tracking run.
func NewMLflowSink(ctx context.Context, cfg MLflowConfig) (*MLflowSink, error) {
	if cfg.ExperimentID == "" {
		return nil, fmt.Errorf("mlflow sink: experiment ID is required")
	}

	dbCfg := &databricks.Config{Host: cfg.TrackingURI}
	if cfg.Token != "" {
		dbCfg.Token = cfg.Token
	} else {
		// Plain MLflow servers ignore authentication; the SDK still
		// requires a token to be present.
		dbCfg.Token = "unused-token-for-plain-mlflow"
	}

	client, err := databricks.NewWorkspaceClient(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("create mlflow client: %w", err)
	}

	runName := cfg.RunName
	if runName == "" {
		runName = "trainwatch-" + time.Now().Format("2006-01-02-15-04-05")
	}

	resp, err := client.Experiments.CreateRun(ctx, ml.CreateRun{
		ExperimentId: cfg.ExperimentID,
		RunName:      runName,
		StartTime:    time.Now().UnixMilli(),
		Tags: []ml.RunTag{
			{Key: "mlflow.runName", Value: runName},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create mlflow run: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &MLflowSink{
		client:  client,
		runID:   resp.Run.Info.RunId,
		limiter: limiter,
	}, nil
}

// RunID returns the MLflow run ID backing this sink.
func (s *MLflowSink) RunID() string {
	return s.runID
}

// Observe logs one metric observation with its step.
func (s *MLflowSink) Observe(ctx context.Context, obs Observation) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	ts := obs.At
	if ts.IsZero() {
		ts = time.Now()
	}

	err := s.client.Experiments.LogMetric(ctx, ml.LogMetric{
		RunId:     s.runID,
		Key:       obs.Name,
		Value:     obs.Value,
		Timestamp: ts.UnixMilli(),
		Step:      obs.Step,
	})
	if err != nil {
		return fmt.Errorf("log metric %s: %w", obs.Name, err)
	}
	return nil
}

// Close marks the tracking run finished.
func (s *MLflowSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.client.Experiments.UpdateRun(ctx, ml.UpdateRun{
		RunId:   s.runID,
		Status:  ml.UpdateRunStatusFinished,
		EndTime: time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("close mlflow run: %w", err)
	}
	return nil
}

var _ Sink = (*MLflowSink)(nil)
