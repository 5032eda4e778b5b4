// Package supervisor runs the external training process and feeds its
// combined output, line by line, to the orchestrator.
package supervisor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxLineBytes caps a single output line. Longer lines are
// truncated rather than dropped so a runaway progress bar cannot stall
// the reader.
const DefaultMaxLineBytes = 1 << 20

// DefaultTickInterval is how often OnTick fires while the child runs.
const DefaultTickInterval = 30 * time.Second

// ErrInterrupted is returned when the context was cancelled and the
// child was stopped on request rather than exiting on its own.
var ErrInterrupted = errors.New("training interrupted")

// ErrAbort is returned from a hook to stop the child deliberately.
// The supervisor kills the child and returns ErrAbort to the caller.
var ErrAbort = errors.New("training aborted by supervisor hook")

// JobFailedError indicates the child exited with a nonzero status.
type JobFailedError struct {
	Code int
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("training process exited with code %d", e.Code)
}

// Hooks receive supervision events. Both are called from the
// supervisor's event loop, never concurrently.
type Hooks struct {
	// OnLine receives each output line the child writes, with the
	// trailing newline removed. Returning an error stops the child.
	OnLine func(line string) error

	// OnTick fires periodically while the child runs. Returning an
	// error stops the child.
	OnTick func() error
}

// Config configures a supervised run.
type Config struct {
	// Command is the child argv. Required, at least one element.
	Command []string

	// ConfigJSON, when non-empty, is appended as "--config <json>".
	ConfigJSON string

	// Dir is the child's working directory. Empty means inherit.
	Dir string

	// Env entries are appended to the inherited environment.
	Env []string

	// Echo receives a copy of every child output line. Nil disables
	// echoing.
	Echo io.Writer

	// TickInterval overrides DefaultTickInterval when positive.
	TickInterval time.Duration

	// MaxLineBytes overrides DefaultMaxLineBytes when positive.
	MaxLineBytes int

	Logger *zap.Logger
}

// Supervisor runs one child process to completion.
type Supervisor struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a supervisor. Returns an error when the command is empty.
func New(cfg Config) (*Supervisor, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("supervisor: command is required")
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = DefaultMaxLineBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{cfg: cfg, logger: logger}, nil
}

// Run starts the child and supervises it until it exits, a hook asks
// for a stop, or the context is cancelled. Stdout and stderr of the
// child are merged into a single line stream so interleaved progress
// and warnings arrive in write order.
func (s *Supervisor) Run(ctx context.Context, hooks Hooks) error {
	argv := append([]string{}, s.cfg.Command...)
	if s.cfg.ConfigJSON != "" {
		argv = append(argv, "--config", s.cfg.ConfigJSON)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("create output pipe: %w", err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = pw
	cmd.Stderr = pw
	cmd.Dir = s.cfg.Dir
	cmd.Env = append(os.Environ(), s.cfg.Env...)
	setProcAttrs(cmd)

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return fmt.Errorf("start training process: %w", err)
	}
	// The child holds its own copy of the write end; closing ours lets
	// the reader see EOF when the child exits.
	_ = pw.Close()

	s.logger.Info("training process started",
		zap.Strings("command", s.cfg.Command),
		zap.Int("pid", cmd.Process.Pid))

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		readErr <- s.readLines(pr, lines)
	}()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	defer func() { _ = pr.Close() }()

	stop := func(cause error) error {
		killProcessTree(cmd)
		_ = cmd.Wait()
		// Grandchildren inherit the write end and may outlive the kill;
		// closing the read end unblocks the reader regardless.
		_ = pr.Close()
		for range lines {
		}
		return cause
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Warn("stopping training process", zap.Int("pid", cmd.Process.Pid))
			return stop(ErrInterrupted)

		case <-ticker.C:
			if hooks.OnTick != nil {
				if err := hooks.OnTick(); err != nil {
					return stop(err)
				}
			}

		case line, ok := <-lines:
			if !ok {
				return s.finish(cmd, readErr)
			}
			if s.cfg.Echo != nil {
				fmt.Fprintln(s.cfg.Echo, line)
			}
			if hooks.OnLine != nil {
				if err := hooks.OnLine(line); err != nil {
					return stop(err)
				}
			}
		}
	}
}

// finish waits for the exited child and maps its status to an error.
func (s *Supervisor) finish(cmd *exec.Cmd, readErr chan error) error {
	if err := <-readErr; err != nil {
		s.logger.Warn("output stream ended with error", zap.Error(err))
	}

	err := cmd.Wait()
	if err == nil {
		s.logger.Info("training process completed", zap.Int("pid", cmd.Process.Pid))
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		s.logger.Error("training process failed",
			zap.Int("pid", cmd.Process.Pid),
			zap.Int("exit_code", code))
		return &JobFailedError{Code: code}
	}
	return fmt.Errorf("wait for training process: %w", err)
}

// readLines reads the merged output stream and sends one string per
// line. Lines over the byte cap are truncated; the remainder of the
// oversized line is discarded.
func (s *Supervisor) readLines(r io.Reader, out chan<- string) error {
	br := bufio.NewReader(r)
	for {
		line, truncated, err := readLineLimited(br, s.cfg.MaxLineBytes)
		if len(line) > 0 || (err == nil && !truncated) {
			out <- string(line)
		}
		if truncated {
			s.logger.Warn("output line truncated", zap.Int("max_bytes", s.cfg.MaxLineBytes))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// readLineLimited reads up to maxBytes of a single line. When the line
// is longer, it reports truncated=true, returns the prefix, and skips
// the rest of the line.
func readLineLimited(r *bufio.Reader, maxBytes int) (line []byte, truncated bool, err error) {
	var out []byte
	for {
		frag, err := r.ReadSlice('\n')
		out = append(out, frag...)
		if len(out) > maxBytes {
			out = out[:maxBytes]
			if err == nil {
				// Newline already consumed; nothing to skip.
				return out, true, nil
			}
			if errors.Is(err, bufio.ErrBufferFull) {
				return out, true, skipToNewline(r)
			}
			return out, true, err
		}
		if err == nil {
			return bytes.TrimSuffix(out, []byte("\n")), false, nil
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return out, false, err
	}
}

// skipToNewline discards input through the next newline.
func skipToNewline(r *bufio.Reader) error {
	for {
		_, err := r.ReadSlice('\n')
		if err == nil {
			return nil
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return err
	}
}
