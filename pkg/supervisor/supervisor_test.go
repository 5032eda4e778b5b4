package supervisor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCollectsLinesInOrder(t *testing.T) {
	sup, err := New(Config{
		Command: []string{"sh", "-c", `printf 'one\ntwo\nthree\n'`},
	})
	require.NoError(t, err)

	var got []string
	err = sup.Run(context.Background(), Hooks{
		OnLine: func(line string) error {
			got = append(got, line)
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestRunMergesStdoutAndStderr(t *testing.T) {
	sup, err := New(Config{
		Command: []string{"sh", "-c", `echo out; echo err 1>&2`},
	})
	require.NoError(t, err)

	var got []string
	err = sup.Run(context.Background(), Hooks{
		OnLine: func(line string) error {
			got = append(got, line)
			return nil
		},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"out", "err"}, got)
}

func TestRunEchoes(t *testing.T) {
	var echo bytes.Buffer
	sup, err := New(Config{
		Command: []string{"sh", "-c", `printf 'hello\n'`},
		Echo:    &echo,
	})
	require.NoError(t, err)

	require.NoError(t, sup.Run(context.Background(), Hooks{}))
	assert.Equal(t, "hello\n", echo.String())
}

func TestRunAppendsConfigFlag(t *testing.T) {
	sup, err := New(Config{
		Command:    []string{"sh", "-c", `printf '%s\n' "$@"`, "argv0"},
		ConfigJSON: `{"batch_size":8}`,
	})
	require.NoError(t, err)

	var got []string
	err = sup.Run(context.Background(), Hooks{
		OnLine: func(line string) error {
			got = append(got, line)
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"--config", `{"batch_size":8}`}, got)
}

func TestRunNonzeroExit(t *testing.T) {
	sup, err := New(Config{
		Command: []string{"sh", "-c", `exit 7`},
	})
	require.NoError(t, err)

	err = sup.Run(context.Background(), Hooks{})
	require.Error(t, err)

	var jobErr *JobFailedError
	require.True(t, errors.As(err, &jobErr))
	assert.Equal(t, 7, jobErr.Code)
}

func TestRunHookErrorStopsChild(t *testing.T) {
	sentinel := errors.New("stop now")
	sup, err := New(Config{
		Command: []string{"sh", "-c", `echo first; sleep 30`},
	})
	require.NoError(t, err)

	start := time.Now()
	err = sup.Run(context.Background(), Hooks{
		OnLine: func(line string) error { return sentinel },
	})
	require.ErrorIs(t, err, sentinel)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRunContextCancelInterrupts(t *testing.T) {
	sup, err := New(Config{
		Command: []string{"sh", "-c", `sleep 30`},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err = sup.Run(ctx, Hooks{})
	require.ErrorIs(t, err, ErrInterrupted)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRunCancelWithGrandchildHoldingPipe(t *testing.T) {
	// The background sleep inherits the output pipe's write end. A
	// cancel must still return promptly instead of waiting for the
	// whole process tree to let go of the pipe.
	sup, err := New(Config{
		Command: []string{"sh", "-c", `sleep 30 & sleep 30`},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err = sup.Run(ctx, Hooks{})
	require.ErrorIs(t, err, ErrInterrupted)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunTick(t *testing.T) {
	sup, err := New(Config{
		Command:      []string{"sh", "-c", `sleep 1`},
		TickInterval: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	ticks := 0
	err = sup.Run(context.Background(), Hooks{
		OnTick: func() error {
			ticks++
			return nil
		},
	})
	require.NoError(t, err)
	assert.Greater(t, ticks, 0)
}

func TestNewRequiresCommand(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestReadLineLimitedTruncates(t *testing.T) {
	long := strings.Repeat("a", 100)
	input := long + "\nshort\n"
	br := bufio.NewReaderSize(strings.NewReader(input), 16)

	line, truncated, err := readLineLimited(br, 10)
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.Equal(t, strings.Repeat("a", 10), string(line))

	// The remainder of the oversized line was skipped; the next read
	// returns the following line intact.
	line, truncated, err = readLineLimited(br, 10)
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Equal(t, "short", string(line))
}

func TestReadLineLimitedShortLine(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("hello\n"))
	line, truncated, err := readLineLimited(br, 1024)
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Equal(t, "hello", string(line))
}
