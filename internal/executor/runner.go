package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Runner executes one task and reports its result.
type Runner interface {
	Run(ctx context.Context, task Task) (TaskResult, error)
}

// LocalRunner runs tasks inside the current process.
type LocalRunner struct{}

func (LocalRunner) Run(ctx context.Context, task Task) (TaskResult, error) {
	if err := ctx.Err(); err != nil {
		return TaskResult{PartitionID: task.PartitionID}, err
	}
	return RunTask(task)
}

// ProcessRunner runs each task in a child process that speaks the worker
// protocol: one msgpack Task on stdin, one msgpack TaskResult on stdout.
// The context is checked before the process starts, never after.
type ProcessRunner struct {
	Path string
	Args []string
	Env  []string
}

// NewProcessRunner re-executes the current binary's hidden worker command.
func NewProcessRunner() (*ProcessRunner, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable for workers: %w", err)
	}
	return &ProcessRunner{Path: self, Args: []string{"worker"}}, nil
}

func (r *ProcessRunner) Run(ctx context.Context, task Task) (TaskResult, error) {
	payload, err := msgpack.Marshal(&task)
	if err != nil {
		return TaskResult{PartitionID: task.PartitionID}, fmt.Errorf("failed to encode task: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return TaskResult{PartitionID: task.PartitionID}, err
	}
	cmd := exec.Command(r.Path, r.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), r.Env...)

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return TaskResult{PartitionID: task.PartitionID},
				fmt.Errorf("worker exited with code %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return TaskResult{PartitionID: task.PartitionID}, fmt.Errorf("failed to start worker: %w", err)
	}

	var res TaskResult
	if err := msgpack.Unmarshal(stdout.Bytes(), &res); err != nil {
		return TaskResult{PartitionID: task.PartitionID}, fmt.Errorf("failed to decode worker result: %w", err)
	}
	if res.Error != "" {
		return res, errors.New(res.Error)
	}
	return res, nil
}

// ServeWorker handles one task on the worker side. Task failures are
// reported inside the result; only protocol errors are returned.
func ServeWorker(r io.Reader, w io.Writer) error {
	var task Task
	if err := msgpack.NewDecoder(r).Decode(&task); err != nil {
		return fmt.Errorf("failed to decode task: %w", err)
	}
	res, err := RunTask(task)
	if err != nil {
		res.Error = err.Error()
	}
	if err := msgpack.NewEncoder(w).Encode(&res); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}
