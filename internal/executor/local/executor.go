// Package local runs job workers as local subprocesses with their decrypted
// environment.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/qserverless/gatewayenv/pkg/types"
)

// stopGrace is how long Stop waits after SIGTERM before killing.
const stopGrace = 2 * time.Second

// ErrInvalidName is returned for a variable name that cannot be exported.
var ErrInvalidName = errors.New("invalid environment variable name")

// Executor runs workers as local subprocesses.
type Executor struct {
	config *types.ExecutorConfig
	logger *zap.Logger

	// Running processes by job id
	processesMu sync.RWMutex
	processes   map[string]*Process

	// Semaphore for max concurrent
	semaphore chan struct{}
}

// Process represents a running worker.
type Process struct {
	JobID     string
	Cmd       *exec.Cmd
	StartedAt time.Time
	Cancel    context.CancelFunc
	started   chan struct{} // closed once Cmd.Process is set
	done      chan struct{}
}

// Result is the outcome of a finished worker.
type Result struct {
	JobID    string
	Success  bool
	ExitCode int
	Output   string
	Duration time.Duration
}

// NewExecutor creates a new local Executor.
func NewExecutor(config *types.ExecutorConfig, logger *zap.Logger) *Executor {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Executor{
		config:    config,
		logger:    logger,
		processes: make(map[string]*Process),
		semaphore: make(chan struct{}, config.MaxConcurrent),
	}
}

// Environ renders bundle as KEY=VALUE pairs appended to base. String values
// are written raw, every other kind as canonical JSON. A bundle variable
// replaces the same variable in base.
func Environ(base []string, bundle types.Bundle) ([]string, error) {
	for _, key := range bundle.Keys() {
		if err := checkName(key); err != nil {
			return nil, err
		}
	}

	env := make([]string, 0, len(base)+len(bundle))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if _, ok := bundle[name]; ok {
			continue
		}
		env = append(env, kv)
	}
	for _, key := range bundle.Keys() {
		v := bundle[key]
		if s, ok := v.Str(); ok {
			env = append(env, key+"="+s)
			continue
		}
		data, err := v.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", key, err)
		}
		env = append(env, key+"="+string(data))
	}
	return env, nil
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, "=\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Command builds the worker command with bundle exported into its
// environment.
func (e *Executor) Command(ctx context.Context, bundle types.Bundle, name string, args ...string) (*exec.Cmd, error) {
	var base []string
	if e.config.InheritEnv {
		base = os.Environ()
	}
	env, err := Environ(base, bundle)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	// Grandchildren can hold the output pipes open after the worker exits.
	cmd.WaitDelay = stopGrace
	return cmd, nil
}

// Run starts the worker for jobID and waits for it to exit. A non-zero
// exit is reported in the Result, not as an error. Cancelling ctx stops the
// worker the way Stop does.
func (e *Executor) Run(ctx context.Context, jobID string, bundle types.Bundle, name string, args ...string) (*Result, error) {
	// Acquire semaphore slot
	select {
	case e.semaphore <- struct{}{}:
		defer func() { <-e.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// The worker outlives ctx until Stop has given it the grace period.
	cmdCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	cmd, err := e.Command(cmdCtx, bundle, name, args...)
	if err != nil {
		return nil, err
	}

	// exec serializes writes when Stdout and Stderr are the same writer.
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	proc := &Process{
		JobID:     jobID,
		Cmd:       cmd,
		StartedAt: time.Now(),
		Cancel:    cancel,
		started:   make(chan struct{}),
		done:      make(chan struct{}),
	}

	e.processesMu.Lock()
	if _, exists := e.processes[jobID]; exists {
		e.processesMu.Unlock()
		return nil, fmt.Errorf("job %s is already running", jobID)
	}
	e.processes[jobID] = proc
	e.processesMu.Unlock()

	defer func() {
		close(proc.done)
		e.processesMu.Lock()
		delete(e.processes, jobID)
		e.processesMu.Unlock()
	}()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	close(proc.started)
	e.logger.Info("worker started",
		zap.String("job_id", jobID),
		zap.Int("pid", cmd.Process.Pid),
		zap.Int("variables", len(bundle)),
	)

	waited := make(chan error, 1)
	go func() { waited <- cmd.Wait() }()

	select {
	case err = <-waited:
	case <-ctx.Done():
		e.logger.Info("stopping worker", zap.String("job_id", jobID), zap.Error(ctx.Err()))
		e.terminate(proc, waited)
		err = <-waited
	}

	result := &Result{
		JobID:    jobID,
		Output:   output.String(),
		Duration: time.Since(proc.StartedAt),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to wait for worker: %w", err)
		}
		result.ExitCode = exitErr.ExitCode()
	} else {
		result.Success = true
	}

	e.logger.Info("worker finished",
		zap.String("job_id", jobID),
		zap.Bool("success", result.Success),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// terminate sends SIGTERM and kills the worker if exited does not fire
// within the grace period. The value received from exited is put back.
func (e *Executor) terminate(proc *Process, exited chan error) {
	_ = proc.Cmd.Process.Signal(syscall.SIGTERM)
	select {
	case err := <-exited:
		exited <- err
	case <-time.After(stopGrace):
		proc.Cancel()
	}
}

// Stop stops a running worker: SIGTERM first, then a kill if it has not
// exited within the grace period.
func (e *Executor) Stop(jobID string) error {
	e.processesMu.RLock()
	proc, ok := e.processes[jobID]
	e.processesMu.RUnlock()

	if !ok {
		return fmt.Errorf("process not found: %s", jobID)
	}

	select {
	case <-proc.started:
	case <-proc.done:
		return nil
	}

	_ = proc.Cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-proc.done:
		return nil
	case <-time.After(stopGrace):
	}

	proc.Cancel()
	return nil
}

// IsRunning reports whether a worker for jobID is running.
func (e *Executor) IsRunning(jobID string) bool {
	e.processesMu.RLock()
	defer e.processesMu.RUnlock()

	_, ok := e.processes[jobID]
	return ok
}
