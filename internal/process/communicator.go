// Package process implements the subprocess communicator: spawning an MCP
// server, piping its stdio, buffering stderr, and exchanging line-delimited
// JSON-RPC frames under a deadline. Grounded on the two-goroutine,
// bounded-channel pattern the teacher codebase uses in
// shared.Input.Process (one background consumer goroutine per independent
// stream, panics recovered, never blocking the producer).
package process

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mcpconductor/conductor/internal/conductorerr"
	"github.com/mcpconductor/conductor/internal/wire"
)

const (
	frameQueueSize  = 256
	stopGracePeriod = 2 * time.Second
	killGrace       = 500 * time.Millisecond
)

// frameOrErr is what the stdout reader goroutine pushes: either a parsed
// frame, or a diagnostic for a line that failed to parse as JSON. The latter
// is never fatal — spec §4.A requires recording it and continuing.
type frameOrErr struct {
	frame *wire.Frame
	diag  error
}

// Communicator owns one server subprocess for the lifetime of a session.
type Communicator struct {
	cfg    Config
	logger *zap.Logger

	cmd       *exec.Cmd
	stdin     *wire.Writer
	stdinPipe io.WriteCloser

	frames chan frameOrErr

	stderrMu  sync.Mutex
	stderrBuf bytes.Buffer

	readyCh   chan struct{}
	readyOnce sync.Once

	exitCh  chan struct{}
	exitErr error

	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Communicator for the given config. It does not spawn the
// process; call Start for that.
func New(cfg Config, logger *zap.Logger) *Communicator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Communicator{
		cfg:     cfg,
		logger:  logger.With(zap.String("server", cfg.Name)),
		frames:  make(chan frameOrErr, frameQueueSize),
		readyCh: make(chan struct{}),
		exitCh:  make(chan struct{}),
	}
}

// Start spawns the configured command and, if a ready pattern is set, waits
// for stderr to match it before returning.
func (c *Communicator) Start(ctx context.Context) error {
	cmd := exec.Command(c.cfg.Command, c.cfg.Args...)
	cmd.Dir = c.cfg.Cwd
	cmd.Env = mergeEnv(os.Environ(), c.cfg.Env)

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return conductorerr.Wrap(conductorerr.LaunchFailed, err, "open stdin pipe")
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return conductorerr.Wrap(conductorerr.LaunchFailed, err, "open stdout pipe")
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return conductorerr.Wrap(conductorerr.LaunchFailed, err, "open stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		return conductorerr.Wrap(conductorerr.LaunchFailed, err, "spawn %s", c.cfg.Command)
	}
	c.cmd = cmd
	c.stdinPipe = stdinPipe
	c.stdin = wire.NewWriter(stdinPipe)
	c.logger.Info("spawned server", zap.Int("pid", cmd.Process.Pid))

	var readyRe *regexp.Regexp
	if c.cfg.ReadyPattern != "" {
		readyRe, err = regexp.Compile(c.cfg.ReadyPattern)
		if err != nil {
			return conductorerr.Wrap(conductorerr.ConfigInvalid, err, "compile readyPattern")
		}
	}

	c.wg.Add(2)
	go c.readStdout(stdoutPipe)
	go c.readStderr(stderrPipe, readyRe)

	go func() {
		werr := cmd.Wait()
		c.exitErr = werr
		close(c.exitCh)
	}()

	if readyRe == nil {
		return nil
	}

	timeout := c.cfg.StartupTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-c.readyCh:
		return nil
	case <-c.exitCh:
		return conductorerr.New(conductorerr.StartupTimeout, "server exited before becoming ready: %s", c.StderrSnapshot())
	case <-waitCtx.Done():
		return conductorerr.New(conductorerr.StartupTimeout, "server did not match readyPattern within %s", timeout)
	}
}

func mergeEnv(inherited []string, overlay map[string]string) []string {
	env := make([]string, 0, len(inherited)+len(overlay))
	env = append(env, inherited...)
	for k, v := range overlay {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

