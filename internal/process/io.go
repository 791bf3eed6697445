package process

import (
	"context"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mcpconductor/conductor/internal/conductorerr"
	"github.com/mcpconductor/conductor/internal/wire"
)

// Send writes a frame to the subprocess's stdin and flushes. Per spec §4.B,
// the communicator is single-writer: callers must not call Send
// concurrently from multiple goroutines (the orchestrator never does).
func (c *Communicator) Send(f *wire.Frame) error {
	if c.stdin == nil {
		return conductorerr.New(conductorerr.TransportClosed, "communicator not started")
	}
	c.logger.Debug("send", zap.Stringp("method", f.Method), zap.Stringer("id", f.ID))
	if err := c.stdin.WriteFrame(f); err != nil {
		return conductorerr.Wrap(conductorerr.TransportClosed, err, "write frame")
	}
	return nil
}

// Receive returns the next frame read from stdout, skipping lines that were
// not JSON (readStdout has already logged those). It blocks until a frame
// arrives, the context's deadline passes (ReadTimeout), or the child exits
// (ServerExited).
func (c *Communicator) Receive(ctx context.Context) (*wire.Frame, error) {
	for {
		select {
		case item, ok := <-c.frames:
			if !ok {
				return nil, conductorerr.New(conductorerr.TransportClosed, "stdout closed")
			}
			if item.diag != nil {
				continue
			}
			c.logger.Debug("recv", zap.Stringp("method", item.frame.Method), zap.Stringer("id", item.frame.ID))
			return item.frame, nil
		case <-c.exitCh:
			// Drain any frame that raced the exit signal before reporting death.
			select {
			case item, ok := <-c.frames:
				if ok && item.frame != nil {
					return item.frame, nil
				}
			default:
			}
			code := -1
			if c.cmd != nil && c.cmd.ProcessState != nil {
				code = c.cmd.ProcessState.ExitCode()
			}
			return nil, conductorerr.New(conductorerr.ServerExited, "server exited with code %d, stderr: %s", code, c.StderrSnapshot())
		case <-ctx.Done():
			return nil, conductorerr.New(conductorerr.ReadTimeout, "no response within deadline")
		}
	}
}

// StderrSnapshot returns everything accumulated in the stderr buffer since
// the last ClearStderr call.
func (c *Communicator) StderrSnapshot() string {
	c.stderrMu.Lock()
	defer c.stderrMu.Unlock()
	return c.stderrBuf.String()
}

// ClearStderr resets the stderr buffer. The orchestrator calls it at the
// start of every test.
func (c *Communicator) ClearStderr() {
	c.stderrMu.Lock()
	defer c.stderrMu.Unlock()
	c.stderrBuf.Reset()
}

// ExitErr returns the error from os/exec.Cmd.Wait, if the process has
// exited and Wait returned one (nil for a clean exit(0)).
func (c *Communicator) ExitErr() error {
	return c.exitErr
}

// Exited reports whether the subprocess has already terminated.
func (c *Communicator) Exited() bool {
	select {
	case <-c.exitCh:
		return true
	default:
		return false
	}
}

// Stop closes stdin, waits briefly for a graceful exit, then escalates to
// SIGTERM and finally SIGKILL. Idempotent: calling Stop twice is safe.
func (c *Communicator) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		if c.cmd == nil || c.cmd.Process == nil {
			return
		}
		c.closeStdin()

		graceTimer := time.NewTimer(stopGracePeriod)
		defer graceTimer.Stop()
		select {
		case <-c.exitCh:
		case <-ctx.Done():
			c.logger.Warn("stop deadline reached before graceful exit, sending SIGTERM")
			c.escalate()
		case <-graceTimer.C:
			c.logger.Warn("server did not exit after stdin close, sending SIGTERM")
			c.escalate()
		}
		c.wg.Wait()
	})
	return stopErr
}

func (c *Communicator) closeStdin() {
	if c.stdinPipe != nil {
		_ = c.stdinPipe.Close()
	}
}

// escalate sends SIGTERM and, absent an exit within killGrace, SIGKILL. It
// blocks until the process has actually exited so Stop never returns with a
// zombie child still running.
func (c *Communicator) escalate() {
	_ = c.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-c.exitCh:
	case <-time.After(killGrace):
		c.logger.Warn("server did not exit after SIGTERM, killing")
		_ = c.cmd.Process.Kill()
		<-c.exitCh
	}
}
