package process

import (
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mcpconductor/conductor/internal/wire"
)

// readStdout runs for the lifetime of the subprocess, framing complete lines
// and pushing them (or their parse diagnostics) onto the bounded queue. A
// push blocks only once frameQueueSize items are waiting unconsumed.
func (c *Communicator) readStdout(r io.Reader) {
	defer c.wg.Done()
	fr := wire.NewReader(r)
	for {
		frame, err := fr.ReadFrame()
		if frame != nil {
			c.frames <- frameOrErr{frame: frame}
		}
		if err != nil {
			if _, ok := err.(*wire.ErrNotJSON); ok {
				c.logger.Warn("discarding non-JSON line on stdout", zap.Error(err))
				c.frames <- frameOrErr{diag: err}
				continue
			}
			return
		}
	}
}

// readStderr accumulates stderr bytes, decoding invalid UTF-8 with the
// replacement character, and signals readyCh the first time readyRe matches
// the buffer accumulated so far.
func (c *Communicator) readStderr(r io.Reader, readyRe *regexp.Regexp) {
	defer c.wg.Done()
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := toValidUTF8(buf[:n])
			c.stderrMu.Lock()
			c.stderrBuf.WriteString(chunk)
			snapshot := c.stderrBuf.String()
			c.stderrMu.Unlock()

			if readyRe != nil && readyRe.MatchString(snapshot) {
				c.readyOnce.Do(func() { close(c.readyCh) })
			}
		}
		if err != nil {
			return
		}
	}
}

func toValidUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}
