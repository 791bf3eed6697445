package process

import (
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestReadStdoutForwardsFramesAndDiagnostics(t *testing.T) {
	c := New(Config{Name: "x"}, zaptest.NewLogger(t))
	c.wg.Add(1)
	input := strings.NewReader("not json\n{\"jsonrpc\":\"2.0\",\"id\":\"1\",\"method\":\"ping\"}\n")
	go c.readStdout(input)

	item := <-c.frames
	require.Error(t, item.diag)

	item = <-c.frames
	require.NoError(t, item.diag)
	assert.Equal(t, "ping", *item.frame.Method)
}

func TestReadStderrSignalsReadyOnMatch(t *testing.T) {
	c := New(Config{Name: "x"}, zaptest.NewLogger(t))
	c.wg.Add(1)
	re := regexp.MustCompile(`listening on \d+`)
	r, w := io.Pipe()
	go c.readStderr(r, re)

	_, _ = w.Write([]byte("booting...\n"))
	select {
	case <-c.readyCh:
		t.Fatal("should not be ready yet")
	case <-time.After(20 * time.Millisecond):
	}

	_, _ = w.Write([]byte("listening on 8080\n"))
	select {
	case <-c.readyCh:
	case <-time.After(time.Second):
		t.Fatal("expected readyCh to close")
	}
	w.Close()
}

func TestToValidUTF8ReplacesInvalidBytes(t *testing.T) {
	bad := []byte{0x68, 0x69, 0xff, 0xfe}
	got := toValidUTF8(bad)
	assert.Contains(t, got, "hi")
	assert.NotContains(t, got, string([]byte{0xff}))
}
