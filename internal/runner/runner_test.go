package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mcpconductor/conductor/internal/process"
	"github.com/mcpconductor/conductor/internal/report"
	"github.com/mcpconductor/conductor/internal/suite"
)

// echoServerScript is a POSIX shell stand-in for an MCP server: it replies to
// initialize with a canned result, ignores the initialized notification, and
// otherwise echoes back {"ok":true} under whatever id it was asked for.
const echoServerScript = `
while IFS= read -r line; do
  case "$line" in
    *'"method":"initialize"'*)
      printf '%s\n' '{"jsonrpc":"2.0","id":"init-1","result":{"protocolVersion":"2025-06-18","serverInfo":{"name":"echo","version":"1.0.0"},"capabilities":{"tools":{}}}}'
      ;;
    *'"method":"notifications/initialized"'*)
      ;;
    *)
      id=$(printf '%s' "$line" | sed -n 's/.*"id":"\([^"]*\)".*/\1/p')
      printf '%s\n' "{\"jsonrpc\":\"2.0\",\"id\":\"$id\",\"result\":{\"ok\":true}}"
      ;;
  esac
done
`

// exitAfterOneTestScript behaves like echoServerScript for the handshake and
// exactly one subsequent request, then exits — used to exercise the
// mid-suite restart-on-transport-error path.
const exitAfterOneTestScript = `
n=0
while IFS= read -r line; do
  case "$line" in
    *'"method":"initialize"'*)
      printf '%s\n' '{"jsonrpc":"2.0","id":"init-1","result":{"protocolVersion":"2025-06-18","serverInfo":{"name":"echo","version":"1.0.0"},"capabilities":{"tools":{}}}}'
      ;;
    *'"method":"notifications/initialized"'*)
      ;;
    *)
      n=$((n+1))
      if [ "$n" -gt 1 ]; then
        exit 0
      fi
      id=$(printf '%s' "$line" | sed -n 's/.*"id":"\([^"]*\)".*/\1/p')
      printf '%s\n' "{\"jsonrpc\":\"2.0\",\"id\":\"$id\",\"result\":{\"ok\":true}}"
      ;;
  esac
done
`

func testConfig(script string) process.Config {
	return process.Config{
		Name:                "echo",
		Command:             "sh",
		Args:                []string{"-c", script},
		RequestTimeout:      2 * time.Second,
		StartupTimeout:      2 * time.Second,
		PostInitializeDelay: time.Millisecond,
		ClientName:          "conductor-test",
		ClientVersion:       "0.0.0",
	}
}

func singleTestSuite(name string, expectResponse any) []suite.Suite {
	return []suite.Suite{{
		Description: "echo suite",
		Tests: []suite.Test{
			{
				It:      name,
				Request: map[string]any{"method": "ping"},
				Expect:  suite.Expectation{Response: expectResponse},
			},
		},
	}}
}

func TestRunSingleSuitePass(t *testing.T) {
	cfg := testConfig(echoServerScript)
	suites := singleTestSuite("pings ok", map[string]any{
		"result": map[string]any{"ok": true},
	})

	result, err := Run(context.Background(), cfg, suites, zaptest.NewLogger(t), Options{})
	require.NoError(t, err)
	require.Len(t, result.Suites, 1)
	require.Len(t, result.Suites[0].Tests, 1)
	assert.Equal(t, report.StatusPass, result.Suites[0].Tests[0].Status)
	assert.True(t, result.Passed())
}

func TestRunCapturesMismatchAsFailure(t *testing.T) {
	cfg := testConfig(echoServerScript)
	suites := singleTestSuite("expects wrong shape", map[string]any{
		"result": map[string]any{"ok": false},
	})

	result, err := Run(context.Background(), cfg, suites, zaptest.NewLogger(t), Options{})
	require.NoError(t, err)
	tr := result.Suites[0].Tests[0]
	assert.Equal(t, report.StatusFail, tr.Status)
	require.Len(t, tr.Diagnostics, 1)
	assert.False(t, result.Passed())
}

func TestRunRestartsAfterTransportError(t *testing.T) {
	cfg := testConfig(exitAfterOneTestScript)
	suites := []suite.Suite{{
		Description: "flaky suite",
		Tests: []suite.Test{
			{It: "first", Request: map[string]any{"method": "ping"}, Expect: suite.Expectation{Response: "match:exists"}},
			{It: "second", Request: map[string]any{"method": "ping"}, Expect: suite.Expectation{Response: "match:exists"}},
			{It: "third", Request: map[string]any{"method": "ping"}, Expect: suite.Expectation{Response: "match:exists"}},
		},
	}}

	result, err := Run(context.Background(), cfg, suites, zaptest.NewLogger(t), Options{})
	require.NoError(t, err)
	tests := result.Suites[0].Tests
	require.Len(t, tests, 3)
	assert.Equal(t, report.StatusPass, tests[0].Status)
	assert.Equal(t, report.StatusError, tests[1].Status)
	// the third test runs against a freshly restarted session, so it should
	// not inherit the second test's failure.
	assert.Equal(t, report.StatusPass, tests[2].Status)
}

func TestRunSetupFailureMarksEveryTestAsError(t *testing.T) {
	cfg := testConfig(echoServerScript)
	cfg.Command = "/no/such/binary"
	suites := singleTestSuite("never runs", "match:exists")

	result, err := Run(context.Background(), cfg, suites, zaptest.NewLogger(t), Options{})
	require.NoError(t, err)
	require.Len(t, result.Suites[0].Tests, 1)
	assert.Equal(t, report.StatusError, result.Suites[0].Tests[0].Status)
}

func TestRunHonorsRequestsPerSecond(t *testing.T) {
	cfg := testConfig(echoServerScript)
	cfg.RequestsPerSecond = 20
	suites := []suite.Suite{{
		Description: "paced suite",
		Tests: []suite.Test{
			{It: "first", Request: map[string]any{"method": "ping"}, Expect: suite.Expectation{Response: "match:exists"}},
			{It: "second", Request: map[string]any{"method": "ping"}, Expect: suite.Expectation{Response: "match:exists"}},
			{It: "third", Request: map[string]any{"method": "ping"}, Expect: suite.Expectation{Response: "match:exists"}},
		},
	}}

	start := time.Now()
	result, err := Run(context.Background(), cfg, suites, zaptest.NewLogger(t), Options{})
	require.NoError(t, err)
	assert.True(t, result.Passed())
	// Three requests at a burst-of-one, 20/s limiter cost at least two
	// inter-request waits of 50ms each; allow slack for scheduling jitter.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRunMultipleSuitesSequentialByDefault(t *testing.T) {
	cfg := testConfig(echoServerScript)
	suites := append(singleTestSuite("a", "match:exists"), singleTestSuite("b", "match:exists")...)

	result, err := Run(context.Background(), cfg, suites, zaptest.NewLogger(t), Options{})
	require.NoError(t, err)
	assert.Len(t, result.Suites, 2)
	assert.Equal(t, 2, result.Summary.Pass)
}
