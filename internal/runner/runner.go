// Package runner implements the test orchestrator: for each suite, start a
// communicator, perform the handshake, run every test in order against it,
// and aggregate the results. Grounded on spec §4.F's four-step orchestration
// loop and on the teacher's shared.requestManager pattern of pairing an
// outbound id with exactly one inbound response before moving on.
package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mcpconductor/conductor/internal/conductorerr"
	"github.com/mcpconductor/conductor/internal/handshake"
	"github.com/mcpconductor/conductor/internal/match"
	"github.com/mcpconductor/conductor/internal/process"
	"github.com/mcpconductor/conductor/internal/report"
	"github.com/mcpconductor/conductor/internal/suite"
	"github.com/mcpconductor/conductor/internal/wire"
)

// Options configures a Run invocation beyond what ServerConfig already
// fixes: presentation and concurrency knobs that belong to a single
// invocation of the harness, not to the server under test.
type Options struct {
	// MaxParallelSuites caps how many suites run concurrently, each with its
	// own communicator. The spec's default is strictly sequential
	// (MaxParallelSuites <= 1); raising it is an explicit opt-in since
	// parallel suites lose deterministic stderr/timing ordering.
	MaxParallelSuites int
}

// Run executes every suite against a freshly started server, per suite,
// aggregating into a single report.RunResult.
func Run(ctx context.Context, cfg process.Config, suites []suite.Suite, logger *zap.Logger, opts Options) (*report.RunResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxParallelSuites < 1 {
		opts.MaxParallelSuites = 1
	}

	results := make([]report.SuiteResult, len(suites))

	if opts.MaxParallelSuites == 1 {
		for i, s := range suites {
			results[i] = runSuite(ctx, cfg, s, logger)
		}
	} else {
		// Each suite owns its own communicator (spec §4.F), so suites are
		// safe to fan out; errgroup.SetLimit caps how many subprocess
		// sessions run at once, the way the teacher's pack uses
		// golang.org/x/sync/errgroup to bound concurrent backend work.
		g := new(errgroup.Group)
		g.SetLimit(opts.MaxParallelSuites)
		for i, s := range suites {
			i, s := i, s
			g.Go(func() error {
				results[i] = runSuite(ctx, cfg, s, logger)
				return nil
			})
		}
		_ = g.Wait()
	}

	result := report.Aggregate(results)
	return &result, nil
}

// runSuite starts one communicator, runs every test in the suite against it
// sequentially, and always stops the communicator before returning.
func runSuite(ctx context.Context, cfg process.Config, s suite.Suite, logger *zap.Logger) report.SuiteResult {
	suiteLogger := logger.With(zap.String("suite", s.Description))
	sr := report.SuiteResult{Description: s.Description}

	comm, setupMs, setupErr := startSession(ctx, cfg, suiteLogger)
	sr.SetupMs = setupMs
	if setupErr != nil {
		suiteLogger.Error("suite setup failed", zap.Error(setupErr))
		for _, tc := range s.Tests {
			sr.Tests = append(sr.Tests, report.TestResult{
				Suite:  s.Description,
				Name:   tc.It,
				Status: report.StatusError,
				Err:    setupErr.Error(),
			})
		}
		return sr
	}
	defer func() { stopSession(ctx, comm, suiteLogger) }()

	// A flaky server under test can choke on a burst of requests; cfg.RequestsPerSecond,
	// when set, paces outbound requests so the harness itself never becomes the reason a
	// server falls over. Zero means unlimited, matching every other optional config field.
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	seq := 0
	for _, tc := range s.Tests {
		seq++
		result, transportBroke := runTest(ctx, comm, cfg, s.Description, tc, seq, suiteLogger, limiter)
		sr.Tests = append(sr.Tests, result)
		if transportBroke {
			stopSession(ctx, comm, suiteLogger)
			var extraMs int64
			comm, extraMs, setupErr = startSession(ctx, cfg, suiteLogger)
			sr.SetupMs += extraMs
			if setupErr != nil {
				suiteLogger.Error("failed to restart session after transport error", zap.Error(setupErr))
				for _, remaining := range s.Tests[seq:] {
					sr.Tests = append(sr.Tests, report.TestResult{
						Suite:  s.Description,
						Name:   remaining.It,
						Status: report.StatusError,
						Err:    setupErr.Error(),
					})
				}
				return sr
			}
		}
	}
	return sr
}

// startSession spawns a communicator and runs the handshake, returning the
// measured setup duration regardless of outcome.
func startSession(ctx context.Context, cfg process.Config, logger *zap.Logger) (*process.Communicator, int64, error) {
	start := time.Now()
	comm := process.New(cfg, logger)
	if err := comm.Start(ctx); err != nil {
		return nil, report.Elapsed(start, time.Now()), err
	}
	_, err := handshake.Run(ctx, comm, logger, handshake.Options{
		ClientName:          cfg.ClientName,
		ClientVersion:       cfg.ClientVersion,
		PostInitializeDelay: cfg.PostInitializeDelay,
		RequestTimeout:      cfg.RequestTimeout,
	})
	elapsed := report.Elapsed(start, time.Now())
	if err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = comm.Stop(stopCtx)
		return nil, elapsed, err
	}
	return comm, elapsed, nil
}

func stopSession(ctx context.Context, comm *process.Communicator, logger *zap.Logger) {
	if comm == nil {
		return
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := comm.Stop(stopCtx); err != nil {
		logger.Warn("error stopping communicator", zap.Error(err))
	}
}

// runTest sends tc.request, awaits the matching response, and evaluates
// expect.response/expect.stderr. The second return value reports whether a
// transport-level error occurred, which forces the caller to restart the
// communicator before the next test (spec §4.F step 3).
func runTest(ctx context.Context, comm *process.Communicator, cfg process.Config, suiteName string, tc suite.Test, seq int, logger *zap.Logger, limiter *rate.Limiter) (report.TestResult, bool) {
	start := time.Now()
	comm.ClearStderr()

	id, frame, err := buildRequest(tc, seq)
	if err != nil {
		return report.TestResult{
			Suite: suiteName, Name: tc.It, Status: report.StatusError,
			Err: err.Error(), DurationMs: report.Elapsed(start, time.Now()),
		}, false
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return report.TestResult{
				Suite: suiteName, Name: tc.It, Status: report.StatusError,
				Err: fmt.Sprintf("rate limit wait: %v", err), DurationMs: report.Elapsed(start, time.Now()),
			}, false
		}
	}

	if err := comm.Send(frame); err != nil {
		return report.TestResult{
			Suite: suiteName, Name: tc.It, Status: report.StatusError,
			Err: err.Error(), DurationMs: report.Elapsed(start, time.Now()),
		}, true
	}

	recvCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	resp, err := awaitMatchingResponse(recvCtx, comm, id)
	if err != nil {
		return report.TestResult{
			Suite: suiteName, Name: tc.It, Status: report.StatusError,
			Err: err.Error(), DurationMs: report.Elapsed(start, time.Now()),
			StderrCaptured: comm.StderrSnapshot(),
		}, true
	}

	var diagnostics []*match.Diagnostic

	if tc.Expect.HasResponse() {
		respAny, err := resp.AsAny()
		if err != nil {
			return report.TestResult{
				Suite: suiteName, Name: tc.It, Status: report.StatusError,
				Err: fmt.Sprintf("decode response: %v", err), DurationMs: report.Elapsed(start, time.Now()),
			}, false
		}
		tpl, err := match.Compile(tc.Expect.Response)
		if err != nil {
			return report.TestResult{
				Suite: suiteName, Name: tc.It, Status: report.StatusError,
				Err: fmt.Sprintf("compile expect.response: %v", err), DurationMs: report.Elapsed(start, time.Now()),
			}, false
		}
		// Envelope fields an object template does not name are not compared,
		// so a template may name only result or error.
		if respMap, ok := respAny.(map[string]any); ok {
			if tplMap, ok := tc.Expect.Response.(map[string]any); ok {
				for _, k := range []string{"jsonrpc", "id"} {
					if _, named := tplMap[k]; !named {
						delete(respMap, k)
					}
				}
			}
		}
		if diag := match.Match(tpl, respAny); diag != nil {
			diagnostics = append(diagnostics, diag)
		}
	}

	if tc.Expect.HasStderr() {
		tpl, err := match.Compile(tc.Expect.Stderr)
		if err != nil {
			return report.TestResult{
				Suite: suiteName, Name: tc.It, Status: report.StatusError,
				Err: fmt.Sprintf("compile expect.stderr: %v", err), DurationMs: report.Elapsed(start, time.Now()),
			}, false
		}
		if diag := match.Match(tpl, comm.StderrSnapshot()); diag != nil {
			diagnostics = append(diagnostics, diag)
		}
	}

	status := report.StatusPass
	if len(diagnostics) > 0 {
		status = report.StatusFail
	}

	return report.TestResult{
		Suite:          suiteName,
		Name:           tc.It,
		Status:         status,
		DurationMs:     report.Elapsed(start, time.Now()),
		Diagnostics:    diagnostics,
		StderrCaptured: comm.StderrSnapshot(),
	}, false
}

// buildRequest materializes tc.Request into a wire.Frame, auto-assigning an
// id of "{method}-{seq}" when the author omitted one.
func buildRequest(tc suite.Test, seq int) (*wire.ID, *wire.Frame, error) {
	method, _ := tc.Request["method"].(string)
	if method == "" {
		return nil, nil, conductorerr.New(conductorerr.ParseError, "test %q request has no \"method\"", tc.It)
	}

	idVal := tc.Request["id"]
	var id *wire.ID
	if idVal == nil {
		id = wire.NewID(fmt.Sprintf("%s-%d", method, seq))
	} else if s, ok := idVal.(string); ok {
		id = wire.NewID(s)
	} else {
		id = wire.NewID(fmt.Sprintf("%v", idVal))
	}

	params := tc.Request["params"]
	frame, err := wire.NewRequest(id, method, params)
	if err != nil {
		return nil, nil, conductorerr.Wrap(conductorerr.ParseError, err, "building request for test %q", tc.It)
	}
	return id, frame, nil
}

// awaitMatchingResponse skips notifications and returns the first response,
// which must echo id, per the invariant that every outbound request's id is
// answered by exactly one response before the next request is sent. A
// response carrying a different id (a stray late reply from an earlier
// request) is reported rather than silently discarded — a deliberate
// divergence — as an UnexpectedLateResponse error for the current test.
func awaitMatchingResponse(ctx context.Context, comm *process.Communicator, want *wire.ID) (*wire.Frame, error) {
	for {
		frame, err := comm.Receive(ctx)
		if err != nil {
			return nil, err
		}
		if frame.IsRequest() {
			return nil, conductorerr.New(conductorerr.HandshakeFailed, "server sent unsolicited request %q mid-session, protocol violation", *frame.Method)
		}
		if frame.IsNotification() {
			continue
		}
		if frame.ID.Equal(want) {
			return frame, nil
		}
		// A straggler from an earlier request. Report it rather than silently
		// discarding it or treating it as our answer; runTest treats this
		// error like a transport error, so the session is restarted before
		// the next test.
		return nil, conductorerr.New(conductorerr.UnexpectedLateResponse, "received response for id %q while awaiting %q", frame.ID.String(), want.String())
	}
}
