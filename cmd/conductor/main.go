// Command conductor runs a declarative suite of MCP conformance tests
// against a stdio server and reports the results. Grounded on the teacher's
// gateway/cmd/main.go bootstrap shape: build a zap logger first, parse
// flags, load configuration, run the workload, then map its outcome to a
// process exit code.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mcpconductor/conductor/internal/config"
	"github.com/mcpconductor/conductor/internal/report"
	"github.com/mcpconductor/conductor/internal/runner"
	"github.com/mcpconductor/conductor/internal/suite"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("conductor", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the server config JSON file (or set CONDUCTOR_CONFIG)")
	filterExpr := fs.String("filter", "", "filter tests by tag:x, /regex/, or substring")
	jsonOutput := fs.Bool("json", false, "emit the machine-readable JSON result document instead of a human summary")
	groupErrors := fs.Bool("group-errors", false, "cluster failure diagnostics by matcher kind and path")
	maxErrors := fs.Int("max-errors", 0, "stop printing diagnostics for a group after this many samples (0 = unlimited)")
	concise := fs.Bool("concise", false, "print one line per test instead of full diagnostics")
	maxParallelSuites := fs.Int("max-parallel-suites", 1, "run up to N suites concurrently, each with its own server session")
	verbose := fs.Bool("verbose", false, "enable debug-level logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logLevel := zapcore.InfoLevel
	if *verbose {
		logLevel = zapcore.DebugLevel
	}
	loggerCfg := zap.NewDevelopmentConfig()
	loggerCfg.Level = zap.NewAtomicLevelAt(logLevel)
	loggerCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := loggerCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	path, err := config.ResolvePath(*configPath)
	if err != nil {
		logger.Error("resolving config path", zap.Error(err))
		return 1
	}
	serverCfg, err := config.Load(path, logger)
	if err != nil {
		logger.Error("loading config", zap.Error(err))
		return 1
	}

	suiteGlobs := fs.Args()
	if len(suiteGlobs) == 0 {
		logger.Error("no suite files given")
		return 2
	}
	suites, err := loadSuites(suiteGlobs)
	if err != nil {
		logger.Error("loading suites", zap.Error(err))
		return 1
	}

	if *filterExpr != "" {
		f, err := suite.ParseFilter(*filterExpr)
		if err != nil {
			logger.Error("parsing filter", zap.Error(err))
			return 2
		}
		suites = f.Apply(suites)
	}
	if err := suite.Validate(suites); err != nil {
		logger.Error("invalid suite", zap.Error(err))
		return 1
	}
	if len(suites) == 0 {
		logger.Warn("no tests survived filtering")
		fmt.Println("no tests to run")
		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		logger.Info("received termination signal, cancelling run")
		cancel()
	}()

	result, err := runner.Run(ctx, serverCfg, suites, logger, runner.Options{MaxParallelSuites: *maxParallelSuites})
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		return 1
	}

	render(result, renderOptions{
		json:        *jsonOutput,
		groupErrors: *groupErrors,
		maxErrors:   *maxErrors,
		concise:     *concise,
	})

	if !result.Passed() {
		return 1
	}
	return 0
}

// loadSuites reads every YAML suite file named or globbed on the command
// line and concatenates their parsed suites in argument order.
func loadSuites(paths []string) ([]suite.Suite, error) {
	var all []suite.Suite
	for _, pattern := range paths {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			matches = []string{pattern}
		}
		for _, path := range matches {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", path, err)
			}
			suites, err := suite.ParseDocument(data)
			if err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
			all = append(all, suites...)
		}
	}
	return all, nil
}

type renderOptions struct {
	json        bool
	groupErrors bool
	maxErrors   int
	concise     bool
}

func render(result *report.RunResult, opts renderOptions) {
	if opts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
		return
	}

	if opts.groupErrors {
		renderGrouped(result, opts)
		return
	}

	for _, s := range result.Suites {
		fmt.Printf("%s\n", s.Description)
		for _, t := range s.Tests {
			renderTestLine(t, opts.concise)
		}
	}
	fmt.Printf("\n%d passed, %d failed, %d errored, %d skipped (%dms)\n",
		result.Summary.Pass, result.Summary.Fail, result.Summary.Error, result.Summary.Skipped, result.Summary.DurationMs)
}

func renderGrouped(result *report.RunResult, opts renderOptions) {
	groups := report.GroupDiagnostics(result.Suites)
	for _, g := range groups {
		fmt.Printf("[%s] %s x%d\n", g.Matcher, g.Path, g.Count)
		shown := g.Tests
		if opts.maxErrors > 0 && len(shown) > opts.maxErrors {
			shown = shown[:opts.maxErrors]
		}
		for _, name := range shown {
			fmt.Printf("    %s\n", name)
		}
		if opts.maxErrors > 0 && len(g.Tests) > opts.maxErrors {
			fmt.Printf("    ... and %d more\n", len(g.Tests)-opts.maxErrors)
		}
	}
	fmt.Printf("\n%d passed, %d failed, %d errored, %d skipped (%dms)\n",
		result.Summary.Pass, result.Summary.Fail, result.Summary.Error, result.Summary.Skipped, result.Summary.DurationMs)
}

func renderTestLine(t report.TestResult, concise bool) {
	symbol := "?"
	switch t.Status {
	case report.StatusPass:
		symbol = "✓"
	case report.StatusFail:
		symbol = "✗"
	case report.StatusError:
		symbol = "!"
	case report.StatusSkipped:
		symbol = "-"
	}
	fmt.Printf("  %s %s (%dms)\n", symbol, t.Name, t.DurationMs)
	if concise || t.Status == report.StatusPass || t.Status == report.StatusSkipped {
		return
	}
	if t.Err != "" {
		fmt.Printf("      %s\n", t.Err)
	}
	for _, d := range t.Diagnostics {
		fmt.Printf("      %s\n", strings.TrimSpace(d.String()))
	}
}
