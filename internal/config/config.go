// Package config loads a ServerConfig from a JSON file and overlays
// environment variables on top, in the spirit of the teacher's
// shared/config loaders: decode into a plain struct, validate afterward,
// then let environment variables win over file contents for deployment-time
// overrides. Grounded on gateway/cmd/main.go's EnvConfigYAML/EnvDatabaseURL
// precedence pattern, adapted from "env picks which backend" to "env
// overlays fields of one backend".
package config

import (
	"encoding/json"
	"os"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mcpconductor/conductor/internal/conductorerr"
	"github.com/mcpconductor/conductor/internal/process"
)

// EnvConfigPath is checked when no --config flag is given.
const EnvConfigPath = "CONDUCTOR_CONFIG"

// EnvOverridePrefix folds CONDUCTOR_SERVER_ENV_FOO=bar into the launched
// server's env map as FOO=bar, letting CI override a single variable
// without editing the suite's config file.
const EnvOverridePrefix = "CONDUCTOR_SERVER_ENV_"

const (
	defaultStartupTimeout      = 10 * time.Second
	defaultRequestTimeout      = 5 * time.Second
	defaultPostInitializeDelay = 100 * time.Millisecond
	defaultClientName          = "mcp-conductor"
	defaultClientVersion       = "0.1.0"
)

// fileConfig is the on-disk JSON shape: milliseconds and plain strings,
// translated to process.Config's Go-native Duration fields after load.
type fileConfig struct {
	Name                string            `json:"name"`
	Command             string            `json:"command"`
	Args                []string          `json:"args"`
	Cwd                 string            `json:"cwd"`
	Env                 map[string]string `json:"env"`
	StartupTimeoutMs    *int64            `json:"startupTimeoutMs"`
	RequestTimeoutMs    *int64            `json:"requestTimeoutMs"`
	PostInitDelayMs     *int64            `json:"postInitializeDelayMs"`
	ReadyPattern        string            `json:"readyPattern"`
	ClientName          string            `json:"clientName"`
	ClientVersion       string            `json:"clientVersion"`
	RequestsPerSecond   float64           `json:"requestsPerSecond"`
}

// Load reads and validates a ServerConfig from path, then overlays any
// CONDUCTOR_SERVER_ENV_* variables found in the process environment.
// Unknown JSON fields are ignored rather than rejected, matching the
// teacher's tolerant decode-then-validate style.
func Load(path string, logger *zap.Logger) (process.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return process.Config{}, conductorerr.Wrap(conductorerr.ConfigInvalid, err, "reading config file %s", path)
	}
	var fc fileConfig
	if err := json.Unmarshal(raw, &fc); err != nil {
		return process.Config{}, conductorerr.Wrap(conductorerr.ConfigInvalid, err, "parsing config file %s", path)
	}
	cfg, err := fromFile(fc)
	if err != nil {
		return process.Config{}, err
	}
	overlayEnv(&cfg, os.Environ())
	if logger != nil {
		logger.Debug("loaded server config",
			zap.String("command", cfg.Command),
			zap.Strings("args", cfg.Args),
			zap.Duration("startupTimeout", cfg.StartupTimeout),
			zap.Duration("requestTimeout", cfg.RequestTimeout),
		)
	}
	return cfg, nil
}

// ResolvePath returns the --config flag value if set, else EnvConfigPath
// from the environment, else an error — there is no further default.
func ResolvePath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv(EnvConfigPath); v != "" {
		return v, nil
	}
	return "", conductorerr.New(conductorerr.ConfigInvalid, "no config path given: pass --config or set %s", EnvConfigPath)
}

func fromFile(fc fileConfig) (process.Config, error) {
	if fc.Command == "" {
		return process.Config{}, conductorerr.New(conductorerr.ConfigInvalid, "config has no \"command\"")
	}
	if fc.ReadyPattern != "" {
		if _, err := regexp.Compile(fc.ReadyPattern); err != nil {
			return process.Config{}, conductorerr.Wrap(conductorerr.ConfigInvalid, err, "invalid readyPattern")
		}
	}

	cfg := process.Config{
		Name:                fc.Name,
		Command:             fc.Command,
		Args:                append([]string(nil), fc.Args...),
		Cwd:                 fc.Cwd,
		Env:                 cloneEnv(fc.Env),
		StartupTimeout:      durationOrDefault(fc.StartupTimeoutMs, defaultStartupTimeout),
		RequestTimeout:      durationOrDefault(fc.RequestTimeoutMs, defaultRequestTimeout),
		PostInitializeDelay: durationOrDefault(fc.PostInitDelayMs, defaultPostInitializeDelay),
		ReadyPattern:        fc.ReadyPattern,
		ClientName:          orDefault(fc.ClientName, defaultClientName),
		ClientVersion:       orDefault(fc.ClientVersion, defaultClientVersion),
		RequestsPerSecond:   fc.RequestsPerSecond,
	}
	return cfg, nil
}

func durationOrDefault(ms *int64, def time.Duration) time.Duration {
	if ms == nil {
		return def
	}
	return time.Duration(*ms) * time.Millisecond
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func cloneEnv(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// overlayEnv folds CONDUCTOR_SERVER_ENV_FOO=bar entries from environ into
// cfg.Env as FOO=bar, taking precedence over whatever the config file set.
func overlayEnv(cfg *process.Config, environ []string) {
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvOverridePrefix) {
			continue
		}
		rest := strings.TrimPrefix(kv, EnvOverridePrefix)
		idx := strings.Index(rest, "=")
		if idx < 0 {
			continue
		}
		name, value := rest[:idx], rest[idx+1:]
		if name == "" {
			continue
		}
		if cfg.Env == nil {
			cfg.Env = map[string]string{}
		}
		cfg.Env[name] = value
	}
}
