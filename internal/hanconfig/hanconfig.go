// Package hanconfig resolves the han core's runtime configuration:
// environment variables first (spec.md §6), an optional TOML defaults file
// second, built-in defaults last.
package hanconfig

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds every tunable spec.md §6 names.
type Config struct {
	HookParallelism   int
	NoLock            bool
	AcquireTimeout    time.Duration
	LockStaleTimeout  time.Duration
	MCPTimeout        time.Duration
	SessionID         string
	ValidationHorizon time.Duration
	CheckpointMaxAge  time.Duration
}

// fileDefaults mirrors the subset of Config an on-disk han.toml may set.
// Only fields meaningful as static defaults are present; SessionID is
// always env/runtime-derived, never file-configured.
type fileDefaults struct {
	HookParallelism   int    `toml:"hook_parallelism"`
	NoLock            bool   `toml:"no_lock"`
	AcquireTimeoutMS  int64  `toml:"acquire_timeout_ms"`
	LockStaleMS       int64  `toml:"lock_stale_timeout_ms"`
	MCPTimeoutMS      int64  `toml:"mcp_timeout_ms"`
	ValidationHorizon string `toml:"validation_horizon"`
	CheckpointMaxAge  string `toml:"checkpoint_max_age"`
}

// Default returns the built-in defaults before any file or env overrides.
func Default() Config {
	return Config{
		HookParallelism:   defaultParallelism(),
		NoLock:            false,
		AcquireTimeout:    30 * time.Second,
		LockStaleTimeout:  5 * time.Minute,
		MCPTimeout:        10 * time.Minute,
		ValidationHorizon: 14 * 24 * time.Hour,
		CheckpointMaxAge:  24 * time.Hour,
	}
}

func defaultParallelism() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	return n
}

// Load resolves configuration: defaults, then an optional TOML file at
// path (ignored if unreadable), then environment variables, in that
// inheritance order (spec.md's "User → Instance → Project → Session"
// cascade, collapsed to "file → env" here since there is no multi-level
// identity hierarchy in this core).
func Load(path string) Config {
	cfg := Default()

	if path != "" {
		var fd fileDefaults
		if _, err := toml.DecodeFile(path, &fd); err == nil {
			applyFileDefaults(&cfg, fd)
		}
	}

	applyEnv(&cfg)
	return cfg
}

func applyFileDefaults(cfg *Config, fd fileDefaults) {
	if fd.HookParallelism > 0 {
		cfg.HookParallelism = fd.HookParallelism
	}
	cfg.NoLock = cfg.NoLock || fd.NoLock
	if fd.AcquireTimeoutMS > 0 {
		cfg.AcquireTimeout = time.Duration(fd.AcquireTimeoutMS) * time.Millisecond
	}
	if fd.LockStaleMS > 0 {
		cfg.LockStaleTimeout = time.Duration(fd.LockStaleMS) * time.Millisecond
	}
	if fd.MCPTimeoutMS > 0 {
		cfg.MCPTimeout = time.Duration(fd.MCPTimeoutMS) * time.Millisecond
	}
	if d, err := time.ParseDuration(fd.ValidationHorizon); err == nil {
		cfg.ValidationHorizon = d
	}
	if d, err := time.ParseDuration(fd.CheckpointMaxAge); err == nil {
		cfg.CheckpointMaxAge = d
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HAN_HOOK_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HookParallelism = n
		}
	}
	if os.Getenv("HAN_HOOK_NO_LOCK") == "1" {
		cfg.NoLock = true
	}
	if v := os.Getenv("HAN_HOOK_ACQUIRE_TIMEOUT"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
			cfg.AcquireTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("HAN_HOOK_LOCK_TIMEOUT"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
			cfg.LockStaleTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("HAN_MCP_TIMEOUT"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
			cfg.MCPTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("HAN_SESSION_ID"); v != "" {
		cfg.SessionID = v
	}
}
