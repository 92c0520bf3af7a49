// Package config resolves the server's configuration with the same
// layering the teacher's config package uses — flags override environment
// variables, which override a .env file, which override defaults — except
// flags are now defined with cobra and the .env file is loaded with
// godotenv instead of a hand-rolled line scanner.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Config is the complete, resolved server configuration.
type Config struct {
	Host      string
	Port      int
	VoicePort int
	StateDir  string

	SrcResourceDir string
	Test           bool

	TickPeriod       time.Duration
	SnapshotCompress bool

	LogLevel     string
	LogDir       string
	TraceModules []string
}

func defaultStateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "cyberspace")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "cyberspace")
	}
	return filepath.Join(home, ".local", "state", "cyberspace")
}

func defaults() *Config {
	return &Config{
		Host:             "0.0.0.0",
		Port:             7600,
		VoicePort:        7601,
		StateDir:         defaultStateDir(),
		TickPeriod:       100 * time.Millisecond,
		SnapshotCompress: true,
		LogLevel:         "INFO",
		LogDir:           "",
	}
}

// loadEnvFile mirrors the teacher's "apply a .env file if present, without
// overriding variables already set in the real environment" behavior, via
// godotenv instead of a hand-written scanner.
func loadEnvFile() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	_ = godotenv.Load()
}

func (c *Config) applyEnvironmentVariables() {
	if v := os.Getenv("CYBERSPACE_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("CYBERSPACE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v := os.Getenv("CYBERSPACE_VOICE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.VoicePort = n
		}
	}
	if v := os.Getenv("CYBERSPACE_STATE_DIR"); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv("CYBERSPACE_SRC_RESOURCE_DIR"); v != "" {
		c.SrcResourceDir = v
	}
	if v := os.Getenv("CYBERSPACE_TICK_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.TickPeriod = d
		}
	}
	if v := os.Getenv("CYBERSPACE_SNAPSHOT_COMPRESS"); v != "" {
		c.SnapshotCompress = v == "true" || v == "1"
	}
	if v := os.Getenv("CYBERSPACE_LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToUpper(v)
	}
	if v := os.Getenv("CYBERSPACE_LOG_DIR"); v != "" {
		c.LogDir = v
	}
	if v := os.Getenv("CYBERSPACE_TRACE_MODULES"); v != "" {
		c.TraceModules = strings.Split(v, ",")
	}
}

// BuildRootCommand wires cobra flags over the layered defaults/env/.env
// config and invokes run with the final resolved *Config once cobra parses
// os.Args. This keeps the process single-command (no subcommands), same as
// the original server's flat flag set.
func BuildRootCommand(run func(*Config) error) *cobra.Command {
	loadEnvFile()
	cfg := defaults()
	cfg.applyEnvironmentVariables()

	cmd := &cobra.Command{
		Use:   "cyberspace",
		Short: "Cyberspace world server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
		SilenceUsage: true,
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.Host, "host", cfg.Host, "host to bind the stream listener to")
	flags.IntVar(&cfg.Port, "port", cfg.Port, "TCP port for the stream protocol")
	flags.IntVar(&cfg.VoicePort, "voice-port", cfg.VoicePort, "UDP port for the voice relay")
	flags.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for the snapshot file and resource store")
	flags.StringVar(&cfg.SrcResourceDir, "src_resource_dir", cfg.SrcResourceDir, "alternate resource lookup directory")
	flags.BoolVar(&cfg.Test, "test", cfg.Test, "run internal self-tests and exit (0 on success, 1 on failure)")
	flags.DurationVar(&cfg.TickPeriod, "tick-period", cfg.TickPeriod, "world tick period")
	flags.BoolVar(&cfg.SnapshotCompress, "snapshot-compress", cfg.SnapshotCompress, "LZ4-compress snapshot checkpoints")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "logging level (TRACE, DEBUG, INFO, WARN, ERROR, FATAL)")
	flags.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "log directory (empty logs to stderr)")
	var traceModules string
	flags.StringVar(&traceModules, "trace-modules", strings.Join(cfg.TraceModules, ","), "comma-separated trace modules")

	cobra.OnInitialize(func() {
		if traceModules != "" {
			cfg.TraceModules = strings.Split(traceModules, ",")
		}
	})

	return cmd
}

// Validate checks invariants that the flag/env layering alone can't enforce.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.VoicePort <= 0 || c.VoicePort > 65535 {
		return fmt.Errorf("invalid voice port: %d", c.VoicePort)
	}
	if c.TickPeriod <= 0 {
		return fmt.Errorf("tick period must be positive")
	}
	if !filepath.IsAbs(c.StateDir) {
		abs, err := filepath.Abs(c.StateDir)
		if err != nil {
			return fmt.Errorf("resolve state dir: %w", err)
		}
		c.StateDir = abs
	}
	return os.MkdirAll(c.StateDir, 0o755)
}
