// cyberspace is a persistent 3D virtual world server: clients connect over
// a binary stream protocol to place and mutate objects and move avatars
// through a shared, server-authoritative world, with a parallel UDP relay
// for voice and a pluggable ingestion path for external world data.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cyberspace/config"
	"cyberspace/logging"
	"cyberspace/server"
)

func main() {
	cmd := config.BuildRootCommand(run)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logging.ApplyConfig(cfg.LogDir, cfg.LogLevel, cfg.TraceModules); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	if cfg.Test {
		if err := runSelfTests(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "self-test failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("self-tests passed")
		os.Exit(0)
	}

	ctx, err := server.New(cfg)
	if err != nil {
		logging.Error("startup failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	logging.Info("cyberspace server starting", map[string]interface{}{
		"host": cfg.Host, "port": cfg.Port, "voice_port": cfg.VoicePort,
		"state_dir": cfg.StateDir, "tick_period": cfg.TickPeriod.String(),
	})
	ctx.Run()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logging.Info("shutdown signal received", nil)
	ctx.Shutdown()
	logging.Info("cyberspace server stopped", nil)
	return nil
}
