// Package main is the demo driver for the worker pool.
package main

import (
	"flag"
	"fmt"
	"os"

	"threadpool/internal/config"
	"threadpool/internal/logger"
)

var (
	version = "dev"
)

func main() {
	var (
		configFile  = flag.String("config", "", "config file path (YAML/JSON)")
		workers     = flag.Int("workers", 5, "number of pool workers")
		tasks       = flag.Int("tasks", 100, "number of demo tasks to submit")
		submitters  = flag.Int("submitters", 1, "number of goroutines submitting tasks")
		logLevel    = flag.String("log-level", "info", "log level (debug, info, warn, error)")
		addr        = flag.String("addr", "", "serve the status API on this address (e.g. :8080)")
		showVersion = flag.Bool("version", false, "print version and exit")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `threadpool - fixed-size worker pool demo

Usage:
  threadpool [options]

Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # 5 workers, 100 tasks
  threadpool

  # fan submission out over 4 goroutines
  threadpool --workers 8 --tasks 10000 --submitters 4

  # load settings from a file, keep serving /metrics and /ws until Ctrl+C
  threadpool --config pool.yaml --addr :8080
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("threadpool version %s\n", version)
		return
	}

	// only flags given on the command line override the file
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := buildConfig(*configFile, func(c *config.FileConfig) {
		if set["workers"] {
			c.Pool.Workers = *workers
		}
		if set["tasks"] {
			c.Demo.Tasks = *tasks
		}
		if set["submitters"] {
			c.Demo.Submitters = *submitters
		}
		if set["log-level"] {
			c.Log.Level = *logLevel
		}
		if set["addr"] {
			c.Server.Addr = *addr
		}
	})
	if err != nil {
		logger.Error("", "config error: %v", err)
		os.Exit(1)
	}

	if err := run(cfg, os.Stdout); err != nil {
		logger.Error("", "demo failed: %v", err)
		os.Exit(1)
	}
}

// buildConfig loads the file (or defaults), applies overrides and validates.
func buildConfig(configFile string, override func(*config.FileConfig)) (*config.FileConfig, error) {
	cfg := config.Default()

	if configFile != "" {
		loaded, err := config.LoadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if override != nil {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
