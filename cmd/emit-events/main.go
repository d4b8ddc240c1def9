package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/repforge/internal/emitter"
	"github.com/okian/repforge/pkg/logger"
)

const defaultRunTimeout = 10 * time.Minute

func main() {
	var (
		baseURL   = flag.String("url", emitter.DefaultBaseURL, "Base URL of the service")
		numEvents = flag.Int("events", emitter.DefaultEvents, "Number of events to generate and submit")
		owners    = flag.Int("owners", emitter.DefaultOwners, "Number of distinct owners")
		workers   = flag.Int("workers", runtime.NumCPU()*2, "Number of concurrent submitters")
		timeout   = flag.Duration("timeout", emitter.DefaultTimeout, "HTTP request timeout")
		seed      = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Seed for a reproducible batch")
		dupRate   = flag.Float64("dup-rate", 0.05, "Share of events that replay an earlier id")
		dispatch  = flag.Bool("dispatch", true, "Trigger dispatch cycles after submitting")
		verify    = flag.Bool("verify", true, "Check every owner's balance against its ledger")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
		format    = flag.String("log-format", "text", "Log format: text or json")
	)
	flag.Parse()

	if err := logger.Init(logger.WithFormat(*format)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	stats, err := emitter.Run(ctx, &emitter.Config{
		BaseURL:       *baseURL,
		NumEvents:     *numEvents,
		Owners:        *owners,
		Workers:       *workers,
		Timeout:       *timeout,
		Seed:          *seed,
		DuplicateRate: *dupRate,
		Dispatch:      *dispatch,
		Verify:        *verify && *dispatch,
		Verbose:       *verbose,
	})
	_ = json.NewEncoder(os.Stdout).Encode(stats)
	if err != nil {
		os.Stderr.WriteString("emit failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
