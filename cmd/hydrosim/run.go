package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dd0wney/hydroturbo/pkg/config"
	"github.com/dd0wney/hydroturbo/pkg/engine"
	"github.com/dd0wney/hydroturbo/pkg/engine/native"
	"github.com/dd0wney/hydroturbo/pkg/logging"
	"github.com/dd0wney/hydroturbo/pkg/metrics"
	"github.com/dd0wney/hydroturbo/pkg/session"
	"github.com/dd0wney/hydroturbo/pkg/topology"
)

func runCommand(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	batchPath := fs.String("config", "batch.yaml", "Batch configuration file")
	library := fs.String("library", "", "Engine shared library (overrides the batch file)")
	only := fs.String("scenario", "", "Run only the named scenario")
	if err := fs.Parse(args); err != nil {
		return err
	}

	b, err := config.Load(*batchPath)
	if err != nil {
		return err
	}
	if *library != "" {
		b.Library = *library
	}

	logger := logging.New(os.Stderr, logging.Config{
		Level:  logging.ParseLevel(b.LogLevel),
		Format: os.Getenv("LOG_FORMAT"),
	})
	reg := metrics.NewRegistry()
	reg.SetSolverThreads(b.Threads)
	if b.MetricsAddr != "" {
		srv := serveMetrics(b.MetricsAddr, reg, logger)
		defer srv.Close()
	}

	lib, err := native.Load(b.Library, native.WithThreads(b.Threads))
	if err != nil {
		return err
	}
	defer func() {
		if err := lib.Unload(); err != nil {
			logger.Warn("unload engine library", logging.Error(err))
		}
	}()
	eng, err := lib.Engine()
	if err != nil {
		return err
	}
	logger.Info("engine bound",
		logging.Path(lib.Path()),
		logging.String("convention", lib.Convention().String()),
		logging.Bool("batched", lib.Batched()),
		logging.Bool("profiled", lib.Profiled()),
		logging.Int("threads", b.Threads))

	return runBatch(w, b, eng, *only, logger, reg)
}

// runBatch opens one context for the batch's network and runs every
// selected scenario against it. A failed scenario does not stop the batch.
func runBatch(w io.Writer, b *config.Batch, lib engine.Library, only string, logger logging.Logger, reg *metrics.Registry) (err error) {
	selected := b.Scenarios
	if only != "" {
		selected = nil
		for _, s := range b.Scenarios {
			if s.Name == only {
				selected = append(selected, s)
			}
		}
		if len(selected) == 0 {
			return fmt.Errorf("no scenario named %q", only)
		}
	}

	if err := os.MkdirAll(b.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	opts := []session.Option{session.WithLogger(logger), session.WithMetrics(reg)}
	if b.TopologyCache {
		p := topology.NewDocumentProvider(b.Network, logger)
		p.Workers = b.Workers
		p.Metrics = reg
		opts = append(opts, session.WithTopologyProvider(p))
	}
	if b.PerIndex {
		opts = append(opts, session.WithPerIndexAccess())
	}

	started := time.Now()
	refresh, stopRefresh := context.WithCancel(context.Background())
	defer stopRefresh()
	go reg.RefreshProcessMetrics(refresh, started, metrics.DefaultRefreshInterval)
	reg.SetScenariosPending(len(selected))

	ctx, err := session.Open(b.Network, lib, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := ctx.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	fmt.Fprintf(w, "network %s: %d nodes, %d links\n", b.Network, len(ctx.NodeIDs()), len(ctx.LinkIDs()))

	var failed []error
	for i, s := range selected {
		line, err := runOne(ctx, b, s)
		reg.SetScenariosPending(len(selected) - i - 1)
		if err != nil {
			failed = append(failed, fmt.Errorf("scenario %s: %w", s.Name, err))
			fmt.Fprintf(w, "%-20s FAILED  %v\n", s.Name, err)
			continue
		}
		fmt.Fprintf(w, "%-20s %s\n", s.Name, line)
	}

	if p, ok := ctx.Profile(); ok {
		fmt.Fprintf(w, "solver: %d periods, %d iterations, %.1f%% in assembly and solve\n",
			p.StepCount, p.IterCount, 100*p.SolveEfficiency())
	}
	reg.UpdateSystemMetrics(started)

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d scenarios failed: %w", len(failed), len(selected), errors.Join(failed...))
	}
	return nil
}

func runOne(ctx *session.Context, b *config.Batch, s config.Scenario) (string, error) {
	if s.Streamed() {
		out, err := ctx.RunScenarioStreaming(filepath.Join(b.OutputDir, s.Name), s.StreamOptions(b.OutputFormat()))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("stream  %s", out), nil
	}

	table, err := ctx.RunScenario(s.Options())
	if err != nil {
		return "", err
	}
	path := filepath.Join(b.OutputDir, s.Name+".csv")
	if err := writeTable(path, table); err != nil {
		return "", err
	}
	return fmt.Sprintf("memory  %d periods  %s", table.Len(), path), nil
}

// writeTable writes one row per period: elapsed seconds, then one pressure
// column per node.
func writeTable(path string, table *session.PressureTable) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	cw.Write(append([]string{"time"}, table.NodeIDs...))
	record := make([]string, len(table.NodeIDs)+1)
	for i, row := range table.Values {
		record[0] = strconv.FormatInt(table.Times[i], 10)
		for j, v := range row {
			record[j+1] = strconv.FormatFloat(v, 'f', 4, 64)
		}
		cw.Write(record)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func serveMetrics(addr string, reg *metrics.Registry, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", logging.Error(err))
		}
	}()
	logger.Info("serving metrics", logging.String("addr", addr))
	return srv
}
