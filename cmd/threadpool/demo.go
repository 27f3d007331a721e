package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"threadpool/internal/api"
	"threadpool/internal/config"
	"threadpool/internal/events"
	"threadpool/internal/logger"
	"threadpool/internal/metrics"
	"threadpool/internal/worker"
)

// printer serializes task output. Tasks receive it explicitly.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printer) Printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.w, format, args...)
}

// summary is what the demo reports after shutdown.
type summary struct {
	Submitted int64
	Rejected  int64
	Executed  int64
}

// run builds the pool described by cfg, feeds it the demo tasks and shuts
// it down. With a server address it keeps serving until SIGINT/SIGTERM.
func run(cfg *config.FileConfig, out io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := runDemo(ctx, cfg, out)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "submitted=%d rejected=%d executed=%d\n", sum.Submitted, sum.Rejected, sum.Executed)
	return nil
}

func runDemo(ctx context.Context, cfg *config.FileConfig, out io.Writer) (summary, error) {
	var sum summary

	level, err := cfg.LogLevel()
	if err != nil {
		return sum, err
	}
	logger.Default.SetLevel(level)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	bus := events.NewBus()
	defer bus.Close()

	poolConfig := cfg.ToPoolConfig()
	poolConfig.Metrics = m
	poolConfig.Events = bus

	pool, err := worker.NewPoolWithConfig(poolConfig)
	if err != nil {
		return sum, err
	}
	defer pool.Close()

	serveCtx, cancelServe := context.WithCancel(ctx)
	defer cancelServe()

	serveErr := make(chan error, 1)
	if cfg.Server.Addr != "" {
		server := api.NewServer(cfg.Server.Addr, pool, bus, m, reg)
		if server.ShutdownTimeout, err = cfg.ShutdownTimeout(); err != nil {
			return sum, err
		}
		go func() { serveErr <- server.Start(serveCtx) }()
	}

	var executed atomic.Int64
	p := &printer{w: out}
	sum.Submitted, sum.Rejected, err = submitAll(ctx, pool, cfg.Demo, func(n int) worker.Task {
		return func() {
			executed.Add(1)
			p.Printf("task=%d\n", n)
		}
	})
	if err != nil {
		return sum, err
	}

	if cfg.Server.Addr != "" {
		logger.Info("", "submission finished, serving until interrupted")
		select {
		case <-ctx.Done():
		case err := <-serveErr:
			if err != nil {
				return sum, fmt.Errorf("api server: %w", err)
			}
		}
	}

	pool.Shutdown()
	sum.Executed = executed.Load()
	return sum, nil
}

// submitAll spreads demo.Tasks tasks over demo.Submitters goroutines and
// counts accepted and rejected submissions.
func submitAll(ctx context.Context, pool *worker.Pool, demo config.DemoConfig, task func(n int) worker.Task) (submitted, rejected int64, err error) {
	var accepted, refused atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	for s := range demo.Submitters {
		g.Go(func() error {
			for n := s; n < demo.Tasks; n += demo.Submitters {
				if ctx.Err() != nil {
					return nil
				}
				err := pool.Submit(task(n))
				switch {
				case err == nil:
					accepted.Add(1)
				case errors.Is(err, worker.ErrPoolClosed):
					refused.Add(1)
				default:
					return err
				}
			}
			return nil
		})
	}

	err = g.Wait()
	return accepted.Load(), refused.Load(), err
}
