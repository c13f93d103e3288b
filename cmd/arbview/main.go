package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"arbview/internal/bus"
	"arbview/internal/feed"
	"arbview/internal/journal"
	"arbview/internal/obs"
	"arbview/internal/ops"
	"arbview/internal/pipeline"
	"arbview/internal/schema"
	"arbview/internal/sink"
	"arbview/pkg/conn"
	"arbview/pkg/exception"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		log.Printf("arbview: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to YAML config (optional)")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		select {
		case <-sys.Shutdown():
			stop()
		case <-ctx.Done():
		}
	}()

	stopProfiler, err := startProfiler(cfg.Pyroscope)
	if err != nil {
		return err
	}
	defer stopProfiler()

	metrics := obs.NewMetrics()

	if cfg.Obs.MemoryReportInterval > 0 {
		go new(obs.MemoryReporter).Run(ctx, cfg.Obs.MemoryReportInterval)
	}

	out, err := openOutputs(ctx, cfg)
	if err != nil {
		return err
	}
	defer out.Close()
	frames, sinks := out.frames, out.sinks

	var wg sync.WaitGroup

	var onApplied func(schema.ArbMarket)
	var sinkQueue *bus.Queue[schema.ArbMarket]
	if len(sinks) != 0 {
		sinkQueue = bus.NewQueue[schema.ArbMarket](cfg.Queue.Sink)
		dispatcher := sink.NewDispatcher(metrics, cfg.Sink.WriteTimeout, sinks...)
		onApplied = func(m schema.ArbMarket) {
			countPublish(metrics, sinkQueue.TryPublish(m))
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			// drain with a fresh context so queued records still reach the sinks after shutdown
			dispatcher.Run(context.Background(), sinkQueue)
		}()
	}

	pipe := pipeline.New(pipeline.Option{
		Metrics:   metrics,
		OnApplied: onApplied,
	})

	ingress := bus.NewQueue[[]byte](cfg.Queue.Ingress)
	wg.Add(1)
	go func() {
		defer wg.Done()
		ingress.Run(ctx, func(buf []byte) {
			_ = pipe.OnBuffer(buf)
		})
		if sinkQueue != nil {
			sinkQueue.Close()
		}
	}()

	client, err := feed.NewClient(feed.Option{
		URL:              cfg.Feed.URL,
		HandshakeTimeout: cfg.Feed.HandshakeTimeout,
		ReadTimeout:      cfg.Feed.ReadTimeout,
		Backoff:          backoffOf(cfg.Feed),
	}, func(buf []byte) {
		// neither the journal nor the pipeline mutates buf, so both may hold it
		if frames != nil && frames.TryAppend(buf) != nil {
			metrics.IncJournalDrop()
		}
		countPublish(metrics, ingress.TryPublish(buf))
	})
	if err != nil {
		return err
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = client.Run(ctx)
		ingress.Close()
	}()

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           newMux(pipe, metrics, client.Connected),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logs.Infof("arbview listening: %s, feed: %s", cfg.HTTP.Addr, cfg.Feed.URL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		stop()
	}

	logs.Info("arbview shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	wg.Wait()
	out.Close()

	snap := metrics.Snapshot()
	logs.Infof("arbview stopped, buffers: %d, applied: %d, dropped: %d, queue drops: %d, sink errors: %d, journal drops: %d",
		snap.Buffers, snap.Applied, snap.Dropped(), snap.QueueDrops, snap.SinkErrors, snap.JournalDrops)
	return err
}

// outputs holds the journal and the sinks, closed together in reverse
// order of opening.
type outputs struct {
	frames  *journal.Writer
	sinks   []sink.Sink
	closers []func()
}

var newJournal = journal.NewWriter

func openOutputs(ctx context.Context, cfg ops.Config) (out *outputs, err error) {
	out = &outputs{}
	defer func() {
		if err != nil {
			out.Close()
			out = nil
		}
	}()

	if cfg.Journal.Enabled {
		w, err := newJournal(cfg.Journal.WriterConfig())
		if err != nil {
			return out, err
		}
		// the writer drains on its own after Close, not on ctx
		if err := w.Start(context.WithoutCancel(ctx)); err != nil {
			return out, err
		}
		out.frames = w
		out.closers = append(out.closers, func() {
			if cerr := w.Close(); cerr != nil {
				logs.Errorf("close journal, err: %+v", cerr)
			}
			logs.Infof("journal closed, frames: %d", w.Appended())
		})
		logs.Infof("journal enabled: %s", cfg.Journal.Dir)
	}

	if cfg.Redis.Enabled {
		client, err := conn.NewRedis(ctx, cfg.Redis.RedisOption())
		if err != nil {
			return out, err
		}
		out.closers = append(out.closers, func() { _ = client.Close() })
		out.sinks = append(out.sinks, sink.NewRedis(client, cfg.Redis.Prefix))
		logs.Infof("redis mirror enabled: %s", cfg.Redis.RedisOption().Addr())
	}

	if cfg.Postgres.Enabled {
		pg, err := conn.NewPostgres(ctx, cfg.Postgres.PostgresOption())
		if err != nil {
			return out, err
		}
		out.closers = append(out.closers, func() { _ = pg.Close() })
		archive, err := sink.NewArchive(pg.DB(), cfg.Postgres.Migrate)
		if err != nil {
			return out, err
		}
		out.sinks = append(out.sinks, archive)
		logs.Infof("postgres archive enabled, run id: %s", archive.RunID())
	}

	return out, nil
}

// Close is safe to call more than once.
func (o *outputs) Close() {
	for i := len(o.closers) - 1; i >= 0; i-- {
		o.closers[i]()
	}
	o.closers = nil
}

func backoffOf(cfg ops.FeedConfig) feed.Backoff {
	b := feed.DefaultBackoff()
	if cfg.BackoffMin > 0 {
		b.Min = cfg.BackoffMin
	}
	if cfg.BackoffMax > 0 {
		b.Max = cfg.BackoffMax
	}
	return b
}

func countPublish(metrics *obs.Metrics, err error) {
	switch {
	case err == nil:
	case errors.Is(err, exception.ErrQueueClosed):
		metrics.IncQueueClosed()
	default:
		metrics.IncQueueDrop()
	}
}
