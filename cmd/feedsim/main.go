package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arbview/internal/chaos"
	"arbview/internal/codec"
	"arbview/internal/feed"

	"github.com/yanun0323/logs"
)

func main() {
	if err := run(); err != nil {
		log.Printf("feedsim: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", ":8090", "Listen address")
	interval := flag.Duration("interval", 250*time.Millisecond, "Delay between rounds")
	pairsFlag := flag.String("pairs", "BTC-USD,ETH-USD,SOL-USD,XRP-USD", "Comma separated pair identifiers")
	exchangesFlag := flag.String("exchanges", "binance,kraken,okx", "Comma separated exchange names")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	dropRate := flag.Float64("drop-rate", 0, "Fraction of frames to drop")
	dupRate := flag.Float64("dup-rate", 0, "Fraction of frames to send twice")
	corruptRate := flag.Float64("corrupt-rate", 0, "Fraction of frames made undecodable")
	reorderWindow := flag.Int("reorder-window", 0, "Shuffle frames within windows of this size (0/1=off)")
	sendBuffer := flag.Int("send-buffer", 256, "Frames queued per subscriber before the oldest is dropped")
	flag.Parse()

	pairs := splitList(*pairsFlag)
	exchanges := splitList(*exchangesFlag)
	if len(pairs) == 0 {
		return errors.New("missing pairs; use -pairs")
	}
	if len(exchanges) < 2 {
		return errors.New("need at least two exchanges; use -exchanges")
	}
	if *interval <= 0 {
		return errors.New("interval must be > 0")
	}

	faults, err := chaos.NewEngine(chaos.Config{
		Seed:          *seed,
		DropRate:      *dropRate,
		DuplicateRate: *dupRate,
		CorruptRate:   *corruptRate,
		ReorderWindow: *reorderWindow,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := feed.NewServer(feed.ServerOption{SendBuffer: *sendBuffer, Overflow: feed.OverflowDropOldest})
	mux := http.NewServeMux()
	mux.Handle("/arb", hub)
	server := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	serveErr := make(chan error, 1)
	go func() {
		logs.Infof("feedsim listening: %s/arb, pairs: %v, exchanges: %v", *addr, pairs, exchanges)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sim := newSimulator(*seed, pairs, exchanges)
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case runErr = <-serveErr:
			break loop
		case <-ticker.C:
			for _, m := range sim.step() {
				// frames may be held back for reordering, so each gets its own buffer
				for _, frame := range faults.Process(codec.EncodeArbMarket(nil, m)) {
					if _, err := hub.Broadcast(frame); err != nil {
						logs.Errorf("broadcast %s, err: %+v", m.HePair, err)
					}
				}
			}
		}
	}

	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	return runErr
}
