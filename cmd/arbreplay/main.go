package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"arbview/internal/chaos"
	"arbview/internal/journal"
	"arbview/internal/obs"
	"arbview/internal/pipeline"
	"arbview/internal/view"
)

func main() {
	dir := flag.String("dir", "data/journal", "Journal directory")
	prefix := flag.String("prefix", "", "Segment file prefix (default: frames)")
	speed := flag.Float64("speed", 0, "Playback speed (1=real-time, 0=no pacing)")
	noChecksum := flag.Bool("no-checksum", false, "Disable checksum validation")
	maxPayload := flag.Int("max-payload", 0, "Max payload size in bytes (0=unlimited)")
	verbose := flag.Bool("v", false, "Print every frame")
	seed := flag.Int64("seed", 0, "Fault RNG seed (0=now)")
	dropRate := flag.Float64("drop-rate", 0, "Drop probability [0-1]")
	dupRate := flag.Float64("dup-rate", 0, "Duplicate probability [0-1]")
	corruptRate := flag.Float64("corrupt-rate", 0, "Corrupt probability [0-1]")
	reorderWindow := flag.Int("reorder-window", 1, "Reorder window (>=1)")
	flag.Parse()

	pb, err := journal.NewPlayback(journal.PlaybackConfig{
		Dir:             *dir,
		FilePrefix:      *prefix,
		Speed:           *speed,
		DisableChecksum: *noChecksum,
		MaxPayloadSize:  *maxPayload,
	})
	if err != nil {
		log.Fatalf("playback init failed: %v", err)
	}

	var faults *chaos.Engine
	faultCfg := chaos.Config{
		Seed:          *seed,
		DropRate:      *dropRate,
		DuplicateRate: *dupRate,
		CorruptRate:   *corruptRate,
		ReorderWindow: *reorderWindow,
	}
	if faultCfg.Enabled() {
		if faults, err = chaos.NewEngine(faultCfg); err != nil {
			log.Fatalf("fault config invalid: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var trace io.Writer
	if *verbose {
		trace = os.Stdout
	}
	res, err := replay(ctx, pb, faults, trace)
	if err != nil {
		log.Fatalf("playback run failed: %v", err)
	}

	body, err := view.MarshalRows(res.rows)
	if err != nil {
		log.Fatalf("marshal view failed: %v", err)
	}
	fmt.Println(string(body))
	printSummary(os.Stderr, res)
}

type result struct {
	frames uint64
	rows   []view.Row
	snap   obs.Snapshot
}

// replay folds every journaled frame into a fresh pipeline. A nil faults
// engine passes frames through unchanged.
func replay(ctx context.Context, pb *journal.Playback, faults *chaos.Engine, trace io.Writer) (result, error) {
	metrics := obs.NewMetrics()
	pipe := pipeline.New(pipeline.Option{Metrics: metrics})

	var res result
	apply := func(frame journal.Frame, payload []byte) {
		res.frames++
		decodeErr := pipe.OnBuffer(payload)
		if trace != nil {
			status := "ok"
			if decodeErr != nil {
				status = decodeErr.Error()
			}
			fmt.Fprintf(trace, "%06d seq=%d recv=%d len=%d %s\n", res.frames, frame.Seq, frame.RecvAt, len(payload), status)
		}
	}

	err := pb.Run(ctx, func(frame journal.Frame, payload []byte) error {
		if faults == nil {
			apply(frame, payload)
			return nil
		}
		// the reader reuses payload and the engine may hold frames back
		for _, out := range faults.Process(bytes.Clone(payload)) {
			apply(frame, out)
		}
		return nil
	})
	if err == nil {
		for _, out := range faults.Flush() {
			apply(journal.Frame{}, out)
		}
	}
	res.rows = pipe.CurrentView()
	res.snap = metrics.Snapshot()
	return res, err
}

func printSummary(w io.Writer, res result) {
	fmt.Fprintf(w, "frames=%d applied=%d dropped=%d pairs=%d\n", res.frames, res.snap.Applied, res.snap.Dropped(), len(res.rows))
	for kind, n := range res.snap.DecodeErrors {
		fmt.Fprintf(w, "  decode_error kind=%s count=%d\n", kind, n)
	}
	lat := res.snap.ApplyLatency
	if lat.Count > 0 {
		fmt.Fprintf(w, "  apply_latency min=%s avg=%s max=%s\n", lat.Min, lat.Avg, lat.Max)
	}
}
