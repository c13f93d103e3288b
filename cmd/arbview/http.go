package main

import (
	"net/http"

	"arbview/internal/obs"
	"arbview/internal/view"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/logs"
)

type viewSource interface {
	CurrentView() []view.Row
	Len() int
}

type health struct {
	Status       string `json:"status"`
	FeedUp       bool   `json:"feedUp"`
	Pairs        int    `json:"pairs"`
	Buffers      uint64 `json:"buffers"`
	Applied      uint64 `json:"applied"`
	Dropped      uint64 `json:"dropped"`
	QueueDrops   uint64 `json:"queueDrops"`
	SinkErrors   uint64 `json:"sinkErrors"`
	JournalDrops uint64 `json:"journalDrops"`
	ApplyAvgNano int64  `json:"applyAvgNs"`
}

func newMux(src viewSource, metrics *obs.Metrics, feedUp func() bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /view", func(w http.ResponseWriter, r *http.Request) {
		body, err := view.MarshalRows(src.CurrentView())
		if err != nil {
			logs.Errorf("marshal view, err: %+v", err)
			http.Error(w, "marshal view", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, body)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		snap := metrics.Snapshot()
		h := health{
			Status:       "ok",
			FeedUp:       feedUp(),
			Pairs:        src.Len(),
			Buffers:      snap.Buffers,
			Applied:      snap.Applied,
			Dropped:      snap.Dropped(),
			QueueDrops:   snap.QueueDrops,
			SinkErrors:   snap.SinkErrors,
			JournalDrops: snap.JournalDrops,
			ApplyAvgNano: int64(snap.ApplyLatency.Avg),
		}
		status := http.StatusOK
		if !h.FeedUp {
			h.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		body, err := sonic.Marshal(h)
		if err != nil {
			http.Error(w, "marshal health", http.StatusInternalServerError)
			return
		}
		writeJSON(w, status, body)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
