package mlatflow

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghalamif/mlatflow/internal/ports"
)

type httpServer struct {
	srv  *http.Server
	addr net.Addr
}

func (h *httpServer) Shutdown(ctx context.Context) error {
	if err := h.srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// IndexView is the body of /api/v1/index.
type IndexView struct {
	IndexStats
	QueueLength int           `json:"queue_length"`
	Stations    int           `json:"stations"`
	Capture     *CaptureStats `json:"capture,omitempty"`
}

// Handler serves /metrics, /healthz, /readyz, /api/v1/stations and
// /api/v1/index.
func (r *Runtime) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !r.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("/api/v1/stations", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, r.Stations())
	})
	mux.HandleFunc("/api/v1/index", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, r.indexView())
	})
	return mux
}

func (r *Runtime) indexView() IndexView {
	view := IndexView{
		IndexStats:  r.index.Stats(),
		QueueLength: r.queue.Len(),
		Stations:    r.dir.Len(),
	}
	if c := r.capture; c != nil {
		st := c.Stats()
		view.Capture = &st
	}
	return view
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (r *Runtime) startHTTP() error {
	ln, err := net.Listen("tcp", r.cfg.Metrics.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           r.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.metricsSrv = &httpServer{srv: srv, addr: ln.Addr()}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogError("metrics_server_exited", err, ports.Field{Key: "addr", Value: ln.Addr().String()})
		}
	}()
	return nil
}
