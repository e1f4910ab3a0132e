// Package api is the read-only HTTP administrative surface of the broker.
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package api

import (
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/NVIDIA/ratmq/cmn/cos"
	"github.com/NVIDIA/ratmq/cmn/mono"
	"github.com/NVIDIA/ratmq/cmn/nlog"
	"github.com/NVIDIA/ratmq/stats"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// URL paths
const (
	PathQueueSize = "/v1/queue/size"
	PathHealth    = "/v1/health"
	PathEcho      = "/v1/echo"
	PathMetrics   = "/metrics"
)

const maxEchoBody = 1 << 20

type (
	// Sizer is the core's non-blocking queue-size sample (brief mutex
	// acquisition underneath).
	Sizer interface {
		Len() int
	}

	HealthBody struct {
		State  string `json:"state"`
		Uptime int64  `json:"uptime"` // nanoseconds
	}

	// Server is the admin endpoint. Strictly read-only with respect to
	// broker state - it observes the queue via Sizer and exports metrics.
	Server struct {
		lsn     net.Listener
		q       Sizer
		t       *stats.Tracker
		h       *http.Server
		started int64 // mono
		stop    cos.StopCh
	}
)

// interface guard
var _ cos.Runner = (*Server)(nil)

func NewServer(addr string, q Sizer, t *stats.Tracker) (*Server, error) {
	lsn, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{lsn: lsn, q: q, t: t}
	mux := http.NewServeMux()
	mux.HandleFunc(PathQueueSize, s.queueSizeHdlr)
	mux.HandleFunc(PathHealth, s.healthHdlr)
	mux.HandleFunc(PathEcho, s.echoHdlr)
	mux.Handle(PathMetrics, promhttp.HandlerFor(t.PromRegistry(), promhttp.HandlerOpts{}))
	s.h = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	s.stop.Init()
	nlog.Infof("%s: listening on %s", s.Name(), lsn.Addr())
	return s, nil
}

func (*Server) Name() string { return "admin" }

// Addr returns the bound admin address (resolves ":0" in tests).
func (s *Server) Addr() net.Addr { return s.lsn.Addr() }

func (s *Server) Run() error {
	s.started = mono.NanoTime()
	err := s.h.Serve(s.lsn)
	if errors.Is(err, http.ErrServerClosed) || s.stop.Stopped() {
		return nil
	}
	return err
}

func (s *Server) Stop(err error) {
	nlog.Infof("Stopping %s, err: %v", s.Name(), err)
	s.stop.Close()
	s.h.Close()
}

func (s *Server) queueSizeHdlr(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr405(w, r)
		return
	}
	writeJSON(w, s.q.Len())
}

func (s *Server) healthHdlr(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr405(w, r)
		return
	}
	writeJSON(w, HealthBody{State: "running", Uptime: mono.NanoTime() - s.started})
}

// echo accepts a JSON body and returns it verbatim
func (*Server) echoHdlr(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr405(w, r)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEchoBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !cos.JSON.Valid(body) {
		http.Error(w, "request body is not JSON", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(cos.MustMarshal(v))
}

func writeErr405(w http.ResponseWriter, r *http.Request) {
	http.Error(w, r.Method+" not allowed", http.StatusMethodNotAllowed)
}
