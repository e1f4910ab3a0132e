// Package stats provides methods and functionality to register, track, log,
// and Prometheus-export broker statistics, for the most part "counter" and "gauge" kinds.
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package stats

import (
	"sort"
	"strconv"
	"strings"
	ratomic "sync/atomic"

	"github.com/NVIDIA/ratmq/cmn/cos"
	"github.com/NVIDIA/ratmq/cmn/nlog"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	KindCounter = "counter"
	KindGauge   = "gauge"
)

// metric names
const (
	MsgRecvCount        = "msg.recv.n"            // producer frames enqueued
	MsgDeliverCount     = "msg.deliver.n"         // payloads accepted by a consumer outbox
	MsgAckCount         = "msg.ack.n"             // acks matched against in-progress
	RollbackFullCount   = "msg.rollback.full.n"   // deliveries undone: outbox full
	RollbackClosedCount = "msg.rollback.closed.n" // deliveries undone: writer gone
	InprogDupCount      = "mq.inprog.dup.n"       // in-progress overwrites (duplicate refer)
	FrameErrCount       = "frame.err.n"           // malformed frames skipped
	SubscribeCount      = "sub.n"                 // registered consumers, cumulative

	QueueLenGauge    = "mq.queue.len"
	InprogLenGauge   = "mq.inprog.n"
	ClientCountGauge = "client.n"
)

type (
	statsValue struct {
		kind string
		val  ratomic.Int64
		prev int64 // value at the time of the previous Log
		ctr  prometheus.Counter
		gge  prometheus.Gauge
	}

	// Tracker is a map of statically registered named values; the name map is
	// read-only past New, the values are atomics - hot-path updates don't lock.
	Tracker struct {
		m     map[string]*statsValue
		names []string // sorted, for stable log lines
		preg  *prometheus.Registry
	}
)

func New() (t *Tracker) {
	t = &Tracker{m: make(map[string]*statsValue, 16), preg: prometheus.NewRegistry()}
	for _, name := range []string{
		MsgRecvCount, MsgDeliverCount, MsgAckCount,
		RollbackFullCount, RollbackClosedCount,
		InprogDupCount, FrameErrCount, SubscribeCount,
	} {
		t.reg(name, KindCounter)
	}
	for _, name := range []string{QueueLenGauge, InprogLenGauge, ClientCountGauge} {
		t.reg(name, KindGauge)
	}
	t.names = make([]string, 0, len(t.m))
	for name := range t.m {
		t.names = append(t.names, name)
	}
	sort.Strings(t.names)
	return t
}

func (t *Tracker) reg(name, kind string) {
	v := &statsValue{kind: kind}
	promName := "ratmq_" + strings.ReplaceAll(strings.TrimSuffix(name, ".n"), ".", "_")
	switch kind {
	case KindCounter:
		v.ctr = prometheus.NewCounter(prometheus.CounterOpts{Name: promName + "_total"})
		t.preg.MustRegister(v.ctr)
	case KindGauge:
		v.gge = prometheus.NewGauge(prometheus.GaugeOpts{Name: promName})
		t.preg.MustRegister(v.gge)
	default:
		cos.Exitf("invalid metric kind %q (%s)", kind, name)
	}
	t.m[name] = v
}

// PromRegistry is served by the admin /metrics endpoint.
func (t *Tracker) PromRegistry() *prometheus.Registry { return t.preg }

func (t *Tracker) Inc(name string) { t.Add(name, 1) }

func (t *Tracker) Add(name string, val int64) {
	v := t.m[name]
	v.val.Add(val)
	v.ctr.Add(float64(val))
}

func (t *Tracker) Set(name string, val int64) {
	v := t.m[name]
	v.val.Store(val)
	v.gge.Set(float64(val))
}

func (t *Tracker) Get(name string) int64 { return t.m[name].val.Load() }

// Log writes one compact line with all non-zero metrics; skips the write
// when no counter moved since the previous call. Serialized by the caller
// (housekeeper callback).
func (t *Tracker) Log() {
	var (
		sb    strings.Builder
		moved bool
	)
	for _, name := range t.names {
		v := t.m[name]
		val := v.val.Load()
		if v.kind == KindCounter && val != v.prev {
			moved = true
			v.prev = val
		}
		if val == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(strconv.FormatInt(val, 10))
	}
	if moved {
		nlog.Infoln(sb.String())
	}
}
