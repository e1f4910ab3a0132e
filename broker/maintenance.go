// Package broker implements the framed-XML message broker core: the
// dispatcher (accept loop and per-connection readers), the consumer registry,
// and the fan-out sender.
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import (
	"time"

	"github.com/NVIDIA/ratmq/cmn/mono"
	"github.com/NVIDIA/ratmq/cmn/nlog"
	"github.com/NVIDIA/ratmq/hk"
	"github.com/NVIDIA/ratmq/memq"
	"github.com/NVIDIA/ratmq/stats"
)

const (
	shrinkInterval = 2 * time.Minute
	statsInterval  = 10 * time.Second
	logFlushPeriod = time.Minute
)

// RegMaintenance registers the periodic capacity-reclamation and stats-flush
// callbacks with the housekeeper. minCap is the queue's configured capacity
// hint - shrinking never goes below it.
func RegMaintenance(q *memq.Queue, inprog *memq.InProgressBuffer, reg *ClientRegistry,
	t *stats.Tracker, minCap int) {
	hk.Reg("mq.queue.shrink"+hk.NameSuffix, func() time.Duration {
		shrinkQueue(q, minCap)
		return shrinkInterval
	}, shrinkInterval)

	hk.Reg("mq.inprog.shrink"+hk.NameSuffix, func() time.Duration {
		shrinkInprog(inprog, minCap)
		return shrinkInterval
	}, shrinkInterval)

	hk.Reg("stats.flush"+hk.NameSuffix, func() time.Duration {
		t.Set(stats.QueueLenGauge, int64(q.Len()))
		t.Set(stats.InprogLenGauge, int64(inprog.Len()))
		t.Set(stats.ClientCountGauge, int64(reg.Len()))
		t.Log()
		if nlog.Since() > logFlushPeriod {
			nlog.Flush()
		}
		return statsInterval
	}, statsInterval)
}

func shrinkQueue(q *memq.Queue, minCap int) {
	var (
		started    = mono.NanoTime()
		lenB, capB = q.Len(), q.Cap()
	)
	q.ShrinkIfSparse(minCap)
	lenA, capA := q.Len(), q.Cap()
	nlog.Infof("maintenance: queue len %d=>%d cap %d=>%d (%v)",
		lenB, lenA, capB, capA, time.Duration(mono.NanoTime()-started))
}

func shrinkInprog(inprog *memq.InProgressBuffer, minCap int) {
	var (
		started    = mono.NanoTime()
		lenB, capB = inprog.Len(), inprog.Cap()
	)
	inprog.ShrinkIfSparse(minCap)
	lenA, capA := inprog.Len(), inprog.Cap()
	nlog.Infof("maintenance: in-progress len %d=>%d cap %d=>%d (%v)",
		lenB, lenA, capB, capA, time.Duration(mono.NanoTime()-started))
}
