// Package broker implements the framed-XML message broker core: the
// dispatcher (accept loop and per-connection readers), the consumer registry,
// and the fan-out sender.
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import (
	"runtime"
	"time"

	"github.com/NVIDIA/ratmq/cmn/cos"
	"github.com/NVIDIA/ratmq/cmn/debug"
	"github.com/NVIDIA/ratmq/cmn/nlog"
	"github.com/NVIDIA/ratmq/memq"
	"github.com/NVIDIA/ratmq/stats"
)

const (
	// deliveries per client per pass; bounds head-of-line blocking on one
	// fast producer / slow consumer pair
	maxBurstPerClient = 64

	// backoff when a full pass moved nothing
	senderIdleTick = time.Millisecond
)

// Sender is the fan-out engine: a single long-lived loop that moves messages
// from the queue to consumer outboxes, subject to per-consumer prefetch
// credit and outbox backpressure.
type Sender struct {
	q      *memq.Queue
	inprog *memq.InProgressBuffer
	reg    *ClientRegistry
	t      *stats.Tracker
	stop   cos.StopCh
}

// interface guard
var _ cos.Runner = (*Sender)(nil)

func NewSender(q *memq.Queue, inprog *memq.InProgressBuffer, reg *ClientRegistry, t *stats.Tracker) *Sender {
	s := &Sender{q: q, inprog: inprog, reg: reg, t: t}
	s.stop.Init()
	return s
}

func (*Sender) Name() string { return "sender" }

func (s *Sender) Stop(err error) {
	nlog.Infof("Stopping %s, err: %v", s.Name(), err)
	s.stop.Close()
}

func (s *Sender) Run() error {
	nlog.Infof("Starting %s", s.Name())
	for {
		if s.stop.Stopped() {
			return nil
		}
		entries := s.reg.Snapshot()
		if len(entries) == 0 {
			if s.pause() {
				return nil
			}
			continue
		}
		moved := s.pass(entries)
		if !moved {
			if s.pause() {
				return nil
			}
			continue
		}
		runtime.Gosched()
	}
}

// one pass over the registry snapshot
func (s *Sender) pass(entries []RegEntry) (moved bool) {
	var toRemove []string
	for i := range entries {
		c := entries[i].Client
		for j := 0; j < maxBurstPerClient; j++ {
			if !c.TryAcquire() {
				break
			}
			m := s.q.Pop()
			if m == nil {
				c.Release() // return the credit just taken
				break
			}
			// remove-then-insert: the id leaves the queue under its mutex
			// before it can show up in the in-progress buffer
			if s.inprog.Insert(m) {
				s.t.Inc(stats.InprogDupCount)
			}
			err := c.TrySend(m.Body())
			if err == nil {
				moved = true
				s.t.Inc(stats.MsgDeliverCount)
				continue
			}
			s.rollback(c, m)
			if err == ErrOutboxFull {
				s.t.Inc(stats.RollbackFullCount)
				runtime.Gosched()
			} else {
				debug.Assert(err == ErrOutboxClosed)
				s.t.Inc(stats.RollbackClosedCount)
				toRemove = append(toRemove, entries[i].Addr)
			}
			break
		}
	}
	// messages already dispatched to a removed client are not re-queued: they
	// stay in the in-progress buffer (see the mq.inprog.n gauge) unless an ack
	// for their refer arrives
	for _, addr := range toRemove {
		if c, ok := s.reg.Remove(addr); ok {
			c.Stop()
			nlog.Infof("%s: removed, outbox closed", c)
		}
	}
	return moved
}

// undo a dispatch attempt: untrack, return the credit, and re-enqueue at the
// tail (tolerating reordering in favor of progress on other consumers).
// Failed deliveries are retried by the loop itself - no backoff machinery.
func (s *Sender) rollback(c *Client, m *memq.Message) {
	s.inprog.Remove(m.ID())
	c.Release()
	s.q.Push(m)
}

// idle backoff; true when stopped
func (s *Sender) pause() bool {
	select {
	case <-s.stop.Listen():
		return true
	case <-time.After(senderIdleTick):
		return false
	}
}
