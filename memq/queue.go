// Package memq provides the in-memory broker state: the pending-message
// queue and the dispatched-but-unacked (in-progress) buffer.
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package memq

import (
	"sync"

	"github.com/NVIDIA/ratmq/cmn/debug"
)

// Queue is a FIFO of pending messages. The embedded mutex is the one and only
// synchronization; the critical sections are pointer moves, no I/O.
// Capacity is a hint - Push grows the ring past it, the housekeeper reclaims
// via ShrinkIfSparse.
type Queue struct {
	mtx  sync.Mutex
	buf  []*Message // ring
	head int
	cnt  int
}

func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{buf: make([]*Message, capacity)}
}

func (q *Queue) Push(m *Message) {
	q.mtx.Lock()
	if q.cnt == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.cnt)%len(q.buf)] = m
	q.cnt++
	q.mtx.Unlock()
}

func (q *Queue) Pop() (m *Message) {
	q.mtx.Lock()
	if q.cnt > 0 {
		m = q.buf[q.head]
		q.buf[q.head] = nil
		q.head = (q.head + 1) % len(q.buf)
		q.cnt--
	}
	q.mtx.Unlock()
	return m
}

func (q *Queue) Len() int {
	q.mtx.Lock()
	n := q.cnt
	q.mtx.Unlock()
	return n
}

func (q *Queue) Cap() int {
	q.mtx.Lock()
	c := len(q.buf)
	q.mtx.Unlock()
	return c
}

// ShrinkIfSparse reallocates the ring when more than half of it is unused:
// new capacity = max(cap/2, minCap, len), FIFO order preserved.
func (q *Queue) ShrinkIfSparse(minCap int) {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	c := len(q.buf)
	if c <= 2*q.cnt {
		return
	}
	target := c / 2
	if target < minCap {
		target = minCap
	}
	if target < q.cnt {
		target = q.cnt
	}
	if target < 1 {
		target = 1
	}
	if target >= c {
		return
	}
	q.realloc(target)
}

func (q *Queue) grow() {
	debug.Assert(q.cnt == len(q.buf))
	q.realloc(2 * len(q.buf))
}

func (q *Queue) realloc(target int) {
	debug.Assert(target >= q.cnt)
	nbuf := make([]*Message, target)
	for i := 0; i < q.cnt; i++ {
		nbuf[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf, q.head = nbuf, 0
}
