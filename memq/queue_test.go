// Package memq provides the in-memory broker state: the pending-message
// queue and the dispatched-but-unacked (in-progress) buffer.
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package memq_test

import (
	"strconv"

	"github.com/NVIDIA/ratmq/memq"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func mkmsg(id string) *memq.Message { return memq.NewMessage([]byte("<send refer=\""+id+"\"/>"), id) }

var _ = Describe("Queue", func() {
	It("should pop in FIFO order", func() {
		q := memq.NewQueue(8)
		for i := 0; i < 5; i++ {
			q.Push(mkmsg("m" + strconv.Itoa(i)))
		}
		Expect(q.Len()).To(Equal(5))
		for i := 0; i < 5; i++ {
			m := q.Pop()
			Expect(m).NotTo(BeNil())
			Expect(m.ID()).To(Equal("m" + strconv.Itoa(i)))
		}
		Expect(q.Pop()).To(BeNil())
		Expect(q.Len()).To(Equal(0))
	})

	It("should grow past the capacity hint", func() {
		q := memq.NewQueue(2)
		for i := 0; i < 100; i++ {
			q.Push(mkmsg(strconv.Itoa(i)))
		}
		Expect(q.Len()).To(Equal(100))
		Expect(q.Cap()).To(BeNumerically(">=", 100))
		for i := 0; i < 100; i++ {
			Expect(q.Pop().ID()).To(Equal(strconv.Itoa(i)))
		}
	})

	It("should preserve FIFO order across wraparound", func() {
		q := memq.NewQueue(4)
		for i := 0; i < 3; i++ {
			q.Push(mkmsg("a" + strconv.Itoa(i)))
		}
		Expect(q.Pop().ID()).To(Equal("a0"))
		Expect(q.Pop().ID()).To(Equal("a1"))
		for i := 0; i < 3; i++ {
			q.Push(mkmsg("b" + strconv.Itoa(i)))
		}
		Expect(q.Pop().ID()).To(Equal("a2"))
		Expect(q.Pop().ID()).To(Equal("b0"))
		Expect(q.Pop().ID()).To(Equal("b1"))
		Expect(q.Pop().ID()).To(Equal("b2"))
	})

	Describe("ShrinkIfSparse", func() {
		It("should halve a sparse ring down to minCap", func() {
			q := memq.NewQueue(16)
			for i := 0; i < 100; i++ {
				q.Push(mkmsg(strconv.Itoa(i)))
			}
			for i := 0; i < 98; i++ {
				q.Pop()
			}
			before := q.Cap()
			q.ShrinkIfSparse(4)
			Expect(q.Cap()).To(BeNumerically("<", before))
			Expect(q.Cap()).To(BeNumerically(">=", 4))

			// contents survive
			Expect(q.Pop().ID()).To(Equal("98"))
			Expect(q.Pop().ID()).To(Equal("99"))
		})

		It("should be a no-op on a densely populated ring", func() {
			q := memq.NewQueue(4)
			for i := 0; i < 4; i++ {
				q.Push(mkmsg(strconv.Itoa(i)))
			}
			before := q.Cap()
			q.ShrinkIfSparse(1)
			Expect(q.Cap()).To(Equal(before))
		})

		It("should be a no-op on an empty queue at minCap", func() {
			q := memq.NewQueue(4)
			q.ShrinkIfSparse(4)
			Expect(q.Cap()).To(Equal(4))
			Expect(q.Len()).To(Equal(0))
		})

		It("should never shrink below the live count", func() {
			q := memq.NewQueue(64)
			for i := 0; i < 20; i++ {
				q.Push(mkmsg(strconv.Itoa(i)))
			}
			q.ShrinkIfSparse(1)
			Expect(q.Cap()).To(BeNumerically(">=", 20))
			for i := 0; i < 20; i++ {
				Expect(q.Pop().ID()).To(Equal(strconv.Itoa(i)))
			}
		})
	})
})
