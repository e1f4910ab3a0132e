// Package memq provides the in-memory broker state: the pending-message
// queue and the dispatched-but-unacked (in-progress) buffer.
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package memq_test

import (
	"strconv"
	"sync"
	ratomic "sync/atomic"

	"github.com/NVIDIA/ratmq/memq"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("InProgressBuffer", func() {
	It("should insert, remove, and report length", func() {
		b := memq.NewInProgressBuffer(8)
		Expect(b.Insert(mkmsg("m1"))).To(BeFalse())
		Expect(b.Insert(mkmsg("m2"))).To(BeFalse())
		Expect(b.Len()).To(Equal(2))

		m, ok := b.Remove("m1")
		Expect(ok).To(BeTrue())
		Expect(m.ID()).To(Equal("m1"))
		Expect(b.Len()).To(Equal(1))

		_, ok = b.Remove("m1")
		Expect(ok).To(BeFalse())
	})

	It("should overwrite on duplicate id and report the collision", func() {
		b := memq.NewInProgressBuffer(8)
		first := memq.NewMessage([]byte("one"), "dup")
		second := memq.NewMessage([]byte("two"), "dup")
		Expect(b.Insert(first)).To(BeFalse())
		Expect(b.Insert(second)).To(BeTrue())
		Expect(b.Len()).To(Equal(1))

		m, ok := b.Remove("dup")
		Expect(ok).To(BeTrue())
		Expect(string(m.Body())).To(Equal("two"))
	})

	It("should survive concurrent inserts and removes on disjoint keys", func() {
		const nworkers, nkeys = 8, 200
		var (
			b      = memq.NewInProgressBuffer(16)
			wg     = &sync.WaitGroup{}
			missed ratomic.Int32
		)
		for w := 0; w < nworkers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < nkeys; i++ {
					id := strconv.Itoa(w) + "-" + strconv.Itoa(i)
					b.Insert(mkmsg(id))
					if _, ok := b.Remove(id); !ok {
						missed.Add(1)
					}
				}
			}(w)
		}
		wg.Wait()
		Expect(missed.Load()).To(BeZero())
		Expect(b.Len()).To(Equal(0))
	})

	Describe("ShrinkIfSparse", func() {
		It("should lower the capacity hint after a burst drains", func() {
			b := memq.NewInProgressBuffer(8)
			for i := 0; i < 1000; i++ {
				b.Insert(mkmsg(strconv.Itoa(i)))
			}
			Expect(b.Cap()).To(BeNumerically(">=", 1000))
			for i := 0; i < 990; i++ {
				b.Remove(strconv.Itoa(i))
			}
			before := b.Cap()
			b.ShrinkIfSparse(16)
			Expect(b.Cap()).To(BeNumerically("<", before))
			Expect(b.Len()).To(Equal(10))

			// survivors intact
			for i := 990; i < 1000; i++ {
				_, ok := b.Remove(strconv.Itoa(i))
				Expect(ok).To(BeTrue())
			}
		})

		It("should be a no-op when the buffer is dense", func() {
			b := memq.NewInProgressBuffer(4)
			for i := 0; i < 4; i++ {
				b.Insert(mkmsg(strconv.Itoa(i)))
			}
			before := b.Cap()
			b.ShrinkIfSparse(1)
			Expect(b.Cap()).To(Equal(before))
		})
	})
})
