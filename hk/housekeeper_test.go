// Package hk provides mechanism for registering cleanup
// functions which are invoked at specified intervals.
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package hk_test

import (
	ratomic "sync/atomic"
	"time"

	"github.com/NVIDIA/ratmq/cmn/cos"
	"github.com/NVIDIA/ratmq/hk"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Housekeeper", func() {
	It("should invoke a registered callback at its interval", func() {
		var cnt ratomic.Int32
		hk.Reg("incr"+hk.NameSuffix, func() time.Duration {
			cnt.Add(1)
			return 20 * time.Millisecond
		}, 20*time.Millisecond)
		defer hk.Unreg("incr" + hk.NameSuffix)

		Eventually(func() int32 { return cnt.Load() }, 3*time.Second).Should(BeNumerically(">=", 3))
	})

	It("should not invoke an unregistered callback again", func() {
		var cnt ratomic.Int32
		hk.Reg("once"+hk.NameSuffix, func() time.Duration {
			cnt.Add(1)
			return 20 * time.Millisecond
		}, 20*time.Millisecond)

		Eventually(func() int32 { return cnt.Load() }, 3*time.Second).Should(BeNumerically(">=", 1))
		hk.Unreg("once" + hk.NameSuffix)
		time.Sleep(50 * time.Millisecond)
		after := cnt.Load()
		Consistently(func() int32 { return cnt.Load() }, 200*time.Millisecond).Should(Equal(after))
	})

	It("should unregister a callback that returns UnregInterval", func() {
		var cnt ratomic.Int32
		hk.Reg("selfunreg"+hk.NameSuffix, func() time.Duration {
			cnt.Add(1)
			return hk.UnregInterval
		}, 20*time.Millisecond)

		Eventually(func() int32 { return cnt.Load() }, 3*time.Second).Should(Equal(int32(1)))
		Consistently(func() int32 { return cnt.Load() }, 200*time.Millisecond).Should(Equal(int32(1)))
	})

	It("should run multiple callbacks independently", func() {
		var fast, slow ratomic.Int32
		hk.Reg("fast"+hk.NameSuffix, func() time.Duration {
			fast.Add(1)
			return 20 * time.Millisecond
		}, 20*time.Millisecond)
		hk.Reg("slow"+hk.NameSuffix, func() time.Duration {
			slow.Add(1)
			return 200 * time.Millisecond
		}, 200*time.Millisecond)
		defer func() {
			hk.Unreg("fast" + hk.NameSuffix)
			hk.Unreg("slow" + hk.NameSuffix)
		}()

		Eventually(func() int32 { return fast.Load() }, 3*time.Second).Should(BeNumerically(">=", 5))
		Expect(fast.Load()).To(BeNumerically(">", slow.Load()))
	})

	It("implements cos.Runner", func() {
		var _ cos.Runner = hk.DefaultHK
		Expect(hk.DefaultHK.Name()).To(Equal("housekeeper"))
	})
})
