// Package cos provides common low-level types and utilities for ratmq
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package cos_test

import (
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/NVIDIA/ratmq/cmn/cos"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Errs", func() {
	It("should classify EOF and wrapped EOF", func() {
		Expect(cos.IsEOF(io.EOF)).To(BeTrue())
		Expect(cos.IsEOF(io.ErrUnexpectedEOF)).To(BeTrue())
		Expect(cos.IsEOF(fmt.Errorf("read: %w", io.EOF))).To(BeTrue())
		Expect(cos.IsEOF(errors.New("eof"))).To(BeFalse())
	})

	It("should classify retriable connection errors", func() {
		Expect(cos.IsRetriableConnErr(syscall.ECONNRESET)).To(BeTrue())
		Expect(cos.IsRetriableConnErr(syscall.EPIPE)).To(BeTrue())
		Expect(cos.IsRetriableConnErr(syscall.ECONNREFUSED)).To(BeTrue())
		Expect(cos.IsRetriableConnErr(io.EOF)).To(BeFalse())
	})

	It("should compute POSIX exit codes for signals", func() {
		Expect(cos.NewSignalError(syscall.SIGINT).ExitCode()).To(Equal(130))
		Expect(cos.NewSignalError(syscall.SIGTERM).ExitCode()).To(Equal(143))
	})

	It("should match not-found errors", func() {
		err := cos.NewErrNotFound("refer %q", "m1")
		Expect(cos.IsErrNotFound(err)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("m1"))
		Expect(cos.IsErrNotFound(io.EOF)).To(BeFalse())
	})
})

var _ = Describe("ShortID", func() {
	BeforeEach(func() { cos.InitShortID(42) })

	It("should generate distinct ties", func() {
		seen := make(map[string]struct{}, 100)
		for i := 0; i < 100; i++ {
			tie := cos.GenTie()
			Expect(tie).To(HaveLen(3))
			seen[tie] = struct{}{}
		}
		Expect(len(seen)).To(BeNumerically(">", 90))
	})

	It("should generate valid UUIDs", func() {
		u1, u2 := cos.GenUUID(), cos.GenUUID()
		Expect(u1).NotTo(Equal(u2))
		Expect(len(u1)).To(BeNumerically(">=", 9))
	})
})
