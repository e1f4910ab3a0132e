//go:build debug

// Package debug provides debug utilities
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package debug

import (
	"fmt"
	"os"
	"strings"
)

func ON() bool { return true }

func Infof(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", a...)
}

func Func(f func()) { f() }

func Assert(cond bool, a ...any) {
	if !cond {
		msg := "assertion failed"
		if len(a) > 0 {
			msg += ": " + fmt.Sprint(a...)
		}
		fail(msg)
	}
}

func AssertFunc(f func() bool, a ...any) { Assert(f(), a...) }

func AssertNoErr(err error) {
	if err != nil {
		fail("assertion failed: " + err.Error())
	}
}

func Assertf(cond bool, format string, a ...any) {
	if !cond {
		fail("assertion failed: " + fmt.Sprintf(format, a...))
	}
}

func fail(msg string) {
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	os.Stderr.WriteString(msg)
	panic(msg)
}
