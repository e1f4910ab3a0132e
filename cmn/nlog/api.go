// Package nlog - ratmq logger, provides buffering, timestamping, writing, and flushing
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"fmt"
	"time"

	"github.com/NVIDIA/ratmq/cmn/mono"
)

func InfoDepth(depth int, args ...any)    { log(sevInfo, depth, "%s", fmt.Sprintln(args...)) }
func Infoln(args ...any)                  { log(sevInfo, 0, "%s", fmt.Sprintln(args...)) }
func Infof(format string, args ...any)    { log(sevInfo, 0, format, args...) }
func Warningln(args ...any)               { log(sevWarn, 0, "%s", fmt.Sprintln(args...)) }
func Warningf(format string, args ...any) { log(sevWarn, 0, format, args...) }
func ErrorDepth(depth int, args ...any)   { log(sevErr, depth, "%s", fmt.Sprintln(args...)) }
func Errorln(args ...any)                 { log(sevErr, 0, "%s", fmt.Sprintln(args...)) }
func Errorf(format string, args ...any)   { log(sevErr, 0, format, args...) }

func SetTitle(s string) { title = s }

// Since returns the time elapsed since the previous flush.
func Since() time.Duration {
	return time.Duration(mono.NanoTime() - lastFlush.Load())
}
