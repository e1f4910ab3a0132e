// Package nlog - ratmq logger, provides buffering, timestamping, writing, and flushing
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	ratomic "sync/atomic"
	"time"

	"github.com/NVIDIA/ratmq/cmn/mono"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

const (
	maxBuffered = 32 * 1024 // flush high watermark
	maxLineSize = 2 * 1024
)

var sevText = [...]byte{'I', 'W', 'E'}

var (
	mw    sync.Mutex
	pw    bytes.Buffer // pending lines, file-backed mode only
	file  *os.File
	title string

	lastFlush ratomic.Int64 // mono time of the previous Flush
)

// SetFile redirects output to the named file; warnings and errors keep going to stderr as well.
// When never called, all lines go straight to stderr unbuffered.
func SetFile(path string) error {
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	mw.Lock()
	file = fh
	mw.Unlock()
	return nil
}

func log(sev severity, depth int, format string, args ...any) {
	line := sprintLine(sev, depth+3, format, args...)
	mw.Lock()
	if file == nil {
		os.Stderr.WriteString(line)
		mw.Unlock()
		return
	}
	pw.WriteString(line)
	if sev >= sevWarn {
		os.Stderr.WriteString(line)
	}
	oob := pw.Len() >= maxBuffered
	mw.Unlock()
	if oob {
		Flush()
	}
}

// Flush writes pending lines out; Flush(true) additionally syncs and closes the file.
func Flush(exit ...bool) {
	ex := len(exit) > 0 && exit[0]
	mw.Lock()
	if file != nil && pw.Len() > 0 {
		file.Write(pw.Bytes())
		pw.Reset()
	}
	if ex && file != nil {
		file.Sync()
		file.Close()
		file = nil
	}
	mw.Unlock()
	lastFlush.Store(mono.NanoTime())
}

// line format: L hh:mm:ss.uuuuuu file:line [title] msg
func sprintLine(sev severity, depth int, format string, args ...any) string {
	var sb bytes.Buffer
	sb.Grow(maxLineSize / 8)
	sb.WriteByte(sevText[sev])
	sb.WriteByte(' ')
	sb.WriteString(time.Now().Format("15:04:05.000000"))
	sb.WriteByte(' ')
	_, fn, ln, ok := runtime.Caller(depth)
	if !ok {
		fn, ln = "???", 0
	}
	sb.WriteString(filepath.Base(fn))
	sb.WriteByte(':')
	sb.WriteString(strconv.Itoa(ln))
	sb.WriteByte(' ')
	if title != "" {
		sb.WriteByte('[')
		sb.WriteString(title)
		sb.WriteString("] ")
	}
	var msg string
	if format == "" {
		msg = fmt.Sprintln(args...) // includes trailing newline
		sb.WriteString(msg)
	} else {
		msg = fmt.Sprintf(format, args...)
		sb.WriteString(msg)
		if msg == "" || msg[len(msg)-1] != '\n' {
			sb.WriteByte('\n')
		}
	}
	if sb.Len() > maxLineSize {
		return sb.String()[:maxLineSize-1] + "\n"
	}
	return sb.String()
}
