// Package main is the ratmq broker daemon.
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	ratomic "sync/atomic"
	"syscall"
	"time"

	"github.com/NVIDIA/ratmq/api"
	"github.com/NVIDIA/ratmq/api/env"
	"github.com/NVIDIA/ratmq/broker"
	"github.com/NVIDIA/ratmq/cmn/cos"
	"github.com/NVIDIA/ratmq/cmn/nlog"
	"github.com/NVIDIA/ratmq/hk"
	"github.com/NVIDIA/ratmq/memq"
	"github.com/NVIDIA/ratmq/stats"

	"golang.org/x/sync/errgroup"
)

const svcName = "ratmq"

const (
	dfltBrokerAddr = ":5672"
	dfltAdminAddr  = ":3000"
	dfltQueueCap   = 10_000
)

var (
	build     string
	buildtime string

	brokerAddr string
	adminAddr  string
	queueCap   int
	logFile    string
	verbose    bool
)

func init() {
	flag.StringVar(&brokerAddr, "broker-addr", envOrDflt(env.RatMQ.BrokerAddr, dfltBrokerAddr),
		"broker listen address (framed-XML wire)")
	flag.StringVar(&adminAddr, "admin-addr", envOrDflt(env.RatMQ.AdminAddr, dfltAdminAddr),
		"admin listen address (read-only HTTP)")
	flag.IntVar(&queueCap, "queue-cap", envIntOrDflt(env.RatMQ.QueueCap, dfltQueueCap),
		"queue capacity hint")
	flag.StringVar(&logFile, "log-file", os.Getenv(env.RatMQ.LogFile),
		"log file (default stderr)")
	flag.BoolVar(&verbose, "verbose", os.Getenv(env.RatMQ.Verbose) != "",
		"verbose per-frame logging")
}

func main() {
	if len(os.Args) == 2 && os.Args[1] == "version" {
		printVer()
		os.Exit(0)
	}
	flag.Parse()

	if logFile != "" {
		if err := nlog.SetFile(logFile); err != nil {
			cos.Exitf("Failed to set up logger: %v", err)
		}
	}
	nlog.SetTitle(svcName)
	nlog.Infof("Version %s (build %s)", version(), buildtime)

	cos.InitShortID(uint64(time.Now().UnixNano()))
	broker.Init(verbose)

	var (
		q      = memq.NewQueue(queueCap)
		inprog = memq.NewInProgressBuffer(queueCap)
		reg    = broker.NewRegistry()
		t      = stats.New()
	)

	dispatcher, err := broker.NewDispatcher(brokerAddr, q, inprog, reg, t)
	if err != nil {
		cos.ExitLogf("Failed to listen on %q: %v", brokerAddr, err)
	}
	sender := broker.NewSender(q, inprog, reg, t)
	admin, err := api.NewServer(adminAddr, q, t)
	if err != nil {
		cos.ExitLogf("Failed to listen on %q: %v", adminAddr, err)
	}

	hk.Init()
	broker.RegMaintenance(q, inprog, reg, t, queueCap)

	runners := []cos.Runner{hk.DefaultHK, sender, dispatcher, admin}
	var (
		g       errgroup.Group
		stopped ratomic.Bool
		sigErr  ratomic.Pointer[cos.ErrSignal]
	)
	stopAll := func(err error) {
		if !stopped.CompareAndSwap(false, true) {
			return
		}
		for _, r := range runners {
			r.Stop(err)
		}
	}
	for _, r := range runners {
		r := r
		g.Go(func() error {
			err := r.Run()
			if err != nil {
				nlog.Errorf("%s failed: %v", r.Name(), err)
				stopAll(err)
			}
			return err
		})
	}
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		s := <-ch
		serr := cos.NewSignalError(s.(syscall.Signal))
		sigErr.Store(serr)
		nlog.Infof("Caught %v, terminating (in-flight messages are not drained)", s)
		stopAll(serr)
	}()
	go logFlush()

	err = g.Wait()
	nlog.Flush(true)
	if serr := sigErr.Load(); serr != nil {
		os.Exit(serr.ExitCode())
	}
	if err != nil {
		cos.Exitf("%s terminated: %v", svcName, err)
	}
}

func logFlush() {
	for {
		time.Sleep(time.Minute)
		nlog.Flush()
	}
}

func envOrDflt(name, dflt string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return dflt
}

func envIntOrDflt(name string, dflt int) int {
	if v := os.Getenv(name); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			cos.Exitf("invalid %s=%q: %v", name, v, err)
		}
		return i
	}
	return dflt
}

func version() string {
	if build == "" {
		return "1.0.0"
	}
	return "1.0.0." + build
}

func printVer() {
	fmt.Printf("version %s (build %s)\n", version(), buildtime)
}
