// Package hk provides mechanism for registering cleanup
// functions which are invoked at specified intervals.
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package hk

import (
	"container/heap"
	"time"

	"github.com/NVIDIA/ratmq/cmn/cos"
	"github.com/NVIDIA/ratmq/cmn/debug"
	"github.com/NVIDIA/ratmq/cmn/mono"
	"github.com/NVIDIA/ratmq/cmn/nlog"
)

const NameSuffix = ".gc" // reg name suffix

const (
	DayInterval   = 24 * time.Hour
	UnregInterval = DayInterval // to unregister upon return

	minInterval = 10 * time.Millisecond
)

type (
	// CleanupFunc is a registered callback; its return value is the
	// interval to the callback's own next run (UnregInterval to unregister)
	CleanupFunc func() time.Duration

	request struct {
		f        CleanupFunc
		name     string
		interval time.Duration
		reg      bool
	}
	timedAction struct {
		f          CleanupFunc
		name       string
		updateTime int64 // mono
	}
	actions []*timedAction

	housekeeper struct {
		stopCh  cos.StopCh
		sigCh   chan request
		actions *actions
		timer   *time.Timer
		running chan struct{}
	}
)

var DefaultHK *housekeeper

// interface guard
var _ cos.Runner = (*housekeeper)(nil)

func Init() {
	DefaultHK = &housekeeper{
		sigCh:   make(chan request, 16),
		actions: &actions{},
		running: make(chan struct{}),
	}
	DefaultHK.stopCh.Init()
	heap.Init(DefaultHK.actions)
}

func TestInit() { Init() }

func WaitStarted() { <-DefaultHK.running }

func Reg(name string, f CleanupFunc, interval time.Duration) {
	debug.Assert(nonZeroInterval(interval))
	DefaultHK.sigCh <- request{reg: true, name: name, f: f, interval: interval}
}

func Unreg(name string) {
	DefaultHK.sigCh <- request{reg: false, name: name}
}

///////////////
// (min)heap //
///////////////

func (hkcb actions) Len() int            { return len(hkcb) }
func (hkcb actions) Less(i, j int) bool  { return hkcb[i].updateTime < hkcb[j].updateTime }
func (hkcb actions) Swap(i, j int)       { hkcb[i], hkcb[j] = hkcb[j], hkcb[i] }
func (hkcb actions) Peek() *timedAction  { return hkcb[0] }
func (hkcb *actions) Push(x any)         { *hkcb = append(*hkcb, x.(*timedAction)) }
func (hkcb *actions) Pop() any {
	old := *hkcb
	n := len(old)
	item := old[n-1]
	*hkcb = old[:n-1]
	return item
}

/////////////////
// housekeeper //
/////////////////

func (*housekeeper) Name() string { return "housekeeper" }

func (hk *housekeeper) Run() (err error) {
	hk.timer = time.NewTimer(time.Hour)
	defer hk.timer.Stop()
	close(hk.running)
	for {
		select {
		case <-hk.stopCh.Listen():
			return nil
		case <-hk.timer.C:
			hk.do()
		case req := <-hk.sigCh:
			if req.reg {
				hk.reg(req)
			} else {
				hk.unreg(req.name)
			}
		}
	}
}

func (hk *housekeeper) Stop(err error) {
	nlog.Infof("Stopping %s, err: %v", hk.Name(), err)
	hk.stopCh.Close()
}

func (hk *housekeeper) reg(req request) {
	debug.AssertFunc(func() bool {
		return hk.byName(req.name) == -1
	}, "duplicated name: "+req.name)
	heap.Push(hk.actions, &timedAction{name: req.name, f: req.f, updateTime: mono.NanoTime() + req.interval.Nanoseconds()})
	hk.updateTimer()
}

func (hk *housekeeper) unreg(name string) {
	idx := hk.byName(name)
	if idx < 0 {
		nlog.Warningf("hk: %q already removed", name)
		return
	}
	heap.Remove(hk.actions, idx)
	hk.updateTimer()
}

func (hk *housekeeper) byName(name string) int {
	for i, tc := range *hk.actions {
		if tc.name == name {
			return i
		}
	}
	return -1
}

func (hk *housekeeper) updateTimer() {
	if hk.actions.Len() == 0 {
		hk.timer.Reset(time.Hour)
		return
	}
	d := hk.actions.Peek().updateTime - mono.NanoTime()
	if d < 0 {
		d = 0
	}
	hk.timer.Reset(time.Duration(d))
}

func (hk *housekeeper) do() {
	now := mono.NanoTime()

	// callbacks are ordered by the time they need to be called
	for hk.actions.Len() > 0 {
		item := hk.actions.Peek()
		if item.updateTime > now {
			break
		}
		started := mono.NanoTime()
		interval := item.f()
		if interval == UnregInterval {
			heap.Remove(hk.actions, 0)
		} else {
			if interval < minInterval {
				interval = minInterval
			}
			item.updateTime = started + interval.Nanoseconds()
			heap.Fix(hk.actions, 0)
		}
		if d := time.Duration(mono.NanoTime() - started); d > time.Second {
			nlog.Warningf("hk: %q took %v", item.name, d)
		}
	}
	hk.updateTimer()
}

func nonZeroInterval(d time.Duration) bool { return d > 0 }
