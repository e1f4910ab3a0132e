// Package broker implements the framed-XML message broker core: the
// dispatcher (accept loop and per-connection readers), the consumer registry,
// and the fan-out sender.
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import (
	"encoding/xml"
	"net"
	"strconv"
	"unicode/utf8"

	"github.com/NVIDIA/ratmq/cmn/cos"
	"github.com/NVIDIA/ratmq/cmn/nlog"
	"github.com/NVIDIA/ratmq/memq"
	"github.com/NVIDIA/ratmq/stats"
)

var verbose bool

// Init sets package-level runtime options.
func Init(verb bool) { verbose = verb }

// Dispatcher accepts broker-port connections and runs one reader per
// connection. A reader decodes length-prefixed XML frames and branches on the
// root tag: subscribe registers a consumer, send enqueues, ack releases
// credit, pong is a liveness no-op. Malformed frames are logged and skipped -
// only I/O-level failures end a connection.
type Dispatcher struct {
	lsn    net.Listener
	q      *memq.Queue
	inprog *memq.InProgressBuffer
	reg    *ClientRegistry
	t      *stats.Tracker
	stop   cos.StopCh
}

// interface guard
var _ cos.Runner = (*Dispatcher)(nil)

func NewDispatcher(addr string, q *memq.Queue, inprog *memq.InProgressBuffer, reg *ClientRegistry,
	t *stats.Tracker) (*Dispatcher, error) {
	lsn, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	nlog.Infof("dispatcher: listening on %s", lsn.Addr())
	d := &Dispatcher{lsn: lsn, q: q, inprog: inprog, reg: reg, t: t}
	d.stop.Init()
	return d, nil
}

func (*Dispatcher) Name() string { return "dispatcher" }

// Addr returns the bound broker address (resolves ":0" in tests).
func (d *Dispatcher) Addr() net.Addr { return d.lsn.Addr() }

func (d *Dispatcher) Stop(err error) {
	nlog.Infof("Stopping %s, err: %v", d.Name(), err)
	d.stop.Close()
	d.lsn.Close()
}

func (d *Dispatcher) Run() error {
	nlog.Infof("Starting %s", d.Name())
	for {
		conn, err := d.lsn.Accept()
		if err != nil {
			if d.stop.Stopped() {
				return nil
			}
			return err
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			if err := tc.SetNoDelay(true); err != nil {
				nlog.Warningf("%s: set-nodelay failed: %v", conn.RemoteAddr(), err)
			}
		}
		go d.serveConn(conn, cos.GenTie())
	}
}

// the per-connection reader; terminates on EOF or I/O error, removing the
// connection's Client (if registered) on the way out
func (d *Dispatcher) serveConn(conn net.Conn, tie string) {
	var (
		addr       = conn.RemoteAddr().String()
		lenBuf     = make([]byte, lenPrefixSize)
		registered bool
	)
	nlog.Infof("%s: accepted %s", tie, addr)
	defer func() {
		if registered {
			if c, ok := d.reg.Remove(addr); ok {
				c.Stop()
				nlog.Infof("%s: removed on reader exit", c)
			}
		}
		conn.Close()
	}()
	for {
		payload, err := readFrame(conn, lenBuf)
		if err != nil {
			if cos.IsErrConnGone(err) {
				nlog.Infof("%s: %s closed: %v", tie, addr, err)
			} else {
				nlog.Warningf("%s: %s read failed: %v", tie, addr, err)
			}
			return
		}
		if !utf8.Valid(payload) {
			nlog.Warningf("%s: payload not UTF-8, frame skipped", tie)
			d.t.Inc(stats.FrameErrCount)
			continue
		}
		el, ok := firstElem(payload)
		if !ok {
			nlog.Warningf("%s: no root tag, frame skipped", tie)
			d.t.Inc(stats.FrameErrCount)
			continue
		}
		switch el.Name.Local {
		case tagSubscribe:
			registered = d.subscribe(conn, el, tie, addr, registered)
		case tagSend:
			d.send(payload, el, tie)
		case tagAck:
			d.ack(el, tie, addr)
		case tagPong:
			if verbose {
				nlog.Infof("%s: pong", tie)
			}
		default:
			nlog.Warningf("%s: unknown tag %q", tie, el.Name.Local)
			d.t.Inc(stats.FrameErrCount)
		}
	}
}

// first subscribe wins; the connection's write half moves into the new
// Client here and the reader never writes again
func (d *Dispatcher) subscribe(conn net.Conn, el xml.StartElement, tie, addr string, registered bool) bool {
	if registered {
		nlog.Warningf("%s: duplicate subscribe ignored", tie)
		return true
	}
	raw, ok := attrOf(el, attrPrefetch)
	if !ok {
		nlog.Warningf("%s: subscribe without prefetch", tie)
		d.t.Inc(stats.FrameErrCount)
		return false
	}
	prefetch, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		nlog.Warningf("%s: invalid prefetch %q: %v", tie, raw, err)
		d.t.Inc(stats.FrameErrCount)
		return false
	}
	c := newClient(conn, uint32(prefetch), tie)
	if !d.reg.Add(addr, c) {
		// a previous connection from the same peer address hasn't been torn down yet
		nlog.Warningf("%s: address %s already registered", tie, addr)
		c.Stop()
		return false
	}
	d.t.Inc(stats.SubscribeCount)
	nlog.Infof("%s: registered, prefetch=%d", c, prefetch)
	return true
}

func (d *Dispatcher) send(payload []byte, el xml.StartElement, tie string) {
	refer, ok := attrOf(el, attrRefer)
	if !ok {
		nlog.Warningf("%s: send without refer", tie)
		d.t.Inc(stats.FrameErrCount)
		return
	}
	d.q.Push(memq.NewMessage(payload, refer))
	d.t.Inc(stats.MsgRecvCount)
	if verbose {
		nlog.Infof("%s: send refer=%s", tie, refer)
	}
}

func (d *Dispatcher) ack(el xml.StartElement, tie, addr string) {
	refer, ok := attrOf(el, attrRefer)
	if !ok {
		nlog.Warningf("%s: ack without refer", tie)
		d.t.Inc(stats.FrameErrCount)
		return
	}
	if _, ok := d.inprog.Remove(refer); !ok {
		nlog.Warningf("%s: ack for unknown refer %q", tie, refer)
		return
	}
	d.t.Inc(stats.MsgAckCount)
	if c, ok := d.reg.Get(addr); ok {
		c.Release()
	} else {
		nlog.Warningf("%s: ack from unregistered %s", tie, addr)
	}
	if verbose {
		nlog.Infof("%s: ack refer=%s", tie, refer)
	}
}
