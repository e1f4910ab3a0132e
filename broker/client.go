// Package broker implements the framed-XML message broker core: the
// dispatcher (accept loop and per-connection readers), the consumer registry,
// and the fan-out sender.
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import (
	"encoding/binary"
	"errors"
	"net"
	ratomic "sync/atomic"
	"time"

	"github.com/NVIDIA/ratmq/cmn/cos"
	"github.com/NVIDIA/ratmq/cmn/nlog"
)

const (
	dfltOutboxCap = 1024            // payloads the sender can post without the outbox going Full
	writeTimeout  = 5 * time.Second // per socket write
)

var (
	ErrOutboxFull   = errors.New("outbox full")
	ErrOutboxClosed = errors.New("outbox closed")
)

// Client is the per-consumer state: the prefetch credit window and the
// outbox drained by the writer goroutine. Past subscribe the writer goroutine
// is the connection's sole writer; everything else only reads or enqueues.
type Client struct {
	conn     net.Conn
	tie      string // connection tie ID, log lines only
	outbox   chan []byte
	prefetch uint32
	inFlight ratomic.Uint32
	term     struct {
		stop cos.StopCh
		done ratomic.Bool // writer exited
	}
}

func newClient(conn net.Conn, prefetch uint32, tie string) *Client {
	c := &Client{
		conn:     conn,
		tie:      tie,
		prefetch: prefetch,
		outbox:   make(chan []byte, dfltOutboxCap),
	}
	c.term.stop.Init()
	go c.writer()
	return c
}

func (c *Client) String() string {
	return "client[" + c.tie + "/" + c.conn.RemoteAddr().String() + "]"
}

// TryAcquire takes one unit of prefetch credit; false when the window is used up.
func (c *Client) TryAcquire() bool {
	for {
		cur := c.inFlight.Load()
		if cur >= c.prefetch {
			return false
		}
		if c.inFlight.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release returns one credit. Clamps at zero.
func (c *Client) Release() {
	for {
		cur := c.inFlight.Load()
		if cur == 0 {
			nlog.Warningf("%s: in-flight credit underflow", c)
			return
		}
		if c.inFlight.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

func (c *Client) InFlight() uint32 { return c.inFlight.Load() }
func (c *Client) Prefetch() uint32 { return c.prefetch }

// TrySend enqueues one payload for the writer; never blocks.
func (c *Client) TrySend(payload []byte) error {
	if c.term.done.Load() {
		return ErrOutboxClosed
	}
	select {
	case c.outbox <- payload:
		return nil
	default:
		if c.term.done.Load() {
			return ErrOutboxClosed
		}
		return ErrOutboxFull
	}
}

// Stop tells the writer goroutine to exit (registry removal, reader teardown).
func (c *Client) Stop() { c.term.stop.Close() }

func (c *Client) Terminated() bool { return c.term.done.Load() }

// writer: the connection's write half, exclusively. Each payload goes out as
// a 4-byte big-endian length followed by the body, each write under a
// 5-second deadline. Any error or timeout terminates the writer; the sender
// then observes ErrOutboxClosed and removes the client.
func (c *Client) writer() {
	nlog.Infof("%s: writer started", c)
	defer func() {
		c.term.done.Store(true)
		c.drain()
		nlog.Infof("%s: writer stopped", c)
	}()
	lenBuf := make([]byte, lenPrefixSize)
	for {
		select {
		case body := <-c.outbox:
			if err := c.write(lenBuf, body); err != nil {
				if cos.IsErrTimeout(err) {
					nlog.Warningf("%s: write timeout: %v", c, err)
				} else if cos.IsErrConnGone(err) {
					nlog.Infof("%s: peer gone: %v", c, err)
				} else {
					nlog.Errorf("%s: write failed: %v", c, err)
				}
				return
			}
		case <-c.term.stop.Listen():
			return
		}
	}
}

func (c *Client) write(lenBuf, body []byte) error {
	binary.BigEndian.PutUint32(lenBuf, uint32(len(body)))
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if _, err := c.conn.Write(lenBuf); err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	_, err := c.conn.Write(body)
	return err
}

// drop whatever the sender managed to enqueue before observing done;
// payloads already handed to the outbox are lost at this point
func (c *Client) drain() {
	for {
		select {
		case <-c.outbox:
		default:
			return
		}
	}
}
