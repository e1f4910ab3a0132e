// Package broker implements the framed-XML message broker core: the
// dispatcher (accept loop and per-connection readers), the consumer registry,
// and the fan-out sender.
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import (
	"sync"
)

type (
	// RegEntry pairs a consumer's peer address with its Client handle.
	RegEntry struct {
		Addr   string
		Client *Client
	}

	// ClientRegistry maps peer address => Client. It is the sole strong owner
	// of Clients: the dispatcher adds on subscribe and removes on reader
	// teardown, the sender removes on outbox closure and otherwise holds
	// per-pass snapshots only.
	ClientRegistry struct {
		mtx sync.RWMutex
		m   map[string]*Client
	}
)

func NewRegistry() *ClientRegistry {
	return &ClientRegistry{m: make(map[string]*Client, 8)}
}

// Add registers the client; false when the address is already present.
func (r *ClientRegistry) Add(addr string, c *Client) bool {
	r.mtx.Lock()
	if _, ok := r.m[addr]; ok {
		r.mtx.Unlock()
		return false
	}
	r.m[addr] = c
	r.mtx.Unlock()
	return true
}

func (r *ClientRegistry) Get(addr string) (*Client, bool) {
	r.mtx.RLock()
	c, ok := r.m[addr]
	r.mtx.RUnlock()
	return c, ok
}

func (r *ClientRegistry) Remove(addr string) (*Client, bool) {
	r.mtx.Lock()
	c, ok := r.m[addr]
	if ok {
		delete(r.m, addr)
	}
	r.mtx.Unlock()
	return c, ok
}

func (r *ClientRegistry) Len() int {
	r.mtx.RLock()
	n := len(r.m)
	r.mtx.RUnlock()
	return n
}

// Snapshot returns the current membership in the map's native enumeration
// order (deliberately unordered across passes).
func (r *ClientRegistry) Snapshot() []RegEntry {
	r.mtx.RLock()
	entries := make([]RegEntry, 0, len(r.m))
	for addr, c := range r.m {
		entries = append(entries, RegEntry{Addr: addr, Client: c})
	}
	r.mtx.RUnlock()
	return entries
}
