// File: internal/session/store.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Sharded, thread-safe session store for high connection counts.

package session

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/momentics/hioload-sock/api"
)

// Store holds the live sessions of one server.
type Store struct {
	shards []*shard
	mask   uint32
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore constructs a store with shardCount shards, rounded up to a power
// of two. Non-positive counts select 16.
func NewStore(shardCount int) *Store {
	if shardCount <= 0 {
		shardCount = 16
	}
	m := nextPowerOfTwo(uint32(shardCount))
	shards := make([]*shard, m)
	for i := range shards {
		shards[i] = &shard{sessions: make(map[string]*Session)}
	}
	return &Store{shards: shards, mask: m - 1}
}

func (st *Store) shard(id string) *shard {
	return st.shards[fnv32(id)&st.mask]
}

// Open registers a new session under a fresh identifier.
func (st *Store) Open(parent context.Context, local api.PeerAddr) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		id:      uuid.NewString(),
		local:   local,
		started: time.Now(),
		ctx:     ctx,
		cancel:  cancel,
	}
	sh := st.shard(s.id)
	sh.mu.Lock()
	sh.sessions[s.id] = s
	sh.mu.Unlock()
	return s
}

// Get fetches a session if present.
func (st *Store) Get(id string) (*Session, bool) {
	sh := st.shard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok := sh.sessions[id]
	return s, ok
}

// Close cancels and removes the session. Unknown ids are ignored.
func (st *Store) Close(id string) {
	sh := st.shard(id)
	sh.mu.Lock()
	s, ok := sh.sessions[id]
	delete(sh.sessions, id)
	sh.mu.Unlock()
	if ok {
		s.Cancel()
	}
}

// Range applies fn to every live session. fn must not call back into the
// store.
func (st *Store) Range(fn func(*Session)) {
	for _, sh := range st.shards {
		sh.mu.RLock()
		for _, s := range sh.sessions {
			fn(s)
		}
		sh.mu.RUnlock()
	}
}

// Len counts live sessions.
func (st *Store) Len() int {
	n := 0
	for _, sh := range st.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}

func fnv32(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32()
}

// nextPowerOfTwo returns the next power-of-two >= v.
func nextPowerOfTwo(v uint32) uint32 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}
