// Package asynchook moves edgekv.Hooks calls off the request path.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{SelfHealEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	kv := edgekv.SetupKV(ctx, client, edgekv.BucketConfig{Name: "app"},
//		edgekv.WithHooks(hooks))
//
// Events are dropped when the queue is full; Dropped reports how many.
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/edgekv"
)

type Hooks struct {
	inner   edgekv.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64
}

var _ edgekv.Hooks = (*Hooks)(nil)

func New(inner edgekv.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains the queue and stops the workers. Events sent after Close
// are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	if h.closed.Load() {
		h.dropped.Add(1)
		return
	}
	defer func() {
		// lost the race with Close
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) CacheHit(k string)                   { h.try(func() { h.inner.CacheHit(k) }) }
func (h *Hooks) CacheMiss(k string)                  { h.try(func() { h.inner.CacheMiss(k) }) }
func (h *Hooks) CacheSelfHeal(k, r string)           { h.try(func() { h.inner.CacheSelfHeal(k, r) }) }
func (h *Hooks) CacheSetRejected(k string)           { h.try(func() { h.inner.CacheSetRejected(k) }) }
func (h *Hooks) LazyEvicted(k string)                { h.try(func() { h.inner.LazyEvicted(k) }) }
func (h *Hooks) UpsertFallback(k string, err error)  { h.try(func() { h.inner.UpsertFallback(k, err) }) }
func (h *Hooks) ClearAborted(removed int, err error) { h.try(func() { h.inner.ClearAborted(removed, err) }) }
func (h *Hooks) RetryScheduled(n int, d time.Duration, err error) {
	h.try(func() { h.inner.RetryScheduled(n, d, err) })
}
