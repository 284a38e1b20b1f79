// Package sloghooks reports edgekv.Hooks events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/edgekv"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	RetryEvery    uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

// Hooks logs the rare events only. Cache hits and misses are too frequent
// for a log line and are ignored; use hooks/prom for those.
type Hooks struct {
	edgekv.NopHooks

	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	retryCtr    atomic.Uint64
}

var _ edgekv.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) CacheSelfHeal(cacheKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("edgekv.cache_self_heal",
		"key", h.redact(cacheKey),
		"reason", reason)
}

func (h *Hooks) CacheSetRejected(cacheKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("edgekv.cache_set_rejected", "key", h.redact(cacheKey))
}

func (h *Hooks) LazyEvicted(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Debug("edgekv.lazy_evicted", "key", h.redact(storageKey))
}

func (h *Hooks) UpsertFallback(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Debug("edgekv.upsert_fallback",
		"key", h.redact(storageKey),
		"update_err", err)
}

func (h *Hooks) RetryScheduled(attempt int, delay time.Duration, err error) {
	if h.l == nil || !sample(h.opts.RetryEvery, &h.retryCtr) {
		return
	}
	h.l.Warn("edgekv.retry_scheduled",
		"attempt", attempt,
		"delay", delay,
		"err", err)
}

func (h *Hooks) ClearAborted(removed int, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("edgekv.clear_aborted",
		"removed", removed,
		"err", err)
}
