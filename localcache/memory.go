package localcache

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

// Memory is the default in-process cache: a map guarded by a RWMutex with
// lazy TTL expiry and an optional sweep loop.
type Memory struct {
	mu     sync.RWMutex
	m      map[string]memEntry
	now    func() time.Time
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ Cache = (*Memory)(nil)

// NewMemory returns an empty cache. sweepInterval > 0 starts a goroutine that
// drops expired entries; stop it with Close.
func NewMemory(sweepInterval time.Duration) *Memory {
	c := &Memory{m: make(map[string]memEntry), now: time.Now}
	if sweepInterval > 0 {
		c.ticker = time.NewTicker(sweepInterval)
		c.stopCh = make(chan struct{})
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for {
				select {
				case <-c.ticker.C:
					c.sweep()
				case <-c.stopCh:
					return
				}
			}
		}()
	}
	return c
}

func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && !c.now().Before(e.exp) {
		c.mu.Lock()
		if cur, ok := c.m[key]; ok && cur.exp.Equal(e.exp) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.v, true, nil
}

func (c *Memory) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = memEntry{v: value, exp: exp}
	c.mu.Unlock()
	return true, nil
}

func (c *Memory) Del(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
	return nil
}

func (c *Memory) Clear(_ context.Context) error {
	c.mu.Lock()
	c.m = make(map[string]memEntry)
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

func (c *Memory) Close(_ context.Context) error {
	c.once.Do(func() {
		if c.stopCh != nil {
			close(c.stopCh)
			c.ticker.Stop()
			c.wg.Wait()
		}
	})
	return nil
}

func (c *Memory) sweep() {
	now := c.now()
	c.mu.Lock()
	for k, e := range c.m {
		if !e.exp.IsZero() && !now.Before(e.exp) {
			delete(c.m, k)
		}
	}
	c.mu.Unlock()
}
