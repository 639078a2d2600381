// Package pricecache holds the process-wide mapping from symbol to the
// latest mark price published by any venue ingester.
package pricecache

import (
	"math"
	"sync"

	"github.com/shopspring/decimal"
)

// Cache is a concurrent symbol -> mark price map. Many writers (venue
// ingesters) and many readers (the matching engine, account metrics, the
// HTTP surface) use the same instance; reads never block on writers for
// long, and a reader only gets cross-symbol consistency via Snapshot.
type Cache struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{
		prices: make(map[string]decimal.Decimal),
	}
}

// Put records the latest mark for symbol. Non-finite or non-positive prices
// are rejected silently — a malformed venue tick must never corrupt the
// cache.
func (c *Cache) Put(symbol string, price decimal.Decimal) {
	if price.Sign() <= 0 {
		return
	}

	c.mu.Lock()
	c.prices[symbol] = price
	c.mu.Unlock()
}

// PutFloat is Put for venue ingesters that parse prices as float64 straight
// off the wire.
func (c *Cache) PutFloat(symbol string, price float64) {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return
	}
	c.Put(symbol, decimal.NewFromFloat(price))
}

// Get returns the last known mark for symbol, or false if none has been
// published yet.
func (c *Cache) Get(symbol string) (decimal.Decimal, bool) {
	c.mu.RLock()
	price, ok := c.prices[symbol]
	c.mu.RUnlock()
	return price, ok
}

// Snapshot returns an immutable copy of the whole cache, for callers that
// need cross-symbol consistency (e.g. computing equity across several
// positions at once).
func (c *Cache) Snapshot() map[string]decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]decimal.Decimal, len(c.prices))
	for sym, price := range c.prices {
		out[sym] = price
	}
	return out
}
