package nonce

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// FetchFunc asks the venue for an account's next expected nonce. Used only
// when neither the memory cache nor the store has seen the account.
type FetchFunc func(ctx context.Context, address string) (uint64, error)

// Cache hands out nonces one account at a time. Acquire locks the account
// until Confirm or Release, so two concurrent baskets signing for the same
// address can never race on a nonce.
type Cache struct {
	mu      sync.Mutex
	entries map[common.Address]*entry

	store *Store // optional
	fetch FetchFunc
	log   *zap.SugaredLogger
}

type entry struct {
	mu     sync.Mutex
	loaded bool
	next   uint64
}

// NewCache creates a cache. store may be nil for a purely in-memory cache
// (tests, throwaway sessions); fetch must not be nil.
func NewCache(store *Store, fetch FetchFunc, log *zap.SugaredLogger) *Cache {
	return &Cache{
		entries: make(map[common.Address]*entry),
		store:   store,
		fetch:   fetch,
		log:     log,
	}
}

func (c *Cache) entryFor(addr common.Address) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[addr]
	if !ok {
		e = &entry{}
		c.entries[addr] = e
	}
	return e
}

// Acquire locks the account and returns the nonce to sign the next order
// with. The caller must end the hold with Confirm (after the venue took the
// order) or Release (submission abandoned, nonce still unused).
func (c *Cache) Acquire(ctx context.Context, addr common.Address) (uint64, error) {
	e := c.entryFor(addr)
	e.mu.Lock()

	if !e.loaded {
		next, err := c.load(ctx, addr)
		if err != nil {
			e.mu.Unlock()
			return 0, err
		}
		e.next = next
		e.loaded = true
	}
	return e.next, nil
}

// Confirm records that nonce was consumed by a submit the venue accepted,
// advances the account to nonce+1 and releases the hold.
func (c *Cache) Confirm(addr common.Address, nonce uint64) error {
	e := c.entryFor(addr)
	defer e.mu.Unlock()

	e.next = nonce + 1
	if c.store != nil {
		if err := c.store.Save(addr, e.next); err != nil {
			return err
		}
	}
	return nil
}

// Release ends the hold without consuming the nonce. The next Acquire for
// the address gets the same value.
func (c *Cache) Release(addr common.Address) {
	c.entryFor(addr).mu.Unlock()
}

// Invalidate drops the cached value so the next Acquire re-seeds from the
// store or the venue. Call after a bad_nonce rejection: the venue's counter
// has diverged from ours.
func (c *Cache) Invalidate(addr common.Address) {
	e := c.entryFor(addr)
	e.mu.Lock()
	e.loaded = false
	e.mu.Unlock()
}

func (c *Cache) load(ctx context.Context, addr common.Address) (uint64, error) {
	if c.store != nil {
		next, ok, err := c.store.Load(addr)
		if err != nil {
			return 0, err
		}
		if ok {
			c.log.Debugw("nonce_loaded_from_store", "address", addr.Hex(), "next", next)
			return next, nil
		}
	}

	next, err := c.fetch(ctx, addr.Hex())
	if err != nil {
		return 0, fmt.Errorf("failed to seed nonce for %s: %w", addr.Hex(), err)
	}
	c.log.Infow("nonce_seeded_from_venue", "address", addr.Hex(), "next", next)
	if c.store != nil {
		if err := c.store.Save(addr, next); err != nil {
			return 0, err
		}
	}
	return next, nil
}
