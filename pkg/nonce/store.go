// Package nonce tracks per-account submission nonces: a memory cache in
// front of a Pebble store, seeded from the venue on first use. The venue
// rejects any nonce out of sequence, so every signer address funnels its
// submissions through one Cache.
package nonce

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// Key schema:
//   nonce:<address> → big-endian uint64, the next nonce to sign with
const prefixNonce = "nonce:"

func nonceKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixNonce, addr.Hex()))
}

// Store persists nonces across restarts.
type Store struct {
	db *pebble.DB
}

// OpenStore opens (or creates) the nonce database at path.
func OpenStore(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open nonce store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Load returns the stored next nonce for an account, and whether one exists.
func (s *Store) Load(addr common.Address) (uint64, bool, error) {
	val, closer, err := s.db.Get(nonceKey(addr))
	if err == pebble.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load nonce for %s: %w", addr.Hex(), err)
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, false, fmt.Errorf("corrupt nonce record for %s: %d bytes", addr.Hex(), len(val))
	}
	return binary.BigEndian.Uint64(val), true, nil
}

// Save writes the next nonce for an account. Synced: a lost write after a
// confirmed submit would replay a consumed nonce on restart.
func (s *Store) Save(addr common.Address, next uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next)
	if err := s.db.Set(nonceKey(addr), buf[:], pebble.Sync); err != nil {
		return fmt.Errorf("failed to save nonce for %s: %w", addr.Hex(), err)
	}
	return nil
}
