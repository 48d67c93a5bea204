package state

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"vaultdex/native/dex"
	"vaultdex/native/dex/custody"
	"vaultdex/native/token"
	"vaultdex/storage"
)

// Store is the key/value surface the manager persists records through. A
// storage.Tx satisfies it, which makes every manager write part of the
// caller's unit of work.
type Store interface {
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
	Delete(key []byte) error
	Snapshot() int
	RevertToSnapshot(id int)
}

// Manager exposes typed ledger records on top of a Store. Records are RLP
// encoded and stored under the keccak256 hash of their logical key.
type Manager struct {
	store Store
}

// NewManager creates a state manager operating on the provided store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// KVPut stores the provided value under the supplied key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.store.Put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.store.Get(kvKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.store.Delete(kvKey(key))
}

// Snapshot marks the current write position so it can be restored.
func (m *Manager) Snapshot() int { return m.store.Snapshot() }

// RevertToSnapshot discards every write made after the snapshot was taken.
func (m *Manager) RevertToSnapshot(id int) { m.store.RevertToSnapshot(id) }

// TokenMintGet loads a mint definition.
func (m *Manager) TokenMintGet(id [20]byte) (*token.Mint, bool, error) {
	mint := new(token.Mint)
	ok, err := m.KVGet(TokenMintKey(id), mint)
	if err != nil || !ok {
		return nil, ok, err
	}
	if mint.Supply == nil {
		mint.Supply = big.NewInt(0)
	}
	return mint, true, nil
}

// TokenMintPut stores a mint definition.
func (m *Manager) TokenMintPut(mint *token.Mint) error {
	if mint == nil {
		return fmt.Errorf("token: mint must not be nil")
	}
	return m.KVPut(TokenMintKey(mint.ID), mint.Clone())
}

// TokenHoldingGet loads a holding.
func (m *Manager) TokenHoldingGet(addr [20]byte) (*token.Holding, bool, error) {
	holding := new(token.Holding)
	ok, err := m.KVGet(TokenHoldingKey(addr), holding)
	if err != nil || !ok {
		return nil, ok, err
	}
	if holding.Balance == nil {
		holding.Balance = big.NewInt(0)
	}
	return holding, true, nil
}

// TokenHoldingPut stores a holding.
func (m *Manager) TokenHoldingPut(holding *token.Holding) error {
	if holding == nil {
		return fmt.Errorf("token: holding must not be nil")
	}
	return m.KVPut(TokenHoldingKey(holding.Address), holding.Clone())
}

// CustodyVaultGet loads a vault record.
func (m *Manager) CustodyVaultGet(addr [20]byte) (*custody.Vault, bool, error) {
	vault := new(custody.Vault)
	ok, err := m.KVGet(CustodyVaultKey(addr), vault)
	if err != nil || !ok {
		return nil, ok, err
	}
	return vault, true, nil
}

// CustodyVaultPut stores a vault record.
func (m *Manager) CustodyVaultPut(vault *custody.Vault) error {
	if vault == nil {
		return fmt.Errorf("custody: vault must not be nil")
	}
	return m.KVPut(CustodyVaultKey(vault.Address), vault)
}

// DexConfigGet loads the marketplace configuration.
func (m *Manager) DexConfigGet() (*dex.Config, bool, error) {
	cfg := new(dex.Config)
	ok, err := m.KVGet(DexConfigKey(), cfg)
	if err != nil || !ok {
		return nil, ok, err
	}
	return cfg, true, nil
}

// DexConfigPut stores the marketplace configuration.
func (m *Manager) DexConfigPut(cfg *dex.Config) error {
	if cfg == nil {
		return fmt.Errorf("dex: config must not be nil")
	}
	return m.KVPut(DexConfigKey(), cfg)
}

// DexStatsGet loads the marketplace counters, returning zero counters when
// none were written yet.
func (m *Manager) DexStatsGet() (*dex.Stats, error) {
	stats := new(dex.Stats)
	if _, err := m.KVGet(DexStatsKey(), stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// DexStatsPut stores the marketplace counters.
func (m *Manager) DexStatsPut(stats *dex.Stats) error {
	if stats == nil {
		return fmt.Errorf("dex: stats must not be nil")
	}
	return m.KVPut(DexStatsKey(), stats)
}

// DexListingGet loads a listing.
func (m *Manager) DexListingGet(addr [20]byte) (*dex.Listing, bool, error) {
	listing := new(dex.Listing)
	ok, err := m.KVGet(DexListingKey(addr), listing)
	if err != nil || !ok {
		return nil, ok, err
	}
	if listing.Ask == nil {
		listing.Ask = big.NewInt(0)
	}
	return listing, true, nil
}

// DexListingPut stores a listing.
func (m *Manager) DexListingPut(listing *dex.Listing) error {
	if listing == nil {
		return fmt.Errorf("dex: listing must not be nil")
	}
	return m.KVPut(DexListingKey(listing.Address), listing.Clone())
}

// DexListingDelete reclaims a listing's storage.
func (m *Manager) DexListingDelete(addr [20]byte) error {
	return m.KVDelete(DexListingKey(addr))
}
