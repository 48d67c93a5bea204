package state

import (
	"bytes"
	"math/big"
	"testing"

	"vaultdex/native/dex"
	"vaultdex/native/dex/custody"
	"vaultdex/native/token"
	"vaultdex/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.Tx, storage.Database) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tx := storage.NewTx(db)
	t.Cleanup(tx.Discard)
	return NewManager(tx), tx, db
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func TestKeyNamespaces(t *testing.T) {
	id := testAddr(0xAB)
	if got := TokenMintKey(id); !bytes.HasPrefix(got, []byte("token/mint/")) || len(got) != len("token/mint/")+20 {
		t.Fatalf("unexpected mint key: %q", got)
	}
	if string(DexConfigKey()) != "dex/config" {
		t.Fatalf("unexpected config key: %s", DexConfigKey())
	}
	if bytes.Equal(TokenHoldingKey(id), CustodyVaultKey(id)) {
		t.Fatalf("holding and vault keys must differ")
	}
}

func TestTokenRecordsRoundTrip(t *testing.T) {
	m, _, _ := newTestManager(t)
	mint := &token.Mint{ID: testAddr(0x01), Symbol: "ART", Supply: big.NewInt(1), Authority: testAddr(0x02)}
	if err := m.TokenMintPut(mint); err != nil {
		t.Fatalf("put mint: %v", err)
	}
	got, ok, err := m.TokenMintGet(mint.ID)
	if err != nil || !ok {
		t.Fatalf("get mint: ok=%v err=%v", ok, err)
	}
	if got.Symbol != "ART" || got.Supply.Cmp(big.NewInt(1)) != 0 || got.Authority != mint.Authority {
		t.Fatalf("unexpected mint: %+v", got)
	}

	holding := &token.Holding{Address: testAddr(0x03), Mint: mint.ID, Owner: testAddr(0x03), ProgramOwned: true}
	if err := m.TokenHoldingPut(holding); err != nil {
		t.Fatalf("put holding: %v", err)
	}
	loaded, ok, err := m.TokenHoldingGet(holding.Address)
	if err != nil || !ok {
		t.Fatalf("get holding: ok=%v err=%v", ok, err)
	}
	if !loaded.ProgramOwned || loaded.Balance == nil || loaded.Balance.Sign() != 0 {
		t.Fatalf("unexpected holding: %+v", loaded)
	}
	if _, ok, err := m.TokenHoldingGet(testAddr(0x99)); err != nil || ok {
		t.Fatalf("missing holding: ok=%v err=%v", ok, err)
	}
}

func TestListingLifecycleRecords(t *testing.T) {
	m, tx, db := newTestManager(t)
	listing := &dex.Listing{
		Address: testAddr(0x10),
		Status:  dex.ListingStatusActive,
		Seller:  testAddr(0x11),
		Mint:    testAddr(0x12),
		AskMint: testAddr(0x13),
		Ask:     big.NewInt(100),
	}
	if err := m.DexListingPut(listing); err != nil {
		t.Fatalf("put listing: %v", err)
	}
	if err := m.CustodyVaultPut(&custody.Vault{Address: testAddr(0x14), Mint: listing.Mint, Namespace: dex.NamespaceVault, NonFungible: true}); err != nil {
		t.Fatalf("put vault: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	next := storage.NewTx(db)
	defer next.Discard()
	reader := NewManager(next)
	got, ok, err := reader.DexListingGet(listing.Address)
	if err != nil || !ok {
		t.Fatalf("get listing: ok=%v err=%v", ok, err)
	}
	if got.Status != dex.ListingStatusActive || got.Ask.Cmp(big.NewInt(100)) != 0 || got.Seller != listing.Seller {
		t.Fatalf("unexpected listing: %+v", got)
	}
	vault, ok, err := reader.CustodyVaultGet(testAddr(0x14))
	if err != nil || !ok || !vault.NonFungible || vault.Namespace != dex.NamespaceVault {
		t.Fatalf("unexpected vault: %+v ok=%v err=%v", vault, ok, err)
	}

	if err := reader.DexListingDelete(listing.Address); err != nil {
		t.Fatalf("delete listing: %v", err)
	}
	if _, ok, err := reader.DexListingGet(listing.Address); err != nil || ok {
		t.Fatalf("deleted listing still visible: ok=%v err=%v", ok, err)
	}
}

func TestSnapshotRevertRestoresRecords(t *testing.T) {
	m, _, _ := newTestManager(t)
	if err := m.DexConfigPut(&dex.Config{Admin: testAddr(0x01), Fee: 1, FeeScalar: 100}); err != nil {
		t.Fatalf("put config: %v", err)
	}
	snap := m.Snapshot()
	if err := m.DexConfigPut(&dex.Config{Admin: testAddr(0x02), Fee: 5, FeeScalar: 100, Paused: true}); err != nil {
		t.Fatalf("overwrite config: %v", err)
	}
	m.RevertToSnapshot(snap)
	cfg, ok, err := m.DexConfigGet()
	if err != nil || !ok {
		t.Fatalf("get config: ok=%v err=%v", ok, err)
	}
	if cfg.Admin != testAddr(0x01) || cfg.Fee != 1 || cfg.Paused {
		t.Fatalf("revert did not restore config: %+v", cfg)
	}
}

func TestStatsDefaultToZero(t *testing.T) {
	m, _, _ := newTestManager(t)
	stats, err := m.DexStatsGet()
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if stats.ActiveListings != 0 || stats.Sales != 0 {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
	stats.ActiveListings = 3
	if err := m.DexStatsPut(stats); err != nil {
		t.Fatalf("put stats: %v", err)
	}
	again, _ := m.DexStatsGet()
	if again.ActiveListings != 3 {
		t.Fatalf("stats not persisted: %+v", again)
	}
}
