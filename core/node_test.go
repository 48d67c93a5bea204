package core

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	coreerrors "vaultdex/core/errors"
	"vaultdex/core/events"
	"vaultdex/core/state"
	"vaultdex/core/types"
	"vaultdex/native/dex"
	"vaultdex/native/token"
	"vaultdex/storage"
)

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

type market struct {
	node   *Node
	admin  [20]byte
	seller [20]byte
	buyer  [20]byte
	nft    *token.Mint
	usd    *token.Mint
}

func newMarket(t *testing.T, db storage.Database, buyerFunds int64) *market {
	t.Helper()
	node, err := NewNode(db, testAddr(0xD0))
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	node.SetNowFunc(func() int64 { return 1_700_000_000 })
	m := &market{node: node, admin: testAddr(0x01), seller: testAddr(0x0A), buyer: testAddr(0x0B)}
	ctx := context.Background()

	if _, err := node.Initialize(ctx, m.admin, m.admin, 0, 10_000); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	m.nft = m.mintTo(t, m.seller, m.seller, "ART", 1)
	m.usd = m.mintTo(t, m.admin, m.buyer, "USDQ", buyerFunds)
	return m
}

func (m *market) mintTo(t *testing.T, authority, owner [20]byte, symbol string, amount int64) *token.Mint {
	t.Helper()
	ctx := context.Background()
	mint, err := m.node.CreateMint(ctx, authority, symbol, 0, 0)
	if err != nil {
		t.Fatalf("create mint %s: %v", symbol, err)
	}
	holding, err := m.node.OpenHolding(ctx, owner, mint.ID, [20]byte{})
	if err != nil {
		t.Fatalf("open holding: %v", err)
	}
	if err := m.node.MintTo(ctx, authority, mint.ID, holding.Address, big.NewInt(amount)); err != nil {
		t.Fatalf("mint to: %v", err)
	}
	return mint
}

func (m *market) list(t *testing.T, ask int64) *dex.Listing {
	t.Helper()
	listing, err := m.node.List(context.Background(), dex.ListParams{
		Seller:  m.seller,
		Mint:    m.nft.ID,
		AskMint: m.usd.ID,
		Ask:     big.NewInt(ask),
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return listing
}

func (m *market) buy(listing *dex.Listing) (*dex.Receipt, error) {
	return m.node.Buy(context.Background(), dex.BuyParams{
		Buyer:   m.buyer,
		Listing: listing.Address,
		Seller:  m.seller,
		Payment: token.AssociatedAddress(m.buyer, m.usd.ID),
	})
}

func (m *market) balance(t *testing.T, addr [20]byte) int64 {
	t.Helper()
	holding, err := m.node.Holding(context.Background(), addr)
	if errors.Is(err, token.ErrHoldingNotFound) {
		return 0
	}
	if err != nil {
		t.Fatalf("holding: %v", err)
	}
	return holding.Balance.Int64()
}

func nextEvent(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
		return nil
	}
}

func TestNodeSwapEndToEnd(t *testing.T) {
	m := newMarket(t, storage.NewMemDB(), 150)
	ctx := context.Background()
	ch, cancel := m.node.Subscribe(8)
	defer cancel()

	listing := m.list(t, 100)
	if evt := nextEvent(t, ch); evt.EventType() != dex.EventTypeListingCreated {
		t.Fatalf("unexpected event %s", evt.EventType())
	}
	if bal, err := m.node.VaultBalance(ctx, m.nft.ID); err != nil || bal.Int64() != 1 {
		t.Fatalf("vault balance = %v (%v), want 1", bal, err)
	}

	receipt, err := m.buy(listing)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	evt := nextEvent(t, ch)
	if evt.EventType() != dex.EventTypeListingSold {
		t.Fatalf("unexpected event %s", evt.EventType())
	}
	payload, ok := evt.(interface{ Event() *types.Event })
	if !ok || payload.Event().Attributes["buyer"] == "" {
		t.Fatalf("sold event missing buyer attribute: %#v", evt)
	}

	if m.balance(t, receipt.Destination) != 1 {
		t.Fatalf("buyer did not receive asset")
	}
	if m.balance(t, token.AssociatedAddress(m.buyer, m.usd.ID)) != 50 {
		t.Fatalf("buyer payment not debited")
	}
	if m.balance(t, m.node.EscrowAddress(m.seller, m.usd.ID)) != 100 {
		t.Fatalf("proceeds escrow not credited")
	}
	if _, err := m.node.Listing(ctx, listing.Address); !errors.Is(err, dex.ErrListingNotFound) {
		t.Fatalf("listing not reclaimed: %v", err)
	}

	if _, err := m.node.ClaimProceeds(ctx, dex.ClaimParams{Seller: m.seller, AskMint: m.usd.ID}); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if m.balance(t, token.AssociatedAddress(m.seller, m.usd.ID)) != 100 {
		t.Fatalf("seller did not receive proceeds")
	}
	stats, err := m.node.Stats(ctx)
	if err != nil || stats.Sales != 1 || stats.ActiveListings != 0 {
		t.Fatalf("unexpected stats %+v (%v)", stats, err)
	}
}

func TestNodeFailedBuyLeavesStateRootUnchanged(t *testing.T) {
	m := newMarket(t, storage.NewMemDB(), 50)
	ctx := context.Background()
	listing := m.list(t, 100)

	ch, cancel := m.node.Subscribe(8)
	defer cancel()
	before, err := m.node.StateRoot(ctx)
	if err != nil {
		t.Fatalf("state root: %v", err)
	}
	_, err = m.buy(listing)
	if !errors.Is(err, dex.ErrInsufficientPayment) || coreerrors.KindOf(err) != coreerrors.ErrValidation {
		t.Fatalf("expected insufficient payment, got %v", err)
	}
	after, err := m.node.StateRoot(ctx)
	if err != nil {
		t.Fatalf("state root: %v", err)
	}
	if before != after {
		t.Fatalf("state root moved after failed buy: %s -> %s", before, after)
	}
	select {
	case evt := <-ch:
		t.Fatalf("failed buy published %s", evt.EventType())
	default:
	}
}

func TestNodeSecondInitializeRejected(t *testing.T) {
	m := newMarket(t, storage.NewMemDB(), 0)
	ctx := context.Background()
	if _, err := m.node.Initialize(ctx, m.buyer, m.buyer, 1, 2); !errors.Is(err, dex.ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	cfg, err := m.node.Config(ctx)
	if err != nil || cfg.Admin != m.admin {
		t.Fatalf("config changed: %+v (%v)", cfg, err)
	}
}

type failingWriteDB struct {
	storage.Database
	fail bool
}

func (f *failingWriteDB) Write(batch *storage.Batch) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Database.Write(batch)
}

func TestNodeCommitFailureDropsEvents(t *testing.T) {
	db := &failingWriteDB{Database: storage.NewMemDB()}
	m := newMarket(t, db, 150)
	ch, cancel := m.node.Subscribe(8)
	defer cancel()

	db.fail = true
	_, err := m.node.List(context.Background(), dex.ListParams{
		Seller: m.seller, Mint: m.nft.ID, AskMint: m.usd.ID, Ask: big.NewInt(1),
	})
	if err == nil || coreerrors.KindOf(err) != nil {
		t.Fatalf("expected internal commit error, got %v", err)
	}
	db.fail = false
	select {
	case evt := <-ch:
		t.Fatalf("uncommitted list published %s", evt.EventType())
	default:
	}
	if m.balance(t, token.AssociatedAddress(m.seller, m.nft.ID)) != 1 {
		t.Fatalf("asset left seller after failed commit")
	}
}

func TestNodeRejectsCancelledContext(t *testing.T) {
	m := newMarket(t, storage.NewMemDB(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.node.Initialize(ctx, m.admin, m.admin, 0, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	m.node.Close()
	if _, err := m.node.SetPaused(context.Background(), m.admin, true); !errors.Is(err, ErrNodeClosed) {
		t.Fatalf("expected ErrNodeClosed, got %v", err)
	}
}

func TestNodePersistsAcrossLevelDBReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	db, err := storage.NewLevelDB(path)
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	m := newMarket(t, db, 0)
	listing := m.list(t, 42)
	root, err := m.node.StateRoot(context.Background())
	if err != nil {
		t.Fatalf("state root: %v", err)
	}
	db.Close()

	reopened, err := storage.NewLevelDB(path)
	if err != nil {
		t.Fatalf("reopen leveldb: %v", err)
	}
	defer reopened.Close()
	node, err := NewNode(reopened, testAddr(0xD0))
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	got, err := node.Listing(context.Background(), listing.Address)
	if err != nil {
		t.Fatalf("listing after reopen: %v", err)
	}
	if got.Ask.Int64() != 42 || got.Seller != m.seller {
		t.Fatalf("unexpected listing after reopen: %+v", got)
	}
	again, err := node.StateRoot(context.Background())
	if err != nil || again != root {
		t.Fatalf("state root changed across reopen: %s vs %s (%v)", root, again, err)
	}
}

func TestNodeRejectsForeignSchemaVersion(t *testing.T) {
	db := storage.NewMemDB()
	tx := storage.NewTx(db)
	if err := state.NewManager(tx).SetStateVersion(state.StateVersion + 1); err != nil {
		t.Fatalf("stamp version: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := NewNode(db, testAddr(0xD0)); !errors.Is(err, state.ErrStateVersionMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}
