package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	coreerrors "vaultdex/core/errors"
	"vaultdex/core/events"
	"vaultdex/core/state"
	"vaultdex/native/dex"
	"vaultdex/native/token"
	"vaultdex/observability"
	"vaultdex/storage"
	"vaultdex/storage/trie"
)

const instrumentationName = "vaultdex/core"

// ErrNodeClosed is returned by operations submitted after Close.
var ErrNodeClosed = errors.New("node: closed")

// unit bundles the modules bound to one unit of work.
type unit struct {
	manager *state.Manager
	engine  *dex.Engine
	ledger  *token.Ledger
	events  *events.Buffer
}

// Node is the central controller. It serialises every state transition, runs
// each one inside its own storage.Tx and publishes the events of committed
// transitions.
type Node struct {
	db      storage.Database
	program [20]byte
	stateMu sync.Mutex
	closed  bool

	feed    *events.Feed
	logger  *slog.Logger
	metrics *observability.DexMetrics
	tracer  trace.Tracer
	opCount metric.Int64Counter
	nowFn   func() int64
}

// NewNode wires a node over db for the marketplace program identity.
func NewNode(db storage.Database, program [20]byte) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database required")
	}
	opCount, err := otel.Meter(instrumentationName).Int64Counter(
		"vdx.dex.operations",
		metric.WithDescription("Marketplace operations executed by the node."),
	)
	if err != nil {
		return nil, fmt.Errorf("node: create operation counter: %w", err)
	}
	n := &Node{
		db:      db,
		program: program,
		feed:    events.NewFeed(),
		logger:  slog.Default(),
		metrics: observability.Dex(),
		tracer:  otel.Tracer(instrumentationName),
		opCount: opCount,
		nowFn:   func() int64 { return time.Now().Unix() },
	}
	n.feed.OnDrop(observability.Events().RecordDropped)
	if err := n.ensureSchema(); err != nil {
		return nil, err
	}
	if err := n.view(context.Background(), func(u *unit) error {
		stats, err := u.engine.Stats()
		if err != nil {
			return err
		}
		n.metrics.SetActiveListings(stats.ActiveListings)
		return nil
	}); err != nil {
		return nil, err
	}
	return n, nil
}

// ensureSchema stamps or verifies the state schema version before any
// operation runs.
func (n *Node) ensureSchema() error {
	tx := storage.NewTx(n.db)
	defer tx.Discard()
	if err := state.NewManager(tx).EnsureStateVersion(); err != nil {
		return fmt.Errorf("node: %w", err)
	}
	return tx.Commit()
}

// SetLogger replaces the node logger. Passing nil restores slog.Default.
func (n *Node) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	n.logger = logger
}

// SetNowFunc overrides the clock used for listing timestamps.
func (n *Node) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	n.nowFn = now
}

// Program returns the marketplace program identity.
func (n *Node) Program() [20]byte { return n.program }

// Subscribe streams events of committed transitions. The returned cancel
// function must be called to release the subscription.
func (n *Node) Subscribe(capacity int) (<-chan events.Event, func()) {
	return n.feed.Subscribe(capacity)
}

// Close stops accepting operations. The database is owned by the caller.
func (n *Node) Close() {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.closed = true
}

func (n *Node) newUnit(store state.Store) *unit {
	manager := state.NewManager(store)
	buf := &events.Buffer{}
	engine := dex.NewEngine(n.program)
	engine.SetState(manager)
	engine.SetEmitter(buf)
	engine.SetNowFunc(n.nowFn)
	return &unit{
		manager: manager,
		engine:  engine,
		ledger:  token.NewLedger(manager),
		events:  buf,
	}
}

// execute runs fn as one atomic state transition. Nothing fn writes is
// visible unless it returns nil and the commit succeeds; events are only
// published after the commit.
func (n *Node) execute(ctx context.Context, op string, fn func(*unit) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := n.tracer.Start(ctx, "dex."+op, trace.WithAttributes(attribute.String("dex.op", op)))
	defer span.End()
	start := time.Now()

	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if n.closed {
		return ErrNodeClosed
	}

	tx := storage.NewTx(n.db)
	defer tx.Discard()
	u := n.newUnit(tx)

	defer func() {
		outcome := coreerrors.KindName(err)
		n.metrics.Observe(op, err, time.Since(start))
		n.opCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("outcome", outcome),
		))
		span.SetAttributes(attribute.String("dex.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			n.logger.Warn("operation rejected",
				slog.String("op", op),
				slog.String("outcome", outcome),
				slog.Any("error", err))
			return
		}
		n.logger.Info("operation committed",
			slog.String("op", op),
			slog.Duration("elapsed", time.Since(start)))
	}()

	if err := fn(u); err != nil {
		return err
	}
	stats, err := u.engine.Stats()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	n.metrics.SetActiveListings(stats.ActiveListings)
	for _, evt := range u.events.Events() {
		observability.Events().RecordPublished(evt.EventType())
		if evt.EventType() == dex.EventTypeListingSold {
			n.metrics.RecordSwap()
		}
	}
	u.events.FlushTo(n.feed)
	return nil
}

// view runs fn against the committed state. Writes made by fn are discarded.
func (n *Node) view(ctx context.Context, fn func(*unit) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	tx := storage.NewTx(n.db)
	defer tx.Discard()
	return fn(n.newUnit(tx))
}

// Initialize writes the marketplace configuration.
func (n *Node) Initialize(ctx context.Context, caller, admin [20]byte, fee, feeScalar uint64) (*dex.Config, error) {
	var cfg *dex.Config
	err := n.execute(ctx, "initialize", func(u *unit) error {
		var err error
		cfg, err = u.engine.Initialize(caller, admin, fee, feeScalar)
		return err
	})
	return cfg, err
}

// CreateVault declares a supported asset by materialising its vault.
func (n *Node) CreateVault(ctx context.Context, caller, mint [20]byte) ([20]byte, error) {
	var addr [20]byte
	err := n.execute(ctx, "create_vault", func(u *unit) error {
		var err error
		addr, err = u.engine.CreateVault(caller, mint)
		return err
	})
	return addr, err
}

// List creates a listing and moves the asset into custody.
func (n *Node) List(ctx context.Context, p dex.ListParams) (*dex.Listing, error) {
	var listing *dex.Listing
	err := n.execute(ctx, "list", func(u *unit) error {
		var err error
		listing, err = u.engine.List(p)
		return err
	})
	return listing, err
}

// Buy executes the atomic swap for a listing.
func (n *Node) Buy(ctx context.Context, p dex.BuyParams) (*dex.Receipt, error) {
	var receipt *dex.Receipt
	err := n.execute(ctx, "buy", func(u *unit) error {
		var err error
		receipt, err = u.engine.Buy(p)
		return err
	})
	return receipt, err
}

// Sell withdraws a listing back to its seller.
func (n *Node) Sell(ctx context.Context, p dex.SellParams) (*dex.Receipt, error) {
	var receipt *dex.Receipt
	err := n.execute(ctx, "sell", func(u *unit) error {
		var err error
		receipt, err = u.engine.Sell(p)
		return err
	})
	return receipt, err
}

// ClaimProceeds drains a seller's proceeds escrow.
func (n *Node) ClaimProceeds(ctx context.Context, p dex.ClaimParams) (*dex.Receipt, error) {
	var receipt *dex.Receipt
	err := n.execute(ctx, "claim_proceeds", func(u *unit) error {
		var err error
		receipt, err = u.engine.ClaimProceeds(p)
		return err
	})
	return receipt, err
}

// UpdateFees replaces the configured fee pair.
func (n *Node) UpdateFees(ctx context.Context, caller [20]byte, fee, feeScalar uint64) (*dex.Config, error) {
	var cfg *dex.Config
	err := n.execute(ctx, "update_fees", func(u *unit) error {
		var err error
		cfg, err = u.engine.UpdateFees(caller, fee, feeScalar)
		return err
	})
	return cfg, err
}

// SetPaused toggles trading.
func (n *Node) SetPaused(ctx context.Context, caller [20]byte, paused bool) (*dex.Config, error) {
	var cfg *dex.Config
	err := n.execute(ctx, "set_paused", func(u *unit) error {
		var err error
		cfg, err = u.engine.SetPaused(caller, paused)
		return err
	})
	return cfg, err
}

// TransferAdmin rotates the configuration admin.
func (n *Node) TransferAdmin(ctx context.Context, caller, newAdmin [20]byte) (*dex.Config, error) {
	var cfg *dex.Config
	err := n.execute(ctx, "transfer_admin", func(u *unit) error {
		var err error
		cfg, err = u.engine.TransferAdmin(caller, newAdmin)
		return err
	})
	return cfg, err
}

// CreateMint registers a new asset type owned by authority.
func (n *Node) CreateMint(ctx context.Context, authority [20]byte, symbol string, decimals uint8, nonce uint64) (*token.Mint, error) {
	var mint *token.Mint
	err := n.execute(ctx, "create_mint", func(u *unit) error {
		var err error
		mint, err = u.ledger.CreateMint(authority, symbol, decimals, nonce)
		return err
	})
	return mint, err
}

// MintTo issues new units of mint into a holding.
func (n *Node) MintTo(ctx context.Context, authority, mint, holding [20]byte, amount *big.Int) error {
	return n.execute(ctx, "mint_to", func(u *unit) error {
		return u.ledger.MintTo(mint, authority, holding, amount)
	})
}

// OpenHolding opens a holding of mint for owner. A zero address selects the
// owner's associated holding.
func (n *Node) OpenHolding(ctx context.Context, owner, mint, addr [20]byte) (*token.Holding, error) {
	var holding *token.Holding
	err := n.execute(ctx, "open_holding", func(u *unit) error {
		var err error
		if addr == ([20]byte{}) {
			holding, err = u.ledger.OpenAssociated(owner, mint)
			return err
		}
		holding, err = u.ledger.OpenHolding(addr, mint, owner)
		return err
	})
	return holding, err
}

// Transfer moves amount between two holdings of the same mint on behalf of
// the source owner.
func (n *Node) Transfer(ctx context.Context, signer, from, to [20]byte, amount *big.Int) error {
	return n.execute(ctx, "transfer", func(u *unit) error {
		return u.ledger.Transfer(from, to, amount, signer)
	})
}

// Config returns the committed marketplace configuration.
func (n *Node) Config(ctx context.Context) (*dex.Config, error) {
	var cfg *dex.Config
	err := n.view(ctx, func(u *unit) error {
		var err error
		cfg, err = u.engine.Config()
		return err
	})
	return cfg, err
}

// Stats returns the committed marketplace counters.
func (n *Node) Stats(ctx context.Context) (*dex.Stats, error) {
	var stats *dex.Stats
	err := n.view(ctx, func(u *unit) error {
		var err error
		stats, err = u.engine.Stats()
		return err
	})
	return stats, err
}

// Listing loads the listing at addr.
func (n *Node) Listing(ctx context.Context, addr [20]byte) (*dex.Listing, error) {
	var listing *dex.Listing
	err := n.view(ctx, func(u *unit) error {
		var err error
		listing, err = u.engine.Listing(addr)
		return err
	})
	return listing, err
}

// ListingAddress derives the listing address for a (mint, seller) pair.
func (n *Node) ListingAddress(mint, seller [20]byte) [20]byte {
	return dex.NewEngine(n.program).ListingAddress(mint, seller)
}

// VaultAddress derives the custody vault address of mint.
func (n *Node) VaultAddress(mint [20]byte) [20]byte {
	return dex.NewEngine(n.program).VaultAddress(mint)
}

// EscrowAddress derives the proceeds escrow of seller for askMint.
func (n *Node) EscrowAddress(seller, askMint [20]byte) [20]byte {
	return dex.NewEngine(n.program).EscrowAddress(seller, askMint)
}

// VaultBalance returns the custodied amount of mint.
func (n *Node) VaultBalance(ctx context.Context, mint [20]byte) (*big.Int, error) {
	var bal *big.Int
	err := n.view(ctx, func(u *unit) error {
		var err error
		bal, err = u.engine.VaultBalance(mint)
		return err
	})
	return bal, err
}

// Holding loads a holding.
func (n *Node) Holding(ctx context.Context, addr [20]byte) (*token.Holding, error) {
	var holding *token.Holding
	err := n.view(ctx, func(u *unit) error {
		var err error
		holding, err = u.ledger.Holding(addr)
		return err
	})
	return holding, err
}

// Mint loads a mint definition.
func (n *Node) Mint(ctx context.Context, id [20]byte) (*token.Mint, error) {
	var mint *token.Mint
	err := n.view(ctx, func(u *unit) error {
		var err error
		mint, err = u.ledger.Mint(id)
		return err
	})
	return mint, err
}

// StateRoot commits to the full committed state.
func (n *Node) StateRoot(ctx context.Context) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return trie.Root(n.db)
}
