package dex

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"vaultdex/core/events"
	"vaultdex/core/types"
	"vaultdex/native/common"
	"vaultdex/native/dex/custody"
	"vaultdex/native/dex/internal/pda"
	"vaultdex/native/token"
)

var errNilState = errors.New("dex engine: state not configured")

type engineState interface {
	CustodyVaultGet(addr [20]byte) (*custody.Vault, bool, error)
	CustodyVaultPut(*custody.Vault) error
	TokenMintGet(id [20]byte) (*token.Mint, bool, error)
	TokenMintPut(*token.Mint) error
	TokenHoldingGet(addr [20]byte) (*token.Holding, bool, error)
	TokenHoldingPut(*token.Holding) error
	DexConfigGet() (*Config, bool, error)
	DexConfigPut(*Config) error
	DexStatsGet() (*Stats, error)
	DexStatsPut(*Stats) error
	DexListingGet(addr [20]byte) (*Listing, bool, error)
	DexListingPut(*Listing) error
	DexListingDelete(addr [20]byte) error
	Snapshot() int
	RevertToSnapshot(id int)
}

type dexEvent struct {
	evt *types.Event
}

func (e dexEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e dexEvent) Event() *types.Event { return e.evt }

var unitAmount = big.NewInt(1)

// Engine implements the escrow marketplace: configuration, vault creation,
// listing, the atomic buy swap, seller withdrawal and proceeds claims. Every
// mutating method runs inside a state snapshot and rolls back to it on
// failure, so a failed call leaves no partial writes in the caller's unit of
// work.
type Engine struct {
	state   engineState
	custody *custody.Custody
	deriver *pda.Deriver
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates an engine for the program identity with a no-op emitter.
func NewEngine(program [20]byte) *Engine {
	return &Engine{
		deriver: pda.New(program),
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) {
	e.state = state
	if state == nil {
		e.custody = nil
		return
	}
	e.custody = custody.New(state)
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for listing timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Program returns the program identity vault addresses are derived from.
func (e *Engine) Program() [20]byte { return e.deriver.Program() }

// VaultAddress returns the custody vault address for mint.
func (e *Engine) VaultAddress(mint [20]byte) [20]byte {
	return e.deriver.Address(NamespaceVault, mint[:])
}

// ListingAddress returns the listing address for the (mint, seller) pair.
func (e *Engine) ListingAddress(mint, seller [20]byte) [20]byte {
	return e.deriver.Address(NamespaceListing, mint[:], seller[:])
}

// EscrowAddress returns the proceeds escrow of seller for askMint.
func (e *Engine) EscrowAddress(seller, askMint [20]byte) [20]byte {
	return e.deriver.Address(NamespaceEscrow, seller[:], askMint[:])
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(dexEvent{evt: event})
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil || e.custody == nil {
		return errNilState
	}
	return nil
}

// atomic runs fn inside a state snapshot and reverts on failure.
func (e *Engine) atomic(fn func() error) error {
	snap := e.state.Snapshot()
	if err := fn(); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	return nil
}

// Config returns the stored configuration.
func (e *Engine) Config() (*Config, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cfg, ok, err := e.state.DexConfigGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return cfg, nil
}

// Stats returns the marketplace counters.
func (e *Engine) Stats() (*Stats, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.state.DexStatsGet()
}

// Listing loads the listing stored at addr.
func (e *Engine) Listing(addr [20]byte) (*Listing, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	listing, ok, err := e.state.DexListingGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrListingNotFound
	}
	return listing, nil
}

// VaultBalance returns the amount of mint held in its custody vault. A vault
// that was never created holds nothing.
func (e *Engine) VaultBalance(mint [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	bal, err := e.custody.Balance(e.VaultAddress(mint))
	if errors.Is(err, custody.ErrVaultNotFound) {
		return big.NewInt(0), nil
	}
	return bal, err
}

// Initialize writes the configuration. The admin defaults to the caller. The
// configuration can be initialized exactly once.
func (e *Engine) Initialize(caller, admin [20]byte, fee, feeScalar uint64) (*Config, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, ok, err := e.state.DexConfigGet(); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyInitialized
	}
	if err := ValidateFees(fee, feeScalar); err != nil {
		return nil, err
	}
	if admin == ([20]byte{}) {
		admin = caller
	}
	if admin == ([20]byte{}) {
		return nil, ErrInvalidAdmin
	}
	cfg := &Config{Admin: admin, Fee: fee, FeeScalar: feeScalar}
	if err := e.state.DexConfigPut(cfg); err != nil {
		return nil, err
	}
	e.emit(NewInitializedEvent(cfg))
	return cfg.Clone(), nil
}

func (e *Engine) requireAdmin(caller [20]byte) (*Config, error) {
	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}
	if cfg.Admin != caller {
		return nil, ErrNotAdmin
	}
	return cfg, nil
}

// tradingConfig returns the configuration consulted by trading paths, or nil
// when the marketplace was never configured.
func (e *Engine) tradingConfig() (*Config, error) {
	cfg, ok, err := e.state.DexConfigGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return cfg, nil
}

func (e *Engine) guard() error {
	cfg, err := e.tradingConfig()
	if err != nil {
		return err
	}
	if cfg == nil {
		return nil
	}
	return common.Guard(cfg, ModuleName)
}

// UpdateFees replaces the fee pair.
func (e *Engine) UpdateFees(caller [20]byte, fee, feeScalar uint64) (*Config, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cfg, err := e.requireAdmin(caller)
	if err != nil {
		return nil, err
	}
	if err := ValidateFees(fee, feeScalar); err != nil {
		return nil, err
	}
	cfg.Fee, cfg.FeeScalar = fee, feeScalar
	if err := e.state.DexConfigPut(cfg); err != nil {
		return nil, err
	}
	e.emit(NewFeesUpdatedEvent(cfg))
	return cfg.Clone(), nil
}

// SetPaused toggles trading. Withdrawals and claims stay available while
// paused.
func (e *Engine) SetPaused(caller [20]byte, paused bool) (*Config, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cfg, err := e.requireAdmin(caller)
	if err != nil {
		return nil, err
	}
	if cfg.Paused == paused {
		return cfg.Clone(), nil
	}
	cfg.Paused = paused
	if err := e.state.DexConfigPut(cfg); err != nil {
		return nil, err
	}
	e.emit(NewPauseChangedEvent(cfg))
	return cfg.Clone(), nil
}

// TransferAdmin hands the configuration to a new admin.
func (e *Engine) TransferAdmin(caller, newAdmin [20]byte) (*Config, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cfg, err := e.requireAdmin(caller)
	if err != nil {
		return nil, err
	}
	if newAdmin == ([20]byte{}) {
		return nil, ErrInvalidAdmin
	}
	previous := cfg.Admin
	cfg.Admin = newAdmin
	if err := e.state.DexConfigPut(cfg); err != nil {
		return nil, err
	}
	e.emit(NewAdminTransferredEvent(cfg, previous))
	return cfg.Clone(), nil
}

// CreateVault materialises the custody vault for mint. Only the admin may
// declare vaults.
func (e *Engine) CreateVault(caller, mint [20]byte) ([20]byte, error) {
	if err := e.ready(); err != nil {
		return [20]byte{}, err
	}
	if _, err := e.requireAdmin(caller); err != nil {
		return [20]byte{}, err
	}
	addr, auth := e.deriver.Derive(NamespaceVault, mint[:])
	err := e.atomic(func() error {
		_, err := e.custody.EnsureExists(addr, auth, mint)
		return err
	})
	if err != nil {
		return [20]byte{}, err
	}
	e.emit(NewVaultCreatedEvent(addr, mint))
	return addr, nil
}

// List creates a listing and moves the seller's asset into its custody vault
// in one step. The listed mint must have a total supply of exactly one.
func (e *Engine) List(p ListParams) (*Listing, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	if p.Ask == nil || p.Ask.Sign() < 0 {
		return nil, ErrInvalidAsk
	}
	ledger := e.custody.Ledger()
	def, err := ledger.Mint(p.Mint)
	if err != nil {
		return nil, err
	}
	if !def.NonFungible() {
		return nil, ErrInvalidSupply
	}
	if _, err := ledger.Mint(p.AskMint); err != nil {
		return nil, fmt.Errorf("ask mint: %w", err)
	}
	source := p.Source
	if source == ([20]byte{}) {
		source = token.AssociatedAddress(p.Seller, p.Mint)
	}

	listingAddr := e.ListingAddress(p.Mint, p.Seller)
	if _, ok, err := e.state.DexListingGet(listingAddr); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrListingExists
	}
	vaultAddr, vaultAuth := e.deriver.Derive(NamespaceVault, p.Mint[:])
	escrowAddr, escrowAuth := e.deriver.Derive(NamespaceEscrow, p.Seller[:], p.AskMint[:])

	listing := &Listing{
		Address:   listingAddr,
		Status:    ListingStatusActive,
		Seller:    p.Seller,
		Mint:      p.Mint,
		Contract:  p.Contract,
		AskMint:   p.AskMint,
		Ask:       new(big.Int).Set(p.Ask),
		CreatedAt: e.now(),
	}
	err = e.atomic(func() error {
		if _, err := e.custody.EnsureExists(vaultAddr, vaultAuth, p.Mint); err != nil {
			return err
		}
		if _, err := e.custody.EnsureExists(escrowAddr, escrowAuth, p.AskMint); err != nil {
			return err
		}
		if err := e.custody.Deposit(vaultAddr, source, p.Seller, unitAmount); err != nil {
			return err
		}
		if err := e.state.DexListingPut(listing); err != nil {
			return err
		}
		return e.updateStats(func(s *Stats) { s.ActiveListings++ })
	})
	if err != nil {
		return nil, err
	}
	e.emit(NewListingCreatedEvent(listing, vaultAddr))
	return listing.Clone(), nil
}

// Buy executes the atomic swap for an active listing: the ask moves from the
// buyer's payment holding to the seller's proceeds escrow, the asset moves
// from the vault to the buyer and the listing is closed and reclaimed. Either
// every effect lands or none does.
func (e *Engine) Buy(p BuyParams) (*Receipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	listing, err := e.Listing(p.Listing)
	if err != nil {
		return nil, err
	}
	if !listing.Active() {
		return nil, ErrListingNotActive
	}
	if p.Seller != listing.Seller {
		return nil, ErrUnauthorizedSeller
	}
	ledger := e.custody.Ledger()
	payment, err := ledger.Holding(p.Payment)
	if err != nil {
		return nil, fmt.Errorf("payment: %w", err)
	}
	if payment.Mint != listing.AskMint {
		return nil, fmt.Errorf("payment: %w", ErrAssetMismatch)
	}
	if payment.Owner != p.Buyer || payment.ProgramOwned {
		return nil, fmt.Errorf("payment: %w", ErrUnauthorizedHolder)
	}
	if payment.Balance.Cmp(listing.Ask) < 0 {
		return nil, ErrInsufficientPayment
	}

	vaultAddr, vaultAuth := e.deriver.Derive(NamespaceVault, listing.Mint[:])
	escrowAddr, escrowAuth := e.deriver.Derive(NamespaceEscrow, listing.Seller[:], listing.AskMint[:])
	receipt := &Receipt{
		Listing: listing.Address,
		Vault:   vaultAddr,
		Escrow:  escrowAddr,
		Amount:  new(big.Int).Set(listing.Ask),
	}
	err = e.atomic(func() error {
		dest, err := e.resolveDestination(p.Buyer, listing.Mint, p.Destination)
		if err != nil {
			return err
		}
		receipt.Destination = dest
		if _, err := e.custody.EnsureExists(escrowAddr, escrowAuth, listing.AskMint); err != nil {
			return err
		}
		swap := NewSwap().
			Add("payment",
				func() error { return e.custody.ValidateDeposit(escrowAddr, p.Payment, p.Buyer, listing.Ask) },
				func() error { return e.custody.Deposit(escrowAddr, p.Payment, p.Buyer, listing.Ask) }).
			Add("asset",
				func() error {
					_, _, err := e.custody.ValidateRelease(vaultAddr, dest, unitAmount, vaultAuth)
					return err
				},
				func() error { return e.custody.Release(vaultAddr, dest, unitAmount, vaultAuth) }).
			Add("listing",
				func() error { return e.validateOpen(listing.Address) },
				func() error { return e.closeListing(listing, func(s *Stats) { s.Sales++ }) })
		return swap.Execute()
	})
	if err != nil {
		return nil, err
	}
	e.emit(NewListingSoldEvent(listing, p.Buyer, receipt))
	return receipt, nil
}

// Sell withdraws an active listing: the asset returns from the vault to the
// seller and the listing is closed and reclaimed. Only the recorded seller may
// withdraw. Withdrawal is allowed while trading is paused.
func (e *Engine) Sell(p SellParams) (*Receipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	listing, err := e.Listing(p.Listing)
	if err != nil {
		return nil, err
	}
	if listing.Seller != p.Seller {
		return nil, ErrUnauthorizedSeller
	}
	if !listing.Active() {
		return nil, ErrListingNotActive
	}
	vaultAddr, vaultAuth := e.deriver.Derive(NamespaceVault, listing.Mint[:])
	receipt := &Receipt{Listing: listing.Address, Vault: vaultAddr, Amount: new(big.Int).Set(unitAmount)}
	err = e.atomic(func() error {
		dest, err := e.resolveDestination(p.Seller, listing.Mint, p.Destination)
		if err != nil {
			return err
		}
		receipt.Destination = dest
		swap := NewSwap().
			Add("asset",
				func() error {
					_, _, err := e.custody.ValidateRelease(vaultAddr, dest, unitAmount, vaultAuth)
					return err
				},
				func() error { return e.custody.Release(vaultAddr, dest, unitAmount, vaultAuth) }).
			Add("listing",
				func() error { return e.validateOpen(listing.Address) },
				func() error { return e.closeListing(listing, func(s *Stats) { s.Withdrawals++ }) })
		return swap.Execute()
	})
	if err != nil {
		return nil, err
	}
	e.emit(NewListingWithdrawnEvent(listing, receipt.Destination))
	return receipt, nil
}

// ClaimProceeds releases the seller's entire proceeds escrow for askMint to a
// holding the seller owns.
func (e *Engine) ClaimProceeds(p ClaimParams) (*Receipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	escrowAddr, escrowAuth := e.deriver.Derive(NamespaceEscrow, p.Seller[:], p.AskMint[:])
	balance, err := e.custody.Balance(escrowAddr)
	if errors.Is(err, custody.ErrVaultNotFound) {
		return nil, ErrNothingToClaim
	}
	if err != nil {
		return nil, err
	}
	if balance.Sign() == 0 {
		return nil, ErrNothingToClaim
	}
	receipt := &Receipt{Escrow: escrowAddr, Amount: balance}
	err = e.atomic(func() error {
		dest, err := e.resolveDestination(p.Seller, p.AskMint, p.Destination)
		if err != nil {
			return err
		}
		receipt.Destination = dest
		return e.custody.Release(escrowAddr, dest, balance, escrowAuth)
	})
	if err != nil {
		return nil, err
	}
	e.emit(NewProceedsClaimedEvent(p.Seller, escrowAddr, receipt.Destination, balance))
	return receipt, nil
}

// resolveDestination returns the holding that receives mint on behalf of
// owner. A zero destination selects the owner's associated holding, opening it
// when absent.
func (e *Engine) resolveDestination(owner, mint, destination [20]byte) ([20]byte, error) {
	ledger := e.custody.Ledger()
	if destination == ([20]byte{}) {
		holding, err := ledger.OpenAssociated(owner, mint)
		if err != nil {
			return [20]byte{}, fmt.Errorf("destination: %w", err)
		}
		return holding.Address, nil
	}
	holding, err := ledger.Holding(destination)
	if err != nil {
		return [20]byte{}, fmt.Errorf("destination: %w", err)
	}
	if holding.Mint != mint {
		return [20]byte{}, fmt.Errorf("destination: %w", ErrAssetMismatch)
	}
	if holding.Owner != owner || holding.ProgramOwned {
		return [20]byte{}, fmt.Errorf("destination: %w", ErrUnauthorizedHolder)
	}
	return destination, nil
}

func (e *Engine) validateOpen(addr [20]byte) error {
	listing, ok, err := e.state.DexListingGet(addr)
	if err != nil {
		return err
	}
	if !ok {
		return ErrListingNotFound
	}
	if !listing.Active() {
		return ErrListingNotActive
	}
	return nil
}

// closeListing moves the listing to Closed and reclaims its storage.
func (e *Engine) closeListing(listing *Listing, count func(*Stats)) error {
	listing.Status = ListingStatusClosed
	if err := e.state.DexListingDelete(listing.Address); err != nil {
		return err
	}
	return e.updateStats(func(s *Stats) {
		if s.ActiveListings > 0 {
			s.ActiveListings--
		}
		count(s)
	})
}

func (e *Engine) updateStats(mutate func(*Stats)) error {
	stats, err := e.state.DexStatsGet()
	if err != nil {
		return err
	}
	mutate(stats)
	return e.state.DexStatsPut(stats)
}
