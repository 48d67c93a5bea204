package modules

import (
	"context"
	"encoding/json"
	"net/http"

	"vaultdex/core"
	"vaultdex/native/dex"
	"vaultdex/native/token"
)

// DexModule serves the dex_* methods.
type DexModule struct {
	node *core.Node
}

func NewDexModule(node *core.Node) *DexModule {
	return &DexModule{node: node}
}

var errDexOffline = &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeInternal, Message: "dex module not initialised"}

type ConfigResult struct {
	Admin     string `json:"admin"`
	Fee       uint64 `json:"fee"`
	FeeScalar uint64 `json:"feeScalar"`
	Paused    bool   `json:"paused"`
}

type StatsResult struct {
	ActiveListings uint64 `json:"activeListings"`
	Sales          uint64 `json:"sales"`
	Withdrawals    uint64 `json:"withdrawals"`
}

type ConfigStatusResult struct {
	Config      *ConfigResult `json:"config,omitempty"`
	Initialized bool          `json:"initialized"`
	Stats       StatsResult   `json:"stats"`
}

type ListingResult struct {
	Address   string `json:"address"`
	Status    string `json:"status"`
	Seller    string `json:"seller"`
	Mint      string `json:"mint"`
	Contract  string `json:"contract,omitempty"`
	AskMint   string `json:"askMint"`
	Ask       string `json:"ask"`
	CreatedAt uint64 `json:"createdAt"`
	Vault     string `json:"vault"`
	Escrow    string `json:"escrow"`
}

type ReceiptResult struct {
	Listing     string `json:"listing,omitempty"`
	Vault       string `json:"vault,omitempty"`
	Escrow      string `json:"escrow,omitempty"`
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
}

type VaultResult struct {
	Address string `json:"address"`
	Mint    string `json:"mint"`
	Balance string `json:"balance"`
}

type feeParams struct {
	Caller    string `json:"caller"`
	Admin     string `json:"admin,omitempty"`
	Fee       uint64 `json:"fee"`
	FeeScalar uint64 `json:"feeScalar"`
}

func (m *DexModule) Initialize(ctx context.Context, raw json.RawMessage) (*ConfigResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errDexOffline
	}
	var params feeParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	caller, modErr := parseAddress("caller", params.Caller)
	if modErr != nil {
		return nil, modErr
	}
	admin, modErr := parseOptionalAddress("admin", params.Admin)
	if modErr != nil {
		return nil, modErr
	}
	cfg, err := m.node.Initialize(ctx, caller, admin, params.Fee, params.FeeScalar)
	if err != nil {
		return nil, FromError(err)
	}
	return formatConfig(cfg), nil
}

func (m *DexModule) UpdateFees(ctx context.Context, raw json.RawMessage) (*ConfigResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errDexOffline
	}
	var params feeParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	caller, modErr := parseAddress("caller", params.Caller)
	if modErr != nil {
		return nil, modErr
	}
	cfg, err := m.node.UpdateFees(ctx, caller, params.Fee, params.FeeScalar)
	if err != nil {
		return nil, FromError(err)
	}
	return formatConfig(cfg), nil
}

func (m *DexModule) SetPaused(ctx context.Context, raw json.RawMessage) (*ConfigResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errDexOffline
	}
	var params struct {
		Caller string `json:"caller"`
		Paused bool   `json:"paused"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	caller, modErr := parseAddress("caller", params.Caller)
	if modErr != nil {
		return nil, modErr
	}
	cfg, err := m.node.SetPaused(ctx, caller, params.Paused)
	if err != nil {
		return nil, FromError(err)
	}
	return formatConfig(cfg), nil
}

func (m *DexModule) TransferAdmin(ctx context.Context, raw json.RawMessage) (*ConfigResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errDexOffline
	}
	var params struct {
		Caller string `json:"caller"`
		Admin  string `json:"admin"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	caller, modErr := parseAddress("caller", params.Caller)
	if modErr != nil {
		return nil, modErr
	}
	admin, modErr := parseAddress("admin", params.Admin)
	if modErr != nil {
		return nil, modErr
	}
	cfg, err := m.node.TransferAdmin(ctx, caller, admin)
	if err != nil {
		return nil, FromError(err)
	}
	return formatConfig(cfg), nil
}

func (m *DexModule) CreateVault(ctx context.Context, raw json.RawMessage) (*VaultResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errDexOffline
	}
	var params struct {
		Caller string `json:"caller"`
		Mint   string `json:"mint"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	caller, modErr := parseAddress("caller", params.Caller)
	if modErr != nil {
		return nil, modErr
	}
	mint, modErr := parseAddress("mint", params.Mint)
	if modErr != nil {
		return nil, modErr
	}
	addr, err := m.node.CreateVault(ctx, caller, mint)
	if err != nil {
		return nil, FromError(err)
	}
	return m.vault(ctx, mint, addr)
}

func (m *DexModule) List(ctx context.Context, raw json.RawMessage) (*ListingResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errDexOffline
	}
	var params struct {
		Seller   string `json:"seller"`
		Mint     string `json:"mint"`
		Source   string `json:"source,omitempty"`
		Contract string `json:"contract,omitempty"`
		AskMint  string `json:"askMint"`
		Ask      string `json:"ask"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	var p dex.ListParams
	var modErr *ModuleError
	if p.Seller, modErr = parseAddress("seller", params.Seller); modErr != nil {
		return nil, modErr
	}
	if p.Mint, modErr = parseAddress("mint", params.Mint); modErr != nil {
		return nil, modErr
	}
	if p.Source, modErr = parseOptionalAddress("source", params.Source); modErr != nil {
		return nil, modErr
	}
	if p.Contract, modErr = parseOptionalAddress("contract", params.Contract); modErr != nil {
		return nil, modErr
	}
	if p.AskMint, modErr = parseAddress("askMint", params.AskMint); modErr != nil {
		return nil, modErr
	}
	if p.Ask, modErr = parseAmount("ask", params.Ask); modErr != nil {
		return nil, modErr
	}
	listing, err := m.node.List(ctx, p)
	if err != nil {
		return nil, FromError(err)
	}
	return m.formatListing(listing), nil
}

func (m *DexModule) Buy(ctx context.Context, raw json.RawMessage) (*ReceiptResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errDexOffline
	}
	var params struct {
		Buyer       string `json:"buyer"`
		Listing     string `json:"listing"`
		Seller      string `json:"seller"`
		Payment     string `json:"payment,omitempty"`
		Destination string `json:"destination,omitempty"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	var p dex.BuyParams
	var modErr *ModuleError
	if p.Buyer, modErr = parseAddress("buyer", params.Buyer); modErr != nil {
		return nil, modErr
	}
	if p.Listing, modErr = parseAddress("listing", params.Listing); modErr != nil {
		return nil, modErr
	}
	if p.Seller, modErr = parseAddress("seller", params.Seller); modErr != nil {
		return nil, modErr
	}
	if p.Payment, modErr = parseOptionalAddress("payment", params.Payment); modErr != nil {
		return nil, modErr
	}
	if p.Destination, modErr = parseOptionalAddress("destination", params.Destination); modErr != nil {
		return nil, modErr
	}
	if p.Payment == ([20]byte{}) {
		listing, err := m.node.Listing(ctx, p.Listing)
		if err != nil {
			return nil, FromError(err)
		}
		p.Payment = token.AssociatedAddress(p.Buyer, listing.AskMint)
	}
	receipt, err := m.node.Buy(ctx, p)
	if err != nil {
		return nil, FromError(err)
	}
	return formatReceipt(receipt), nil
}

func (m *DexModule) Sell(ctx context.Context, raw json.RawMessage) (*ReceiptResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errDexOffline
	}
	var params struct {
		Seller      string `json:"seller"`
		Listing     string `json:"listing"`
		Destination string `json:"destination,omitempty"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	var p dex.SellParams
	var modErr *ModuleError
	if p.Seller, modErr = parseAddress("seller", params.Seller); modErr != nil {
		return nil, modErr
	}
	if p.Listing, modErr = parseAddress("listing", params.Listing); modErr != nil {
		return nil, modErr
	}
	if p.Destination, modErr = parseOptionalAddress("destination", params.Destination); modErr != nil {
		return nil, modErr
	}
	receipt, err := m.node.Sell(ctx, p)
	if err != nil {
		return nil, FromError(err)
	}
	return formatReceipt(receipt), nil
}

func (m *DexModule) ClaimProceeds(ctx context.Context, raw json.RawMessage) (*ReceiptResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errDexOffline
	}
	var params struct {
		Seller      string `json:"seller"`
		AskMint     string `json:"askMint"`
		Destination string `json:"destination,omitempty"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	var p dex.ClaimParams
	var modErr *ModuleError
	if p.Seller, modErr = parseAddress("seller", params.Seller); modErr != nil {
		return nil, modErr
	}
	if p.AskMint, modErr = parseAddress("askMint", params.AskMint); modErr != nil {
		return nil, modErr
	}
	if p.Destination, modErr = parseOptionalAddress("destination", params.Destination); modErr != nil {
		return nil, modErr
	}
	receipt, err := m.node.ClaimProceeds(ctx, p)
	if err != nil {
		return nil, FromError(err)
	}
	return formatReceipt(receipt), nil
}

// GetConfig reports the global configuration and counters. An uninitialised
// marketplace is not an error.
func (m *DexModule) GetConfig(ctx context.Context) (*ConfigStatusResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errDexOffline
	}
	result := &ConfigStatusResult{}
	cfg, err := m.node.Config(ctx)
	switch {
	case err == nil:
		result.Config = formatConfig(cfg)
		result.Initialized = true
	case !isNotInitialized(err):
		return nil, FromError(err)
	}
	stats, err := m.node.Stats(ctx)
	if err != nil {
		return nil, FromError(err)
	}
	result.Stats = StatsResult{ActiveListings: stats.ActiveListings, Sales: stats.Sales, Withdrawals: stats.Withdrawals}
	return result, nil
}

// GetListing accepts either a listing address or the (mint, seller) pair it
// is derived from.
func (m *DexModule) GetListing(ctx context.Context, raw json.RawMessage) (*ListingResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errDexOffline
	}
	var params struct {
		Listing string `json:"listing,omitempty"`
		Mint    string `json:"mint,omitempty"`
		Seller  string `json:"seller,omitempty"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	var addr [20]byte
	if params.Listing != "" {
		var modErr *ModuleError
		if addr, modErr = parseAddress("listing", params.Listing); modErr != nil {
			return nil, modErr
		}
	} else {
		mint, modErr := parseAddress("mint", params.Mint)
		if modErr != nil {
			return nil, modErr
		}
		seller, modErr := parseAddress("seller", params.Seller)
		if modErr != nil {
			return nil, modErr
		}
		addr = m.node.ListingAddress(mint, seller)
	}
	listing, err := m.node.Listing(ctx, addr)
	if err != nil {
		return nil, FromError(err)
	}
	return m.formatListing(listing), nil
}

func (m *DexModule) GetVault(ctx context.Context, raw json.RawMessage) (*VaultResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errDexOffline
	}
	var params struct {
		Mint string `json:"mint"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	mint, modErr := parseAddress("mint", params.Mint)
	if modErr != nil {
		return nil, modErr
	}
	return m.vault(ctx, mint, m.node.VaultAddress(mint))
}

func (m *DexModule) StateRoot(ctx context.Context) (string, *ModuleError) {
	if m == nil || m.node == nil {
		return "", errDexOffline
	}
	root, err := m.node.StateRoot(ctx)
	if err != nil {
		return "", FromError(err)
	}
	return root.Hex(), nil
}

func (m *DexModule) vault(ctx context.Context, mint, addr [20]byte) (*VaultResult, *ModuleError) {
	balance, err := m.node.VaultBalance(ctx, mint)
	if err != nil {
		return nil, FromError(err)
	}
	return &VaultResult{Address: formatAddress(addr), Mint: formatAddress(mint), Balance: formatAmount(balance)}, nil
}

func (m *DexModule) formatListing(listing *dex.Listing) *ListingResult {
	return &ListingResult{
		Address:   formatAddress(listing.Address),
		Status:    listing.Status.String(),
		Seller:    formatAddress(listing.Seller),
		Mint:      formatAddress(listing.Mint),
		Contract:  formatAddress(listing.Contract),
		AskMint:   formatAddress(listing.AskMint),
		Ask:       formatAmount(listing.Ask),
		CreatedAt: listing.CreatedAt,
		Vault:     formatAddress(m.node.VaultAddress(listing.Mint)),
		Escrow:    formatAddress(m.node.EscrowAddress(listing.Seller, listing.AskMint)),
	}
}

func formatConfig(cfg *dex.Config) *ConfigResult {
	return &ConfigResult{
		Admin:     formatAddress(cfg.Admin),
		Fee:       cfg.Fee,
		FeeScalar: cfg.FeeScalar,
		Paused:    cfg.Paused,
	}
}

func formatReceipt(receipt *dex.Receipt) *ReceiptResult {
	return &ReceiptResult{
		Listing:     formatAddress(receipt.Listing),
		Vault:       formatAddress(receipt.Vault),
		Escrow:      formatAddress(receipt.Escrow),
		Destination: formatAddress(receipt.Destination),
		Amount:      formatAmount(receipt.Amount),
	}
}
