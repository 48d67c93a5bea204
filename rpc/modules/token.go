package modules

import (
	"context"
	"encoding/json"
	"net/http"

	"vaultdex/core"
	"vaultdex/native/token"
)

// TokenModule exposes the asset ledger the marketplace trades against.
type TokenModule struct {
	node *core.Node
}

func NewTokenModule(node *core.Node) *TokenModule {
	return &TokenModule{node: node}
}

var errTokenOffline = &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeInternal, Message: "token module not initialised"}

type MintResult struct {
	ID          string `json:"id"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	Supply      string `json:"supply"`
	Authority   string `json:"authority"`
	NonFungible bool   `json:"nonFungible"`
}

type HoldingResult struct {
	Address      string `json:"address"`
	Mint         string `json:"mint"`
	Owner        string `json:"owner"`
	Balance      string `json:"balance"`
	ProgramOwned bool   `json:"programOwned,omitempty"`
}

func (m *TokenModule) CreateMint(ctx context.Context, raw json.RawMessage) (*MintResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errTokenOffline
	}
	var params struct {
		Authority string `json:"authority"`
		Symbol    string `json:"symbol"`
		Decimals  uint8  `json:"decimals"`
		Nonce     uint64 `json:"nonce"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	authority, modErr := parseAddress("authority", params.Authority)
	if modErr != nil {
		return nil, modErr
	}
	mint, err := m.node.CreateMint(ctx, authority, params.Symbol, params.Decimals, params.Nonce)
	if err != nil {
		return nil, FromError(err)
	}
	return formatMint(mint), nil
}

func (m *TokenModule) MintTo(ctx context.Context, raw json.RawMessage) (*HoldingResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errTokenOffline
	}
	var params struct {
		Authority string `json:"authority"`
		Mint      string `json:"mint"`
		Holding   string `json:"holding"`
		Amount    string `json:"amount"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	authority, modErr := parseAddress("authority", params.Authority)
	if modErr != nil {
		return nil, modErr
	}
	mint, modErr := parseAddress("mint", params.Mint)
	if modErr != nil {
		return nil, modErr
	}
	holding, modErr := parseAddress("holding", params.Holding)
	if modErr != nil {
		return nil, modErr
	}
	amount, modErr := parseAmount("amount", params.Amount)
	if modErr != nil {
		return nil, modErr
	}
	if err := m.node.MintTo(ctx, authority, mint, holding, amount); err != nil {
		return nil, FromError(err)
	}
	return m.holding(ctx, holding)
}

func (m *TokenModule) OpenHolding(ctx context.Context, raw json.RawMessage) (*HoldingResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errTokenOffline
	}
	var params struct {
		Owner   string `json:"owner"`
		Mint    string `json:"mint"`
		Address string `json:"address,omitempty"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	owner, modErr := parseAddress("owner", params.Owner)
	if modErr != nil {
		return nil, modErr
	}
	mint, modErr := parseAddress("mint", params.Mint)
	if modErr != nil {
		return nil, modErr
	}
	addr, modErr := parseOptionalAddress("address", params.Address)
	if modErr != nil {
		return nil, modErr
	}
	holding, err := m.node.OpenHolding(ctx, owner, mint, addr)
	if err != nil {
		return nil, FromError(err)
	}
	return formatHolding(holding), nil
}

func (m *TokenModule) Transfer(ctx context.Context, raw json.RawMessage) (*HoldingResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errTokenOffline
	}
	var params struct {
		Signer string `json:"signer"`
		From   string `json:"from"`
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	signer, modErr := parseAddress("signer", params.Signer)
	if modErr != nil {
		return nil, modErr
	}
	from, modErr := parseAddress("from", params.From)
	if modErr != nil {
		return nil, modErr
	}
	to, modErr := parseAddress("to", params.To)
	if modErr != nil {
		return nil, modErr
	}
	amount, modErr := parseAmount("amount", params.Amount)
	if modErr != nil {
		return nil, modErr
	}
	if err := m.node.Transfer(ctx, signer, from, to, amount); err != nil {
		return nil, FromError(err)
	}
	return m.holding(ctx, to)
}

func (m *TokenModule) GetHolding(ctx context.Context, raw json.RawMessage) (*HoldingResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errTokenOffline
	}
	var params struct {
		Address string `json:"address,omitempty"`
		Owner   string `json:"owner,omitempty"`
		Mint    string `json:"mint,omitempty"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	var addr [20]byte
	if params.Address != "" {
		var modErr *ModuleError
		if addr, modErr = parseAddress("address", params.Address); modErr != nil {
			return nil, modErr
		}
	} else {
		owner, modErr := parseAddress("owner", params.Owner)
		if modErr != nil {
			return nil, modErr
		}
		mint, modErr := parseAddress("mint", params.Mint)
		if modErr != nil {
			return nil, modErr
		}
		addr = token.AssociatedAddress(owner, mint)
	}
	return m.holding(ctx, addr)
}

func (m *TokenModule) GetMint(ctx context.Context, raw json.RawMessage) (*MintResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errTokenOffline
	}
	var params struct {
		Mint string `json:"mint"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	id, modErr := parseAddress("mint", params.Mint)
	if modErr != nil {
		return nil, modErr
	}
	mint, err := m.node.Mint(ctx, id)
	if err != nil {
		return nil, FromError(err)
	}
	return formatMint(mint), nil
}

func (m *TokenModule) holding(ctx context.Context, addr [20]byte) (*HoldingResult, *ModuleError) {
	holding, err := m.node.Holding(ctx, addr)
	if err != nil {
		return nil, FromError(err)
	}
	return formatHolding(holding), nil
}

func formatMint(mint *token.Mint) *MintResult {
	return &MintResult{
		ID:          formatAddress(mint.ID),
		Symbol:      mint.Symbol,
		Decimals:    mint.Decimals,
		Supply:      formatAmount(mint.Supply),
		Authority:   formatAddress(mint.Authority),
		NonFungible: mint.NonFungible(),
	}
}

func formatHolding(holding *token.Holding) *HoldingResult {
	return &HoldingResult{
		Address:      formatAddress(holding.Address),
		Mint:         formatAddress(holding.Mint),
		Owner:        formatAddress(holding.Owner),
		Balance:      formatAmount(holding.Balance),
		ProgramOwned: holding.ProgramOwned,
	}
}
