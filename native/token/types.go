package token

import (
	"math/big"
	"strings"

	coreerrors "vaultdex/core/errors"
)

var (
	ErrUnknownMint         = coreerrors.New(coreerrors.ErrValidation, "token: unknown mint")
	ErrMintExists          = coreerrors.New(coreerrors.ErrState, "token: mint already exists")
	ErrInvalidSymbol       = coreerrors.New(coreerrors.ErrValidation, "token: symbol must not be empty")
	ErrHoldingNotFound     = coreerrors.New(coreerrors.ErrValidation, "token: holding not found")
	ErrHoldingConflict     = coreerrors.New(coreerrors.ErrState, "token: holding already exists with a different definition")
	ErrAssetMismatch       = coreerrors.New(coreerrors.ErrValidation, "token: holding mint mismatch")
	ErrInsufficientBalance = coreerrors.New(coreerrors.ErrValidation, "token: insufficient balance")
	ErrInvalidAmount       = coreerrors.New(coreerrors.ErrValidation, "token: amount must be non-negative")
	ErrBalanceOverflow     = coreerrors.New(coreerrors.ErrValidation, "token: balance overflows 256 bits")
	ErrUnauthorized        = coreerrors.New(coreerrors.ErrAuthorization, "token: signer does not own holding")
	ErrMintAuthority       = coreerrors.New(coreerrors.ErrAuthorization, "token: signer is not the mint authority")
	ErrProgramOwned        = coreerrors.New(coreerrors.ErrAuthorization, "token: holding is controlled by program logic")
	ErrNotProgramOwned     = coreerrors.New(coreerrors.ErrValidation, "token: destination is not a program-owned holding")
)

// Mint describes an asset type. A mint whose supply is exactly one is a
// non-fungible asset.
type Mint struct {
	ID        [20]byte
	Symbol    string
	Decimals  uint8
	Supply    *big.Int
	Authority [20]byte
}

// Clone returns a deep copy of the mint.
func (m *Mint) Clone() *Mint {
	if m == nil {
		return nil
	}
	clone := *m
	clone.Supply = cloneBigInt(m.Supply)
	return &clone
}

// NonFungible reports whether exactly one unit of the asset exists.
func (m *Mint) NonFungible() bool {
	return m != nil && m.Supply != nil && m.Supply.Cmp(big.NewInt(1)) == 0
}

// Holding is a balance of one mint controlled by Owner. Program-owned
// holdings use their own address as owner and can never be spent through
// Transfer; only the custody module moves funds out of them.
type Holding struct {
	Address      [20]byte
	Mint         [20]byte
	Owner        [20]byte
	Balance      *big.Int
	ProgramOwned bool
}

// Clone returns a deep copy of the holding.
func (h *Holding) Clone() *Holding {
	if h == nil {
		return nil
	}
	clone := *h
	clone.Balance = cloneBigInt(h.Balance)
	return &clone
}

// NormalizeSymbol trims and upper-cases a mint symbol.
func NormalizeSymbol(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return "", ErrInvalidSymbol
	}
	return trimmed, nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
