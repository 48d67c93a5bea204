// Package custody implements program-controlled vaults. A vault is a
// program-owned token holding at a derived address; assets enter through an
// owner-authorised deposit and leave only against the derivation authority
// that produced the vault address.
package custody

import (
	"errors"
	"fmt"
	"math/big"

	coreerrors "vaultdex/core/errors"
	"vaultdex/native/dex/internal/pda"
	"vaultdex/native/token"
)

var (
	ErrVaultCreation       = coreerrors.New(coreerrors.ErrValidation, "custody: vault cannot be created at address")
	ErrVaultNotFound       = coreerrors.New(coreerrors.ErrState, "custody: vault not found")
	ErrUnauthorizedRelease = coreerrors.New(coreerrors.ErrAuthorization, "custody: release not authorised for vault")
	ErrCustodyOverflow     = coreerrors.New(coreerrors.ErrValidation, "custody: non-fungible vault holds at most one unit")

	// Re-exported ledger failures so callers can match on custody errors alone.
	ErrInsufficientBalance = token.ErrInsufficientBalance
	ErrAssetMismatch       = token.ErrAssetMismatch
	ErrUnauthorizedHolder  = token.ErrUnauthorized
)

var errNilState = errors.New("custody: state not configured")

// Vault records which asset a vault address custodies.
type Vault struct {
	Address     [20]byte
	Mint        [20]byte
	Namespace   string
	NonFungible bool
}

// Clone returns a copy of the vault record.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}

type custodyState interface {
	CustodyVaultGet(addr [20]byte) (*Vault, bool, error)
	CustodyVaultPut(*Vault) error
	TokenMintGet(id [20]byte) (*token.Mint, bool, error)
	TokenMintPut(*token.Mint) error
	TokenHoldingGet(addr [20]byte) (*token.Holding, bool, error)
	TokenHoldingPut(*token.Holding) error
}

// Custody manages vault records and the holdings behind them.
type Custody struct {
	state  custodyState
	ledger *token.Ledger
}

// New binds the custody module to a state backend.
func New(state custodyState) *Custody {
	return &Custody{state: state, ledger: token.NewLedger(state)}
}

// Ledger exposes the asset ledger the custody module operates on.
func (c *Custody) Ledger() *token.Ledger { return c.ledger }

// EnsureExists materialises the vault at addr for mint if it is absent. The
// authority must derive addr. Existing vaults are returned unchanged when they
// custody the same mint.
func (c *Custody) EnsureExists(addr [20]byte, auth pda.Authority, mint [20]byte) (*Vault, error) {
	if c == nil || c.state == nil {
		return nil, errNilState
	}
	if !auth.Verify(addr) {
		return nil, fmt.Errorf("%w: authority does not derive %x", ErrVaultCreation, addr)
	}
	def, err := c.ledger.Mint(mint)
	if err != nil {
		return nil, err
	}
	existing, ok, err := c.state.CustodyVaultGet(addr)
	if err != nil {
		return nil, err
	}
	if ok && existing.Mint != mint {
		return nil, fmt.Errorf("%w: address custodies a different mint", ErrVaultCreation)
	}
	if _, err := c.ledger.OpenProgramHolding(addr, mint); err != nil {
		if errors.Is(err, token.ErrHoldingConflict) {
			return nil, fmt.Errorf("%w: %v", ErrVaultCreation, err)
		}
		return nil, err
	}
	if ok {
		if !existing.NonFungible && def.NonFungible() {
			existing.NonFungible = true
			if err := c.state.CustodyVaultPut(existing); err != nil {
				return nil, err
			}
		}
		return existing.Clone(), nil
	}
	vault := &Vault{
		Address:     addr,
		Mint:        mint,
		Namespace:   auth.Namespace(),
		NonFungible: def.NonFungible(),
	}
	if err := c.state.CustodyVaultPut(vault); err != nil {
		return nil, err
	}
	return vault.Clone(), nil
}

// Vault loads the vault record at addr.
func (c *Custody) Vault(addr [20]byte) (*Vault, error) {
	if c == nil || c.state == nil {
		return nil, errNilState
	}
	vault, ok, err := c.state.CustodyVaultGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrVaultNotFound
	}
	return vault, nil
}

// Balance returns the amount currently held by the vault.
func (c *Custody) Balance(addr [20]byte) (*big.Int, error) {
	if _, err := c.Vault(addr); err != nil {
		return nil, err
	}
	holding, err := c.ledger.Holding(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(holding.Balance), nil
}

// ValidateDeposit checks every precondition of Deposit without mutating state.
func (c *Custody) ValidateDeposit(vaultAddr, source, signer [20]byte, amount *big.Int) error {
	vault, err := c.Vault(vaultAddr)
	if err != nil {
		return err
	}
	_, dst, err := c.ledger.ValidateTransferToProgram(source, vaultAddr, amount, signer)
	if err != nil {
		return err
	}
	nonFungible := vault.NonFungible
	if !nonFungible {
		def, err := c.ledger.Mint(vault.Mint)
		if err != nil {
			return err
		}
		nonFungible = def.NonFungible()
	}
	if nonFungible && new(big.Int).Add(dst.Balance, amount).Cmp(big.NewInt(1)) > 0 {
		return ErrCustodyOverflow
	}
	return nil
}

// Deposit moves amount from a signer-owned holding into the vault.
func (c *Custody) Deposit(vaultAddr, source, signer [20]byte, amount *big.Int) error {
	if err := c.ValidateDeposit(vaultAddr, source, signer, amount); err != nil {
		return err
	}
	return c.ledger.TransferToProgram(source, vaultAddr, amount, signer)
}

// ValidateRelease checks every precondition of Release without mutating state
// and returns the loaded vault and destination holdings.
func (c *Custody) ValidateRelease(vaultAddr, destination [20]byte, amount *big.Int, auth pda.Authority) (*token.Holding, *token.Holding, error) {
	if !auth.Verify(vaultAddr) {
		return nil, nil, ErrUnauthorizedRelease
	}
	vault, err := c.Vault(vaultAddr)
	if err != nil {
		return nil, nil, err
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, nil, token.ErrInvalidAmount
	}
	src, err := c.ledger.Holding(vaultAddr)
	if err != nil {
		return nil, nil, err
	}
	dst, err := c.ledger.Holding(destination)
	if err != nil {
		return nil, nil, fmt.Errorf("destination: %w", err)
	}
	if dst.Mint != vault.Mint {
		return nil, nil, ErrAssetMismatch
	}
	if src.Balance.Cmp(amount) < 0 {
		return nil, nil, ErrInsufficientBalance
	}
	if destination != vaultAddr {
		if _, err := token.AddBalance(dst.Balance, amount); err != nil {
			return nil, nil, err
		}
	}
	return src, dst, nil
}

// Release moves amount out of the vault to destination. The authority must be
// the one that derives the vault address.
func (c *Custody) Release(vaultAddr, destination [20]byte, amount *big.Int, auth pda.Authority) error {
	src, dst, err := c.ValidateRelease(vaultAddr, destination, amount, auth)
	if err != nil {
		return err
	}
	if destination == vaultAddr || amount.Sign() == 0 {
		return nil
	}
	credited, err := token.AddBalance(dst.Balance, amount)
	if err != nil {
		return err
	}
	src.Balance = new(big.Int).Sub(src.Balance, amount)
	dst.Balance = credited
	if err := c.state.TokenHoldingPut(src); err != nil {
		return err
	}
	return c.state.TokenHoldingPut(dst)
}
