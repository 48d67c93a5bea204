package token

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

var errNilState = errors.New("token ledger: state not configured")

type ledgerState interface {
	TokenMintGet(id [20]byte) (*Mint, bool, error)
	TokenMintPut(*Mint) error
	TokenHoldingGet(addr [20]byte) (*Holding, bool, error)
	TokenHoldingPut(*Holding) error
}

// Ledger implements the fungible and non-fungible asset primitives the
// marketplace builds on: mint creation, issuance, holdings and
// owner-authorised transfers. Every method assumes it runs inside a unit of
// work that the caller commits or discards as a whole.
type Ledger struct {
	state ledgerState
}

// NewLedger binds a ledger to the supplied state backend.
func NewLedger(state ledgerState) *Ledger {
	return &Ledger{state: state}
}

// MintID derives the identity of a mint created by authority.
func MintID(authority [20]byte, symbol string, nonce uint64) [20]byte {
	var nonceBuf [8]byte
	binary.BigEndian.PutUint64(nonceBuf[:], nonce)
	hash := ethcrypto.Keccak256([]byte("mint"), authority[:], []byte(symbol), nonceBuf[:])
	var id [20]byte
	copy(id[:], hash[len(hash)-20:])
	return id
}

// AssociatedAddress returns the canonical holding address for owner and mint.
func AssociatedAddress(owner, mint [20]byte) [20]byte {
	hash := ethcrypto.Keccak256([]byte("holding"), owner[:], mint[:])
	var addr [20]byte
	copy(addr[:], hash[len(hash)-20:])
	return addr
}

// CreateMint registers a new asset type with zero supply.
func (l *Ledger) CreateMint(authority [20]byte, symbol string, decimals uint8, nonce uint64) (*Mint, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	normalized, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	id := MintID(authority, normalized, nonce)
	if _, ok, err := l.state.TokenMintGet(id); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrMintExists
	}
	mint := &Mint{
		ID:        id,
		Symbol:    normalized,
		Decimals:  decimals,
		Supply:    big.NewInt(0),
		Authority: authority,
	}
	if err := l.state.TokenMintPut(mint); err != nil {
		return nil, err
	}
	return mint.Clone(), nil
}

// Mint loads a mint definition.
func (l *Ledger) Mint(id [20]byte) (*Mint, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	mint, ok, err := l.state.TokenMintGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownMint
	}
	return mint, nil
}

// Holding loads a holding.
func (l *Ledger) Holding(addr [20]byte) (*Holding, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	holding, ok, err := l.state.TokenHoldingGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHoldingNotFound
	}
	if holding.Balance == nil {
		holding.Balance = big.NewInt(0)
	}
	return holding, nil
}

// OpenHolding materialises an empty holding at addr for mint and owner. The
// call is idempotent when the existing holding matches; otherwise it fails
// with ErrHoldingConflict.
func (l *Ledger) OpenHolding(addr, mint, owner [20]byte) (*Holding, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	if _, err := l.Mint(mint); err != nil {
		return nil, err
	}
	existing, ok, err := l.state.TokenHoldingGet(addr)
	if err != nil {
		return nil, err
	}
	if ok {
		if existing.Mint != mint || existing.Owner != owner || existing.ProgramOwned {
			return nil, ErrHoldingConflict
		}
		return existing, nil
	}
	holding := &Holding{Address: addr, Mint: mint, Owner: owner, Balance: big.NewInt(0)}
	if err := l.state.TokenHoldingPut(holding); err != nil {
		return nil, err
	}
	return holding.Clone(), nil
}

// OpenProgramHolding materialises a program-owned holding at addr. The
// holding is its own owner.
func (l *Ledger) OpenProgramHolding(addr, mint [20]byte) (*Holding, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	if _, err := l.Mint(mint); err != nil {
		return nil, err
	}
	existing, ok, err := l.state.TokenHoldingGet(addr)
	if err != nil {
		return nil, err
	}
	if ok {
		if existing.Mint != mint || existing.Owner != addr || !existing.ProgramOwned {
			return nil, ErrHoldingConflict
		}
		return existing, nil
	}
	holding := &Holding{Address: addr, Mint: mint, Owner: addr, Balance: big.NewInt(0), ProgramOwned: true}
	if err := l.state.TokenHoldingPut(holding); err != nil {
		return nil, err
	}
	return holding.Clone(), nil
}

// OpenAssociated opens (or returns) the owner's associated holding for mint.
func (l *Ledger) OpenAssociated(owner, mint [20]byte) (*Holding, error) {
	return l.OpenHolding(AssociatedAddress(owner, mint), mint, owner)
}

// MintTo issues amount new units into holding. Only the mint authority may
// issue.
func (l *Ledger) MintTo(mintID, signer, holdingAddr [20]byte, amount *big.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	mint, err := l.Mint(mintID)
	if err != nil {
		return err
	}
	if mint.Authority != signer {
		return ErrMintAuthority
	}
	holding, err := l.Holding(holdingAddr)
	if err != nil {
		return err
	}
	if holding.Mint != mintID {
		return ErrAssetMismatch
	}
	if holding.ProgramOwned {
		return ErrProgramOwned
	}
	supply, err := addChecked(mint.Supply, amount)
	if err != nil {
		return err
	}
	balance, err := addChecked(holding.Balance, amount)
	if err != nil {
		return err
	}
	mint.Supply = supply
	holding.Balance = balance
	if err := l.state.TokenMintPut(mint); err != nil {
		return err
	}
	return l.state.TokenHoldingPut(holding)
}

// ValidateTransfer checks every precondition of Transfer without mutating
// state and returns the loaded holdings. Program-owned holdings can be neither
// source nor destination.
func (l *Ledger) ValidateTransfer(from, to [20]byte, amount *big.Int, signer [20]byte) (*Holding, *Holding, error) {
	src, dst, err := l.validateMove(from, to, amount, signer)
	if err != nil {
		return nil, nil, err
	}
	if dst.ProgramOwned {
		return nil, nil, ErrProgramOwned
	}
	return src, dst, nil
}

// Transfer moves amount from one holding to another. The signer must own the
// source holding and both holdings must be of the same mint.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int, signer [20]byte) error {
	src, dst, err := l.ValidateTransfer(from, to, amount, signer)
	if err != nil {
		return err
	}
	return l.move(from, to, src, dst, amount)
}

// ValidateTransferToProgram is ValidateTransfer for a program-owned
// destination. Only the custody layer calls it, after applying its own
// bounds on what the destination may hold.
func (l *Ledger) ValidateTransferToProgram(from, to [20]byte, amount *big.Int, signer [20]byte) (*Holding, *Holding, error) {
	src, dst, err := l.validateMove(from, to, amount, signer)
	if err != nil {
		return nil, nil, err
	}
	if !dst.ProgramOwned {
		return nil, nil, ErrNotProgramOwned
	}
	return src, dst, nil
}

// TransferToProgram credits a program-owned holding from a signer-owned one.
func (l *Ledger) TransferToProgram(from, to [20]byte, amount *big.Int, signer [20]byte) error {
	src, dst, err := l.ValidateTransferToProgram(from, to, amount, signer)
	if err != nil {
		return err
	}
	return l.move(from, to, src, dst, amount)
}

func (l *Ledger) validateMove(from, to [20]byte, amount *big.Int, signer [20]byte) (*Holding, *Holding, error) {
	if err := validateAmount(amount); err != nil {
		return nil, nil, err
	}
	src, err := l.Holding(from)
	if err != nil {
		return nil, nil, fmt.Errorf("source: %w", err)
	}
	dst, err := l.Holding(to)
	if err != nil {
		return nil, nil, fmt.Errorf("destination: %w", err)
	}
	if src.ProgramOwned {
		return nil, nil, ErrProgramOwned
	}
	if src.Owner != signer {
		return nil, nil, ErrUnauthorized
	}
	if src.Mint != dst.Mint {
		return nil, nil, ErrAssetMismatch
	}
	if src.Balance.Cmp(amount) < 0 {
		return nil, nil, ErrInsufficientBalance
	}
	if from != to {
		if _, err := addChecked(dst.Balance, amount); err != nil {
			return nil, nil, err
		}
	}
	return src, dst, nil
}

func (l *Ledger) move(from, to [20]byte, src, dst *Holding, amount *big.Int) error {
	if from == to || amount.Sign() == 0 {
		return nil
	}
	src.Balance = new(big.Int).Sub(src.Balance, amount)
	dst.Balance = new(big.Int).Add(dst.Balance, amount)
	if err := l.state.TokenHoldingPut(src); err != nil {
		return err
	}
	return l.state.TokenHoldingPut(dst)
}

func validateAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if _, overflow := uint256.FromBig(amount); overflow {
		return ErrBalanceOverflow
	}
	return nil
}

// AddBalance returns a+b, failing with ErrBalanceOverflow when the sum does
// not fit in 256 bits.
func AddBalance(a, b *big.Int) (*big.Int, error) {
	return addChecked(a, b)
}

func addChecked(a, b *big.Int) (*big.Int, error) {
	x, overflow := uint256.FromBig(cloneBigInt(a))
	if overflow {
		return nil, ErrBalanceOverflow
	}
	y, overflow := uint256.FromBig(cloneBigInt(b))
	if overflow {
		return nil, ErrBalanceOverflow
	}
	sum, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrBalanceOverflow
	}
	return sum.ToBig(), nil
}
