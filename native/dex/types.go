package dex

import (
	"math/big"
)

// ModuleName identifies the marketplace in pause checks, metrics and events.
const ModuleName = "dex"

// Derivation namespaces.
const (
	NamespaceVault   = "vault"
	NamespaceListing = "listing"
	NamespaceEscrow  = "escrow"
)

// Config is the marketplace's single global configuration record. Fee and
// FeeScalar define a rate of Fee/FeeScalar that is recorded but not charged on
// any transfer path.
type Config struct {
	Admin     [20]byte
	Fee       uint64
	FeeScalar uint64
	Paused    bool
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// IsPaused implements common.PauseView.
func (c *Config) IsPaused(module string) bool {
	return c != nil && module == ModuleName && c.Paused
}

// ValidateFees checks that the fee pair describes a rate in [0, 1].
func ValidateFees(fee, feeScalar uint64) error {
	if feeScalar == 0 || fee > feeScalar {
		return ErrInvalidFee
	}
	return nil
}

// ListingStatus tags a listing's position in its lifecycle.
type ListingStatus uint8

const (
	ListingStatusUnspecified ListingStatus = iota
	ListingStatusActive
	ListingStatusClosed
)

// String returns the lowercase status name.
func (s ListingStatus) String() string {
	switch s {
	case ListingStatusActive:
		return "active"
	case ListingStatusClosed:
		return "closed"
	default:
		return "uninitialized"
	}
}

// Listing is a seller's standing offer to exchange one custodied
// non-fungible asset for Ask units of AskMint. Contract is an opaque
// descriptor that is stored but never interpreted.
type Listing struct {
	Address   [20]byte
	Status    ListingStatus
	Seller    [20]byte
	Mint      [20]byte
	Contract  [20]byte
	AskMint   [20]byte
	Ask       *big.Int
	CreatedAt uint64
}

// Active reports whether the listing can still be bought or withdrawn.
func (l *Listing) Active() bool {
	return l != nil && l.Status == ListingStatusActive
}

// Clone returns a deep copy of the listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Ask != nil {
		clone.Ask = new(big.Int).Set(l.Ask)
	} else {
		clone.Ask = big.NewInt(0)
	}
	return &clone
}

// Stats aggregates marketplace counters kept alongside the configuration.
type Stats struct {
	ActiveListings uint64
	Sales          uint64
	Withdrawals    uint64
}

// Clone returns a copy of the counters.
func (s *Stats) Clone() *Stats {
	if s == nil {
		return &Stats{}
	}
	clone := *s
	return &clone
}

// ListParams describes a new listing.
type ListParams struct {
	Seller [20]byte
	Mint   [20]byte
	// Source is the seller's holding of Mint. Zero selects the seller's
	// associated holding.
	Source   [20]byte
	Contract [20]byte
	AskMint  [20]byte
	Ask      *big.Int
}

// BuyParams describes a purchase. Seller is the payment destination the buyer
// expects; it must match the listing's recorded seller.
type BuyParams struct {
	Buyer   [20]byte
	Listing [20]byte
	Seller  [20]byte
	Payment [20]byte
	// Destination receives the asset. Zero selects (and opens if needed) the
	// buyer's associated holding.
	Destination [20]byte
}

// SellParams describes a seller-initiated withdrawal.
type SellParams struct {
	Seller      [20]byte
	Listing     [20]byte
	Destination [20]byte
}

// ClaimParams drains a seller's proceeds escrow for AskMint.
type ClaimParams struct {
	Seller      [20]byte
	AskMint     [20]byte
	Destination [20]byte
}

// Receipt summarises the effects of a completed trade.
type Receipt struct {
	Listing     [20]byte
	Vault       [20]byte
	Escrow      [20]byte
	Destination [20]byte
	Amount      *big.Int
}
