package dex

import (
	"errors"
	"fmt"

	coreerrors "vaultdex/core/errors"
	"vaultdex/native/dex/custody"
	"vaultdex/native/token"
)

var (
	ErrInvalidSupply       = coreerrors.New(coreerrors.ErrValidation, "dex: listed asset must have a total supply of exactly one")
	ErrInvalidFee          = coreerrors.New(coreerrors.ErrValidation, "dex: fee must not exceed a non-zero fee scalar")
	ErrInvalidAsk          = coreerrors.New(coreerrors.ErrValidation, "dex: ask must be a non-negative amount")
	ErrInsufficientPayment = coreerrors.New(coreerrors.ErrValidation, "dex: payment holding balance below ask")
	ErrNothingToClaim      = coreerrors.New(coreerrors.ErrValidation, "dex: no proceeds to claim")
	ErrInvalidAdmin        = coreerrors.New(coreerrors.ErrValidation, "dex: admin identity must not be empty")

	ErrNotAdmin           = coreerrors.New(coreerrors.ErrAuthorization, "dex: caller is not the admin")
	ErrUnauthorizedSeller = coreerrors.New(coreerrors.ErrAuthorization, "dex: identity is not the listing seller")

	ErrAlreadyInitialized = coreerrors.New(coreerrors.ErrState, "dex: configuration already initialized")
	ErrNotInitialized     = coreerrors.New(coreerrors.ErrState, "dex: configuration not initialized")
	ErrListingExists      = coreerrors.New(coreerrors.ErrState, "dex: listing already exists")
	ErrListingNotFound    = coreerrors.New(coreerrors.ErrState, "dex: listing not found")
	ErrListingNotActive   = coreerrors.New(coreerrors.ErrState, "dex: listing not active")

	// Asset-level failures surfaced unchanged from the custody and token layers.
	ErrAssetMismatch       = custody.ErrAssetMismatch
	ErrInsufficientBalance = custody.ErrInsufficientBalance
	ErrUnauthorizedHolder  = custody.ErrUnauthorizedHolder
	ErrUnknownMint         = token.ErrUnknownMint
)

// SwapAbortedError reports a leg that failed after every leg validated. The
// surrounding unit of work is rolled back, so no partial effect survives.
type SwapAbortedError struct {
	Leg string
	Err error
}

func (e *SwapAbortedError) Error() string {
	return fmt.Sprintf("dex: swap aborted at %s leg: %v", e.Leg, e.Err)
}

// Unwrap exposes both the atomicity classification and the underlying cause.
func (e *SwapAbortedError) Unwrap() []error {
	return []error{coreerrors.ErrAtomicity, e.Err}
}

// IsSwapAborted reports whether err carries a SwapAbortedError.
func IsSwapAborted(err error) bool {
	var aborted *SwapAbortedError
	return errors.As(err, &aborted)
}
