package dex

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"vaultdex/core/types"
)

const (
	EventTypeInitialized      = "dex.initialized"
	EventTypeVaultCreated     = "dex.vault.created"
	EventTypeListingCreated   = "dex.listing.created"
	EventTypeListingSold      = "dex.listing.sold"
	EventTypeListingWithdrawn = "dex.listing.withdrawn"
	EventTypeProceedsClaimed  = "dex.proceeds.claimed"
	EventTypeFeesUpdated      = "dex.config.fees_updated"
	EventTypePauseChanged     = "dex.config.pause_changed"
	EventTypeAdminTransferred = "dex.config.admin_transferred"
)

// NewInitializedEvent returns the payload emitted when the configuration is
// first written.
func NewInitializedEvent(cfg *Config) *types.Event { return newConfigEvent(EventTypeInitialized, cfg) }

// NewFeesUpdatedEvent returns the payload emitted when the fee pair changes.
func NewFeesUpdatedEvent(cfg *Config) *types.Event { return newConfigEvent(EventTypeFeesUpdated, cfg) }

// NewPauseChangedEvent returns the payload emitted when trading is paused or
// resumed.
func NewPauseChangedEvent(cfg *Config) *types.Event { return newConfigEvent(EventTypePauseChanged, cfg) }

// NewAdminTransferredEvent returns the payload emitted when the admin rotates.
func NewAdminTransferredEvent(cfg *Config, previous [20]byte) *types.Event {
	evt := newConfigEvent(EventTypeAdminTransferred, cfg)
	evt.Attributes["previousAdmin"] = hex.EncodeToString(previous[:])
	return evt
}

// NewVaultCreatedEvent returns the payload emitted when the admin declares a
// supported asset.
func NewVaultCreatedEvent(vault, mint [20]byte) *types.Event {
	return &types.Event{
		Type: EventTypeVaultCreated,
		Attributes: map[string]string{
			"vault": hex.EncodeToString(vault[:]),
			"mint":  hex.EncodeToString(mint[:]),
		},
	}
}

// NewListingCreatedEvent returns the payload emitted for a new listing.
func NewListingCreatedEvent(l *Listing, vault [20]byte) *types.Event {
	evt := newListingEvent(EventTypeListingCreated, l)
	evt.Attributes["vault"] = hex.EncodeToString(vault[:])
	return evt
}

// NewListingSoldEvent returns the payload emitted when a listing is bought.
func NewListingSoldEvent(l *Listing, buyer [20]byte, receipt *Receipt) *types.Event {
	evt := newListingEvent(EventTypeListingSold, l)
	evt.Attributes["buyer"] = hex.EncodeToString(buyer[:])
	if receipt != nil {
		evt.Attributes["escrow"] = hex.EncodeToString(receipt.Escrow[:])
		evt.Attributes["destination"] = hex.EncodeToString(receipt.Destination[:])
	}
	return evt
}

// NewListingWithdrawnEvent returns the payload emitted when the seller takes
// the asset back.
func NewListingWithdrawnEvent(l *Listing, destination [20]byte) *types.Event {
	evt := newListingEvent(EventTypeListingWithdrawn, l)
	evt.Attributes["destination"] = hex.EncodeToString(destination[:])
	return evt
}

// NewProceedsClaimedEvent returns the payload emitted when a seller drains a
// proceeds escrow.
func NewProceedsClaimedEvent(seller, escrow, destination [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeProceedsClaimed,
		Attributes: map[string]string{
			"seller":      hex.EncodeToString(seller[:]),
			"escrow":      hex.EncodeToString(escrow[:]),
			"destination": hex.EncodeToString(destination[:]),
			"amount":      amountString(amount),
		},
	}
}

func newConfigEvent(eventType string, cfg *Config) *types.Event {
	attrs := make(map[string]string)
	if cfg == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["admin"] = hex.EncodeToString(cfg.Admin[:])
	attrs["fee"] = strconv.FormatUint(cfg.Fee, 10)
	attrs["feeScalar"] = strconv.FormatUint(cfg.FeeScalar, 10)
	attrs["paused"] = strconv.FormatBool(cfg.Paused)
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newListingEvent(eventType string, l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["listing"] = hex.EncodeToString(l.Address[:])
	attrs["seller"] = hex.EncodeToString(l.Seller[:])
	attrs["mint"] = hex.EncodeToString(l.Mint[:])
	attrs["askMint"] = hex.EncodeToString(l.AskMint[:])
	attrs["ask"] = amountString(l.Ask)
	attrs["status"] = l.Status.String()
	attrs["createdAt"] = strconv.FormatUint(l.CreatedAt, 10)
	if l.Contract != ([20]byte{}) {
		attrs["contract"] = hex.EncodeToString(l.Contract[:])
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
