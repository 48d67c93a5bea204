// Package crypto renders marketplace identities and manages the secp256k1
// keys behind wallet identities.
//
// Every party the marketplace deals with (sellers, buyers, the admin, mints,
// holdings and the program-derived vault, listing and escrow addresses) is a
// 20-byte identity. Outside the ledger they travel as bech32 strings with the
// "vdx" prefix.
package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the bech32 human-readable part of an identity.
type AddressPrefix string

// VDXPrefix is the only prefix the marketplace accepts.
const VDXPrefix AddressPrefix = "vdx"

// AddressLength is the byte length of every identity.
const AddressLength = 20

// Address is an identity paired with the prefix it renders under.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

// NewAddress copies b into an Address. It panics unless b is AddressLength
// bytes long.
func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != AddressLength {
		panic(fmt.Sprintf("crypto: identity must be %d bytes, got %d", AddressLength, len(b)))
	}
	return Address{prefix: prefix, bytes: append([]byte(nil), b...)}
}

// FromArray wraps a ledger identity for display or transport.
func FromArray(raw [20]byte) Address {
	return NewAddress(VDXPrefix, raw[:])
}

// String renders the bech32 form used in config files, RPC params and events.
func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	return a.bytes
}

// Array returns the identity in the fixed-size form the ledger stores.
func (a Address) Array() [20]byte {
	var out [20]byte
	copy(out[:], a.bytes)
	return out
}

func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// DecodeAddress parses a bech32 identity. Strings under any prefix other than
// VDXPrefix are rejected so identities from other networks cannot be used by
// mistake.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 identity: %w", err)
	}
	if AddressPrefix(prefix) != VDXPrefix {
		return Address{}, fmt.Errorf("unsupported identity prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("invalid identity payload: %w", err)
	}
	if len(conv) != AddressLength {
		return Address{}, fmt.Errorf("identity must be %d bytes, got %d", AddressLength, len(conv))
	}
	return NewAddress(VDXPrefix, conv), nil
}

// PrivateKey signs for a wallet identity. The CLI keeps it in an encrypted
// keystore; the daemon also uses a fresh one to mint a program identity for
// a default config.
type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

// GeneratePrivateKey creates a random secp256k1 key.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// PrivateKeyFromBytes restores a key from its 32-byte scalar.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the 32-byte scalar.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Address is the wallet identity controlled by the key: the last 20 bytes of
// the keccak256 hash of the public key.
func (k *PublicKey) Address() Address {
	return NewAddress(VDXPrefix, crypto.PubkeyToAddress(*k.PublicKey).Bytes())
}
