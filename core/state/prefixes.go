package state

var (
	tokenMintPrefix    = []byte("token/mint/")
	tokenHoldingPrefix = []byte("token/holding/")
	custodyVaultPrefix = []byte("custody/vault/")
	dexListingPrefix   = []byte("dex/listing/")
	dexConfigKeyBytes  = []byte("dex/config")
	dexStatsKeyBytes   = []byte("dex/stats")
)

func prefixedKey(prefix []byte, id [20]byte) []byte {
	buf := make([]byte, len(prefix)+len(id))
	copy(buf, prefix)
	copy(buf[len(prefix):], id[:])
	return buf
}

// TokenMintKey returns the unhashed key of a mint record.
func TokenMintKey(id [20]byte) []byte { return prefixedKey(tokenMintPrefix, id) }

// TokenHoldingKey returns the unhashed key of a holding record.
func TokenHoldingKey(addr [20]byte) []byte { return prefixedKey(tokenHoldingPrefix, addr) }

// CustodyVaultKey returns the unhashed key of a vault record.
func CustodyVaultKey(addr [20]byte) []byte { return prefixedKey(custodyVaultPrefix, addr) }

// DexListingKey returns the unhashed key of a listing record.
func DexListingKey(addr [20]byte) []byte { return prefixedKey(dexListingPrefix, addr) }

// DexConfigKey returns the unhashed key of the marketplace configuration.
func DexConfigKey() []byte { return append([]byte(nil), dexConfigKeyBytes...) }

// DexStatsKey returns the unhashed key of the marketplace counters.
func DexStatsKey() []byte { return append([]byte(nil), dexStatsKeyBytes...) }
