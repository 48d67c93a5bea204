package trie

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	gethtrie "github.com/ethereum/go-ethereum/trie"

	"vaultdex/storage"
)

type leaf struct {
	key   []byte
	value []byte
}

// Root computes the Merkle Patricia root of every key-value pair in src.
//
// Keys are hashed with keccak256 before insertion, matching the historical
// behaviour of the project, and inserted in ascending hashed order as the
// stack trie requires. Empty values are skipped since the trie cannot store
// them. An empty source yields the canonical empty root.
func Root(src storage.Iterable) (common.Hash, error) {
	leaves := make([]leaf, 0, 64)
	err := src.Iterate(func(key, value []byte) bool {
		if len(value) == 0 {
			return true
		}
		leaves = append(leaves, leaf{key: crypto.Keccak256(key), value: value})
		return true
	})
	if err != nil {
		return common.Hash{}, err
	}
	sort.Slice(leaves, func(i, j int) bool {
		return bytes.Compare(leaves[i].key, leaves[j].key) < 0
	})
	st := gethtrie.NewStackTrie(nil)
	for _, l := range leaves {
		if err := st.Update(l.key, l.value); err != nil {
			return common.Hash{}, err
		}
	}
	return st.Hash(), nil
}
