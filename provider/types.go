package provider

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// SealedHeader bundles a header with its trusted block hash. The hash is
// read from the adjacent segment column, not recomputed from the header
// bytes; callers that do not trust the segment must recompute it.
type SealedHeader struct {
	Header *types.Header
	Hash   common.Hash
}

// StoredTransaction is a transaction exactly as stored in a transaction
// segment: the canonical signed encoding, without the cached hash column.
// The bytes alias the mapped segment when the segment is uncompressed and
// are only valid while it stays open.
type StoredTransaction []byte

// Hash materializes the transaction hash by hashing the signed payload.
// This is the explicit, pay-as-you-go path; nothing caches the result.
func (st StoredTransaction) Hash() common.Hash {
	return crypto.Keccak256Hash(st)
}

// Decode materializes a hash-bearing transaction from the stored payload.
func (st StoredTransaction) Decode() (*types.Transaction, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(st); err != nil {
		return nil, err
	}
	return tx, nil
}

// ChainInfo describes the current chain head. Only the live store can
// produce it; segment providers fail such queries with ErrUnsupported.
type ChainInfo struct {
	BestHash   common.Hash
	BestNumber uint64
}

// TransactionMeta is the block context of a transaction. It requires a
// transaction-to-block index, so segment providers never produce it.
type TransactionMeta struct {
	TxHash      common.Hash
	BlockHash   common.Hash
	BlockNumber uint64
	Index       uint64
}
