package provider

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chainkit/coldstore/segment"
)

// The reader interfaces below mirror the live mutable store's query
// surface, so callers can be handed either a segment-backed provider or a
// live-store implementation interchangeably. Keyed lookups report absence
// as a nil value or a false ok flag, never as an error; queries a
// segment-backed provider cannot answer fail with ErrUnsupported.

// HeaderReader answers block header queries.
type HeaderReader interface {
	// Header returns the header whose block hash is hash.
	Header(hash common.Hash) (*types.Header, error)
	// HeaderByNumber returns the header at block number n.
	HeaderByNumber(n uint64) (*types.Header, error)
	// HeaderTD returns the total difficulty of the block with the given hash.
	HeaderTD(hash common.Hash) (*big.Int, error)
	// HeaderTDByNumber returns the total difficulty at block number n.
	HeaderTDByNumber(n uint64) (*big.Int, error)
	// HeadersRange returns the headers in the given block range, skipping
	// absent rows. The result may be shorter than the requested span.
	HeadersRange(start, end Bound) ([]*types.Header, error)
	// SealedHeadersRange is HeadersRange with each header paired with its
	// stored block hash.
	SealedHeadersRange(start, end Bound) ([]SealedHeader, error)
	// SealedHeader returns the header at n paired with its stored hash.
	SealedHeader(n uint64) (*SealedHeader, error)
}

// BlockHashReader answers canonical block hash queries.
type BlockHashReader interface {
	// BlockHash returns the canonical hash of block n.
	BlockHash(n uint64) (common.Hash, bool, error)
	// CanonicalHashesRange returns the canonical hashes in [start, end),
	// skipping absent rows.
	CanonicalHashesRange(start, end uint64) ([]common.Hash, error)
}

// BlockNumReader answers block number queries and chain-head queries.
type BlockNumReader interface {
	// ChainInfo returns the current chain head. Segment-backed providers
	// fail with ErrUnsupported.
	ChainInfo() (ChainInfo, error)
	// BestBlockNumber returns the best known block number. Segment-backed
	// providers fail with ErrUnsupported.
	BestBlockNumber() (uint64, error)
	// LastBlockNumber returns the last canonical block number.
	// Segment-backed providers fail with ErrUnsupported.
	LastBlockNumber() (uint64, error)
	// BlockNumber returns the number of the block with the given hash.
	BlockNumber(hash common.Hash) (uint64, bool, error)
}

// TransactionReader answers transaction queries.
type TransactionReader interface {
	// TransactionID returns the transaction number of the transaction with
	// the given hash.
	TransactionID(hash common.Hash) (uint64, bool, error)
	// TransactionByID returns the transaction at number n with its hash
	// materialized.
	TransactionByID(n uint64) (*types.Transaction, error)
	// TransactionByIDNoHash returns the stored record at number n without
	// materializing a hash.
	TransactionByIDNoHash(n uint64) (StoredTransaction, error)
	// TransactionByHash returns the transaction with the given hash.
	TransactionByHash(hash common.Hash) (*types.Transaction, error)
	// TransactionByHashWithMeta also returns the transaction's block
	// context. Segment-backed providers fail with ErrUnsupported.
	TransactionByHashWithMeta(hash common.Hash) (*types.Transaction, *TransactionMeta, error)
	// TransactionBlock returns the number of the block containing the
	// transaction at number n. Segment-backed providers fail with
	// ErrUnsupported.
	TransactionBlock(n uint64) (uint64, bool, error)
	// TransactionsByBlock returns the transactions of the given block.
	// Segment-backed providers fail with ErrUnsupported.
	TransactionsByBlock(block segment.RowKey) ([]*types.Transaction, error)
	// TransactionsByBlockRange returns the transactions of each block in
	// the range. Segment-backed providers fail with ErrUnsupported.
	TransactionsByBlockRange(start, end Bound) ([][]*types.Transaction, error)
	// TransactionsByTxRange returns the stored records in the given
	// transaction-number range, skipping absent rows.
	TransactionsByTxRange(start, end Bound) ([]StoredTransaction, error)
	// SendersByTxRange recovers the signer of every transaction in the
	// range. It is all-or-nothing: a single unrecoverable member fails the
	// whole call with a SenderRecoveryError.
	SendersByTxRange(start, end Bound) ([]common.Address, error)
	// TransactionSender recovers the signer of the transaction at number
	// n. Recovery failure is reported as absence.
	TransactionSender(n uint64) (common.Address, bool, error)
}

// ReceiptReader answers receipt queries.
type ReceiptReader interface {
	// Receipt returns the receipt at transaction number n.
	Receipt(n uint64) (*types.Receipt, error)
	// ReceiptByHash returns the receipt of the transaction with the given
	// hash. Receipt segments carry no hash index, so a segment-backed
	// provider resolves the hash through an attached transaction-segment
	// auxiliary; without one the result is always absent.
	ReceiptByHash(hash common.Hash) (*types.Receipt, error)
	// ReceiptsByBlock returns the receipts of the given block.
	// Segment-backed providers fail with ErrUnsupported.
	ReceiptsByBlock(block segment.RowKey) ([]*types.Receipt, error)
}

// Reader is the full chain-data query surface.
type Reader interface {
	HeaderReader
	BlockHashReader
	BlockNumReader
	TransactionReader
	ReceiptReader
}
