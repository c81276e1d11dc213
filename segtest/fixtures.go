package segtest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// Deterministic fixtures for the three domain kinds. Transactions are
// signed with a fixed throwaway key so sender-recovery paths can assert a
// known address.

var (
	testKey, _ = crypto.HexToECDSA("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")

	// TestSender is the address recovered from every fixture transaction.
	TestSender = crypto.PubkeyToAddress(testKey.PublicKey)

	// TestChainID is the chain id fixture transactions are signed for.
	TestChainID = big.NewInt(1337)

	testRecipient = common.HexToAddress("0x0c0ffeec0ffeec0ffeec0ffeec0ffeec0ffee000")
)

// MakeHeader returns a deterministic header with the given block number.
func MakeHeader(number uint64) *types.Header {
	return &types.Header{
		ParentHash: common.BytesToHash(new(big.Int).SetUint64(number).Bytes()),
		Number:     new(big.Int).SetUint64(number),
		Difficulty: new(big.Int).SetUint64(number*7 + 1),
		GasLimit:   30_000_000,
		GasUsed:    number * 21_000,
		Time:       1_700_000_000 + number*12,
	}
}

// EncodeHeader returns the RLP column encoding of a header.
func EncodeHeader(h *types.Header) []byte {
	data, err := rlp.EncodeToBytes(h)
	if err != nil {
		panic(err)
	}
	return data
}

// TDBytes returns the big-endian column encoding of a total difficulty.
func TDBytes(td *big.Int) []byte {
	return td.Bytes()
}

// MakeSignedTx returns a signed legacy transaction with the given nonce.
func MakeSignedTx(nonce uint64) *types.Transaction {
	signer := types.LatestSignerForChainID(TestChainID)
	return types.MustSignNewTx(testKey, signer, &types.LegacyTx{
		Nonce:    nonce,
		GasPrice: big.NewInt(1_000_000_000),
		Gas:      21_000,
		To:       &testRecipient,
		Value:    new(big.Int).SetUint64(nonce),
	})
}

// MakeDynamicTx returns a signed EIP-1559 transaction with the given nonce,
// exercising the typed-envelope encoding.
func MakeDynamicTx(nonce uint64) *types.Transaction {
	signer := types.LatestSignerForChainID(TestChainID)
	return types.MustSignNewTx(testKey, signer, &types.DynamicFeeTx{
		ChainID:   TestChainID,
		Nonce:     nonce,
		GasTipCap: big.NewInt(1_000_000_000),
		GasFeeCap: big.NewInt(2_000_000_000),
		Gas:       21_000,
		To:        &testRecipient,
		Value:     new(big.Int).SetUint64(nonce),
	})
}

// EncodeTx returns the canonical column encoding of a signed transaction.
func EncodeTx(tx *types.Transaction) []byte {
	data, err := tx.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return data
}

// MakeReceipt returns a deterministic successful receipt.
func MakeReceipt(cumulativeGas uint64) *types.Receipt {
	return &types.Receipt{
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: cumulativeGas,
	}
}

// EncodeReceipt returns the RLP column encoding of a receipt.
func EncodeReceipt(r *types.Receipt) []byte {
	data, err := rlp.EncodeToBytes(r)
	if err != nil {
		panic(err)
	}
	return data
}
