package provider

import (
	"runtime"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"
)

// recoverSender derives the sending address from the transaction's
// signature. The signer is chosen per transaction from its own chain ID,
// so pre- and post-replay-protection transactions in one batch both
// recover correctly.
func recoverSender(tx *types.Transaction) (common.Address, error) {
	return types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
}

// RecoverSenders recovers the sending address of every transaction in the
// batch, in order. Recovery is all-or-nothing: if the batch is short of
// want members or any single signature fails to recover, the whole call
// fails with a SenderRecoveryError and no partial result is returned.
func RecoverSenders(txs []StoredTransaction, want int) ([]common.Address, error) {
	if len(txs) != want {
		return nil, &SenderRecoveryError{Want: want, Got: len(txs)}
	}

	senders := make([]common.Address, len(txs))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, st := range txs {
		i, st := i, st
		g.Go(func() error {
			tx, err := st.Decode()
			if err != nil {
				return err
			}
			from, err := recoverSender(tx)
			if err != nil {
				return err
			}
			senders[i] = from
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &SenderRecoveryError{Want: want, Got: len(txs), cause: err}
	}
	return senders, nil
}
