package coldstore_test

import (
	"context"
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainkit/coldstore"
	"github.com/chainkit/coldstore/blobstore/s3"
)

var txHash = common.HexToHash("0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b")

func Example() {
	ctx := context.Background()

	store, err := coldstore.Open(ctx, coldstore.Local("/var/chaindata/segments"))
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	hdr, err := store.HeaderByNumber(ctx, 15_000_000)
	if err != nil {
		log.Fatal(err)
	}
	if hdr == nil {
		fmt.Println("block not in cold storage")
		return
	}
	fmt.Println(hdr.Hash())
}

func Example_remote() {
	ctx := context.Background()

	segments, err := s3.New(ctx, "chain-segments", s3.WithPrefix("mainnet/"))
	if err != nil {
		log.Fatal(err)
	}

	store, err := coldstore.Open(ctx,
		coldstore.Remote(segments),
		coldstore.WithCacheDir("/var/cache/coldstore"),
		coldstore.WithDownloadRateLimit(64<<20),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	tx, err := store.TransactionByHash(ctx, txHash)
	if err != nil {
		log.Fatal(err)
	}
	if tx != nil {
		fmt.Println(tx.Nonce())
	}
}
