package datafetcher

import (
	"context"
	"math/big"
	"testing"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

// fakeHeaderSource models a chain with one block every 10 seconds starting
// at timestamp 1000.
type fakeHeaderSource struct {
	head    uint64
	queries int
}

func (f *fakeHeaderSource) BlockNumber(_ context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeHeaderSource) HeaderByNumber(_ context.Context, number *big.Int) (*gethtypes.Header, error) {
	f.queries++
	block := number.Uint64()
	return &gethtypes.Header{
		Number: new(big.Int).SetUint64(block),
		Time:   1000 + block*10,
	}, nil
}

func TestBlockForTimestamp(t *testing.T) {
	searcher, err := NewBlockSearcher(&fakeHeaderSource{head: 100})
	require.NoError(t, err)

	cases := []struct {
		name      string
		timestamp int64
		want      uint64
	}{
		{"interior", 1505, 50},
		{"exact block time", 1500, 50},
		{"genesis time", 1000, 0},
		{"after head", 5000, 100},
		{"head time", 2000, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			block, err := searcher.BlockForTimestamp(context.Background(), tc.timestamp)
			require.NoError(t, err)
			require.Equal(t, tc.want, block)
		})
	}
}

func TestBlockForTimestampBeforeGenesis(t *testing.T) {
	searcher, err := NewBlockSearcher(&fakeHeaderSource{head: 100})
	require.NoError(t, err)

	_, err = searcher.BlockForTimestamp(context.Background(), 999)
	require.ErrorIs(t, err, ErrTimestampBeforeChain)
}

func TestBlockForTimestampRejectsNegative(t *testing.T) {
	searcher, err := NewBlockSearcher(&fakeHeaderSource{head: 100})
	require.NoError(t, err)

	_, err = searcher.BlockForTimestamp(context.Background(), -1)
	require.Error(t, err)
}

func TestBlockForTimestampSearchIsLogarithmic(t *testing.T) {
	source := &fakeHeaderSource{head: 1_000_000}
	searcher, err := NewBlockSearcher(source)
	require.NoError(t, err)

	block, err := searcher.BlockForTimestamp(context.Background(), 1000+5_000_005)
	require.NoError(t, err)
	require.Equal(t, uint64(500_000), block)
	require.Less(t, source.queries, 40, "binary search should not scan linearly")
}
