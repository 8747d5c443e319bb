/*

This file resolves timestamps to block heights by binary searching block
headers, used to anchor the start of each lookback window.

*/

package datafetcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/logger"
)

var ErrTimestampBeforeChain = errors.New("timestamp predates the chain")

// HeaderSource is the subset of the RPC client needed for block search.
// *ethclient.Client satisfies it.
type HeaderSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
}

// BlockSearcher maps unix timestamps to block heights.
type BlockSearcher struct {
	source HeaderSource
	logger zerolog.Logger
}

// NewBlockSearcher builds a BlockSearcher over the given header source.
func NewBlockSearcher(source HeaderSource) (*BlockSearcher, error) {
	if source == nil {
		return nil, errors.New("header source cannot be nil")
	}
	return &BlockSearcher{
		source: source,
		logger: logger.GetForComponent("block_searcher"),
	}, nil
}

// BlockForTimestamp returns the highest block whose timestamp is at or
// before unixSeconds.
func (s *BlockSearcher) BlockForTimestamp(ctx context.Context, unixSeconds int64) (uint64, error) {
	if unixSeconds < 0 {
		return 0, fmt.Errorf("timestamp cannot be negative: %d", unixSeconds)
	}
	target := uint64(unixSeconds)

	head, err := s.source.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching chain head: %w", err)
	}

	headHeader, err := s.headerAt(ctx, head)
	if err != nil {
		return 0, err
	}
	if headHeader.Time <= target {
		return head, nil
	}

	genesisHeader, err := s.headerAt(ctx, 0)
	if err != nil {
		return 0, err
	}
	if genesisHeader.Time > target {
		return 0, fmt.Errorf("%w: target %d, genesis %d", ErrTimestampBeforeChain, target, genesisHeader.Time)
	}

	// Invariant: block lo has timestamp <= target, block hi has
	// timestamp > target.
	lo, hi := uint64(0), head
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		header, err := s.headerAt(ctx, mid)
		if err != nil {
			return 0, err
		}
		if header.Time <= target {
			lo = mid
		} else {
			hi = mid
		}
	}

	s.logger.Debug().
		Int64("timestamp", unixSeconds).
		Uint64("block", lo).
		Msg("Resolved timestamp to block")

	return lo, nil
}

func (s *BlockSearcher) headerAt(ctx context.Context, number uint64) (*gethtypes.Header, error) {
	header, err := s.source.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, fmt.Errorf("fetching header %d: %w", number, err)
	}
	if header == nil {
		return nil, fmt.Errorf("nil header for block %d", number)
	}
	return header, nil
}
