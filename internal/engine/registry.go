package engine

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/abdulrahman305/qenex-defi-sub000/internal/fixedpoint"
	"github.com/abdulrahman305/qenex-defi-sub000/internal/model"
)

// CreatePoolResult reports the registered pool and the emitted event.
type CreatePoolResult struct {
	Pool  model.Pool
	Event model.Event
}

// CreatePool registers an empty pool for the unordered token pair with the
// given fee rate. The registry lock is held across the storage commit so a
// pair can never be registered twice.
func (e *Engine) CreatePool(ctx context.Context, tokenA, tokenB string, feeRateBps uint16) (CreatePoolResult, error) {
	if tokenA == "" || tokenB == "" {
		return CreatePoolResult{}, fmt.Errorf("empty token id: %w", ErrInvalidToken)
	}
	if tokenA == tokenB {
		return CreatePoolResult{}, fmt.Errorf("token %q: %w", tokenA, ErrSameToken)
	}
	if feeRateBps == 0 || feeRateBps > e.ceiling {
		return CreatePoolResult{}, fmt.Errorf("%w: %d bps (ceiling %d)", ErrInvalidFeeRate, feeRateBps, e.ceiling)
	}

	token0, token1 := CanonicalPair(tokenA, tokenB)
	pool := model.Pool{
		ID:         PoolID(token0, token1),
		Token0:     token0,
		Token1:     token1,
		FeeRateBps: feeRateBps,
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := pairKey{token0, token1}
	if _, exists := e.byPair[key]; exists {
		return CreatePoolResult{}, fmt.Errorf("pair %s/%s: %w", token0, token1, ErrPoolAlreadyExists)
	}

	event := e.newEvent(model.OpCreatePool, pool.ID, model.PoolCreatedData{
		Token0:     token0,
		Token1:     token1,
		FeeRateBps: feeRateBps,
	}, token0, token1, strconv.FormatUint(uint64(feeRateBps), 10))

	if err := e.commit(ctx, Commit{Pool: pool, Event: event}); err != nil {
		return CreatePoolResult{}, err
	}

	e.pools[pool.ID] = &poolState{pool: pool, positions: make(map[string]fixedpoint.Amount)}
	e.byPair[key] = pool.ID

	e.logger.Info("pool created",
		zap.String("pool", pool.ID),
		zap.String("token0", token0),
		zap.String("token1", token1),
		zap.Uint16("fee_bps", feeRateBps))
	return CreatePoolResult{Pool: pool, Event: event}, nil
}
