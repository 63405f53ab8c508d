package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/abdulrahman305/qenex-defi-sub000/internal/engine"
	"github.com/abdulrahman305/qenex-defi-sub000/internal/fixedpoint"
	"github.com/abdulrahman305/qenex-defi-sub000/internal/model"
)

// apply dispatches one operation to the engine. It returns the event to
// journal and whether the operation was a read-only quote.
func (r *Runner) apply(ctx context.Context, op model.Operation) (model.Event, bool, error) {
	switch op.Op {
	case model.OpCreatePool:
		fee := op.FeeRateBps
		if fee == 0 {
			fee = engine.DefaultFeeRateBps
		}
		res, err := r.engine.CreatePool(ctx, op.TokenA, op.TokenB, fee)
		if err != nil {
			return model.Event{}, false, err
		}
		return res.Event, false, nil

	case model.OpAddLiquidity:
		poolID, err := r.resolvePool(op)
		if err != nil {
			return model.Event{}, false, err
		}
		res, err := r.engine.AddLiquidity(ctx, engine.AddLiquidityParams{
			PoolID:         poolID,
			Provider:       op.Provider,
			Amount0Desired: op.Amount0,
			Amount1Desired: op.Amount1,
			MinShares:      op.MinShares,
		})
		if err != nil {
			return model.Event{}, false, err
		}
		return res.Event, false, nil

	case model.OpRemoveLiquidity:
		poolID, err := r.resolvePool(op)
		if err != nil {
			return model.Event{}, false, err
		}
		res, err := r.engine.RemoveLiquidity(ctx, engine.RemoveLiquidityParams{
			PoolID:     poolID,
			Provider:   op.Provider,
			Shares:     op.Shares,
			MinAmount0: op.MinAmount0,
			MinAmount1: op.MinAmount1,
		})
		if err != nil {
			return model.Event{}, false, err
		}
		return res.Event, false, nil

	case model.OpSwap:
		poolID, err := r.resolvePool(op)
		if err != nil {
			return model.Event{}, false, err
		}
		res, err := r.engine.Swap(ctx, engine.SwapParams{
			PoolID:       poolID,
			TokenIn:      op.TokenIn,
			AmountIn:     op.AmountIn,
			MinAmountOut: op.MinOut,
		})
		if err != nil {
			return model.Event{}, false, err
		}
		return res.Event, false, nil

	case model.OpQuoteSwap:
		poolID, err := r.resolvePool(op)
		if err != nil {
			return model.Event{}, false, err
		}
		quote, err := r.engine.QuoteSwap(poolID, op.TokenIn, op.AmountIn)
		if err != nil {
			return model.Event{}, false, err
		}
		return quoteEvent(poolID, quote), true, nil

	case model.OpSpotPrice:
		poolID, err := r.resolvePool(op)
		if err != nil {
			return model.Event{}, false, err
		}
		price, err := r.engine.SpotPrice(poolID, op.Token)
		if err != nil {
			return model.Event{}, false, err
		}
		return spotPriceEvent(poolID, op.Token, price), true, nil

	default:
		return model.Event{}, false, fmt.Errorf("unknown operation %q", op.Op)
	}
}

// resolvePool maps an operation to a pool id, accepting either an explicit
// pool_id or a token pair. The explicit id wins when both are present.
func (r *Runner) resolvePool(op model.Operation) (string, error) {
	if op.PoolID != "" {
		return op.PoolID, nil
	}
	if op.TokenA == "" || op.TokenB == "" {
		return "", fmt.Errorf("operation needs pool_id or token_a/token_b")
	}
	pool, err := r.engine.PoolByPair(op.TokenA, op.TokenB)
	if err != nil {
		return "", err
	}
	return pool.ID, nil
}

// Quote results go to the journal like state changes do, but they carry no
// sequence number or hash; only mutations are sequenced.
func quoteEvent(poolID string, q engine.SwapQuote) model.Event {
	return model.Event{
		Op:        model.OpQuoteSwap,
		PoolID:    poolID,
		AppliedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Data: model.SwapQuotedData{
			TokenIn:     q.TokenIn,
			TokenOut:    q.TokenOut,
			AmountIn:    q.AmountIn,
			AmountOut:   q.AmountOut,
			FeePaid:     q.FeePaid,
			PriceBefore: q.PriceBefore,
			PriceAfter:  q.PriceAfter,
			PriceImpact: q.PriceImpact,
		},
	}
}

func spotPriceEvent(poolID, token string, price fixedpoint.Amount) model.Event {
	return model.Event{
		Op:        model.OpSpotPrice,
		PoolID:    poolID,
		AppliedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Data: model.SpotPriceData{
			Token: token,
			Price: price,
		},
	}
}
