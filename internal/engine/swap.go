package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/abdulrahman305/qenex-defi-sub000/internal/fixedpoint"
	"github.com/abdulrahman305/qenex-defi-sub000/internal/model"
)

// SwapParams describe an exact-input swap. MinAmountOut is the slippage bound.
type SwapParams struct {
	PoolID       string
	TokenIn      string
	AmountIn     fixedpoint.Amount
	MinAmountOut fixedpoint.Amount
}

// SwapResult reports the executed swap and the post-operation pool snapshot.
type SwapResult struct {
	TokenIn   string
	TokenOut  string
	AmountIn  fixedpoint.Amount
	AmountOut fixedpoint.Amount
	FeePaid   fixedpoint.Amount
	Pool      model.Pool
	Event     model.Event
}

// Swap trades an exact input against the pool. The fee is taken from the
// input before pricing; the full input enters the reserve, so the constant
// product grows with every trade. The product is re-checked after pricing and
// a decrease halts the pool permanently.
func (e *Engine) Swap(ctx context.Context, p SwapParams) (SwapResult, error) {
	if p.AmountIn.IsZero() {
		return SwapResult{}, fmt.Errorf("swap input required: %w", ErrZeroAmount)
	}
	ps, err := e.poolStateByID(p.PoolID)
	if err != nil {
		return SwapResult{}, err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.halted {
		return SwapResult{}, fmt.Errorf("pool %s halted: %w", p.PoolID, ErrInvariantViolated)
	}
	pool := ps.pool

	tokenOut, reserveIn, reserveOut, err := orient(pool, p.TokenIn)
	if err != nil {
		return SwapResult{}, err
	}

	amountOut, feePaid, err := price(pool.FeeRateBps, reserveIn, reserveOut, p.AmountIn)
	if err != nil {
		return SwapResult{}, err
	}
	if amountOut.Cmp(p.MinAmountOut) < 0 {
		return SwapResult{}, fmt.Errorf("out %s < min %s: %w", amountOut, p.MinAmountOut, ErrSlippageExceeded)
	}

	newReserveIn, err := fixedpoint.Add(reserveIn, p.AmountIn)
	if err != nil {
		return SwapResult{}, err
	}
	newReserveOut, err := fixedpoint.Sub(reserveOut, amountOut)
	if err != nil {
		return SwapResult{}, err
	}

	if fixedpoint.ProductCmp(newReserveIn, newReserveOut, reserveIn, reserveOut) < 0 {
		ps.halted = true
		e.logger.Error("constant product invariant violated; pool halted",
			zap.String("pool", pool.ID),
			zap.String("token_in", p.TokenIn),
			zap.String("amount_in", p.AmountIn.String()),
			zap.String("amount_out", amountOut.String()))
		return SwapResult{}, fmt.Errorf("pool %s: %w", pool.ID, ErrInvariantViolated)
	}

	next := pool
	if p.TokenIn == pool.Token0 {
		next.Reserve0, next.Reserve1 = newReserveIn, newReserveOut
	} else {
		next.Reserve0, next.Reserve1 = newReserveOut, newReserveIn
	}

	event := e.newEvent(model.OpSwap, pool.ID, model.SwapExecutedData{
		TokenIn:   p.TokenIn,
		TokenOut:  tokenOut,
		AmountIn:  p.AmountIn,
		AmountOut: amountOut,
		FeePaid:   feePaid,
		Reserve0:  next.Reserve0,
		Reserve1:  next.Reserve1,
	}, p.TokenIn, p.AmountIn.String(), amountOut.String())

	if err := e.commit(ctx, Commit{Pool: next, Event: event}); err != nil {
		return SwapResult{}, err
	}

	ps.pool = next
	ps.stats.SwapCount++
	if p.TokenIn == pool.Token0 {
		ps.stats.VolumeIn0 = addCounter(ps.stats.VolumeIn0, p.AmountIn)
		ps.stats.Fees0 = addCounter(ps.stats.Fees0, feePaid)
	} else {
		ps.stats.VolumeIn1 = addCounter(ps.stats.VolumeIn1, p.AmountIn)
		ps.stats.Fees1 = addCounter(ps.stats.Fees1, feePaid)
	}

	e.logger.Info("swap executed",
		zap.String("pool", pool.ID),
		zap.String("token_in", p.TokenIn),
		zap.String("token_out", tokenOut),
		zap.String("amount_in", p.AmountIn.String()),
		zap.String("amount_out", amountOut.String()),
		zap.String("fee_paid", feePaid.String()))
	return SwapResult{
		TokenIn:   p.TokenIn,
		TokenOut:  tokenOut,
		AmountIn:  p.AmountIn,
		AmountOut: amountOut,
		FeePaid:   feePaid,
		Pool:      next,
		Event:     event,
	}, nil
}

// addCounter folds an amount into a cumulative counter, pinning the counter
// at its current value if it would ever overflow.
func addCounter(counter, delta fixedpoint.Amount) fixedpoint.Amount {
	sum, err := fixedpoint.Add(counter, delta)
	if err != nil {
		return counter
	}
	return sum
}

// orient maps a swap's input token onto the pool's reserve pair.
func orient(pool model.Pool, tokenIn string) (tokenOut string, reserveIn, reserveOut fixedpoint.Amount, err error) {
	switch tokenIn {
	case pool.Token0:
		return pool.Token1, pool.Reserve0, pool.Reserve1, nil
	case pool.Token1:
		return pool.Token0, pool.Reserve1, pool.Reserve0, nil
	default:
		return "", fixedpoint.Amount{}, fixedpoint.Amount{}, fmt.Errorf("token %q not in pool %s: %w", tokenIn, pool.ID, ErrUnknownToken)
	}
}

// price applies the basis-point fee to the input and prices the remainder
// against the reserves. Both divisions floor, so rounding always favors the
// pool. A zero output (dust input) and an output that would drain the
// reserve are rejected.
func price(feeRateBps uint16, reserveIn, reserveOut, amountIn fixedpoint.Amount) (amountOut, feePaid fixedpoint.Amount, err error) {
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return fixedpoint.Amount{}, fixedpoint.Amount{}, fmt.Errorf("pool has no liquidity: %w", ErrInsufficientLiquidity)
	}

	effectiveIn, err := fixedpoint.MulDiv(amountIn,
		fixedpoint.FromUint64(uint64(feeDenominatorBps-feeRateBps)),
		fixedpoint.FromUint64(feeDenominatorBps))
	if err != nil {
		return fixedpoint.Amount{}, fixedpoint.Amount{}, err
	}
	feePaid, err = fixedpoint.Sub(amountIn, effectiveIn)
	if err != nil {
		return fixedpoint.Amount{}, fixedpoint.Amount{}, err
	}

	denominator, err := fixedpoint.Add(reserveIn, effectiveIn)
	if err != nil {
		return fixedpoint.Amount{}, fixedpoint.Amount{}, err
	}
	amountOut, err = fixedpoint.MulDiv(effectiveIn, reserveOut, denominator)
	if err != nil {
		return fixedpoint.Amount{}, fixedpoint.Amount{}, err
	}
	if amountOut.IsZero() {
		return fixedpoint.Amount{}, fixedpoint.Amount{}, fmt.Errorf("output amount too small: %w", ErrInsufficientLiquidity)
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return fixedpoint.Amount{}, fixedpoint.Amount{}, fmt.Errorf("output %s would drain reserve %s: %w", amountOut, reserveOut, ErrInsufficientLiquidity)
	}
	return amountOut, feePaid, nil
}
