package engine

import (
	"fmt"

	"github.com/abdulrahman305/qenex-defi-sub000/internal/fixedpoint"
)

// SwapQuote is the projected outcome of a swap. Prices are 1e18-scaled ratios
// of the output token per input token; PriceImpact is the 1e18-scaled
// relative change between them.
type SwapQuote struct {
	TokenIn     string
	TokenOut    string
	AmountIn    fixedpoint.Amount
	AmountOut   fixedpoint.Amount
	FeePaid     fixedpoint.Amount
	PriceBefore fixedpoint.Amount
	PriceAfter  fixedpoint.Amount
	PriceImpact fixedpoint.Amount
}

// QuoteSwap prices a swap against a snapshot of the pool without mutating
// anything. A quote fails exactly when the swap itself would fail, so callers
// can probe before committing funds.
func (e *Engine) QuoteSwap(poolID, tokenIn string, amountIn fixedpoint.Amount) (SwapQuote, error) {
	if amountIn.IsZero() {
		return SwapQuote{}, fmt.Errorf("quote input required: %w", ErrZeroAmount)
	}
	pool, err := e.Pool(poolID)
	if err != nil {
		return SwapQuote{}, err
	}

	tokenOut, reserveIn, reserveOut, err := orient(pool, tokenIn)
	if err != nil {
		return SwapQuote{}, err
	}
	amountOut, feePaid, err := price(pool.FeeRateBps, reserveIn, reserveOut, amountIn)
	if err != nil {
		return SwapQuote{}, err
	}

	priceBefore, err := fixedpoint.MulDiv(reserveOut, fixedpoint.PriceScale, reserveIn)
	if err != nil {
		return SwapQuote{}, err
	}
	reserveOutAfter, err := fixedpoint.Sub(reserveOut, amountOut)
	if err != nil {
		return SwapQuote{}, err
	}
	reserveInAfter, err := fixedpoint.Add(reserveIn, amountIn)
	if err != nil {
		return SwapQuote{}, err
	}
	priceAfter, err := fixedpoint.MulDiv(reserveOutAfter, fixedpoint.PriceScale, reserveInAfter)
	if err != nil {
		return SwapQuote{}, err
	}

	// priceAfter never exceeds priceBefore: the input grows the denominator
	// and the output shrinks the numerator.
	diff, err := fixedpoint.Sub(priceBefore, priceAfter)
	if err != nil {
		return SwapQuote{}, err
	}
	impact, err := fixedpoint.MulDiv(diff, fixedpoint.PriceScale, priceBefore)
	if err != nil {
		return SwapQuote{}, err
	}

	return SwapQuote{
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		AmountIn:    amountIn,
		AmountOut:   amountOut,
		FeePaid:     feePaid,
		PriceBefore: priceBefore,
		PriceAfter:  priceAfter,
		PriceImpact: impact,
	}, nil
}

// SpotPrice returns the pool's instantaneous price of token: the other
// reserve over token's reserve, 1e18-scaled.
func (e *Engine) SpotPrice(poolID, token string) (fixedpoint.Amount, error) {
	pool, err := e.Pool(poolID)
	if err != nil {
		return fixedpoint.Amount{}, err
	}

	var reserveToken, reserveOther fixedpoint.Amount
	switch token {
	case pool.Token0:
		reserveToken, reserveOther = pool.Reserve0, pool.Reserve1
	case pool.Token1:
		reserveToken, reserveOther = pool.Reserve1, pool.Reserve0
	default:
		return fixedpoint.Amount{}, fmt.Errorf("token %q not in pool %s: %w", token, pool.ID, ErrUnknownToken)
	}
	if reserveToken.IsZero() || reserveOther.IsZero() {
		return fixedpoint.Amount{}, fmt.Errorf("pool has no liquidity: %w", ErrInsufficientLiquidity)
	}
	return fixedpoint.MulDiv(reserveOther, fixedpoint.PriceScale, reserveToken)
}
