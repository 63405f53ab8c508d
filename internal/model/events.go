package model

import "github.com/abdulrahman305/qenex-defi-sub000/internal/fixedpoint"

// PoolCreatedData is the create_pool event payload.
type PoolCreatedData struct {
	Token0     string `json:"token0"`
	Token1     string `json:"token1"`
	FeeRateBps uint16 `json:"fee_rate_bps"`
}

// LiquidityAddedData is the add_liquidity event payload. Amounts are the
// consumed deposits; reserves and shares are post-operation values.
type LiquidityAddedData struct {
	Provider     string            `json:"provider"`
	Amount0      fixedpoint.Amount `json:"amount0"`
	Amount1      fixedpoint.Amount `json:"amount1"`
	SharesMinted fixedpoint.Amount `json:"shares_minted"`
	Reserve0     fixedpoint.Amount `json:"reserve0"`
	Reserve1     fixedpoint.Amount `json:"reserve1"`
	TotalShares  fixedpoint.Amount `json:"total_shares"`
}

// LiquidityRemovedData is the remove_liquidity event payload.
type LiquidityRemovedData struct {
	Provider     string            `json:"provider"`
	SharesBurned fixedpoint.Amount `json:"shares_burned"`
	Amount0      fixedpoint.Amount `json:"amount0"`
	Amount1      fixedpoint.Amount `json:"amount1"`
	Reserve0     fixedpoint.Amount `json:"reserve0"`
	Reserve1     fixedpoint.Amount `json:"reserve1"`
	TotalShares  fixedpoint.Amount `json:"total_shares"`
}

// SwapExecutedData is the swap event payload. FeePaid is the input slice
// retained by the pool; reserves are post-operation values.
type SwapExecutedData struct {
	TokenIn   string            `json:"token_in"`
	TokenOut  string            `json:"token_out"`
	AmountIn  fixedpoint.Amount `json:"amount_in"`
	AmountOut fixedpoint.Amount `json:"amount_out"`
	FeePaid   fixedpoint.Amount `json:"fee_paid"`
	Reserve0  fixedpoint.Amount `json:"reserve0"`
	Reserve1  fixedpoint.Amount `json:"reserve1"`
}

// SwapQuotedData is the quote_swap event payload. Prices and impact are
// 1e18-scaled ratios; nothing is mutated by a quote.
type SwapQuotedData struct {
	TokenIn     string            `json:"token_in"`
	TokenOut    string            `json:"token_out"`
	AmountIn    fixedpoint.Amount `json:"amount_in"`
	AmountOut   fixedpoint.Amount `json:"amount_out"`
	FeePaid     fixedpoint.Amount `json:"fee_paid"`
	PriceBefore fixedpoint.Amount `json:"price_before"`
	PriceAfter  fixedpoint.Amount `json:"price_after"`
	PriceImpact fixedpoint.Amount `json:"price_impact"`
}

// SpotPriceData is the spot_price event payload. Price is the pool's other
// reserve over the named token's reserve, 1e18-scaled.
type SpotPriceData struct {
	Token string            `json:"token"`
	Price fixedpoint.Amount `json:"price"`
}
