package model

import "github.com/abdulrahman305/qenex-defi-sub000/internal/fixedpoint"

// Operation kinds accepted by the replay driver.
const (
	OpCreatePool      = "create_pool"
	OpAddLiquidity    = "add_liquidity"
	OpRemoveLiquidity = "remove_liquidity"
	OpSwap            = "swap"
	OpQuoteSwap       = "quote_swap"
	OpSpotPrice       = "spot_price"
)

// Operation is one line of the operation log. Pools are addressed by pool_id
// or by token pair; fields beyond the operation's own parameters stay empty.
type Operation struct {
	Op         string            `json:"op"`
	PoolID     string            `json:"pool_id,omitempty"`
	TokenA     string            `json:"token_a,omitempty"`
	TokenB     string            `json:"token_b,omitempty"`
	FeeRateBps uint16            `json:"fee_rate_bps,omitempty"`
	Provider   string            `json:"provider,omitempty"`
	Amount0    fixedpoint.Amount `json:"amount0_desired"`
	Amount1    fixedpoint.Amount `json:"amount1_desired"`
	MinShares  fixedpoint.Amount `json:"min_shares"`
	Shares     fixedpoint.Amount `json:"shares"`
	MinAmount0 fixedpoint.Amount `json:"min_amount0"`
	MinAmount1 fixedpoint.Amount `json:"min_amount1"`
	TokenIn    string            `json:"token_in,omitempty"`
	AmountIn   fixedpoint.Amount `json:"amount_in"`
	MinOut     fixedpoint.Amount `json:"min_amount_out"`
	Token      string            `json:"token,omitempty"`
}

// OpError records a rejected operation line for the errors output.
type OpError struct {
	Line   uint64 `json:"line"`
	Op     string `json:"op"`
	PoolID string `json:"pool_id,omitempty"`
	Error  string `json:"error"`
}
