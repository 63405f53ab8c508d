package model

import "github.com/abdulrahman305/qenex-defi-sub000/internal/fixedpoint"

// Pool is the full state of one constant-product pool. Token0/Token1 are the
// canonically ordered pair; reserves and shares use the caller's fixed-point scale.
type Pool struct {
	ID          string            `json:"pool_id"`
	Token0      string            `json:"token0"`
	Token1      string            `json:"token1"`
	FeeRateBps  uint16            `json:"fee_rate_bps"`
	Reserve0    fixedpoint.Amount `json:"reserve0"`
	Reserve1    fixedpoint.Amount `json:"reserve1"`
	TotalShares fixedpoint.Amount `json:"total_shares"`
}

// Position is one provider's share balance in a pool. A position exists only
// while its share balance is nonzero.
type Position struct {
	PoolID   string            `json:"pool_id"`
	Provider string            `json:"provider"`
	Shares   fixedpoint.Amount `json:"shares"`
}
