package model

import "github.com/abdulrahman305/qenex-defi-sub000/internal/fixedpoint"

// PoolMetrics stores per-pool totals accumulated over an event log. Reserve,
// share and k fields hold the values from the latest event seen; LastSeq is
// the highest event sequence folded in.
type PoolMetrics struct {
	PoolID         string            `json:"pool_id"`
	Token0         string            `json:"token0"`
	Token1         string            `json:"token1"`
	SwapCount      uint64            `json:"swap_count"`
	LiquidityAdds  uint64            `json:"liquidity_adds"`
	LiquidityBurns uint64            `json:"liquidity_burns"`
	VolumeIn0      fixedpoint.Amount `json:"volume_in0"`
	VolumeIn1      fixedpoint.Amount `json:"volume_in1"`
	Fees0          fixedpoint.Amount `json:"fees0"`
	Fees1          fixedpoint.Amount `json:"fees1"`
	Reserve0       fixedpoint.Amount `json:"reserve0"`
	Reserve1       fixedpoint.Amount `json:"reserve1"`
	TotalShares    fixedpoint.Amount `json:"total_shares"`
	LastK          string            `json:"last_k"`
	LastSeq        uint64            `json:"last_seq"`
}
