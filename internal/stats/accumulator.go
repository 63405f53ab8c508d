package stats

import (
	"encoding/json"
	"fmt"

	"github.com/abdulrahman305/qenex-defi-sub000/internal/fixedpoint"
	"github.com/abdulrahman305/qenex-defi-sub000/internal/model"
)

// Accumulator folds the event stream of one pool into cumulative metrics.
type Accumulator struct {
	m model.PoolMetrics
}

func NewAccumulator(poolID string) *Accumulator {
	return &Accumulator{m: model.PoolMetrics{PoolID: poolID}}
}

// SeedAccumulator resumes from a previously flushed metrics row. Events at or
// below the row's LastSeq are already folded in and will be ignored.
func SeedAccumulator(m model.PoolMetrics) *Accumulator {
	return &Accumulator{m: m}
}

// Fold applies one event record. It reports false for records that carry no
// metric content (quotes, already-folded sequences, unknown operations).
func (a *Accumulator) Fold(rec model.EventRecord) (bool, error) {
	if rec.Seq == 0 || rec.Seq <= a.m.LastSeq {
		return false, nil
	}

	switch rec.Op {
	case model.OpCreatePool:
		var data model.PoolCreatedData
		if err := json.Unmarshal(rec.Data, &data); err != nil {
			return false, fmt.Errorf("decode pool_created: %w", err)
		}
		a.m.Token0 = data.Token0
		a.m.Token1 = data.Token1

	case model.OpAddLiquidity:
		var data model.LiquidityAddedData
		if err := json.Unmarshal(rec.Data, &data); err != nil {
			return false, fmt.Errorf("decode liquidity_added: %w", err)
		}
		a.m.LiquidityAdds++
		a.m.Reserve0 = data.Reserve0
		a.m.Reserve1 = data.Reserve1
		a.m.TotalShares = data.TotalShares

	case model.OpRemoveLiquidity:
		var data model.LiquidityRemovedData
		if err := json.Unmarshal(rec.Data, &data); err != nil {
			return false, fmt.Errorf("decode liquidity_removed: %w", err)
		}
		a.m.LiquidityBurns++
		a.m.Reserve0 = data.Reserve0
		a.m.Reserve1 = data.Reserve1
		a.m.TotalShares = data.TotalShares

	case model.OpSwap:
		var data model.SwapExecutedData
		if err := json.Unmarshal(rec.Data, &data); err != nil {
			return false, fmt.Errorf("decode swap_executed: %w", err)
		}
		switch data.TokenIn {
		case a.m.Token0:
			a.m.VolumeIn0 = addCounter(a.m.VolumeIn0, data.AmountIn)
			a.m.Fees0 = addCounter(a.m.Fees0, data.FeePaid)
		case a.m.Token1:
			a.m.VolumeIn1 = addCounter(a.m.VolumeIn1, data.AmountIn)
			a.m.Fees1 = addCounter(a.m.Fees1, data.FeePaid)
		default:
			return false, fmt.Errorf("swap token %q not in pool pair %s/%s", data.TokenIn, a.m.Token0, a.m.Token1)
		}
		a.m.SwapCount++
		a.m.Reserve0 = data.Reserve0
		a.m.Reserve1 = data.Reserve1

	default:
		return false, nil
	}

	a.m.LastSeq = rec.Seq
	a.m.LastK = fixedpoint.ProductDec(a.m.Reserve0, a.m.Reserve1)
	return true, nil
}

// Metrics returns the accumulated row. A pool whose create event was never
// seen (and that was not seeded) has no token identities and is not flushable.
func (a *Accumulator) Metrics() (model.PoolMetrics, bool) {
	return a.m, a.m.Token0 != "" && a.m.Token1 != ""
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
