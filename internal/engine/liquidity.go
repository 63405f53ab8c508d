package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/abdulrahman305/qenex-defi-sub000/internal/fixedpoint"
	"github.com/abdulrahman305/qenex-defi-sub000/internal/model"
)

// AddLiquidityParams describe a deposit. MinShares is the slippage bound on
// the minted shares.
type AddLiquidityParams struct {
	PoolID         string
	Provider       string
	Amount0Desired fixedpoint.Amount
	Amount1Desired fixedpoint.Amount
	MinShares      fixedpoint.Amount
}

// AddLiquidityResult reports the consumed amounts, the minted shares, the
// provider's position after the deposit and the post-operation pool snapshot.
type AddLiquidityResult struct {
	Amount0      fixedpoint.Amount
	Amount1      fixedpoint.Amount
	SharesMinted fixedpoint.Amount
	Position     fixedpoint.Amount
	Pool         model.Pool
	Event        model.Event
}

// RemoveLiquidityParams describe a withdrawal. MinAmount0/MinAmount1 are
// slippage bounds on the two outputs.
type RemoveLiquidityParams struct {
	PoolID     string
	Provider   string
	Shares     fixedpoint.Amount
	MinAmount0 fixedpoint.Amount
	MinAmount1 fixedpoint.Amount
}

// RemoveLiquidityResult reports the withdrawn amounts, the burned shares, the
// provider's remaining position and the post-operation pool snapshot.
type RemoveLiquidityResult struct {
	Amount0      fixedpoint.Amount
	Amount1      fixedpoint.Amount
	SharesBurned fixedpoint.Amount
	Position     fixedpoint.Amount
	Pool         model.Pool
	Event        model.Event
}

// AddLiquidity deposits into a pool. The first deposit consumes both desired
// amounts exactly and mints sqrt(amount0*amount1) shares; later deposits are
// clamped to the current reserve ratio and mint proportional shares. All
// validation happens before any state or storage change.
func (e *Engine) AddLiquidity(ctx context.Context, p AddLiquidityParams) (AddLiquidityResult, error) {
	if p.Provider == "" {
		return AddLiquidityResult{}, ErrInvalidProvider
	}
	ps, err := e.poolStateByID(p.PoolID)
	if err != nil {
		return AddLiquidityResult{}, err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.halted {
		return AddLiquidityResult{}, fmt.Errorf("pool %s halted: %w", p.PoolID, ErrInvariantViolated)
	}
	pool := ps.pool

	var used0, used1, minted fixedpoint.Amount
	if pool.TotalShares.IsZero() {
		used0, used1 = p.Amount0Desired, p.Amount1Desired
		minted = fixedpoint.SqrtProduct(used0, used1)
		if minted.IsZero() {
			return AddLiquidityResult{}, ErrInsufficientInitialLiquidity
		}
	} else {
		used0, used1, err = pairDeposit(pool, p.Amount0Desired, p.Amount1Desired)
		if err != nil {
			return AddLiquidityResult{}, err
		}
		minted0, err := fixedpoint.MulDiv(used0, pool.TotalShares, pool.Reserve0)
		if err != nil {
			return AddLiquidityResult{}, err
		}
		minted1, err := fixedpoint.MulDiv(used1, pool.TotalShares, pool.Reserve1)
		if err != nil {
			return AddLiquidityResult{}, err
		}
		minted = fixedpoint.Min(minted0, minted1)
		if minted.IsZero() {
			return AddLiquidityResult{}, ErrInsufficientLiquidityMinted
		}
	}

	if minted.Cmp(p.MinShares) < 0 {
		return AddLiquidityResult{}, fmt.Errorf("minted %s < min shares %s: %w", minted, p.MinShares, ErrSlippageExceeded)
	}

	next := pool
	if next.Reserve0, err = fixedpoint.Add(pool.Reserve0, used0); err != nil {
		return AddLiquidityResult{}, err
	}
	if next.Reserve1, err = fixedpoint.Add(pool.Reserve1, used1); err != nil {
		return AddLiquidityResult{}, err
	}
	if next.TotalShares, err = fixedpoint.Add(pool.TotalShares, minted); err != nil {
		return AddLiquidityResult{}, err
	}
	position, err := fixedpoint.Add(ps.positions[p.Provider], minted)
	if err != nil {
		return AddLiquidityResult{}, err
	}

	event := e.newEvent(model.OpAddLiquidity, pool.ID, model.LiquidityAddedData{
		Provider:     p.Provider,
		Amount0:      used0,
		Amount1:      used1,
		SharesMinted: minted,
		Reserve0:     next.Reserve0,
		Reserve1:     next.Reserve1,
		TotalShares:  next.TotalShares,
	}, p.Provider, used0.String(), used1.String(), minted.String())

	commit := Commit{
		Pool:     next,
		Position: &model.Position{PoolID: pool.ID, Provider: p.Provider, Shares: position},
		Event:    event,
	}
	if err := e.commit(ctx, commit); err != nil {
		return AddLiquidityResult{}, err
	}

	ps.pool = next
	ps.positions[p.Provider] = position

	e.logger.Info("liquidity added",
		zap.String("pool", pool.ID),
		zap.String("provider", p.Provider),
		zap.String("amount0", used0.String()),
		zap.String("amount1", used1.String()),
		zap.String("shares_minted", minted.String()))
	return AddLiquidityResult{
		Amount0:      used0,
		Amount1:      used1,
		SharesMinted: minted,
		Position:     position,
		Pool:         next,
		Event:        event,
	}, nil
}

// pairDeposit clamps a deposit to the current reserve ratio: the side that
// would overpay is recomputed from the other side's desired amount.
func pairDeposit(pool model.Pool, amount0Desired, amount1Desired fixedpoint.Amount) (fixedpoint.Amount, fixedpoint.Amount, error) {
	amount1Optimal, err := fixedpoint.MulDiv(amount0Desired, pool.Reserve1, pool.Reserve0)
	if err != nil {
		return fixedpoint.Amount{}, fixedpoint.Amount{}, err
	}
	if amount1Optimal.Cmp(amount1Desired) <= 0 {
		return amount0Desired, amount1Optimal, nil
	}
	amount0Optimal, err := fixedpoint.MulDiv(amount1Desired, pool.Reserve0, pool.Reserve1)
	if err != nil {
		return fixedpoint.Amount{}, fixedpoint.Amount{}, err
	}
	return amount0Optimal, amount1Desired, nil
}

// RemoveLiquidity burns shares for a proportional slice of both reserves.
// Burning the entire supply drains the pool to exactly zero on both sides.
func (e *Engine) RemoveLiquidity(ctx context.Context, p RemoveLiquidityParams) (RemoveLiquidityResult, error) {
	if p.Provider == "" {
		return RemoveLiquidityResult{}, ErrInvalidProvider
	}
	if p.Shares.IsZero() {
		return RemoveLiquidityResult{}, fmt.Errorf("shares to burn required: %w", ErrZeroAmount)
	}
	ps, err := e.poolStateByID(p.PoolID)
	if err != nil {
		return RemoveLiquidityResult{}, err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.halted {
		return RemoveLiquidityResult{}, fmt.Errorf("pool %s halted: %w", p.PoolID, ErrInvariantViolated)
	}
	pool := ps.pool

	held := ps.positions[p.Provider]
	if p.Shares.Cmp(held) > 0 {
		return RemoveLiquidityResult{}, fmt.Errorf("burn %s > held %s: %w", p.Shares, held, ErrInsufficientShares)
	}

	amount0, err := fixedpoint.MulDiv(pool.Reserve0, p.Shares, pool.TotalShares)
	if err != nil {
		return RemoveLiquidityResult{}, err
	}
	amount1, err := fixedpoint.MulDiv(pool.Reserve1, p.Shares, pool.TotalShares)
	if err != nil {
		return RemoveLiquidityResult{}, err
	}
	if amount0.Cmp(p.MinAmount0) < 0 || amount1.Cmp(p.MinAmount1) < 0 {
		return RemoveLiquidityResult{}, fmt.Errorf("outputs %s/%s below minimums: %w", amount0, amount1, ErrSlippageExceeded)
	}

	next := pool
	if next.Reserve0, err = fixedpoint.Sub(pool.Reserve0, amount0); err != nil {
		return RemoveLiquidityResult{}, err
	}
	if next.Reserve1, err = fixedpoint.Sub(pool.Reserve1, amount1); err != nil {
		return RemoveLiquidityResult{}, err
	}
	if next.TotalShares, err = fixedpoint.Sub(pool.TotalShares, p.Shares); err != nil {
		return RemoveLiquidityResult{}, err
	}
	position, err := fixedpoint.Sub(held, p.Shares)
	if err != nil {
		return RemoveLiquidityResult{}, err
	}

	event := e.newEvent(model.OpRemoveLiquidity, pool.ID, model.LiquidityRemovedData{
		Provider:     p.Provider,
		SharesBurned: p.Shares,
		Amount0:      amount0,
		Amount1:      amount1,
		Reserve0:     next.Reserve0,
		Reserve1:     next.Reserve1,
		TotalShares:  next.TotalShares,
	}, p.Provider, p.Shares.String(), amount0.String(), amount1.String())

	commit := Commit{
		Pool:           next,
		Position:       &model.Position{PoolID: pool.ID, Provider: p.Provider, Shares: position},
		RemovePosition: position.IsZero(),
		Event:          event,
	}
	if err := e.commit(ctx, commit); err != nil {
		return RemoveLiquidityResult{}, err
	}

	ps.pool = next
	if position.IsZero() {
		delete(ps.positions, p.Provider)
	} else {
		ps.positions[p.Provider] = position
	}

	e.logger.Info("liquidity removed",
		zap.String("pool", pool.ID),
		zap.String("provider", p.Provider),
		zap.String("shares_burned", p.Shares.String()),
		zap.String("amount0", amount0.String()),
		zap.String("amount1", amount1.String()))
	return RemoveLiquidityResult{
		Amount0:      amount0,
		Amount1:      amount1,
		SharesBurned: p.Shares,
		Position:     position,
		Pool:         next,
		Event:        event,
	}, nil
}
