package engine

import (
	"context"
	"errors"
	"math/big"
	"math/rand"
	"reflect"
	"testing"

	"github.com/abdulrahman305/qenex-defi-sub000/internal/fixedpoint"
)

func TestSwapExactOutput(t *testing.T) {
	e := New(Config{})
	pool := mustCreatePool(t, e, "ETH", "USDC", 30)
	mustAddLiquidity(t, e, pool.ID, "alice",
		fixedpoint.MustParse("10000000000000000000"),
		fixedpoint.MustParse("20000000000000000000000"))

	res, err := e.Swap(context.Background(), SwapParams{
		PoolID:   pool.ID,
		TokenIn:  "ETH",
		AmountIn: fixedpoint.MustParse("1000000000000000000"),
	})
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if res.TokenOut != "USDC" {
		t.Fatalf("token out mismatch: %s", res.TokenOut)
	}
	if got, want := res.AmountOut.String(), "1813221787760298263162"; got != want {
		t.Fatalf("amount out mismatch: %s != %s", got, want)
	}
	if got, want := res.FeePaid.String(), "3000000000000000"; got != want {
		t.Fatalf("fee mismatch: %s != %s", got, want)
	}
	if got, want := res.Pool.Reserve0.String(), "11000000000000000000"; got != want {
		t.Fatalf("reserve0 mismatch: %s != %s", got, want)
	}
	if got, want := res.Pool.Reserve1.String(), "18186778212239701736838"; got != want {
		t.Fatalf("reserve1 mismatch: %s != %s", got, want)
	}
	if res.Pool.TotalShares.IsZero() {
		t.Fatalf("swap must not touch shares: %s", res.Pool.TotalShares)
	}
	assertProductNonDecreasing(t,
		fixedpoint.MustParse("10000000000000000000"), fixedpoint.MustParse("20000000000000000000000"),
		res.Pool.Reserve0, res.Pool.Reserve1)
}

func TestSwapOppositeDirection(t *testing.T) {
	e := New(Config{})
	pool := mustCreatePool(t, e, "ETH", "USDC", 30)
	mustAddLiquidity(t, e, pool.ID, "alice", amt(1000), amt(2000000))

	res, err := e.Swap(context.Background(), SwapParams{
		PoolID:   pool.ID,
		TokenIn:  "USDC",
		AmountIn: amt(200000),
	})
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if res.TokenOut != "ETH" {
		t.Fatalf("token out mismatch: %s", res.TokenOut)
	}
	if !res.AmountOut.Equal(amt(90)) || !res.FeePaid.Equal(amt(600)) {
		t.Fatalf("out/fee mismatch: %s/%s", res.AmountOut, res.FeePaid)
	}
	if !res.Pool.Reserve0.Equal(amt(910)) || !res.Pool.Reserve1.Equal(amt(2200000)) {
		t.Fatalf("reserves mismatch: %s/%s", res.Pool.Reserve0, res.Pool.Reserve1)
	}
	assertProductNonDecreasing(t, amt(1000), amt(2000000), res.Pool.Reserve0, res.Pool.Reserve1)
}

func TestSwapValidation(t *testing.T) {
	e := New(Config{})
	ctx := context.Background()
	pool := mustCreatePool(t, e, "ETH", "USDC", 30)

	_, err := e.Swap(ctx, SwapParams{PoolID: pool.ID, TokenIn: "ETH", AmountIn: amt(1)})
	if !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected insufficient liquidity on empty pool, got %v", err)
	}

	mustAddLiquidity(t, e, pool.ID, "alice", amt(10), amt(20000))
	before, _ := e.Pool(pool.ID)

	_, err = e.Swap(ctx, SwapParams{PoolID: pool.ID, TokenIn: "ETH", AmountIn: amt(0)})
	if !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected zero amount error, got %v", err)
	}
	_, err = e.Swap(ctx, SwapParams{PoolID: "no-such-pool", TokenIn: "ETH", AmountIn: amt(1)})
	if !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected pool not found, got %v", err)
	}
	_, err = e.Swap(ctx, SwapParams{PoolID: pool.ID, TokenIn: "DOGE", AmountIn: amt(1)})
	if !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected unknown token, got %v", err)
	}

	// The whole input is below fee granularity: the effective input floors to zero.
	_, err = e.Swap(ctx, SwapParams{PoolID: pool.ID, TokenIn: "ETH", AmountIn: amt(1)})
	if !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected insufficient liquidity for dust input, got %v", err)
	}
	// The output floors to zero against a deep opposite reserve.
	_, err = e.Swap(ctx, SwapParams{PoolID: pool.ID, TokenIn: "USDC", AmountIn: amt(2000)})
	if !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected insufficient liquidity for dust output, got %v", err)
	}

	after, _ := e.Pool(pool.ID)
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("rejected swaps changed state: %+v != %+v", after, before)
	}
}

func TestSwapSlippageGuardLeavesStateUntouched(t *testing.T) {
	e := New(Config{})
	ctx := context.Background()
	pool := mustCreatePool(t, e, "ETH", "USDC", 30)
	mustAddLiquidity(t, e, pool.ID, "alice",
		fixedpoint.MustParse("10000000000000000000"),
		fixedpoint.MustParse("20000000000000000000000"))

	poolBefore, _ := e.Pool(pool.ID)
	posBefore, _ := e.Position(pool.ID, "alice")
	statsBefore, _ := e.Stats(pool.ID)

	_, err := e.Swap(ctx, SwapParams{
		PoolID:       pool.ID,
		TokenIn:      "ETH",
		AmountIn:     fixedpoint.MustParse("1000000000000000000"),
		MinAmountOut: fixedpoint.MustParse("1813221787760298263163"),
	})
	if !errors.Is(err, ErrSlippageExceeded) {
		t.Fatalf("expected slippage error, got %v", err)
	}

	poolAfter, _ := e.Pool(pool.ID)
	posAfter, _ := e.Position(pool.ID, "alice")
	statsAfter, _ := e.Stats(pool.ID)
	if !reflect.DeepEqual(poolBefore, poolAfter) {
		t.Fatalf("pool changed: %+v != %+v", poolAfter, poolBefore)
	}
	if !posBefore.Equal(posAfter) {
		t.Fatalf("position changed: %s != %s", posAfter, posBefore)
	}
	if !reflect.DeepEqual(statsBefore, statsAfter) {
		t.Fatalf("stats changed: %+v != %+v", statsAfter, statsBefore)
	}

	// The same swap with the bound set to the achievable output goes through.
	res, err := e.Swap(ctx, SwapParams{
		PoolID:       pool.ID,
		TokenIn:      "ETH",
		AmountIn:     fixedpoint.MustParse("1000000000000000000"),
		MinAmountOut: fixedpoint.MustParse("1813221787760298263162"),
	})
	if err != nil {
		t.Fatalf("swap at exact bound: %v", err)
	}
	if got, want := res.AmountOut.String(), "1813221787760298263162"; got != want {
		t.Fatalf("amount out mismatch: %s != %s", got, want)
	}
}

func TestSwapAccumulatesStats(t *testing.T) {
	e := New(Config{})
	ctx := context.Background()
	pool := mustCreatePool(t, e, "ETH", "USDC", 30)
	mustAddLiquidity(t, e, pool.ID, "alice", amt(1000), amt(2000000))

	if _, err := e.Swap(ctx, SwapParams{PoolID: pool.ID, TokenIn: "USDC", AmountIn: amt(200000)}); err != nil {
		t.Fatalf("swap: %v", err)
	}
	if _, err := e.Swap(ctx, SwapParams{PoolID: pool.ID, TokenIn: "ETH", AmountIn: amt(50)}); err != nil {
		t.Fatalf("swap: %v", err)
	}

	stats, err := e.Stats(pool.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.SwapCount != 2 {
		t.Fatalf("swap count mismatch: %d", stats.SwapCount)
	}
	if !stats.VolumeIn0.Equal(amt(50)) || !stats.VolumeIn1.Equal(amt(200000)) {
		t.Fatalf("volume mismatch: %s/%s", stats.VolumeIn0, stats.VolumeIn1)
	}
	if !stats.Fees0.Equal(amt(1)) || !stats.Fees1.Equal(amt(600)) {
		t.Fatalf("fee totals mismatch: %s/%s", stats.Fees0, stats.Fees1)
	}
}

func TestSwapConstantProductNeverDecreases(t *testing.T) {
	e := New(Config{})
	ctx := context.Background()
	pool := mustCreatePool(t, e, "ETH", "USDC", 30)
	mustAddLiquidity(t, e, pool.ID, "alice", amt(1000000000), amt(1000000000))

	rng := rand.New(rand.NewSource(42))
	tokens := []string{"ETH", "USDC"}
	prev, _ := e.Pool(pool.ID)
	for i := 0; i < 200; i++ {
		in := uint64(100 + rng.Intn(9901))
		res, err := e.Swap(ctx, SwapParams{
			PoolID:   pool.ID,
			TokenIn:  tokens[i%2],
			AmountIn: amt(in),
		})
		if err != nil {
			t.Fatalf("swap %d (in=%d): %v", i, in, err)
		}
		assertProductNonDecreasing(t, prev.Reserve0, prev.Reserve1, res.Pool.Reserve0, res.Pool.Reserve1)
		prev = res.Pool
	}

	stats, _ := e.Stats(pool.ID)
	if stats.SwapCount != 200 {
		t.Fatalf("swap count mismatch: %d", stats.SwapCount)
	}
	if !prev.TotalShares.Equal(amt(1000000000)) {
		t.Fatalf("swaps changed total shares: %s", prev.TotalShares)
	}
}

func TestHaltedPoolRejectsMutations(t *testing.T) {
	e := New(Config{})
	ctx := context.Background()
	pool := mustCreatePool(t, e, "ETH", "USDC", 30)
	mustAddLiquidity(t, e, pool.ID, "alice", amt(10), amt(20000))

	e.mu.RLock()
	ps := e.pools[pool.ID]
	e.mu.RUnlock()
	ps.mu.Lock()
	ps.halted = true
	ps.mu.Unlock()

	_, err := e.Swap(ctx, SwapParams{PoolID: pool.ID, TokenIn: "ETH", AmountIn: amt(2)})
	if !errors.Is(err, ErrInvariantViolated) {
		t.Fatalf("expected invariant violation from swap, got %v", err)
	}
	_, err = e.AddLiquidity(ctx, AddLiquidityParams{
		PoolID:         pool.ID,
		Provider:       "bob",
		Amount0Desired: amt(10),
		Amount1Desired: amt(20000),
	})
	if !errors.Is(err, ErrInvariantViolated) {
		t.Fatalf("expected invariant violation from add, got %v", err)
	}
	_, err = e.RemoveLiquidity(ctx, RemoveLiquidityParams{PoolID: pool.ID, Provider: "alice", Shares: amt(1)})
	if !errors.Is(err, ErrInvariantViolated) {
		t.Fatalf("expected invariant violation from remove, got %v", err)
	}

	// Reads and quotes keep serving the last good state.
	if _, err := e.Pool(pool.ID); err != nil {
		t.Fatalf("pool read: %v", err)
	}
	quote, err := e.QuoteSwap(pool.ID, "ETH", amt(2))
	if err != nil {
		t.Fatalf("quote on halted pool: %v", err)
	}
	if quote.AmountOut.IsZero() {
		t.Fatalf("quote returned no output")
	}
	if _, err := e.SpotPrice(pool.ID, "ETH"); err != nil {
		t.Fatalf("spot price on halted pool: %v", err)
	}
}

// assertProductNonDecreasing checks r0b*r1b >= r0a*r1a exactly.
func assertProductNonDecreasing(t *testing.T, r0a, r1a, r0b, r1b fixedpoint.Amount) {
	t.Helper()
	before := new(big.Int).Mul(bigOf(r0a), bigOf(r1a))
	after := new(big.Int).Mul(bigOf(r0b), bigOf(r1b))
	if after.Cmp(before) < 0 {
		t.Fatalf("constant product decreased: %s < %s", after, before)
	}
}
