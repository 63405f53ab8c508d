package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/abdulrahman305/qenex-defi-sub000/internal/fixedpoint"
	"github.com/abdulrahman305/qenex-defi-sub000/internal/model"
)

const (
	// DefaultFeeRateBps is the conventional pool fee when callers pass no explicit rate.
	DefaultFeeRateBps = 30
	// DefaultFeeRateCeilingBps caps per-pool fee rates (100%).
	DefaultFeeRateCeilingBps = 10000

	feeDenominatorBps = 10000
)

// Commit carries everything persisted for one applied operation: the
// post-operation pool row, the affected position (nil when none changed,
// RemovePosition when it reached zero shares) and the emitted event.
type Commit struct {
	Pool           model.Pool
	Position       *model.Position
	RemovePosition bool
	Event          model.Event
}

// CommitSink persists one Commit atomically. An error aborts the operation
// before any in-memory state changes.
type CommitSink interface {
	Commit(ctx context.Context, c Commit) error
}

// Config configures an Engine.
type Config struct {
	// FeeRateCeilingBps bounds per-pool fee rates; zero means DefaultFeeRateCeilingBps.
	FeeRateCeilingBps uint16
	// Sink, when set, is invoked before any mutation becomes visible.
	Sink CommitSink
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Engine holds every pool and position and serializes mutations per pool.
type Engine struct {
	mu     sync.RWMutex
	pools  map[string]*poolState
	byPair map[pairKey]string

	seq     atomic.Uint64
	ceiling uint16
	sink    CommitSink
	logger  *zap.Logger
}

type pairKey struct {
	token0 string
	token1 string
}

// poolState is one pool plus everything covered by its exclusive lock.
type poolState struct {
	mu        sync.Mutex
	halted    bool
	pool      model.Pool
	positions map[string]fixedpoint.Amount
	stats     PoolStats
}

// PoolStats are cumulative per-pool counters updated under the pool lock.
type PoolStats struct {
	SwapCount uint64
	VolumeIn0 fixedpoint.Amount
	VolumeIn1 fixedpoint.Amount
	Fees0     fixedpoint.Amount
	Fees1     fixedpoint.Amount
}

// New creates an empty engine.
func New(cfg Config) *Engine {
	if cfg.FeeRateCeilingBps == 0 {
		cfg.FeeRateCeilingBps = DefaultFeeRateCeilingBps
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Engine{
		pools:   make(map[string]*poolState),
		byPair:  make(map[pairKey]string),
		ceiling: cfg.FeeRateCeilingBps,
		sink:    cfg.Sink,
		logger:  cfg.Logger,
	}
}

// Restore seeds the engine from persisted pools and positions. lastSeq is the
// highest event sequence already persisted; new events continue after it.
// Restore must run before the engine serves operations.
func (e *Engine) Restore(pools []model.Pool, positions []model.Position, lastSeq uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, pool := range pools {
		if pool.ID == "" || pool.Token0 == "" || pool.Token1 == "" {
			return fmt.Errorf("restore pool %q: %w", pool.ID, ErrInvalidToken)
		}
		if pool.Token0 >= pool.Token1 {
			return fmt.Errorf("restore pool %q: tokens not in canonical order", pool.ID)
		}
		if pool.FeeRateBps == 0 || pool.FeeRateBps > e.ceiling {
			return fmt.Errorf("restore pool %q: %w: %d bps", pool.ID, ErrInvalidFeeRate, pool.FeeRateBps)
		}
		key := pairKey{pool.Token0, pool.Token1}
		if _, exists := e.byPair[key]; exists {
			return fmt.Errorf("restore pool %q: %w", pool.ID, ErrPoolAlreadyExists)
		}
		if _, exists := e.pools[pool.ID]; exists {
			return fmt.Errorf("restore pool %q: %w", pool.ID, ErrPoolAlreadyExists)
		}
		e.pools[pool.ID] = &poolState{pool: pool, positions: make(map[string]fixedpoint.Amount)}
		e.byPair[key] = pool.ID
	}

	for _, pos := range positions {
		ps, ok := e.pools[pos.PoolID]
		if !ok {
			return fmt.Errorf("restore position %s/%s: %w", pos.PoolID, pos.Provider, ErrPoolNotFound)
		}
		if pos.Provider == "" {
			return fmt.Errorf("restore position in pool %s: %w", pos.PoolID, ErrInvalidProvider)
		}
		if !pos.Shares.IsZero() {
			ps.positions[pos.Provider] = pos.Shares
		}
	}

	e.seq.Store(lastSeq)
	e.logger.Info("engine state restored",
		zap.Int("pools", len(pools)),
		zap.Int("positions", len(positions)),
		zap.Uint64("last_seq", lastSeq))
	return nil
}

// LastSeq returns the latest assigned event sequence number.
func (e *Engine) LastSeq() uint64 {
	return e.seq.Load()
}

// poolStateByID fetches the live pool state without touching its lock.
func (e *Engine) poolStateByID(id string) (*poolState, error) {
	e.mu.RLock()
	ps, ok := e.pools[id]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("pool %q: %w", id, ErrPoolNotFound)
	}
	return ps, nil
}

// commit persists one operation through the sink, if any.
func (e *Engine) commit(ctx context.Context, c Commit) error {
	if e.sink == nil {
		return nil
	}
	if err := e.sink.Commit(ctx, c); err != nil {
		return fmt.Errorf("%w: %s seq=%d: %w", ErrCommitFailed, c.Event.Op, c.Event.Seq, err)
	}
	return nil
}

// newEvent stamps sequence, hash and timestamp on an outgoing event.
func (e *Engine) newEvent(op, poolID string, data interface{}, fields ...string) model.Event {
	seq := e.seq.Add(1)
	return model.Event{
		Seq:       seq,
		Op:        op,
		PoolID:    poolID,
		OpHash:    opHash(seq, op, poolID, fields...),
		AppliedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Data:      data,
	}
}

// Pool returns a snapshot of one pool.
func (e *Engine) Pool(id string) (model.Pool, error) {
	ps, err := e.poolStateByID(id)
	if err != nil {
		return model.Pool{}, err
	}
	ps.mu.Lock()
	pool := ps.pool
	ps.mu.Unlock()
	return pool, nil
}

// PoolByPair returns a snapshot of the pool holding the unordered token pair.
func (e *Engine) PoolByPair(tokenA, tokenB string) (model.Pool, error) {
	token0, token1 := CanonicalPair(tokenA, tokenB)
	e.mu.RLock()
	id, ok := e.byPair[pairKey{token0, token1}]
	e.mu.RUnlock()
	if !ok {
		return model.Pool{}, fmt.Errorf("pair %s/%s: %w", token0, token1, ErrPoolNotFound)
	}
	return e.Pool(id)
}

// Pools returns snapshots of every pool.
func (e *Engine) Pools() []model.Pool {
	e.mu.RLock()
	states := make([]*poolState, 0, len(e.pools))
	for _, ps := range e.pools {
		states = append(states, ps)
	}
	e.mu.RUnlock()

	pools := make([]model.Pool, 0, len(states))
	for _, ps := range states {
		ps.mu.Lock()
		pools = append(pools, ps.pool)
		ps.mu.Unlock()
	}
	return pools
}

// Position returns the provider's current shares in a pool; zero when no
// position exists.
func (e *Engine) Position(poolID, provider string) (fixedpoint.Amount, error) {
	ps, err := e.poolStateByID(poolID)
	if err != nil {
		return fixedpoint.Amount{}, err
	}
	ps.mu.Lock()
	shares := ps.positions[provider]
	ps.mu.Unlock()
	return shares, nil
}

// Stats returns the cumulative counters of one pool.
func (e *Engine) Stats(poolID string) (PoolStats, error) {
	ps, err := e.poolStateByID(poolID)
	if err != nil {
		return PoolStats{}, err
	}
	ps.mu.Lock()
	stats := ps.stats
	ps.mu.Unlock()
	return stats, nil
}
