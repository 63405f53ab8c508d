package engine

import "errors"

var (
	ErrPoolNotFound                 = errors.New("pool not found")
	ErrPoolAlreadyExists            = errors.New("pool already exists")
	ErrSameToken                    = errors.New("cannot create pool with same token")
	ErrInvalidToken                 = errors.New("invalid token id")
	ErrInvalidProvider              = errors.New("invalid provider id")
	ErrUnknownToken                 = errors.New("token not in pool")
	ErrInvalidFeeRate               = errors.New("invalid fee rate")
	ErrZeroAmount                   = errors.New("zero amount")
	ErrInsufficientShares           = errors.New("insufficient shares")
	ErrInsufficientLiquidity        = errors.New("insufficient liquidity")
	ErrInsufficientInitialLiquidity = errors.New("insufficient initial liquidity")
	ErrInsufficientLiquidityMinted  = errors.New("insufficient liquidity minted")
	ErrSlippageExceeded             = errors.New("slippage exceeded")
	ErrInvariantViolated            = errors.New("constant product invariant violated")

	// ErrCommitFailed marks storage failures, which abort the operation
	// without mutating memory. It is infrastructure, not a rejection of the
	// operation itself.
	ErrCommitFailed = errors.New("storage commit failed")
)
