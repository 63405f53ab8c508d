package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/abdulrahman305/qenex-defi-sub000/internal/engine"
	"github.com/abdulrahman305/qenex-defi-sub000/internal/model"
	"github.com/abdulrahman305/qenex-defi-sub000/internal/storage"
)

// RunConfig configures one replay run.
type RunConfig struct {
	// OpsPath is the operation log to consume, one JSON object per line.
	OpsPath string
	// CheckpointPath, when set, enables per-record checkpointing so an
	// interrupted run resumes instead of re-applying.
	CheckpointPath string
}

// Runner feeds an operation log through the engine, journals one event per
// accepted operation and one error record per rejected one.
type Runner struct {
	cfg        RunConfig
	engine     *engine.Engine
	events     storage.Journal
	errs       storage.ErrorSink
	logger     *zap.Logger
	checkpoint *CheckpointStore
}

// NewRunner wires a runner. The error sink may be nil, in which case rejected
// operations are only logged.
func NewRunner(cfg RunConfig, eng *engine.Engine, events storage.Journal, errs storage.ErrorSink, logger *zap.Logger) (*Runner, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if events == nil {
		return nil, fmt.Errorf("event journal is required")
	}
	if cfg.OpsPath == "" {
		return nil, fmt.Errorf("ops path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		engine:     eng,
		events:     events,
		errs:       errs,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointPath != ""),
	}, nil
}

// Run consumes the operation log until EOF or context cancellation. The
// checkpoint is advanced after every consumed record, so a restarted run
// never applies the same state change twice; re-emitting the event or error
// record of the one record in flight during a crash is possible and harmless.
func (r *Runner) Run(ctx context.Context) error {
	lastSeq := r.engine.LastSeq()

	var resume uint64
	cp, found, err := r.checkpoint.Load()
	if err != nil {
		return err
	}
	if found {
		resume = cp.ConsumedOps
		switch {
		case lastSeq == cp.LastSeq:
		case lastSeq == cp.LastSeq+1:
			// The record after the checkpoint committed before the
			// previous run stopped; consuming it again would apply
			// it twice.
			resume++
		default:
			return fmt.Errorf("checkpoint out of step with state: checkpoint seq %d, state seq %d", cp.LastSeq, lastSeq)
		}
		r.logger.Info("resuming from checkpoint",
			zap.Uint64("consumed_ops", resume),
			zap.Uint64("last_seq", lastSeq))
	}

	file, err := os.Open(r.cfg.OpsPath)
	if err != nil {
		return fmt.Errorf("open ops file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var line, total, skipped, applied, quoted, failed uint64
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		total++
		if total <= resume {
			skipped++
			continue
		}

		var op model.Operation
		if err := json.Unmarshal(raw, &op); err != nil {
			failed++
			r.logger.Warn("operation unreadable", zap.Uint64("line", line), zap.Error(err))
			if err := r.recordError(model.OpError{Line: line, Error: fmt.Sprintf("parse operation: %v", err)}); err != nil {
				return err
			}
			if err := r.checkpoint.Save(total, lastSeq); err != nil {
				return err
			}
			continue
		}

		event, isQuote, opErr := r.apply(ctx, op)
		if opErr != nil {
			// A storage failure is not a rejection of the operation: the
			// run stops so the restart can disambiguate via the checkpoint
			// whether the in-flight commit landed.
			if errors.Is(opErr, engine.ErrCommitFailed) {
				return fmt.Errorf("line %d: %w", line, opErr)
			}
			failed++
			r.logger.Warn("operation rejected",
				zap.Uint64("line", line),
				zap.String("op", op.Op),
				zap.Error(opErr))
			if err := r.recordError(model.OpError{Line: line, Op: op.Op, PoolID: op.PoolID, Error: opErr.Error()}); err != nil {
				return err
			}
			if err := r.checkpoint.Save(total, lastSeq); err != nil {
				return err
			}
			continue
		}

		if isQuote {
			quoted++
		} else {
			applied++
			lastSeq = event.Seq
		}
		if err := r.events.PutEventBatch([]model.Event{event}); err != nil {
			return fmt.Errorf("journal event: %w", err)
		}
		if err := r.checkpoint.Save(total, lastSeq); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan ops file: %w", err)
	}

	r.logger.Info("replay complete",
		zap.Uint64("total", total),
		zap.Uint64("skipped", skipped),
		zap.Uint64("applied", applied),
		zap.Uint64("quoted", quoted),
		zap.Uint64("failed", failed))
	return nil
}

func (r *Runner) recordError(opErr model.OpError) error {
	if r.errs == nil {
		return nil
	}
	if err := r.errs.PutErrorBatch([]model.OpError{opErr}); err != nil {
		return fmt.Errorf("journal error record: %w", err)
	}
	return nil
}
