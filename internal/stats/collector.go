package stats

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/abdulrahman305/qenex-defi-sub000/internal/model"
)

// MetricsSink receives accumulated pool metrics. LoadPoolMetrics seeds a
// resumed run with previously flushed totals; sinks without storage return nil.
type MetricsSink interface {
	LoadPoolMetrics(ctx context.Context) ([]model.PoolMetrics, error)
	UpsertPoolMetrics(ctx context.Context, metrics []model.PoolMetrics) error
}

// Config controls metric collection behavior.
type Config struct {
	// BatchSize bounds how many metric rows go into one sink write.
	BatchSize int
	// StateStore, when set, persists the last folded sequence so a later run
	// resumes instead of re-folding the whole log.
	StateStore StateStore
}

// Collector folds an event log into per-pool cumulative metrics.
type Collector struct {
	cfg          Config
	sink         MetricsSink
	logger       *zap.Logger
	accumulators map[string]*Accumulator
}

func NewCollector(cfg Config, sink MetricsSink, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Collector{
		cfg:          cfg,
		sink:         sink,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
	}
}

// Run folds an events JSONL file and flushes the resulting metrics. Each
// accumulator ignores sequences at or below its persisted LastSeq, so a rerun
// over an already-processed prefix never double counts.
func (c *Collector) Run(ctx context.Context, inputPath string) error {
	if c.sink == nil {
		return fmt.Errorf("sink is nil")
	}
	if c.cfg.BatchSize <= 0 {
		c.cfg.BatchSize = 1000
	}

	resume, err := c.loadResume(ctx)
	if err != nil {
		return err
	}
	if resume > 0 {
		if err := c.seed(ctx); err != nil {
			return err
		}
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var total, folded, skipped, failed int
	maxSeq := resume

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var rec model.EventRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			failed++
			c.logger.Warn("decode event", zap.Error(err))
			continue
		}

		if rec.Seq != 0 && rec.Seq <= resume {
			skipped++
			continue
		}

		acc := c.accumulators[rec.PoolID]
		if acc == nil {
			acc = NewAccumulator(rec.PoolID)
			c.accumulators[rec.PoolID] = acc
		}

		applied, err := acc.Fold(rec)
		if err != nil {
			failed++
			c.logger.Warn("fold event", zap.Error(err), zap.String("pool", rec.PoolID), zap.String("op", rec.Op))
			continue
		}
		if !applied {
			skipped++
			continue
		}

		folded++
		if rec.Seq > maxSeq {
			maxSeq = rec.Seq
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	if err := c.flush(ctx); err != nil {
		return err
	}
	if c.cfg.StateStore != nil && maxSeq > resume {
		if err := c.cfg.StateStore.Save(ctx, maxSeq); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
	}

	c.logger.Info("stats complete",
		zap.Int("total", total),
		zap.Int("folded", folded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
		zap.Uint64("last_seq", maxSeq),
	)

	return nil
}

func (c *Collector) loadResume(ctx context.Context) (uint64, error) {
	if c.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := c.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load state: %w", err)
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

func (c *Collector) seed(ctx context.Context) error {
	rows, err := c.sink.LoadPoolMetrics(ctx)
	if err != nil {
		return fmt.Errorf("load metrics for resume: %w", err)
	}
	for _, m := range rows {
		c.accumulators[m.PoolID] = SeedAccumulator(m)
	}
	if len(rows) > 0 {
		c.logger.Info("resuming with persisted metrics", zap.Int("pools", len(rows)))
	}
	return nil
}

func (c *Collector) flush(ctx context.Context) error {
	metrics := make([]model.PoolMetrics, 0, len(c.accumulators))
	for _, acc := range c.accumulators {
		m, ok := acc.Metrics()
		if !ok {
			c.logger.Warn("missing pool tokens", zap.String("pool", m.PoolID))
			continue
		}
		metrics = append(metrics, m)
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].PoolID < metrics[j].PoolID })

	for start := 0; start < len(metrics); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(metrics) {
			end = len(metrics)
		}
		if err := c.sink.UpsertPoolMetrics(ctx, metrics[start:end]); err != nil {
			return fmt.Errorf("flush metrics: %w", err)
		}
	}
	return nil
}
