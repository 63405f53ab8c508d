package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/abdulrahman305/qenex-defi-sub000/internal/model"
)

func TestCollectorFoldsEvents(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "events.jsonl")
	writeEvents(t, input,
		eventLine(1, model.OpCreatePool, "p1", `{"token0":"ETH","token1":"USDC","fee_rate_bps":30}`),
		eventLine(2, model.OpAddLiquidity, "p1", `{"provider":"alice","amount0":"1000","amount1":"2000000","shares_minted":"44721","reserve0":"1000","reserve1":"2000000","total_shares":"44721"}`),
		``,
		eventLine(0, model.OpQuoteSwap, "p1", `{"token_in":"ETH","token_out":"USDC","amount_in":"50","amount_out":"93422","fee_paid":"1","price_before":"2000000000000000000000","price_after":"1817519542421353670162","price_impact":"91240228789323164"}`),
		eventLine(3, model.OpSwap, "p1", `{"token_in":"USDC","token_out":"ETH","amount_in":"200000","amount_out":"90","fee_paid":"600","reserve0":"910","reserve1":"2200000"}`),
		eventLine(4, model.OpSwap, "p1", `{"token_in":"ETH","token_out":"USDC","amount_in":"100","amount_out":"215857","fee_paid":"1","reserve0":"1010","reserve1":"1984143"}`),
		eventLine(5, model.OpRemoveLiquidity, "p1", `{"provider":"alice","shares_burned":"4472","amount0":"100","amount1":"198409","reserve0":"910","reserve1":"1785734","total_shares":"40249"}`),
	)

	var out bytes.Buffer
	collector := NewCollector(Config{}, NewWriterSink(&out), nil)
	if err := collector.Run(context.Background(), input); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rows := decodeMetrics(t, out.String())
	if len(rows) != 1 {
		t.Fatalf("got %d metric rows, want 1", len(rows))
	}
	m := rows[0]
	if m.PoolID != "p1" || m.Token0 != "ETH" || m.Token1 != "USDC" {
		t.Fatalf("identity = %s %s/%s, want p1 ETH/USDC", m.PoolID, m.Token0, m.Token1)
	}
	if m.SwapCount != 2 || m.LiquidityAdds != 1 || m.LiquidityBurns != 1 {
		t.Fatalf("counts = %d swaps %d adds %d burns, want 2/1/1", m.SwapCount, m.LiquidityAdds, m.LiquidityBurns)
	}
	if m.VolumeIn0.String() != "100" || m.VolumeIn1.String() != "200000" {
		t.Fatalf("volumes = %s/%s, want 100/200000", m.VolumeIn0, m.VolumeIn1)
	}
	if m.Fees0.String() != "1" || m.Fees1.String() != "600" {
		t.Fatalf("fees = %s/%s, want 1/600", m.Fees0, m.Fees1)
	}
	if m.Reserve0.String() != "910" || m.Reserve1.String() != "1785734" || m.TotalShares.String() != "40249" {
		t.Fatalf("state = %s/%s shares %s, want 910/1785734 shares 40249", m.Reserve0, m.Reserve1, m.TotalShares)
	}
	if m.LastK != "1625017940" {
		t.Fatalf("last k = %s, want 1625017940", m.LastK)
	}
	if m.LastSeq != 5 {
		t.Fatalf("last seq = %d, want 5", m.LastSeq)
	}
}

func TestCollectorResume(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "prefix.jsonl")
	full := filepath.Join(dir, "full.jsonl")
	statePath := filepath.Join(dir, "state.json")

	head := []string{
		eventLine(1, model.OpCreatePool, "p1", `{"token0":"ETH","token1":"USDC","fee_rate_bps":30}`),
		eventLine(2, model.OpAddLiquidity, "p1", `{"provider":"alice","amount0":"1000","amount1":"2000000","shares_minted":"44721","reserve0":"1000","reserve1":"2000000","total_shares":"44721"}`),
		eventLine(3, model.OpSwap, "p1", `{"token_in":"USDC","token_out":"ETH","amount_in":"200000","amount_out":"90","fee_paid":"600","reserve0":"910","reserve1":"2200000"}`),
	}
	tail := []string{
		eventLine(4, model.OpSwap, "p1", `{"token_in":"ETH","token_out":"USDC","amount_in":"100","amount_out":"215857","fee_paid":"1","reserve0":"1010","reserve1":"1984143"}`),
		eventLine(5, model.OpRemoveLiquidity, "p1", `{"provider":"alice","shares_burned":"4472","amount0":"100","amount1":"198409","reserve0":"910","reserve1":"1785734","total_shares":"40249"}`),
	}
	writeEvents(t, prefix, head...)
	writeEvents(t, full, append(append([]string{}, head...), tail...)...)

	sink := newRecordingSink()
	state := &FileStateStore{Path: statePath}

	collector := NewCollector(Config{StateStore: state}, sink, nil)
	if err := collector.Run(context.Background(), prefix); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if got := sink.rows["p1"]; got.SwapCount != 1 || got.VolumeIn1.String() != "200000" {
		t.Fatalf("after first run: %d swaps volume1 %s, want 1 and 200000", got.SwapCount, got.VolumeIn1)
	}
	seq, ok, err := state.Load(context.Background())
	if err != nil || !ok || seq != 3 {
		t.Fatalf("state after first run = %d %v %v, want 3 true nil", seq, ok, err)
	}

	collector = NewCollector(Config{StateStore: state}, sink, nil)
	if err := collector.Run(context.Background(), full); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	m := sink.rows["p1"]
	if m.SwapCount != 2 || m.LiquidityAdds != 1 || m.LiquidityBurns != 1 {
		t.Fatalf("counts = %d swaps %d adds %d burns, want 2/1/1", m.SwapCount, m.LiquidityAdds, m.LiquidityBurns)
	}
	if m.VolumeIn1.String() != "200000" {
		t.Fatalf("volume in1 = %s, want 200000 (prefix must not refold)", m.VolumeIn1)
	}
	if m.VolumeIn0.String() != "100" {
		t.Fatalf("volume in0 = %s, want 100", m.VolumeIn0)
	}
	if m.LastSeq != 5 {
		t.Fatalf("last seq = %d, want 5", m.LastSeq)
	}
	seq, ok, err = state.Load(context.Background())
	if err != nil || !ok || seq != 5 {
		t.Fatalf("state after second run = %d %v %v, want 5 true nil", seq, ok, err)
	}
}

func TestCollectorSkipsPoolWithoutTokens(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "events.jsonl")
	writeEvents(t, input,
		eventLine(7, model.OpAddLiquidity, "px", `{"provider":"bob","amount0":"5","amount1":"10","shares_minted":"7","reserve0":"5","reserve1":"10","total_shares":"7"}`),
	)

	var out bytes.Buffer
	collector := NewCollector(Config{}, NewWriterSink(&out), nil)
	if err := collector.Run(context.Background(), input); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("got output %q, want none for a pool with unknown tokens", out.String())
	}
}

func TestAccumulatorIgnoresFoldedSequences(t *testing.T) {
	acc := NewAccumulator("p1")
	create := model.EventRecord{
		Seq:    1,
		Op:     model.OpCreatePool,
		PoolID: "p1",
		Data:   json.RawMessage(`{"token0":"ETH","token1":"USDC","fee_rate_bps":30}`),
	}
	swap := model.EventRecord{
		Seq:    2,
		Op:     model.OpSwap,
		PoolID: "p1",
		Data:   json.RawMessage(`{"token_in":"ETH","token_out":"USDC","amount_in":"100","amount_out":"90","fee_paid":"1","reserve0":"1100","reserve1":"910"}`),
	}

	for _, rec := range []model.EventRecord{create, swap} {
		applied, err := acc.Fold(rec)
		if err != nil || !applied {
			t.Fatalf("Fold(seq %d) = %v %v, want true nil", rec.Seq, applied, err)
		}
	}

	applied, err := acc.Fold(swap)
	if err != nil {
		t.Fatalf("refold error: %v", err)
	}
	if applied {
		t.Fatalf("refold of seq 2 applied, want skip")
	}
	m, ok := acc.Metrics()
	if !ok {
		t.Fatalf("metrics not flushable")
	}
	if m.SwapCount != 1 || m.VolumeIn0.String() != "100" {
		t.Fatalf("after refold: %d swaps volume0 %s, want 1 and 100", m.SwapCount, m.VolumeIn0)
	}
}

func TestAccumulatorRejectsForeignSwapToken(t *testing.T) {
	acc := NewAccumulator("p1")
	if _, err := acc.Fold(model.EventRecord{
		Seq:    1,
		Op:     model.OpCreatePool,
		PoolID: "p1",
		Data:   json.RawMessage(`{"token0":"ETH","token1":"USDC","fee_rate_bps":30}`),
	}); err != nil {
		t.Fatalf("Fold create: %v", err)
	}

	applied, err := acc.Fold(model.EventRecord{
		Seq:    2,
		Op:     model.OpSwap,
		PoolID: "p1",
		Data:   json.RawMessage(`{"token_in":"DAI","token_out":"USDC","amount_in":"100","amount_out":"90","fee_paid":"1","reserve0":"1","reserve1":"1"}`),
	})
	if err == nil || applied {
		t.Fatalf("Fold foreign swap = %v %v, want error", applied, err)
	}
	if m, _ := acc.Metrics(); m.SwapCount != 0 || m.LastSeq != 1 {
		t.Fatalf("foreign swap mutated metrics: %d swaps last seq %d", m.SwapCount, m.LastSeq)
	}
}

func eventLine(seq uint64, op, poolID, data string) string {
	if seq == 0 {
		return fmt.Sprintf(`{"op":%q,"pool_id":%q,"applied_at":"2024-05-01T00:00:00Z","data":%s}`, op, poolID, data)
	}
	return fmt.Sprintf(`{"seq":%d,"op":%q,"pool_id":%q,"op_hash":"deadbeef","applied_at":"2024-05-01T00:00:00Z","data":%s}`, seq, op, poolID, data)
}

func writeEvents(t *testing.T, path string, lines ...string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write events: %v", err)
	}
}

func decodeMetrics(t *testing.T, out string) []model.PoolMetrics {
	t.Helper()
	var rows []model.PoolMetrics
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var m model.PoolMetrics
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("decode metrics line %q: %v", line, err)
		}
		rows = append(rows, m)
	}
	return rows
}

type recordingSink struct {
	mu   sync.Mutex
	rows map[string]model.PoolMetrics
}

func newRecordingSink() *recordingSink {
	return &recordingSink{rows: make(map[string]model.PoolMetrics)}
}

func (s *recordingSink) LoadPoolMetrics(ctx context.Context) ([]model.PoolMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.PoolMetrics, 0, len(s.rows))
	for _, m := range s.rows {
		out = append(out, m)
	}
	return out, nil
}

func (s *recordingSink) UpsertPoolMetrics(ctx context.Context, metrics []model.PoolMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range metrics {
		s.rows[m.PoolID] = m
	}
	return nil
}
