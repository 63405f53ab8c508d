package model

import (
	"encoding/json"
	"testing"

	"github.com/abdulrahman305/qenex-defi-sub000/internal/fixedpoint"
)

func TestSwapExecutedDataJSONStringFields(t *testing.T) {
	payload := SwapExecutedData{
		TokenIn:   "ETH",
		TokenOut:  "USDC",
		AmountIn:  fixedpoint.MustParse("1000000000000000000"),
		AmountOut: fixedpoint.MustParse("1813221787760298263162"),
		FeePaid:   fixedpoint.MustParse("3000000000000000"),
		Reserve0:  fixedpoint.MustParse("11000000000000000000"),
		Reserve1:  fixedpoint.MustParse("18186778212239701736838"),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, field := range []string{"amount_in", "amount_out", "fee_paid", "reserve0", "reserve1"} {
		if _, ok := decoded[field].(string); !ok {
			t.Fatalf("%s should be string", field)
		}
	}
}

func TestEventRecordRoundTrip(t *testing.T) {
	event := Event{
		Seq:       7,
		Op:        OpAddLiquidity,
		PoolID:    "0xabc123",
		OpHash:    "0xdef456",
		AppliedAt: "2024-01-01T00:00:00Z",
		Data: LiquidityAddedData{
			Provider:     "alice",
			Amount0:      fixedpoint.FromUint64(10),
			Amount1:      fixedpoint.FromUint64(20000),
			SharesMinted: fixedpoint.FromUint64(447),
			Reserve0:     fixedpoint.FromUint64(10),
			Reserve1:     fixedpoint.FromUint64(20000),
			TotalShares:  fixedpoint.FromUint64(447),
		},
	}

	b, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var record EventRecord
	if err := json.Unmarshal(b, &record); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if record.Seq != event.Seq || record.Op != event.Op || record.PoolID != event.PoolID {
		t.Fatalf("header mismatch: %+v", record)
	}

	var data LiquidityAddedData
	if err := json.Unmarshal(record.Data, &data); err != nil {
		t.Fatalf("payload unmarshal failed: %v", err)
	}
	if data.Provider != "alice" || !data.SharesMinted.Equal(fixedpoint.FromUint64(447)) {
		t.Fatalf("payload mismatch: %+v", data)
	}
}

func TestOperationRoundTrip(t *testing.T) {
	original := Operation{
		Op:       OpSwap,
		PoolID:   "0xabc123",
		TokenIn:  "ETH",
		AmountIn: fixedpoint.MustParse("1000000000000000000"),
		MinOut:   fixedpoint.MustParse("1800000000000000000000"),
	}

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded Operation
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Op != original.Op || decoded.PoolID != original.PoolID {
		t.Fatalf("round-trip mismatch: %+v != %+v", decoded, original)
	}
	if !decoded.AmountIn.Equal(original.AmountIn) || !decoded.MinOut.Equal(original.MinOut) {
		t.Fatalf("amount round-trip mismatch: %+v", decoded)
	}
}
