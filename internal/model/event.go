package model

import "encoding/json"

// Event is an applied or quoted operation as written to the event log. Only
// state changes carry a sequence number and operation hash; quote results
// leave both empty so sequences stay stable across a resumed replay.
type Event struct {
	Seq       uint64      `json:"seq,omitempty"`
	Op        string      `json:"op"`
	PoolID    string      `json:"pool_id"`
	OpHash    string      `json:"op_hash,omitempty"`
	AppliedAt string      `json:"applied_at"`
	Data      interface{} `json:"data"`
}

// EventRecord is the JSON representation used when consuming an event log.
type EventRecord struct {
	Seq       uint64          `json:"seq,omitempty"`
	Op        string          `json:"op"`
	PoolID    string          `json:"pool_id"`
	OpHash    string          `json:"op_hash,omitempty"`
	AppliedAt string          `json:"applied_at"`
	Data      json.RawMessage `json:"data"`
}
