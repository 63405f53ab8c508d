package storage

import "github.com/abdulrahman305/qenex-defi-sub000/internal/model"

// Journal is an append-only sink for the event log.
type Journal interface {
	PutEventBatch(events []model.Event) error
}

// ErrorSink is an append-only sink for rejected operation records.
type ErrorSink interface {
	PutErrorBatch(errs []model.OpError) error
}
