package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/abdulrahman305/qenex-defi-sub000/internal/model"
)

// JsonlJournal writes event records to a JSONL file.
type JsonlJournal struct {
	path string
	mu   sync.Mutex
}

func NewJsonlJournal(path string) *JsonlJournal {
	return &JsonlJournal{path: path}
}

// PutEventBatch appends a batch of events as JSON lines.
func (j *JsonlJournal) PutEventBatch(events []model.Event) error {
	if len(events) == 0 {
		return nil
	}

	lines := make([][]byte, len(events))
	for i, event := range events {
		line, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		lines[i] = line
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return appendJSONLines(j.path, lines)
}

// JsonlErrorLog writes rejected-operation records to a JSONL file.
type JsonlErrorLog struct {
	path string
	mu   sync.Mutex
}

func NewJsonlErrorLog(path string) *JsonlErrorLog {
	return &JsonlErrorLog{path: path}
}

// PutErrorBatch appends a batch of rejection records as JSON lines.
func (l *JsonlErrorLog) PutErrorBatch(errs []model.OpError) error {
	if len(errs) == 0 {
		return nil
	}

	lines := make([][]byte, len(errs))
	for i, opErr := range errs {
		line, err := json.Marshal(opErr)
		if err != nil {
			return fmt.Errorf("marshal op error: %w", err)
		}
		lines[i] = line
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return appendJSONLines(l.path, lines)
}

func appendJSONLines(path string, lines [][]byte) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, line := range lines {
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
