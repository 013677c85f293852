// Package batch holds the per-session bulk operation queue and its flush
// protocol.
package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/treedex/treedex/internal/db"
	"github.com/treedex/treedex/internal/metrics"
)

// OpKind is the store mutation kind of a queued operation.
type OpKind string

const (
	OpIndex  OpKind = "index"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Operation is one queued store mutation. Submission order is the contract:
// operations reach the store in the order they were queued.
type Operation struct {
	Kind    OpKind
	ID      string
	DocType string
	// Payload is the full document for index operations.
	Payload map[string]any
	// Script and Upsert drive update operations.
	Script *db.Script
	Upsert map[string]any
}

// render serializes the operation into its wire header and body lines. The
// body is nil for delete operations.
func (op Operation) render() (header, body []byte, err error) {
	header, err = json.Marshal(map[string]any{
		string(op.Kind): map[string]any{"_id": op.ID},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal header: %w", err)
	}

	switch op.Kind {
	case OpIndex:
		body, err = json.Marshal(op.Payload)
	case OpUpdate:
		body, err = json.Marshal(map[string]any{
			"script": op.Script,
			"upsert": op.Upsert,
		})
	case OpDelete:
		// header-only
	default:
		err = fmt.Errorf("unknown operation kind %q", op.Kind)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("marshal body: %w", err)
	}
	return header, body, nil
}

// Session is one indexing session's mutable state: the ordered pending queue
// and the bulk-suppression flag. Sessions carry no locking; use one session
// per indexing goroutine, or synchronize externally.
type Session struct {
	store  db.BulkIndexer
	index  string
	logger *zap.Logger

	ops  []Operation
	bulk bool
}

// NewSession creates a session flushing into the given physical index.
func NewSession(store db.BulkIndexer, index string, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{store: store, index: index, logger: logger}
}

// Index returns the physical index the session writes to.
func (s *Session) Index() string { return s.index }

// Queue appends an operation to the pending queue.
func (s *Session) Queue(op Operation) {
	s.ops = append(s.ops, op)
}

// Pending returns the number of queued operations.
func (s *Session) Pending() int { return len(s.ops) }

// InBulk reports whether per-document duplicate-type cleanup is suppressed.
func (s *Session) InBulk() bool { return s.bulk }

// WithBulkProcessing runs work with duplicate-type cleanup suppressed,
// restoring the prior suppression state whether work returns or panics.
func (s *Session) WithBulkProcessing(work func() error) error {
	prev := s.bulk
	s.bulk = true
	defer func() { s.bulk = prev }()
	return work()
}

// Flush serializes the pending queue into one newline-delimited request and
// submits it. An operation that fails to serialize is logged and dropped,
// never aborting the rest. Store-side per-operation failures are logged, not
// raised. The queue is cleared after the attempt regardless of outcome; a
// returned error reports a whole-request failure for external retry layers.
func (s *Session) Flush(ctx context.Context) error {
	if len(s.ops) == 0 {
		return nil
	}
	defer func() { s.ops = s.ops[:0] }()

	start := time.Now()
	var buf bytes.Buffer
	submitted := make([]Operation, 0, len(s.ops))
	for _, op := range s.ops {
		header, body, err := op.render()
		if err != nil {
			s.logger.Error("Dropping unserializable bulk operation",
				zap.String("kind", string(op.Kind)),
				zap.String("id", op.ID),
				zap.String("type", op.DocType),
				zap.Error(err),
			)
			metrics.BulkOperationsTotal.WithLabelValues(string(op.Kind), "dropped").Inc()
			continue
		}
		buf.Write(header)
		buf.WriteByte('\n')
		if body != nil {
			buf.Write(body)
			buf.WriteByte('\n')
		}
		submitted = append(submitted, op)
	}

	if len(submitted) == 0 {
		return nil
	}

	results, err := s.store.Bulk(ctx, s.index, buf.Bytes())
	metrics.BulkFlushDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BulkBatchesTotal.WithLabelValues("error").Inc()
		s.logger.Error("Bulk request failed",
			zap.String("index", s.index),
			zap.Int("operations", len(submitted)),
			zap.Error(err),
		)
		return fmt.Errorf("bulk flush: %w", err)
	}
	metrics.BulkBatchesTotal.WithLabelValues("ok").Inc()

	if len(results) != len(submitted) {
		s.logger.Warn("Bulk result count mismatch",
			zap.Int("submitted", len(submitted)),
			zap.Int("results", len(results)),
		)
	}
	for i, result := range results {
		kind, id, docType := result.Kind, result.ID, ""
		if i < len(submitted) {
			kind, id, docType = string(submitted[i].Kind), submitted[i].ID, submitted[i].DocType
		}
		if result.OK() {
			metrics.BulkOperationsTotal.WithLabelValues(kind, "ok").Inc()
			continue
		}
		metrics.BulkOperationsTotal.WithLabelValues(kind, "error").Inc()
		s.logger.Error("Bulk operation rejected by store",
			zap.String("kind", kind),
			zap.String("id", id),
			zap.String("type", docType),
			zap.Int("status", result.Status),
			zap.String("error", result.Error),
		)
	}
	return nil
}
