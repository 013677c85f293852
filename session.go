package treedex

import (
	"context"

	"github.com/treedex/treedex/internal/repository/batch"
)

// Session is an ordered batch of store operations. Operations queue in
// memory and go out as one bulk request on Flush; individual operation
// failures are logged and do not fail the flush.
type Session struct {
	inner *batch.Session
}

// IndexName returns the index or alias the session writes to.
func (s *Session) IndexName() string {
	return s.inner.Index()
}

// Pending returns the number of queued operations.
func (s *Session) Pending() int {
	return s.inner.Pending()
}

// Flush submits all queued operations and clears the queue. The queue is
// cleared even when the request fails, so a broken batch is never resent.
func (s *Session) Flush(ctx context.Context) error {
	return s.inner.Flush(ctx)
}

// WithBulkProcessing runs work with per-document cleanup roundtrips
// suppressed, for full rebuilds where the target index starts empty. The
// previous mode is restored when work returns, normally or by panic.
func (s *Session) WithBulkProcessing(work func() error) error {
	return s.inner.WithBulkProcessing(work)
}
