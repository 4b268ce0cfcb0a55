package sink

import (
	"context"
	"sync"

	"github.com/operator-framework/cost-guard/pkg/alert"
)

// Queue holds reports until they are drained, so notifications can be sent
// after a check has printed its results.
type Queue struct {
	mu      sync.Mutex
	reports []alert.Report
}

func (q *Queue) Send(_ context.Context, report alert.Report) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reports = append(q.reports, report)
	return nil
}

// Drain returns the queued reports in the order they were sent and empties
// the queue.
func (q *Queue) Drain() []alert.Report {
	q.mu.Lock()
	defer q.mu.Unlock()
	reports := q.reports
	q.reports = nil
	return reports
}
