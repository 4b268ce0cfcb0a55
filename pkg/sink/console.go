package sink

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/operator-framework/cost-guard/pkg/alert"
)

// ConsoleSink prints the notification that would have been published to
// topicARN instead of calling SNS.
type ConsoleSink struct {
	mu       sync.Mutex
	out      io.Writer
	topicARN string
}

func NewConsoleSink(out io.Writer, topicARN string) *ConsoleSink {
	return &ConsoleSink{out: out, topicARN: topicARN}
}

func (s *ConsoleSink) Send(_ context.Context, report alert.Report) error {
	var b strings.Builder
	fmt.Fprintln(&b, "Simulating SNS Alert...")
	fmt.Fprintf(&b, "   Topic ARN: %s\n", s.topicARN)
	fmt.Fprintf(&b, "   Subject: %s\n", Subject(report.Subject))
	fmt.Fprintln(&b, "   Message:")
	for _, line := range strings.Split(strings.TrimRight(report.Body, "\n"), "\n") {
		fmt.Fprintf(&b, "      %s\n", line)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.out, b.String()); err != nil {
		return fmt.Errorf("could not write notification: %v", err)
	}
	return nil
}
