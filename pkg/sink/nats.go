package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/operator-framework/cost-guard/pkg/alert"
)

const (
	DefaultNATSSubject = "cost-guard.alerts"

	severityHeader = "Cost-Guard-Severity"
)

// MsgPublisher is the part of *nats.Conn used to publish reports.
type MsgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSSink publishes reports as JSON messages on a NATS subject.
type NATSSink struct {
	conn    MsgPublisher
	subject string
}

func NewNATSSink(conn MsgPublisher, subject string) *NATSSink {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSSink{conn: conn, subject: subject}
}

// ConnectNATS connects to the NATS server at url. The connection should be
// released with CloseNATS.
func ConnectNATS(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url, nats.Name("cost-guard"))
	if err != nil {
		return nil, fmt.Errorf("could not connect to NATS at %s: %v", url, err)
	}
	return conn, nil
}

// CloseNATS flushes pending messages and closes conn.
func CloseNATS(conn *nats.Conn) {
	if conn != nil {
		_ = conn.Drain()
		conn.Close()
	}
}

func (s *NATSSink) Send(ctx context.Context, report alert.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(&report)
	if err != nil {
		return fmt.Errorf("could not encode report: %v", err)
	}
	msg := nats.NewMsg(s.subject)
	msg.Data = data
	msg.Header.Set(severityHeader, string(report.Severity))
	if err := s.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("could not publish to NATS subject %s: %w", s.subject, err)
	}
	return nil
}
