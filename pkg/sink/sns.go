// Package sink implements alert.Sink for the places cost-guard delivers
// reports to.
package sink

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
	log "github.com/sirupsen/logrus"

	"github.com/operator-framework/cost-guard/pkg/alert"
)

const (
	// MaxSubjectLength is the longest subject SNS accepts.
	MaxSubjectLength = 100

	SeverityAttribute = "severity"
)

// SNSSink publishes reports to an SNS topic.
type SNSSink struct {
	client   snsiface.SNSAPI
	topicARN string
	logger   log.FieldLogger
}

func NewSNSSink(logger log.FieldLogger, client snsiface.SNSAPI, topicARN string) *SNSSink {
	return &SNSSink{
		client:   client,
		topicARN: topicARN,
		logger:   logger.WithFields(log.Fields{"component": "sns-sink", "topic": topicARN}),
	}
}

func (s *SNSSink) Send(ctx context.Context, report alert.Report) error {
	out, err := s.client.PublishWithContext(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String(Subject(report.Subject)),
		Message:  aws.String(report.Body),
		MessageAttributes: map[string]*sns.MessageAttributeValue{
			SeverityAttribute: {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(report.Severity)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("could not publish to %s: %w", s.topicARN, err)
	}
	s.logger.Debugf("published report for %s as message %s", report.ResourceID, aws.StringValue(out.MessageId))
	return nil
}

// Subject makes s usable as an SNS subject: a single line of at most
// MaxSubjectLength characters.
func Subject(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= MaxSubjectLength {
		return s
	}
	return string([]rune(s)[:MaxSubjectLength])
}
