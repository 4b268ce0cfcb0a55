package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/samber/lo"
)

const (
	// NotAvailable is displayed for missing instance metadata.
	NotAvailable = "N/A"

	StateRunning = ec2.InstanceStateNameRunning

	nameTagKey = "Name"
)

// Instance is the subset of EC2 instance metadata used for CPU checks.
type Instance struct {
	ID         string
	Name       string
	State      string
	Type       string
	LaunchTime time.Time
	PrivateIP  string
	PublicIP   string
}

// Labels describes the instance for alert reports.
func (i Instance) Labels() map[string]string {
	labels := map[string]string{
		"Name":          i.Name,
		"Instance Type": i.Type,
		"Private IP":    i.PrivateIP,
		"Public IP":     i.PublicIP,
	}
	if !i.LaunchTime.IsZero() {
		labels["Launch Time"] = i.LaunchTime.UTC().Format("2006-01-02 15:04:05 UTC")
	}
	return labels
}

// ListInstances returns every instance visible to the client, following
// DescribeInstances pagination.
func ListInstances(ctx context.Context, client ec2iface.EC2API) ([]Instance, error) {
	var instances []Instance
	pageFn := func(out *ec2.DescribeInstancesOutput, lastPage bool) bool {
		for _, reservation := range out.Reservations {
			for _, inst := range reservation.Instances {
				instances = append(instances, newInstance(inst))
			}
		}
		return true
	}

	err := client.DescribeInstancesPagesWithContext(ctx, &ec2.DescribeInstancesInput{}, pageFn)
	if err != nil {
		return nil, fmt.Errorf("could not describe EC2 instances: %w", err)
	}
	return instances, nil
}

// Running filters instances to those in the running state.
func Running(instances []Instance) []Instance {
	return lo.Filter(instances, func(i Instance, _ int) bool {
		return i.State == StateRunning
	})
}

func newInstance(inst *ec2.Instance) Instance {
	out := Instance{
		ID:         aws.StringValue(inst.InstanceId),
		Type:       aws.StringValue(inst.InstanceType),
		LaunchTime: aws.TimeValue(inst.LaunchTime),
		PrivateIP:  valueOrNotAvailable(inst.PrivateIpAddress),
		PublicIP:   valueOrNotAvailable(inst.PublicIpAddress),
		Name:       NotAvailable,
	}
	if inst.State != nil {
		out.State = aws.StringValue(inst.State.Name)
	}
	if tag, ok := lo.Find(inst.Tags, func(t *ec2.Tag) bool {
		return aws.StringValue(t.Key) == nameTagKey
	}); ok {
		out.Name = aws.StringValue(tag.Value)
	}
	return out
}

func valueOrNotAvailable(s *string) string {
	if v := aws.StringValue(s); v != "" {
		return v
	}
	return NotAvailable
}
