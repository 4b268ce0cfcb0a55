package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/cost-guard/pkg/aws/awstest"
)

func newEC2Instance(id, state, name string) *ec2.Instance {
	inst := &ec2.Instance{
		InstanceId:       aws.String(id),
		InstanceType:     aws.String("t3.micro"),
		State:            &ec2.InstanceState{Name: aws.String(state)},
		LaunchTime:       aws.Time(time.Date(2026, time.October, 1, 8, 0, 0, 0, time.UTC)),
		PrivateIpAddress: aws.String("10.0.0.5"),
	}
	if name != "" {
		inst.Tags = []*ec2.Tag{
			{Key: aws.String("env"), Value: aws.String("prod")},
			{Key: aws.String("Name"), Value: aws.String(name)},
		}
	}
	return inst
}

func TestListInstances(t *testing.T) {
	client := &awstest.MockEC2{
		Pages: []*ec2.DescribeInstancesOutput{
			{Reservations: []*ec2.Reservation{
				{Instances: []*ec2.Instance{
					newEC2Instance("i-001", ec2.InstanceStateNameRunning, "web-1"),
					newEC2Instance("i-002", ec2.InstanceStateNameStopped, ""),
				}},
			}},
			{Reservations: []*ec2.Reservation{
				{Instances: []*ec2.Instance{
					newEC2Instance("i-003", ec2.InstanceStateNameRunning, "worker"),
				}},
			}},
		},
	}

	instances, err := ListInstances(context.Background(), client)
	require.NoError(t, err)
	require.Len(t, instances, 3, "instances from every page are returned")

	assert.Equal(t, Instance{
		ID:         "i-001",
		Name:       "web-1",
		State:      "running",
		Type:       "t3.micro",
		LaunchTime: time.Date(2026, time.October, 1, 8, 0, 0, 0, time.UTC),
		PrivateIP:  "10.0.0.5",
		PublicIP:   NotAvailable,
	}, instances[0])
	assert.Equal(t, NotAvailable, instances[1].Name, "instances without a Name tag")

	running := Running(instances)
	require.Len(t, running, 2)
	assert.Equal(t, "i-001", running[0].ID)
	assert.Equal(t, "i-003", running[1].ID)
}

func TestListInstancesError(t *testing.T) {
	apiErr := errors.New("UnauthorizedOperation")
	_, err := ListInstances(context.Background(), &awstest.MockEC2{Err: apiErr})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apiErr))
}

func TestInstanceLabels(t *testing.T) {
	inst := Instance{ID: "i-1", Name: "db", Type: "m5.large", PrivateIP: "10.0.0.1", PublicIP: NotAvailable}
	labels := inst.Labels()
	assert.Equal(t, "db", labels["Name"])
	assert.Equal(t, "m5.large", labels["Instance Type"])
	_, ok := labels["Launch Time"]
	assert.False(t, ok, "zero launch times are omitted")

	inst.LaunchTime = time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "2026-01-02 03:04:05 UTC", inst.Labels()["Launch Time"])
}
