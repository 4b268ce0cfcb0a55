package awstest

import (
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/cloudwatch/cloudwatchiface"
	"github.com/aws/aws-sdk-go/service/costexplorer"
	"github.com/aws/aws-sdk-go/service/costexplorer/costexploreriface"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
)

// MockSNS records published messages.
type MockSNS struct {
	sync.Mutex
	Published []*sns.PublishInput
	Err       error
	snsiface.SNSAPI
}

func (m *MockSNS) PublishWithContext(_ aws.Context, in *sns.PublishInput, _ ...request.Option) (*sns.PublishOutput, error) {
	m.Lock()
	defer m.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.Published = append(m.Published, in)
	return &sns.PublishOutput{MessageId: aws.String("test-message-id")}, nil
}

// MockEC2 serves DescribeInstances from a fixed list of pages.
type MockEC2 struct {
	Pages []*ec2.DescribeInstancesOutput
	Err   error
	ec2iface.EC2API
}

func (m *MockEC2) DescribeInstancesPagesWithContext(_ aws.Context, _ *ec2.DescribeInstancesInput, fn func(*ec2.DescribeInstancesOutput, bool) bool, _ ...request.Option) error {
	if m.Err != nil {
		return m.Err
	}
	for i, page := range m.Pages {
		if !fn(page, i == len(m.Pages)-1) {
			break
		}
	}
	return nil
}

// MockCostExplorer returns Output for every GetCostAndUsage call and records
// the inputs.
type MockCostExplorer struct {
	sync.Mutex
	Output *costexplorer.GetCostAndUsageOutput
	Err    error
	Inputs []*costexplorer.GetCostAndUsageInput
	costexploreriface.CostExplorerAPI
}

func (m *MockCostExplorer) GetCostAndUsageWithContext(_ aws.Context, in *costexplorer.GetCostAndUsageInput, _ ...request.Option) (*costexplorer.GetCostAndUsageOutput, error) {
	m.Lock()
	defer m.Unlock()
	m.Inputs = append(m.Inputs, in)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Output, nil
}

// MockCloudWatch returns datapoints keyed by the InstanceId dimension.
type MockCloudWatch struct {
	sync.Mutex
	Datapoints map[string][]*cloudwatch.Datapoint
	Err        error
	Inputs     []*cloudwatch.GetMetricStatisticsInput
	cloudwatchiface.CloudWatchAPI
}

func (m *MockCloudWatch) GetMetricStatisticsWithContext(_ aws.Context, in *cloudwatch.GetMetricStatisticsInput, _ ...request.Option) (*cloudwatch.GetMetricStatisticsOutput, error) {
	m.Lock()
	defer m.Unlock()
	m.Inputs = append(m.Inputs, in)
	if m.Err != nil {
		return nil, m.Err
	}
	var instanceID string
	for _, d := range in.Dimensions {
		if aws.StringValue(d.Name) == "InstanceId" {
			instanceID = aws.StringValue(d.Value)
		}
	}
	return &cloudwatch.GetMetricStatisticsOutput{
		Label:      in.MetricName,
		Datapoints: m.Datapoints[instanceID],
	}, nil
}
