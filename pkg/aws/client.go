package aws

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/cloudwatch/cloudwatchiface"
	"github.com/aws/aws-sdk-go/service/costexplorer"
	"github.com/aws/aws-sdk-go/service/costexplorer/costexploreriface"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
)

const (
	// DefaultRegion is scanned when no region is configured.
	DefaultRegion = "us-east-1"

	// costExplorerRegion is the only endpoint the Cost Explorer API is served from.
	costExplorerRegion = "us-east-1"
)

// Config selects the credentials and region used for AWS API calls.
type Config struct {
	Region  string
	Profile string
}

// Clients builds AWS service clients sharing a single session.
type Clients struct {
	session *session.Session
	region  string
}

// NewClients creates a session using the default credential chain
// (environment, shared config and instance role), optionally with a named
// profile from the shared config file.
func NewClients(cfg Config) (*Clients, error) {
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            aws.Config{Region: aws.String(region)},
		Profile:           cfg.Profile,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create AWS session: %v", err)
	}
	return &Clients{session: sess, region: region}, nil
}

// Region returns the region clients are created for.
func (c *Clients) Region() string {
	return c.region
}

func (c *Clients) EC2() ec2iface.EC2API {
	return ec2.New(c.session)
}

func (c *Clients) CloudWatch() cloudwatchiface.CloudWatchAPI {
	return cloudwatch.New(c.session)
}

// CostExplorer is always created against us-east-1 regardless of the
// configured region.
func (c *Clients) CostExplorer() costexploreriface.CostExplorerAPI {
	return costexplorer.New(c.session, aws.NewConfig().WithRegion(costExplorerRegion))
}

func (c *Clients) SNS() snsiface.SNSAPI {
	return sns.New(c.session)
}

// S3 returns a client for the given bucket region, or the session region if
// empty.
func (c *Clients) S3(region string) s3iface.S3API {
	if region == "" {
		return s3.New(c.session)
	}
	return s3.New(c.session, aws.NewConfig().WithRegion(region))
}
