package aws

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws/awserr"
)

// ErrCodeNoCredentialProviders is returned by the SDK when no credentials
// could be found in the default chain.
const ErrCodeNoCredentialProviders = "NoCredentialProviders"

// IsCredentialsError reports whether err was caused by missing credentials.
func IsCredentialsError(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code() == ErrCodeNoCredentialProviders
	}
	return false
}

// DescribeError turns AWS SDK errors into a one line explanation suitable
// for console output.
func DescribeError(err error) string {
	if err == nil {
		return ""
	}
	if IsCredentialsError(err) {
		return "AWS credentials not found: configure credentials using 'aws configure' or set environment variables"
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return fmt.Sprintf("AWS API error [%s]: %s", aerr.Code(), aerr.Message())
	}
	return err.Error()
}
