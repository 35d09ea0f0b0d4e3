// Package awsx loads the shared AWS SDK configuration used by the S3,
// DynamoDB and Secrets Manager clients.
package awsx

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// loadDefaultAWSConfig is a seam for tests.
var loadDefaultAWSConfig = config.LoadDefaultConfig

// Options select region and, optionally, static credentials (MinIO, local
// DynamoDB). Without static credentials the default provider chain is used.
type Options struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

func LoadConfig(ctx context.Context, o Options) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if o.Region != "" {
		opts = append(opts, config.WithRegion(o.Region))
	}
	if o.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKeyID, o.SecretAccessKey, ""),
		))
	}
	return loadDefaultAWSConfig(ctx, opts...)
}
