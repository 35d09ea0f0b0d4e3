package awsx

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLoadOptions(t *testing.T) *config.LoadOptions {
	t.Helper()
	var lo config.LoadOptions
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				return aws.Config{}, err
			}
		}
		return aws.Config{Region: lo.Region}, nil
	}
	return &lo
}

func TestLoadConfig_StaticCredentials(t *testing.T) {
	lo := captureLoadOptions(t)

	cfg, err := LoadConfig(context.Background(), Options{
		Region:          "eu-west-1",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
	})
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Region)
	require.NotNil(t, lo.Credentials)

	creds, err := lo.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "minioadmin", creds.AccessKeyID)
}

func TestLoadConfig_DefaultChain(t *testing.T) {
	lo := captureLoadOptions(t)

	_, err := LoadConfig(context.Background(), Options{})
	require.NoError(t, err)
	assert.Empty(t, lo.Region)
	assert.Nil(t, lo.Credentials)
}

func TestLoadConfig_Error(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })
	loadDefaultAWSConfig = func(context.Context, ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}

	_, err := LoadConfig(context.Background(), Options{Region: "x"})
	assert.Error(t, err)
}
