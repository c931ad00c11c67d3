package mainconfig

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
)

func TestLoadAWSConfigUsesStaticCredentials(t *testing.T) {
	cfg := &appconfig.Config{
		AWSRegion:          "us-west-2",
		AWSAccessKeyID:     "test-key",
		AWSSecretAccessKey: "test-secret",
	}
	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", awsCfg.Region)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-key", creds.AccessKeyID)
	assert.Equal(t, "test-secret", creds.SecretAccessKey)
}

func TestLoadAWSConfigRequiresConfig(t *testing.T) {
	_, err := LoadAWSConfig(context.Background(), nil)
	require.Error(t, err)
}

func TestStaticCredentialsNeedBothKeys(t *testing.T) {
	assert.Nil(t, staticCredentials(&appconfig.Config{AWSAccessKeyID: "only-key"}))
	assert.Nil(t, staticCredentials(&appconfig.Config{AWSSecretAccessKey: "only-secret"}))
	assert.NotNil(t, staticCredentials(&appconfig.Config{AWSAccessKeyID: "k", AWSSecretAccessKey: "s"}))
}

func TestSQSOptionsEndpointOverride(t *testing.T) {
	assert.Empty(t, sqsOptions(&appconfig.Config{}))
	assert.Empty(t, sqsOptions(nil))

	opts := sqsOptions(&appconfig.Config{AWSEndpointOverride: " http://localhost:4566 "})
	require.Len(t, opts, 1)
	var o sqs.Options
	opts[0](&o)
	assert.Equal(t, "http://localhost:4566", aws.ToString(o.BaseEndpoint))
}

func TestNewSQSClient(t *testing.T) {
	client := NewSQSClient(aws.Config{Region: "us-east-1"}, &appconfig.Config{AWSEndpointOverride: "http://localhost:4566"})
	require.NotNil(t, client)
	assert.Equal(t, "http://localhost:4566", aws.ToString(client.Options().BaseEndpoint))
}
