package zap

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/sitetheory/pkg/observability"
)

type mockSNSClient struct {
	mock.Mock
}

func (m *mockSNSClient) Publish(ctx context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sns.PublishOutput)
	return out, args.Error(1)
}

func TestSNSNotifier_PublishesDeployFailure(t *testing.T) {
	const topic = "arn:aws:sns:us-east-1:000000000000:site-errors"

	client := &mockSNSClient{}
	client.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return in.TopicArn != nil && *in.TopicArn == topic &&
			in.Message != nil &&
			strings.Contains(*in.Message, "deploy.apply.failed") &&
			strings.Contains(*in.Message, "example-com-site") &&
			!strings.Contains(*in.Message, "wJalrXUtnFEMI")
	})).Return(&sns.PublishOutput{}, nil).Once()

	logger, err := NewZapLogger(observability.LoggerConfig{Format: "json"},
		WithWriter(&strings.Builder{}),
		WithErrorNotifier(NewSNSNotifier(client, topic, SNSNotifierOptions{})),
	)
	require.NoError(t, err)

	logger.WithStackName("example-com-site").Error("deploy.apply.failed", map[string]any{
		"aws_secret_access_key": "wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY",
	})
	require.NoError(t, logger.Flush(context.Background()))

	client.AssertExpectations(t)
}
