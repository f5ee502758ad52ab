package zap

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/theory-cloud/sitetheory/pkg/observability"
	"github.com/theory-cloud/sitetheory/pkg/sanitization"
)

type snsAPI interface {
	Publish(
		ctx context.Context,
		params *sns.PublishInput,
		optFns ...func(*sns.Options),
	) (*sns.PublishOutput, error)
}

type SNSNotifierOptions struct {
	Subject string
}

type snsNotifier struct {
	client   snsAPI
	topicARN string
	subject  string
}

var _ observability.ErrorNotifier = (*snsNotifier)(nil)

// NewSNSNotifier publishes each entry as a JSON message to topicARN.
// Subjects are capped at 100 characters and messages at 256 KiB, the SNS limits.
func NewSNSNotifier(client snsAPI, topicARN string, opts SNSNotifierOptions) observability.ErrorNotifier {
	return &snsNotifier{
		client:   client,
		topicARN: strings.TrimSpace(topicARN),
		subject:  strings.TrimSpace(opts.Subject),
	}
}

func (n *snsNotifier) Notify(ctx context.Context, entry observability.LogEntry) error {
	if n == nil || n.client == nil {
		return errors.New("observability/zap: sns notifier is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if n.topicARN == "" {
		return errors.New("observability/zap: sns topic arn is empty")
	}

	payload := map[string]any{
		"entry": entry,
		"env": map[string]string{
			"aws_region":         os.Getenv("AWS_REGION"),
			"aws_profile":        os.Getenv("AWS_PROFILE"),
			"codebuild_build_id": os.Getenv("CODEBUILD_BUILD_ID"),
			"github_run_id":      os.Getenv("GITHUB_RUN_ID"),
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	subject := n.subject
	if subject == "" {
		subject = "sitetheory deploy error"
		if entry.StackName != "" {
			subject += ": " + entry.StackName
		}
	}
	subject = sanitization.SanitizeLogString(subject)
	if len(subject) > 100 {
		subject = subject[:100]
	}

	message := string(body)
	if len(message) > 256*1024 {
		message = message[:256*1024]
	}

	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	return err
}
