package gateway

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/sirupsen/logrus"
)

// SNSGateway delivers OTP messages as transactional SMS through Amazon SNS.
type SNSGateway struct {
	client *sns.Client
	logger *logrus.Logger
}

func NewSNSGateway(awsCfg aws.Config, logger *logrus.Logger) *SNSGateway {
	return &SNSGateway{
		client: sns.NewFromConfig(awsCfg),
		logger: logger,
	}
}

func (g *SNSGateway) Send(ctx context.Context, mobile, message, senderID string) (string, error) {
	// SNS rejects sender IDs over 11 characters.
	if len(senderID) > 11 {
		senderID = senderID[:11]
	}

	result, err := g.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(mobile),
		Message:     aws.String(message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(senderID),
			},
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	})
	if err != nil {
		g.logger.WithError(err).WithField("mobile", mobile).Error("Failed to publish SMS via SNS")
		return "", fmt.Errorf("failed to publish SMS: %w", err)
	}

	return aws.ToString(result.MessageId), nil
}
