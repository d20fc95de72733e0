package handoff

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type sqsSendAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher emits finalized records for the booking-submission consumer.
type SQSPublisher struct {
	client   sqsSendAPI
	queueURL string
}

func NewSQSPublisher(client sqsSendAPI, queueURL string) *SQSPublisher {
	if client == nil {
		panic("handoff: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("handoff: SQS queueURL cannot be empty")
	}
	return &SQSPublisher{client: client, queueURL: queueURL}
}

func (p *SQSPublisher) Deliver(ctx context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("handoff: marshal event: %w", err)
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(rec.EventType)},
			"session_id": {DataType: aws.String("String"), StringValue: aws.String(rec.SessionID)},
		},
	})
	if err != nil {
		return fmt.Errorf("handoff: failed to send SQS message: %w", err)
	}
	return nil
}
