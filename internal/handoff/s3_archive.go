package handoff

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive writes every finalized record to S3 as an immutable audit copy.
// Keys are partitioned by finalization date.
type S3Archive struct {
	client s3PutAPI
	bucket string
	prefix string
}

func NewS3Archive(client s3PutAPI, bucket, prefix string) *S3Archive {
	if client == nil {
		panic("handoff: s3 client cannot be nil")
	}
	if bucket == "" {
		panic("handoff: archive bucket cannot be empty")
	}
	if prefix == "" {
		prefix = "intake/v1"
	}
	return &S3Archive{client: client, bucket: bucket, prefix: prefix}
}

func (a *S3Archive) key(rec Record) string {
	t := rec.FinalizedAt.UTC()
	return fmt.Sprintf("%s/by-date/%d/%02d/%02d/%s/%s.json",
		a.prefix, t.Year(), t.Month(), t.Day(), rec.SessionID, rec.EventID)
}

func (a *S3Archive) Deliver(ctx context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("handoff: marshal record: %w", err)
	}
	key := a.key(rec)
	if _, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("handoff: s3 put %s: %w", key, err)
	}
	return nil
}
