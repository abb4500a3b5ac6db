package s3

import (
	"bytes"
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// ErrConflict is returned by PutIfNotExists when the object already
// exists.
var ErrConflict = errors.New("object already exists")

// ExpressStore targets S3 Express One Zone directory buckets (names
// ending in --azid--x-s3). Behavior matches Store, with one addition:
// directory buckets support conditional writes, so first-writer-wins
// publication works without a DynamoDB side table.
type ExpressStore struct {
	*Store
}

// NewExpressStore creates a store for a directory bucket.
func NewExpressStore(client Client, bucket, rootPrefix string, opts ...Option) *ExpressStore {
	return &ExpressStore{Store: NewStore(client, bucket, rootPrefix, opts...)}
}

// PutIfNotExists writes a blob only if the name is unclaimed, using an
// If-None-Match conditional write. Returns ErrConflict if the object
// already exists.
func (s *ExpressStore) PutIfNotExists(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(name)),
		Body:        bytes.NewReader(data),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "PreconditionFailed", "ConditionalRequestConflict":
				return ErrConflict
			}
		}
		return err
	}
	return nil
}
