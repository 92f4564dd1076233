// Package s3cas is the S3-backed CAS adapter. It implements cas.Store
// against an S3 bucket keyed by CID, following the teacher's pattern of
// wrapping a cloud SDK client behind the package's own narrow interface
// rather than exposing the SDK client type to callers.
package s3cas

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ubl-gate/core/pkg/canonicalize"
	"github.com/ubl-gate/core/pkg/cas"
)

// Store is an S3-backed cas.Store. Objects are keyed by CID directly —
// the CID already names the object uniquely, so no prefix scheme is
// needed beyond a bucket-wide namespace.
type Store struct {
	client *s3.Client
	bucket string
}

// New builds a Store from an already-configured S3 client.
func New(client *s3.Client, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// NewFromEnv loads AWS credentials/region the default SDK way
// (environment, shared config, instance profile) and returns a Store
// bound to bucket.
func NewFromEnv(ctx context.Context, bucket, region string) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("s3cas: load AWS config: %w", err)
	}
	return New(s3.NewFromConfig(cfg), bucket), nil
}

func (s *Store) Put(ctx context.Context, b []byte) (string, error) {
	cid := canonicalize.CID(b)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(cid),
		Body:   bytes.NewReader(b),
	})
	if err != nil {
		return "", fmt.Errorf("s3cas: put %s: %w", cid, err)
	}
	return cid, nil
}

func (s *Store) Get(ctx context.Context, cid string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(cid),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", cas.ErrNotFound, cid)
		}
		return nil, fmt.Errorf("s3cas: get %s: %w", cid, err)
	}
	defer out.Body.Close()
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3cas: read body for %s: %w", cid, err)
	}
	return b, nil
}

var _ cas.Store = (*Store)(nil)
