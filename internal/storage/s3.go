package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client the store uses
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store keeps artifacts as objects under a bucket prefix
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Store creates a store on an existing client
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// NewS3StoreForRegion loads the default AWS configuration for region
func NewS3StoreForRegion(ctx context.Context, region, bucket, prefix string) (*S3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return NewS3Store(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// Save uploads the blob and then the metadata
func (s *S3Store) Save(ctx context.Context, name string, artifact *Artifact) error {
	if err := validateName(name); err != nil {
		return err
	}
	meta, blob, err := encode(artifact)
	if err != nil {
		return err
	}
	doc, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := s.put(ctx, s.key(blobName(name)), blob); err != nil {
		return err
	}
	return s.put(ctx, s.key(metadataName(name)), doc)
}

// Load downloads an artifact saved under name
func (s *S3Store) Load(ctx context.Context, name string) (*Artifact, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	doc, err := s.get(ctx, s.key(metadataName(name)))
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(doc, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	blob, err := s.get(ctx, s.key(blobName(name)))
	if err != nil {
		return nil, err
	}
	return decode(meta, blob)
}

func (s *S3Store) key(object string) string {
	if s.prefix == "" {
		return object
	}
	return path.Join(s.prefix, object)
}

func (s *S3Store) put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("unable to upload %s to S3: %w", key, err)
	}
	return nil
}

func (s *S3Store) get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, key)
		}
		return nil, fmt.Errorf("unable to download %s from S3: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s from S3: %w", key, err)
	}
	return data, nil
}
