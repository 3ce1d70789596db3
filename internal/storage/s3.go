package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/BradenHooton/roster/internal/config"
)

// s3API is the part of the S3 client the avatar store calls.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3AvatarStore keeps avatars in an S3-compatible bucket under avatars/<user id>/.
type S3AvatarStore struct {
	client        s3API
	bucket        string
	publicBaseURL string
}

// NewS3AvatarStore builds a client from cfg. Static credentials and a custom
// endpoint are used when configured, which is how MinIO is reached.
func NewS3AvatarStore(ctx context.Context, cfg config.StorageConfig) (*S3AvatarStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3AvatarStore(client, cfg), nil
}

func newS3AvatarStore(client s3API, cfg config.StorageConfig) *S3AvatarStore {
	base := cfg.PublicBaseURL
	if base == "" {
		switch {
		case cfg.S3Endpoint != "":
			base = strings.TrimRight(cfg.S3Endpoint, "/") + "/" + cfg.S3Bucket
		default:
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.S3Region)
		}
	}

	return &S3AvatarStore{
		client:        client,
		bucket:        cfg.S3Bucket,
		publicBaseURL: base,
	}
}

// Upload stores data under a fresh key and returns its public URL and key.
func (s *S3AvatarStore) Upload(ctx context.Context, userID string, data []byte, contentType, ext string) (string, string, error) {
	key := fmt.Sprintf("avatars/%s/%s%s", userID, uuid.New().String(), ext)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload avatar: %w", err)
	}

	return s.publicBaseURL + "/" + key, key, nil
}

// Delete removes the object stored under key. An empty key is a no-op.
func (s *S3AvatarStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete avatar %s: %w", key, err)
	}
	return nil
}
