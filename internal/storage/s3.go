package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "usersvc/internal/errors"
)

const (
	provider = "s3"

	// DefaultFolder is used when an upload names no folder.
	DefaultFolder = "uploads"
	// DefaultSignedURLTTL is the lifetime of presigned download URLs.
	DefaultSignedURLTTL = time.Hour
)

// Object describes a stored object.
type Object struct {
	Key    string `json:"key"`
	URL    string `json:"url"`
	Bucket string `json:"bucket"`
}

// UploadInput is a file to store.
type UploadInput struct {
	Body        []byte
	Filename    string
	ContentType string
	Folder      string
}

// Storage is the object storage surface used by the services.
type Storage interface {
	Upload(ctx context.Context, in UploadInput) (*Object, error)
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	KeyFromURL(url string) (string, bool)
}

// S3Config configures the S3 adapter. Endpoint is optional and switches the
// client to path-style addressing for S3-compatible servers.
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

// S3Storage stores objects in a single S3 bucket.
type S3Storage struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	baseURL string
	log     *zap.Logger
	newID   func() string
}

var _ Storage = (*S3Storage)(nil)

// NewS3 builds an S3 adapter. Static credentials are used when both keys are
// set, otherwise the default AWS credential chain applies.
func NewS3(ctx context.Context, cfg S3Config, log *zap.Logger) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		baseURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}

	return &S3Storage{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		baseURL: baseURL,
		log:     log.Named("s3"),
		newID:   uuid.NewString,
	}, nil
}

// Upload stores the file under folder/<uuid>-<filename>.
func (s *S3Storage) Upload(ctx context.Context, in UploadInput) (*Object, error) {
	folder := strings.Trim(in.Folder, "/")
	if folder == "" {
		folder = DefaultFolder
	}
	key := folder + "/" + s.newID() + "-" + sanitizeFilename(in.Filename)

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(in.Body),
		ContentLength: aws.Int64(int64(len(in.Body))),
	}
	if in.ContentType != "" {
		input.ContentType = aws.String(in.ContentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		s.log.Error("failed to upload file",
			zap.String("operation", "uploadFile"),
			zap.String("key", key),
			zap.String("filename", in.Filename),
			zap.Error(err),
			zap.Stack("stack"),
		)
		return nil, apperrors.Upstream(provider, "uploadFile", err)
	}

	obj := &Object{Key: key, URL: s.PublicURL(key), Bucket: s.bucket}
	s.log.Info("file uploaded",
		zap.String("operation", "uploadFile"),
		zap.String("key", key),
		zap.String("bucket", s.bucket),
	)
	return obj, nil
}

// Delete removes key from the bucket.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.log.Error("failed to delete file",
			zap.String("operation", "deleteFile"),
			zap.String("key", key),
			zap.Error(err),
			zap.Stack("stack"),
		)
		return apperrors.Upstream(provider, "deleteFile", err)
	}
	s.log.Info("file deleted",
		zap.String("operation", "deleteFile"),
		zap.String("key", key),
		zap.String("bucket", s.bucket),
	)
	return nil
}

// SignedURL returns a presigned GET URL for key valid for ttl.
func (s *S3Storage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		s.log.Error("failed to presign url",
			zap.String("operation", "getSignedUrl"),
			zap.String("key", key),
			zap.Error(err),
			zap.Stack("stack"),
		)
		return "", apperrors.Upstream(provider, "getSignedUrl", err)
	}
	s.log.Debug("presigned url",
		zap.String("operation", "getSignedUrl"),
		zap.String("key", key),
		zap.Duration("ttl", ttl),
	)
	return req.URL, nil
}

// PublicURL returns the unsigned object URL for key.
func (s *S3Storage) PublicURL(key string) string {
	return s.baseURL + "/" + key
}

// KeyFromURL recovers the object key from a URL produced by PublicURL.
func (s *S3Storage) KeyFromURL(url string) (string, bool) {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(url, prefix) || len(url) == len(prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." || name == "/" {
		return "file"
	}
	return name
}
