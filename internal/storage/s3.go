package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appconfig "github.com/spec-kit/ticket-engine/internal/config"
)

const (
	// MaxAttachmentSize caps a single attachment (25MB).
	MaxAttachmentSize = 25 * 1024 * 1024
	// FolderAttachments is the S3 prefix for ticket attachments.
	FolderAttachments = "attachments"
)

// ErrNotConfigured is returned when no attachments bucket is set.
var ErrNotConfigured = errors.New("attachment storage not configured")

// PresignedUpload is a one-shot direct upload target.
type PresignedUpload struct {
	StorageKey string    `json:"storage_key"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// S3 presigns attachment uploads and downloads. The service never proxies
// attachment bytes.
type S3 struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	expire  time.Duration
	logger  *zap.Logger
}

// NewS3 creates an S3 client. Static keys from cfg take precedence over the
// default credential chain.
func NewS3(ctx context.Context, cfg appconfig.StorageConfig, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AttachmentsBucket == "" {
		return nil, ErrNotConfigured
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region), zap.String("bucket", cfg.AttachmentsBucket))
	} else {
		logger.Warn("S3 client using default credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	expire := 15 * time.Minute
	if cfg.PresignExpireMinutes > 0 {
		expire = time.Duration(cfg.PresignExpireMinutes) * time.Minute
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.AttachmentsBucket,
		expire:  expire,
		logger:  logger,
	}, nil
}

// AttachmentKey returns attachments/{ticket_id}/{uuid}/{filename}.
func AttachmentKey(ticketID, fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	return path.Join(FolderAttachments, ticketID, uuid.NewString(), name)
}

// KeyBelongsTo reports whether key was issued for ticketID.
func KeyBelongsTo(key, ticketID string) bool {
	return strings.HasPrefix(key, path.Join(FolderAttachments, ticketID)+"/")
}

// PresignUpload returns a PUT URL for a new attachment of ticketID.
func (s *S3) PresignUpload(ctx context.Context, ticketID, fileName, mimeType string, now time.Time) (*PresignedUpload, error) {
	key := AttachmentKey(ticketID, fileName)
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(mimeType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.expire
	})
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}
	return &PresignedUpload{StorageKey: key, URL: req.URL, ExpiresAt: now.Add(s.expire)}, nil
}

// PresignDownload returns a GET URL for a stored attachment.
func (s *S3) PresignDownload(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.expire
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}
