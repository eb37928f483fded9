package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Presigned is a time-limited URL for one object.
type Presigned struct {
	Key       string
	URL       string
	ExpiresAt time.Time
}

// AttachmentPrefix is the object key prefix of entryID's attachments.
func AttachmentPrefix(userID, entryID string) string {
	return fmt.Sprintf("users/%s/%s/", userID, entryID)
}

func (s *EntryService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})
	return newS3PresignClient(client), nil
}

// ownEntry fails with common.ErrNotFound unless entryID is the caller's row.
func (s *EntryService) ownEntry(ctx context.Context, userID, entryID string) error {
	if _, err := uuid.Parse(entryID); err != nil {
		return common.ErrNotFound
	}
	_, err := s.repomanager.Entries(s.db).Get(ctx, userID, entryID)
	return err
}

// PresignUpload returns a PUT URL for a new attachment of entryID.
func (s *EntryService) PresignUpload(ctx context.Context, userID, entryID, contentType string) (Presigned, error) {
	if err := s.ownEntry(ctx, userID, entryID); err != nil {
		return Presigned{}, err
	}

	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return Presigned{}, err
	}

	bucket := s.config.S3Bucket
	key := AttachmentPrefix(userID, entryID) + uuid.NewString()
	in := &s3.PutObjectInput{Bucket: &bucket, Key: &key}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	expires := s.now().Add(s.config.PresignTTL)
	req, err := presignPutObject(pc, ctx, in, s3.WithPresignExpires(s.config.PresignTTL))
	if err != nil {
		return Presigned{}, fmt.Errorf("presign put: %w", err)
	}
	return Presigned{Key: key, URL: req.URL, ExpiresAt: expires}, nil
}

// PresignDownload returns a GET URL for key, which must belong to entryID.
func (s *EntryService) PresignDownload(ctx context.Context, userID, entryID, key string) (Presigned, error) {
	if !strings.HasPrefix(key, AttachmentPrefix(userID, entryID)) {
		return Presigned{}, common.ErrNotFound
	}
	if err := s.ownEntry(ctx, userID, entryID); err != nil {
		return Presigned{}, err
	}

	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return Presigned{}, err
	}

	bucket := s.config.S3Bucket
	expires := s.now().Add(s.config.PresignTTL)
	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key}, s3.WithPresignExpires(s.config.PresignTTL))
	if err != nil {
		return Presigned{}, fmt.Errorf("presign get: %w", err)
	}
	return Presigned{Key: key, URL: req.URL, ExpiresAt: expires}, nil
}
