package imagehost

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/bughunt/internal/common"
	sc "github.com/dmitrijs2005/bughunt/internal/server/config"
	"github.com/google/uuid"
)

// Seams for tests.
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	now = time.Now
)

// objectAPI is the part of *s3.Client the host uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Host stores images in an S3-compatible bucket (MinIO in development).
type S3Host struct {
	client        objectAPI
	bucket        string
	publicBaseURL string
}

// NewS3Host builds an S3 client from the server config.
func NewS3Host(ctx context.Context, c *sc.Config) (*S3Host, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.S3RootUser,
			c.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config error: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3Host(client, c.S3Bucket, c.S3PublicBaseURL), nil
}

func newS3Host(client objectAPI, bucket, publicBaseURL string) *S3Host {
	return &S3Host{client: client, bucket: bucket, publicBaseURL: publicBaseURL}
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

func (h *S3Host) storageKey(folder, contentType string) string {
	d := now()
	name := fmt.Sprintf("%d/%d/%d/%v%s", d.Year(), d.Month(), d.Day(), uuid.New(), extensionFor(contentType))
	return path.Join(strings.Trim(folder, "/"), name)
}

func (h *S3Host) publicURL(key string) string {
	return strings.TrimRight(h.publicBaseURL, "/") + "/" + key
}

// Upload reads the image from r, shrinks it to fit opts and stores it.
// The returned ID is the object key.
func (h *S3Host) Upload(ctx context.Context, r io.Reader, contentType string, opts UploadOptions) (*UploadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUpload, err)
	}

	body, ct, err := prepare(data, contentType, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUpload, err)
	}

	key := h.storageKey(opts.Folder, ct)

	_, err = h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(h.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(ct),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUpload, err)
	}

	return &UploadResult{URL: h.publicURL(key), ID: key}, nil
}

// Delete removes a previously uploaded object by its ID.
func (h *S3Host) Delete(ctx context.Context, id string) error {
	_, err := h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUpload, err)
	}
	return nil
}
