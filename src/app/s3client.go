package app

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type ClientMinio interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (info minio.UploadInfo, err error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

type MinioS3Client struct {
	region     string
	bucketName string
	basePrefix string
	client     ClientMinio
	now        func() time.Time
}

// UploadResult is where an uploaded object landed.
type UploadResult struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

const (
	defaultContentType = "application/octet-stream"
	defaultBasePrefix  = "album_project/photos"
	defaultUploadDir   = "uploads"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// NewMinioS3Client creates a new MinioS3Client instance.
func NewMinioS3Client(endpoint, region, accessKeyID, secretAccessKey, bucketName, basePrefix string, useSSL bool) (*MinioS3Client, error) {
	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Minio S3 client: %w", err)
	}
	return newMinioS3Client(minioClient, region, bucketName, basePrefix), nil
}

func newMinioS3Client(client ClientMinio, region, bucketName, basePrefix string) *MinioS3Client {
	return &MinioS3Client{
		region:     region,
		bucketName: bucketName,
		basePrefix: CleanBasePrefix(basePrefix),
		client:     client,
		now:        time.Now,
	}
}

// CleanBasePrefix trims surrounding slashes and falls back to the default prefix.
func CleanBasePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return defaultBasePrefix
	}
	return prefix
}

// SanitizeFilename replaces every character outside [A-Za-z0-9._-] with '_'.
func SanitizeFilename(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// BuildKey composes {basePrefix}/{dir}/{epochMillis}-{sanitizedFilename}.
func BuildKey(basePrefix, dir, filename string, now time.Time) string {
	safeDir := strings.Trim(strings.ReplaceAll(dir, "..", ""), "/")
	if safeDir == "" {
		safeDir = defaultUploadDir
	}
	prefix := safeDir
	if basePrefix != "" {
		prefix = basePrefix + "/" + safeDir
	}
	millis := now.UnixMilli()
	safeName := SanitizeFilename(filename)
	if safeName == "" {
		safeName = fmt.Sprintf("photo_%d", millis)
	}
	return fmt.Sprintf("%s/%d-%s", prefix, millis, safeName)
}

// PublicURL is the virtual-hosted-style URL of key.
func PublicURL(bucket, region, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}

// UploadPhoto stores the object under a generated key in dir.
func (s3 *MinioS3Client) UploadPhoto(ctx context.Context, dir, filename, contentType string, object io.Reader, size int64) (UploadResult, error) {
	if object == nil {
		return UploadResult{}, ErrNoFileBuffer
	}
	if contentType == "" {
		contentType = defaultContentType
	}
	key := BuildKey(s3.basePrefix, dir, filename, s3.now())
	_, err := s3.client.PutObject(ctx,
		s3.bucketName,
		key,
		object,
		size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return UploadResult{}, fmt.Errorf("file upload to S3 error: %w", err)
	}
	return UploadResult{Key: key, URL: PublicURL(s3.bucketName, s3.region, key)}, nil
}

func (s3 *MinioS3Client) DeleteFile(ctx context.Context, key string) error {
	if err := s3.client.RemoveObject(ctx, s3.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("file delete from S3 error: %w", err)
	}
	return nil
}
