// Package media stores category and resource images in an S3-compatible bucket.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrUnsupportedType = errors.New("unsupported image type")

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type Upload struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type MinioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

func NewMinio(opts Options) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	publicURL := strings.TrimRight(opts.PublicURL, "/")
	if publicURL == "" {
		scheme := "http"
		if opts.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, opts.Endpoint, opts.Bucket)
	}

	return &MinioStore{client: client, bucket: opts.Bucket, publicURL: publicURL}, nil
}

// EnsureBucket creates the bucket on first start.
func (m *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
}

// ImageExtension returns the file extension for an allowed image content type.
func ImageExtension(contentType string) (string, error) {
	ext, ok := allowedTypes[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", ErrUnsupportedType
	}
	return ext, nil
}

// ObjectKey names a new object under folder, partitioned by month.
func ObjectKey(folder, ext string, now time.Time) string {
	folder = strings.Trim(path.Clean("/"+folder), "/")
	if folder == "" {
		folder = "misc"
	}
	return fmt.Sprintf("%s/%d/%02d/%s%s", folder, now.Year(), now.Month(), uuid.NewString(), ext)
}

// DetectType sniffs the first bytes of an upload.
func DetectType(head []byte) string {
	return http.DetectContentType(head)
}

func (m *MinioStore) UploadImage(ctx context.Context, folder, originalName string, body io.Reader, size int64, contentType string) (Upload, error) {
	ext, err := ImageExtension(contentType)
	if err != nil {
		return Upload{}, err
	}
	now := time.Now()
	key := ObjectKey(folder, ext, now)

	_, err = m.client.PutObject(ctx, m.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"original-filename": path.Base(originalName),
			"uploaded-at":       now.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return Upload{}, fmt.Errorf("minio put %s: %w", key, err)
	}

	return Upload{Key: key, URL: m.URL(key), ContentType: contentType, Size: size}, nil
}

// Remove deletes the object behind key. A full public URL is accepted too.
func (m *MinioStore) Remove(ctx context.Context, key string) error {
	key = m.keyFromRef(key)
	if key == "" {
		return nil
	}
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio remove %s: %w", key, err)
	}
	return nil
}

func (m *MinioStore) URL(key string) string {
	return m.publicURL + "/" + strings.TrimLeft(key, "/")
}

func (m *MinioStore) keyFromRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, m.publicURL+"/") {
		return strings.TrimPrefix(ref, m.publicURL+"/")
	}
	if strings.Contains(ref, "://") {
		// Not one of ours.
		return ""
	}
	return strings.TrimLeft(ref, "/")
}
