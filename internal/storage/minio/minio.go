// Package minio implements storage.AvatarStorage on MinIO/S3.
//   - minio.go: client construction (endpoint normalization, creds, bucket check);
//   - avatars.go: presigned PUT issuing and upload confirmation.
package minio

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pribylovaa/training-center/internal/config"
	"github.com/pribylovaa/training-center/internal/storage"
)

// AvatarsStorage is the MinIO adapter for avatars.
type AvatarsStorage struct {
	s3     config.S3Config
	limits config.AvatarConfig
	client *mclient.Client
}

// New builds the client and fails fast when the bucket is missing.
func New(ctx context.Context, s3 config.S3Config, limits config.AvatarConfig) (*AvatarsStorage, error) {
	const op = "storage.minio.New"

	endpoint, secure := normalizeEndpoint(s3.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%s: empty endpoint", op)
	}

	client, err := mclient.New(endpoint, &mclient.Options{
		Creds:  credentials.NewStaticV4(s3.RootUser, s3.RootPassword, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := client.BucketExists(ctx, s3.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !exists {
		return nil, fmt.Errorf("%s: bucket %q does not exist", op, s3.Bucket)
	}

	return &AvatarsStorage{s3: s3, limits: limits, client: client}, nil
}

// normalizeEndpoint strips the scheme minio-go does not accept and derives Secure from it.
func normalizeEndpoint(raw string) (string, bool) {
	endpoint := strings.TrimSpace(raw)
	secure := strings.HasPrefix(endpoint, "https://")

	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Host, u.Scheme == "https"
	}

	return strings.TrimRight(endpoint, "/"), secure
}

var _ storage.AvatarStorage = (*AvatarsStorage)(nil)
