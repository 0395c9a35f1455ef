package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/zhou-shi/pentama-app/internal/config"
)

// OSSStore keeps thesis files in an Aliyun OSS bucket.
type OSSStore struct {
	bucket     *oss.Bucket
	bucketName string
	endpoint   string
	publicBase string
	logger     *zap.Logger
}

func NewOSSStore(cfg *config.AppConfig, logger *zap.Logger) (*OSSStore, error) {
	o := cfg.OSS
	if o.Endpoint == "" || o.AccessKeyID == "" || o.AccessKeySecret == "" || o.Bucket == "" {
		return nil, errors.New("OSS_ENDPOINT, OSS_ACCESS_KEY, OSS_SECRET_KEY and OSS_BUCKET must be set")
	}
	endpoint := normalizeEndpoint(o.Endpoint)
	client, err := oss.New(endpoint, o.AccessKeyID, o.AccessKeySecret)
	if err != nil {
		return nil, errors.Wrap(err, "oss client")
	}
	bucket, err := client.Bucket(o.Bucket)
	if err != nil {
		return nil, errors.Wrapf(err, "oss bucket %s", o.Bucket)
	}
	logger.Info("OSS storage ready", zap.String("bucket", o.Bucket), zap.String("endpoint", endpoint))
	return &OSSStore{
		bucket:     bucket,
		bucketName: o.Bucket,
		endpoint:   endpoint,
		publicBase: strings.TrimRight(o.PublicBaseURL, "/"),
		logger:     logger,
	}, nil
}

func (s *OSSStore) Upload(ctx context.Context, key string, r io.Reader, contentType string) (Object, error) {
	opts := []oss.Option{oss.WithContext(ctx), oss.ObjectACL(oss.ACLPublicRead)}
	if contentType != "" {
		opts = append(opts, oss.ContentType(contentType))
	}
	if err := s.bucket.PutObject(key, r, opts...); err != nil {
		return Object{}, errors.Wrapf(err, "upload %s", key)
	}
	return Object{Key: key, URL: s.PublicURL(key)}, nil
}

func (s *OSSStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return errors.Wrapf(s.bucket.DeleteObject(key, oss.WithContext(ctx)), "delete %s", key)
}

// PublicURL returns the fetchable URL of key.
func (s *OSSStore) PublicURL(key string) string {
	if s.publicBase != "" {
		return s.publicBase + "/" + key
	}
	host := strings.TrimPrefix(strings.TrimPrefix(s.endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/%s", s.bucketName, host, key)
}

func normalizeEndpoint(ep string) string {
	ep = strings.TrimSpace(ep)
	if !strings.HasPrefix(ep, "http://") && !strings.HasPrefix(ep, "https://") {
		ep = "https://" + ep
	}
	return strings.TrimRight(ep, "/")
}
