// Package objectstore stores generated documents (receipts) in Aliyun OSS.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"go.uber.org/zap"
)

// ErrObjectNotFound is returned when a key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// Config locates the bucket.
type Config struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	PublicBase string
	Prefix     string
}

// OSSStore writes and reads objects in one bucket.
type OSSStore struct {
	bucket     *oss.Bucket
	endpoint   string
	bucketName string
	publicBase string
	prefix     string
}

// NewOSSStore connects to the bucket and checks it is reachable.
func NewOSSStore(cfg Config, logger *zap.Logger) (*OSSStore, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("oss endpoint, access key, secret key and bucket are required")
	}

	client, err := oss.New(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("oss.New: %w", err)
	}

	bkt, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("client.Bucket: %w", err)
	}

	// Location lookup doubles as a reachability check. AccessDenied is tolerated
	// for keys scoped to object operations.
	if loc, err := client.GetBucketLocation(cfg.Bucket); err != nil {
		var se oss.ServiceError
		if errors.As(err, &se) && se.StatusCode == 403 && se.Code == "AccessDenied" {
			logger.Warn("skipping oss location check", zap.String("bucket", cfg.Bucket))
		} else {
			return nil, fmt.Errorf("verify bucket: %w", err)
		}
	} else {
		logger.Info("oss bucket ready", zap.String("bucket", cfg.Bucket), zap.String("location", loc))
	}

	return &OSSStore{
		bucket:     bkt,
		endpoint:   cfg.Endpoint,
		bucketName: cfg.Bucket,
		publicBase: strings.TrimRight(strings.TrimSpace(cfg.PublicBase), "/"),
		prefix:     strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Key joins the store prefix with name.
func (s *OSSStore) Key(name string) string {
	name = strings.TrimLeft(name, "/")
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// Put uploads r under key and returns its public URL.
func (s *OSSStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty key")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	opts := []oss.Option{
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentDisposition("inline"),
		oss.CacheControl("private, max-age=31536000, immutable"),
	}
	if err := s.bucket.PutObject(key, r, opts...); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.PublicURL(key), nil
}

// Get opens the object stored under key.
func (s *OSSStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	body, err := s.bucket.GetObject(key, oss.WithContext(ctx))
	if err != nil {
		var se oss.ServiceError
		if errors.As(err, &se) && (se.StatusCode == 404 || se.Code == "NoSuchKey") {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	return body, nil
}

// PublicURL builds the URL clients use to fetch key.
func (s *OSSStore) PublicURL(key string) string {
	if key == "" {
		return ""
	}
	return s.baseURL() + key
}

// KeyFromURL reverses PublicURL. ok is false for URLs this store did not issue.
func (s *OSSStore) KeyFromURL(publicURL string) (string, bool) {
	base := s.baseURL()
	if !strings.HasPrefix(publicURL, base) {
		return "", false
	}
	return strings.TrimPrefix(publicURL, base), true
}

func (s *OSSStore) baseURL() string {
	if s.publicBase != "" {
		return s.publicBase + "/"
	}
	end := strings.TrimPrefix(strings.TrimPrefix(s.endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/", s.bucketName, end)
}
