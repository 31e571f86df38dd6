package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the configuration for S3 publishing.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
	KeyPrefix       string
	// URLTTL is the validity of the presigned GET URL. Zero returns the plain object URL.
	URLTTL time.Duration
}

// S3Publisher uploads finished renders to S3 and returns a retrievable URL.
type S3Publisher struct {
	client   *s3.Client
	presign  *s3.PresignClient
	bucket   string
	region   string
	endpoint string
	prefix   string
	ttl      time.Duration
	now      func() time.Time
}

// Compile-time check that S3Publisher implements Publisher.
var _ Publisher = (*S3Publisher)(nil)

// NewS3Publisher creates a new S3Publisher. The client is long-lived and
// safe for concurrent use.
func NewS3Publisher(ctx context.Context, cfg S3Config) (*S3Publisher, error) {
	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	return &S3Publisher{
		client:   client,
		presign:  s3.NewPresignClient(client),
		bucket:   cfg.Bucket,
		region:   cfg.Region,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		prefix:   strings.Trim(cfg.KeyPrefix, "/"),
		ttl:      cfg.URLTTL,
		now:      time.Now,
	}, nil
}

// ObjectKey returns <prefix>/<YYYYMMDD>/<name> for the given time.
func (p *S3Publisher) ObjectKey(name string, at time.Time) string {
	return path.Join(p.prefix, at.UTC().Format("20060102"), name)
}

// Publish uploads the file at localPath and returns a presigned GET URL,
// or the plain object URL when no TTL is configured.
func (p *S3Publisher) Publish(ctx context.Context, localPath, contentType string) (string, error) {
	f, err := os.Open(localPath) // #nosec G304 - path is a workspace file
	if err != nil {
		return "", fmt.Errorf("open upload file: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat upload file: %w", err)
	}

	key := p.ObjectKey(filepath.Base(localPath), p.now())

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload to S3: %w", err)
	}

	if p.ttl <= 0 {
		return p.objectURL(key), nil
	}

	req, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return "", fmt.Errorf("presign object URL: %w", err)
	}
	return req.URL, nil
}

func (p *S3Publisher) objectURL(key string) string {
	if p.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", p.endpoint, p.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.bucket, p.region, key)
}
