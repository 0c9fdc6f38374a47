package fulfillment

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// SigV4 presigned URLs cannot outlive a week.
const maxPresignTTL = 7 * 24 * time.Hour

// S3Links signs time-limited GET URLs for objects in the download bucket.
type S3Links struct {
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
}

func NewS3Links(ctx context.Context, cfg config.S3, ttl time.Duration) (*S3Links, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	if ttl <= 0 || ttl > maxPresignTTL {
		ttl = maxPresignTTL
	}
	return &S3Links{presign: s3.NewPresignClient(client), bucket: cfg.Bucket, ttl: ttl}, nil
}

func (l *S3Links) URL(ctx context.Context, objectKey string) (string, error) {
	req, err := l.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(l.ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectKey, err)
	}
	return req.URL, nil
}

// StaticLinks serves objects from a public base URL.
type StaticLinks struct {
	BaseURL string
}

func (l StaticLinks) URL(_ context.Context, objectKey string) (string, error) {
	if l.BaseURL == "" {
		return "", fmt.Errorf("no download base url for %s", objectKey)
	}
	parts := strings.Split(objectKey, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.TrimRight(l.BaseURL, "/") + "/" + strings.Join(parts, "/"), nil
}
