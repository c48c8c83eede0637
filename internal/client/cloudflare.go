package client

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// immutableCacheControl is set on uploaded samples. Sample keys are derived
// from their content, so an object never changes once written.
const immutableCacheControl = "public, max-age=31536000, immutable"

// CloudflareClient stores sample audio in a Cloudflare R2 bucket through
// R2's S3-compatible API.
type CloudflareClient struct {
	s3        *s3.Client
	bucket    string
	publicURL string
}

// NewCloudflareClient creates an R2 client. publicURL is the bucket's public
// (r2.dev or custom domain) base; when empty, URLs point at the S3 endpoint.
func NewCloudflareClient(ctx context.Context, accessKeyID, secretKey, endpoint, bucketName, publicURL string) (*CloudflareClient, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 credentials: %w", err)
	}

	base := publicURL
	if base == "" {
		if base, err = url.JoinPath(endpoint, bucketName); err != nil {
			return nil, fmt.Errorf("invalid R2 endpoint %q: %w", endpoint, err)
		}
	}

	return &CloudflareClient{
		s3: s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}),
		bucket:    bucketName,
		publicURL: base,
	}, nil
}

// Put uploads data under key and returns the URL it is served from.
func (c *CloudflareClient) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String(immutableCacheControl),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to R2: %w", key, err)
	}
	return url.JoinPath(c.publicURL, key)
}

// Ping checks that the bucket exists and the credentials can reach it.
func (c *CloudflareClient) Ping(ctx context.Context) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	return err
}
