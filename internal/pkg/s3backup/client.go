package s3backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v2/log"
)

// Client mirrors processed partner logos to an S3-compatible bucket
type Client struct {
	s3Client *s3.Client
	config   *Config
}

// NewClient creates a new S3 client and checks that the bucket is reachable
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("S3 backup is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// S3-compatible providers expect path-style URLs
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	client := &Client{
		s3Client: s3Client,
		config:   cfg,
	}

	if err := client.testConnection(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to S3: %w", err)
	}

	log.Infof("[S3Backup] Successfully initialized S3 client for bucket: %s", cfg.GetBucketName())
	return client, nil
}

// testConnection checks that the bucket exists
func (c *Client) testConnection(ctx context.Context) error {
	bucketName := c.config.GetBucketName()

	_, err := c.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucketName),
	})
	if err != nil {
		if GetAppEnv() != "prod" {
			log.Warnf("[S3Backup] Bucket %s not found, attempting to create it", bucketName)
			return c.createBucket(ctx, bucketName)
		}
		return fmt.Errorf("bucket %s not accessible: %w", bucketName, err)
	}

	return nil
}

// Ping checks that the bucket is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.config.GetBucketName()),
	})
	return err
}

// createBucket creates a new S3 bucket (dev/staging only)
func (c *Client) createBucket(ctx context.Context, bucketName string) error {
	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	}

	// AWS regions other than us-east-1 need a location constraint, custom endpoints don't
	if c.config.EndpointURL == "" && c.config.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.config.Region),
		}
	}

	if _, err := c.s3Client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucketName, err)
	}

	log.Infof("[S3Backup] Successfully created bucket: %s", bucketName)
	return nil
}

// MirrorLogo uploads a processed logo file of the given deal
func (c *Client) MirrorLogo(ctx context.Context, dealID uint, localFilePath string) error {
	key := c.config.LogoObjectKey(dealID, filepath.Base(localFilePath))
	_, err := c.UploadFile(ctx, localFilePath, key)
	return err
}

// UploadFile uploads a file to S3
func (c *Client) UploadFile(ctx context.Context, localFilePath, objectKey string) (*UploadResult, error) {
	bucketName := c.config.GetBucketName()

	file, err := os.Open(localFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", localFilePath, err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info for %s: %w", localFilePath, err)
	}

	contentType := ContentType(filepath.Ext(localFilePath))

	log.Infof("[S3Backup] Starting upload: %s -> s3://%s/%s (Size: %d bytes)",
		localFilePath, bucketName, objectKey, fileInfo.Size())

	_, err = c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucketName),
		Key:           aws.String(objectKey),
		Body:          file,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(fileInfo.Size()),
		Metadata: map[string]string{
			"upload-source": "perkfox-logo",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Infof("[S3Backup] Successfully uploaded: s3://%s/%s", bucketName, objectKey)
	return &UploadResult{
		BucketName:  bucketName,
		ObjectKey:   objectKey,
		Size:        fileInfo.Size(),
		ContentType: contentType,
	}, nil
}

// DeleteFile deletes a file from S3
func (c *Client) DeleteFile(ctx context.Context, objectKey string) error {
	bucketName := c.config.GetBucketName()

	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}

	log.Infof("[S3Backup] Successfully deleted: s3://%s/%s", bucketName, objectKey)
	return nil
}

// UploadResult contains the result of a successful upload
type UploadResult struct {
	BucketName  string
	ObjectKey   string
	Size        int64
	ContentType string
}

// ContentType returns the MIME type based on file extension
func ContentType(ext string) string {
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
