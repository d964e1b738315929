package s3backup

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ManuelReschke/PerkFox/internal/pkg/env"
)

// Config holds the object storage settings for mirrored partner logos
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads S3 configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-west-001"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("S3_BACKUP_ENABLED", "false") == "true",
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the required fields when mirroring is enabled
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.AccessKeyID == "" {
		return errors.New("S3_ACCESS_KEY_ID is required when S3 backup is enabled")
	}
	if c.SecretAccessKey == "" {
		return errors.New("S3_SECRET_ACCESS_KEY is required when S3 backup is enabled")
	}
	if c.BucketName == "" {
		return errors.New("S3_BUCKET_NAME is required when S3 backup is enabled")
	}
	return nil
}

// IsEnabled returns true if S3 backup is enabled
func (c *Config) IsEnabled() bool {
	return c != nil && c.Enabled
}

// LogoObjectKey generates the object key of a logo file.
// Format: logos/<dealID>/<file name>
func (c *Config) LogoObjectKey(dealID uint, fileName string) string {
	return fmt.Sprintf("logos/%d/%s", dealID, strings.TrimLeft(fileName, "/"))
}

// GetAppEnv returns the current application environment
func GetAppEnv() string {
	return env.GetEnv("APP_ENV", "dev")
}

// GetBucketName returns the bucket name as configured
func (c *Config) GetBucketName() string {
	return c.BucketName
}
