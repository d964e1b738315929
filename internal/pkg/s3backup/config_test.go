package s3backup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, (&Config{}).Validate())

	cfg := &Config{Enabled: true, AccessKeyID: "key", SecretAccessKey: "secret"}
	assert.EqualError(t, cfg.Validate(), "S3_BUCKET_NAME is required when S3 backup is enabled")

	cfg.BucketName = "logos"
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.IsEnabled())

	var missing *Config
	assert.False(t, missing.IsEnabled())
}

func TestLogoObjectKey(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, "logos/7/abc.webp", cfg.LogoObjectKey(7, "abc.webp"))
	assert.Equal(t, "logos/7/abc.png", cfg.LogoObjectKey(7, "/abc.png"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/webp", ContentType(".webp"))
	assert.Equal(t, "image/jpeg", ContentType(".jpeg"))
	assert.Equal(t, "application/octet-stream", ContentType(".bin"))
}
