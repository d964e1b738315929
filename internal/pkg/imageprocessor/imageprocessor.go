package imageprocessor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"

	"github.com/ManuelReschke/PerkFox/internal/pkg/constants"
	"github.com/ManuelReschke/PerkFox/internal/pkg/env"
	"github.com/ManuelReschke/PerkFox/internal/pkg/upload"
)

const (
	// MaxLogoDimension bounds width and height of a stored logo
	MaxLogoDimension = 512
	// PublicPrefix is the URL prefix the upload directory is served under
	PublicPrefix = constants.UploadsRoute

	logosDir    = "logos"
	webpQuality = 85
)

var ErrInvalidImage = errors.New("image could not be decoded")

// Mirror receives every written logo file, e.g. an S3 bucket.
type Mirror interface {
	MirrorLogo(ctx context.Context, dealID uint, localFilePath string) error
}

// Logo describes the stored files of a processed partner logo
type Logo struct {
	Path     string `json:"path"`
	WebPPath string `json:"webp_path"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	MimeType string `json:"mime_type"`
}

// LogoProcessor validates, orients, resizes and stores partner logos
type LogoProcessor struct {
	baseDir string
	mirror  Mirror
}

// NewLogoProcessor creates a processor writing below baseDir. mirror may be nil.
func NewLogoProcessor(baseDir string, mirror Mirror) *LogoProcessor {
	return &LogoProcessor{baseDir: baseDir, mirror: mirror}
}

// NewLogoProcessorFromEnv uses UPLOAD_DIR as base directory
func NewLogoProcessorFromEnv(mirror Mirror) *LogoProcessor {
	return NewLogoProcessor(env.GetEnv("UPLOAD_DIR", "./"+constants.UploadsPath), mirror)
}

// Process stores the uploaded logo of a deal as PNG plus a WebP variant
func (p *LogoProcessor) Process(ctx context.Context, dealID uint, filename string, data []byte) (*Logo, error) {
	mimeType, err := upload.ValidateLogo(filename, data)
	if err != nil {
		return nil, err
	}

	img, err := decode(mimeType, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	img = ApplyOrientation(img, ReadOrientation(data))
	resized := imaging.Fit(img, MaxLogoDimension, MaxLogoDimension, imaging.Lanczos)

	dir := filepath.Join(p.baseDir, logosDir, fmt.Sprint(dealID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating directory: %w", err)
	}

	name := uuid.NewString()
	pngFile := filepath.Join(dir, name+".png")
	webpFile := filepath.Join(dir, name+".webp")

	if err := imaging.Save(resized, pngFile); err != nil {
		return nil, fmt.Errorf("error saving logo: %w", err)
	}
	if err := saveWebP(resized, webpFile); err != nil {
		_ = os.Remove(pngFile)
		return nil, err
	}

	if p.mirror != nil {
		for _, f := range []string{pngFile, webpFile} {
			if err := p.mirror.MirrorLogo(ctx, dealID, f); err != nil {
				log.Warnf("[LogoProcessor] Mirroring %s failed: %v", f, err)
			}
		}
	}

	bounds := resized.Bounds()
	urlDir := path.Join(PublicPrefix, logosDir, fmt.Sprint(dealID))
	log.Infof("[LogoProcessor] Stored logo for deal %d (%dx%d)", dealID, bounds.Dx(), bounds.Dy())

	return &Logo{
		Path:     path.Join(urlDir, name+".png"),
		WebPPath: path.Join(urlDir, name+".webp"),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		MimeType: mimeType,
	}, nil
}

// Remove deletes the local files of a previously stored logo. Paths outside
// the logo directory are ignored.
func (p *LogoProcessor) Remove(publicPath string) error {
	if !strings.HasPrefix(publicPath, PublicPrefix+"/"+logosDir+"/") {
		return nil
	}
	rel := strings.TrimPrefix(publicPath, PublicPrefix+"/")
	if strings.Contains(rel, "..") {
		return nil
	}

	base := filepath.Join(p.baseDir, filepath.FromSlash(rel))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	for _, ext := range []string{".png", ".webp"} {
		if err := os.Remove(base + ext); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("error removing logo: %w", err)
		}
	}
	return nil
}

func decode(mimeType string, data []byte) (image.Image, error) {
	if mimeType == "image/webp" {
		return webp.Decode(bytes.NewReader(data), &decoder.Options{})
	}
	return imaging.Decode(bytes.NewReader(data))
}

// saveWebP saves an image in WebP format
func saveWebP(img image.Image, outputPath string) error {
	output, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("error creating WebP file: %w", err)
	}
	defer output.Close()

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, webpQuality)
	if err != nil {
		return fmt.Errorf("error creating encoder options: %w", err)
	}

	if err := webp.Encode(output, img, options); err != nil {
		return fmt.Errorf("error encoding WebP image: %w", err)
	}

	return nil
}
