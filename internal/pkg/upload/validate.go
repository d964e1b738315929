package upload

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

// MaxLogoSize is the upper bound for an uploaded partner logo.
const MaxLogoSize = 5 << 20

var (
	ErrUnsupportedExtension = errors.New("only the following image formats are supported: JPG, JPEG, PNG, GIF, WEBP")
	ErrScriptableContent    = errors.New("invalid file type: HTML content is not allowed")
	ErrSVGNotSupported      = errors.New("SVG/XML files are not supported")
	ErrUnsupportedType      = errors.New("the file type is not supported")
	ErrTooLarge             = errors.New("the file is too large")
	ErrEmpty                = errors.New("the file is empty")
)

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	// SVG is excluded, it can carry scripts
}

var allowedMime = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ValidateImageBySniff checks the provided filename (extension) and the first bytes (head)
// against a whitelist of image types. Returns detected mime or an error.
func ValidateImageBySniff(filename string, head []byte) (string, error) {
	if len(head) == 0 {
		return "", ErrEmpty
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", ErrUnsupportedExtension
	}

	detected := http.DetectContentType(head)

	// Block obvious scriptable types regardless of extension
	if strings.HasPrefix(detected, "text/html") || strings.HasPrefix(detected, "application/xhtml") {
		return "", ErrScriptableContent
	}
	if strings.HasPrefix(detected, "text/xml") || strings.HasPrefix(detected, "application/xml") || detected == "image/svg+xml" {
		return "", ErrSVGNotSupported
	}

	if allowedMime[detected] {
		return detected, nil
	}

	return "", ErrUnsupportedType
}

// ValidateLogo checks size and content of a complete logo upload.
func ValidateLogo(filename string, data []byte) (string, error) {
	if len(data) > MaxLogoSize {
		return "", ErrTooLarge
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return ValidateImageBySniff(filename, head)
}

// IsRejected reports whether err is one of the validation errors of this
// package, i.e. the upload itself was at fault.
func IsRejected(err error) bool {
	for _, target := range []error{ErrUnsupportedExtension, ErrScriptableContent, ErrSVGNotSupported, ErrUnsupportedType, ErrTooLarge, ErrEmpty} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
