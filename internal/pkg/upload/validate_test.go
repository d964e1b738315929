package upload

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

var pngHead = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

func TestValidateImageBySniff(t *testing.T) {
	mime, err := ValidateImageBySniff("logo.PNG", pngHead)
	assert.NoError(t, err)
	assert.Equal(t, "image/png", mime)

	_, err = ValidateImageBySniff("logo.bmp", pngHead)
	assert.ErrorIs(t, err, ErrUnsupportedExtension)

	_, err = ValidateImageBySniff("logo.png", []byte("<!DOCTYPE html><html></html>"))
	assert.ErrorIs(t, err, ErrScriptableContent)

	_, err = ValidateImageBySniff("logo.png", []byte("<?xml version=\"1.0\"?><svg/>"))
	assert.ErrorIs(t, err, ErrSVGNotSupported)

	_, err = ValidateImageBySniff("logo.jpg", []byte("plain text content"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestValidateLogoSize(t *testing.T) {
	_, err := ValidateLogo("logo.png", nil)
	assert.ErrorIs(t, err, ErrEmpty)

	big := append(append([]byte{}, pngHead...), bytes.Repeat([]byte{0}, MaxLogoSize)...)
	_, err = ValidateLogo("logo.png", big)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestIsRejected(t *testing.T) {
	_, err := ValidateLogo("logo.svg", []byte("<svg/>"))
	assert.True(t, IsRejected(err))
	assert.False(t, IsRejected(nil))
	assert.False(t, IsRejected(assert.AnError))
}
