package imageprocessor_test

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ManuelReschke/PerkFox/internal/pkg/imageprocessor"
)

func TestReadOrientationWithoutExif(t *testing.T) {
	assert.Equal(t, 1, imageprocessor.ReadOrientation(encodePNG(t, 4, 4)))
	assert.Equal(t, 1, imageprocessor.ReadOrientation([]byte("not an image")))
}

func TestApplyOrientation(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 2))

	tests := []struct {
		orientation int
		w, h        int
	}{
		{1, 4, 2},
		{2, 4, 2},
		{3, 4, 2},
		{4, 4, 2},
		{5, 2, 4},
		{6, 2, 4},
		{7, 2, 4},
		{8, 2, 4},
		{0, 4, 2},
	}

	for _, tt := range tests {
		out := imageprocessor.ApplyOrientation(src, tt.orientation)
		assert.Equal(t, tt.w, out.Bounds().Dx(), "orientation %d", tt.orientation)
		assert.Equal(t, tt.h, out.Bounds().Dy(), "orientation %d", tt.orientation)
	}
}
