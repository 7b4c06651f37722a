package qr

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPNG(t *testing.T) {
	b, err := PNG("6f1c1c55-8f57-4c8e-9d59-0f3b0c5b7a11", 0)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, img.Bounds().Dx())
	assert.Equal(t, DefaultSize, img.Bounds().Dy())
}

func TestPNGEmptyToken(t *testing.T) {
	_, err := PNG("", 128)
	assert.Error(t, err)
}
