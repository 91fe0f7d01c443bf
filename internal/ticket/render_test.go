package ticket

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/require"
)

func TestRendererProducesPNG(t *testing.T) {
	renderer := NewRenderer()
	require.Equal(t, 400, renderer.Size())

	data, err := renderer.PNG([]byte(`{"id":"abc"}`))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 400, img.Bounds().Dx())
}

func TestRendererOptions(t *testing.T) {
	renderer := NewRenderer(WithSize(256), WithRecoveryLevel(qrcode.Medium), WithSize(0))
	require.Equal(t, 256, renderer.Size())

	data, err := renderer.PNG([]byte("code"))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 256, img.Bounds().Dx())
}

func TestRendererRejectsEmptyPayload(t *testing.T) {
	_, err := NewRenderer().PNG(nil)
	require.Error(t, err)
}
