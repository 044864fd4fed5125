package qrcode_test

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/handoff/pkg/qrcode"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	data, err := qrcode.Generate(`{"tokenId":"abc","signature":"def"}`, 128)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}

func TestGenerateValidation(t *testing.T) {
	t.Parallel()

	_, err := qrcode.Generate("", 128)
	assert.ErrorIs(t, err, qrcode.ErrEmptyContent)

	_, err = qrcode.Generate("x", -1)
	assert.ErrorIs(t, err, qrcode.ErrInvalidSize)

	_, err = qrcode.Generate("x", qrcode.MaxSize+1)
	assert.ErrorIs(t, err, qrcode.ErrInvalidSize)
}

func TestGenerateBase64Image(t *testing.T) {
	t.Parallel()

	uri, err := qrcode.GenerateBase64Image("hello", 0)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, qrcode.DefaultSize, img.Bounds().Dx())
}
