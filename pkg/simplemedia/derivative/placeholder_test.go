package derivative_test

import (
	"bytes"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/derivative"
)

func TestPlaceholder_RenderThumbnail(t *testing.T) {
	var renderer simplemedia.ThumbnailRenderer = derivative.NewPlaceholder()

	data, err := renderer.RenderThumbnail("Factory tour")
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1280, cfg.Width)
	assert.Equal(t, 720, cfg.Height)
}

func TestPlaceholder_LabelChangesOutput(t *testing.T) {
	p := derivative.NewPlaceholder()
	a, err := p.RenderThumbnail("A")
	require.NoError(t, err)
	b, err := p.RenderThumbnail("Completely different label")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
