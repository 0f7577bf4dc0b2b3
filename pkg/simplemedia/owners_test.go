package simplemedia_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia"
	repomemory "github.com/tendant/simple-media/pkg/simplemedia/repo/memory"
)

func TestParseOwnerType(t *testing.T) {
	tests := []struct {
		in      string
		want    simplemedia.OwnerType
		wantErr bool
	}{
		{in: "Division", want: simplemedia.OwnerDivision},
		{in: "division", want: simplemedia.OwnerDivision},
		{in: " MILESTONE ", want: simplemedia.OwnerMilestone},
		{in: "technology", want: simplemedia.OwnerTechnology},
		{in: "warehouse", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := simplemedia.ParseOwnerType(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, simplemedia.ErrUnknownOwnerType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOwnerType_Slug(t *testing.T) {
	assert.Equal(t, "division", simplemedia.OwnerDivision.Slug())
	assert.Equal(t, "machine", simplemedia.OwnerMachine.Slug())
}

func TestDefaultOwnerRegistry(t *testing.T) {
	ctx := context.Background()
	repo := repomemory.New()
	reg := simplemedia.DefaultOwnerRegistry(repo)

	assert.Equal(t, simplemedia.KnownOwnerTypes, reg.Types())

	h, err := reg.Handler(simplemedia.OwnerProduct)
	require.NoError(t, err)

	n, err := h.MaxDisplayOrder(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, repo.CreateMedia(ctx, &simplemedia.MediaAsset{
		OwnerType: simplemedia.OwnerProduct, OwnerID: 3, DisplayOrder: 5,
	}))
	n, err = h.MaxDisplayOrder(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	name, err := h.DisplayName(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Product #3", name)

	_, err = reg.Handler("Warehouse")
	assert.ErrorIs(t, err, simplemedia.ErrUnknownOwnerType)
}

func TestNewOwnerRegistry_Custom(t *testing.T) {
	repo := repomemory.New()
	reg := simplemedia.NewOwnerRegistry(map[simplemedia.OwnerType]simplemedia.OwnerHandler{
		"Warehouse":               simplemedia.NewRepositoryOwnerHandler(repo, "Warehouse"),
		simplemedia.OwnerDivision: simplemedia.NewRepositoryOwnerHandler(repo, simplemedia.OwnerDivision),
	})
	assert.Equal(t, []simplemedia.OwnerType{simplemedia.OwnerDivision, "Warehouse"}, reg.Types())
	_, err := reg.Handler(simplemedia.OwnerProduct)
	assert.Error(t, err)
}
