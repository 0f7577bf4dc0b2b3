package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/repo/memory"
)

func newAsset(owner simplemedia.Owner, order int, caption string) *simplemedia.MediaAsset {
	return &simplemedia.MediaAsset{
		ID:           uuid.New(),
		OwnerType:    owner.Type,
		OwnerID:      owner.ID,
		Kind:         simplemedia.MediaKindImage,
		Source:       simplemedia.MediaSourceUpload,
		PrimaryPath:  "media/division/2024/06/" + caption + ".jpg",
		Caption:      caption,
		DisplayOrder: order,
		Flags:        []simplemedia.Flag{simplemedia.FlagFeatured},
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

func TestMemoryRepository_MediaOperations(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	owner := simplemedia.Owner{Type: simplemedia.OwnerDivision, ID: 7}

	t.Run("CreateAndGet", func(t *testing.T) {
		asset := newAsset(owner, 1, "first")
		require.NoError(t, repo.CreateMedia(ctx, asset))

		got, err := repo.GetMedia(ctx, asset.ID)
		require.NoError(t, err)
		assert.Equal(t, asset.PrimaryPath, got.PrimaryPath)
		assert.Equal(t, asset.Flags, got.Flags)

		// Returned records are copies.
		got.Flags[0] = "mutated"
		again, err := repo.GetMedia(ctx, asset.ID)
		require.NoError(t, err)
		assert.Equal(t, simplemedia.FlagFeatured, again.Flags[0])
	})

	t.Run("GetMedia_NotFound", func(t *testing.T) {
		got, err := repo.GetMedia(ctx, uuid.New())
		assert.Nil(t, got)
		assert.ErrorIs(t, err, simplemedia.ErrMediaNotFound)
	})

	t.Run("UpdateKeepsOwner", func(t *testing.T) {
		asset := newAsset(owner, 2, "second")
		require.NoError(t, repo.CreateMedia(ctx, asset))

		changed := *asset
		changed.Caption = "renamed"
		changed.OwnerID = 99
		require.NoError(t, repo.UpdateMedia(ctx, &changed))

		got, err := repo.GetMedia(ctx, asset.ID)
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Caption)
		assert.Equal(t, int64(7), got.OwnerID)
	})

	t.Run("UpdateMedia_NotFound", func(t *testing.T) {
		err := repo.UpdateMedia(ctx, newAsset(owner, 1, "ghost"))
		assert.ErrorIs(t, err, simplemedia.ErrMediaNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		asset := newAsset(owner, 3, "third")
		require.NoError(t, repo.CreateMedia(ctx, asset))
		require.NoError(t, repo.DeleteMedia(ctx, asset.ID))

		_, err := repo.GetMedia(ctx, asset.ID)
		assert.ErrorIs(t, err, simplemedia.ErrMediaNotFound)
		assert.ErrorIs(t, repo.DeleteMedia(ctx, asset.ID), simplemedia.ErrMediaNotFound)
	})
}

func TestMemoryRepository_ListOrdering(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	owner := simplemedia.Owner{Type: simplemedia.OwnerProduct, ID: 3}
	other := simplemedia.Owner{Type: simplemedia.OwnerMachine, ID: 3}

	for _, a := range []*simplemedia.MediaAsset{
		newAsset(owner, 2, "b"),
		newAsset(owner, 1, "a"),
		newAsset(owner, 2, "c"),
		newAsset(other, 1, "elsewhere"),
	} {
		require.NoError(t, repo.CreateMedia(ctx, a))
	}

	list, err := repo.ListMediaByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{list[0].Caption, list[1].Caption, list[2].Caption})

	highest, err := repo.MaxDisplayOrder(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, highest)

	none, err := repo.MaxDisplayOrder(ctx, simplemedia.Owner{Type: simplemedia.OwnerMilestone, ID: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, none)

	empty, err := repo.ListMediaByOwner(ctx, simplemedia.Owner{Type: simplemedia.OwnerMilestone, ID: 1})
	require.NoError(t, err)
	assert.Empty(t, empty)
}
