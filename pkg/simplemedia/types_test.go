package simplemedia_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

func TestNormalizeFlags(t *testing.T) {
	got := simplemedia.NormalizeFlags([]simplemedia.Flag{" Home_Slider", "featured", "", "home_slider", "FEATURED"})
	assert.Equal(t, []simplemedia.Flag{"featured", "home_slider"}, got)
	assert.Empty(t, simplemedia.NormalizeFlags(nil))
}

func TestParseIntendedUse(t *testing.T) {
	tests := []struct {
		in   string
		want simplemedia.IntendedUse
		ok   bool
	}{
		{"", simplemedia.UseGeneral, true},
		{"HERO", simplemedia.UseHero, true},
		{"slider", simplemedia.UseSlider, true},
		{"banner", "", false},
	}
	for _, tt := range tests {
		got, ok := simplemedia.ParseIntendedUse(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.True(t, simplemedia.UseHero.RequiresWidescreen())
	assert.True(t, simplemedia.UseSlider.RequiresWidescreen())
	assert.False(t, simplemedia.UseGeneral.RequiresWidescreen())
}

func TestMediaAsset_Helpers(t *testing.T) {
	m := &simplemedia.MediaAsset{
		OwnerType: simplemedia.OwnerDivision,
		OwnerID:   7,
		Source:    simplemedia.MediaSourceUpload,
		Flags:     []simplemedia.Flag{simplemedia.FlagHomeSlider},
	}
	assert.Equal(t, simplemedia.Owner{Type: simplemedia.OwnerDivision, ID: 7}, m.Owner())
	assert.True(t, m.HasFlag(simplemedia.FlagHomeSlider))
	assert.False(t, m.HasFlag(simplemedia.FlagFeatured))
	assert.True(t, m.IsStored())

	m.Source = simplemedia.MediaSourceEmbed
	assert.False(t, m.IsStored())
}

func TestGenerateResult_Paths(t *testing.T) {
	r := &simplemedia.GenerateResult{
		PrimaryPath:  "d/a.jpg",
		VariantPaths: []string{"d/a_768w.jpg"},
	}
	assert.Equal(t, []string{"d/a.jpg", "d/a_768w.jpg"}, r.Paths())

	r.AlternatePath = "d/a.webp"
	assert.Equal(t, []string{"d/a.jpg", "d/a_768w.jpg", "d/a.webp"}, r.Paths())
}

func TestErrors(t *testing.T) {
	verr := simplemedia.Reject(simplemedia.RejectTooNarrow, "width %d below %d", 1000, 1200)
	wrapped := fmt.Errorf("upload: %w", verr)

	assert.ErrorIs(t, wrapped, simplemedia.ErrValidationRejected)
	reason, ok := simplemedia.RejectReasonOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, simplemedia.RejectTooNarrow, reason)
	assert.Equal(t, "upload rejected (too_narrow): width 1000 below 1200", verr.Error())

	_, ok = simplemedia.RejectReasonOf(errors.New("other"))
	assert.False(t, ok)

	id := uuid.New()
	merr := &simplemedia.MediaError{MediaID: id, Op: "delete", Err: simplemedia.ErrMediaNotFound}
	assert.ErrorIs(t, merr, simplemedia.ErrMediaNotFound)
	assert.Contains(t, merr.Error(), id.String())

	serr := &simplemedia.StorageError{Backend: "fallback", Key: "k", Op: "upload", Err: simplemedia.ErrStorageFailure}
	assert.ErrorIs(t, serr, simplemedia.ErrStorageFailure)
}
