package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"skillhub/internal/registry/models"
)

func TestApplyDeltas(t *testing.T) {
	t.Run("applies positive deltas", func(t *testing.T) {
		got := ApplyDeltas(models.Stats{Downloads: 3}, map[string]int64{
			StatDownloads: 2,
			StatStars:     1,
		})
		assert.Equal(t, int64(5), got.Downloads)
		assert.Equal(t, int64(1), got.Stars)
	})

	t.Run("clamps negative results to zero per counter", func(t *testing.T) {
		got := ApplyDeltas(models.Stats{Stars: 1, Comments: 5}, map[string]int64{
			StatStars:    -3,
			StatComments: -2,
		})
		assert.Equal(t, int64(0), got.Stars)
		assert.Equal(t, int64(3), got.Comments)
	})

	t.Run("ignores unknown keys", func(t *testing.T) {
		before := models.Stats{Downloads: 7}
		got := ApplyDeltas(before, map[string]int64{"bogus": 100})
		assert.Equal(t, before, got)
	})

	t.Run("does not mutate the input", func(t *testing.T) {
		before := models.Stats{Downloads: 7}
		_ = ApplyDeltas(before, map[string]int64{StatDownloads: -100})
		assert.Equal(t, int64(7), before.Downloads)
	})

	t.Run("empty delta map is a no-op", func(t *testing.T) {
		before := models.Stats{Downloads: 1, Stars: 2, Versions: 3}
		assert.Equal(t, before, ApplyDeltas(before, nil))
	})

	t.Run("install counters move independently", func(t *testing.T) {
		got := ApplyDeltas(models.Stats{InstallsCurrent: 2, InstallsAllTime: 10}, map[string]int64{
			StatInstallsCurrent: -1,
		})
		assert.Equal(t, int64(1), got.InstallsCurrent)
		assert.Equal(t, int64(10), got.InstallsAllTime)
	})
}
