package downloads

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayStart(t *testing.T) {
	t.Run("floors to start of UTC day", func(t *testing.T) {
		at := time.Date(2026, 3, 14, 15, 9, 26, 535000000, time.UTC)
		want := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC).UnixMilli()
		assert.Equal(t, want, DayStart(at))
	})

	t.Run("idempotent on day boundaries", func(t *testing.T) {
		midnight := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, midnight.UnixMilli(), DayStart(midnight))
	})

	t.Run("never exceeds the input timestamp", func(t *testing.T) {
		at := time.Date(2026, 1, 1, 0, 0, 0, 1000000, time.UTC)
		assert.LessOrEqual(t, DayStart(at), at.UnixMilli())
	})

	t.Run("monotonic over increasing inputs", func(t *testing.T) {
		base := time.Date(2026, 3, 13, 22, 0, 0, 0, time.UTC)
		prev := DayStart(base)
		for i := 1; i <= 8; i++ {
			cur := DayStart(base.Add(time.Duration(i) * time.Hour))
			assert.GreaterOrEqual(t, cur, prev)
			prev = cur
		}
	})

	t.Run("same day same bucket regardless of local zone", func(t *testing.T) {
		utc := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
		shifted := utc.In(time.FixedZone("XYZ", -5*3600))
		assert.Equal(t, DayStart(utc), DayStart(shifted))
	})

	t.Run("consecutive days differ by exactly one day", func(t *testing.T) {
		day1 := time.Date(2026, 3, 14, 23, 59, 59, 0, time.UTC)
		day2 := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, int64(dayMillis), DayStart(day2)-DayStart(day1))
	})
}
