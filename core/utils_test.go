package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToday(t *testing.T) {
	origNow, origLoc := NowFunc, Location
	t.Cleanup(func() { NowFunc, Location = origNow, origLoc })

	// 2024-04-01 02:00 in Dhaka
	NowFunc = func() time.Time { return time.Date(2024, time.March, 31, 20, 0, 0, 0, time.UTC) }
	tests := []struct {
		name string
		loc  *time.Location
		want time.Time
	}{
		{name: "utc", loc: time.UTC, want: time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)},
		{name: "dhaka", loc: time.FixedZone("Asia/Dhaka", 6*60*60), want: time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Location = tt.loc
			assert.Equal(t, tt.want, Today())
		})
	}
}

func TestDateOf(t *testing.T) {
	origLoc := Location
	t.Cleanup(func() { Location = origLoc })
	Location = time.FixedZone("America/New_York", -4*60*60)

	stored := time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, stored, DateOf(stored), "stored dates keep their day")
	assert.Equal(t, stored, DateOf(time.Date(2024, time.May, 10, 23, 30, 0, 0, time.FixedZone("", 6*60*60))))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héllo", Truncate("héllo", 10))
	assert.Equal(t, "h", Truncate("héllo", 2), "does not split a rune")
	assert.Equal(t, "", Truncate("héllo", 0))
}
