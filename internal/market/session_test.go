package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPreviousSession(t *testing.T) {
	brt := time.FixedZone("BRT", -3*3600)
	cases := []struct {
		name string
		now  time.Time
		want string
	}{
		{"monday rolls back to friday", time.Date(2024, 1, 8, 10, 0, 0, 0, brt), "2024-01-05"},
		{"tuesday", time.Date(2024, 1, 9, 10, 0, 0, 0, brt), "2024-01-08"},
		{"wednesday", time.Date(2024, 1, 10, 9, 30, 0, 0, brt), "2024-01-09"},
		{"saturday", time.Date(2024, 1, 6, 12, 0, 0, 0, brt), "2024-01-05"},
		{"sunday", time.Date(2024, 1, 7, 23, 59, 0, 0, brt), "2024-01-05"},
		{"month boundary", time.Date(2024, 3, 1, 8, 0, 0, 0, brt), "2024-02-29"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PreviousSession(tc.now)
			require.Equal(t, tc.want, SessionDate(got))
			require.Equal(t, brt, got.Location())
			require.Zero(t, got.Hour())
		})
	}
}

func TestPreviousSession_UsesCallerZone(t *testing.T) {
	// Tuesday 01:00 UTC is still Monday evening in Sao Paulo.
	now := time.Date(2024, 1, 9, 1, 0, 0, 0, time.UTC)
	require.Equal(t, "2024-01-08", SessionDate(PreviousSession(now)))
	require.Equal(t, "2024-01-05", SessionDate(PreviousSession(now.In(time.FixedZone("BRT", -3*3600)))))
}
