package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDay(t *testing.T, value string) Day {
	t.Helper()
	d, err := ParseDay(value)
	require.NoError(t, err)
	return d
}

func TestParseListingDay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
	}{
		{"Fri, 8 Mar 2024", "2024/03/08"},
		{"Fri, 08 Mar 2024 (showing first 25 of 310 entries )", "2024/03/08"},
		{"Thu, 6 Jun 2024", "2024/06/06"},
		{"Thu, 6 June 2024", "2024/06/06"},
		{"Tue, 3 Sept 2024", "2024/09/03"},
		{"Mon, 2 dec. 2024", "2024/12/02"},
		{"  Wed, 31 January 2024", "2024/01/31"},
		{"Mi, 7 Feb 2024", "2024/02/07"},
		{"7 Feb 2024", "2024/02/07"},
	}

	for _, tc := range tests {
		t.Run(tc.header, func(t *testing.T) {
			t.Parallel()
			got, err := ParseListingDay(tc.header)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
		})
	}
}

func TestParseListingDayRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, header := range []string{"", "New submissions", "Fri, 8 Mär 2024", "Fri, 31 Feb 2024"} {
		_, err := ParseListingDay(header)
		assert.Error(t, err, header)
	}
}

func TestDayJSON(t *testing.T) {
	t.Parallel()

	d := mustDay(t, "2024/03/09")
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `"2024/03/09"`, string(raw))

	var back Day
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, d, back)

	var legacy Day
	require.NoError(t, json.Unmarshal([]byte(`"Sat, 09 Mar 2024"`), &legacy))
	assert.Equal(t, d, legacy)
}

func TestDayOfIgnoresClock(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("JST", 9*3600)
	d := DayOf(time.Date(2024, 3, 9, 23, 59, 0, 0, loc))
	assert.Equal(t, "2024/03/09", d.String())
}
