package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginationCursor_Advance(t *testing.T) {
	created := testTime("2024-01-01T00:00:00Z")
	page := SearchPage{Results: []Record{
		testRecord("1", created, testTime("2024-01-02T00:00:00Z"), `{"name":"a"}`),
		testRecord("2", created, testTime("2024-01-03T00:00:00Z"), `{"name":"b"}`),
	}}

	tests := []struct {
		name      string
		nextAfter string
		more      bool
		after     int
	}{
		{"no next page", "", false, 0},
		{"next offset", "100", true, 100},
		{"below limit", "9899", true, 9899},
		{"not a number", "abc", false, 0},
		{"zero", "0", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cursor PaginationCursor
			page.NextAfter = tt.nextAfter
			assert.Equal(t, tt.more, cursor.Advance(page))
			assert.Equal(t, tt.after, cursor.After)
			assert.Nil(t, cursor.LastModifiedDate)
		})
	}
}

func TestPaginationCursor_Rollover(t *testing.T) {
	created := testTime("2024-01-01T00:00:00Z")
	last := testTime("2024-01-03T12:00:00Z")
	page := SearchPage{
		NextAfter: "9900",
		Results: []Record{
			testRecord("1", created, testTime("2024-01-02T00:00:00Z"), `{"name":"a"}`),
			testRecord("2", created, last, `{"name":"b"}`),
		},
	}
	cursor := PaginationCursor{After: 9800}

	require.True(t, cursor.Advance(page))
	assert.Equal(t, 0, cursor.After)
	require.NotNil(t, cursor.LastModifiedDate)
	assert.True(t, last.Equal(*cursor.LastModifiedDate))
	assert.Less(t, cursor.After, 10000)
}

func TestPaginationCursor_RolloverOnEmptyPageStops(t *testing.T) {
	cursor := PaginationCursor{After: 9800}
	assert.False(t, cursor.Advance(SearchPage{NextAfter: "9900"}))
}

func TestPaginationCursor_Window(t *testing.T) {
	now := testTime("2024-01-10T00:00:00Z")
	watermark := testTime("2024-01-05T00:00:00Z")
	rolled := testTime("2024-01-07T00:00:00Z")

	w := PaginationCursor{}.Window(nil, now)
	assert.Nil(t, w.From)
	assert.Equal(t, now, w.To)

	w = PaginationCursor{}.Window(&watermark, now)
	require.NotNil(t, w.From)
	assert.Equal(t, watermark, *w.From)

	w = PaginationCursor{LastModifiedDate: &rolled}.Window(&watermark, now)
	require.NotNil(t, w.From)
	assert.Equal(t, rolled, *w.From)
}
