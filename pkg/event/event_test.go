package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInstant(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "UTC marker",
			input: "2024-01-05T10:00:00Z",
			want:  time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "Explicit positive offset is converted to UTC",
			input: "2024-01-05T12:00:00+02:00",
			want:  time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "Explicit negative offset is converted to UTC",
			input: "2024-01-05T05:00:00-05:00",
			want:  time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "Missing zone designator is assumed UTC",
			input: "2024-01-05T10:00:00",
			want:  time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
		},
		{
			name:    "Garbage input",
			input:   "not-a-timestamp",
			wantErr: true,
		},
		{
			name:    "Empty input",
			input:   "",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseInstant(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "expected %v, got %v", tc.want, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestValidate(t *testing.T) {
	start := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)

	valid := Event{ID: "abc", Title: "Dentist", StartTime: start}
	assert.NoError(t, valid.Validate())

	missingID := Event{Title: "Dentist", StartTime: start}
	assert.ErrorIs(t, missingID.Validate(), ErrMissingID)

	missingStart := Event{ID: "abc", Title: "Dentist"}
	assert.ErrorIs(t, missingStart.Validate(), ErrMissingStart)
}

func TestNormalized(t *testing.T) {
	warsaw := time.FixedZone("CET", 3600)
	e := Event{
		ID:        "abc",
		StartTime: time.Date(2024, 1, 5, 11, 0, 0, 0, warsaw),
		EndTime:   time.Date(2024, 1, 5, 12, 0, 0, 0, warsaw),
	}

	n := e.Normalized()

	assert.Equal(t, time.UTC, n.StartTime.Location())
	assert.Equal(t, time.UTC, n.EndTime.Location())
	assert.True(t, e.StartTime.Equal(n.StartTime))
	assert.True(t, e.EndTime.Equal(n.EndTime))
}
