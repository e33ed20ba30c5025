package helper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "wristband.events/wristband/guestsheet/v1"
)

func TestParseAttendanceCSV(t *testing.T) {
	input := strings.Join([]string{
		"guestId,station,timestamp",
		"42,reception,2026-08-29T09:00:00Z",
		"7,workshop,10:15:30",
	}, "\n")

	updates, err := ParseAttendanceCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []v1.AttendanceUpdate{
		{GuestID: 42, Station: "reception", Value: "09:00:00"},
		{GuestID: 7, Station: "workshop", Value: "10:15:30"},
	}, updates)
}

func TestParseAttendanceCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"short row", "guestId,station,timestamp\n42,reception"},
		{"bad guest id", "guestId,station,timestamp\nforty-two,reception,09:00:00"},
		{"empty station", "guestId,station,timestamp\n42,,09:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAttendanceCSV(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestParseAttendanceCSVHeaderOnly(t *testing.T) {
	updates, err := ParseAttendanceCSV(strings.NewReader("guestId,station,timestamp\n"))
	require.NoError(t, err)
	assert.Empty(t, updates)
}
