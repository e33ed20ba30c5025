package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wristband.events/wristband/utils"
	v1 "wristband.events/wristband/guestsheet/v1"
)

func testGuests() []v1.GuestDTO {
	return []v1.GuestDTO{
		{
			OriginalID:     1,
			FirstName:      "Ana",
			LastName:       "García",
			MobileNumber:   utils.Ptr("0400000001"),
			WristbandTagID: utils.Ptr("04A1B2C3D4"),
			CheckIns:       map[string]string{"Reception": "09:00", "workshop": ""},
		},
		{
			OriginalID: 2,
			FirstName:  "Ben",
			LastName:   "Okafor",
			CheckIns:   map[string]string{"reception": "", "afterparty": "22:10"},
		},
	}
}

func TestStationsAreLowercasedSortedAndDeduplicated(t *testing.T) {
	stations := Stations(testGuests())
	assert.Equal(t, []string{"afterparty", "reception", "workshop"}, stations)
}

func TestStationsEmpty(t *testing.T) {
	assert.Empty(t, Stations(nil))
}

func TestBuildAttendanceWorkbook(t *testing.T) {
	f, err := BuildAttendanceWorkbook(testGuests())
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"ID", "First Name", "Last Name", "Mobile", "Wristband Tag", "afterparty", "reception", "workshop"}, rows[0])

	// Trailing empty cells may be trimmed by the reader; compare prefixes.
	assert.Equal(t, []string{"1", "Ana", "García", "0400000001", "04A1B2C3D4", "", "09:00"}, rows[1][:7])
	assert.Equal(t, []string{"2", "Ben", "Okafor", "", "", "22:10"}, rows[2][:6])
}

func TestSummarySheetCountsPerStation(t *testing.T) {
	f, err := BuildAttendanceWorkbook(testGuests())
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(summaryName)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, []string{"Station", "Checked In", "Total Guests"}, rows[0])
	assert.Equal(t, []string{"afterparty", "1", "2"}, rows[1])
	assert.Equal(t, []string{"reception", "1", "2"}, rows[2])
	assert.Equal(t, []string{"workshop", "0", "2"}, rows[3])
}

func TestBuildAttendanceWorkbookNoGuests(t *testing.T) {
	f, err := BuildAttendanceWorkbook(nil)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
}
