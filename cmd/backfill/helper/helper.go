package helper

import (
	"fmt"
	"io"
	"strconv"

	"wristband.events/wristband/core/scan"
	v1 "wristband.events/wristband/guestsheet/v1"
	"wristband.events/wristband/utils"
)

// ParseAttendanceCSV reads rows of guestId,station,timestamp and turns them
// into ledger updates. The timestamp column accepts the ISO spellings other
// tools export; it is normalized to the clock-time format the sheet uses.
func ParseAttendanceCSV(r io.Reader) ([]v1.AttendanceUpdate, error) {
	rows, err := utils.ParseCSV(r)
	if err != nil {
		return nil, err
	}

	var updates []v1.AttendanceUpdate
	for i, row := range rows {
		if i == 0 {
			continue
		}

		if len(row) < 3 {
			return nil, fmt.Errorf("row %d: expected 3 columns, got %d", i, len(row))
		}

		guestID, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid guest id: %w", i, err)
		}

		station := row[1]
		if station == "" {
			return nil, fmt.Errorf("row %d: empty station", i)
		}

		value := row[2]
		if t, err := utils.ParseISOTime(value); err == nil {
			value = t.Format(scan.TimestampLayout)
		}

		updates = append(updates, v1.AttendanceUpdate{
			GuestID: guestID,
			Station: station,
			Value:   value,
		})
	}

	return updates, nil
}
