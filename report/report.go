// Package report renders a ledger snapshot as an attendance spreadsheet:
// one row per guest, the fixed identity columns, then one column per
// station. Stations are discovered from the data, never hardcoded.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"wristband.events/wristband/utils"
	v1 "wristband.events/wristband/guestsheet/v1"
)

const (
	sheetName   = "Attendance"
	summaryName = "Summary"
)

// Stations collects every station column seen across the guest list, sorted
// for a stable layout.
func Stations(guests []v1.GuestDTO) []string {
	seen := map[string]bool{}
	var stations []string

	for _, g := range guests {
		for station := range g.CheckIns {
			key := strings.ToLower(station)
			if !seen[key] {
				seen[key] = true
				stations = append(stations, key)
			}
		}
	}

	sort.Strings(stations)
	return stations
}

// BuildAttendanceWorkbook creates the workbook in memory. The caller saves
// or streams it.
func BuildAttendanceWorkbook(guests []v1.GuestDTO) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	stations := Stations(guests)

	header := []interface{}{"ID", "First Name", "Last Name", "Mobile", "Wristband Tag"}
	for _, station := range stations {
		header = append(header, station)
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, err
	}

	for i, g := range guests {
		row := []interface{}{
			g.OriginalID,
			g.FirstName,
			g.LastName,
			utils.Format(g.MobileNumber),
			utils.Format(g.WristbandTagID),
		}
		for _, station := range stations {
			row = append(row, valueFor(&g, station))
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row for guest %d: %w", g.OriginalID, err)
		}
	}

	if err := addSummarySheet(f, guests, stations); err != nil {
		return nil, err
	}

	return f, nil
}

// addSummarySheet appends a per-station head count next to the full matrix.
func addSummarySheet(f *excelize.File, guests []v1.GuestDTO, stations []string) error {
	if _, err := f.NewSheet(summaryName); err != nil {
		return err
	}

	header := []interface{}{"Station", "Checked In", "Total Guests"}
	if err := f.SetSheetRow(summaryName, "A1", &header); err != nil {
		return err
	}

	for i, station := range stations {
		checkedIn := utils.Filter(guests, func(g v1.GuestDTO) bool {
			return valueFor(&g, station) != ""
		})

		row := []interface{}{station, len(checkedIn), len(guests)}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summaryName, cell, &row); err != nil {
			return fmt.Errorf("write summary for station %s: %w", station, err)
		}
	}

	return nil
}

func valueFor(g *v1.GuestDTO, station string) string {
	for s, ts := range g.CheckIns {
		if strings.EqualFold(s, station) {
			return ts
		}
	}
	return ""
}
