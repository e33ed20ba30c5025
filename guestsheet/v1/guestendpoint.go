package v1

import (
	"context"
	"encoding/json"
	"fmt"
)

// GuestDTO is one row of the guest sheet. The fixed leading columns are the
// named fields; every remaining column is a station, carried in CheckIns so
// stations added to the sheet after deployment need no client change. A
// station maps to "" until the guest has checked in there.
type GuestDTO struct {
	OriginalID     int               `json:"originalId"`
	FirstName      string            `json:"firstName"`
	LastName       string            `json:"lastName"`
	MobileNumber   *string           `json:"mobileNumber,omitempty"`
	WristbandTagID *string           `json:"wristbandTagId,omitempty"`
	CheckIns       map[string]string `json:"checkIns"`
}

func (g *GuestDTO) FullName() string {
	return g.FirstName + " " + g.LastName
}

// AttendanceUpdate sets one cell of the sheet: the station column of one
// guest row.
type AttendanceUpdate struct {
	GuestID int    `json:"guestId"`
	Station string `json:"station"`
	Value   string `json:"value"`
}

type StatusResponse[T any] struct {
	Status bool        `json:"status"`
	Data   T           `json:"data,omitempty"`
	Error  interface{} `json:"error,omitempty"`
}

type GuestEndpoint struct {
	transport *Transport
}

func (this *GuestEndpoint) GetAll(ctx context.Context) ([]GuestDTO, error) {
	resp, err := this.transport.Get(ctx, "/api/v1/guests", nil)
	if err != nil {
		return nil, err
	}

	var result []GuestDTO
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, err
	}

	return result, nil
}

func (this *GuestEndpoint) Find(ctx context.Context, id int) (*GuestDTO, error) {
	resp, err := this.transport.Get(ctx, fmt.Sprintf("/api/v1/guests/%d", id), nil)
	if err != nil {
		return nil, err
	}

	var result GuestDTO
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (this *GuestEndpoint) MarkAttendance(ctx context.Context, id int, station string, value string) error {
	payload := AttendanceUpdate{GuestID: id, Station: station, Value: value}

	resp, err := this.transport.Post(ctx, fmt.Sprintf("/api/v1/guests/%d/checkins", id), payload, nil)
	if err != nil {
		return err
	}

	var result StatusResponse[*GuestDTO]
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return err
	}
	if !result.Status {
		return fmt.Errorf("mark attendance rejected: %v", result.Error)
	}

	return nil
}

func (this *GuestEndpoint) BatchUpdate(ctx context.Context, updates []AttendanceUpdate) error {
	resp, err := this.transport.Post(ctx, "/api/v1/guests/checkins/batch", updates, nil)
	if err != nil {
		return err
	}

	var result StatusResponse[int]
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return err
	}
	if !result.Status {
		return fmt.Errorf("batch update rejected: %v", result.Error)
	}

	return nil
}

// ClearAll blanks every station column for every guest. The fixed identity
// columns are untouched.
func (this *GuestEndpoint) ClearAll(ctx context.Context) error {
	resp, err := this.transport.Post(ctx, "/api/v1/guests/checkins/clear", nil, nil)
	if err != nil {
		return err
	}

	var result StatusResponse[int]
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return err
	}
	if !result.Status {
		return fmt.Errorf("clear rejected: %v", result.Error)
	}

	return nil
}
