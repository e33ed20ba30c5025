package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wristband.events/wristband/core/fault"
	"wristband.events/wristband/security"
)

const testSecret = "IxrAjDoa2FqElO7IhrSrUJELhUckePEPVpaePlS/Xaw="

func testClient(t *testing.T, handler http.Handler) (*GuestsheetClient, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokens := StationTokenSource(&security.StationIdentity{
		Id:      5,
		Name:    "Front Desk",
		Station: "reception",
	}, testSecret)

	return NewGuestsheetClient(srv.URL, tokens), srv
}

func TestGetAllParsesDynamicStations(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/guests", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer "))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"originalId": 1, "firstName": "Ana", "lastName": "García",
			 "checkIns": {"reception": "09:00", "workshop": "", "afterparty": ""}},
			{"originalId": 2, "firstName": "Ben", "lastName": "Okafor",
			 "wristbandTagId": "04A1B2C3D4",
			 "checkIns": {"reception": "", "workshop": "", "afterparty": ""}}
		]`))
	}))

	guests, err := client.Guests.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, guests, 2)

	assert.Equal(t, "Ana García", guests[0].FullName())
	assert.Equal(t, "09:00", guests[0].CheckIns["reception"])
	assert.Contains(t, guests[0].CheckIns, "afterparty", "station columns come from the sheet, not from code")
	require.NotNil(t, guests[1].WristbandTagID)
	assert.Equal(t, "04A1B2C3D4", *guests[1].WristbandTagID)
}

func TestFindReturnsNotFound(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.Guests.Find(context.Background(), 999)
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestMarkAttendancePostsCell(t *testing.T) {
	var got AttendanceUpdate
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/guests/42/checkins", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": true}`))
	}))

	err := client.Guests.MarkAttendance(context.Background(), 42, "reception", "09:00")
	require.NoError(t, err)
	assert.Equal(t, AttendanceUpdate{GuestID: 42, Station: "reception", Value: "09:00"}, got)
}

func TestMarkAttendanceRejected(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": false, "error": "column locked"}`))
	}))

	err := client.Guests.MarkAttendance(context.Background(), 42, "reception", "09:00")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column locked")
}

func TestBatchUpdate(t *testing.T) {
	var got []AttendanceUpdate
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/guests/checkins/batch", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": true, "data": 2}`))
	}))

	updates := []AttendanceUpdate{
		{GuestID: 1, Station: "reception", Value: "09:00"},
		{GuestID: 2, Station: "workshop", Value: "10:15"},
	}
	require.NoError(t, client.Guests.BatchUpdate(context.Background(), updates))
	assert.Equal(t, updates, got)
}

func TestClearAll(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/guests/checkins/clear", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": true}`))
	}))

	require.NoError(t, client.Guests.ClearAll(context.Background()))
}

func TestTimeoutClassifiedAsTimeout(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := client.Guests.GetAll(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrTimeout)
}

func TestConnectionFailureClassifiedAsUnreachable(t *testing.T) {
	client, srv := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := client.Guests.GetAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrUnreachable)
}

func TestBearerTokenIsReused(t *testing.T) {
	tokens := map[string]bool{}
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens[r.Header.Get("Authorization")] = true
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))

	for i := 0; i < 3; i++ {
		_, err := client.Guests.GetAll(context.Background())
		require.NoError(t, err)
	}

	assert.Len(t, tokens, 1, "the token is minted once and reused until close to expiry")
}
