package queue

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "wristband.events/wristband/guestsheet/v1"
)

// fakeLedger is an in-memory Guestsheet standing in for the serialized
// client.
type fakeLedger struct {
	mu      sync.Mutex
	guests  map[int]*v1.GuestDTO
	findErr error
	markErr error
	// markLands makes a failing MarkAttendance still store the value,
	// emulating a write that reached the ledger before the reply failed.
	markLands bool
	marks     []v1.AttendanceUpdate
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{guests: map[int]*v1.GuestDTO{}}
}

func (f *fakeLedger) addGuest(id int, name string, checkIns map[string]string) {
	if checkIns == nil {
		checkIns = map[string]string{}
	}
	f.guests[id] = &v1.GuestDTO{
		OriginalID: id,
		FirstName:  name,
		CheckIns:   checkIns,
	}
}

func (f *fakeLedger) FindGuestByID(_ context.Context, id int) (*v1.GuestDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findErr != nil {
		return nil, f.findErr
	}

	g, ok := f.guests[id]
	if !ok {
		return nil, fmt.Errorf("guest %d missing", id)
	}

	copied := *g
	copied.CheckIns = map[string]string{}
	for k, v := range g.CheckIns {
		copied.CheckIns[k] = v
	}
	return &copied, nil
}

func (f *fakeLedger) MarkAttendance(_ context.Context, id int, station string, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.marks = append(f.marks, v1.AttendanceUpdate{GuestID: id, Station: station, Value: value})

	if f.markErr != nil && !f.markLands {
		return f.markErr
	}

	if g, ok := f.guests[id]; ok {
		g.CheckIns[station] = value
	}
	return f.markErr
}

func (f *fakeLedger) markCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.marks)
}

func openTestQueue(t *testing.T, remote Ledger) *Queue {
	return Open(filepath.Join(t.TempDir(), "queue.json"), remote)
}

func TestAddCheckInIsIdempotent(t *testing.T) {
	q := openTestQueue(t, newFakeLedger())

	assert.True(t, q.AddCheckIn(42, "reception", "09:00", "Ana García"))
	assert.True(t, q.HasCheckIn(42, "reception"))

	// Second check-in for the same cell is rejected without mutation.
	assert.False(t, q.AddCheckIn(42, "reception", "09:07", "Ana García"))
	assert.Equal(t, "09:00", q.GetLocalCheckIns(42)["reception"])
	assert.Len(t, q.Pending(), 1)
}

func TestStationIsCaseInsensitive(t *testing.T) {
	q := openTestQueue(t, newFakeLedger())

	assert.True(t, q.AddCheckIn(42, "Reception", "09:00", "Ana"))
	assert.True(t, q.HasCheckIn(42, "RECEPTION"))
	assert.False(t, q.AddCheckIn(42, "reception", "09:07", "Ana"))
}

func TestSnapshotsAreCopies(t *testing.T) {
	q := openTestQueue(t, newFakeLedger())
	q.AddCheckIn(42, "reception", "09:00", "Ana")

	all := q.GetAllLocalCheckIns()
	all[42]["reception"] = "tampered"

	assert.Equal(t, "09:00", q.GetLocalCheckIns(42)["reception"])
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")

	q := Open(path, newFakeLedger())
	require.True(t, q.AddCheckIn(42, "reception", "09:00", "Ana García"))
	require.True(t, q.AddCheckIn(7, "dinner", "19:30", "Ben"))

	// Fail one sync attempt so attempt counters are non-zero on disk.
	failing := newFakeLedger()
	failing.findErr = fmt.Errorf("boom")
	q.ledger = failing
	q.RunSyncPass(context.Background())

	reopened := Open(path, newFakeLedger())
	assert.Equal(t, q.GetAllLocalCheckIns(), reopened.GetAllLocalCheckIns())

	pending := reopened.Pending()
	require.Len(t, pending, 2)
	for _, item := range pending {
		assert.Equal(t, 1, item.Attempts)
		require.NotNil(t, item.LastAttempt)
	}
}

func TestClearAllLocalData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")

	q := Open(path, newFakeLedger())
	q.AddCheckIn(42, "reception", "09:00", "Ana")
	q.ClearAllLocalData()

	assert.Empty(t, q.Pending())
	assert.False(t, q.HasCheckIn(42, "reception"))

	reopened := Open(path, newFakeLedger())
	assert.Empty(t, reopened.Pending())
}
