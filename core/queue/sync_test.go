package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanListener chan struct{}

func (l chanListener) SyncCompleted() {
	select {
	case l <- struct{}{}:
	default:
	}
}

func waitNotified(t *testing.T, l chanListener) {
	select {
	case <-l:
	case <-time.After(time.Second):
		t.Fatal("expected a sync completion notification")
	}
}

type recordingAlerter struct {
	abandoned []string
}

func (a *recordingAlerter) CheckInAbandoned(guestID int, station string, timestamp string) error {
	a.abandoned = append(a.abandoned, fmt.Sprintf("%d|%s|%s", guestID, station, timestamp))
	return nil
}

func TestSyncPassWritesPending(t *testing.T) {
	remote := newFakeLedger()
	remote.addGuest(42, "Ana", nil)

	q := openTestQueue(t, remote)
	listener := make(chanListener, 1)
	q.AddListener(listener)

	require.True(t, q.AddCheckIn(42, "reception", "09:00", "Ana"))
	q.RunSyncPass(context.Background())

	assert.Empty(t, q.Pending())
	assert.False(t, q.HasCheckIn(42, "reception"), "cache cell purged once remote confirmed")
	assert.Equal(t, "09:00", remote.guests[42].CheckIns["reception"])
	waitNotified(t, listener)
}

func TestSyncPassSkipsWriteWhenRemoteMatches(t *testing.T) {
	remote := newFakeLedger()
	remote.addGuest(42, "Ana", map[string]string{"reception": "09:00"})

	q := openTestQueue(t, remote)
	require.True(t, q.AddCheckIn(42, "reception", "09:00", "Ana"))

	q.RunSyncPass(context.Background())

	assert.Empty(t, q.Pending())
	assert.False(t, q.HasCheckIn(42, "reception"))
	assert.Zero(t, remote.markCount(), "matching remote value must not be rewritten")
}

func TestSyncPassConflictRemoteWins(t *testing.T) {
	remote := newFakeLedger()
	remote.addGuest(42, "Ana", map[string]string{"reception": "09:05"})

	q := openTestQueue(t, remote)
	require.True(t, q.AddCheckIn(42, "reception", "09:10", "Ana"))

	q.RunSyncPass(context.Background())

	assert.Empty(t, q.Pending())
	assert.False(t, q.HasCheckIn(42, "reception"))
	assert.Zero(t, remote.markCount(), "local value must never overwrite a differing remote value")
	assert.Equal(t, "09:05", remote.guests[42].CheckIns["reception"])
}

func TestSyncPassBoundedRetry(t *testing.T) {
	remote := newFakeLedger()
	remote.findErr = fmt.Errorf("service degraded")

	q := openTestQueue(t, remote)
	alerter := &recordingAlerter{}
	q.SetAlerter(alerter)

	now := time.Now()
	q.now = func() time.Time { return now }

	require.True(t, q.AddCheckIn(42, "reception", "09:00", "Ana"))

	q.RunSyncPass(context.Background())
	require.Len(t, q.Pending(), 1)
	assert.Equal(t, 1, q.Pending()[0].Attempts)

	now = now.Add(retryBackoff + time.Second)
	q.RunSyncPass(context.Background())
	require.Len(t, q.Pending(), 1)
	assert.Equal(t, 2, q.Pending()[0].Attempts)

	now = now.Add(retryBackoff + time.Second)
	q.RunSyncPass(context.Background())
	assert.Empty(t, q.Pending(), "third failed attempt abandons the item")
	assert.Equal(t, []string{"42|reception|09:00"}, alerter.abandoned)

	// Abandonment keeps the cache cell: the check-in stays visible locally.
	assert.True(t, q.HasCheckIn(42, "reception"))
}

func TestSyncPassBacksOffBetweenAttempts(t *testing.T) {
	remote := newFakeLedger()
	remote.findErr = fmt.Errorf("service degraded")

	q := openTestQueue(t, remote)

	now := time.Now()
	q.now = func() time.Time { return now }

	require.True(t, q.AddCheckIn(42, "reception", "09:00", "Ana"))

	q.RunSyncPass(context.Background())
	require.Equal(t, 1, q.Pending()[0].Attempts)

	// Within the backoff window nothing is attempted.
	now = now.Add(retryBackoff / 2)
	q.RunSyncPass(context.Background())
	assert.Equal(t, 1, q.Pending()[0].Attempts)

	now = now.Add(retryBackoff)
	q.RunSyncPass(context.Background())
	assert.Equal(t, 2, q.Pending()[0].Attempts)
}

func TestSyncPassDropsWhenWriteRaceFilledCell(t *testing.T) {
	remote := newFakeLedger()
	remote.addGuest(42, "Ana", nil)
	remote.markErr = fmt.Errorf("rejected")
	remote.markLands = true // the write lands remotely despite the error reply

	q := openTestQueue(t, remote)
	require.True(t, q.AddCheckIn(42, "reception", "09:00", "Ana"))

	q.RunSyncPass(context.Background())

	assert.Empty(t, q.Pending(), "remote value after a failed write means remote won")
	assert.False(t, q.HasCheckIn(42, "reception"))
}

func TestNotificationOnlyWhenSomethingConverged(t *testing.T) {
	remote := newFakeLedger()
	remote.findErr = fmt.Errorf("down")

	q := openTestQueue(t, remote)
	listener := make(chanListener, 1)
	q.AddListener(listener)

	require.True(t, q.AddCheckIn(42, "reception", "09:00", "Ana"))
	q.RunSyncPass(context.Background())

	select {
	case <-listener:
		t.Fatal("no item converged, listener must stay quiet")
	case <-time.After(50 * time.Millisecond):
	}
}
