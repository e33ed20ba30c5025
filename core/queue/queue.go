// Package queue is the failsafe local store for check-in events. Events are
// recorded here first, served instantly from a local cache, and pushed to
// the Guestsheet ledger by a background loop that survives the service being
// slow, rate-limited or unreachable.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	v1 "wristband.events/wristband/guestsheet/v1"
)

// Ledger is the slice of the serialized ledger client the queue needs.
// core/ledger.Serializer implements it.
type Ledger interface {
	FindGuestByID(ctx context.Context, id int) (*v1.GuestDTO, error)
	MarkAttendance(ctx context.Context, id int, station string, value string) error
}

// Alerter receives ops notifications for events a human should know about.
// A nil Alerter is a no-op.
type Alerter interface {
	CheckInAbandoned(guestID int, station string, timestamp string) error
}

// SyncListener is notified at most once per sync pass in which at least one
// pending item converged with the remote ledger.
type SyncListener interface {
	SyncCompleted()
}

// PendingCheckIn is one check-in event not yet confirmed in the remote
// ledger.
type PendingCheckIn struct {
	GuestID          int        `json:"guestId"`
	Station          string     `json:"station"`
	Timestamp        string     `json:"timestamp"`
	GuestName        string     `json:"guestNameSnapshot"`
	QueuedAt         time.Time  `json:"queuedAt"`
	Attempts         int        `json:"attempts"`
	LastAttempt      *time.Time `json:"lastAttempt,omitempty"`
	ConflictResolved bool       `json:"conflictResolved,omitempty"`
}

func cellKey(guestID int, station string) string {
	return fmt.Sprintf("%d|%s", guestID, station)
}

// queueFile is the on-disk shape of the queue.
type queueFile struct {
	Pending       []PendingCheckIn          `json:"pending"`
	LocalCheckIns map[int]map[string]string `json:"localCheckIns"`
	Requeues      map[string]int            `json:"requeues,omitempty"`
	LastSaved     time.Time                 `json:"lastSaved"`
}

const (
	syncInterval = 5 * time.Second
	retryBackoff = 30 * time.Second
	maxAttempts  = 3
	maxRequeues  = 3
)

// Queue owns the pending list and the local check-in cache. All state is
// guarded by one mutex, which is never held across a remote call.
type Queue struct {
	mu       sync.Mutex
	path     string
	pending  []PendingCheckIn
	local    map[int]map[string]string // guestId -> station(lowercased) -> timestamp
	requeues map[string]int            // safety-net re-enqueues per cell

	ledger  Ledger
	alerter Alerter

	listenerMu sync.Mutex
	listeners  []SyncListener

	now  func() time.Time
	done chan struct{}
	once sync.Once
}

// Open loads the queue persisted at path. Like the tag registry, a corrupt
// primary falls back to the backup generation and then to empty state.
func Open(path string, remote Ledger) *Queue {
	q := &Queue{
		path:     path,
		local:    map[int]map[string]string{},
		requeues: map[string]int{},
		ledger:   remote,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	q.load()
	return q
}

// SetAlerter attaches the ops notifier. Optional.
func (q *Queue) SetAlerter(a Alerter) {
	q.alerter = a
}

// AddListener registers a sync completion observer.
func (q *Queue) AddListener(l SyncListener) {
	q.listenerMu.Lock()
	defer q.listenerMu.Unlock()
	q.listeners = append(q.listeners, l)
}

func (q *Queue) backupPath() string {
	return q.path + ".backup"
}

func (q *Queue) load() {
	if loaded, err := readQueueFile(q.path); err == nil {
		q.apply(loaded)
		return
	} else if !os.IsNotExist(err) {
		zap.L().Warn("Check-in queue unreadable, trying backup",
			zap.String("path", q.path),
			zap.Error(err))
	}

	if loaded, err := readQueueFile(q.backupPath()); err == nil {
		q.apply(loaded)
		zap.L().Warn("Check-in queue recovered from backup",
			zap.Int("pending", len(loaded.Pending)))
		return
	} else if !os.IsNotExist(err) {
		zap.L().Warn("Check-in queue backup unreadable, starting empty", zap.Error(err))
	}
}

func (q *Queue) apply(f *queueFile) {
	q.pending = f.Pending
	if f.LocalCheckIns != nil {
		q.local = f.LocalCheckIns
	}
	if f.Requeues != nil {
		q.requeues = f.Requeues
	}
}

func readQueueFile(path string) (*queueFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f queueFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return &f, nil
}

// save persists the queue. Caller holds the mutex. Failures are logged, not
// propagated: the in-memory state is still authoritative and the next save
// retries the write.
func (q *Queue) save() {
	if prev, err := os.ReadFile(q.path); err == nil && len(prev) > 0 {
		if err := os.WriteFile(q.backupPath(), prev, 0o644); err != nil {
			zap.L().Error("Failed to write queue backup", zap.Error(err))
		}
	}

	f := queueFile{
		Pending:       q.pending,
		LocalCheckIns: q.local,
		Requeues:      q.requeues,
		LastSaved:     q.now(),
	}

	data, err := json.MarshalIndent(&f, "", "  ")
	if err != nil {
		zap.L().Error("Failed to marshal queue", zap.Error(err))
		return
	}

	tmp := q.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		zap.L().Error("Failed to write queue", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, q.path); err != nil {
		zap.L().Error("Failed to replace queue file", zap.Error(err))
	}
}

// AddCheckIn records a check-in event. It returns false without mutating
// anything when the local cache already holds a value for this guest and
// station; duplicate check-ins are a normal rejection, not an error.
func (q *Queue) AddCheckIn(guestID int, station string, timestamp string, guestName string) bool {
	station = strings.ToLower(station)

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.local[guestID][station] != "" {
		return false
	}

	q.pending = append(q.pending, PendingCheckIn{
		GuestID:   guestID,
		Station:   station,
		Timestamp: timestamp,
		GuestName: guestName,
		QueuedAt:  q.now(),
	})

	if q.local[guestID] == nil {
		q.local[guestID] = map[string]string{}
	}
	q.local[guestID][station] = timestamp

	q.save()

	zap.L().Info("Check-in queued",
		zap.Int("guest", guestID),
		zap.String("station", station),
		zap.String("timestamp", timestamp))

	return true
}

// HasCheckIn reports whether the local cache holds a value for the cell.
// Remote knowledge is the caller's responsibility to merge.
func (q *Queue) HasCheckIn(guestID int, station string) bool {
	station = strings.ToLower(station)

	q.mu.Lock()
	defer q.mu.Unlock()

	return q.local[guestID][station] != ""
}

// GetLocalCheckIns returns a copy of the cached station map for one guest.
func (q *Queue) GetLocalCheckIns(guestID int) map[string]string {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make(map[string]string, len(q.local[guestID]))
	for station, ts := range q.local[guestID] {
		out[station] = ts
	}
	return out
}

// GetAllLocalCheckIns returns a copy of the whole cache.
func (q *Queue) GetAllLocalCheckIns() map[int]map[string]string {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make(map[int]map[string]string, len(q.local))
	for guestID, stations := range q.local {
		m := make(map[string]string, len(stations))
		for station, ts := range stations {
			m[station] = ts
		}
		out[guestID] = m
	}
	return out
}

// Pending returns a snapshot of the pending list.
func (q *Queue) Pending() []PendingCheckIn {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]PendingCheckIn, len(q.pending))
	copy(out, q.pending)
	return out
}

// ClearAllLocalData empties the queue and the cache and persists the empty
// state. Irreversible; meant for an explicit administrative reset.
func (q *Queue) ClearAllLocalData() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = nil
	q.local = map[int]map[string]string{}
	q.requeues = map[string]int{}
	q.save()

	zap.L().Warn("All local check-in data cleared")
}

// purgeLocal drops one cache cell. Caller holds the mutex.
func (q *Queue) purgeLocal(guestID int, station string) {
	if stations, ok := q.local[guestID]; ok {
		delete(stations, station)
		if len(stations) == 0 {
			delete(q.local, guestID)
		}
	}
	delete(q.requeues, cellKey(guestID, station))
}

func (q *Queue) notifyListeners() {
	q.listenerMu.Lock()
	listeners := make([]SyncListener, len(q.listeners))
	copy(listeners, q.listeners)
	q.listenerMu.Unlock()

	// Listener code belongs to the caller; a panic or a slow handler must
	// not take down or stall the sync loop.
	go func() {
		defer func() {
			if r := recover(); r != nil {
				zap.L().Error("Sync listener panicked", zap.Any("panic", r))
			}
		}()
		for _, l := range listeners {
			l.SyncCompleted()
		}
	}()
}
