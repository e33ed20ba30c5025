package queue

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	v1 "wristband.events/wristband/guestsheet/v1"
)

// Start launches the background sync loop. It runs until Close.
func (q *Queue) Start() {
	go q.loop()
}

// Close stops the sync loop. Pending items stay persisted for the next run.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}

func (q *Queue) loop() {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.done:
			return
		case <-ticker.C:
			q.RunSyncPass(context.Background())
		}
	}
}

// remoteCheckIn reads the remote value for a station, tolerating case
// differences in the sheet's column headers.
func remoteCheckIn(g *v1.GuestDTO, station string) string {
	for s, ts := range g.CheckIns {
		if strings.EqualFold(s, station) {
			return ts
		}
	}
	return ""
}

// verdict is the fate decided for one pending item during a pass. Verdicts
// are computed against a snapshot and applied to live state afterwards, so
// the queue mutex is never held across a ledger call.
type verdict struct {
	drop      bool
	purge     bool
	attempted bool
	when      time.Time
}

// RunSyncPass executes one pass over the pending list. The loop calls it
// every five seconds; tests call it directly.
func (q *Queue) RunSyncPass(ctx context.Context) {
	q.mu.Lock()
	items := make([]PendingCheckIn, len(q.pending))
	copy(items, q.pending)
	q.mu.Unlock()

	if len(items) == 0 {
		return
	}

	verdicts := map[string]verdict{}
	anySynced := false

	for _, item := range items {
		key := cellKey(item.GuestID, item.Station)

		// Linear backoff between attempts. Volume is human-paced, so
		// anything fancier buys nothing.
		if item.Attempts > 0 && item.LastAttempt != nil && q.now().Sub(*item.LastAttempt) < retryBackoff {
			continue
		}

		guest, err := q.ledger.FindGuestByID(ctx, item.GuestID)
		if err != nil || guest == nil {
			verdicts[key] = q.failed(item, err)
			continue
		}

		remote := remoteCheckIn(guest, item.Station)

		if remote == item.Timestamp {
			// Already on the sheet, nothing to write.
			zap.L().Debug("Check-in already synced remotely",
				zap.Int("guest", item.GuestID),
				zap.String("station", item.Station))
			verdicts[key] = verdict{drop: true, purge: true}
			anySynced = true
			continue
		}

		if remote != "" {
			// Remote is the source of truth whenever it holds any value.
			// The local write is discarded, never merged.
			zap.L().Warn("Sync conflict, remote value wins",
				zap.Int("guest", item.GuestID),
				zap.String("station", item.Station),
				zap.String("local", item.Timestamp),
				zap.String("remote", remote))
			verdicts[key] = verdict{drop: true, purge: true}
			continue
		}

		if werr := q.ledger.MarkAttendance(ctx, item.GuestID, item.Station, item.Timestamp); werr != nil {
			// The write can fail because a manual edit or another station
			// raced us onto the sheet. If remote now shows a value, it wins.
			if again, aerr := q.ledger.FindGuestByID(ctx, item.GuestID); aerr == nil && again != nil && remoteCheckIn(again, item.Station) != "" {
				zap.L().Warn("Write rejected, remote filled the cell first",
					zap.Int("guest", item.GuestID),
					zap.String("station", item.Station))
				verdicts[key] = verdict{drop: true, purge: true}
				continue
			}

			verdicts[key] = q.failed(item, werr)
			continue
		}

		zap.L().Info("Check-in synced",
			zap.Int("guest", item.GuestID),
			zap.String("station", item.Station),
			zap.String("timestamp", item.Timestamp))
		verdicts[key] = verdict{drop: true, purge: true}
		anySynced = true
	}

	q.mu.Lock()
	kept := q.pending[:0]
	for _, item := range q.pending {
		v, ok := verdicts[cellKey(item.GuestID, item.Station)]
		if !ok {
			kept = append(kept, item)
			continue
		}
		if v.drop {
			if v.purge {
				q.purgeLocal(item.GuestID, item.Station)
			}
			continue
		}
		if v.attempted {
			item.Attempts++
			when := v.when
			item.LastAttempt = &when
		}
		kept = append(kept, item)
	}
	q.pending = kept
	q.save()
	q.mu.Unlock()

	if anySynced {
		q.notifyListeners()
	}
}

// failed decides what to do with an item whose sync attempt went nowhere.
// After maxAttempts the item is dropped anyway: bounded abandonment beats an
// infinite retry storm. Its cache cell stays so the check-in remains visible
// locally; the conflict resolver's safety net may give it fresh attempts.
func (q *Queue) failed(item PendingCheckIn, err error) verdict {
	if item.Attempts+1 >= maxAttempts {
		zap.L().Error("Check-in abandoned after repeated sync failures",
			zap.Int("guest", item.GuestID),
			zap.String("station", item.Station),
			zap.Int("attempts", item.Attempts+1),
			zap.Error(err))

		if q.alerter != nil {
			if aerr := q.alerter.CheckInAbandoned(item.GuestID, item.Station, item.Timestamp); aerr != nil {
				zap.L().Warn("Failed to send abandonment alert", zap.Error(aerr))
			}
		}

		return verdict{drop: true}
	}

	zap.L().Debug("Sync attempt failed, will retry",
		zap.Int("guest", item.GuestID),
		zap.String("station", item.Station),
		zap.Int("attempts", item.Attempts+1),
		zap.Error(err))

	return verdict{attempted: true, when: q.now()}
}
