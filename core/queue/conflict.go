package queue

import (
	"go.uber.org/zap"

	v1 "wristband.events/wristband/guestsheet/v1"
)

// ResolveSyncConflicts reconciles the local cache against a full remote
// snapshot. It runs synchronously whenever such a snapshot is obtained.
//
// Two divergences can exist:
//
//   - Remote holds a value for a cell we still cache locally. Remote wins:
//     the local cell is purged, and a differing value is logged, never
//     merged or timestamp-compared.
//
//   - A cached cell has no remote value and no pending item. This happens
//     when remote data was deleted out-of-band after the cell was dropped as
//     synced in an earlier pass. The cell is re-enqueued as a
//     conflict-resolved check-in. This safety net is capped per cell; once
//     exhausted the cell is dropped for good.
func (q *Queue) ResolveSyncConflicts(remoteGuests []v1.GuestDTO) {
	byID := make(map[int]*v1.GuestDTO, len(remoteGuests))
	for i := range remoteGuests {
		byID[remoteGuests[i].OriginalID] = &remoteGuests[i]
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	pendingCells := make(map[string]bool, len(q.pending))
	for _, item := range q.pending {
		pendingCells[cellKey(item.GuestID, item.Station)] = true
	}

	type cell struct {
		guestID   int
		station   string
		timestamp string
	}
	var purge, requeue, exhausted []cell

	for guestID, stations := range q.local {
		guest := byID[guestID]
		for station, ts := range stations {
			if guest != nil {
				if remote := remoteCheckIn(guest, station); remote != "" {
					if remote != ts {
						zap.L().Warn("Local check-in superseded by remote value",
							zap.Int("guest", guestID),
							zap.String("station", station),
							zap.String("local", ts),
							zap.String("remote", remote))
					}
					purge = append(purge, cell{guestID, station, ts})
					continue
				}
			}

			if pendingCells[cellKey(guestID, station)] {
				continue
			}

			if q.requeues[cellKey(guestID, station)] >= maxRequeues {
				exhausted = append(exhausted, cell{guestID, station, ts})
				continue
			}

			requeue = append(requeue, cell{guestID, station, ts})
		}
	}

	dropped := make(map[string]bool, len(purge)+len(exhausted))

	for _, c := range purge {
		dropped[cellKey(c.guestID, c.station)] = true
		q.purgeLocal(c.guestID, c.station)
	}

	for _, c := range exhausted {
		zap.L().Error("Conflict-resolution cap reached, dropping local check-in",
			zap.Int("guest", c.guestID),
			zap.String("station", c.station),
			zap.String("timestamp", c.timestamp))
		dropped[cellKey(c.guestID, c.station)] = true
		q.purgeLocal(c.guestID, c.station)
	}

	if len(dropped) > 0 {
		kept := q.pending[:0]
		for _, item := range q.pending {
			if !dropped[cellKey(item.GuestID, item.Station)] {
				kept = append(kept, item)
			}
		}
		q.pending = kept
	}

	for _, c := range requeue {
		name := ""
		if guest := byID[c.guestID]; guest != nil {
			name = guest.FullName()
		}

		q.requeues[cellKey(c.guestID, c.station)]++
		q.pending = append(q.pending, PendingCheckIn{
			GuestID:          c.guestID,
			Station:          c.station,
			Timestamp:        c.timestamp,
			GuestName:        name,
			QueuedAt:         q.now(),
			ConflictResolved: true,
		})

		zap.L().Warn("Local check-in missing remotely, re-enqueued",
			zap.Int("guest", c.guestID),
			zap.String("station", c.station),
			zap.Int("requeue", q.requeues[cellKey(c.guestID, c.station)]))
	}

	if len(purge)+len(requeue)+len(exhausted) > 0 {
		q.save()
	}
}
