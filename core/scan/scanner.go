// Package scan coordinates every operation that wants the NFC reader: the
// checkpoint scan loop, tag registration, tag info reads and erases. All of
// them go through the hardware arbiter and never block on the reader while
// holding any data-structure lock.
package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"wristband.events/wristband/core/arbiter"
	"wristband.events/wristband/core/fault"
	"wristband.events/wristband/core/queue"
	"wristband.events/wristband/core/registry"
	"wristband.events/wristband/core/snapshot"
	v1 "wristband.events/wristband/guestsheet/v1"
)

// TagReader is the opaque hardware surface: read one tag, return its
// identifier. The byte-level chipset protocol lives behind it. A cancelled
// or timed-out read returns fault.ErrNoTag, which is a normal outcome.
type TagReader interface {
	ReadTag(ctx context.Context) (string, error)
}

// Ledger is the slice of the serialized ledger client the scanner needs for
// guest resolution when the local snapshot misses.
type Ledger interface {
	FindGuestByID(ctx context.Context, id int) (*v1.GuestDTO, error)
}

// TimestampLayout is the clock-time format written into ledger cells.
const TimestampLayout = "15:04:05"

const (
	// readTimeout bounds a single blocking hardware read for one-shot
	// operations.
	readTimeout = 10 * time.Second

	// maxWorkers bounds concurrent user-triggered reader operations.
	maxWorkers = 3
)

// ErrReaderBusy is returned when the reader is held by another operation.
// The caller retries or backs off; it is not a failure of the hardware.
var ErrReaderBusy = errors.New("reader held by another operation")

type Scanner struct {
	reader   TagReader
	arb      *arbiter.Arbiter
	registry *registry.Registry
	queue    *queue.Queue
	snap     *snapshot.Store
	ledger   Ledger

	slots chan struct{}
	now   func() time.Time
}

func NewScanner(reader TagReader, arb *arbiter.Arbiter, reg *registry.Registry, q *queue.Queue, snap *snapshot.Store, remote Ledger) *Scanner {
	return &Scanner{
		reader:   reader,
		arb:      arb,
		registry: reg,
		queue:    q,
		snap:     snap,
		ledger:   remote,
		slots:    make(chan struct{}, maxWorkers),
		now:      time.Now,
	}
}

// acquireSlot takes a worker-pool slot for a bursty user-triggered
// operation.
func (s *Scanner) acquireSlot(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: no worker slot", fault.ErrTimeout)
	}
}

func (s *Scanner) releaseSlot() {
	<-s.slots
}

// readOwned performs one blocking hardware read on behalf of owner, who must
// already hold the arbiter. The arbiter is checked again after the read: the
// read may have been in flight when Cancel fired or ownership bookkeeping
// went wrong, and any tag observed without ownership must be discarded.
func (s *Scanner) readOwned(ctx context.Context, owner string) (string, error) {
	if !s.arb.HeldBy(owner) {
		return "", fmt.Errorf("%w: reader not held", fault.ErrNoTag)
	}

	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	s.arb.WatchCancel(owner, cancel)

	tagID, err := s.reader.ReadTag(ctx)

	if !s.arb.HeldBy(owner) {
		zap.L().Warn("Tag read completed without reader ownership, discarding",
			zap.String("owner", owner))
		return "", fault.ErrNoTag
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Normal outcome of polling, not an error.
			return "", fault.ErrNoTag
		}
		return "", fmt.Errorf("%w: %v", fault.ErrNoTag, err)
	}

	return tagID, nil
}

// Cancel aborts whatever blocking read is currently in flight. The owning
// operation sees fault.ErrNoTag and releases the arbiter itself.
func (s *Scanner) Cancel() {
	s.arb.Cancel()
}

// CheckInResult reports a completed check-in pipeline run.
type CheckInResult struct {
	TagID     string `json:"tagId"`
	GuestID   int    `json:"guestId"`
	GuestName string `json:"guestName"`
	Station   string `json:"station"`
	Timestamp string `json:"timestamp"`
}

// CheckIn runs the full pipeline once: read a tag, resolve the guest, guard
// against duplicates, enqueue. Typed failures: ErrReaderBusy, fault.ErrNoTag
// (nothing presented), fault.ErrNotFound (unregistered tag or unknown
// guest), fault.ErrDuplicate (cell already has a value locally or remotely).
func (s *Scanner) CheckIn(ctx context.Context, station string) (*CheckInResult, error) {
	if err := s.acquireSlot(ctx); err != nil {
		return nil, err
	}
	defer s.releaseSlot()

	owner := "checkin:" + station
	if !s.arb.TryAcquire(owner) {
		return nil, ErrReaderBusy
	}
	defer s.arb.Release(owner)

	tagID, err := s.readOwned(ctx, owner)
	if err != nil {
		return nil, err
	}

	return s.checkInTag(ctx, station, tagID)
}

// checkInTag finishes the pipeline after a tag has been read. The hardware
// is no longer involved from here on.
func (s *Scanner) checkInTag(ctx context.Context, station string, tagID string) (*CheckInResult, error) {
	guestID, ok := s.registry.Lookup(tagID)
	if !ok {
		return nil, fmt.Errorf("%w: tag %s not registered", fault.ErrNotFound, tagID)
	}

	guest, err := s.resolveGuest(ctx, guestID)
	if err != nil {
		return nil, err
	}

	if s.queue.HasCheckIn(guestID, station) {
		return nil, fmt.Errorf("%w: guest %d already checked in at %s", fault.ErrDuplicate, guestID, station)
	}
	if guest != nil && remoteCheckIn(guest, station) != "" {
		return nil, fmt.Errorf("%w: guest %d already on the sheet for %s", fault.ErrDuplicate, guestID, station)
	}

	name := ""
	if guest != nil {
		name = guest.FullName()
	}

	timestamp := s.now().Format(TimestampLayout)
	if !s.queue.AddCheckIn(guestID, station, timestamp, name) {
		return nil, fmt.Errorf("%w: guest %d already checked in at %s", fault.ErrDuplicate, guestID, station)
	}

	return &CheckInResult{
		TagID:     tagID,
		GuestID:   guestID,
		GuestName: name,
		Station:   station,
		Timestamp: timestamp,
	}, nil
}

// resolveGuest prefers the local snapshot and falls back to the ledger. An
// unreachable ledger with no snapshot entry still allows the check-in: the
// queue is exactly the bridge for that gap.
func (s *Scanner) resolveGuest(ctx context.Context, guestID int) (*v1.GuestDTO, error) {
	guest, err := s.snap.FindByID(guestID)
	if err == nil {
		return guest, nil
	}
	if !errors.Is(err, fault.ErrNotFound) {
		zap.L().Warn("Snapshot lookup failed", zap.Int("guest", guestID), zap.Error(err))
	}

	guest, err = s.ledger.FindGuestByID(ctx, guestID)
	if err != nil {
		if errors.Is(err, fault.ErrNotFound) {
			return nil, fmt.Errorf("%w: guest %d", fault.ErrNotFound, guestID)
		}
		zap.L().Warn("Guest resolution degraded, ledger unavailable",
			zap.Int("guest", guestID),
			zap.Error(err))
		return nil, nil
	}

	return guest, nil
}

func remoteCheckIn(g *v1.GuestDTO, station string) string {
	for s, ts := range g.CheckIns {
		if strings.EqualFold(s, station) {
			return ts
		}
	}
	return ""
}
