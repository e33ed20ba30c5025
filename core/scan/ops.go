package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wristband.events/wristband/core/fault"
)

// RegisterTag reads a tag and binds it to guestID. A tag already bound to a
// different guest is a rejected condition unless the caller explicitly
// confirms the rewrite. The registry write is persisted before the call
// returns, so a later check-in can never observe a half-done registration.
func (s *Scanner) RegisterTag(ctx context.Context, guestID int, confirmRewrite bool) (string, error) {
	if err := s.acquireSlot(ctx); err != nil {
		return "", err
	}
	defer s.releaseSlot()

	owner := fmt.Sprintf("register:%d", guestID)
	if !s.arb.TryAcquire(owner) {
		return "", ErrReaderBusy
	}
	defer s.arb.Release(owner)

	tagID, err := s.readOwned(ctx, owner)
	if err != nil {
		return "", err
	}

	if prior, ok := s.registry.Lookup(tagID); ok && prior != guestID && !confirmRewrite {
		return "", fmt.Errorf("%w: tag %s already bound to guest %d", fault.ErrDuplicate, tagID, prior)
	}

	if err := s.registry.Register(tagID, guestID); err != nil {
		return "", err
	}

	return tagID, nil
}

// TagInfo is what a read-info operation learns about a presented tag.
type TagInfo struct {
	TagID      string `json:"tagId"`
	GuestID    int    `json:"guestId,omitempty"`
	Registered bool   `json:"registered"`
}

// ReadTagInfo reads a tag and reports its registration state.
func (s *Scanner) ReadTagInfo(ctx context.Context) (*TagInfo, error) {
	if err := s.acquireSlot(ctx); err != nil {
		return nil, err
	}
	defer s.releaseSlot()

	const owner = "read-info"
	if !s.arb.TryAcquire(owner) {
		return nil, ErrReaderBusy
	}
	defer s.arb.Release(owner)

	tagID, err := s.readOwned(ctx, owner)
	if err != nil {
		return nil, err
	}

	info := &TagInfo{TagID: tagID}
	info.GuestID, info.Registered = s.registry.Lookup(tagID)
	return info, nil
}

// EraseTag reads a tag and clears its binding, returning the prior owner so
// the caller can report whose wristband was freed.
func (s *Scanner) EraseTag(ctx context.Context) (string, int, error) {
	if err := s.acquireSlot(ctx); err != nil {
		return "", 0, err
	}
	defer s.releaseSlot()

	const owner = "erase"
	if !s.arb.TryAcquire(owner) {
		return "", 0, ErrReaderBusy
	}
	defer s.arb.Release(owner)

	tagID, err := s.readOwned(ctx, owner)
	if err != nil {
		return "", 0, err
	}

	prior, ok, err := s.registry.Clear(tagID)
	if err != nil {
		return "", 0, err
	}
	if !ok {
		return "", 0, fmt.Errorf("%w: tag %s not registered", fault.ErrNotFound, tagID)
	}

	return tagID, prior, nil
}

const (
	// checkpointReadWindow is how long each loop iteration listens for a
	// tag before releasing the reader so competing operations can grab it.
	checkpointReadWindow = 2 * time.Second

	// checkpointIdle is the pause between read windows and while the
	// reader is held by someone else.
	checkpointIdle = 200 * time.Millisecond
)

// RunCheckpoint runs the continuous scan loop for a station until ctx ends.
// Each iteration acquires the arbiter, listens briefly, releases, and hands
// results to report. The short hold window is what lets registration and
// erase operations interleave with an always-on checkpoint.
func (s *Scanner) RunCheckpoint(ctx context.Context, station string, report func(*CheckInResult, error)) {
	owner := "checkpoint:" + station

	for ctx.Err() == nil {
		if !s.arb.TryAcquire(owner) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(checkpointIdle):
			}
			continue
		}

		readCtx, cancel := context.WithTimeout(ctx, checkpointReadWindow)
		s.arb.WatchCancel(owner, cancel)
		tagID, err := s.reader.ReadTag(readCtx)
		cancel()

		held := s.arb.HeldBy(owner)
		s.arb.Release(owner)

		if held && err == nil {
			result, cerr := s.checkInTag(ctx, station, tagID)
			if report != nil {
				report(result, cerr)
			}
		} else if held && err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				zap.L().Warn("Checkpoint read failed", zap.String("station", station), zap.Error(err))
			}
		}
		// If ownership was lost mid-read, whatever was observed is void.

		// Leave a gap before the next window so a waiting one-shot
		// operation can win the arbiter.
		select {
		case <-ctx.Done():
			return
		case <-time.After(checkpointIdle):
		}
	}
}
