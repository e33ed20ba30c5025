// Package engine bundles the check-in engine's moving parts and owns the
// full-refresh cycle that keeps local and remote state converging.
package engine

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"wristband.events/wristband/core/arbiter"
	"wristband.events/wristband/core/ledger"
	"wristband.events/wristband/core/queue"
	"wristband.events/wristband/core/registry"
	"wristband.events/wristband/core/scan"
	"wristband.events/wristband/core/snapshot"
	v1 "wristband.events/wristband/guestsheet/v1"
)

type Engine struct {
	Registry *registry.Registry
	Queue    *queue.Queue
	Ledger   *ledger.Serializer
	Snapshot *snapshot.Store
	Scanner  *scan.Scanner
	Arbiter  *arbiter.Arbiter

	refreshing atomic.Bool
}

// Refresh fetches the full remote guest list, replaces the local snapshot
// and reconciles the queue's cache against it. This is the only place
// conflict resolution runs, so every path that obtains a full snapshot goes
// through here.
func (e *Engine) Refresh(ctx context.Context) ([]v1.GuestDTO, error) {
	guests, err := e.Ledger.GetAllGuests(ctx)
	if err != nil {
		return nil, err
	}

	if err := e.Snapshot.Replace(guests); err != nil {
		// Reads keep serving the previous snapshot.
		zap.L().Error("Failed to replace guest snapshot", zap.Error(err))
	}

	e.Queue.ResolveSyncConflicts(guests)

	zap.L().Debug("Guest snapshot refreshed", zap.Int("guests", len(guests)))
	return guests, nil
}

// SyncCompleted implements queue.SyncListener: after a pass in which
// something converged, refresh the snapshot so the UI layer and the conflict
// resolver see the new remote state. Concurrent triggers coalesce.
func (e *Engine) SyncCompleted() {
	if !e.refreshing.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer e.refreshing.Store(false)
		if _, err := e.Refresh(context.Background()); err != nil {
			zap.L().Debug("Post-sync refresh skipped", zap.Error(err))
		}
	}()
}

// Start begins background syncing.
func (e *Engine) Start() {
	e.Queue.AddListener(e)
	e.Queue.Start()
}

// Close stops the background workers. Persistence is already on disk.
func (e *Engine) Close() {
	e.Queue.Close()
	e.Ledger.Close()
}
