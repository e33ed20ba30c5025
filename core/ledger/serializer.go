// Package ledger funnels every call against the Guestsheet service through a
// single worker. The remote transport misbehaves when hit from several
// goroutines at once, so one in-flight call at a time, with a short pause
// between calls, trades throughput for correctness.
package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wristband.events/wristband/core/fault"
	v1 "wristband.events/wristband/guestsheet/v1"
)

// API is the surface of the Guestsheet guest endpoint the serializer drives.
// guestsheet/v1.GuestEndpoint implements it; tests substitute fakes.
type API interface {
	GetAll(ctx context.Context) ([]v1.GuestDTO, error)
	Find(ctx context.Context, id int) (*v1.GuestDTO, error)
	MarkAttendance(ctx context.Context, id int, station string, value string) error
	BatchUpdate(ctx context.Context, updates []v1.AttendanceUpdate) error
	ClearAll(ctx context.Context) error
}

const (
	// CallTimeout bounds each enqueued call, queue wait included.
	CallTimeout = 30 * time.Second

	// interCallDelay is the pause the worker takes between consecutive
	// remote calls.
	interCallDelay = 250 * time.Millisecond
)

type request struct {
	name  string
	ctx   context.Context
	call  func(ctx context.Context) (any, error)
	reply chan result
}

type result struct {
	value any
	err   error
}

// Serializer executes ledger calls one at a time on a dedicated worker.
type Serializer struct {
	api      API
	requests chan *request
	done     chan struct{}
}

// NewSerializer wraps api and starts the worker.
func NewSerializer(remote API) *Serializer {
	s := &Serializer{
		api:      remote,
		requests: make(chan *request, 64),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Close stops the worker. Requests already queued are abandoned; their
// callers time out normally.
func (s *Serializer) Close() {
	close(s.done)
}

func (s *Serializer) run() {
	for {
		select {
		case <-s.done:
			return
		case req := <-s.requests:
			if req.ctx.Err() != nil {
				// Caller gave up while the request sat in the queue.
				continue
			}

			started := time.Now()
			value, err := req.call(req.ctx)
			req.reply <- result{value: value, err: err}

			zap.L().Debug("Ledger call finished",
				zap.String("call", req.name),
				zap.Duration("took", time.Since(started)),
				zap.Error(err))

			time.Sleep(interCallDelay)
		}
	}
}

// exec enqueues one call and waits for it, bounded by CallTimeout. A timeout
// is reported as fault.ErrTimeout, distinct from a remote rejection.
func (s *Serializer) exec(ctx context.Context, name string, call func(ctx context.Context) (any, error)) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	req := &request{
		name:  name,
		ctx:   ctx,
		call:  call,
		reply: make(chan result, 1),
	}

	select {
	case s.requests <- req:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s never queued", fault.ErrTimeout, name)
	case <-s.done:
		return nil, fmt.Errorf("ledger worker stopped")
	}

	select {
	case res := <-req.reply:
		return res.value, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s", fault.ErrTimeout, name)
	case <-s.done:
		return nil, fmt.Errorf("ledger worker stopped")
	}
}

func (s *Serializer) GetAllGuests(ctx context.Context) ([]v1.GuestDTO, error) {
	value, err := s.exec(ctx, "getAllGuests", func(ctx context.Context) (any, error) {
		return s.api.GetAll(ctx)
	})
	if err != nil {
		return nil, err
	}
	return value.([]v1.GuestDTO), nil
}

func (s *Serializer) FindGuestByID(ctx context.Context, id int) (*v1.GuestDTO, error) {
	value, err := s.exec(ctx, "findGuestById", func(ctx context.Context) (any, error) {
		return s.api.Find(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return value.(*v1.GuestDTO), nil
}

func (s *Serializer) MarkAttendance(ctx context.Context, id int, station string, value string) error {
	_, err := s.exec(ctx, "markAttendance", func(ctx context.Context) (any, error) {
		return nil, s.api.MarkAttendance(ctx, id, station, value)
	})
	return err
}

func (s *Serializer) BatchUpdateAttendance(ctx context.Context, updates []v1.AttendanceUpdate) error {
	_, err := s.exec(ctx, "batchUpdateAttendance", func(ctx context.Context) (any, error) {
		return nil, s.api.BatchUpdate(ctx, updates)
	})
	return err
}

func (s *Serializer) ClearAllCheckInData(ctx context.Context) error {
	_, err := s.exec(ctx, "clearAllCheckInData", func(ctx context.Context) (any, error) {
		return nil, s.api.ClearAll(ctx)
	})
	return err
}
