package notify

import (
	"container/heap"
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	appLog "studycal/internal/log"
)

const (
	maxSleep       = 60 * time.Second
	deliverTimeout = 30 * time.Second
)

// Local is an in-process Service. A single goroutine owns a min-heap of
// pending payloads, sleeps until the earliest one is due (never longer
// than a minute, so wall-clock jumps are picked up) and hands due payloads
// to the Deliverer.
//
// Pending registrations live in memory only; the reminder pipeline
// re-registers everything on startup.
type Local struct {
	ctx     context.Context
	reqs    chan request
	deliver Deliverer
	onFired func(Payload, error)
}

type Option func(*Local)

// WithFiredHook is called after every delivery attempt with the
// delivery error, if any.
func WithFiredHook(fn func(Payload, error)) Option {
	return func(l *Local) { l.onFired = fn }
}

type opKind int

const (
	opAdd opKind = iota
	opCancel
	opCancelAll
	opList
)

type request struct {
	op    opKind
	p     Payload
	reply chan []Payload
}

// NewLocal starts the service. It stops when ctx is cancelled.
func NewLocal(ctx context.Context, d Deliverer, opts ...Option) *Local {
	l := &Local{
		ctx:     ctx,
		reqs:    make(chan request),
		deliver: d,
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.run()
	return l
}

// Schedule registers p to fire at at. The returned id is p.Key, or a
// fresh UUID when p.Key is empty. A past at fires immediately.
func (l *Local) Schedule(ctx context.Context, at time.Time, p Payload) (string, error) {
	if p.Key == "" {
		p.Key = uuid.NewString()
	}
	p.At = at
	if _, err := l.call(ctx, request{op: opAdd, p: p}); err != nil {
		return "", err
	}
	return p.Key, nil
}

// Cancel drops a pending registration. Unknown ids are ignored.
func (l *Local) Cancel(ctx context.Context, id string) error {
	_, err := l.call(ctx, request{op: opCancel, p: Payload{Key: id}})
	return err
}

func (l *Local) CancelAll(ctx context.Context) error {
	_, err := l.call(ctx, request{op: opCancelAll})
	return err
}

// Pending returns the queued payloads in firing order.
func (l *Local) Pending(ctx context.Context) ([]Payload, error) {
	return l.call(ctx, request{op: opList})
}

func (l *Local) call(ctx context.Context, req request) ([]Payload, error) {
	if l.ctx.Err() != nil {
		return nil, ErrStopped
	}
	req.reply = make(chan []Payload, 1)
	select {
	case l.reqs <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.ctx.Done():
		return nil, ErrStopped
	}
	select {
	case out := <-req.reply:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.ctx.Done():
		return nil, ErrStopped
	}
}

func (l *Local) run() {
	h := &pendingHeap{}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	resetTimer := func() <-chan time.Time {
		if timer != nil {
			timer.Stop()
		}
		if h.Len() == 0 {
			return nil
		}
		dur := time.Until((*h)[0].At)
		if dur > maxSleep {
			dur = maxSleep
		}
		if dur < 0 {
			dur = 0
		}
		timer = time.NewTimer(dur)
		return timer.C
	}

	timerCh := resetTimer()
	for {
		select {
		case <-l.ctx.Done():
			return

		case req := <-l.reqs:
			var out []Payload
			switch req.op {
			case opAdd:
				h.remove(req.p.Key)
				heap.Push(h, req.p)
			case opCancel:
				h.remove(req.p.Key)
			case opCancelAll:
				*h = (*h)[:0]
			case opList:
				out = append([]Payload(nil), (*h)...)
				sort.Sort(pendingHeap(out))
			}
			req.reply <- out
			timerCh = resetTimer()

		case <-timerCh:
			now := time.Now()
			for h.Len() > 0 && !(*h)[0].At.After(now) {
				p := heap.Pop(h).(Payload)
				go l.fire(p)
			}
			timerCh = resetTimer()
		}
	}
}

func (l *Local) fire(p Payload) {
	ctx, cancel := context.WithTimeout(l.ctx, deliverTimeout)
	defer cancel()

	err := l.deliver.Deliver(ctx, p)
	if err != nil {
		appLog.Error("notification delivery failed", err, "key", p.Key, "title", p.Title)
	} else {
		appLog.Debug("notification delivered", "key", p.Key, "title", p.Title)
	}
	if l.onFired != nil {
		l.onFired(p, err)
	}
}
