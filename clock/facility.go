package clock

import (
	"context"
	"sync"
	"time"

	"github.com/virgil28labs/timesync/models"
	"github.com/virgil28labs/timesync/timeutil"
)

const defaultTickInterval = time.Second

// Subscriber receives time updates.
type Subscriber func(models.TimeUpdate)

// TickFunc runs on every tick before subscribers are notified.
type TickFunc func(models.TimeUpdate)

type subscription struct {
	id uint64
	fn Subscriber
}

// Facility renders the current time and fans updates out to subscribers.
// Its periodic tick only runs while it is authoritative and has at least one
// subscriber.
type Facility struct {
	clock    Clock
	interval time.Duration
	location *time.Location
	onTick   TickFunc
	logger   Logger

	mu            sync.Mutex
	subs          []subscription
	nextID        uint64
	authoritative bool
	destroyed     bool
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// FacilityParams holds configuration for creating a Facility.
type FacilityParams struct {
	Clock    Clock
	Interval time.Duration
	Location *time.Location
	OnTick   TickFunc
	Logger   Logger
}

// NewFacility creates a Facility. It starts non-authoritative.
func NewFacility(p FacilityParams) *Facility {
	f := &Facility{
		clock:    p.Clock,
		interval: p.Interval,
		location: p.Location,
		onTick:   p.OnTick,
		logger:   p.Logger,
	}
	if f.clock == nil {
		f.clock = System()
	}
	if f.interval <= 0 {
		f.interval = defaultTickInterval
	}
	if f.location == nil {
		f.location = time.Local
	}
	return f
}

// SetTickFunc replaces the tick hook. Must be called before the tick starts.
func (f *Facility) SetTickFunc(fn TickFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onTick = fn
}

func (f *Facility) Clock() Clock { return f.clock }

func (f *Facility) Now() time.Time { return f.clock.Now() }

// Render formats t for subscribers.
func (f *Facility) Render(t time.Time) models.TimeUpdate {
	return models.TimeUpdate{
		CurrentTimeText: timeutil.FormatTime(t, f.location),
		CurrentDateText: timeutil.FormatDate(t, f.location),
		Instant:         t,
	}
}

// Update renders the current time.
func (f *Facility) Update() models.TimeUpdate {
	return f.Render(f.clock.Now())
}

// Subscribe registers fn and returns a function that removes it. Each call
// registers an independent subscription; the returned function is
// idempotent.
func (f *Facility) Subscribe(fn Subscriber) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.destroyed || fn == nil {
		return func() {}
	}

	f.nextID++
	id := f.nextID
	f.subs = append(f.subs, subscription{id: id, fn: fn})
	f.reconcileLocked()

	var once sync.Once
	return func() {
		once.Do(func() { f.unsubscribe(id) })
	}
}

func (f *Facility) unsubscribe(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, s := range f.subs {
		if s.id == id {
			f.subs = append(f.subs[:i:i], f.subs[i+1:]...)
			break
		}
	}
	f.reconcileLocked()
}

// Subscribers returns the number of registered subscribers.
func (f *Facility) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Publish delivers u to every subscriber. A panicking subscriber is logged
// and does not prevent delivery to the others.
func (f *Facility) Publish(u models.TimeUpdate) {
	f.mu.Lock()
	if f.destroyed {
		f.mu.Unlock()
		return
	}
	subs := make([]subscription, len(f.subs))
	copy(subs, f.subs)
	f.mu.Unlock()

	for _, s := range subs {
		f.deliver(s, u)
	}
}

func (f *Facility) deliver(s subscription, u models.TimeUpdate) {
	defer func() {
		if r := recover(); r != nil && f.logger != nil {
			f.logger.ErrorW("time subscriber failed", "subscription", s.id, "panic", r)
		}
	}()
	s.fn(u)
}

// Tick renders the current time, runs the tick hook and publishes.
func (f *Facility) Tick() {
	f.mu.Lock()
	if f.destroyed {
		f.mu.Unlock()
		return
	}
	onTick := f.onTick
	f.mu.Unlock()

	u := f.Update()
	if onTick != nil {
		onTick(u)
	}
	f.Publish(u)
}

// SetAuthoritative turns the periodic tick on or off. The tick still only
// runs while there are subscribers.
func (f *Facility) SetAuthoritative(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authoritative = on
	f.reconcileLocked()
}

// Ticking reports whether the periodic tick is running.
func (f *Facility) Ticking() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancel != nil
}

// Destroy stops the tick and clears all subscribers. Safe to call more than
// once.
func (f *Facility) Destroy() {
	f.mu.Lock()
	if f.destroyed {
		f.mu.Unlock()
		return
	}
	f.destroyed = true
	f.subs = nil
	f.stopLocked()
	f.mu.Unlock()

	f.wg.Wait()
}

func (f *Facility) reconcileLocked() {
	want := f.authoritative && len(f.subs) > 0 && !f.destroyed
	switch {
	case want && f.cancel == nil:
		f.startLocked()
	case !want && f.cancel != nil:
		f.stopLocked()
	}
}

func (f *Facility) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.wg.Add(1)
	go f.run(ctx)
}

// stopLocked cancels the tick without waiting for it; the tick goroutine may
// be blocked on a caller that holds its own lock. Destroy waits.
func (f *Facility) stopLocked() {
	if f.cancel == nil {
		return
	}
	f.cancel()
	f.cancel = nil
}

func (f *Facility) run(ctx context.Context) {
	defer f.wg.Done()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			f.Tick()
		}
	}
}
