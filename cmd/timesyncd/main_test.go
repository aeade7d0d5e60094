package main

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/virgil28labs/timesync/clock"
	"github.com/virgil28labs/timesync/coordinator"
	"github.com/virgil28labs/timesync/metrics"
	"github.com/virgil28labs/timesync/models"
	"github.com/virgil28labs/timesync/transport"
)

type daemon struct {
	ctrl    *coordinator.Controller
	reg     *prometheus.Registry
	applied chan struct{}
	stop    func()
}

// startDaemon wires a controller the way build and run do: the metrics
// collector observes events and is the only time subscriber.
func startDaemon(t *testing.T, hub *transport.Hub, id string) *daemon {
	t.Helper()

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)
	applied := make(chan struct{}, 1)

	ctrl := coordinator.New(coordinator.Params{
		SelfID: id,
		Config: coordinator.Config{
			TickInterval:      10 * time.Millisecond,
			HeartbeatInterval: time.Hour,
			DriftInterval:     time.Hour,
		},
		Transport: hub.Join(id),
		Clock:     clock.System(),
		Location:  time.UTC,
		Observer: coordinator.Observers{
			collector,
			coordinator.ObserverFunc(func(ev models.SyncEvent) {
				if ev.Kind != models.EventSyncApplied {
					return
				}
				select {
				case applied <- struct{}{}:
				default:
				}
			}),
		},
	})

	stop, err := startCoordinator(context.Background(), ctrl, collector.Deliver)
	if err != nil {
		t.Fatalf("startCoordinator(%s) error = %v", id, err)
	}
	t.Cleanup(stop)
	return &daemon{ctrl: ctrl, reg: reg, applied: applied, stop: stop}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestStartCoordinatorLeaderBroadcastsTimeSync(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping real-time test in -short mode")
	}

	hub := transport.NewHub()
	a := startDaemon(t, hub, "A")
	b := startDaemon(t, hub, "B")

	if !a.ctrl.IsLeader() || b.ctrl.IsLeader() {
		t.Fatalf("leaders: A=%v B=%v, want A only", a.ctrl.IsLeader(), b.ctrl.IsLeader())
	}

	select {
	case <-b.applied:
	case <-time.After(2 * time.Second):
		t.Fatal("follower never applied a TIME_SYNC")
	}

	if got := b.ctrl.Latest().Instant; time.Since(got) > time.Second || time.Until(got) > time.Second {
		t.Fatalf("follower Latest().Instant = %v, want close to now", got)
	}
	if counterValue(t, b.reg, metrics.UpdatesDeliveredN) == 0 {
		t.Fatal("follower delivered no updates to its subscriber")
	}
	if counterValue(t, a.reg, metrics.UpdatesDeliveredN) == 0 {
		t.Fatal("leader delivered no updates to its subscriber")
	}
}

func TestStartCoordinatorLeaderStaysFresh(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping real-time test in -short mode")
	}

	a := startDaemon(t, transport.NewHub(), "A")

	first := a.ctrl.Latest().Instant
	time.Sleep(100 * time.Millisecond)
	if later := a.ctrl.Latest().Instant; !later.After(first) {
		t.Fatalf("Latest() did not advance: first=%v later=%v", first, later)
	}
}

func TestStartCoordinatorStop(t *testing.T) {
	d := startDaemon(t, transport.NewHub(), "A")

	d.stop()
	if got := d.ctrl.State(); got != coordinator.StateDestroyed {
		t.Fatalf("State() = %v, want %v", got, coordinator.StateDestroyed)
	}
}

func TestStartCoordinatorAfterDestroy(t *testing.T) {
	ctrl := coordinator.New(coordinator.Params{SelfID: "A", Clock: clock.System()})
	ctrl.Destroy()

	if _, err := startCoordinator(context.Background(), ctrl, func(models.TimeUpdate) {}); err == nil {
		t.Fatal("startCoordinator on a destroyed controller should fail")
	}
}
