package coordinator

import "github.com/virgil28labs/timesync/models"

// Observer is told about every coordination event. Observe is called
// without any controller lock held and must not block for long.
type Observer interface {
	Observe(ev models.SyncEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(models.SyncEvent)

func (f ObserverFunc) Observe(ev models.SyncEvent) { f(ev) }

// Observers fans an event out to each non-nil observer in order.
type Observers []Observer

func (o Observers) Observe(ev models.SyncEvent) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(ev)
		}
	}
}

type nopObserver struct{}

func (nopObserver) Observe(models.SyncEvent) {}
